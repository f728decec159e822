package services

import (
	"context"
	"testing"

	"coinfluence/internal/models"
	"coinfluence/internal/repository"
	"coinfluence/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfluencerCreateAndLookup(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewInfluencerService(db)
	ctx := context.Background()

	inf, err := svc.Create(ctx, models.CreateInfluencerRequest{
		Name:               "Crypto Kate",
		Handle:             "cryptokate",
		Email:              "kate@example.com",
		WalletAddress:      "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		Category:           "Crypto",
		PledgeThresholdETH: testutil.Dec("2.5"),
	})
	require.NoError(t, err)
	assert.Equal(t, "@cryptokate", inf.Handle)
	assert.Equal(t, models.InfluencerStatusPending, inf.Status)

	byHandle, err := svc.GetByHandle(ctx, "cryptokate")
	require.NoError(t, err)
	assert.Equal(t, inf.ID, byHandle.ID)

	byAddress, err := svc.GetByAddress(ctx, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, inf.ID, byAddress.ID)

	_, err = svc.Create(ctx, models.CreateInfluencerRequest{Name: "Kate Again", Handle: "@cryptokate", Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateInfluencer)

	_, err = svc.Create(ctx, models.CreateInfluencerRequest{Name: "No Email", Handle: "noemail"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Get(ctx, 9999)
	assert.ErrorIs(t, err, ErrInfluencerNotFound)

	_, err = svc.GetByAddress(ctx, "not-an-address")
	assert.ErrorIs(t, err, ErrValidation)

	list, total, err := svc.List(ctx, repository.InfluencerFilter{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)
}

func TestInfluencerUpdateAllowList(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewInfluencerService(db)
	ctx := context.Background()
	inf := testutil.CreateInfluencer(t, db, 1, "1", "0")

	updated, err := svc.Update(ctx, inf.ID, map[string]interface{}{
		"description":          "Daily market notes",
		"followers_count":      float64(12000),
		"verified":             true,
		"pledge_threshold_eth": "3",
		"token_symbol":         "note",
		"handle":               "notes",
	})
	require.NoError(t, err)
	assert.Equal(t, "Daily market notes", updated.Description)
	assert.Equal(t, int64(12000), updated.FollowersCount)
	assert.True(t, updated.Verified)
	assert.True(t, updated.PledgeThresholdETH.Equal(testutil.Dec("3")))
	require.NotNil(t, updated.TokenSymbol)
	assert.Equal(t, "NOTE", *updated.TokenSymbol)
	assert.Equal(t, "@notes", updated.Handle)

	_, err = svc.Update(ctx, inf.ID, map[string]interface{}{"total_pledged_eth": "100"})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = svc.Update(ctx, inf.ID, map[string]interface{}{"is_approved": true})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = svc.Update(ctx, inf.ID, map[string]interface{}{"followers_count": "many"})
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = svc.Update(ctx, inf.ID, map[string]interface{}{"name": "  "})
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = svc.Update(ctx, inf.ID, map[string]interface{}{"pledge_threshold_usdc": -5.0})
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = svc.Update(ctx, 9999, map[string]interface{}{"name": "Nobody"})
	assert.ErrorIs(t, err, ErrInfluencerNotFound)

	_, err = svc.Update(ctx, inf.ID, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInfluencerDeleteRefusesLive(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewInfluencerService(db)
	ctx := context.Background()

	pending := testutil.CreateInfluencer(t, db, 1, "1", "0")
	require.NoError(t, svc.Delete(ctx, pending.ID))
	_, err := svc.Get(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrInfluencerNotFound)

	live := approvedInfluencer(t, db, 2)
	launch(t, db, live, 500)
	assert.ErrorIs(t, svc.Delete(ctx, live.ID), ErrInfluencerLive)

	assert.ErrorIs(t, svc.Delete(ctx, 9999), ErrInfluencerNotFound)
}

func TestSetupPledging(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewInfluencerService(db)
	ctx := context.Background()
	wallet := testutil.Address(42)

	req := models.SetupPledgingRequest{
		InfluencerAddress: wallet,
		ETHThreshold:      testutil.Dec("2"),
		TokenName:         "Meme Lord Token",
		Symbol:            "meme",
		InfluencerName:    "Meme Lord",
	}
	inf, err := svc.SetupPledging(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, models.InfluencerStatusPledging, inf.Status)
	assert.Equal(t, "@memelord", inf.Handle)
	require.NotNil(t, inf.TokenSymbol)
	assert.Equal(t, "MEME", *inf.TokenSymbol)

	req.ETHThreshold = testutil.Dec("4")
	again, err := svc.SetupPledging(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, inf.ID, again.ID)
	assert.True(t, again.PledgeThresholdETH.Equal(testutil.Dec("4")))

	collide := req
	collide.InfluencerAddress = testutil.Address(43)
	other, err := svc.SetupPledging(ctx, collide)
	require.NoError(t, err)
	assert.NotEqual(t, inf.ID, other.ID)
	assert.Regexp(t, `^@memelord_\d{4}$`, other.Handle)

	bad := req
	bad.ETHThreshold = testutil.Dec("0")
	_, err = svc.SetupPledging(ctx, bad)
	assert.ErrorIs(t, err, ErrValidation)

	bad = req
	bad.InfluencerAddress = "0x123"
	_, err = svc.SetupPledging(ctx, bad)
	assert.ErrorIs(t, err, ErrValidation)

	approved := approvedInfluencer(t, db, 7)
	locked := req
	locked.InfluencerAddress = *approved.WalletAddress
	_, err = svc.SetupPledging(ctx, locked)
	assert.ErrorIs(t, err, ErrAlreadyApproved)
}
