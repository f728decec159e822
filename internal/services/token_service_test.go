package services

import (
	"context"
	"testing"

	"coinfluence/internal/models"
	"coinfluence/internal/networks"
	"coinfluence/internal/repository"
	"coinfluence/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// approvedInfluencer funds and approves an influencer with the given seed.
func approvedInfluencer(t *testing.T, db *gorm.DB, seed int) *models.Influencer {
	t.Helper()
	inf := testutil.CreateInfluencer(t, db, seed, "1", "0")
	pledge(t, NewPledgeService(db, nil), 1000+seed, seed, "1", "ETH")
	approved, err := NewApprovalService(db, nil).Approve(context.Background(), inf.ID, 1)
	require.NoError(t, err)
	return approved
}

func launch(t *testing.T, db *gorm.DB, inf *models.Influencer, tokenSeed int) *TokenCreationResult {
	t.Helper()
	res, err := NewTokenService(db, networks.Defaults(), ethRate, nil).Create(context.Background(), TokenCreationInput{
		InfluencerID:   inf.ID,
		TokenAddress:   testutil.Address(tokenSeed),
		TxHash:         testutil.TxHash(tokenSeed),
		CreatedBy:      "admin@example.com",
		IdempotencyKey: t.Name(),
	})
	require.NoError(t, err)
	return res
}

func TestCreateTokenRequiresApproval(t *testing.T) {
	db := testutil.NewDB(t)
	inf := testutil.CreateInfluencer(t, db, 1, "1", "0")
	svc := NewTokenService(db, networks.Defaults(), ethRate, nil)

	_, err := svc.Create(context.Background(), TokenCreationInput{
		InfluencerID:   inf.ID,
		TokenAddress:   testutil.Address(500),
		TxHash:         testutil.TxHash(500),
		IdempotencyKey: "k",
	})
	assert.ErrorIs(t, err, ErrNotApproved)

	_, err = svc.Prepare(context.Background(), inf.ID)
	assert.ErrorIs(t, err, ErrNotApproved)
}

func TestCreateTokenValidation(t *testing.T) {
	db := testutil.NewDB(t)
	inf := approvedInfluencer(t, db, 1)
	svc := NewTokenService(db, networks.Defaults(), ethRate, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, TokenCreationInput{InfluencerID: inf.ID, TokenAddress: "0x123", TxHash: testutil.TxHash(1), IdempotencyKey: "a"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, TokenCreationInput{InfluencerID: inf.ID, TokenAddress: testutil.Address(500), TxHash: "0xabc", IdempotencyKey: "b"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, TokenCreationInput{InfluencerID: inf.ID, TokenAddress: testutil.Address(500), TxHash: testutil.TxHash(1), Network: "solana", IdempotencyKey: "c"})
	assert.ErrorIs(t, err, ErrUnsupportedNetwork)

	_, err = svc.Create(ctx, TokenCreationInput{InfluencerID: inf.ID, TokenAddress: testutil.Address(500), TxHash: testutil.TxHash(1)})
	assert.ErrorIs(t, err, ErrIdempotencyKeyRequired)
}

func TestCreateTokenIdempotentReplay(t *testing.T) {
	db := testutil.NewDB(t)
	inf := approvedInfluencer(t, db, 1)
	svc := NewTokenService(db, networks.Defaults(), ethRate, nil)
	ctx := context.Background()

	in := TokenCreationInput{
		InfluencerID:   inf.ID,
		TokenAddress:   testutil.Address(500),
		TxHash:         testutil.TxHash(500),
		Network:        "base",
		IdempotencyKey: "launch",
	}
	first, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, networks.BaseMainnet, first.Network)

	again, err := svc.Create(ctx, in)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.TokenID, again.TokenID)

	n, err := repository.NewRepository(db).CountEvents(ctx, inf.ID, models.EventTokenDeployed)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	in.IdempotencyKey = "launch-again"
	_, err = svc.Create(ctx, in)
	assert.ErrorIs(t, err, ErrAlreadyLaunched)

	in.IdempotencyKey = "launch"
	in.TokenSymbol = "OTHER"
	_, err = svc.Create(ctx, in)
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestCreateTokenIdempotencyKeysArePerInfluencer(t *testing.T) {
	db := testutil.NewDB(t)
	first := approvedInfluencer(t, db, 1)
	second := approvedInfluencer(t, db, 2)

	// launch reuses the test name as the key for both
	a := launch(t, db, first, 500)
	b := launch(t, db, second, 501)
	assert.False(t, a.Replayed)
	assert.False(t, b.Replayed)
	assert.NotEqual(t, a.TokenID, b.TokenID)
}

func TestCreateTokenRollsBackOnAddressCollision(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	first := approvedInfluencer(t, db, 1)
	second := approvedInfluencer(t, db, 2)
	launch(t, db, first, 500)

	_, err := NewTokenService(db, networks.Defaults(), ethRate, nil).Create(ctx, TokenCreationInput{
		InfluencerID:   second.ID,
		TokenAddress:   testutil.Address(500),
		TxHash:         testutil.TxHash(501),
		IdempotencyKey: "collide",
	})
	assert.ErrorIs(t, err, ErrTokenAddressInUse)

	repo := repository.NewRepository(db)
	got, err := repo.GetInfluencerByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InfluencerStatusApproved, got.Status)
	assert.Nil(t, got.TokenAddress)
	assert.Nil(t, got.LaunchedAt)

	n, err := repo.CountEvents(ctx, second.ID, models.EventTokenDeployed)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = repo.GetIdempotencyKey(ctx, tokenCreationScope(second.ID), "collide")
	assert.True(t, repository.IsNotFound(err))
}

func TestCreateTokenSeedsAnalytics(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	inf := approvedInfluencer(t, db, 1)
	res := launch(t, db, inf, 500)

	market := NewMarketDataService(db)

	quote, err := market.Quote(ctx, res.TokenID)
	require.NoError(t, err)
	assert.True(t, quote.Price.Sub(res.InitialPrice).Abs().LessThan(testutil.Dec("0.000000000001")), "price %s", quote.Price)
	assert.Equal(t, "neutral", quote.PriceDirection)
	assert.Equal(t, "INFLU", quote.Symbol)

	perf, err := market.Performance(ctx, res.TokenID)
	require.NoError(t, err)
	assert.True(t, perf.Return1D.IsZero())

	stats, err := market.Statistics(ctx, res.TokenID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Holders)

	news, err := market.News(ctx, res.TokenID, 0, 0)
	require.NoError(t, err)
	require.Len(t, news.Articles, 1)
	assert.Equal(t, "Influencer 1 Token (INFLU) Launches on CoinFluence", news.Articles[0].Title)
	assert.False(t, news.HasMore)

	_, err = market.Chart(ctx, res.TokenID, "1M")
	assert.ErrorIs(t, err, ErrTokenDataNotFound)
}

func TestPrepareToken(t *testing.T) {
	db := testutil.NewDB(t)
	inf := approvedInfluencer(t, db, 1)

	plan, err := NewTokenService(db, networks.Defaults(), ethRate, nil).Prepare(context.Background(), inf.ID)
	require.NoError(t, err)
	assert.Equal(t, "INFLU", plan.Symbol)
	assert.Equal(t, networks.BaseSepolia, plan.Network)
	assert.EqualValues(t, 84532, plan.ChainID)
	assert.True(t, plan.PledgedValueUSD.Equal(testutil.Dec("2000")))
	// 2000 USD over 700000 circulating tokens
	assert.True(t, plan.InitialPrice.Equal(testutil.Dec("0.002857142857142857")), "price %s", plan.InitialPrice)
}

func TestInitialPriceFloor(t *testing.T) {
	inf := &models.Influencer{TotalPledgedETH: testutil.Dec("0.01")}
	price := InitialPrice(inf, testutil.Dec("1000000"), ethRate, testutil.Dec("0.001"))
	assert.True(t, price.Equal(testutil.Dec("0.001")))
}
