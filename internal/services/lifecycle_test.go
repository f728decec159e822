package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"coinfluence/internal/events"
	"coinfluence/internal/models"
	"coinfluence/internal/networks"
	"coinfluence/internal/repository"
	"coinfluence/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ethRate = decimal.NewFromInt(2000)

func pledge(t *testing.T, svc *PledgeService, user, influencer int, amount, currency string) *PledgeResult {
	t.Helper()
	res, err := svc.Submit(context.Background(), PledgeInput{
		UserAddress:       testutil.Address(user),
		InfluencerAddress: testutil.Address(influencer),
		Amount:            testutil.Dec(amount),
		Currency:          currency,
		IdempotencyKey:    fmt.Sprintf("pledge-%d-%d-%s-%s", user, influencer, amount, t.Name()),
	})
	require.NoError(t, err)
	return res
}

func TestPledgeApproveLaunchLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	rec := &events.Recorder{}

	inf := testutil.CreateInfluencer(t, db, 1, "5", "0")
	pledges := NewPledgeService(db, rec)
	approvals := NewApprovalService(db, rec)
	tokens := NewTokenService(db, networks.Defaults(), ethRate, rec)

	pledge(t, pledges, 100, 1, "2", "ETH")
	pledge(t, pledges, 101, 1, "2", "eth")

	_, err := approvals.Approve(ctx, inf.ID, 1)
	assert.ErrorIs(t, err, ErrThresholdNotMet)

	pledge(t, pledges, 102, 1, "1.5", "ETH")

	repo := repository.NewRepository(db)
	got, err := repo.GetInfluencerByID(ctx, inf.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPledgedETH.Equal(testutil.Dec("5.5")), "total %s", got.TotalPledgedETH)
	assert.EqualValues(t, 3, got.PledgeCount)
	assert.True(t, got.ThresholdMet())

	approved, err := approvals.Approve(ctx, inf.ID, 1)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	assert.Equal(t, models.InfluencerStatusApproved, approved.Status)

	_, err = approvals.Approve(ctx, inf.ID, 1)
	assert.ErrorIs(t, err, ErrAlreadyApproved)

	n, err := repo.CountEvents(ctx, inf.ID, models.EventApproved)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	res, err := tokens.Create(ctx, TokenCreationInput{
		InfluencerID:   inf.ID,
		TokenAddress:   testutil.Address(9001),
		TxHash:         testutil.TxHash(1),
		IdempotencyKey: "launch-1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.InfluencerStatusLive, res.Influencer.Status)
	assert.Equal(t, networks.BaseSepolia, res.Network)
	// 5.5 ETH * 2000 / 700000 circulating tokens
	assert.True(t, res.InitialPrice.Equal(testutil.Dec("0.015714285714285714")), "price %s", res.InitialPrice)

	token, err := repo.GetTokenByInfluencer(ctx, inf.ID)
	require.NoError(t, err)
	assert.Equal(t, "INFLU", token.Ticker)
	assert.Equal(t, "Influencer 1 Token", token.Name)

	pledgeErr := func() error {
		_, err := pledges.Submit(ctx, PledgeInput{
			UserAddress:       testutil.Address(103),
			InfluencerAddress: testutil.Address(1),
			Amount:            testutil.Dec("1"),
			Currency:          "ETH",
			IdempotencyKey:    "late",
		})
		return err
	}()
	assert.ErrorIs(t, pledgeErr, ErrPledgingClosed)

	assert.Equal(t, []models.EventType{
		models.EventPledgeCreated,
		models.EventPledgeCreated,
		models.EventPledgeCreated,
		models.EventApproved,
		models.EventTokenDeployed,
	}, rec.Types())
}

func TestConcurrentApprovalsRecordOneEvent(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	inf := testutil.CreateInfluencer(t, db, 1, "1", "0")
	pledge(t, NewPledgeService(db, nil), 100, 1, "1", "ETH")
	approvals := NewApprovalService(db, nil)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(admin uint) {
			defer wg.Done()
			if _, err := approvals.Approve(ctx, inf.ID, admin); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrAlreadyApproved)
			}
		}(uint(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	n, err := repository.NewRepository(db).CountEvents(ctx, inf.ID, models.EventApproved)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestApproveUnknownInfluencer(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := NewApprovalService(db, nil).Approve(context.Background(), 404, 1)
	assert.ErrorIs(t, err, ErrInfluencerNotFound)
}

func TestRejectClosesPledging(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	inf := testutil.CreateInfluencer(t, db, 1, "10", "0")
	pledges := NewPledgeService(db, nil)
	pledge(t, pledges, 100, 1, "1", "ETH")

	rejected, err := NewApprovalService(db, nil).Reject(ctx, inf.ID, 1, "spam")
	require.NoError(t, err)
	assert.Equal(t, models.InfluencerStatusRejected, rejected.Status)

	_, err = NewApprovalService(db, nil).Approve(ctx, inf.ID, 1)
	assert.ErrorIs(t, err, ErrAlreadyRejected)

	_, err = pledges.Submit(ctx, PledgeInput{
		UserAddress:       testutil.Address(101),
		InfluencerAddress: testutil.Address(1),
		Amount:            testutil.Dec("1"),
		Currency:          "ETH",
		IdempotencyKey:    "after-reject",
	})
	assert.ErrorIs(t, err, ErrPledgingClosed)
}

func TestPledgeIdempotency(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	testutil.CreateInfluencer(t, db, 1, "10", "0")
	svc := NewPledgeService(db, nil)

	in := PledgeInput{
		UserAddress:       testutil.Address(100),
		InfluencerAddress: testutil.Address(1),
		Amount:            testutil.Dec("1"),
		Currency:          "ETH",
		IdempotencyKey:    "key-1",
	}
	first, err := svc.Submit(ctx, in)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := svc.Submit(ctx, in)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Pledge.ID, second.Pledge.ID)
	assert.Equal(t, first.Pledge.TxHash, second.Pledge.TxHash)

	inf, err := repository.NewRepository(db).GetInfluencerByWallet(ctx, testutil.Address(1))
	require.NoError(t, err)
	assert.True(t, inf.TotalPledgedETH.Equal(testutil.Dec("1")))
	assert.EqualValues(t, 1, inf.PledgeCount)

	in.Amount = testutil.Dec("2")
	_, err = svc.Submit(ctx, in)
	assert.ErrorIs(t, err, ErrIdempotencyConflict)

	in.IdempotencyKey = ""
	_, err = svc.Submit(ctx, in)
	assert.ErrorIs(t, err, ErrIdempotencyKeyRequired)
}

func TestPledgeIdempotencyKeysArePerUser(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	testutil.CreateInfluencer(t, db, 1, "10", "0")
	svc := NewPledgeService(db, nil)

	var ids []uint
	for _, seed := range []int{100, 101} {
		res, err := svc.Submit(ctx, PledgeInput{
			UserAddress:       testutil.Address(seed),
			InfluencerAddress: testutil.Address(1),
			Amount:            testutil.Dec("1"),
			Currency:          "ETH",
			IdempotencyKey:    "1",
		})
		require.NoError(t, err)
		assert.False(t, res.Replayed)
		ids = append(ids, res.Pledge.ID)
	}
	assert.NotEqual(t, ids[0], ids[1])

	inf, err := repository.NewRepository(db).GetInfluencerByWallet(ctx, testutil.Address(1))
	require.NoError(t, err)
	assert.True(t, inf.TotalPledgedETH.Equal(testutil.Dec("2")))
	assert.EqualValues(t, 2, inf.PledgeCount)
}

func TestPledgeValidation(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	testutil.CreateInfluencer(t, db, 1, "10", "0")
	svc := NewPledgeService(db, nil)

	cases := []struct {
		name string
		in   PledgeInput
		want error
	}{
		{"zero amount", PledgeInput{UserAddress: testutil.Address(2), InfluencerAddress: testutil.Address(1), Amount: decimal.Zero, Currency: "ETH"}, ErrValidation},
		{"bad currency", PledgeInput{UserAddress: testutil.Address(2), InfluencerAddress: testutil.Address(1), Amount: testutil.Dec("1"), Currency: "BTC"}, ErrValidation},
		{"bad address", PledgeInput{UserAddress: "alice", InfluencerAddress: testutil.Address(1), Amount: testutil.Dec("1"), Currency: "ETH"}, ErrValidation},
		{"unknown influencer", PledgeInput{UserAddress: testutil.Address(2), InfluencerAddress: testutil.Address(3), Amount: testutil.Dec("1"), Currency: "ETH"}, ErrInfluencerNotFound},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.in.IdempotencyKey = fmt.Sprintf("case-%d", i)
			_, err := svc.Submit(ctx, tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestWithdrawReleasesAggregates(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	inf := testutil.CreateInfluencer(t, db, 1, "10", "1000")
	svc := NewPledgeService(db, nil)

	pledge(t, svc, 100, 1, "3", "ETH")
	pledge(t, svc, 100, 1, "250", "USDC")
	pledge(t, svc, 101, 1, "1", "ETH")

	resp, err := svc.Withdraw(ctx, testutil.Address(100), testutil.Address(1))
	require.NoError(t, err)
	assert.True(t, resp.HasWithdrawn)

	repo := repository.NewRepository(db)
	got, err := repo.GetInfluencerByID(ctx, inf.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPledgedETH.Equal(testutil.Dec("1")), "eth %s", got.TotalPledgedETH)
	assert.True(t, got.TotalPledgedUSDC.IsZero(), "usdc %s", got.TotalPledgedUSDC)
	assert.EqualValues(t, 1, got.PledgeCount)

	_, err = svc.Withdraw(ctx, testutil.Address(100), testutil.Address(1))
	assert.ErrorIs(t, err, ErrPledgeNotFound)

	// a new pledge after withdrawing starts from zero
	pledge(t, svc, 100, 1, "0.5", "ETH")
	p, err := repo.GetPledge(ctx, testutil.Address(100), testutil.Address(1))
	require.NoError(t, err)
	assert.False(t, p.HasWithdrawn)
	assert.True(t, p.ETHAmount.Equal(testutil.Dec("0.5")))
	assert.True(t, p.USDCAmount.IsZero())
}

func TestWithdrawClosedAfterApproval(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	inf := testutil.CreateInfluencer(t, db, 1, "1", "0")
	svc := NewPledgeService(db, nil)
	pledge(t, svc, 100, 1, "1", "ETH")

	_, err := NewApprovalService(db, nil).Approve(ctx, inf.ID, 1)
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, testutil.Address(100), testutil.Address(1))
	assert.ErrorIs(t, err, ErrWithdrawalClosed)
}

func TestUSDCThresholdAloneQualifies(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	inf := testutil.CreateInfluencer(t, db, 1, "0", "1000")
	pledge(t, NewPledgeService(db, nil), 100, 1, "1000", "USDC")

	_, err := NewApprovalService(db, nil).Approve(ctx, inf.ID, 1)
	require.NoError(t, err)
}

func TestPledgeStatsAndListings(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	testutil.CreateInfluencer(t, db, 1, "10", "0")
	testutil.CreateInfluencer(t, db, 2, "10", "0")
	svc := NewPledgeService(db, nil)

	pledge(t, svc, 100, 1, "1", "ETH")
	pledge(t, svc, 100, 2, "2", "ETH")
	pledge(t, svc, 101, 1, "500", "USDC")

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, stats.TotalPledges)
	assert.EqualValues(t, 2, stats.UniquePledgers)
	assert.True(t, stats.TotalETH.Equal(testutil.Dec("3")))
	assert.True(t, stats.TotalUSDC.Equal(testutil.Dec("500")))

	mine, err := svc.ListByUser(ctx, testutil.Address(100))
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	summary, err := svc.ListByInfluencer(ctx, testutil.Address(1))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalPledgers)
	assert.False(t, summary.ThresholdMet)
}
