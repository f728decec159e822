package services

import (
	"context"
	"testing"
	"time"

	"coinfluence/internal/models"
	"coinfluence/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type dashboardFixture struct {
	db         *gorm.DB
	svc        *DashboardService
	investor   *models.User
	influencer *models.User
	launched   *models.Influencer
}

// newDashboardFixture builds one pledging, one approved and one live
// influencer with pledges from two investors.
func newDashboardFixture(t *testing.T) dashboardFixture {
	t.Helper()
	db := testutil.NewDB(t)
	pledges := NewPledgeService(db, nil)

	testutil.CreateUser(t, db, "admin@example.com", models.UserStatusAdmin, "")
	investor := testutil.CreateUser(t, db, "inv@example.com", models.UserStatusInvestor, testutil.Address(100))
	influencer := testutil.CreateUser(t, db, "influencer1@example.com", models.UserStatusInfluencer, "")

	testutil.CreateInfluencer(t, db, 1, "10", "0")
	pledge(t, pledges, 100, 1, "1", "ETH")
	pledge(t, pledges, 101, 1, "500", "USDC")

	approvedInfluencer(t, db, 2)

	third := testutil.CreateInfluencer(t, db, 3, "1", "0")
	pledge(t, pledges, 100, 3, "1", "ETH")
	approved, err := NewApprovalService(db, nil).Approve(context.Background(), third.ID, 1)
	require.NoError(t, err)
	launch(t, db, approved, 900)

	return dashboardFixture{
		db:         db,
		svc:        NewDashboardService(db, ethRate, decimal.NewFromInt(2)),
		investor:   investor,
		influencer: influencer,
		launched:   approved,
	}
}

func TestAdminStats(t *testing.T) {
	f := newDashboardFixture(t)

	stats, err := f.svc.AdminStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalUsers)
	assert.Equal(t, int64(1), stats.UsersByStatus[models.UserStatusAdmin])
	assert.Equal(t, int64(3), stats.TotalInfluencers)
	assert.Equal(t, int64(1), stats.TotalTokens)
	assert.Equal(t, int64(1), stats.ApprovedInfluencers)
	assert.Equal(t, int64(1), stats.PledgingInfluencers)
	assert.Equal(t, int64(3), stats.TotalPledgers)
	assert.True(t, stats.TotalETHPledged.Equal(decimal.NewFromInt(3)), stats.TotalETHPledged.String())
	assert.True(t, stats.TotalUSDCPledged.Equal(decimal.NewFromInt(500)), stats.TotalUSDCPledged.String())
	assert.True(t, stats.TotalVolume.Equal(decimal.NewFromInt(6500)), stats.TotalVolume.String())
	assert.True(t, stats.TotalFees.Equal(decimal.NewFromInt(130)), stats.TotalFees.String())
}

func TestPlatformStats(t *testing.T) {
	f := newDashboardFixture(t)

	stats, err := f.svc.PlatformStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.ActivePledges)
	assert.Equal(t, int64(0), stats.WithdrawnPledges)
	assert.True(t, stats.SuccessRate.Equal(decimal.NewFromInt(100)))
	assert.True(t, stats.AverageInvestment.Equal(decimal.NewFromInt(1625)), stats.AverageInvestment.String())
	assert.Equal(t, stats.TotalTransactions, stats.Transactions24h)
	assert.Positive(t, stats.TotalTransactions)
}

func TestRecentActivityDescriptions(t *testing.T) {
	f := newDashboardFixture(t)

	feed, err := f.svc.RecentActivity(context.Background(), 0)
	require.NoError(t, err)
	require.NotEmpty(t, feed)

	descriptions := make([]string, 0, len(feed))
	for _, a := range feed {
		descriptions = append(descriptions, a.Description)
		assert.Equal(t, "just now", a.TimeAgo)
	}
	assert.Contains(t, descriptions, "New pledge: 500 USDC")
	assert.Contains(t, descriptions, "Influencer approved: Influencer 2")
	assert.Contains(t, descriptions, "Token launched: INFLU")
}

func TestTimeAgo(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "just now", timeAgo(now, now.Add(-30*time.Second)))
	assert.Equal(t, "1 minute ago", timeAgo(now, now.Add(-time.Minute)))
	assert.Equal(t, "5 minutes ago", timeAgo(now, now.Add(-5*time.Minute)))
	assert.Equal(t, "2 hours ago", timeAgo(now, now.Add(-2*time.Hour)))
	assert.Equal(t, "3 days ago", timeAgo(now, now.Add(-72*time.Hour)))
	assert.Equal(t, "1 week ago", timeAgo(now, now.Add(-10*24*time.Hour)))
	assert.Equal(t, "just now", timeAgo(now, now.Add(time.Hour)))
}

func TestInfluencerDashboard(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()

	stats, err := f.svc.InfluencerStats(ctx, f.influencer)
	require.NoError(t, err)
	assert.Equal(t, "Influencer 1", stats.Influencer.Name)
	assert.False(t, stats.HasToken)
	assert.False(t, stats.ThresholdMet)
	assert.Equal(t, 2, stats.TotalPledgers)
	assert.True(t, stats.TotalETH.Equal(decimal.NewFromInt(1)))
	assert.True(t, stats.TotalUSDC.Equal(decimal.NewFromInt(500)))
	assert.Len(t, stats.RecentActivity, 2)

	pledgers, err := f.svc.InfluencerPledgers(ctx, f.influencer)
	require.NoError(t, err)
	require.Equal(t, 2, pledgers.TotalPledgers)
	names := map[string]string{}
	for _, p := range pledgers.Pledgers {
		names[p.Address] = p.DisplayName
	}
	assert.Equal(t, "inv", names[testutil.Address(100)])
	assert.Equal(t, "", names[testutil.Address(101)])

	_, err = f.svc.InfluencerStats(ctx, f.investor)
	assert.ErrorIs(t, err, ErrNotInfluencer)
}

func TestInvestorPledgesAndPortfolio(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()

	pledges, err := f.svc.InvestorPledges(ctx, f.investor)
	require.NoError(t, err)
	require.Len(t, pledges, 2)
	states := map[string]string{}
	for _, p := range pledges {
		states[p.InfluencerName] = p.Status
	}
	assert.Equal(t, "pending", states["Influencer 1"])
	assert.Equal(t, "launched", states["Influencer 3"])

	portfolio, err := f.svc.InvestorPortfolio(ctx, f.investor)
	require.NoError(t, err)
	require.Equal(t, 1, portfolio.HoldingsCount)
	holding := portfolio.Holdings[0]
	assert.Equal(t, "INFLU", holding.TokenSymbol)
	assert.Equal(t, "Influencer 3", holding.InfluencerName)
	assert.True(t, holding.CostBasis.Equal(decimal.NewFromInt(2000)), holding.CostBasis.String())
	assert.InDelta(t, 700000, holding.Amount.InexactFloat64(), 1)
	assert.InDelta(t, 2000, holding.Value.InexactFloat64(), 1)

	_, err = f.svc.InvestorPledges(ctx, f.influencer)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestInvestorPortfolioSurfacesQuoteErrors(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()

	require.NoError(t, f.db.Migrator().DropTable(&models.TokenQuote{}))

	_, err := f.svc.InvestorPortfolio(ctx, f.investor)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load quote")
}
