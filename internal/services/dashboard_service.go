package services

import (
	"context"
	"fmt"
	"time"

	"coinfluence/internal/models"
	"coinfluence/internal/repository"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// AdminStats is the admin dashboard header.
type AdminStats struct {
	TotalUsers          int64                       `json:"totalUsers"`
	UsersByStatus       map[models.UserStatus]int64 `json:"usersByStatus"`
	NewUsersToday       int64                       `json:"newUsersToday"`
	ActiveUsers24h      int64                       `json:"activeUsers24h"`
	TotalInfluencers    int64                       `json:"totalInfluencers"`
	TotalTokens         int64                       `json:"totalTokens"`
	ApprovedInfluencers int64                       `json:"approvedInfluencers"`
	PendingApprovals    int64                       `json:"pendingApprovals"`
	PledgingInfluencers int64                       `json:"pledgingInfluencers"`
	TotalPledgers       int64                       `json:"totalPledgers"`
	TotalETHPledged     decimal.Decimal             `json:"totalEthPledged"`
	TotalUSDCPledged    decimal.Decimal             `json:"totalUsdcPledged"`
	TotalVolume         decimal.Decimal             `json:"totalVolume"`
	TotalFees           decimal.Decimal             `json:"totalFees"`
}

// PlatformStats extends AdminStats with public platform health figures.
type PlatformStats struct {
	AdminStats
	ActivePledges     int64           `json:"activePledges"`
	WithdrawnPledges  int64           `json:"withdrawnPledges"`
	TotalTransactions int64           `json:"totalTransactions"`
	Transactions24h   int64           `json:"transactions24h"`
	AverageInvestment decimal.Decimal `json:"averageInvestment"`
	SuccessRate       decimal.Decimal `json:"successRate"`
	LastUpdated       time.Time       `json:"lastUpdated"`
}

// Activity is one line of the admin recent-activity feed.
type Activity struct {
	Type        models.EventType `json:"type"`
	Description string           `json:"description"`
	Timestamp   time.Time        `json:"timestamp"`
	TimeAgo     string           `json:"timeAgo"`
	User        string           `json:"user"`
	Amount      *decimal.Decimal `json:"amount"`
}

// InfluencerDashboard is the stats view for a signed-in influencer.
type InfluencerDashboard struct {
	Influencer     models.Influencer    `json:"influencer"`
	HasToken       bool                 `json:"hasToken"`
	Token          *models.Token        `json:"token,omitempty"`
	ThresholdMet   bool                 `json:"thresholdMet"`
	Progress       decimal.Decimal      `json:"progress"`
	TotalPledgers  int                  `json:"totalPledgers"`
	TotalETH       decimal.Decimal      `json:"totalEth"`
	TotalUSDC      decimal.Decimal      `json:"totalUsdc"`
	AverageETH     decimal.Decimal      `json:"averageEth"`
	RecentActivity []models.PledgeEvent `json:"recentActivity"`
}

// Pledger is one row of the influencer pledgers table.
type Pledger struct {
	Address      string          `json:"address"`
	DisplayName  string          `json:"displayName"`
	ETHAmount    decimal.Decimal `json:"ethAmount"`
	USDCAmount   decimal.Decimal `json:"usdcAmount"`
	PledgeDate   time.Time       `json:"pledgeDate"`
	HasWithdrawn bool            `json:"hasWithdrawn"`
}

// PledgerList is the influencer pledgers table with totals.
type PledgerList struct {
	Pledgers      []Pledger       `json:"pledgers"`
	TotalPledgers int             `json:"totalPledgers"`
	TotalETH      decimal.Decimal `json:"totalEth"`
	TotalUSDC     decimal.Decimal `json:"totalUsdc"`
}

// InvestorPledge is a pledge as shown on the investor dashboard.
type InvestorPledge struct {
	InfluencerName    string          `json:"influencerName"`
	InfluencerHandle  string          `json:"influencerHandle"`
	InfluencerAddress string          `json:"influencerAddress"`
	Avatar            string          `json:"avatar"`
	ETHAmount         decimal.Decimal `json:"ethAmount"`
	USDCAmount        decimal.Decimal `json:"usdcAmount"`
	PledgeDate        time.Time       `json:"pledgeDate"`
	Status            string          `json:"status"`
	HasWithdrawn      bool            `json:"hasWithdrawn"`
	TokenAddress      *string         `json:"tokenAddress"`
}

// Holding is an investor position in a launched token. Pledgers are
// allocated tokens at the initial price.
type Holding struct {
	TokenAddress   string          `json:"tokenAddress"`
	TokenSymbol    string          `json:"tokenSymbol"`
	InfluencerName string          `json:"influencerName"`
	Avatar         string          `json:"avatar"`
	Amount         decimal.Decimal `json:"amount"`
	Price          decimal.Decimal `json:"price"`
	Value          decimal.Decimal `json:"value"`
	CostBasis      decimal.Decimal `json:"costBasis"`
	PnL            decimal.Decimal `json:"pnl"`
	PnLPercent     decimal.Decimal `json:"pnlPercent"`
	PurchaseDate   time.Time       `json:"purchaseDate"`
}

// Portfolio is the investor portfolio with summary totals.
type Portfolio struct {
	Holdings        []Holding       `json:"holdings"`
	TotalValue      decimal.Decimal `json:"totalValue"`
	TotalCost       decimal.Decimal `json:"totalCost"`
	TotalPnL        decimal.Decimal `json:"totalPnL"`
	TotalPnLPercent decimal.Decimal `json:"totalPnLPercent"`
	HoldingsCount   int             `json:"holdingsCount"`
}

// DashboardService serves the read-side dashboards
type DashboardService struct {
	repo       *repository.Repository
	ethUSDRate decimal.Decimal
	feePercent decimal.Decimal
	log        *logrus.Entry
	now        func() time.Time
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(db *gorm.DB, ethUSDRate, feePercent decimal.Decimal) *DashboardService {
	return &DashboardService{
		repo:       repository.NewRepository(db),
		ethUSDRate: ethUSDRate,
		feePercent: feePercent,
		log:        logrus.WithField("component", "dashboard_service"),
		now:        time.Now,
	}
}

var hundred = decimal.NewFromInt(100)

// AdminStats aggregates users, influencers and active pledges concurrently
func (s *DashboardService) AdminStats(ctx context.Context) (*AdminStats, error) {
	stats, _, err := s.collect(ctx)
	return stats, err
}

// PlatformStats is the public variant of AdminStats
func (s *DashboardService) PlatformStats(ctx context.Context) (*PlatformStats, error) {
	stats, activity, err := s.collect(ctx)
	if err != nil {
		return nil, err
	}

	out := &PlatformStats{
		AdminStats:        *stats,
		ActivePledges:     activity.ActivePledges,
		WithdrawnPledges:  activity.WithdrawnPledges,
		TotalTransactions: activity.EventsTotal,
		Transactions24h:   activity.Events,
		AverageInvestment: decimal.Zero,
		SuccessRate:       decimal.Zero,
		LastUpdated:       s.now().UTC(),
	}
	if activity.ActivePledges > 0 {
		out.AverageInvestment = stats.TotalVolume.Div(decimal.NewFromInt(activity.ActivePledges)).Round(2)
	}
	if total := activity.ActivePledges + activity.WithdrawnPledges; total > 0 {
		out.SuccessRate = decimal.NewFromInt(activity.ActivePledges).Mul(hundred).Div(decimal.NewFromInt(total)).Round(2)
	}
	return out, nil
}

func (s *DashboardService) collect(ctx context.Context) (*AdminStats, repository.ActivityCounts, error) {
	var (
		users    map[models.UserStatus]int64
		infs     repository.InfluencerCounts
		pledges  repository.PledgeTotals
		activity repository.ActivityCounts
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		users, err = s.repo.CountUsersByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		infs, err = s.repo.CountInfluencers(gctx)
		return err
	})
	g.Go(func() (err error) {
		pledges, err = s.repo.SumActivePledges(gctx, "")
		return err
	})
	g.Go(func() (err error) {
		activity, err = s.repo.CountActivitySince(gctx, s.now().Add(-24*time.Hour))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, activity, fmt.Errorf("failed to load dashboard stats: %w", err)
	}

	var totalUsers int64
	for _, n := range users {
		totalUsers += n
	}
	volume := pledges.TotalETH.Mul(s.ethUSDRate).Add(pledges.TotalUSDC)

	return &AdminStats{
		TotalUsers:          totalUsers,
		UsersByStatus:       users,
		NewUsersToday:       activity.NewUsers,
		ActiveUsers24h:      activity.ActivePledgers,
		TotalInfluencers:    infs.Total,
		TotalTokens:         infs.Live,
		ApprovedInfluencers: infs.Approved,
		PendingApprovals:    infs.PendingApproval,
		PledgingInfluencers: infs.Pledging,
		TotalPledgers:       pledges.UniquePledgers,
		TotalETHPledged:     pledges.TotalETH,
		TotalUSDCPledged:    pledges.TotalUSDC,
		TotalVolume:         volume.Round(2),
		TotalFees:           volume.Mul(s.feePercent).Div(hundred).Round(2),
	}, activity, nil
}

// RecentActivity returns the newest lifecycle events with readable descriptions
func (s *DashboardService) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	evs, err := s.repo.RecentEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent activity: %w", err)
	}

	now := s.now()
	out := make([]Activity, 0, len(evs))
	for _, ev := range evs {
		user := ev.UserAddress
		if user == "" {
			user = "System"
		}
		out = append(out, Activity{
			Type:        ev.EventType,
			Description: describeEvent(ev),
			Timestamp:   ev.CreatedAt,
			TimeAgo:     timeAgo(now, ev.CreatedAt),
			User:        user,
			Amount:      eventAmount(ev),
		})
	}
	return out, nil
}

func eventAmount(ev models.PledgeEvent) *decimal.Decimal {
	raw, ok := ev.EventData["amount"]
	if !ok {
		return nil
	}
	var d decimal.Decimal
	switch v := raw.(type) {
	case string:
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			return nil
		}
		d = parsed
	case float64:
		d = decimal.NewFromFloat(v)
	default:
		return nil
	}
	return &d
}

func eventString(ev models.PledgeEvent, key string) string {
	if v, ok := ev.EventData[key].(string); ok && v != "" {
		return v
	}
	return "Unknown"
}

func describeEvent(ev models.PledgeEvent) string {
	switch ev.EventType {
	case models.EventPledgeCreated:
		if amount := eventAmount(ev); amount != nil {
			return fmt.Sprintf("New pledge: %s %s", amount.String(), eventString(ev, "currency"))
		}
		return "New pledge"
	case models.EventPledgeWithdrawn:
		return "Pledge withdrawn"
	case models.EventApproved:
		return "Influencer approved: " + eventString(ev, "influencer_name")
	case models.EventRejected:
		return "Influencer rejected: " + eventString(ev, "influencer_name")
	case models.EventTokenDeployed:
		return "Token launched: " + eventString(ev, "token_symbol")
	case models.EventLiquidityCreated:
		return "Liquidity pool created"
	case models.EventLiquidityFailed:
		return "Liquidity automation failed"
	default:
		return fmt.Sprintf("%s event", ev.EventType)
	}
}

func timeAgo(now, t time.Time) string {
	if now.Sub(t) < time.Minute {
		return "just now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

func (s *DashboardService) influencerFor(ctx context.Context, user *models.User) (*models.Influencer, error) {
	inf, err := s.repo.GetInfluencerByEmailOrWallet(ctx, user.Email, user.WalletAddress)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrNotInfluencer
		}
		return nil, fmt.Errorf("failed to load influencer profile: %w", err)
	}
	return inf, nil
}

// InfluencerStats returns funding progress, token and recent events for the
// influencer profile linked to user.
func (s *DashboardService) InfluencerStats(ctx context.Context, user *models.User) (*InfluencerDashboard, error) {
	inf, err := s.influencerFor(ctx, user)
	if err != nil {
		return nil, err
	}

	out := &InfluencerDashboard{
		Influencer:   *inf,
		ThresholdMet: inf.ThresholdMet(),
		Progress:     inf.Progress(),
		TotalETH:     decimal.Zero,
		TotalUSDC:    decimal.Zero,
		AverageETH:   decimal.Zero,
	}

	var pledges []models.Pledge
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		token, err := s.repo.GetTokenByInfluencer(gctx, inf.ID)
		if err != nil {
			if repository.IsNotFound(err) {
				return nil
			}
			return err
		}
		out.Token = token
		out.HasToken = true
		return nil
	})
	g.Go(func() (err error) {
		if inf.WalletAddress == nil {
			return nil
		}
		pledges, err = s.repo.ListPledgesByInfluencer(gctx, *inf.WalletAddress)
		return err
	})
	g.Go(func() error {
		evs, err := s.repo.EventsForInfluencer(gctx, inf.ID)
		if err != nil {
			return err
		}
		if len(evs) > 20 {
			evs = evs[len(evs)-20:]
		}
		out.RecentActivity = evs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load influencer stats: %w", err)
	}

	for _, p := range pledges {
		out.TotalETH = out.TotalETH.Add(p.ETHAmount)
		out.TotalUSDC = out.TotalUSDC.Add(p.USDCAmount)
	}
	out.TotalPledgers = len(pledges)
	if len(pledges) > 0 {
		out.AverageETH = out.TotalETH.Div(decimal.NewFromInt(int64(len(pledges)))).Round(6)
	}
	return out, nil
}

// InfluencerPledgers lists the active pledgers of the influencer linked to user
func (s *DashboardService) InfluencerPledgers(ctx context.Context, user *models.User) (*PledgerList, error) {
	inf, err := s.influencerFor(ctx, user)
	if err != nil {
		return nil, err
	}
	out := &PledgerList{Pledgers: []Pledger{}, TotalETH: decimal.Zero, TotalUSDC: decimal.Zero}
	if inf.WalletAddress == nil {
		return out, nil
	}

	pledges, err := s.repo.ListPledgesByInfluencer(ctx, *inf.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to load pledgers: %w", err)
	}
	wallets := make([]string, 0, len(pledges))
	for _, p := range pledges {
		wallets = append(wallets, p.UserAddress)
	}
	users, err := s.repo.UsersByWallets(ctx, wallets)
	if err != nil {
		return nil, fmt.Errorf("failed to load pledger profiles: %w", err)
	}

	for _, p := range pledges {
		out.Pledgers = append(out.Pledgers, Pledger{
			Address:      p.UserAddress,
			DisplayName:  users[p.UserAddress].DisplayName,
			ETHAmount:    p.ETHAmount,
			USDCAmount:   p.USDCAmount,
			PledgeDate:   p.CreatedAt,
			HasWithdrawn: p.HasWithdrawn,
		})
		out.TotalETH = out.TotalETH.Add(p.ETHAmount)
		out.TotalUSDC = out.TotalUSDC.Add(p.USDCAmount)
	}
	out.TotalPledgers = len(out.Pledgers)
	return out, nil
}

func (s *DashboardService) walletOf(user *models.User) (string, error) {
	if user.WalletAddress == nil || *user.WalletAddress == "" {
		return "", fmt.Errorf("%w: connect a wallet first", ErrValidation)
	}
	return *user.WalletAddress, nil
}

// InvestorPledges lists the pledges of the signed-in investor with the
// lifecycle state of each influencer.
func (s *DashboardService) InvestorPledges(ctx context.Context, user *models.User) ([]InvestorPledge, error) {
	wallet, err := s.walletOf(user)
	if err != nil {
		return nil, err
	}
	pledges, err := s.repo.ListPledgesByUser(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to load pledges: %w", err)
	}
	infs, err := s.repo.GetInfluencersByWallets(ctx, influencerWallets(pledges))
	if err != nil {
		return nil, fmt.Errorf("failed to load influencers: %w", err)
	}

	out := make([]InvestorPledge, 0, len(pledges))
	for _, p := range pledges {
		inf, ok := infs[p.InfluencerAddress]
		if !ok {
			continue
		}
		out = append(out, InvestorPledge{
			InfluencerName:    inf.Name,
			InfluencerHandle:  inf.Handle,
			InfluencerAddress: p.InfluencerAddress,
			Avatar:            inf.AvatarURL,
			ETHAmount:         p.ETHAmount,
			USDCAmount:        p.USDCAmount,
			PledgeDate:        p.CreatedAt,
			Status:            pledgeState(&inf),
			HasWithdrawn:      p.HasWithdrawn,
			TokenAddress:      inf.TokenAddress,
		})
	}
	return out, nil
}

func pledgeState(inf *models.Influencer) string {
	switch {
	case inf.LaunchedAt != nil || inf.Status == models.InfluencerStatusLive:
		return "launched"
	case inf.IsApproved:
		return "approved"
	default:
		return "pending"
	}
}

func influencerWallets(pledges []models.Pledge) []string {
	seen := make(map[string]bool, len(pledges))
	out := make([]string, 0, len(pledges))
	for _, p := range pledges {
		if !seen[p.InfluencerAddress] {
			seen[p.InfluencerAddress] = true
			out = append(out, p.InfluencerAddress)
		}
	}
	return out
}

// InvestorPortfolio values the investor's active pledges in launched tokens
// at the latest quote, falling back to the initial price.
func (s *DashboardService) InvestorPortfolio(ctx context.Context, user *models.User) (*Portfolio, error) {
	wallet, err := s.walletOf(user)
	if err != nil {
		return nil, err
	}
	pledges, err := s.repo.ListPledgesByUser(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to load pledges: %w", err)
	}
	infs, err := s.repo.GetInfluencersByWallets(ctx, influencerWallets(pledges))
	if err != nil {
		return nil, fmt.Errorf("failed to load influencers: %w", err)
	}

	ids := make([]uint, 0, len(infs))
	for _, inf := range infs {
		if inf.Status == models.InfluencerStatusLive {
			ids = append(ids, inf.ID)
		}
	}
	tokens, err := s.repo.ListTokensForInfluencers(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokens: %w", err)
	}

	out := &Portfolio{Holdings: []Holding{}}
	for _, p := range pledges {
		if p.HasWithdrawn {
			continue
		}
		inf, ok := infs[p.InfluencerAddress]
		if !ok {
			continue
		}
		token, ok := tokens[inf.ID]
		if !ok || !token.InitialPrice.IsPositive() {
			continue
		}

		price := token.InitialPrice
		quote, err := s.repo.CoinOverview(ctx, token.ID)
		switch {
		case err == nil && quote.Price.IsPositive():
			price = quote.Price
		case err != nil && !repository.IsNotFound(err):
			return nil, fmt.Errorf("failed to load quote for token %d: %w", token.ID, err)
		}
		cost := p.ETHAmount.Mul(s.ethUSDRate).Add(p.USDCAmount)
		amount := cost.Div(token.InitialPrice).Floor()
		value := amount.Mul(price)
		pnl := value.Sub(cost)
		pct := decimal.Zero
		if cost.IsPositive() {
			pct = pnl.Div(cost).Mul(hundred).Round(2)
		}

		out.Holdings = append(out.Holdings, Holding{
			TokenAddress:   token.ContractAddress,
			TokenSymbol:    token.Ticker,
			InfluencerName: inf.Name,
			Avatar:         inf.AvatarURL,
			Amount:         amount,
			Price:          price,
			Value:          value.Round(2),
			CostBasis:      cost.Round(2),
			PnL:            pnl.Round(2),
			PnLPercent:     pct,
			PurchaseDate:   p.CreatedAt,
		})
		out.TotalValue = out.TotalValue.Add(value)
		out.TotalCost = out.TotalCost.Add(cost)
	}

	out.TotalPnL = out.TotalValue.Sub(out.TotalCost).Round(2)
	if out.TotalCost.IsPositive() {
		out.TotalPnLPercent = out.TotalPnL.Div(out.TotalCost).Mul(hundred).Round(2)
	}
	out.TotalValue = out.TotalValue.Round(2)
	out.TotalCost = out.TotalCost.Round(2)
	out.HoldingsCount = len(out.Holdings)
	return out, nil
}
