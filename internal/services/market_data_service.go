package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"coinfluence/internal/models"
	"coinfluence/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Quote is the coin detail header.
type Quote struct {
	models.CoinOverview
	PriceDirection string `json:"price_direction"`
}

// MiniQuote is the ticker-sized quote.
type MiniQuote struct {
	Price         decimal.Decimal `json:"price"`
	ChangePercent decimal.Decimal `json:"change_percent"`
	LastUpdated   time.Time       `json:"last_updated"`
}

// ChartSummary describes the price move across a chart range.
type ChartSummary struct {
	FirstPrice         decimal.Decimal `json:"first_price"`
	LastPrice          decimal.Decimal `json:"last_price"`
	PriceChange        decimal.Decimal `json:"price_change"`
	PriceChangePercent decimal.Decimal `json:"price_change_percent"`
	High               decimal.Decimal `json:"high"`
	Low                decimal.Decimal `json:"low"`
	AvgVolume          decimal.Decimal `json:"avg_volume"`
}

// Chart is the OHLCV series for one range, oldest bar first.
type Chart struct {
	TokenID    uint            `json:"token_id"`
	Range      string          `json:"range"`
	DataPoints int             `json:"data_points"`
	Data       []models.Candle `json:"data"`
	Summary    ChartSummary    `json:"summary"`
}

// NewsPage is a page of token news.
type NewsPage struct {
	TokenID  uint               `json:"token_id"`
	Articles []models.TokenNews `json:"articles"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
	Total    int64              `json:"total"`
	HasMore  bool               `json:"has_more"`
}

type chartWindow struct {
	daily bool
	limit int
}

// chartRanges maps a range label to its candle table and bar count. ALL reads
// the full daily history.
var chartRanges = map[string]chartWindow{
	"1D":  {daily: false, limit: 24},
	"5D":  {daily: false, limit: 120},
	"1M":  {daily: true, limit: 30},
	"3M":  {daily: true, limit: 90},
	"6M":  {daily: true, limit: 180},
	"1Y":  {daily: true, limit: 365},
	"ALL": {daily: true, limit: 0},
}

// MarketDataService reads the analytics tables populated at token launch
type MarketDataService struct {
	repo *repository.Repository
}

// NewMarketDataService creates a new MarketDataService
func NewMarketDataService(db *gorm.DB) *MarketDataService {
	return &MarketDataService{repo: repository.NewRepository(db)}
}

func notFoundAsTokenData(err error) error {
	if repository.IsNotFound(err) {
		return ErrTokenDataNotFound
	}
	return fmt.Errorf("failed to load market data: %w", err)
}

// Quote returns the latest price row with its direction
func (s *MarketDataService) Quote(ctx context.Context, tokenID uint) (*Quote, error) {
	overview, err := s.repo.CoinOverview(ctx, tokenID)
	if err != nil {
		return nil, notFoundAsTokenData(err)
	}

	direction := "neutral"
	switch overview.Change24h.Sign() {
	case 1:
		direction = "up"
	case -1:
		direction = "down"
	}
	return &Quote{CoinOverview: *overview, PriceDirection: direction}, nil
}

// MiniQuote returns just the price and its 24h change
func (s *MarketDataService) MiniQuote(ctx context.Context, tokenID uint) (*MiniQuote, error) {
	overview, err := s.repo.CoinOverview(ctx, tokenID)
	if err != nil {
		return nil, notFoundAsTokenData(err)
	}
	return &MiniQuote{
		Price:         overview.Price,
		ChangePercent: overview.Change24h,
		LastUpdated:   overview.UpdatedAt,
	}, nil
}

// Performance returns the per-horizon returns of a token
func (s *MarketDataService) Performance(ctx context.Context, tokenID uint) (*models.CoinPerformance, error) {
	perf, err := s.repo.CoinPerformance(ctx, tokenID)
	if err != nil {
		return nil, notFoundAsTokenData(err)
	}
	return perf, nil
}

// Statistics returns the latest daily stats row
func (s *MarketDataService) Statistics(ctx context.Context, tokenID uint) (*models.TokenStatsDaily, error) {
	stats, err := s.repo.LatestTokenStats(ctx, tokenID)
	if err != nil {
		return nil, notFoundAsTokenData(err)
	}
	return stats, nil
}

// Profile returns the reference data of a token
func (s *MarketDataService) Profile(ctx context.Context, tokenID uint) (*models.TokenReference, error) {
	ref, err := s.repo.TokenProfile(ctx, tokenID)
	if err != nil {
		return nil, notFoundAsTokenData(err)
	}
	return ref, nil
}

// News returns a page of news items, newest first
func (s *MarketDataService) News(ctx context.Context, tokenID uint, limit, offset int) (*NewsPage, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}
	news, total, err := s.repo.TokenNews(ctx, tokenID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to load news: %w", err)
	}
	return &NewsPage{
		TokenID:  tokenID,
		Articles: news,
		Limit:    limit,
		Offset:   offset,
		Total:    total,
		HasMore:  int64(offset+limit) < total,
	}, nil
}

// Chart returns the candles for a range label. Unknown labels fall back to 1D.
func (s *MarketDataService) Chart(ctx context.Context, tokenID uint, rangeLabel string) (*Chart, error) {
	label := strings.ToUpper(strings.TrimSpace(rangeLabel))
	window, ok := chartRanges[label]
	if !ok {
		label, window = "1D", chartRanges["1D"]
	}

	candles, err := s.repo.Candles(ctx, tokenID, window.daily, window.limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load chart: %w", err)
	}
	if len(candles) == 0 {
		return nil, ErrTokenDataNotFound
	}

	return &Chart{
		TokenID:    tokenID,
		Range:      label,
		DataPoints: len(candles),
		Data:       candles,
		Summary:    summarize(candles),
	}, nil
}

func summarize(candles []models.Candle) ChartSummary {
	first := candles[0].Close
	last := candles[len(candles)-1].Close
	sum := ChartSummary{
		FirstPrice:         first,
		LastPrice:          last,
		PriceChange:        last.Sub(first).Round(6),
		PriceChangePercent: decimal.Zero,
		High:               first,
		Low:                first,
	}
	if first.IsPositive() {
		sum.PriceChangePercent = last.Sub(first).Div(first).Mul(hundred).Round(2)
	}

	volume := decimal.Zero
	for _, c := range candles {
		if c.Close.GreaterThan(sum.High) {
			sum.High = c.Close
		}
		if c.Close.LessThan(sum.Low) {
			sum.Low = c.Close
		}
		volume = volume.Add(c.Volume)
	}
	sum.AvgVolume = volume.Div(decimal.NewFromInt(int64(len(candles)))).Round(6)
	return sum
}
