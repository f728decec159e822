package repository

import (
	"context"
	"time"

	"coinfluence/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnalyticsSeed holds the values written for a freshly launched token.
type AnalyticsSeed struct {
	Token          models.Token
	InfluencerName string
	Description    string
	Price          decimal.Decimal
	At             time.Time
}

var circulatingShare = decimal.NewFromFloat(0.7)

// SeedTokenAnalytics creates the reference row, the first quote, zeroed
// returns, the first daily stats row and the launch news item for a token.
func (r *Repository) SeedTokenAnalytics(ctx context.Context, seed AnalyticsSeed) error {
	db := r.db.WithContext(ctx)
	token := seed.Token

	ref := models.TokenReference{
		TokenID:         token.ID,
		Symbol:          token.Ticker,
		Name:            token.Name,
		ContractAddress: token.ContractAddress,
		ChainID:         token.ChainID,
		Description:     seed.Description,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"contract_address", "chain_id", "updated_at"}),
	}).Create(&ref).Error
	if err != nil {
		return err
	}

	circulating := token.TotalSupply.Mul(circulatingShare)
	quote := models.TokenQuote{
		TokenID:           token.ID,
		Price:             seed.Price,
		MarketCap:         seed.Price.Mul(circulating),
		CirculatingSupply: circulating,
		Volume24h:         decimal.Zero,
		Change24h:         decimal.Zero,
		TS:                seed.At,
	}
	if err := db.Create(&quote).Error; err != nil {
		return err
	}

	returns := make([]models.TokenReturn, 0, len(models.ReturnHorizons))
	for _, h := range models.ReturnHorizons {
		returns = append(returns, models.TokenReturn{TokenID: token.ID, Horizon: h, ReturnPct: decimal.Zero, UpdatedAt: seed.At})
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_id"}, {Name: "horizon"}},
		DoUpdates: clause.AssignmentColumns([]string{"return_pct", "updated_at"}),
	}).Create(&returns).Error
	if err != nil {
		return err
	}

	day := time.Date(seed.At.Year(), seed.At.Month(), seed.At.Day(), 0, 0, 0, 0, time.UTC)
	stats := models.TokenStatsDaily{
		TokenID:     token.ID,
		Date:        day,
		Holders:     1,
		Top10Pct:    decimal.NewFromInt(30),
		Week52High:  seed.Price,
		Week52Low:   seed.Price,
		AllTimeHigh: seed.Price,
		AllTimeLow:  seed.Price,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"holders"}),
	}).Create(&stats).Error
	if err != nil {
		return err
	}

	news := models.TokenNews{
		TokenID:     token.ID,
		Title:       token.Name + " (" + token.Ticker + ") Launches on CoinFluence",
		Summary:     seed.InfluencerName + " has successfully launched their token " + token.Name + " after meeting their pledge threshold. The token is now available for trading.",
		Source:      "CoinFluence",
		Category:    "press",
		PublishedAt: seed.At,
	}
	return db.Create(&news).Error
}

// hasMaterializedViews reports whether the SQL migrations that create the
// market views apply to this database. They are postgres-only.
func hasMaterializedViews(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// CoinOverview reads the quote row for a token from mv_coin_overview. On
// databases without the materialized views it falls back to the latest
// realtime quote joined with the token reference.
func (r *Repository) CoinOverview(ctx context.Context, tokenID uint) (*models.CoinOverview, error) {
	var row models.CoinOverview
	db := r.db.WithContext(ctx)
	if hasMaterializedViews(db) {
		err := db.Table("mv_coin_overview").Where("token_id = ?", tokenID).Take(&row).Error
		return &row, err
	}

	err := db.Table("token_quotes_realtime AS q").
		Select("q.token_id, r.symbol, r.name, r.contract_address, q.price, q.change_24h, q.volume_24h, q.market_cap, q.ts AS updated_at").
		Joins("JOIN token_reference r ON r.token_id = q.token_id").
		Where("q.token_id = ?", tokenID).
		Order("q.ts DESC").
		Take(&row).Error
	return &row, err
}

// CoinPerformance reads the pivoted returns for a token, with the same
// fallback to token_returns as CoinOverview.
func (r *Repository) CoinPerformance(ctx context.Context, tokenID uint) (*models.CoinPerformance, error) {
	db := r.db.WithContext(ctx)
	var row models.CoinPerformance
	if hasMaterializedViews(db) {
		err := db.Table("mv_coin_performance").Where("token_id = ?", tokenID).Take(&row).Error
		return &row, err
	}

	var returns []models.TokenReturn
	if err := db.Where("token_id = ?", tokenID).Find(&returns).Error; err != nil {
		return nil, err
	}
	if len(returns) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	row.TokenID = tokenID
	for _, ret := range returns {
		switch ret.Horizon {
		case "1D":
			row.Return1D = ret.ReturnPct
		case "5D":
			row.Return5D = ret.ReturnPct
		case "1M":
			row.Return1M = ret.ReturnPct
		case "3M":
			row.Return3M = ret.ReturnPct
		case "6M":
			row.Return6M = ret.ReturnPct
		case "YTD":
			row.ReturnYTD = ret.ReturnPct
		case "1Y":
			row.Return1Y = ret.ReturnPct
		}
	}
	return &row, nil
}

// LatestTokenStats returns the most recent daily stats row for a token
func (r *Repository) LatestTokenStats(ctx context.Context, tokenID uint) (*models.TokenStatsDaily, error) {
	var stats models.TokenStatsDaily
	err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).Order("date DESC").First(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// TokenNews returns a page of the newest news items for a token and the
// total number of items
func (r *Repository) TokenNews(ctx context.Context, tokenID uint, limit, offset int) ([]models.TokenNews, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.TokenNews{}).Where("token_id = ?", tokenID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var news []models.TokenNews
	err := q.Order("published_at DESC, id DESC").Limit(limit).Offset(offset).Find(&news).Error
	return news, total, err
}

// TokenProfile returns the reference row for a token
func (r *Repository) TokenProfile(ctx context.Context, tokenID uint) (*models.TokenReference, error) {
	var ref models.TokenReference
	if err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

// Candles returns up to limit bars from the hourly or daily table, oldest
// first. A non-positive limit returns the full history.
func (r *Repository) Candles(ctx context.Context, tokenID uint, daily bool, limit int) ([]models.Candle, error) {
	table := models.HourlyCandle{}.TableName()
	if daily {
		table = models.DailyCandle{}.TableName()
	}

	q := r.db.WithContext(ctx).Table(table).Where("token_id = ?", tokenID).Order("ts DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var candles []models.Candle
	if err := q.Find(&candles).Error; err != nil {
		return nil, err
	}
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
	return candles, nil
}
