package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReturnHorizons are the performance windows seeded for every new token.
var ReturnHorizons = []string{"1D", "5D", "1M", "3M", "6M", "YTD", "1Y"}

type TokenReference struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TokenID         uint      `gorm:"uniqueIndex;not null" json:"token_id"`
	Symbol          string    `gorm:"size:20;not null" json:"symbol"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	ContractAddress string    `gorm:"size:42" json:"contract_address"`
	ChainID         int64     `json:"chain_id"`
	Description     string    `gorm:"type:text" json:"description"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (TokenReference) TableName() string {
	return "token_reference"
}

type TokenQuote struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	TokenID           uint            `gorm:"not null;index" json:"token_id"`
	Price             decimal.Decimal `gorm:"type:decimal(36,18);not null" json:"price"`
	MarketCap         decimal.Decimal `gorm:"type:decimal(36,6);not null;default:0" json:"market_cap"`
	CirculatingSupply decimal.Decimal `gorm:"type:decimal(36,0);not null;default:0" json:"circulating_supply"`
	Volume24h         decimal.Decimal `gorm:"column:volume_24h;type:decimal(36,6);not null;default:0" json:"volume_24h"`
	Change24h         decimal.Decimal `gorm:"column:change_24h;type:decimal(12,4);not null;default:0" json:"change_24h"`
	TS                time.Time       `gorm:"column:ts;not null;index" json:"ts"`
}

func (TokenQuote) TableName() string {
	return "token_quotes_realtime"
}

type TokenReturn struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	TokenID   uint            `gorm:"not null;uniqueIndex:idx_token_returns_horizon" json:"token_id"`
	Horizon   string          `gorm:"size:10;not null;uniqueIndex:idx_token_returns_horizon" json:"horizon"`
	ReturnPct decimal.Decimal `gorm:"type:decimal(12,4);not null;default:0" json:"return_pct"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (TokenReturn) TableName() string {
	return "token_returns"
}

type TokenStatsDaily struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	TokenID       uint             `gorm:"not null;uniqueIndex:idx_token_stats_date" json:"token_id"`
	Date          time.Time        `gorm:"type:date;not null;uniqueIndex:idx_token_stats_date" json:"date"`
	Holders       int64            `gorm:"not null;default:0" json:"holders"`
	Top10Pct      decimal.Decimal  `gorm:"column:top10_pct;type:decimal(6,2);not null;default:0" json:"top10_pct"`
	AvgVolume10d  decimal.Decimal  `gorm:"column:avg_volume_10d;type:decimal(36,6);default:0" json:"avg_volume_10d"`
	AvgVolume30d  decimal.Decimal  `gorm:"column:avg_volume_30d;type:decimal(36,6);default:0" json:"avg_volume_30d"`
	Week52High    decimal.Decimal  `gorm:"column:week_52_high;type:decimal(36,18);default:0" json:"week_52_high"`
	Week52Low     decimal.Decimal  `gorm:"column:week_52_low;type:decimal(36,18);default:0" json:"week_52_low"`
	AllTimeHigh   decimal.Decimal  `gorm:"type:decimal(36,18);default:0" json:"all_time_high"`
	AllTimeLow    decimal.Decimal  `gorm:"type:decimal(36,18);default:0" json:"all_time_low"`
	Volatility30d *decimal.Decimal `gorm:"column:volatility_30d;type:decimal(12,6)" json:"volatility_30d,omitempty"`
}

func (TokenStatsDaily) TableName() string {
	return "token_stats_daily"
}

type TokenNews struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TokenID     uint      `gorm:"not null;index" json:"token_id"`
	Title       string    `gorm:"size:500;not null" json:"title"`
	Summary     string    `gorm:"type:text" json:"summary"`
	Source      string    `gorm:"size:100" json:"source"`
	Category    string    `gorm:"size:50" json:"category"`
	URL         string    `gorm:"size:500" json:"url"`
	PublishedAt time.Time `gorm:"not null;index" json:"published_at"`
}

func (TokenNews) TableName() string {
	return "token_news"
}

// Candle is one OHLCV bar. The same shape backs the hourly and daily tables.
type Candle struct {
	TokenID   uint            `gorm:"primaryKey" json:"token_id"`
	TS        time.Time       `gorm:"column:ts;primaryKey" json:"ts"`
	Open      decimal.Decimal `gorm:"column:open_price;type:decimal(36,18)" json:"open"`
	High      decimal.Decimal `gorm:"column:high_price;type:decimal(36,18)" json:"high"`
	Low       decimal.Decimal `gorm:"column:low_price;type:decimal(36,18)" json:"low"`
	Close     decimal.Decimal `gorm:"column:close_price;type:decimal(36,18)" json:"close"`
	Volume    decimal.Decimal `gorm:"type:decimal(36,18);default:0" json:"volume"`
	VolumeUSD decimal.Decimal `gorm:"column:volume_usd;type:decimal(36,6);default:0" json:"volume_usd"`
}

type HourlyCandle struct{ Candle }

func (HourlyCandle) TableName() string { return "ohlcv_1h" }

type DailyCandle struct{ Candle }

func (DailyCandle) TableName() string { return "ohlcv_1d" }

// CoinOverview mirrors a row of the mv_coin_overview materialized view.
type CoinOverview struct {
	TokenID         uint            `json:"token_id"`
	Symbol          string          `json:"symbol"`
	Name            string          `json:"name"`
	ContractAddress string          `json:"contract_address"`
	Price           decimal.Decimal `json:"price"`
	Change24h       decimal.Decimal `gorm:"column:change_24h" json:"change_24h"`
	Volume24h       decimal.Decimal `gorm:"column:volume_24h" json:"volume_24h"`
	MarketCap       decimal.Decimal `json:"market_cap"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// CoinPerformance mirrors a row of the mv_coin_performance materialized view.
type CoinPerformance struct {
	TokenID   uint            `json:"token_id"`
	Return1D  decimal.Decimal `gorm:"column:return_1d" json:"return_1d"`
	Return5D  decimal.Decimal `gorm:"column:return_5d" json:"return_5d"`
	Return1M  decimal.Decimal `gorm:"column:return_1m" json:"return_1m"`
	Return3M  decimal.Decimal `gorm:"column:return_3m" json:"return_3m"`
	Return6M  decimal.Decimal `gorm:"column:return_6m" json:"return_6m"`
	ReturnYTD decimal.Decimal `gorm:"column:return_ytd" json:"return_ytd"`
	Return1Y  decimal.Decimal `gorm:"column:return_1y" json:"return_1y"`
}
