package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TokenStatus string

const (
	TokenStatusLive    TokenStatus = "live"
	TokenStatusTrading TokenStatus = "trading"
)

const (
	DefaultTokenSupply   = 1000000
	DefaultTokenDecimals = 18
)

// Token is the deployed ERC-20 for a launched influencer, one row per influencer.
type Token struct {
	ID                   uint             `gorm:"primaryKey" json:"id"`
	InfluencerID         uint             `gorm:"uniqueIndex;not null" json:"influencer_id"`
	Influencer           *Influencer      `gorm:"foreignKey:InfluencerID" json:"influencer,omitempty"`
	Name                 string           `gorm:"size:255;not null" json:"name"`
	Ticker               string           `gorm:"size:20;not null;index" json:"ticker"`
	Status               TokenStatus      `gorm:"size:20;not null;default:live;index" json:"status"`
	ContractAddress      string           `gorm:"size:42;not null;uniqueIndex" json:"contract_address"`
	DeployTxHash         string           `gorm:"size:66" json:"deploy_tx_hash"`
	Network              string           `gorm:"size:50;not null" json:"network"`
	ChainID              int64            `gorm:"not null" json:"chain_id"`
	TotalSupply          decimal.Decimal  `gorm:"type:decimal(36,0);not null" json:"total_supply"`
	Decimals             int              `gorm:"not null;default:18" json:"decimals"`
	InitialPrice         decimal.Decimal  `gorm:"type:decimal(36,18);not null;default:0" json:"initial_price"`
	PoolAddress          *string          `gorm:"size:42" json:"pool_address,omitempty"`
	LiquidityTokenID     *string          `gorm:"size:100" json:"liquidity_token_id,omitempty"`
	LiquidityETHAmount   *decimal.Decimal `gorm:"column:liquidity_eth_amount;type:decimal(36,18)" json:"liquidity_eth_amount,omitempty"`
	LiquidityTokenAmount *decimal.Decimal `gorm:"type:decimal(36,0)" json:"liquidity_token_amount,omitempty"`
	LiquidityCreatedAt   *time.Time       `json:"liquidity_created_at,omitempty"`
	LiquidityTxHash      *string          `gorm:"size:66" json:"liquidity_tx_hash,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

func (Token) TableName() string {
	return "tokens"
}

// CreateTokenRequest is the body of POST .../influencers/:id/create-token
type CreateTokenRequest struct {
	TokenAddress string          `json:"tokenAddress" binding:"required,eth_addr"`
	TxHash       string          `json:"txHash" binding:"required,len=66,startswith=0x,hexadecimal"`
	TokenName    string          `json:"tokenName"`
	TokenSymbol  string          `json:"tokenSymbol"`
	TotalSupply  decimal.Decimal `json:"totalSupply"`
	Network      string          `json:"network"`
}

// CreateLiquidityRequest optionally overrides the per-network liquidity defaults.
type CreateLiquidityRequest struct {
	Network         string          `json:"network"`
	ETHAmount       decimal.Decimal `json:"ethAmount"`
	TokenPercentage int             `json:"tokenPercentage"`
}
