package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyETH  Currency = "ETH"
	CurrencyUSDC Currency = "USDC"
)

// Pledge accumulates one user's commitment toward one influencer.
// Withdrawal is a soft delete via HasWithdrawn.
type Pledge struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UserAddress       string          `gorm:"size:42;not null;uniqueIndex:idx_pledges_user_influencer" json:"user_address"`
	InfluencerAddress string          `gorm:"size:42;not null;uniqueIndex:idx_pledges_user_influencer;index" json:"influencer_address"`
	ETHAmount         decimal.Decimal `gorm:"column:eth_amount;type:decimal(36,18);not null;default:0" json:"eth_amount"`
	USDCAmount        decimal.Decimal `gorm:"column:usdc_amount;type:decimal(36,6);not null;default:0" json:"usdc_amount"`
	HasWithdrawn      bool            `gorm:"not null;default:false;index" json:"has_withdrawn"`
	WithdrawnAt       *time.Time      `json:"withdrawn_at,omitempty"`
	TxHash            string          `gorm:"size:66" json:"tx_hash"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (Pledge) TableName() string {
	return "pledges"
}

// PledgeRequest is the body of POST /api/pledge/mock
type PledgeRequest struct {
	UserAddress       string          `json:"userAddress" binding:"required,eth_addr"`
	InfluencerAddress string          `json:"influencerAddress" binding:"required,eth_addr"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency" binding:"required"`
	TxHash            string          `json:"txHash" binding:"omitempty,len=66,startswith=0x,hexadecimal"`
}

// WithdrawRequest is the body of POST /api/pledge/withdraw
type WithdrawRequest struct {
	UserAddress       string `json:"userAddress" binding:"required,eth_addr"`
	InfluencerAddress string `json:"influencerAddress" binding:"required,eth_addr"`
}

// PledgeResponse is the client view of a pledge row.
type PledgeResponse struct {
	ID                uint            `json:"id"`
	UserAddress       string          `json:"userAddress"`
	InfluencerAddress string          `json:"influencerAddress"`
	ETHAmount         decimal.Decimal `json:"ethAmount"`
	USDCAmount        decimal.Decimal `json:"usdcAmount"`
	TxHash            string          `json:"txHash"`
	HasWithdrawn      bool            `json:"hasWithdrawn"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func (p *Pledge) Response() PledgeResponse {
	return PledgeResponse{
		ID:                p.ID,
		UserAddress:       p.UserAddress,
		InfluencerAddress: p.InfluencerAddress,
		ETHAmount:         p.ETHAmount,
		USDCAmount:        p.USDCAmount,
		TxHash:            p.TxHash,
		HasWithdrawn:      p.HasWithdrawn,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}
