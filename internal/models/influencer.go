package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InfluencerStatus string

const (
	InfluencerStatusPending  InfluencerStatus = "pending"
	InfluencerStatusPledging InfluencerStatus = "pledging"
	InfluencerStatusApproved InfluencerStatus = "approved"
	InfluencerStatusLive     InfluencerStatus = "live"
	InfluencerStatusRejected InfluencerStatus = "rejected"
)

// TradingStatusLive is set once a liquidity pool exists for the influencer token.
const TradingStatusLive = "live"

// Influencer is a creator that users pledge toward. Funding aggregates are
// maintained by the pledge service in the same transaction as the pledge row.
type Influencer struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	Name           string  `gorm:"size:255;not null" json:"name"`
	Handle         string  `gorm:"size:100;uniqueIndex;not null" json:"handle"`
	Email          *string `gorm:"size:255;uniqueIndex" json:"email,omitempty"`
	WalletAddress  *string `gorm:"size:42;uniqueIndex" json:"wallet_address,omitempty"`
	Category       string  `gorm:"size:100;index" json:"category"`
	Description    string  `gorm:"type:text" json:"description"`
	AvatarURL      string  `gorm:"size:500" json:"avatar_url"`
	FollowersCount int64   `gorm:"default:0" json:"followers_count"`
	Verified       bool    `gorm:"default:false" json:"verified"`

	PledgeThresholdETH  decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"pledge_threshold_eth"`
	PledgeThresholdUSDC decimal.Decimal `gorm:"type:decimal(36,6);not null;default:0" json:"pledge_threshold_usdc"`
	TotalPledgedETH     decimal.Decimal `gorm:"type:decimal(36,18);not null;default:0" json:"total_pledged_eth"`
	TotalPledgedUSDC    decimal.Decimal `gorm:"type:decimal(36,6);not null;default:0" json:"total_pledged_usdc"`
	PledgeCount         int64           `gorm:"not null;default:0" json:"pledge_count"`

	IsApproved bool             `gorm:"not null;default:false;index" json:"is_approved"`
	ApprovedAt *time.Time       `json:"approved_at,omitempty"`
	Status     InfluencerStatus `gorm:"size:20;not null;default:pending;index" json:"status"`
	LaunchedAt *time.Time       `json:"launched_at,omitempty"`

	TokenAddress     *string          `gorm:"size:42" json:"token_address,omitempty"`
	TokenName        *string          `gorm:"size:255" json:"token_name,omitempty"`
	TokenSymbol      *string          `gorm:"size:20" json:"token_symbol,omitempty"`
	TokenTotalSupply *decimal.Decimal `gorm:"type:decimal(36,0)" json:"token_total_supply,omitempty"`
	PoolAddress      *string          `gorm:"size:42" json:"pool_address,omitempty"`
	TradingStatus    string           `gorm:"size:20" json:"trading_status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Influencer) TableName() string {
	return "influencers"
}

// ThresholdMet reports whether either configured (nonzero) threshold has been reached.
func (i *Influencer) ThresholdMet() bool {
	if i.PledgeThresholdETH.IsPositive() && i.TotalPledgedETH.GreaterThanOrEqual(i.PledgeThresholdETH) {
		return true
	}
	if i.PledgeThresholdUSDC.IsPositive() && i.TotalPledgedUSDC.GreaterThanOrEqual(i.PledgeThresholdUSDC) {
		return true
	}
	return false
}

// Progress returns the larger of the ETH and USDC funding percentages.
func (i *Influencer) Progress() decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	progress := decimal.Zero
	if i.PledgeThresholdETH.IsPositive() {
		progress = i.TotalPledgedETH.Div(i.PledgeThresholdETH).Mul(hundred)
	}
	if i.PledgeThresholdUSDC.IsPositive() {
		usdc := i.TotalPledgedUSDC.Div(i.PledgeThresholdUSDC).Mul(hundred)
		if usdc.GreaterThan(progress) {
			progress = usdc
		}
	}
	return progress.Round(2)
}

// CardState is the lifecycle label shown on influencer cards.
func (i *Influencer) CardState() string {
	switch {
	case i.Status == InfluencerStatusLive:
		return "live"
	case i.IsApproved:
		return "approved"
	case i.ThresholdMet():
		return "threshold_met"
	default:
		return "pledging"
	}
}

// ThresholdMetSQL is the approval predicate expressed over the influencers columns.
const ThresholdMetSQL = "((pledge_threshold_eth > 0 AND total_pledged_eth >= pledge_threshold_eth) OR " +
	"(pledge_threshold_usdc > 0 AND total_pledged_usdc >= pledge_threshold_usdc))"

// CreateInfluencerRequest is the body of POST /api/influencer
type CreateInfluencerRequest struct {
	Name                string          `json:"name" binding:"required"`
	Handle              string          `json:"handle" binding:"required"`
	Email               string          `json:"email" binding:"required"`
	WalletAddress       string          `json:"wallet_address"`
	Category            string          `json:"category"`
	Description         string          `json:"description"`
	AvatarURL           string          `json:"avatar_url"`
	FollowersCount      int64           `json:"followers_count"`
	Verified            bool            `json:"verified"`
	PledgeThresholdETH  decimal.Decimal `json:"pledge_threshold_eth"`
	PledgeThresholdUSDC decimal.Decimal `json:"pledge_threshold_usdc"`
}

// SetupPledgingRequest configures an influencer for pledging by wallet address.
type SetupPledgingRequest struct {
	InfluencerAddress string          `json:"influencerAddress" binding:"required,eth_addr"`
	ETHThreshold      decimal.Decimal `json:"ethThreshold"`
	USDCThreshold     decimal.Decimal `json:"usdcThreshold"`
	TokenName         string          `json:"tokenName" binding:"required"`
	Symbol            string          `json:"symbol" binding:"required"`
	InfluencerName    string          `json:"influencerName" binding:"required"`
}
