package repository

import (
	"context"
	"time"

	"coinfluence/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

// GetTokenByInfluencer retrieves the token launched for an influencer
func (r *Repository) GetTokenByInfluencer(ctx context.Context, influencerID uint) (*models.Token, error) {
	var token models.Token
	err := r.db.WithContext(ctx).Where("influencer_id = ?", influencerID).First(&token).Error
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// UpsertToken writes the token row for an influencer, replacing deployment
// details if one already exists.
func (r *Repository) UpsertToken(ctx context.Context, token *models.Token) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "influencer_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "ticker", "status", "contract_address", "deploy_tx_hash",
			"network", "chain_id", "total_supply", "decimals", "initial_price", "updated_at",
		}),
	}).Create(token).Error
}

// LiquidityUpdate is the pool data recorded once liquidity is provisioned.
type LiquidityUpdate struct {
	PoolAddress string
	TokenID     string
	ETHAmount   decimal.Decimal
	TokenAmount decimal.Decimal
	TxHash      string
	CreatedAt   time.Time
}

// SetTokenLiquidity records the pool on a token and moves it to trading. Zero
// affected rows means the token already had a pool.
func (r *Repository) SetTokenLiquidity(ctx context.Context, tokenID uint, u LiquidityUpdate) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Token{}).
		Where("id = ? AND pool_address IS NULL", tokenID).
		Updates(map[string]interface{}{
			"pool_address":           u.PoolAddress,
			"liquidity_token_id":     u.TokenID,
			"liquidity_eth_amount":   u.ETHAmount,
			"liquidity_token_amount": u.TokenAmount,
			"liquidity_tx_hash":      u.TxHash,
			"liquidity_created_at":   u.CreatedAt,
			"status":                 models.TokenStatusTrading,
			"updated_at":             u.CreatedAt,
		})
	return res.RowsAffected, res.Error
}

// ListTokensForInfluencers maps influencer IDs to their tokens
func (r *Repository) ListTokensForInfluencers(ctx context.Context, ids []uint) (map[uint]models.Token, error) {
	out := make(map[uint]models.Token, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var tokens []models.Token
	if err := r.db.WithContext(ctx).Where("influencer_id IN ?", ids).Find(&tokens).Error; err != nil {
		return nil, err
	}
	for _, t := range tokens {
		out[t.InfluencerID] = t
	}
	return out, nil
}
