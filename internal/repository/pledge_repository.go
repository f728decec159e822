package repository

import (
	"context"
	"strings"
	"time"

	"coinfluence/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetPledge retrieves the pledge row for a (user, influencer) pair
func (r *Repository) GetPledge(ctx context.Context, userAddress, influencerAddress string) (*models.Pledge, error) {
	var p models.Pledge
	err := r.db.WithContext(ctx).
		Where("user_address = ? AND influencer_address = ?", strings.ToLower(userAddress), strings.ToLower(influencerAddress)).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertPledgeIfAbsent inserts p unless a row already exists for the pair.
// Returns true when a new row was written.
func (r *Repository) InsertPledgeIfAbsent(ctx context.Context, p *models.Pledge) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_address"}, {Name: "influencer_address"}},
		DoNothing: true,
	}).Create(p)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReactivatePledge restarts a withdrawn pledge with fresh amounts. Returns
// true when a withdrawn row was found.
func (r *Repository) ReactivatePledge(ctx context.Context, p *models.Pledge) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Pledge{}).
		Where("user_address = ? AND influencer_address = ? AND has_withdrawn = ?", p.UserAddress, p.InfluencerAddress, true).
		Updates(map[string]interface{}{
			"eth_amount":    p.ETHAmount,
			"usdc_amount":   p.USDCAmount,
			"tx_hash":       p.TxHash,
			"has_withdrawn": false,
			"withdrawn_at":  nil,
			"updated_at":    time.Now(),
		})
	return res.RowsAffected == 1, res.Error
}

// AddToPledge accumulates amounts onto an active pledge
func (r *Repository) AddToPledge(ctx context.Context, p *models.Pledge) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Pledge{}).
		Where("user_address = ? AND influencer_address = ? AND has_withdrawn = ?", p.UserAddress, p.InfluencerAddress, false).
		Updates(map[string]interface{}{
			"eth_amount":  gorm.Expr("eth_amount + ?", p.ETHAmount),
			"usdc_amount": gorm.Expr("usdc_amount + ?", p.USDCAmount),
			"tx_hash":     p.TxHash,
			"updated_at":  time.Now(),
		})
	return res.RowsAffected, res.Error
}

// WithdrawPledge soft-deletes an active pledge, guarded on the amounts the
// caller read so a concurrent top-up is not silently discarded.
func (r *Repository) WithdrawPledge(ctx context.Context, p *models.Pledge, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Pledge{}).
		Where("id = ? AND has_withdrawn = ? AND eth_amount = ? AND usdc_amount = ?", p.ID, false, p.ETHAmount, p.USDCAmount).
		Updates(map[string]interface{}{
			"has_withdrawn": true,
			"withdrawn_at":  at,
			"updated_at":    at,
		})
	return res.RowsAffected, res.Error
}

// ListPledgesByUser returns every pledge made by a wallet, newest first
func (r *Repository) ListPledgesByUser(ctx context.Context, userAddress string) ([]models.Pledge, error) {
	var out []models.Pledge
	err := r.db.WithContext(ctx).
		Where("user_address = ?", strings.ToLower(userAddress)).
		Order("updated_at DESC").
		Find(&out).Error
	return out, err
}

// ListPledgesByInfluencer returns the active pledges for an influencer wallet
func (r *Repository) ListPledgesByInfluencer(ctx context.Context, influencerAddress string) ([]models.Pledge, error) {
	var out []models.Pledge
	err := r.db.WithContext(ctx).
		Where("influencer_address = ? AND has_withdrawn = ?", strings.ToLower(influencerAddress), false).
		Order("eth_amount DESC, usdc_amount DESC").
		Find(&out).Error
	return out, err
}

// PledgeTotals aggregates a set of pledges
type PledgeTotals struct {
	PledgeCount    int64
	UniquePledgers int64
	TotalETH       decimal.Decimal
	TotalUSDC      decimal.Decimal
}

// SumActivePledges totals non-withdrawn pledges, optionally for a single user
func (r *Repository) SumActivePledges(ctx context.Context, userAddress string) (PledgeTotals, error) {
	var row struct {
		PledgeCount    int64
		UniquePledgers int64
		TotalETH       decimal.NullDecimal
		TotalUSDC      decimal.NullDecimal
	}
	q := r.db.WithContext(ctx).Model(&models.Pledge{}).
		Select("COUNT(*) AS pledge_count, COUNT(DISTINCT user_address) AS unique_pledgers, " +
			"COALESCE(SUM(eth_amount), 0) AS total_eth, COALESCE(SUM(usdc_amount), 0) AS total_usdc").
		Where("has_withdrawn = ?", false)
	if userAddress != "" {
		q = q.Where("user_address = ?", strings.ToLower(userAddress))
	}
	if err := q.Scan(&row).Error; err != nil {
		return PledgeTotals{}, err
	}
	return PledgeTotals{
		PledgeCount:    row.PledgeCount,
		UniquePledgers: row.UniquePledgers,
		TotalETH:       row.TotalETH.Decimal,
		TotalUSDC:      row.TotalUSDC.Decimal,
	}, nil
}
