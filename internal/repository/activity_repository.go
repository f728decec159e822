package repository

import (
	"context"
	"time"

	"coinfluence/internal/models"
)

// ActivityCounts are the rolling-window figures shown on platform dashboards.
type ActivityCounts struct {
	NewUsers         int64
	ActivePledgers   int64
	Events           int64
	EventsTotal      int64
	ActivePledges    int64
	WithdrawnPledges int64
}

// CountActivitySince returns activity counters for the window starting at since
func (r *Repository) CountActivitySince(ctx context.Context, since time.Time) (ActivityCounts, error) {
	var c ActivityCounts
	db := r.db.WithContext(ctx)

	if err := db.Model(&models.User{}).Where("created_at > ?", since).Count(&c.NewUsers).Error; err != nil {
		return c, err
	}
	if err := db.Model(&models.Pledge{}).
		Where("updated_at > ?", since).
		Distinct("user_address").
		Count(&c.ActivePledgers).Error; err != nil {
		return c, err
	}
	if err := db.Model(&models.PledgeEvent{}).Where("created_at > ?", since).Count(&c.Events).Error; err != nil {
		return c, err
	}
	if err := db.Model(&models.PledgeEvent{}).Count(&c.EventsTotal).Error; err != nil {
		return c, err
	}
	if err := db.Model(&models.Pledge{}).Where("has_withdrawn = ?", false).Count(&c.ActivePledges).Error; err != nil {
		return c, err
	}
	if err := db.Model(&models.Pledge{}).Where("has_withdrawn = ?", true).Count(&c.WithdrawnPledges).Error; err != nil {
		return c, err
	}
	return c, nil
}

// UsersByWallets maps lowercase wallet addresses to users
func (r *Repository) UsersByWallets(ctx context.Context, wallets []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(wallets))
	if len(wallets) == 0 {
		return out, nil
	}
	var rows []models.User
	if err := r.db.WithContext(ctx).Where("wallet_address IN ?", wallets).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, u := range rows {
		if u.WalletAddress != nil {
			out[*u.WalletAddress] = u
		}
	}
	return out, nil
}
