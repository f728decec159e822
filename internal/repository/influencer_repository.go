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

// InfluencerFilter narrows ListInfluencers. Zero values mean "no filter".
type InfluencerFilter struct {
	Status   string
	Category string
	Search   string
	SortBy   string
	Order    string
	Limit    int
	Offset   int
}

var influencerSortColumns = map[string]string{
	"created_at":         "created_at",
	"name":               "name",
	"followers":          "followers_count",
	"followers_count":    "followers_count",
	"total_pledged_eth":  "total_pledged_eth",
	"total_pledged_usdc": "total_pledged_usdc",
	"pledge_count":       "pledge_count",
	"launched_at":        "launched_at",
}

// CreateInfluencer inserts a new influencer
func (r *Repository) CreateInfluencer(ctx context.Context, inf *models.Influencer) error {
	return r.db.WithContext(ctx).Create(inf).Error
}

// GetInfluencerByID retrieves an influencer by primary key
func (r *Repository) GetInfluencerByID(ctx context.Context, id uint) (*models.Influencer, error) {
	var inf models.Influencer
	if err := r.db.WithContext(ctx).First(&inf, id).Error; err != nil {
		return nil, err
	}
	return &inf, nil
}

// GetInfluencerByWallet retrieves an influencer by its lowercase wallet address
func (r *Repository) GetInfluencerByWallet(ctx context.Context, wallet string) (*models.Influencer, error) {
	var inf models.Influencer
	err := r.db.WithContext(ctx).Where("wallet_address = ?", strings.ToLower(wallet)).First(&inf).Error
	if err != nil {
		return nil, err
	}
	return &inf, nil
}

// GetInfluencerByHandle retrieves an influencer by its normalized @handle
func (r *Repository) GetInfluencerByHandle(ctx context.Context, handle string) (*models.Influencer, error) {
	var inf models.Influencer
	err := r.db.WithContext(ctx).Where("LOWER(handle) = ?", strings.ToLower(handle)).First(&inf).Error
	if err != nil {
		return nil, err
	}
	return &inf, nil
}

// GetInfluencerByEmailOrWallet is used to link a user account to its influencer profile
func (r *Repository) GetInfluencerByEmailOrWallet(ctx context.Context, email string, wallet *string) (*models.Influencer, error) {
	var inf models.Influencer
	q := r.db.WithContext(ctx).Where("email = ?", email)
	if wallet != nil && *wallet != "" {
		q = q.Or("wallet_address = ?", strings.ToLower(*wallet))
	}
	if err := q.First(&inf).Error; err != nil {
		return nil, err
	}
	return &inf, nil
}

// ListInfluencers returns a page of influencers and the total matching count
func (r *Repository) ListInfluencers(ctx context.Context, f InfluencerFilter) ([]models.Influencer, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Influencer{})

	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(handle) LIKE ?)", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := influencerSortColumns[f.SortBy]
	if !ok {
		column = "created_at"
	}
	q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: !strings.EqualFold(f.Order, "asc")})

	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var out []models.Influencer
	if err := q.Find(&out).Error; err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// UpdateInfluencerFields applies a column map to one influencer
func (r *Repository) UpdateInfluencerFields(ctx context.Context, id uint, fields map[string]interface{}) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Influencer{}).Where("id = ?", id).Updates(fields)
	return res.RowsAffected, res.Error
}

// DeleteInfluencer removes a not-yet-launched influencer
func (r *Repository) DeleteInfluencer(ctx context.Context, id uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND status <> ?", id, models.InfluencerStatusLive).
		Delete(&models.Influencer{})
	return res.RowsAffected, res.Error
}

// AdjustPledgeAggregates atomically adds the deltas to an influencer's funding
// columns. Pledging is closed for live and rejected influencers, so those rows
// are not touched and zero rows are reported.
func (r *Repository) AdjustPledgeAggregates(
	ctx context.Context,
	influencerID uint,
	ethDelta decimal.Decimal,
	usdcDelta decimal.Decimal,
	countDelta int64,
) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Influencer{}).
		Where("id = ? AND status NOT IN ?", influencerID,
			[]models.InfluencerStatus{models.InfluencerStatusLive, models.InfluencerStatusRejected}).
		Updates(map[string]interface{}{
			"total_pledged_eth":  gorm.Expr("total_pledged_eth + ?", ethDelta),
			"total_pledged_usdc": gorm.Expr("total_pledged_usdc + ?", usdcDelta),
			"pledge_count":       gorm.Expr("pledge_count + ?", countDelta),
			"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
				models.InfluencerStatusPending, models.InfluencerStatusPledging),
			"updated_at": time.Now(),
		})
	return res.RowsAffected, res.Error
}

// ApproveInfluencer flips an unapproved influencer whose threshold is met to
// approved in one statement. Zero affected rows means the guard rejected it.
func (r *Repository) ApproveInfluencer(ctx context.Context, id uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Influencer{}).
		Where("id = ? AND is_approved = ?", id, false).
		Where("status NOT IN ?", []models.InfluencerStatus{models.InfluencerStatusLive, models.InfluencerStatusRejected}).
		Where(models.ThresholdMetSQL).
		Updates(map[string]interface{}{
			"is_approved": true,
			"approved_at": at,
			"status":      models.InfluencerStatusApproved,
			"updated_at":  at,
		})
	return res.RowsAffected, res.Error
}

// RejectInfluencer marks a not-yet-live influencer as rejected
func (r *Repository) RejectInfluencer(ctx context.Context, id uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Influencer{}).
		Where("id = ? AND status NOT IN ?", id,
			[]models.InfluencerStatus{models.InfluencerStatusLive, models.InfluencerStatusRejected}).
		Updates(map[string]interface{}{
			"is_approved": false,
			"status":      models.InfluencerStatusRejected,
			"updated_at":  at,
		})
	return res.RowsAffected, res.Error
}

// LaunchUpdate carries the token linkage written when an influencer goes live.
type LaunchUpdate struct {
	TokenAddress string
	TokenName    string
	TokenSymbol  string
	TotalSupply  decimal.Decimal
	LaunchedAt   time.Time
}

// MarkInfluencerLive moves an approved influencer to live. Zero affected rows
// means it was not approved or has already launched.
func (r *Repository) MarkInfluencerLive(ctx context.Context, id uint, u LaunchUpdate) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Influencer{}).
		Where("id = ? AND is_approved = ? AND status <> ?", id, true, models.InfluencerStatusLive).
		Updates(map[string]interface{}{
			"status":             models.InfluencerStatusLive,
			"launched_at":        u.LaunchedAt,
			"token_address":      u.TokenAddress,
			"token_name":         u.TokenName,
			"token_symbol":       u.TokenSymbol,
			"token_total_supply": u.TotalSupply,
			"updated_at":         u.LaunchedAt,
		})
	return res.RowsAffected, res.Error
}

// SetInfluencerPool records the liquidity pool and opens trading
func (r *Repository) SetInfluencerPool(ctx context.Context, id uint, pool string) error {
	return r.db.WithContext(ctx).Model(&models.Influencer{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"pool_address":   pool,
			"trading_status": models.TradingStatusLive,
			"updated_at":     time.Now(),
		}).Error
}

// PendingApprovals lists unapproved influencers whose threshold has been reached
func (r *Repository) PendingApprovals(ctx context.Context) ([]models.Influencer, error) {
	var out []models.Influencer
	err := r.db.WithContext(ctx).
		Where("is_approved = ? AND status NOT IN ?", false,
			[]models.InfluencerStatus{models.InfluencerStatusLive, models.InfluencerStatusRejected}).
		Where(models.ThresholdMetSQL).
		Order("updated_at DESC").
		Find(&out).Error
	return out, err
}

// UpsertInfluencerByWallet creates or refreshes the pledging configuration for a wallet
func (r *Repository) UpsertInfluencerByWallet(ctx context.Context, inf *models.Influencer) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "pledge_threshold_eth", "pledge_threshold_usdc", "token_name", "token_symbol", "status", "updated_at",
		}),
	}).Create(inf).Error
}

// ReleasePledgeAggregates subtracts a withdrawn pledge from an influencer.
// Withdrawals are closed once the influencer is approved, so approved or live
// rows are left untouched and zero rows are reported.
func (r *Repository) ReleasePledgeAggregates(ctx context.Context, influencerID uint, eth, usdc decimal.Decimal) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Influencer{}).
		Where("id = ? AND is_approved = ? AND status NOT IN ?", influencerID, false,
			[]models.InfluencerStatus{models.InfluencerStatusApproved, models.InfluencerStatusLive}).
		Updates(map[string]interface{}{
			"total_pledged_eth":  gorm.Expr("total_pledged_eth - ?", eth),
			"total_pledged_usdc": gorm.Expr("total_pledged_usdc - ?", usdc),
			"pledge_count":       gorm.Expr("pledge_count - 1"),
			"updated_at":         time.Now(),
		})
	return res.RowsAffected, res.Error
}

// GetInfluencersByWallets maps lowercase wallet addresses to influencers
func (r *Repository) GetInfluencersByWallets(ctx context.Context, wallets []string) (map[string]models.Influencer, error) {
	out := make(map[string]models.Influencer, len(wallets))
	if len(wallets) == 0 {
		return out, nil
	}
	var rows []models.Influencer
	if err := r.db.WithContext(ctx).Where("wallet_address IN ?", wallets).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, inf := range rows {
		if inf.WalletAddress != nil {
			out[*inf.WalletAddress] = inf
		}
	}
	return out, nil
}

// CountInfluencers returns total, live, approved-not-live, awaiting-approval
// and pledging counts in one pass.
func (r *Repository) CountInfluencers(ctx context.Context) (InfluencerCounts, error) {
	var c InfluencerCounts
	err := r.db.WithContext(ctx).Model(&models.Influencer{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS live, "+
				"COALESCE(SUM(CASE WHEN is_approved = ? AND status <> ? THEN 1 ELSE 0 END), 0) AS approved, "+
				"COALESCE(SUM(CASE WHEN is_approved = ? AND status NOT IN (?, ?) AND "+models.ThresholdMetSQL+" THEN 1 ELSE 0 END), 0) AS pending_approval, "+
				"COALESCE(SUM(CASE WHEN status IN (?, ?) THEN 1 ELSE 0 END), 0) AS pledging",
			models.InfluencerStatusLive,
			true, models.InfluencerStatusLive,
			false, models.InfluencerStatusLive, models.InfluencerStatusRejected,
			models.InfluencerStatusPending, models.InfluencerStatusPledging,
		).
		Scan(&c).Error
	return c, err
}

// InfluencerCounts summarizes the influencer directory for the admin dashboard.
type InfluencerCounts struct {
	Total           int64 `json:"total"`
	Live            int64 `json:"live"`
	Approved        int64 `json:"approved"`
	PendingApproval int64 `json:"pendingApproval"`
	Pledging        int64 `json:"pledging"`
}
