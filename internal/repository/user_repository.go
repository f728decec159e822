package repository

import (
	"context"
	"strings"
	"time"

	"coinfluence/internal/models"
)

// UserFilter narrows ListUsers for the admin user table.
type UserFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// CreateUser inserts a new user
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

// GetUserByID retrieves a user by ID
func (r *Repository) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByIdentity resolves an authenticated subject by email, wallet or
// external uid, in that order of preference.
func (r *Repository) GetUserByIdentity(ctx context.Context, email, subject string) (*models.User, error) {
	var user models.User
	q := r.db.WithContext(ctx).Model(&models.User{})
	switch {
	case email != "":
		q = q.Where("LOWER(email) = ?", strings.ToLower(email))
	case strings.HasPrefix(subject, "0x"):
		q = q.Where("wallet_address = ?", strings.ToLower(subject))
	default:
		q = q.Where("firebase_uid = ?", subject)
	}
	if err := q.First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns a page of users and the total matching count
func (r *Repository) ListUsers(ctx context.Context, f UserFilter) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Search != "" {
		like := "%" + strings.ToLower(f.Search) + "%"
		q = q.Where("(LOWER(email) LIKE ? OR LOWER(display_name) LIKE ?)", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	var users []models.User
	if err := q.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// CountUsersByStatus returns the number of users at each status
func (r *Repository) CountUsersByStatus(ctx context.Context) (map[models.UserStatus]int64, error) {
	var rows []struct {
		Status models.UserStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.UserStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// UpdateUserStatus changes a user's status and records the transition in
// user_status_history. Callers wrap it in a transaction.
func (r *Repository) UpdateUserStatus(
	ctx context.Context,
	user *models.User,
	status models.UserStatus,
	changedBy string,
	reason string,
) error {
	now := time.Now()
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]interface{}{
			"status":            status,
			"status_updated_by": changedBy,
			"status_updated_at": now,
			"updated_at":        now,
		}).Error
	if err != nil {
		return err
	}

	history := models.UserStatusHistory{
		UserID:    user.ID,
		OldStatus: user.Status,
		NewStatus: status,
		ChangedBy: changedBy,
		Reason:    reason,
		CreatedAt: now,
	}
	if err := r.db.WithContext(ctx).Create(&history).Error; err != nil {
		return err
	}

	user.Status = status
	user.StatusUpdatedBy = changedBy
	user.StatusUpdatedAt = &now
	return nil
}

// StatusHistory returns a user's status transitions, newest first
func (r *Repository) StatusHistory(ctx context.Context, userID uint) ([]models.UserStatusHistory, error) {
	var out []models.UserStatusHistory
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}
