package repository

import (
	"context"

	"coinfluence/internal/models"
)

// GetIdempotencyKey looks up a previously stored key within a scope
func (r *Repository) GetIdempotencyKey(ctx context.Context, scope, key string) (*models.IdempotencyKey, error) {
	var rec models.IdempotencyKey
	err := r.db.WithContext(ctx).
		Where("scope = ? AND idempotency_key = ?", scope, key).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SaveIdempotencyKey stores the first response produced for a key. A
// concurrent writer with the same key fails with a duplicate error.
func (r *Repository) SaveIdempotencyKey(ctx context.Context, rec *models.IdempotencyKey) error {
	return r.db.WithContext(ctx).Create(rec).Error
}
