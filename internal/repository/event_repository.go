package repository

import (
	"context"
	"time"

	"coinfluence/internal/models"
)

// AppendEvent adds a row to the lifecycle log. Events are never updated.
func (r *Repository) AppendEvent(ctx context.Context, event *models.PledgeEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(event).Error
}

// RecentEvents returns the newest events across all influencers
func (r *Repository) RecentEvents(ctx context.Context, limit int) ([]models.PledgeEvent, error) {
	var events []models.PledgeEvent
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// EventsForInfluencer returns the lifecycle log of one influencer in order
func (r *Repository) EventsForInfluencer(ctx context.Context, influencerID uint, types ...models.EventType) ([]models.PledgeEvent, error) {
	var events []models.PledgeEvent
	q := r.db.WithContext(ctx).Where("influencer_id = ?", influencerID)
	if len(types) > 0 {
		q = q.Where("event_type IN ?", types)
	}
	err := q.Order("created_at ASC, id ASC").Find(&events).Error
	return events, err
}

// CountEvents counts events of one type for an influencer
func (r *Repository) CountEvents(ctx context.Context, influencerID uint, eventType models.EventType) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.PledgeEvent{}).
		Where("influencer_id = ? AND event_type = ?", influencerID, eventType).
		Count(&n).Error
	return n, err
}
