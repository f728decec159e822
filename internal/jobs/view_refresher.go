package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coinfluence/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// MarketViews are the materialized views behind the market data endpoints.
// Each has a unique index, so they can be refreshed concurrently.
var MarketViews = []string{"mv_coin_overview", "mv_coin_performance"}

// ViewRefresher periodically refreshes the market materialized views
type ViewRefresher struct {
	db      *sql.DB
	views   []string
	timeout time.Duration
	cron    *cron.Cron
	log     *logrus.Entry
}

// NewViewRefresher creates a refresher for views, defaulting to MarketViews
func NewViewRefresher(db *sql.DB, views ...string) *ViewRefresher {
	if len(views) == 0 {
		views = MarketViews
	}
	return &ViewRefresher{
		db:      db,
		views:   views,
		timeout: 2 * time.Minute,
		cron:    cron.New(cron.WithSeconds()),
		log:     logrus.WithField("component", "view_refresher"),
	}
}

// RefreshAll refreshes every view. A failing view does not stop the others;
// all failures are returned together.
func (r *ViewRefresher) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, view := range r.views {
		start := time.Now()
		err := r.refresh(ctx, view)
		metrics.RecordViewRefresh(view, err == nil)
		if err != nil {
			r.log.WithError(err).WithField("view", view).Error("Materialized view refresh failed")
			errs = append(errs, err)
			continue
		}
		r.log.WithFields(logrus.Fields{"view": view, "duration": time.Since(start)}).Debug("Materialized view refreshed")
	}
	return errors.Join(errs...)
}

func (r *ViewRefresher) refresh(ctx context.Context, view string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// view names come from the fixed list above, never from user input
	if _, err := r.db.ExecContext(ctx, "REFRESH MATERIALIZED VIEW CONCURRENTLY "+view); err != nil {
		return fmt.Errorf("failed to refresh %s: %w", view, err)
	}
	return nil
}

// Start schedules RefreshAll using a six-field cron spec (seconds first)
func (r *ViewRefresher) Start(schedule string) error {
	_, err := r.cron.AddFunc(schedule, func() {
		_ = r.RefreshAll(context.Background())
	})
	if err != nil {
		return fmt.Errorf("invalid view refresh schedule %q: %w", schedule, err)
	}

	r.cron.Start()
	r.log.WithField("schedule", schedule).Info("Materialized view refresher started")
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish
func (r *ViewRefresher) Stop() {
	<-r.cron.Stop().Done()
	r.log.Info("Materialized view refresher stopped")
}
