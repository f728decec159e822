package services

import (
	"context"
	"errors"

	"coinfluence/internal/events"
	"coinfluence/internal/metrics"
	"coinfluence/internal/models"

	"github.com/sirupsen/logrus"
)

// publishEvents fans committed events out to the broker. The event log row is
// the source of truth, so delivery failures are logged and not returned.
func publishEvents(ctx context.Context, pub events.Publisher, log *logrus.Entry, evs ...models.PledgeEvent) {
	for _, event := range evs {
		metrics.RecordEvent(string(event.EventType))
		if err := pub.Publish(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).WithField("event_type", event.EventType).Warn("Failed to publish event")
		}
	}
}
