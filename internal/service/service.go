package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/aithera/therapy-server-go/internal/jobs"
	"github.com/aithera/therapy-server-go/internal/sse"
)

// TaskEnqueuer hands work to the background worker pool.
type TaskEnqueuer interface {
	Enqueue(ctx context.Context, kind jobs.Kind, payload any) error
}

// EventPublisher pushes live events to a user's open streams.
type EventPublisher = sse.Publisher

// publish sends a best-effort live event; delivery failures are only logged
// because clients can always fall back to polling.
func publish(ctx context.Context, pub EventPublisher, userID int64, eventType string, data any) {
	if pub == nil {
		return
	}
	event, err := sse.NewEvent(eventType, data)
	if err == nil {
		err = pub.Publish(ctx, userID, event)
	}
	if err != nil {
		log.Warn().Err(err).
			Int64("userId", userID).
			Str("eventType", eventType).
			Msg("failed to publish event")
	}
}
