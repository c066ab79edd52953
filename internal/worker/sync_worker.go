// Package worker handles sync requests delivered over AMQP.
package worker

import (
	"context"
	"errors"
	"time"

	"nettracker/internal/amqp"
	"nettracker/internal/core"
	"nettracker/internal/log"
	"nettracker/internal/services"
)

// DefaultMaxAge is how old a request may be before it is dropped unprocessed.
const DefaultMaxAge = time.Hour

// SyncWorker runs the controller's sync for each request message.
type SyncWorker struct {
	syncer services.Syncer
	maxAge time.Duration
	now    func() time.Time
	logger *log.Logger
}

func NewSyncWorker(syncer services.Syncer, maxAge time.Duration) *SyncWorker {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &SyncWorker{
		syncer: syncer,
		maxAge: maxAge,
		now:    time.Now,
		logger: log.Default(log.ComponentWorker),
	}
}

// HandleSyncRequest processes a single sync request. Sync failures are logged
// and the message is acknowledged, since a sync is never retried
// automatically. Only a cancelled context returns an error, so the message is
// requeued for the next consumer.
func (w *SyncWorker) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	logger := w.logger.With(log.FieldRequestID, msg.RequestID, "source", msg.Source)

	if !msg.RequestedAt.IsZero() && w.now().Sub(msg.RequestedAt) > w.maxAge {
		logger.WarnContext(ctx, "Dropping stale sync request", "requested_at", msg.RequestedAt)
		return nil
	}

	res, err := w.syncer.Sync(ctx, services.SyncRequest{ID: msg.RequestID, Source: msg.Source})
	switch {
	case err == nil:
		logger.InfoContext(ctx, "Sync request handled",
			log.FieldPeriod, res.Period,
			log.FieldKept, res.Kept,
			log.FieldTotal, res.Total)
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, services.ErrSyncInProgress):
		logger.InfoContext(ctx, "Sync already running, request folded into it")
	case errors.Is(err, core.ErrAuth):
		logger.WarnContext(ctx, "Sync request rejected, credential missing or invalid",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeAuth)
	default:
		logger.ErrorContext(ctx, "Sync request failed",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeNetwork)
	}
	return nil
}
