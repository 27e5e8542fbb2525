package worker

import (
	"context"
	"log/slog"
	"time"

	"carteira/internal/amqp"
	"carteira/internal/services"
)

// Invalidator drops cached datasets when the refresher announces a new
// snapshot, so the dashboard picks up fresh data before the cache TTL runs
// out.
type Invalidator struct {
	datasets   *services.DatasetService
	amqpClient *amqp.Client
}

func NewInvalidator(datasets *services.DatasetService, amqpClient *amqp.Client) *Invalidator {
	return &Invalidator{
		datasets:   datasets,
		amqpClient: amqpClient,
	}
}

// HandleRefreshMessage processes a single dataset refresh message from AMQP
func (w *Invalidator) HandleRefreshMessage(ctx context.Context, msg *amqp.DatasetRefreshedMessage) error {
	slog.InfoContext(ctx, "Processing dataset refresh message",
		"dataset", msg.Dataset,
		"rows", msg.Rows,
		"fetched_at", msg.FetchedAt.Format(time.RFC3339))

	if _, ok := w.datasets.Spec(msg.Dataset); !ok {
		// Ack and drop: requeueing a message nobody can handle loops forever
		slog.WarnContext(ctx, "Refresh message for unknown dataset, ignoring",
			"dataset", msg.Dataset)
		return nil
	}

	w.datasets.Invalidate(ctx, msg.Dataset)
	return nil
}

// Run consumes refresh messages until the context is cancelled. Without an
// AMQP client it returns immediately and caches age out on TTL alone.
func (w *Invalidator) Run(ctx context.Context) error {
	if w.amqpClient == nil {
		slog.InfoContext(ctx, "AMQP client not available, cache invalidation relies on TTL expiry")
		return nil
	}
	return w.amqpClient.ConsumeDatasetRefreshed(ctx, func(msg *amqp.DatasetRefreshedMessage) error {
		return w.HandleRefreshMessage(ctx, msg)
	})
}
