// Package outbox exports committed audit entries to the audit Kafka topic.
package outbox

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"compliancehub/internal/audit"
	"compliancehub/internal/audit/metrics"
	"compliancehub/internal/platform/kafka"
)

// Store is the outbox side of an audit backend.
type Store interface {
	PendingOutbox(ctx context.Context, limit int) ([]audit.OutboxMessage, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// TxRunner is the backend's unit of work; fetch, publish and mark run inside
// one so that concurrent relays never publish the same row twice.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

// Publisher sends messages to the audit topic.
type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// Relay polls the outbox and publishes pending rows. Delivery is at least
// once: a crash between publish and commit republishes the batch, and
// consumers dedupe on the entry id key.
type Relay struct {
	store     Store
	tx        TxRunner
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func New(store Store, tx TxRunner, publisher Publisher, opts ...Option) *Relay {
	r := &Relay{
		store:     store,
		tx:        tx,
		publisher: publisher,
		interval:  time.Second,
		batchSize: 100,
		logger:    slog.Default(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run relays until ctx is cancelled. Publish failures are logged and retried
// on the next tick; Run returns nil on cancellation.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "audit outbox relay started", "interval", r.interval, "batch_size", r.batchSize)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "audit outbox relay stopped")
			return nil
		case <-ticker.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					r.metrics.IncOutboxPublishErrors()
					r.logger.ErrorContext(ctx, "audit outbox relay failed", "error", err)
					break
				}
				// Drain a backlog without waiting for the next tick.
				if n < r.batchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many rows it published.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var published int
	err := r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		pending, err := r.store.PendingOutbox(txCtx, r.batchSize)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		msgs := make([]kafka.Message, 0, len(pending))
		ids := make([]string, 0, len(pending))
		for _, p := range pending {
			msgs = append(msgs, kafka.Message{
				Key:   p.EntryID.String(),
				Value: p.Payload,
				Headers: map[string]string{
					"action":   string(p.Action),
					"entry_id": p.EntryID.String(),
				},
			})
			ids = append(ids, p.ID)
		}
		if err := r.publisher.Publish(txCtx, msgs...); err != nil {
			return fmt.Errorf("publish audit batch: %w", err)
		}
		if err := r.store.MarkPublished(txCtx, ids, r.now()); err != nil {
			return err
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if published > 0 {
		r.metrics.AddOutboxPublished(published)
		r.logger.DebugContext(ctx, "audit outbox batch published", "count", published)
	}
	return published, nil
}
