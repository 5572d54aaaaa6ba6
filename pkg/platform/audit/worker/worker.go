package worker

import (
	"context"
	"log/slog"
	"time"

	audit "qochi/pkg/platform/audit"
)

// Outbox is the relay-side view of the postgres audit store.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]audit.Record, error)
	MarkPublished(ctx context.Context, ids []string) error
}

const (
	defaultInterval  = 2 * time.Second
	defaultBatchSize = 100
)

// Worker relays outbox rows to a sink. A row is marked published only after
// the sink accepted it, so delivery is at-least-once.
type Worker struct {
	outbox    Outbox
	sink      audit.Sink
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

type Option func(*Worker)

func WithInterval(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func NewWorker(outbox Outbox, sink audit.Sink, opts ...Option) *Worker {
	w := &Worker{
		outbox:    outbox,
		sink:      sink,
		interval:  defaultInterval,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run relays until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RelayOnce(ctx); err != nil {
				w.logger.WarnContext(ctx, "audit outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce sends one batch and returns how many rows were published.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	records, err := w.outbox.FetchUnpublished(ctx, w.batchSize)
	if err != nil || len(records) == 0 {
		return 0, err
	}
	if err := w.sink.Publish(ctx, records); err != nil {
		return 0, err
	}
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}
	if err := w.outbox.MarkPublished(ctx, ids); err != nil {
		return 0, err
	}
	return len(records), nil
}
