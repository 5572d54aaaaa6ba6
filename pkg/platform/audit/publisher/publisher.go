// Package publisher fans audit events out to a store and, optionally, a
// sink. Emission is synchronous by default; WithAsyncBuffer moves store
// writes onto a background goroutine.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	id "qochi/pkg/domain"
	audit "qochi/pkg/platform/audit"
	"qochi/pkg/platform/circuit"
)

var ErrBufferFull = errors.New("audit buffer full")

type Publisher struct {
	store   audit.Store
	sink    audit.Sink
	breaker *circuit.Breaker
	logger  *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables async mode with a bounded queue. Emit returns
// ErrBufferFull rather than block when the queue is full.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

// WithSink mirrors each stored event to sink. Sink failures never fail
// Emit. While the sink breaker is open, events stay in the store only and
// one probe is sent per cooldown.
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		p.sink = sink
	}
}

// WithSinkBreaker replaces the default sink breaker.
func WithSinkBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		if b != nil {
			p.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:   store,
		breaker: circuit.New("audit-sink"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit records event, stamping the timestamp and category when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if p.buffer == nil {
		return p.write(ctx, event)
	}
	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrBufferFull
	}
}

func (p *Publisher) List(ctx context.Context, householdID id.HouseholdID) ([]audit.Event, error) {
	return p.store.ListByHousehold(ctx, householdID)
}

func (p *Publisher) Recent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close stops the async worker after draining queued events. Safe to call
// more than once.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.write(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event", "action", event.Action, "error", err)
		}
	}
}

func (p *Publisher) write(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	p.mirror(ctx, event)
	return nil
}

func (p *Publisher) mirror(ctx context.Context, event audit.Event) {
	if p.sink == nil {
		return
	}
	if !p.breaker.Allow() {
		p.logger.DebugContext(ctx, "audit sink circuit open, event kept in store only", "action", event.Action)
		return
	}
	rec, err := audit.Encode(event)
	if err != nil {
		p.logger.WarnContext(ctx, "failed to encode audit event", "action", event.Action, "error", err)
		return
	}
	if err := p.sink.Publish(ctx, []audit.Record{rec}); err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "audit sink circuit opened", "error", err)
		}
		return
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "audit sink circuit closed")
	}
}
