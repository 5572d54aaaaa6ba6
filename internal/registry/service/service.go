package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"qochi/internal/registry/metrics"
	"qochi/internal/registry/models"
	dErrors "qochi/pkg/domain-errors"
	audit "qochi/pkg/platform/audit"
	"qochi/pkg/platform/sentinel"
	"qochi/pkg/requestcontext"
)

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service is the request lifecycle engine and approval gateway. All writes
// run inside one StoreTx transaction behind one Locker key.
type Service struct {
	reader         Reader
	tx             StoreTx
	locker         Locker
	policy         models.ExpiryPolicy
	registryID     string
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	clock          func() time.Time
	cardNumber     func() string
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLocker replaces the in-process sharded locker, e.g. with a Redis
// lock shared by several instances.
func WithLocker(l Locker) Option {
	return func(s *Service) {
		s.locker = l
	}
}

func WithExpiryPolicy(p models.ExpiryPolicy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithRegistryID prefixes issued card numbers.
func WithRegistryID(registryID string) Option {
	return func(s *Service) {
		s.registryID = registryID
	}
}

func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func WithCardNumberGenerator(gen func() string) Option {
	return func(s *Service) {
		s.cardNumber = gen
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// New constructs a Service.
func New(reader Reader, tx StoreTx, opts ...Option) *Service {
	s := &Service{
		reader:     reader,
		tx:         tx,
		locker:     NewShardedLocker(),
		registryID: "QOCHI",
		logger:     slog.Default(),
		tracer:     otel.Tracer("qochi/registry"),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cardNumber == nil {
		s.cardNumber = s.defaultCardNumber
	}
	return s
}

func (s *Service) now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestcontext.ContextKeyRequestTime).(time.Time); ok && !t.IsZero() {
		return t
	}
	return s.clock()
}

func (s *Service) defaultCardNumber() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("%s-%s", s.registryID, raw[:12])
}

// withLock runs fn while holding key.
func (s *Service) withLock(ctx context.Context, key string, fn func() error) error {
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeTimeout {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to acquire lock")
	}
	defer unlock()
	return fn()
}

// storeError converts infrastructure sentinels into coded errors. Errors
// that already carry a code pass through.
func storeError(err error, entity string) error {
	var coded *dErrors.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &coded):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidTransition, entity+" is no longer in the expected state")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, entity+" was modified concurrently")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation cancelled")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "record store unavailable")
	}
}

func (s *Service) emit(ctx context.Context, action audit.AuditEvent, event audit.Event) {
	event.Action = string(action)
	event.RequestID = requestcontext.RequestID(ctx)
	if event.ActorID == "" {
		event.ActorID = requestcontext.Actor(ctx)
	}
	event.ClientIP = requestcontext.ClientIP(ctx)
	event.UserAgent = requestcontext.UserAgent(ctx)

	s.logger.InfoContext(ctx, string(action),
		"subject", event.Subject,
		"decision", event.Decision,
		"actor", event.ActorID,
		"request_id", event.RequestID,
		"log_type", "audit",
	)
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}

func (s *Service) incrementSubmission(kind models.RequestKind, outcome models.Outcome) {
	if s.metrics != nil {
		s.metrics.IncrementSubmission(string(kind), string(outcome))
	}
}

func (s *Service) incrementDecision(kind models.RequestKind, status models.RequestStatus) {
	if s.metrics != nil {
		s.metrics.IncrementDecision(string(kind), string(status))
	}
}

func (s *Service) incrementExpiration(kind models.RequestKind, trigger string) {
	if s.metrics != nil {
		s.metrics.IncrementExpiration(string(kind), trigger)
	}
}

func (s *Service) incrementAdmission(status models.AdmissionStatus) {
	if s.metrics != nil {
		s.metrics.IncrementAdmission(string(status))
	}
}

func (s *Service) observeApproval(d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveApproval(d)
	}
}
