package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"qochi/internal/registry/models"
)

// SweepExpired expires every APPROVED request whose validity window has
// elapsed, together with the identity card it issued. Each request is
// expired in its own transaction; failures are collected and the sweep
// continues.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "registry.SweepExpired")
	defer span.End()

	now := s.now(ctx)
	due, err := s.reader.ListRequests(ctx, models.RequestFilter{
		Statuses:   []models.RequestStatus{models.StatusApproved},
		ExpiringBy: &now,
	})
	if err != nil {
		return 0, storeError(err, "request")
	}

	var (
		swept int
		errs  []error
	)
	for _, candidate := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, storeError(err, "request"))
			break
		}
		var expired *models.Request
		err := s.withLock(ctx, requestKey(candidate.ID.String()), func() error {
			return s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
				req, err := store.FindRequest(ctx, candidate.ID)
				if err != nil {
					return storeError(err, "request")
				}
				if !req.IsLapsed(now) {
					return nil
				}
				if err := s.expireWithCard(ctx, store, req, now); err != nil {
					return err
				}
				expired = req
				return nil
			})
		})
		if err != nil {
			s.logger.WarnContext(ctx, "failed to expire request",
				"request", candidate.ID.String(),
				"error", err,
			)
			errs = append(errs, storeError(err, "request"))
			continue
		}
		if expired != nil {
			swept++
			s.recordExpiry(ctx, expired, "sweep")
		}
	}
	if swept > 0 {
		s.logger.InfoContext(ctx, "expiry sweep finished", "expired", swept)
	}
	return swept, errors.Join(errs...)
}

const defaultSweepInterval = time.Minute

// ExpirySweeper runs SweepExpired on a ticker.
type ExpirySweeper struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

func NewExpirySweeper(svc *Service, interval time.Duration, logger *slog.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpirySweeper{service: svc, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled.
func (w *ExpirySweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.service.SweepExpired(ctx); err != nil {
				w.logger.WarnContext(ctx, "expiry sweep failed", "error", err)
			}
		}
	}
}
