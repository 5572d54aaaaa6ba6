// Package memory is the in-process record store. Transactions stage
// copies of every entity they touch and publish them at commit only if no
// other transaction committed a newer version in between.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"qochi/internal/registry/models"
	"qochi/internal/registry/service"
	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	"qochi/pkg/platform/sentinel"
)

const defaultTxTimeout = 5 * time.Second

// Store holds committed state. Reads take a snapshot under the read lock;
// writes only happen through RunInTx.
type Store struct {
	mu            sync.RWMutex
	households    map[id.HouseholdID]*models.Household
	registrations map[id.RegistrationID]*models.RegistrationRequest
	members       map[id.MemberID]*models.Member
	requests      map[id.RequestID]*models.Request
	cards         map[id.MemberID]*models.IdentityCard
	seq           int64
	timeout       time.Duration
}

func New() *Store {
	return &Store{
		households:    make(map[id.HouseholdID]*models.Household),
		registrations: make(map[id.RegistrationID]*models.RegistrationRequest),
		members:       make(map[id.MemberID]*models.Member),
		requests:      make(map[id.RequestID]*models.Request),
		cards:         make(map[id.MemberID]*models.IdentityCard),
	}
}

// RunInTx runs fn against a staging view and commits it atomically when fn
// returns nil. A cancelled context discards the staged writes.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, store service.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	timeout := s.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx := newTx(s)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return tx.commit()
}

func (s *Store) FindHousehold(ctx context.Context, householdID id.HouseholdID) (*models.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.households[householdID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return h.Clone(), nil
}

func (s *Store) ListHouseholds(ctx context.Context, filter models.HouseholdFilter) ([]*models.Household, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Household, 0, len(s.households))
	for _, h := range s.households {
		if filter.Matches(h) {
			out = append(out, h.Clone())
		}
	}
	sortHouseholds(out)
	return out, nil
}

func (s *Store) FindRegistration(ctx context.Context, regID id.RegistrationID) (*models.RegistrationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.registrations[regID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) ListRegistrations(ctx context.Context, filter models.RegistrationFilter) ([]*models.RegistrationRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.RegistrationRequest, 0)
	for _, r := range s.registrations {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sortRegistrations(out)
	return out, nil
}

func (s *Store) FindMember(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return m.Clone(), nil
}

func (s *Store) ListMembers(ctx context.Context, filter models.MemberFilter) ([]*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Member, 0)
	for _, m := range s.members {
		if filter.Matches(m) {
			out = append(out, m.Clone())
		}
	}
	sortMembers(out)
	return out, nil
}

func (s *Store) FindRequest(ctx context.Context, reqID id.RequestID) (*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[reqID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *Store) ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Request, 0)
	for _, r := range s.requests {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sortRequests(out)
	return out, nil
}

func (s *Store) FindCard(ctx context.Context, memberID id.MemberID) (*models.IdentityCard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[memberID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

// Ping satisfies the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func sortHouseholds(hs []*models.Household) {
	sort.SliceStable(hs, func(i, j int) bool {
		if hs[i].CreatedAt.Equal(hs[j].CreatedAt) {
			return hs[i].ID.String() < hs[j].ID.String()
		}
		return hs[i].CreatedAt.Before(hs[j].CreatedAt)
	})
}

func sortRegistrations(rs []*models.RegistrationRequest) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].ID.String() < rs[j].ID.String()
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}

func sortMembers(ms []*models.Member) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ID.String() < ms[j].ID.String()
		}
		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})
}

// sortRequests orders by Seq; uncommitted inserts (Seq 0) keep their
// relative order after committed rows.
func sortRequests(rs []*models.Request) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i].Seq, rs[j].Seq
		if a == 0 || b == 0 {
			return a != 0 && b == 0
		}
		return a < b
	})
}
