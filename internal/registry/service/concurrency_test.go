package service_test

import (
	"context"
	"sync"
	"sync/atomic"

	"qochi/internal/registry/models"
	"qochi/internal/registry/service"
	"qochi/internal/registry/store/memory"
	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	"qochi/pkg/platform/sentinel"
)

// failingStore wraps the memory store and fails selected writes inside
// transactions.
type failingStore struct {
	*memory.Store
	failMember bool
	failCard   bool
}

func (f failingStore) RunInTx(ctx context.Context, fn func(ctx context.Context, store service.Store) error) error {
	return f.Store.RunInTx(ctx, func(ctx context.Context, st service.Store) error {
		return fn(ctx, failingTx{Store: st, failMember: f.failMember, failCard: f.failCard})
	})
}

type failingTx struct {
	service.Store
	failMember bool
	failCard   bool
}

func (t failingTx) UpdateMember(ctx context.Context, m *models.Member) error {
	if t.failMember {
		return sentinel.ErrUnavailable
	}
	return t.Store.UpdateMember(ctx, m)
}

func (t failingTx) SaveCard(ctx context.Context, c *models.IdentityCard) error {
	if t.failCard {
		return sentinel.ErrUnavailable
	}
	return t.Store.SaveCard(ctx, c)
}

// =============================================================================
// Concurrency Tests
// =============================================================================

func (s *ServiceSuite) TestConcurrentSubmissionsStoreOneRequest() {
	memberID := s.admittedMember("Abebe Kebede")

	const goroutines = 20
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		reviews   atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.service.Submit(s.ctx, certificate(memberID, deathDetails()))
			if err != nil {
				return
			}
			switch res.Outcome {
			case models.OutcomeSuccess:
				successes.Add(1)
			case models.OutcomeReview:
				reviews.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(goroutines-1), reviews.Load())

	reqs, err := s.store.ListRequests(s.ctx, models.RequestFilter{MemberID: &memberID})
	s.Require().NoError(err)
	s.Len(reqs, 1)
}

func (s *ServiceSuite) TestConcurrentIdentitySubmissionsShareOneSlot() {
	memberID := s.admittedMember("Abebe Kebede")
	s.approved(identity(memberID, models.IdentityNew))

	kinds := []models.IdentityKind{models.IdentityUpdate, models.IdentityLose, models.IdentityUpdate, models.IdentityLose}
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for _, kind := range kinds {
		wg.Add(1)
		go func(kind models.IdentityKind) {
			defer wg.Done()
			res, err := s.service.Submit(s.ctx, identity(memberID, kind))
			if err == nil && res.Outcome == models.OutcomeSuccess {
				successes.Add(1)
			}
		}(kind)
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
}

func (s *ServiceSuite) TestConcurrentApproveAndReject() {
	memberID := s.admittedMember("Abebe Kebede")
	reqID := s.submitted(certificate(memberID, deathDetails()))

	const goroutines = 10
	var (
		wg          sync.WaitGroup
		successes   atomic.Int32
		transitions atomic.Int32
	)
	for i := range goroutines {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = s.service.Approve(s.ctx, reqID, admin)
			} else {
				_, err = s.service.Reject(s.ctx, reqID, admin, "duplicate")
			}
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeInvalidTransition):
				transitions.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(goroutines-1), transitions.Load())

	req := s.request(reqID)
	m := s.member(memberID)
	if req.Status == models.StatusApproved {
		s.Equal(models.LifeDeceased, m.LifeStatus)
	} else {
		s.Equal(models.StatusRejected, req.Status)
		s.Equal(models.LifeActive, m.LifeStatus)
	}
}

// Two service instances share the store but not the locker, as two
// processes would without Redis. The store's version check still lets only
// one approval through.
func (s *ServiceSuite) TestConcurrentApprovalsWithoutSharedLocker() {
	memberID := s.admittedMember("Abebe Kebede")
	reqID := s.submitted(certificate(memberID, deathDetails()))

	services := []*service.Service{s.newService(s.store), s.newService(s.store), s.newService(s.store)}
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		failures  atomic.Int32
	)
	for _, svc := range services {
		wg.Add(1)
		go func(svc *service.Service) {
			defer wg.Done()
			if _, err := svc.Approve(s.ctx, reqID, admin); err != nil {
				s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition), err.Error())
				failures.Add(1)
				return
			}
			successes.Add(1)
		}(svc)
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(len(services)-1), failures.Load())
}

func (s *ServiceSuite) TestCardFailureRollsBackIdentityApproval() {
	memberID := s.admittedMember("Abebe Kebede")
	reqID := s.submitted(identity(memberID, models.IdentityNew))

	failing := s.newService(failingStore{Store: s.store, failCard: true})
	_, err := failing.Approve(s.ctx, reqID, admin)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	s.Equal(models.StatusPending, s.request(reqID).Status)
	_, err = s.service.GetCard(s.ctx, memberID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestLockerHonoursCancellation() {
	locker := service.NewShardedLocker()
	unlock, err := locker.Lock(s.ctx, "request:"+id.NewRequestID().String())
	s.Require().NoError(err)
	unlock()

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err = locker.Lock(ctx, "request:x")
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}
