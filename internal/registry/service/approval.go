package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"qochi/internal/registry/models"
	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	audit "qochi/pkg/platform/audit"
)

// Approve moves a PENDING request to APPROVED and applies its side effect
// to the member record in the same transaction. If the side effect fails
// nothing is written.
func (s *Service) Approve(ctx context.Context, reqID id.RequestID, adminID string) (*models.Request, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Approve")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", reqID.String()))

	start := time.Now()
	now := s.now(ctx)
	var (
		approved   *models.Request
		superseded []*models.Request
	)
	err := s.withLock(ctx, requestKey(reqID.String()), func() error {
		return s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
			req, err := store.FindRequest(ctx, reqID)
			if err != nil {
				return storeError(err, "request")
			}
			if err := req.Approve(adminID, s.policy.ExpiresAt(req.Kind, now), now); err != nil {
				return err
			}
			superseded, err = s.applySideEffect(ctx, store, req, now)
			if err != nil {
				return err
			}
			if err := store.UpdateRequest(ctx, req, models.StatusPending); err != nil {
				return storeError(err, "request")
			}
			approved = req
			return nil
		})
	})
	if err != nil {
		err = s.decisionError(ctx, reqID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		return nil, err
	}

	s.incrementDecision(approved.Kind, models.StatusApproved)
	s.observeApproval(time.Since(start))
	for _, r := range superseded {
		s.recordExpiry(ctx, r, "superseded")
	}
	s.emit(ctx, audit.EventRequestApproved, audit.Event{
		HouseholdID: approved.HouseholdID,
		Subject:     "request:" + approved.ID.String(),
		Kind:        string(approved.Kind),
		Decision:    string(models.StatusApproved),
		ActorID:     adminID,
	})
	return approved, nil
}

// Reject moves a PENDING request to REJECTED. The member is not touched.
func (s *Service) Reject(ctx context.Context, reqID id.RequestID, adminID, reason string) (*models.Request, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Reject")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", reqID.String()))

	now := s.now(ctx)
	var rejected *models.Request
	err := s.withLock(ctx, requestKey(reqID.String()), func() error {
		return s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
			req, err := store.FindRequest(ctx, reqID)
			if err != nil {
				return storeError(err, "request")
			}
			if err := req.Reject(adminID, reason, now); err != nil {
				return err
			}
			if err := store.UpdateRequest(ctx, req, models.StatusPending); err != nil {
				return storeError(err, "request")
			}
			rejected = req
			return nil
		})
	})
	if err != nil {
		err = s.decisionError(ctx, reqID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		return nil, err
	}

	s.incrementDecision(rejected.Kind, models.StatusRejected)
	s.emit(ctx, audit.EventRequestRejected, audit.Event{
		HouseholdID: rejected.HouseholdID,
		Subject:     "request:" + rejected.ID.String(),
		Kind:        string(rejected.Kind),
		Decision:    string(models.StatusRejected),
		Reason:      rejected.Reason,
		ActorID:     adminID,
	})
	return rejected, nil
}

// SetStatus is the administrative status change entry point. Only APPROVED
// and REJECTED are accepted; every call is re-validated against the stored
// state.
func (s *Service) SetStatus(ctx context.Context, reqID id.RequestID, status, adminID, reason string) (*models.Request, error) {
	next, err := models.ParseRequestStatus(status)
	if err != nil {
		return nil, err
	}
	switch next {
	case models.StatusApproved:
		return s.Approve(ctx, reqID, adminID)
	case models.StatusRejected:
		return s.Reject(ctx, reqID, adminID, reason)
	}
	return nil, dErrors.New(dErrors.CodeInvalidInput, "status must be APPROVED or REJECTED")
}

// decisionError converts a failed decision. A lost update is re-read: if
// the request already left PENDING the caller lost the race and gets an
// invalid transition.
func (s *Service) decisionError(ctx context.Context, reqID id.RequestID, err error) error {
	err = storeError(err, "request")
	if dErrors.CodeOf(err) != dErrors.CodeConflict {
		return err
	}
	current, rerr := s.reader.FindRequest(ctx, reqID)
	if rerr != nil {
		return err
	}
	if current.Status != models.StatusPending {
		return dErrors.New(dErrors.CodeInvalidTransition, "request is already "+string(current.Status))
	}
	return err
}

// applySideEffect mutates the subject (and linked spouse) for an approval
// and returns approvals that the new one supersedes.
func (s *Service) applySideEffect(ctx context.Context, store Store, req *models.Request, now time.Time) ([]*models.Request, error) {
	subject, err := store.FindMember(ctx, req.SubjectMemberID)
	if err != nil {
		return nil, storeError(err, "member")
	}

	switch req.Kind {
	case models.KindDeath:
		if err := subject.ApplyDeath(now); err != nil {
			return nil, err
		}
		return nil, updateMembers(ctx, store, subject)

	case models.KindBirth:
		if err := subject.ApplyBirth(now); err != nil {
			return nil, err
		}
		return nil, updateMembers(ctx, store, subject)

	case models.KindMarriage, models.KindDivorce:
		members := []*models.Member{subject}
		if spouseID := models.SpouseOf(req.Details); spouseID != nil {
			spouse, err := store.FindMember(ctx, *spouseID)
			if err != nil {
				return nil, storeError(err, "spouse")
			}
			members = append(members, spouse)
		}
		// A marriage supersedes an earlier divorce and vice versa.
		apply, previous := (*models.Member).ApplyMarriage, models.KindDivorce
		if req.Kind == models.KindDivorce {
			apply, previous = (*models.Member).ApplyDivorce, models.KindMarriage
		}
		var superseded []*models.Request
		for _, m := range members {
			if err := apply(m, now); err != nil {
				return nil, err
			}
			prev, err := s.expireApproved(ctx, store, m.ID, previous, req.ID, now)
			if err != nil {
				return nil, err
			}
			superseded = append(superseded, prev...)
		}
		return superseded, updateMembers(ctx, store, members...)

	case models.KindIdentity:
		return s.issueCard(ctx, store, subject, req, now)
	}
	return nil, dErrors.New(dErrors.CodeInternal, "unknown request kind "+string(req.Kind))
}

func updateMembers(ctx context.Context, store Store, members ...*models.Member) error {
	for _, m := range members {
		if err := store.UpdateMember(ctx, m); err != nil {
			return storeError(err, "member")
		}
	}
	return nil
}

// issueCard creates, refreshes or reissues the member's identity card.
func (s *Service) issueCard(ctx context.Context, store Store, subject *models.Member, req *models.Request, now time.Time) ([]*models.Request, error) {
	if subject.LifeStatus == models.LifeDeceased {
		return nil, dErrors.New(dErrors.CodeInvalidTransition, "member is deceased")
	}
	card, err := findCard(ctx, store, subject.ID)
	if err != nil {
		return nil, err
	}
	active := card.IsActive(now)

	switch req.IdentityKind {
	case models.IdentityNew:
		if active {
			return nil, dErrors.New(dErrors.CodeInvalidTransition, "member already holds an active identity card")
		}
		issued := models.NewIdentityCard(subject.ID, s.cardNumber(), req.ID, req.ExpiresAt, now)
		issued.Supersede(card)
		card = issued
	case models.IdentityUpdate:
		if !active {
			return nil, dErrors.New(dErrors.CodeInvalidTransition, "member has no active identity card")
		}
		card.Refresh(req.ID, req.ExpiresAt, now)
	case models.IdentityLose:
		if !active {
			return nil, dErrors.New(dErrors.CodeInvalidTransition, "member has no active identity card")
		}
		card.Reissue(s.cardNumber(), req.ID, req.ExpiresAt, now)
	default:
		return nil, dErrors.New(dErrors.CodeInternal, "unknown identity kind "+string(req.IdentityKind))
	}

	superseded, err := s.expireApproved(ctx, store, subject.ID, models.KindIdentity, req.ID, now)
	if err != nil {
		return nil, err
	}
	if err := store.SaveCard(ctx, card); err != nil {
		return nil, storeError(err, "identity card")
	}
	return superseded, nil
}

// expireApproved expires every APPROVED request of kind for member other
// than keep. Cards are left to the caller.
func (s *Service) expireApproved(ctx context.Context, store Store, memberID id.MemberID, kind models.RequestKind, keep id.RequestID, now time.Time) ([]*models.Request, error) {
	approved, err := store.ListRequests(ctx, models.RequestFilter{
		MemberID: &memberID,
		Kind:     kind,
		Statuses: []models.RequestStatus{models.StatusApproved},
	})
	if err != nil {
		return nil, storeError(err, "request")
	}
	var out []*models.Request
	for _, r := range approved {
		if r.ID == keep {
			continue
		}
		if err := r.Expire(now); err != nil {
			return nil, err
		}
		if err := store.UpdateRequest(ctx, r, models.StatusApproved); err != nil {
			return nil, storeError(err, "request")
		}
		out = append(out, r)
	}
	return out, nil
}

// expireWithCard expires an APPROVED request and, for identity requests,
// the card it last issued.
func (s *Service) expireWithCard(ctx context.Context, store Store, req *models.Request, now time.Time) error {
	if err := req.Expire(now); err != nil {
		return err
	}
	if err := store.UpdateRequest(ctx, req, models.StatusApproved); err != nil {
		return storeError(err, "request")
	}
	if req.Kind != models.KindIdentity {
		return nil
	}
	card, err := findCard(ctx, store, req.SubjectMemberID)
	if err != nil || card == nil || card.RequestID != req.ID || card.ExpiredAt != nil {
		return err
	}
	card.Expire(now)
	if err := store.SaveCard(ctx, card); err != nil {
		return storeError(err, "identity card")
	}
	return nil
}

func (s *Service) recordExpiry(ctx context.Context, req *models.Request, trigger string) {
	s.incrementExpiration(req.Kind, trigger)
	s.emit(ctx, audit.EventRequestExpired, audit.Event{
		HouseholdID: req.HouseholdID,
		Subject:     "request:" + req.ID.String(),
		Kind:        string(req.Kind),
		Decision:    string(models.StatusExpired),
		Reason:      trigger,
	})
}
