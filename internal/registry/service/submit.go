package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"qochi/internal/registry/models"
	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	audit "qochi/pkg/platform/audit"
	"qochi/pkg/platform/sentinel"
)

// SubmitCommand is a certificate or identity card request. HouseholdID is
// the submitting household and is nil when an admin submits on its behalf.
type SubmitCommand struct {
	HouseholdID     id.HouseholdID
	SubjectMemberID id.MemberID
	IdentityKind    models.IdentityKind
	Details         models.Details
	Attachments     models.Attachments
}

// SubmitResult reports how a submission was handled. RequestID is set only
// for OutcomeSuccess.
type SubmitResult struct {
	Outcome   models.Outcome `json:"outcome"`
	Message   string         `json:"message"`
	RequestID *id.RequestID  `json:"request_id,omitempty"`
}

func refused(outcome models.Outcome, format string, args ...any) SubmitResult {
	return SubmitResult{Outcome: outcome, Message: fmt.Sprintf(format, args...)}
}

// Submit validates a request and stores it as PENDING unless the member
// already has an equivalent request or is not eligible. Refusals are
// reported through the Outcome; the error is non-nil only with OutcomeError.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Submit")
	defer span.End()

	now := s.now(ctx)
	req, err := models.NewRequest(id.NewRequestID(), cmd.HouseholdID, cmd.SubjectMemberID,
		cmd.IdentityKind, cmd.Details, cmd.Attachments, now)
	if err != nil {
		return s.submitFailed(ctx, "", err)
	}
	span.SetAttributes(
		attribute.String("request.kind", string(req.Kind)),
		attribute.String("member.id", req.SubjectMemberID.String()),
	)

	var (
		result  SubmitResult
		expired []*models.Request
	)
	err = s.withLock(ctx, submitKey(req.Slot()), func() error {
		return s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
			var err error
			result, expired, err = s.submitInTx(ctx, store, cmd, req, now)
			return err
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		return s.submitFailed(ctx, req.Kind, storeError(err, "request"))
	}

	for _, r := range expired {
		s.recordExpiry(ctx, r, "submit")
	}
	span.SetAttributes(attribute.String("submit.outcome", string(result.Outcome)))
	s.incrementSubmission(req.Kind, result.Outcome)

	event := audit.Event{
		HouseholdID: req.HouseholdID,
		Subject:     "member:" + req.SubjectMemberID.String(),
		Kind:        string(req.Kind),
		Decision:    string(result.Outcome),
	}
	if result.Outcome == models.OutcomeSuccess {
		event.Subject = "request:" + req.ID.String()
		s.emit(ctx, audit.EventRequestSubmitted, event)
	} else {
		event.Reason = result.Message
		s.emit(ctx, audit.EventRequestRefused, event)
	}
	return result, nil
}

func (s *Service) submitFailed(ctx context.Context, kind models.RequestKind, err error) (SubmitResult, error) {
	if kind != "" {
		s.incrementSubmission(kind, models.OutcomeError)
	}
	if dErrors.CodeOf(err) == dErrors.CodeUnavailable {
		s.logger.ErrorContext(ctx, "submission failed", "error", err)
	}
	return SubmitResult{Outcome: models.OutcomeError, Message: dErrors.MessageOf(err)}, err
}

// submitInTx runs the eligibility and duplicate checks in order: ownership,
// household state, admission, existing requests, card state, life status,
// spouse. Lapsed approvals found on the way are expired in the same
// transaction.
func (s *Service) submitInTx(
	ctx context.Context,
	store Store,
	cmd SubmitCommand,
	req *models.Request,
	now time.Time,
) (SubmitResult, []*models.Request, error) {
	member, err := store.FindMember(ctx, req.SubjectMemberID)
	if err != nil {
		return SubmitResult{}, nil, storeError(err, "member")
	}
	if !cmd.HouseholdID.IsNil() && member.HouseholdID != cmd.HouseholdID {
		return SubmitResult{}, nil, dErrors.New(dErrors.CodeForbidden, "member belongs to another household")
	}
	household, err := store.FindHousehold(ctx, member.HouseholdID)
	if err != nil {
		return SubmitResult{}, nil, storeError(err, "household")
	}
	if household.Removed {
		return refused(models.OutcomeRejected, "household %s has been removed", household.Name), nil, nil
	}
	if !member.IsAdmitted() {
		return refused(models.OutcomeRejected, "%s has not been admitted to the household", member.FullName), nil, nil
	}

	existing, err := store.ListRequests(ctx, models.RequestFilter{
		MemberID: &member.ID,
		Kind:     req.Kind,
		Statuses: []models.RequestStatus{models.StatusPending, models.StatusApproved},
	})
	if err != nil {
		return SubmitResult{}, nil, storeError(err, "request")
	}
	var expired []*models.Request
	for _, prev := range existing {
		switch {
		case prev.Status == models.StatusPending:
			return refused(models.OutcomeReview, "a %s request for %s is already under review", req.Kind, member.FullName), expired, nil
		case prev.IsLapsed(now):
			if err := s.expireWithCard(ctx, store, prev, now); err != nil {
				return SubmitResult{}, nil, err
			}
			expired = append(expired, prev)
		case req.Kind.IsCertificate():
			return refused(models.OutcomeApproved, "a %s certificate for %s is already approved", req.Kind, member.FullName), expired, nil
		}
	}

	if req.Kind == models.KindIdentity {
		card, err := findCard(ctx, store, member.ID)
		if err != nil {
			return SubmitResult{}, nil, err
		}
		active := card.IsActive(now)
		switch {
		case req.IdentityKind == models.IdentityNew && active:
			return refused(models.OutcomeApproved, "%s already holds identity card %s", member.FullName, card.CardNumber), expired, nil
		case req.IdentityKind != models.IdentityNew && !active:
			return refused(models.OutcomeRejected, "%s has no active identity card to %s", member.FullName, lowerKind(req.IdentityKind)), expired, nil
		}
	}

	if msg := member.Eligibility(req.Kind, req.IdentityKind); msg != "" {
		return refused(models.OutcomeRejected, "%s", msg), expired, nil
	}

	if spouseID := models.SpouseOf(req.Details); spouseID != nil {
		res, err := checkSpouse(ctx, store, member, *spouseID, req.Kind)
		if err != nil || res.Outcome != "" {
			return res, expired, err
		}
	}

	req.HouseholdID = member.HouseholdID
	if err := store.CreateRequest(ctx, req); err != nil {
		return SubmitResult{}, nil, storeError(err, "request")
	}
	reqID := req.ID
	return SubmitResult{
		Outcome:   models.OutcomeSuccess,
		Message:   fmt.Sprintf("%s request for %s submitted", req.Kind, member.FullName),
		RequestID: &reqID,
	}, expired, nil
}

// checkSpouse validates the linked spouse of a marriage or divorce. A zero
// Outcome means the spouse is acceptable.
func checkSpouse(ctx context.Context, store Store, subject *models.Member, spouseID id.MemberID, kind models.RequestKind) (SubmitResult, error) {
	if spouseID == subject.ID {
		return SubmitResult{}, dErrors.New(dErrors.CodeValidation, "spouse_member_id cannot be the subject")
	}
	spouse, err := store.FindMember(ctx, spouseID)
	if err != nil {
		return SubmitResult{}, storeError(err, "spouse")
	}
	if !spouse.IsAdmitted() {
		return refused(models.OutcomeRejected, "spouse %s has not been admitted", spouse.FullName), nil
	}
	if msg := spouse.Eligibility(kind, ""); msg != "" {
		return refused(models.OutcomeRejected, "spouse %s: %s", spouse.FullName, msg), nil
	}
	return SubmitResult{}, nil
}

// findCard returns the member's card, or nil when none was ever issued.
func findCard(ctx context.Context, store Reader, memberID id.MemberID) (*models.IdentityCard, error) {
	card, err := store.FindCard(ctx, memberID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err, "identity card")
	}
	return card, nil
}

func lowerKind(k models.IdentityKind) string {
	switch k {
	case models.IdentityUpdate:
		return "update"
	case models.IdentityLose:
		return "replace"
	}
	return "issue"
}
