package service

import (
	"context"
	"fmt"
	"strings"

	"qochi/internal/registry/models"
	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	audit "qochi/pkg/platform/audit"
)

type AddMemberCommand struct {
	HouseholdID id.HouseholdID
	Profile     models.MemberProfile
}

// AddMemberResult mirrors SubmitResult for admissions. MemberID is set only
// for OutcomeSuccess.
type AddMemberResult struct {
	Outcome  models.Outcome `json:"outcome"`
	Message  string         `json:"message"`
	MemberID *id.MemberID   `json:"member_id,omitempty"`
}

// AddMember records a new member awaiting admission. A member with the same
// full name and birth date already in the household is reported as review
// (admission pending) or approved (already admitted) instead of duplicated.
func (s *Service) AddMember(ctx context.Context, cmd AddMemberCommand) (AddMemberResult, error) {
	now := s.now(ctx)
	member, err := models.NewMember(id.NewMemberID(), cmd.HouseholdID, cmd.Profile, now)
	if err != nil {
		return AddMemberResult{Outcome: models.OutcomeError, Message: dErrors.MessageOf(err)}, err
	}
	if cmd.HouseholdID.IsNil() {
		err := dErrors.New(dErrors.CodeValidation, "household_id is required")
		return AddMemberResult{Outcome: models.OutcomeError, Message: dErrors.MessageOf(err)}, err
	}

	var result AddMemberResult
	key := admitKey(cmd.HouseholdID.String(), strings.ToLower(member.FullName))
	err = s.withLock(ctx, key, func() error {
		return s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
			household, err := store.FindHousehold(ctx, cmd.HouseholdID)
			if err != nil {
				return storeError(err, "household")
			}
			if household.Removed {
				result = AddMemberResult{Outcome: models.OutcomeRejected, Message: "household " + household.Name + " has been removed"}
				return nil
			}
			existing, err := store.ListMembers(ctx, models.MemberFilter{HouseholdID: &household.ID})
			if err != nil {
				return storeError(err, "member")
			}
			for _, m := range existing {
				if !m.SameIdentity(member.FullName, member.BirthDate) {
					continue
				}
				switch m.AdmissionStatus {
				case models.AdmissionPending:
					result = AddMemberResult{Outcome: models.OutcomeReview, Message: m.FullName + " is already awaiting admission"}
					return nil
				case models.AdmissionApproved:
					result = AddMemberResult{Outcome: models.OutcomeApproved, Message: m.FullName + " is already a member"}
					return nil
				}
			}
			if err := store.CreateMember(ctx, member); err != nil {
				return storeError(err, "member")
			}
			memberID := member.ID
			result = AddMemberResult{
				Outcome:  models.OutcomeSuccess,
				Message:  fmt.Sprintf("%s added; admission pending", member.FullName),
				MemberID: &memberID,
			}
			return nil
		})
	})
	if err != nil {
		err = storeError(err, "member")
		return AddMemberResult{Outcome: models.OutcomeError, Message: dErrors.MessageOf(err)}, err
	}

	action := audit.EventMemberAdded
	event := audit.Event{
		HouseholdID: cmd.HouseholdID,
		Subject:     "member:" + member.ID.String(),
		Decision:    string(result.Outcome),
	}
	if result.Outcome != models.OutcomeSuccess {
		action = audit.EventRequestRefused
		event.Subject = "household:" + cmd.HouseholdID.String()
		event.Reason = result.Message
	}
	s.emit(ctx, action, event)
	return result, nil
}

func (s *Service) ApproveAdmission(ctx context.Context, memberID id.MemberID, adminID string) (*models.Member, error) {
	return s.decideAdmission(ctx, memberID, models.AdmissionApproved, adminID)
}

func (s *Service) RejectAdmission(ctx context.Context, memberID id.MemberID, adminID string) (*models.Member, error) {
	return s.decideAdmission(ctx, memberID, models.AdmissionRejected, adminID)
}

// SetAdmission is the transport entry for admission decisions.
func (s *Service) SetAdmission(ctx context.Context, memberID id.MemberID, status, adminID string) (*models.Member, error) {
	next, err := models.ParseAdmissionStatus(status)
	if err != nil {
		return nil, err
	}
	if next == models.AdmissionPending {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "status must be APPROVED or REJECTED")
	}
	return s.decideAdmission(ctx, memberID, next, adminID)
}

// MarkLeftLocality is the administrator's record that a member moved out.
// It takes the member lock so it cannot interleave with an admission
// decision on the same row.
func (s *Service) MarkLeftLocality(ctx context.Context, memberID id.MemberID, adminID string) (*models.Member, error) {
	now := s.now(ctx)
	var moved *models.Member
	err := s.withLock(ctx, memberKey(memberID.String()), func() error {
		return s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
			m, err := store.FindMember(ctx, memberID)
			if err != nil {
				return storeError(err, "member")
			}
			if err := m.MarkLeftLocality(now); err != nil {
				return err
			}
			if err := store.UpdateMember(ctx, m); err != nil {
				return storeError(err, "member")
			}
			moved = m
			return nil
		})
	})
	if err != nil {
		return nil, storeError(err, "member")
	}

	s.emit(ctx, audit.EventMemberLeft, audit.Event{
		HouseholdID: moved.HouseholdID,
		Subject:     "member:" + moved.ID.String(),
		Decision:    string(moved.LifeStatus),
		ActorID:     adminID,
	})
	return moved, nil
}

func (s *Service) decideAdmission(ctx context.Context, memberID id.MemberID, next models.AdmissionStatus, adminID string) (*models.Member, error) {
	now := s.now(ctx)
	var decided *models.Member
	err := s.withLock(ctx, memberKey(memberID.String()), func() error {
		return s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
			m, err := store.FindMember(ctx, memberID)
			if err != nil {
				return storeError(err, "member")
			}
			if err := m.DecideAdmission(next, now); err != nil {
				return err
			}
			if err := store.UpdateMember(ctx, m); err != nil {
				return storeError(err, "member")
			}
			decided = m
			return nil
		})
	})
	if err != nil {
		err = storeError(err, "member")
		if dErrors.CodeOf(err) == dErrors.CodeConflict {
			if current, rerr := s.reader.FindMember(ctx, memberID); rerr == nil && current.AdmissionStatus != models.AdmissionPending {
				return nil, dErrors.New(dErrors.CodeInvalidTransition, "admission is already "+string(current.AdmissionStatus))
			}
		}
		return nil, err
	}

	s.incrementAdmission(next)
	action := audit.EventAdmissionApproved
	if next == models.AdmissionRejected {
		action = audit.EventAdmissionRejected
	}
	s.emit(ctx, action, audit.Event{
		HouseholdID: decided.HouseholdID,
		Subject:     "member:" + decided.ID.String(),
		Decision:    string(next),
		ActorID:     adminID,
	})
	return decided, nil
}
