package service

import (
	"context"
	"strings"

	"qochi/internal/registry/models"
	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	audit "qochi/pkg/platform/audit"
)

// RegistrationResult reports a self-registration submission.
type RegistrationResult struct {
	Outcome        models.Outcome     `json:"outcome"`
	Message        string             `json:"message"`
	RegistrationID *id.RegistrationID `json:"registration_id,omitempty"`
}

// CreateHousehold registers a household directly, bypassing
// self-registration. House numbers are unique among listed households.
func (s *Service) CreateHousehold(ctx context.Context, profile models.HouseholdProfile, adminID string) (*models.Household, error) {
	now := s.now(ctx)
	household, err := models.NewHousehold(id.NewHouseholdID(), profile, now)
	if err != nil {
		return nil, err
	}
	err = s.withLock(ctx, registerKey(strings.ToLower(household.HouseNumber)), func() error {
		return s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
			if err := ensureHouseNumberFree(ctx, store, household.HouseNumber, household.ID); err != nil {
				return err
			}
			return storeError(store.CreateHousehold(ctx, household), "household")
		})
	})
	if err != nil {
		return nil, storeError(err, "household")
	}
	s.emit(ctx, audit.EventHouseholdCreated, audit.Event{
		HouseholdID: household.ID,
		Subject:     "household:" + household.ID.String(),
		ActorID:     adminID,
	})
	return household, nil
}

// SubmitRegistration stores a self-registration as PENDING. A house number
// that already has a pending registration is reported as review, and one
// that already belongs to a listed household as approved.
func (s *Service) SubmitRegistration(ctx context.Context, profile models.HouseholdProfile) (RegistrationResult, error) {
	now := s.now(ctx)
	reg, err := models.NewRegistrationRequest(id.NewRegistrationID(), profile, now)
	if err != nil {
		return RegistrationResult{Outcome: models.OutcomeError, Message: dErrors.MessageOf(err)}, err
	}

	var result RegistrationResult
	err = s.withLock(ctx, registerKey(strings.ToLower(reg.Profile.HouseNumber)), func() error {
		return s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
			listed := false
			households, err := store.ListHouseholds(ctx, models.HouseholdFilter{HouseNumber: reg.Profile.HouseNumber, Removed: &listed})
			if err != nil {
				return storeError(err, "household")
			}
			if len(households) > 0 {
				result = RegistrationResult{Outcome: models.OutcomeApproved, Message: "house " + reg.Profile.HouseNumber + " is already registered"}
				return nil
			}
			pending, err := store.ListRegistrations(ctx, models.RegistrationFilter{
				HouseNumber: reg.Profile.HouseNumber,
				Statuses:    []models.RequestStatus{models.StatusPending},
			})
			if err != nil {
				return storeError(err, "registration")
			}
			if len(pending) > 0 {
				result = RegistrationResult{Outcome: models.OutcomeReview, Message: "a registration for house " + reg.Profile.HouseNumber + " is already under review"}
				return nil
			}
			if err := store.CreateRegistration(ctx, reg); err != nil {
				return storeError(err, "registration")
			}
			regID := reg.ID
			result = RegistrationResult{Outcome: models.OutcomeSuccess, Message: "registration submitted", RegistrationID: &regID}
			return nil
		})
	})
	if err != nil {
		err = storeError(err, "registration")
		return RegistrationResult{Outcome: models.OutcomeError, Message: dErrors.MessageOf(err)}, err
	}

	action := audit.EventRegistrationSubmitted
	event := audit.Event{Subject: "registration:" + reg.ID.String(), Decision: string(result.Outcome)}
	if result.Outcome != models.OutcomeSuccess {
		action = audit.EventRequestRefused
		event.Subject = "house:" + reg.Profile.HouseNumber
		event.Reason = result.Message
	}
	s.emit(ctx, action, event)
	return result, nil
}

// ApproveRegistration creates the household described by a PENDING
// registration and links it.
func (s *Service) ApproveRegistration(ctx context.Context, regID id.RegistrationID, adminID string) (*models.RegistrationRequest, error) {
	return s.decideRegistration(ctx, regID, models.StatusApproved, adminID, "")
}

func (s *Service) RejectRegistration(ctx context.Context, regID id.RegistrationID, adminID, reason string) (*models.RegistrationRequest, error) {
	return s.decideRegistration(ctx, regID, models.StatusRejected, adminID, reason)
}

func (s *Service) SetRegistrationStatus(ctx context.Context, regID id.RegistrationID, status, adminID, reason string) (*models.RegistrationRequest, error) {
	next, err := models.ParseRequestStatus(status)
	if err != nil {
		return nil, err
	}
	return s.decideRegistration(ctx, regID, next, adminID, reason)
}

func (s *Service) decideRegistration(ctx context.Context, regID id.RegistrationID, next models.RequestStatus, adminID, reason string) (*models.RegistrationRequest, error) {
	now := s.now(ctx)
	// The house number never changes, so it can be read before locking.
	current, err := s.reader.FindRegistration(ctx, regID)
	if err != nil {
		return nil, storeError(err, "registration")
	}

	var (
		decided   *models.RegistrationRequest
		household *models.Household
	)
	err = s.withLock(ctx, registerKey(strings.ToLower(current.Profile.HouseNumber)), func() error {
		return s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
			reg, err := store.FindRegistration(ctx, regID)
			if err != nil {
				return storeError(err, "registration")
			}
			if err := reg.Decide(next, adminID, strings.TrimSpace(reason), now); err != nil {
				return err
			}
			if next == models.StatusApproved {
				h, err := models.NewHousehold(id.NewHouseholdID(), reg.Profile, now)
				if err != nil {
					return err
				}
				if err := ensureHouseNumberFree(ctx, store, h.HouseNumber, h.ID); err != nil {
					return err
				}
				if err := store.CreateHousehold(ctx, h); err != nil {
					return storeError(err, "household")
				}
				reg.HouseholdID = &h.ID
				household = h
			}
			if err := store.UpdateRegistration(ctx, reg, models.StatusPending); err != nil {
				return storeError(err, "registration")
			}
			decided = reg
			return nil
		})
	})
	if err != nil {
		err = storeError(err, "registration")
		if dErrors.CodeOf(err) == dErrors.CodeConflict {
			if latest, rerr := s.reader.FindRegistration(ctx, regID); rerr == nil && latest.Status != models.StatusPending {
				return nil, dErrors.New(dErrors.CodeInvalidTransition, "registration is already "+string(latest.Status))
			}
		}
		return nil, err
	}

	action := audit.EventRegistrationApproved
	if next == models.StatusRejected {
		action = audit.EventRegistrationRejected
	}
	event := audit.Event{
		Subject:  "registration:" + decided.ID.String(),
		Decision: string(next),
		Reason:   decided.Reason,
		ActorID:  adminID,
	}
	if household != nil {
		event.HouseholdID = household.ID
	}
	s.emit(ctx, action, event)
	if household != nil {
		s.emit(ctx, audit.EventHouseholdCreated, audit.Event{
			HouseholdID: household.ID,
			Subject:     "household:" + household.ID.String(),
			ActorID:     adminID,
		})
	}
	return decided, nil
}

// RemoveHousehold soft-removes a household. Its members and requests are
// kept; new submissions for it are rejected.
func (s *Service) RemoveHousehold(ctx context.Context, householdID id.HouseholdID, adminID string) (*models.Household, error) {
	now := s.now(ctx)
	var removed *models.Household
	err := s.withLock(ctx, householdKey(householdID.String()), func() error {
		return s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
			h, err := store.FindHousehold(ctx, householdID)
			if err != nil {
				return storeError(err, "household")
			}
			if err := h.CanRemove(); err != nil {
				return err
			}
			h.ApplyRemoval(now)
			if err := store.UpdateHousehold(ctx, h); err != nil {
				return storeError(err, "household")
			}
			removed = h
			return nil
		})
	})
	if err != nil {
		return nil, storeError(err, "household")
	}
	s.emit(ctx, audit.EventHouseholdRemoved, audit.Event{
		HouseholdID: removed.ID,
		Subject:     "household:" + removed.ID.String(),
		ActorID:     adminID,
	})
	return removed, nil
}

// RestoreHousehold lists a removed household again, provided no other
// listed household took its house number in the meantime.
func (s *Service) RestoreHousehold(ctx context.Context, householdID id.HouseholdID, adminID string) (*models.Household, error) {
	now := s.now(ctx)
	current, err := s.reader.FindHousehold(ctx, householdID)
	if err != nil {
		return nil, storeError(err, "household")
	}

	var restored *models.Household
	err = s.withLock(ctx, registerKey(strings.ToLower(current.HouseNumber)), func() error {
		return s.tx.RunInTx(ctx, func(ctx context.Context, store Store) error {
			h, err := store.FindHousehold(ctx, householdID)
			if err != nil {
				return storeError(err, "household")
			}
			if err := h.CanRestore(); err != nil {
				return err
			}
			if err := ensureHouseNumberFree(ctx, store, h.HouseNumber, h.ID); err != nil {
				return err
			}
			h.ApplyRestore(now)
			if err := store.UpdateHousehold(ctx, h); err != nil {
				return storeError(err, "household")
			}
			restored = h
			return nil
		})
	})
	if err != nil {
		return nil, storeError(err, "household")
	}
	s.emit(ctx, audit.EventHouseholdRestored, audit.Event{
		HouseholdID: restored.ID,
		Subject:     "household:" + restored.ID.String(),
		ActorID:     adminID,
	})
	return restored, nil
}

func ensureHouseNumberFree(ctx context.Context, store Store, houseNumber string, self id.HouseholdID) error {
	listed := false
	existing, err := store.ListHouseholds(ctx, models.HouseholdFilter{HouseNumber: houseNumber, Removed: &listed})
	if err != nil {
		return storeError(err, "household")
	}
	for _, h := range existing {
		if h.ID != self {
			return dErrors.New(dErrors.CodeDuplicate, "house "+houseNumber+" is already registered")
		}
	}
	return nil
}

func (s *Service) GetHousehold(ctx context.Context, householdID id.HouseholdID) (*models.Household, error) {
	h, err := s.reader.FindHousehold(ctx, householdID)
	return h, storeError(err, "household")
}

func (s *Service) GetMember(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	m, err := s.reader.FindMember(ctx, memberID)
	return m, storeError(err, "member")
}

func (s *Service) GetRequest(ctx context.Context, reqID id.RequestID) (*models.Request, error) {
	r, err := s.reader.FindRequest(ctx, reqID)
	return r, storeError(err, "request")
}

func (s *Service) GetRegistration(ctx context.Context, regID id.RegistrationID) (*models.RegistrationRequest, error) {
	r, err := s.reader.FindRegistration(ctx, regID)
	return r, storeError(err, "registration")
}

// GetCard returns the member's identity card, or CodeNotFound.
func (s *Service) GetCard(ctx context.Context, memberID id.MemberID) (*models.IdentityCard, error) {
	c, err := s.reader.FindCard(ctx, memberID)
	return c, storeError(err, "identity card")
}
