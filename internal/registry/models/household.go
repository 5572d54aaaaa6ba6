package models

import (
	"net/mail"
	"strings"
	"time"

	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
)

// Address locates a household inside the registry's locality.
type Address struct {
	Kebele string `json:"kebele"`
	Zone   string `json:"zone"`
	Street string `json:"street,omitempty"`
}

// Household is the aggregate root for a family head and its members.
//
// Invariants:
//   - Name and HouseNumber are non-empty
//   - DeclaredFamilySize is at least 1
//   - removal is a flag; households are never hard-deleted
//
// Roster size is derived from admitted members and is not stored here.
type Household struct {
	ID                 id.HouseholdID `json:"id"`
	Name               string         `json:"name"`
	Phone              string         `json:"phone"`
	Email              string         `json:"email,omitempty"`
	Address            Address        `json:"address"`
	HouseNumber        string         `json:"house_number"`
	DeclaredFamilySize int            `json:"declared_family_size"`
	DwellingType       DwellingType   `json:"dwelling_type"`
	Removed            bool           `json:"removed"`
	RemovedAt          *time.Time     `json:"removed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	Version            int            `json:"-"`
}

// HouseholdProfile is the caller-supplied part of a household.
type HouseholdProfile struct {
	Name               string       `json:"name"`
	Phone              string       `json:"phone"`
	Email              string       `json:"email,omitempty"`
	Address            Address      `json:"address"`
	HouseNumber        string       `json:"house_number"`
	DeclaredFamilySize int          `json:"declared_family_size"`
	DwellingType       DwellingType `json:"dwelling_type"`
}

// Normalize trims whitespace and lowercases the email.
func (p *HouseholdProfile) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Address.Kebele = strings.TrimSpace(p.Address.Kebele)
	p.Address.Zone = strings.TrimSpace(p.Address.Zone)
	p.Address.Street = strings.TrimSpace(p.Address.Street)
	p.HouseNumber = strings.TrimSpace(p.HouseNumber)
	p.DwellingType = DwellingType(strings.ToLower(strings.TrimSpace(string(p.DwellingType))))
}

// Validate reports the first missing or malformed field.
func (p HouseholdProfile) Validate() error {
	if p.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(p.Name) > 128 {
		return dErrors.New(dErrors.CodeValidation, "name must be 128 characters or less")
	}
	if p.Phone == "" {
		return dErrors.New(dErrors.CodeValidation, "phone is required")
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return dErrors.New(dErrors.CodeValidation, "email is malformed")
		}
	}
	if p.Address.Kebele == "" {
		return dErrors.New(dErrors.CodeValidation, "address.kebele is required")
	}
	if p.HouseNumber == "" {
		return dErrors.New(dErrors.CodeValidation, "house_number is required")
	}
	if p.DeclaredFamilySize < 1 {
		return dErrors.New(dErrors.CodeValidation, "declared_family_size must be at least 1")
	}
	if !p.DwellingType.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "dwelling_type must be owned, rented or government")
	}
	return nil
}

// NewHousehold builds a household from a validated profile.
func NewHousehold(householdID id.HouseholdID, p HouseholdProfile, now time.Time) (*Household, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Household{
		ID:                 householdID,
		Name:               p.Name,
		Phone:              p.Phone,
		Email:              p.Email,
		Address:            p.Address,
		HouseNumber:        p.HouseNumber,
		DeclaredFamilySize: p.DeclaredFamilySize,
		DwellingType:       p.DwellingType,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// CanRemove checks the household is currently listed.
func (h *Household) CanRemove() error {
	if h.Removed {
		return dErrors.New(dErrors.CodeInvalidTransition, "household is already removed")
	}
	return nil
}

// ApplyRemoval moves the household to the removed set.
func (h *Household) ApplyRemoval(now time.Time) {
	h.Removed = true
	h.RemovedAt = &now
	h.UpdatedAt = now
}

// CanRestore checks the household is in the removed set.
func (h *Household) CanRestore() error {
	if !h.Removed {
		return dErrors.New(dErrors.CodeInvalidTransition, "household is not removed")
	}
	return nil
}

// ApplyRestore returns the household to the active set.
func (h *Household) ApplyRestore(now time.Time) {
	h.Removed = false
	h.RemovedAt = nil
	h.UpdatedAt = now
}

// RegistrationRequest is a household's self-registration awaiting review.
// Approval creates the Household and records its ID here.
type RegistrationRequest struct {
	ID          id.RegistrationID `json:"id"`
	Profile     HouseholdProfile  `json:"profile"`
	Status      RequestStatus     `json:"status"`
	HouseholdID *id.HouseholdID   `json:"household_id,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	DecidedAt   *time.Time        `json:"decided_at,omitempty"`
	DecidedBy   string            `json:"decided_by,omitempty"`
	Version     int               `json:"-"`
}

// NewRegistrationRequest validates the profile and returns a PENDING registration.
func NewRegistrationRequest(regID id.RegistrationID, p HouseholdProfile, now time.Time) (*RegistrationRequest, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &RegistrationRequest{ID: regID, Profile: p, Status: StatusPending, CreatedAt: now}, nil
}

// Decide moves a PENDING registration to APPROVED or REJECTED.
func (r *RegistrationRequest) Decide(next RequestStatus, by, reason string, now time.Time) error {
	if next != StatusApproved && next != StatusRejected {
		return dErrors.New(dErrors.CodeInvalidInput, "status must be APPROVED or REJECTED")
	}
	if !r.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidTransition, "registration is already "+string(r.Status))
	}
	r.Status = next
	r.DecidedAt = &now
	r.DecidedBy = by
	r.Reason = reason
	return nil
}

func (h *Household) Clone() *Household {
	c := *h
	c.RemovedAt = cloneTime(h.RemovedAt)
	return &c
}

func (r *RegistrationRequest) Clone() *RegistrationRequest {
	c := *r
	c.DecidedAt = cloneTime(r.DecidedAt)
	if r.HouseholdID != nil {
		hid := *r.HouseholdID
		c.HouseholdID = &hid
	}
	return &c
}
