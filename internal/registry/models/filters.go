package models

import (
	"strings"
	"time"

	id "qochi/pkg/domain"
)

// RequestFilter narrows request listings. Zero values match everything.
type RequestFilter struct {
	HouseholdID *id.HouseholdID
	MemberID    *id.MemberID
	Statuses    []RequestStatus
	Kind        RequestKind
	// ExpiringBy keeps requests whose ExpiresAt is set and not after it.
	ExpiringBy *time.Time
}

func (f RequestFilter) Matches(r *Request) bool {
	if f.HouseholdID != nil && r.HouseholdID != *f.HouseholdID {
		return false
	}
	if f.MemberID != nil && r.SubjectMemberID != *f.MemberID {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.ExpiringBy != nil && (r.ExpiresAt == nil || r.ExpiresAt.After(*f.ExpiringBy)) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if r.Status == s {
			return true
		}
	}
	return false
}

// MemberFilter narrows roster listings. Search is a case-insensitive
// substring match on FullName or Relationship.
type MemberFilter struct {
	HouseholdID     *id.HouseholdID
	LifeStatus      LifeStatus
	AdmissionStatus AdmissionStatus
	Search          string
}

func (f MemberFilter) Matches(m *Member) bool {
	if f.HouseholdID != nil && m.HouseholdID != *f.HouseholdID {
		return false
	}
	if f.LifeStatus != "" && m.LifeStatus != f.LifeStatus {
		return false
	}
	if f.AdmissionStatus != "" && m.AdmissionStatus != f.AdmissionStatus {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.FullName), q) ||
		strings.Contains(strings.ToLower(m.Relationship), q)
}

// HouseholdFilter selects listed or removed households; nil Removed matches both.
type HouseholdFilter struct {
	Removed     *bool
	HouseNumber string
}

func (f HouseholdFilter) Matches(h *Household) bool {
	if f.HouseNumber != "" && !strings.EqualFold(h.HouseNumber, f.HouseNumber) {
		return false
	}
	return f.Removed == nil || h.Removed == *f.Removed
}

// RegistrationFilter narrows self-registration listings.
type RegistrationFilter struct {
	Statuses    []RequestStatus
	HouseNumber string
}

func (f RegistrationFilter) Matches(r *RegistrationRequest) bool {
	if f.HouseNumber != "" && !strings.EqualFold(r.Profile.HouseNumber, f.HouseNumber) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if r.Status == s {
			return true
		}
	}
	return false
}
