package models

import (
	"strings"
	"time"

	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
)

// Member is an individual tracked under exactly one household.
//
// Invariants:
//   - HouseholdID never changes after construction
//   - LifeStatus and AdmissionStatus change only through approval side effects
//   - Education and Occupation are optional for NEWBORN members
type Member struct {
	ID              id.MemberID     `json:"id"`
	HouseholdID     id.HouseholdID  `json:"household_id"`
	FullName        string          `json:"full_name"`
	BirthDate       time.Time       `json:"birth_date"`
	Residency       ResidencyKind   `json:"residency_kind"`
	Role            MemberRole      `json:"member_role,omitempty"`
	Relationship    string          `json:"relationship"`
	Education       string          `json:"education,omitempty"`
	Occupation      string          `json:"occupation,omitempty"`
	LifeStatus      LifeStatus      `json:"life_status"`
	AdmissionStatus AdmissionStatus `json:"admission_status"`
	DocumentRef     string          `json:"document_ref,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"-"`
}

// MemberProfile is the caller-supplied part of a member.
type MemberProfile struct {
	FullName     string        `json:"full_name"`
	BirthDate    time.Time     `json:"birth_date"`
	Residency    ResidencyKind `json:"residency_kind"`
	Role         MemberRole    `json:"member_role,omitempty"`
	Relationship string        `json:"relationship"`
	Education    string        `json:"education,omitempty"`
	Occupation   string        `json:"occupation,omitempty"`
	DocumentRef  string        `json:"document_ref,omitempty"`
}

func (p *MemberProfile) Normalize() {
	p.FullName = strings.Join(strings.Fields(p.FullName), " ")
	p.Relationship = strings.TrimSpace(p.Relationship)
	p.Education = strings.TrimSpace(p.Education)
	p.Occupation = strings.TrimSpace(p.Occupation)
	p.DocumentRef = strings.TrimSpace(p.DocumentRef)
	p.Residency = ResidencyKind(strings.ToUpper(strings.TrimSpace(string(p.Residency))))
	if p.Residency == "" {
		p.Residency = ResidencyPermanent
	}
}

func (p MemberProfile) Validate(now time.Time) error {
	if p.FullName == "" {
		return dErrors.New(dErrors.CodeValidation, "full_name is required")
	}
	if p.BirthDate.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "birth_date is required")
	}
	if p.BirthDate.After(now) {
		return dErrors.New(dErrors.CodeValidation, "birth_date cannot be in the future")
	}
	if p.Residency != ResidencyPermanent && p.Residency != ResidencyNewborn {
		return dErrors.New(dErrors.CodeValidation, "residency_kind must be PERMANENT or NEWBORN")
	}
	if !p.Role.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "member_role must be Header, Wife, Child or Other")
	}
	if p.Relationship == "" {
		return dErrors.New(dErrors.CodeValidation, "relationship is required")
	}
	if p.Residency == ResidencyPermanent {
		if p.Education == "" {
			return dErrors.New(dErrors.CodeValidation, "education is required")
		}
		if p.Occupation == "" {
			return dErrors.New(dErrors.CodeValidation, "occupation is required")
		}
	}
	return nil
}

// NewMember builds a member awaiting admission.
func NewMember(memberID id.MemberID, householdID id.HouseholdID, p MemberProfile, now time.Time) (*Member, error) {
	p.Normalize()
	if err := p.Validate(now); err != nil {
		return nil, err
	}
	return &Member{
		ID:              memberID,
		HouseholdID:     householdID,
		FullName:        p.FullName,
		BirthDate:       p.BirthDate,
		Residency:       p.Residency,
		Role:            p.Role,
		Relationship:    p.Relationship,
		Education:       p.Education,
		Occupation:      p.Occupation,
		LifeStatus:      LifeActive,
		AdmissionStatus: AdmissionPending,
		DocumentRef:     p.DocumentRef,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsAdmitted reports whether the member passed admission.
func (m *Member) IsAdmitted() bool {
	return m.AdmissionStatus == AdmissionApproved
}

// CountsTowardRoster is true for admitted members still living in the locality.
func (m *Member) CountsTowardRoster() bool {
	return m.IsAdmitted() && !m.LifeStatus.IsGone()
}

// SameIdentity reports whether p describes this member (name and birth date).
func (m *Member) SameIdentity(fullName string, birthDate time.Time) bool {
	return strings.EqualFold(m.FullName, fullName) && sameDay(m.BirthDate, birthDate)
}

// DecideAdmission moves a PENDING admission to APPROVED or REJECTED.
func (m *Member) DecideAdmission(next AdmissionStatus, now time.Time) error {
	if !m.AdmissionStatus.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidTransition, "admission is already "+string(m.AdmissionStatus))
	}
	m.AdmissionStatus = next
	m.UpdatedAt = now
	return nil
}

// Eligibility checks whether the member's life status allows a new request.
// The returned message is empty when eligible.
func (m *Member) Eligibility(kind RequestKind, identityKind IdentityKind) string {
	switch kind {
	case KindDeath:
		if m.LifeStatus == LifeDeceased {
			return "member is already recorded as deceased"
		}
	case KindBirth, KindMarriage:
		if m.LifeStatus.IsGone() {
			return "member is " + string(m.LifeStatus)
		}
		if kind == KindMarriage && m.LifeStatus == LifeMarried {
			return "member is already married"
		}
	case KindDivorce:
		if m.LifeStatus != LifeMarried {
			return "member is not married"
		}
	case KindIdentity:
		if identityKind == IdentityNew && m.LifeStatus.IsGone() {
			return "member is " + string(m.LifeStatus)
		}
		if m.LifeStatus == LifeDeceased {
			return "member is deceased"
		}
	}
	return ""
}

// ApplyDeath records an approved death.
func (m *Member) ApplyDeath(now time.Time) error {
	if m.LifeStatus == LifeDeceased {
		return dErrors.New(dErrors.CodeInvalidTransition, "member is already deceased")
	}
	m.LifeStatus = LifeDeceased
	m.UpdatedAt = now
	return nil
}

// MarkLeftLocality records that a living member moved away. The member
// drops out of the roster and can no longer file birth, marriage or new
// identity requests.
func (m *Member) MarkLeftLocality(now time.Time) error {
	if m.LifeStatus.IsGone() {
		return dErrors.New(dErrors.CodeInvalidTransition, "member is already "+string(m.LifeStatus))
	}
	m.LifeStatus = LifeLeftLocality
	m.UpdatedAt = now
	return nil
}

// ApplyMarriage records an approved marriage.
func (m *Member) ApplyMarriage(now time.Time) error {
	if m.LifeStatus != LifeActive {
		return dErrors.New(dErrors.CodeInvalidTransition, "member "+m.FullName+" is "+string(m.LifeStatus))
	}
	m.LifeStatus = LifeMarried
	m.UpdatedAt = now
	return nil
}

// ApplyDivorce reverts an approved marriage.
func (m *Member) ApplyDivorce(now time.Time) error {
	if m.LifeStatus != LifeMarried {
		return dErrors.New(dErrors.CodeInvalidTransition, "member "+m.FullName+" is not married")
	}
	m.LifeStatus = LifeActive
	m.UpdatedAt = now
	return nil
}

// ApplyBirth activates the registered child and counts it into the roster.
func (m *Member) ApplyBirth(now time.Time) error {
	if m.LifeStatus.IsGone() {
		return dErrors.New(dErrors.CodeInvalidTransition, "member is "+string(m.LifeStatus))
	}
	if m.LifeStatus != LifeMarried {
		m.LifeStatus = LifeActive
	}
	m.AdmissionStatus = AdmissionApproved
	m.UpdatedAt = now
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func (m *Member) Clone() *Member {
	c := *m
	return &c
}
