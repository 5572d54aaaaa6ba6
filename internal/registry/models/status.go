package models

import (
	"strings"

	dErrors "qochi/pkg/domain-errors"
)

// RequestStatus is the lifecycle state shared by every request kind.
//
// Transitions:
//
//	PENDING  -> APPROVED | REJECTED
//	APPROVED -> EXPIRED
//
// REJECTED and EXPIRED are terminal; a new request may be submitted for the
// same member afterwards.
type RequestStatus string

const (
	StatusPending  RequestStatus = "PENDING"
	StatusApproved RequestStatus = "APPROVED"
	StatusRejected RequestStatus = "REJECTED"
	StatusExpired  RequestStatus = "EXPIRED"
)

var requestTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusExpired},
}

// ParseRequestStatus parses a status from external input, case-insensitively.
func ParseRequestStatus(s string) (RequestStatus, error) {
	st := RequestStatus(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status: "+s)
	}
	return st, nil
}

func (s RequestStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, allowed := range requestTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal is true for REJECTED and EXPIRED.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusExpired
}

func (s RequestStatus) String() string { return string(s) }

// AdmissionStatus gates whether a member counts toward the household roster.
type AdmissionStatus string

const (
	AdmissionPending  AdmissionStatus = "PENDING"
	AdmissionApproved AdmissionStatus = "APPROVED"
	AdmissionRejected AdmissionStatus = "REJECTED"
)

func ParseAdmissionStatus(s string) (AdmissionStatus, error) {
	st := AdmissionStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case AdmissionPending, AdmissionApproved, AdmissionRejected:
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid admission status: "+s)
}

// CanTransitionTo allows PENDING -> APPROVED | REJECTED only.
func (s AdmissionStatus) CanTransitionTo(next AdmissionStatus) bool {
	return s == AdmissionPending && (next == AdmissionApproved || next == AdmissionRejected)
}

// LifeStatus is the civil state of a member.
type LifeStatus string

const (
	LifeActive       LifeStatus = "ACTIVE"
	LifeMarried      LifeStatus = "MARRIED"
	LifeDeceased     LifeStatus = "DECEASED"
	LifeLeftLocality LifeStatus = "LEFT_LOCALITY"
)

func ParseLifeStatus(s string) (LifeStatus, error) {
	st := LifeStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case LifeActive, LifeMarried, LifeDeceased, LifeLeftLocality:
		return st, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "invalid life status: "+s)
}

// IsGone is true when the member no longer lives in the locality.
func (s LifeStatus) IsGone() bool {
	return s == LifeDeceased || s == LifeLeftLocality
}

// ResidencyKind distinguishes members registered at birth from residents.
type ResidencyKind string

const (
	ResidencyPermanent ResidencyKind = "PERMANENT"
	ResidencyNewborn   ResidencyKind = "NEWBORN"
)

// MemberRole is the member's position in the household. Empty is allowed.
type MemberRole string

const (
	RoleHeader MemberRole = "Header"
	RoleWife   MemberRole = "Wife"
	RoleChild  MemberRole = "Child"
	RoleOther  MemberRole = "Other"
)

func (r MemberRole) IsValid() bool {
	switch r {
	case "", RoleHeader, RoleWife, RoleChild, RoleOther:
		return true
	}
	return false
}

// DwellingType describes how the household occupies its house.
type DwellingType string

const (
	DwellingOwned      DwellingType = "owned"
	DwellingRented     DwellingType = "rented"
	DwellingGovernment DwellingType = "government"
)

func (d DwellingType) IsValid() bool {
	switch d {
	case DwellingOwned, DwellingRented, DwellingGovernment:
		return true
	}
	return false
}
