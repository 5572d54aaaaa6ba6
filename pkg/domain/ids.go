// Package domain holds the typed identifiers shared across the registry.
//
// Each identifier wraps a uuid.UUID so the compiler rejects passing a MemberID
// where a RequestID is expected. Construct them with the Parse functions at
// trust boundaries; direct conversion from uuid.UUID is reserved for code that
// generates fresh IDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "qochi/pkg/domain-errors"
)

type (
	HouseholdID    uuid.UUID
	MemberID       uuid.UUID
	RequestID      uuid.UUID
	RegistrationID uuid.UUID
)

func NewHouseholdID() HouseholdID       { return HouseholdID(uuid.New()) }
func NewMemberID() MemberID             { return MemberID(uuid.New()) }
func NewRequestID() RequestID           { return RequestID(uuid.New()) }
func NewRegistrationID() RegistrationID { return RegistrationID(uuid.New()) }

func (id HouseholdID) String() string    { return uuid.UUID(id).String() }
func (id MemberID) String() string       { return uuid.UUID(id).String() }
func (id RequestID) String() string      { return uuid.UUID(id).String() }
func (id RegistrationID) String() string { return uuid.UUID(id).String() }

func (id HouseholdID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id MemberID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id RequestID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id RegistrationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func (id HouseholdID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id MemberID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id RequestID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id RegistrationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *HouseholdID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *MemberID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RequestID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RegistrationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// ParseHouseholdID parses a household identifier from external input.
func ParseHouseholdID(s string) (HouseholdID, error) {
	u, err := parseUUID(s, "household_id")
	return HouseholdID(u), err
}

// ParseMemberID parses a member identifier from external input.
func ParseMemberID(s string) (MemberID, error) {
	u, err := parseUUID(s, "member_id")
	return MemberID(u), err
}

// ParseRequestID parses a request identifier from external input.
func ParseRequestID(s string) (RequestID, error) {
	u, err := parseUUID(s, "request_id")
	return RequestID(u), err
}

// ParseRegistrationID parses a registration identifier from external input.
func ParseRegistrationID(s string) (RegistrationID, error) {
	u, err := parseUUID(s, "registration_id")
	return RegistrationID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs with CodeInvalidInput.
func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, field+" cannot be nil")
	}
	return u, nil
}
