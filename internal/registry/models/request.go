package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
)

// RequestKind discriminates the Details variant carried by a Request.
type RequestKind string

const (
	KindBirth    RequestKind = "birth"
	KindDeath    RequestKind = "death"
	KindMarriage RequestKind = "marriage"
	KindDivorce  RequestKind = "divorce"
	KindIdentity RequestKind = "identity"
)

// AllKinds lists every request kind in display order.
var AllKinds = []RequestKind{KindBirth, KindDeath, KindMarriage, KindDivorce, KindIdentity}

func ParseRequestKind(s string) (RequestKind, error) {
	k := RequestKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "kind must be one of birth, death, marriage, divorce, identity")
	}
	return k, nil
}

func (k RequestKind) IsValid() bool {
	switch k {
	case KindBirth, KindDeath, KindMarriage, KindDivorce, KindIdentity:
		return true
	}
	return false
}

// IsCertificate is true for the four vital-record kinds.
func (k RequestKind) IsCertificate() bool {
	return k.IsValid() && k != KindIdentity
}

func (k RequestKind) String() string { return string(k) }

// IdentityKind is the sub-kind of an identity card request.
type IdentityKind string

const (
	IdentityNew    IdentityKind = "New"
	IdentityUpdate IdentityKind = "Update"
	IdentityLose   IdentityKind = "Lose"
)

func ParseIdentityKind(s string) (IdentityKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "new":
		return IdentityNew, nil
	case "update":
		return IdentityUpdate, nil
	case "lose", "lost":
		return IdentityLose, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "identity_kind must be New, Update or Lose")
}

// Attachments are opaque document store references supplied with a request.
type Attachments struct {
	DocumentRef string `json:"document_ref,omitempty"`
	PortraitRef string `json:"portrait_ref,omitempty"`
	ProofRef    string `json:"proof_ref,omitempty"`
}

func (a *Attachments) normalize() {
	a.DocumentRef = strings.TrimSpace(a.DocumentRef)
	a.PortraitRef = strings.TrimSpace(a.PortraitRef)
	a.ProofRef = strings.TrimSpace(a.ProofRef)
}

// Request is a certificate or identity card request for one member.
//
// Invariants:
//   - Kind matches Details.Kind()
//   - IdentityKind is set only for identity requests
//   - Status changes only through Approve, Reject and Expire
type Request struct {
	ID              id.RequestID   `json:"id"`
	HouseholdID     id.HouseholdID `json:"household_id"`
	SubjectMemberID id.MemberID    `json:"subject_member_id"`
	Kind            RequestKind    `json:"kind"`
	IdentityKind    IdentityKind   `json:"identity_kind,omitempty"`
	Status          RequestStatus  `json:"status"`
	Details         Details        `json:"details"`
	Attachments
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
	Seq       int64      `json:"seq"`
	Version   int        `json:"-"`
}

// NewRequest normalizes and validates a submission and returns it as PENDING.
// Seq is assigned by the store on insert.
func NewRequest(
	reqID id.RequestID,
	householdID id.HouseholdID,
	subject id.MemberID,
	identityKind IdentityKind,
	details Details,
	att Attachments,
	now time.Time,
) (*Request, error) {
	if details == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "request details are required")
	}
	if subject.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject_member_id is required")
	}
	kind := details.Kind()
	switch {
	case kind == KindIdentity && identityKind == "":
		return nil, dErrors.New(dErrors.CodeValidation, "identity_kind is required for identity requests")
	case kind != KindIdentity && identityKind != "":
		return nil, dErrors.New(dErrors.CodeValidation, "identity_kind is only valid for identity requests")
	}
	details.normalize()
	if err := details.validate(); err != nil {
		return nil, err
	}
	att.normalize()
	if kind == KindIdentity {
		if att.PortraitRef == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "portrait_ref is required")
		}
		if att.ProofRef == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "proof_ref is required")
		}
	}
	return &Request{
		ID:              reqID,
		HouseholdID:     householdID,
		SubjectMemberID: subject,
		Kind:            kind,
		IdentityKind:    identityKind,
		Status:          StatusPending,
		Details:         details,
		Attachments:     att,
		CreatedAt:       now,
	}, nil
}

// Slot groups requests that compete for the at-most-one-active rule.
// Identity sub-kinds share a single slot per member.
func (r *Request) Slot() string {
	return SlotFor(r.SubjectMemberID, r.Kind)
}

// SlotFor builds the duplicate-check key for a member and kind.
func SlotFor(member id.MemberID, kind RequestKind) string {
	return member.String() + ":" + string(kind)
}

// IsLapsed reports an APPROVED request whose validity window has elapsed.
func (r *Request) IsLapsed(now time.Time) bool {
	return r.Status == StatusApproved && r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}

// IsActive is true for PENDING requests and APPROVED requests still in their window.
func (r *Request) IsActive(now time.Time) bool {
	switch r.Status {
	case StatusPending:
		return true
	case StatusApproved:
		return !r.IsLapsed(now)
	}
	return false
}

// CanDecide checks that an administrative transition to next is legal.
func (r *Request) CanDecide(next RequestStatus) error {
	if next != StatusApproved && next != StatusRejected {
		return dErrors.New(dErrors.CodeInvalidInput, "status must be APPROVED or REJECTED")
	}
	if !r.Status.CanTransitionTo(next) {
		return dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("request is %s; cannot move to %s", r.Status, next))
	}
	return nil
}

// Approve flips PENDING to APPROVED. expiresAt may be nil for no expiry.
func (r *Request) Approve(by string, expiresAt *time.Time, now time.Time) error {
	if err := r.CanDecide(StatusApproved); err != nil {
		return err
	}
	r.Status = StatusApproved
	r.DecidedAt = &now
	r.DecidedBy = by
	r.ExpiresAt = expiresAt
	return nil
}

// Reject flips PENDING to REJECTED.
func (r *Request) Reject(by, reason string, now time.Time) error {
	if err := r.CanDecide(StatusRejected); err != nil {
		return err
	}
	r.Status = StatusRejected
	r.DecidedAt = &now
	r.DecidedBy = by
	r.Reason = strings.TrimSpace(reason)
	return nil
}

// Expire moves an APPROVED request to EXPIRED.
func (r *Request) Expire(now time.Time) error {
	if !r.Status.CanTransitionTo(StatusExpired) {
		return dErrors.New(dErrors.CodeInvalidTransition, "only APPROVED requests can expire")
	}
	r.Status = StatusExpired
	r.ExpiredAt = &now
	return nil
}

// Clone returns a deep copy safe to mutate.
func (r *Request) Clone() *Request {
	c := *r
	if r.Details != nil {
		c.Details = r.Details.clone()
	}
	c.DecidedAt = cloneTime(r.DecidedAt)
	c.ExpiresAt = cloneTime(r.ExpiresAt)
	c.ExpiredAt = cloneTime(r.ExpiredAt)
	return &c
}

type requestJSON struct {
	ID              id.RequestID    `json:"id"`
	HouseholdID     id.HouseholdID  `json:"household_id"`
	SubjectMemberID id.MemberID     `json:"subject_member_id"`
	Kind            RequestKind     `json:"kind"`
	IdentityKind    IdentityKind    `json:"identity_kind,omitempty"`
	Status          RequestStatus   `json:"status"`
	Details         json.RawMessage `json:"details"`
	Attachments
	Reason    string     `json:"reason,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	DecidedBy string     `json:"decided_by,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
	Seq       int64      `json:"seq"`
}

func (r Request) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(r.Details)
	if err != nil {
		return nil, err
	}
	return json.Marshal(requestJSON{
		ID:              r.ID,
		HouseholdID:     r.HouseholdID,
		SubjectMemberID: r.SubjectMemberID,
		Kind:            r.Kind,
		IdentityKind:    r.IdentityKind,
		Status:          r.Status,
		Details:         raw,
		Attachments:     r.Attachments,
		Reason:          r.Reason,
		CreatedAt:       r.CreatedAt,
		DecidedAt:       r.DecidedAt,
		DecidedBy:       r.DecidedBy,
		ExpiresAt:       r.ExpiresAt,
		ExpiredAt:       r.ExpiredAt,
		Seq:             r.Seq,
	})
}

func (r *Request) UnmarshalJSON(data []byte) error {
	var aux requestJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	details, err := DecodeDetails(aux.Kind, aux.Details)
	if err != nil {
		return err
	}
	*r = Request{
		ID:              aux.ID,
		HouseholdID:     aux.HouseholdID,
		SubjectMemberID: aux.SubjectMemberID,
		Kind:            aux.Kind,
		IdentityKind:    aux.IdentityKind,
		Status:          aux.Status,
		Details:         details,
		Attachments:     aux.Attachments,
		Reason:          aux.Reason,
		CreatedAt:       aux.CreatedAt,
		DecidedAt:       aux.DecidedAt,
		DecidedBy:       aux.DecidedBy,
		ExpiresAt:       aux.ExpiresAt,
		ExpiredAt:       aux.ExpiredAt,
		Seq:             aux.Seq,
	}
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
