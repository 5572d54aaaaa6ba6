package audit

import (
	"context"
	"time"

	id "qochi/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers decisions with legal significance: approvals,
	// rejections and expiries of civil records.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers access failures and household removal.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine submissions and uploads.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category    EventCategory
	Timestamp   time.Time
	HouseholdID id.HouseholdID
	// Subject names the entity acted on, e.g. "request:<uuid>".
	Subject  string
	Action   string
	Kind     string
	Decision string
	Reason   string
	// RequestID is the HTTP correlation ID, not a registry request.
	RequestID string
	ActorID   string
	ClientIP  string
	UserAgent string
}

type AuditEvent string

const (
	EventRequestSubmitted AuditEvent = "request_submitted"
	EventRequestRefused   AuditEvent = "request_refused"
	EventRequestApproved  AuditEvent = "request_approved"
	EventRequestRejected  AuditEvent = "request_rejected"
	EventRequestExpired   AuditEvent = "request_expired"

	EventMemberAdded       AuditEvent = "member_added"
	EventAdmissionApproved AuditEvent = "admission_approved"
	EventAdmissionRejected AuditEvent = "admission_rejected"
	EventMemberLeft        AuditEvent = "member_left_locality"

	EventRegistrationSubmitted AuditEvent = "registration_submitted"
	EventRegistrationApproved  AuditEvent = "registration_approved"
	EventRegistrationRejected  AuditEvent = "registration_rejected"

	EventHouseholdCreated  AuditEvent = "household_created"
	EventHouseholdRemoved  AuditEvent = "household_removed"
	EventHouseholdRestored AuditEvent = "household_restored"

	EventDocumentUploaded AuditEvent = "document_uploaded"
	EventAccessDenied     AuditEvent = "access_denied"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventRequestApproved:      CategoryCompliance,
	EventRequestRejected:      CategoryCompliance,
	EventRequestExpired:       CategoryCompliance,
	EventAdmissionApproved:    CategoryCompliance,
	EventAdmissionRejected:    CategoryCompliance,
	EventMemberLeft:           CategoryCompliance,
	EventRegistrationApproved: CategoryCompliance,
	EventRegistrationRejected: CategoryCompliance,
	EventHouseholdCreated:     CategoryCompliance,
	EventHouseholdRestored:    CategoryCompliance,

	EventHouseholdRemoved: CategorySecurity,
	EventAccessDenied:     CategorySecurity,

	EventRequestSubmitted:      CategoryOperations,
	EventRequestRefused:        CategoryOperations,
	EventMemberAdded:           CategoryOperations,
	EventRegistrationSubmitted: CategoryOperations,
	EventDocumentUploaded:      CategoryOperations,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByHousehold(ctx context.Context, householdID id.HouseholdID) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Sink receives serialized events for delivery outside the process.
type Sink interface {
	Publish(ctx context.Context, records []Record) error
}

// Record is an event ready for a Sink. Key groups events of one household.
type Record struct {
	ID      string
	Key     string
	Action  string
	Payload []byte
}
