package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "qochi/pkg/domain"
)

// payload is the JSON shape written to the outbox and published to sinks.
type payload struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Timestamp   string `json:"timestamp"`
	HouseholdID string `json:"household_id,omitempty"`
	Subject     string `json:"subject"`
	Action      string `json:"action"`
	Kind        string `json:"kind,omitempty"`
	Decision    string `json:"decision,omitempty"`
	Reason      string `json:"reason,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	ActorID     string `json:"actor_id,omitempty"`
	ClientIP    string `json:"client_ip,omitempty"`
	UserAgent   string `json:"user_agent,omitempty"`
}

// Encode serializes an event into a Record with a fresh ID.
func Encode(event Event) (Record, error) {
	eventID := uuid.New().String()
	p := payload{
		ID:        eventID,
		Category:  string(AuditEvent(event.Action).Category()),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		Kind:      event.Kind,
		Decision:  event.Decision,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ActorID:   event.ActorID,
		ClientIP:  event.ClientIP,
		UserAgent: event.UserAgent,
	}
	key := event.Subject
	if !event.HouseholdID.IsNil() {
		p.HouseholdID = event.HouseholdID.String()
		key = p.HouseholdID
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return Record{}, fmt.Errorf("marshal audit payload: %w", err)
	}
	return Record{ID: eventID, Key: key, Action: event.Action, Payload: raw}, nil
}

// Decode restores an event from a Record payload.
func Decode(raw []byte) (Event, error) {
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Event{}, fmt.Errorf("unmarshal audit payload: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
	if err != nil {
		return Event{}, fmt.Errorf("parse audit timestamp: %w", err)
	}
	event := Event{
		Category:  EventCategory(p.Category),
		Timestamp: ts,
		Subject:   p.Subject,
		Action:    p.Action,
		Kind:      p.Kind,
		Decision:  p.Decision,
		Reason:    p.Reason,
		RequestID: p.RequestID,
		ActorID:   p.ActorID,
		ClientIP:  p.ClientIP,
		UserAgent: p.UserAgent,
	}
	if p.HouseholdID != "" {
		hid, err := id.ParseHouseholdID(p.HouseholdID)
		if err != nil {
			return Event{}, err
		}
		event.HouseholdID = hid
	}
	return event, nil
}
