package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	id "qochi/pkg/domain"
	audit "qochi/pkg/platform/audit"
	txcontext "qochi/pkg/platform/tx"
)

// Store implements audit.Store using the transactional outbox pattern.
// Append joins the caller's transaction when one is bound to ctx, so an
// audit row commits or rolls back together with the registry change.
// The outbox worker relays unpublished rows to the configured sink.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes an audit event to the outbox table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	rec, err := audit.Encode(event)
	if err != nil {
		return err
	}
	var householdID *string
	if !event.HouseholdID.IsNil() {
		v := event.HouseholdID.String()
		householdID = &v
	}
	query := `
		INSERT INTO audit_outbox (id, household_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = txcontext.Executor(ctx, s.db).ExecContext(ctx, query,
		rec.ID,
		householdID,
		event.Action,
		rec.Payload,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByHousehold returns a household's events, oldest first.
func (s *Store) ListByHousehold(ctx context.Context, householdID id.HouseholdID) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM audit_outbox
		WHERE household_id = $1
		ORDER BY created_at, id
	`, householdID.String())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the N most recent events, oldest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM (
			SELECT payload, created_at, id FROM audit_outbox
			ORDER BY created_at DESC, id DESC
			LIMIT $1
		) recent
		ORDER BY created_at, id
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// FetchUnpublished returns up to limit outbox rows not yet relayed.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]audit.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(household_id::text, ''), event_type, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var rec audit.Record
		if err := rows.Scan(&rec.ID, &rec.Key, &rec.Action, &rec.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return out, nil
}

// MarkPublished stamps relayed rows so they are not sent again.
func (s *Store) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_outbox SET published_at = $1
		WHERE id = ANY($2::uuid[])
	`, time.Now(), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event, err := audit.Decode(raw)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
