package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"qochi/internal/registry/models"
	id "qochi/pkg/domain"
	"qochi/pkg/platform/sentinel"
)

const requestColumns = `id, seq, household_id, subject_member_id, kind, identity_kind, status, details,
	document_ref, portrait_ref, proof_ref, reason, created_at, decided_at, decided_by, expires_at, expired_at, version`

func scanRequest(row scanner) (*models.Request, error) {
	var (
		r                               models.Request
		rid, hid, mid                   uuid.UUID
		kind, identityKind, status      string
		details                         []byte
		decidedAt, expiresAt, expiredAt sql.NullTime
	)
	err := row.Scan(&rid, &r.Seq, &hid, &mid, &kind, &identityKind, &status, &details,
		&r.DocumentRef, &r.PortraitRef, &r.ProofRef, &r.Reason, &r.CreatedAt, &decidedAt, &r.DecidedBy,
		&expiresAt, &expiredAt, &r.Version)
	if err != nil {
		return nil, err
	}
	r.ID = id.RequestID(rid)
	r.HouseholdID = id.HouseholdID(hid)
	r.SubjectMemberID = id.MemberID(mid)
	r.Kind = models.RequestKind(kind)
	r.IdentityKind = models.IdentityKind(identityKind)
	r.Status = models.RequestStatus(status)
	r.Details, err = models.DecodeDetails(r.Kind, details)
	if err != nil {
		return nil, fmt.Errorf("decode request details: %w", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.DecidedAt = timePtr(decidedAt)
	r.ExpiresAt = timePtr(expiresAt)
	r.ExpiredAt = timePtr(expiredAt)
	return &r, nil
}

// CreateRequest inserts r and stamps the Seq the database assigned.
func (s *Store) CreateRequest(ctx context.Context, r *models.Request) error {
	details, err := json.Marshal(r.Details)
	if err != nil {
		return fmt.Errorf("encode request details: %w", err)
	}
	err = s.exec(ctx).QueryRowContext(ctx, `
		INSERT INTO requests (id, household_id, subject_member_id, kind, identity_kind, status, details,
			document_ref, portrait_ref, proof_ref, reason, created_at, decided_at, decided_by, expires_at, expired_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1)
		RETURNING seq
	`, uuid.UUID(r.ID), uuid.UUID(r.HouseholdID), uuid.UUID(r.SubjectMemberID), string(r.Kind), string(r.IdentityKind),
		string(r.Status), details, r.DocumentRef, r.PortraitRef, r.ProofRef, r.Reason, r.CreatedAt,
		nullTime(r.DecidedAt), r.DecidedBy, nullTime(r.ExpiresAt), nullTime(r.ExpiredAt),
	).Scan(&r.Seq)
	if err != nil {
		return translate(err, "insert request")
	}
	r.Version = 1
	return nil
}

// UpdateRequest writes the decision fields only while the row is still in from.
func (s *Store) UpdateRequest(ctx context.Context, r *models.Request, from models.RequestStatus) error {
	q := s.exec(ctx)
	res, err := q.ExecContext(ctx, `
		UPDATE requests SET
			status = $4, reason = $5, decided_at = $6, decided_by = $7, expires_at = $8, expired_at = $9,
			version = version + 1
		WHERE id = $1 AND version = $2 AND status = $3
	`, uuid.UUID(r.ID), r.Version, string(from), string(r.Status), r.Reason, nullTime(r.DecidedAt), r.DecidedBy,
		nullTime(r.ExpiresAt), nullTime(r.ExpiredAt))
	if err != nil {
		return translate(err, "update request")
	}
	if err := checkUpdated(ctx, q, res, "requests", uuid.UUID(r.ID), string(from)); err != nil {
		return err
	}
	r.Version++
	return nil
}

func (s *Store) FindRequest(ctx context.Context, reqID id.RequestID) (*models.Request, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = $1`+forUpdate(ctx), uuid.UUID(reqID))
	r, err := scanRequest(row)
	if err != nil {
		return nil, translate(err, "find request")
	}
	return r, nil
}

// ListRequests returns matches ordered by seq, which is insertion order.
func (s *Store) ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.Request, error) {
	var w where
	if filter.HouseholdID != nil {
		w.add("household_id = ?", uuid.UUID(*filter.HouseholdID))
	}
	if filter.MemberID != nil {
		w.add("subject_member_id = ?", uuid.UUID(*filter.MemberID))
	}
	if filter.Kind != "" {
		w.add("kind = ?", string(filter.Kind))
	}
	if len(filter.Statuses) > 0 {
		w.add("status = ANY(?::text[])", pq.Array(statusStrings(filter.Statuses)))
	}
	if filter.ExpiringBy != nil {
		w.add("expires_at IS NOT NULL AND expires_at <= ?", *filter.ExpiringBy)
	}
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT `+requestColumns+` FROM requests`+w.String()+` ORDER BY seq`, w.args...)
	if err != nil {
		return nil, translate(err, "list requests")
	}
	defer rows.Close()

	out := make([]*models.Request, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, translate(err, "scan request")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "iterate requests")
	}
	return out, nil
}

func (s *Store) FindCard(ctx context.Context, memberID id.MemberID) (*models.IdentityCard, error) {
	var (
		c                    models.IdentityCard
		mid, rid             uuid.UUID
		expiresAt, expiredAt sql.NullTime
	)
	err := s.exec(ctx).QueryRowContext(ctx, `
		SELECT member_id, card_number, request_id, issued_at, expires_at, expired_at, replacements, version
		FROM identity_cards WHERE member_id = $1`+forUpdate(ctx), uuid.UUID(memberID),
	).Scan(&mid, &c.CardNumber, &rid, &c.IssuedAt, &expiresAt, &expiredAt, &c.Replacements, &c.Version)
	if err != nil {
		return nil, translate(err, "find card")
	}
	c.MemberID = id.MemberID(mid)
	c.RequestID = id.RequestID(rid)
	c.IssuedAt = c.IssuedAt.UTC()
	c.ExpiresAt = timePtr(expiresAt)
	c.ExpiredAt = timePtr(expiredAt)
	return &c, nil
}

// SaveCard inserts the member's first card when c.Version is zero and
// otherwise replaces the stored card only if its version still matches.
// Either way a concurrent writer surfaces as ErrConflict.
func (s *Store) SaveCard(ctx context.Context, c *models.IdentityCard) error {
	q := s.exec(ctx)
	var (
		res sql.Result
		err error
	)
	if c.Version == 0 {
		res, err = q.ExecContext(ctx, `
			INSERT INTO identity_cards (member_id, card_number, request_id, issued_at, expires_at, expired_at, replacements, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
			ON CONFLICT (member_id) DO NOTHING
		`, uuid.UUID(c.MemberID), c.CardNumber, uuid.UUID(c.RequestID), c.IssuedAt,
			nullTime(c.ExpiresAt), nullTime(c.ExpiredAt), c.Replacements)
	} else {
		res, err = q.ExecContext(ctx, `
			UPDATE identity_cards SET
				card_number = $3, request_id = $4, issued_at = $5, expires_at = $6, expired_at = $7,
				replacements = $8, version = version + 1
			WHERE member_id = $1 AND version = $2
		`, uuid.UUID(c.MemberID), c.Version, c.CardNumber, uuid.UUID(c.RequestID), c.IssuedAt,
			nullTime(c.ExpiresAt), nullTime(c.ExpiredAt), c.Replacements)
	}
	if err != nil {
		return translate(err, "save card")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return translate(err, "save card")
	}
	if n == 0 {
		return fmt.Errorf("identity_cards: %w: stale version", sentinel.ErrConflict)
	}
	c.Version++
	return nil
}
