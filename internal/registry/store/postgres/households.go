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
)

const householdColumns = `id, name, phone, email, kebele, zone, street, house_number,
	declared_family_size, dwelling_type, removed, removed_at, created_at, updated_at, version`

func scanHousehold(row scanner) (*models.Household, error) {
	var (
		h         models.Household
		hid       uuid.UUID
		dwelling  string
		removedAt sql.NullTime
	)
	err := row.Scan(&hid, &h.Name, &h.Phone, &h.Email, &h.Address.Kebele, &h.Address.Zone, &h.Address.Street,
		&h.HouseNumber, &h.DeclaredFamilySize, &dwelling, &h.Removed, &removedAt, &h.CreatedAt, &h.UpdatedAt, &h.Version)
	if err != nil {
		return nil, err
	}
	h.ID = id.HouseholdID(hid)
	h.DwellingType = models.DwellingType(dwelling)
	h.RemovedAt = timePtr(removedAt)
	h.CreatedAt = h.CreatedAt.UTC()
	h.UpdatedAt = h.UpdatedAt.UTC()
	return &h, nil
}

func (s *Store) CreateHousehold(ctx context.Context, h *models.Household) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO households (`+householdColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)
	`, uuid.UUID(h.ID), h.Name, h.Phone, h.Email, h.Address.Kebele, h.Address.Zone, h.Address.Street,
		h.HouseNumber, h.DeclaredFamilySize, string(h.DwellingType), h.Removed, nullTime(h.RemovedAt),
		h.CreatedAt, h.UpdatedAt)
	if err != nil {
		return translate(err, "insert household")
	}
	h.Version = 1
	return nil
}

func (s *Store) UpdateHousehold(ctx context.Context, h *models.Household) error {
	q := s.exec(ctx)
	res, err := q.ExecContext(ctx, `
		UPDATE households SET
			name = $3, phone = $4, email = $5, kebele = $6, zone = $7, street = $8, house_number = $9,
			declared_family_size = $10, dwelling_type = $11, removed = $12, removed_at = $13,
			updated_at = $14, version = version + 1
		WHERE id = $1 AND version = $2
	`, uuid.UUID(h.ID), h.Version, h.Name, h.Phone, h.Email, h.Address.Kebele, h.Address.Zone, h.Address.Street,
		h.HouseNumber, h.DeclaredFamilySize, string(h.DwellingType), h.Removed, nullTime(h.RemovedAt), h.UpdatedAt)
	if err != nil {
		return translate(err, "update household")
	}
	if err := checkUpdated(ctx, q, res, "households", uuid.UUID(h.ID), ""); err != nil {
		return err
	}
	h.Version++
	return nil
}

func (s *Store) FindHousehold(ctx context.Context, householdID id.HouseholdID) (*models.Household, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+householdColumns+` FROM households WHERE id = $1`+forUpdate(ctx), uuid.UUID(householdID))
	h, err := scanHousehold(row)
	if err != nil {
		return nil, translate(err, "find household")
	}
	return h, nil
}

func (s *Store) ListHouseholds(ctx context.Context, filter models.HouseholdFilter) ([]*models.Household, error) {
	var w where
	if filter.Removed != nil {
		w.add("removed = ?", *filter.Removed)
	}
	if filter.HouseNumber != "" {
		w.add("lower(house_number) = lower(?)", filter.HouseNumber)
	}
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT `+householdColumns+` FROM households`+w.String()+` ORDER BY created_at, id`, w.args...)
	if err != nil {
		return nil, translate(err, "list households")
	}
	defer rows.Close()

	out := make([]*models.Household, 0)
	for rows.Next() {
		h, err := scanHousehold(rows)
		if err != nil {
			return nil, translate(err, "scan household")
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "iterate households")
	}
	return out, nil
}

const registrationColumns = `id, profile, status, household_id, reason, created_at, decided_at, decided_by, version`

func scanRegistration(row scanner) (*models.RegistrationRequest, error) {
	var (
		r         models.RegistrationRequest
		rid       uuid.UUID
		profile   []byte
		status    string
		household uuid.NullUUID
		decidedAt sql.NullTime
	)
	if err := row.Scan(&rid, &profile, &status, &household, &r.Reason, &r.CreatedAt, &decidedAt, &r.DecidedBy, &r.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(profile, &r.Profile); err != nil {
		return nil, fmt.Errorf("decode registration profile: %w", err)
	}
	r.ID = id.RegistrationID(rid)
	r.Status = models.RequestStatus(status)
	if household.Valid {
		hid := id.HouseholdID(household.UUID)
		r.HouseholdID = &hid
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.DecidedAt = timePtr(decidedAt)
	return &r, nil
}

func registrationHousehold(r *models.RegistrationRequest) uuid.NullUUID {
	if r.HouseholdID == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(*r.HouseholdID), Valid: true}
}

func (s *Store) CreateRegistration(ctx context.Context, r *models.RegistrationRequest) error {
	profile, err := json.Marshal(r.Profile)
	if err != nil {
		return fmt.Errorf("encode registration profile: %w", err)
	}
	_, err = s.exec(ctx).ExecContext(ctx, `
		INSERT INTO registrations (id, profile, house_number, status, household_id, reason, created_at, decided_at, decided_by, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)
	`, uuid.UUID(r.ID), profile, r.Profile.HouseNumber, string(r.Status), registrationHousehold(r),
		r.Reason, r.CreatedAt, nullTime(r.DecidedAt), r.DecidedBy)
	if err != nil {
		return translate(err, "insert registration")
	}
	r.Version = 1
	return nil
}

func (s *Store) UpdateRegistration(ctx context.Context, r *models.RegistrationRequest, from models.RequestStatus) error {
	q := s.exec(ctx)
	res, err := q.ExecContext(ctx, `
		UPDATE registrations SET
			status = $4, household_id = $5, reason = $6, decided_at = $7, decided_by = $8, version = version + 1
		WHERE id = $1 AND version = $2 AND status = $3
	`, uuid.UUID(r.ID), r.Version, string(from), string(r.Status), registrationHousehold(r),
		r.Reason, nullTime(r.DecidedAt), r.DecidedBy)
	if err != nil {
		return translate(err, "update registration")
	}
	if err := checkUpdated(ctx, q, res, "registrations", uuid.UUID(r.ID), string(from)); err != nil {
		return err
	}
	r.Version++
	return nil
}

func (s *Store) FindRegistration(ctx context.Context, regID id.RegistrationID) (*models.RegistrationRequest, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`+forUpdate(ctx), uuid.UUID(regID))
	r, err := scanRegistration(row)
	if err != nil {
		return nil, translate(err, "find registration")
	}
	return r, nil
}

func (s *Store) ListRegistrations(ctx context.Context, filter models.RegistrationFilter) ([]*models.RegistrationRequest, error) {
	var w where
	if len(filter.Statuses) > 0 {
		w.add("status = ANY(?::text[])", pq.Array(statusStrings(filter.Statuses)))
	}
	if filter.HouseNumber != "" {
		w.add("lower(house_number) = lower(?)", filter.HouseNumber)
	}
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations`+w.String()+` ORDER BY created_at, id`, w.args...)
	if err != nil {
		return nil, translate(err, "list registrations")
	}
	defer rows.Close()

	out := make([]*models.RegistrationRequest, 0)
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, translate(err, "scan registration")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "iterate registrations")
	}
	return out, nil
}

func statusStrings(statuses []models.RequestStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
