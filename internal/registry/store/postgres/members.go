package postgres

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"qochi/internal/registry/models"
	id "qochi/pkg/domain"
)

const memberColumns = `id, household_id, full_name, birth_date, residency_kind, member_role, relationship,
	education, occupation, life_status, admission_status, document_ref, created_at, updated_at, version`

func scanMember(row scanner) (*models.Member, error) {
	var (
		m                                models.Member
		mid, hid                         uuid.UUID
		residency, role, life, admission string
	)
	err := row.Scan(&mid, &hid, &m.FullName, &m.BirthDate, &residency, &role, &m.Relationship,
		&m.Education, &m.Occupation, &life, &admission, &m.DocumentRef, &m.CreatedAt, &m.UpdatedAt, &m.Version)
	if err != nil {
		return nil, err
	}
	m.ID = id.MemberID(mid)
	m.HouseholdID = id.HouseholdID(hid)
	m.Residency = models.ResidencyKind(residency)
	m.Role = models.MemberRole(role)
	m.LifeStatus = models.LifeStatus(life)
	m.AdmissionStatus = models.AdmissionStatus(admission)
	m.BirthDate = m.BirthDate.UTC()
	m.CreatedAt = m.CreatedAt.UTC()
	m.UpdatedAt = m.UpdatedAt.UTC()
	return &m, nil
}

func (s *Store) CreateMember(ctx context.Context, m *models.Member) error {
	_, err := s.exec(ctx).ExecContext(ctx, `
		INSERT INTO members (`+memberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)
	`, uuid.UUID(m.ID), uuid.UUID(m.HouseholdID), m.FullName, m.BirthDate, string(m.Residency), string(m.Role),
		m.Relationship, m.Education, m.Occupation, string(m.LifeStatus), string(m.AdmissionStatus),
		m.DocumentRef, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return translate(err, "insert member")
	}
	m.Version = 1
	return nil
}

func (s *Store) UpdateMember(ctx context.Context, m *models.Member) error {
	q := s.exec(ctx)
	res, err := q.ExecContext(ctx, `
		UPDATE members SET
			full_name = $3, birth_date = $4, residency_kind = $5, member_role = $6, relationship = $7,
			education = $8, occupation = $9, life_status = $10, admission_status = $11, document_ref = $12,
			updated_at = $13, version = version + 1
		WHERE id = $1 AND version = $2
	`, uuid.UUID(m.ID), m.Version, m.FullName, m.BirthDate, string(m.Residency), string(m.Role), m.Relationship,
		m.Education, m.Occupation, string(m.LifeStatus), string(m.AdmissionStatus), m.DocumentRef, m.UpdatedAt)
	if err != nil {
		return translate(err, "update member")
	}
	if err := checkUpdated(ctx, q, res, "members", uuid.UUID(m.ID), ""); err != nil {
		return err
	}
	m.Version++
	return nil
}

func (s *Store) FindMember(ctx context.Context, memberID id.MemberID) (*models.Member, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`+forUpdate(ctx), uuid.UUID(memberID))
	m, err := scanMember(row)
	if err != nil {
		return nil, translate(err, "find member")
	}
	return m, nil
}

func (s *Store) ListMembers(ctx context.Context, filter models.MemberFilter) ([]*models.Member, error) {
	var w where
	if filter.HouseholdID != nil {
		w.add("household_id = ?", uuid.UUID(*filter.HouseholdID))
	}
	if filter.LifeStatus != "" {
		w.add("life_status = ?", string(filter.LifeStatus))
	}
	if filter.AdmissionStatus != "" {
		w.add("admission_status = ?", string(filter.AdmissionStatus))
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Search)); q != "" {
		w.add("(strpos(lower(full_name), ?) > 0 OR strpos(lower(relationship), ?) > 0)", q)
	}
	rows, err := s.exec(ctx).QueryContext(ctx,
		`SELECT `+memberColumns+` FROM members`+w.String()+` ORDER BY created_at, id`, w.args...)
	if err != nil {
		return nil, translate(err, "list members")
	}
	defer rows.Close()

	out := make([]*models.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, translate(err, "scan member")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(err, "iterate members")
	}
	return out, nil
}
