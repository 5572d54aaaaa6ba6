// Package projection serves read-only views over committed registry state.
// Nothing here writes; every view is derived on read.
package projection

import (
	"context"
	"errors"
	"time"

	"qochi/internal/registry/models"
	"qochi/internal/registry/service"
	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	"qochi/pkg/platform/sentinel"
)

type Projection struct {
	reader service.Reader
}

func New(reader service.Reader) *Projection {
	return &Projection{reader: reader}
}

// PendingCounts feeds the admin dashboard.
type PendingCounts struct {
	Total         int                        `json:"total"`
	ByHousehold   map[id.HouseholdID]int     `json:"by_household"`
	ByKind        map[models.RequestKind]int `json:"by_kind"`
	Admissions    int                        `json:"pending_admissions"`
	Registrations int                        `json:"pending_registrations"`
}

// RosterFilter selects members of one household. Empty fields match all.
type RosterFilter struct {
	HouseholdID     id.HouseholdID
	LifeStatus      models.LifeStatus
	AdmissionStatus models.AdmissionStatus
	Search          string
}

// RequestSummary is the list form of a request, with the subject's name
// resolved.
type RequestSummary struct {
	ID              id.RequestID         `json:"id"`
	HouseholdID     id.HouseholdID       `json:"household_id"`
	SubjectMemberID id.MemberID          `json:"subject_member_id"`
	SubjectName     string               `json:"subject_name"`
	Kind            models.RequestKind   `json:"kind"`
	IdentityKind    models.IdentityKind  `json:"identity_kind,omitempty"`
	Status          models.RequestStatus `json:"status"`
	Reason          string               `json:"reason,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	DecidedAt       *time.Time           `json:"decided_at,omitempty"`
	ExpiresAt       *time.Time           `json:"expires_at,omitempty"`
}

// HouseholdSummary carries the derived roster size, which is never stored.
type HouseholdSummary struct {
	*models.Household
	RosterSize        int `json:"roster_size"`
	PendingRequests   int `json:"pending_requests"`
	PendingAdmissions int `json:"pending_admissions"`
}

func (p *Projection) PendingCounts(ctx context.Context) (*PendingCounts, error) {
	pending, err := p.reader.ListRequests(ctx, models.RequestFilter{Statuses: []models.RequestStatus{models.StatusPending}})
	if err != nil {
		return nil, readError(err, "request")
	}
	counts := &PendingCounts{
		ByHousehold: make(map[id.HouseholdID]int),
		ByKind:      make(map[models.RequestKind]int),
	}
	for _, r := range pending {
		counts.Total++
		counts.ByHousehold[r.HouseholdID]++
		counts.ByKind[r.Kind]++
	}

	members, err := p.reader.ListMembers(ctx, models.MemberFilter{AdmissionStatus: models.AdmissionPending})
	if err != nil {
		return nil, readError(err, "member")
	}
	counts.Admissions = len(members)

	regs, err := p.reader.ListRegistrations(ctx, models.RegistrationFilter{Statuses: []models.RequestStatus{models.StatusPending}})
	if err != nil {
		return nil, readError(err, "registration")
	}
	counts.Registrations = len(regs)
	return counts, nil
}

// ForYou lists the PENDING requests for members of a household.
func (p *Projection) ForYou(ctx context.Context, householdID id.HouseholdID) ([]RequestSummary, error) {
	return p.RequestList(ctx, models.RequestFilter{
		HouseholdID: &householdID,
		Statuses:    []models.RequestStatus{models.StatusPending},
	})
}

// Roster lists a household's members ordered by CreatedAt.
func (p *Projection) Roster(ctx context.Context, f RosterFilter) ([]*models.Member, error) {
	if f.HouseholdID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "household_id is required")
	}
	members, err := p.reader.ListMembers(ctx, models.MemberFilter{
		HouseholdID:     &f.HouseholdID,
		LifeStatus:      f.LifeStatus,
		AdmissionStatus: f.AdmissionStatus,
		Search:          f.Search,
	})
	if err != nil {
		return nil, readError(err, "member")
	}
	return members, nil
}

// RequestList returns summaries in insertion order.
func (p *Projection) RequestList(ctx context.Context, f models.RequestFilter) ([]RequestSummary, error) {
	reqs, err := p.reader.ListRequests(ctx, f)
	if err != nil {
		return nil, readError(err, "request")
	}
	names := make(map[id.MemberID]string)
	out := make([]RequestSummary, 0, len(reqs))
	for _, r := range reqs {
		name, ok := names[r.SubjectMemberID]
		if !ok {
			m, err := p.reader.FindMember(ctx, r.SubjectMemberID)
			switch {
			case err == nil:
				name = m.FullName
			case !isNotFound(err):
				return nil, readError(err, "member")
			}
			names[r.SubjectMemberID] = name
		}
		out = append(out, RequestSummary{
			ID:              r.ID,
			HouseholdID:     r.HouseholdID,
			SubjectMemberID: r.SubjectMemberID,
			SubjectName:     name,
			Kind:            r.Kind,
			IdentityKind:    r.IdentityKind,
			Status:          r.Status,
			Reason:          r.Reason,
			CreatedAt:       r.CreatedAt,
			DecidedAt:       r.DecidedAt,
			ExpiresAt:       r.ExpiresAt,
		})
	}
	return out, nil
}

func (p *Projection) HouseholdSummary(ctx context.Context, householdID id.HouseholdID) (*HouseholdSummary, error) {
	h, err := p.reader.FindHousehold(ctx, householdID)
	if err != nil {
		return nil, readError(err, "household")
	}
	members, err := p.reader.ListMembers(ctx, models.MemberFilter{HouseholdID: &householdID})
	if err != nil {
		return nil, readError(err, "member")
	}
	summary := &HouseholdSummary{Household: h}
	for _, m := range members {
		if m.CountsTowardRoster() {
			summary.RosterSize++
		}
		if m.AdmissionStatus == models.AdmissionPending {
			summary.PendingAdmissions++
		}
	}
	pending, err := p.reader.ListRequests(ctx, models.RequestFilter{
		HouseholdID: &householdID,
		Statuses:    []models.RequestStatus{models.StatusPending},
	})
	if err != nil {
		return nil, readError(err, "request")
	}
	summary.PendingRequests = len(pending)
	return summary, nil
}

func (p *Projection) Households(ctx context.Context, f models.HouseholdFilter) ([]*models.Household, error) {
	hs, err := p.reader.ListHouseholds(ctx, f)
	if err != nil {
		return nil, readError(err, "household")
	}
	return hs, nil
}

func (p *Projection) Registrations(ctx context.Context, f models.RegistrationFilter) ([]*models.RegistrationRequest, error) {
	regs, err := p.reader.ListRegistrations(ctx, f)
	if err != nil {
		return nil, readError(err, "registration")
	}
	return regs, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, sentinel.ErrNotFound)
}

func readError(err error, entity string) error {
	if isNotFound(err) {
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "read cancelled")
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "record store unavailable")
}
