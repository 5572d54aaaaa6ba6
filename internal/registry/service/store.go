package service

import (
	"context"

	"qochi/internal/registry/models"
	id "qochi/pkg/domain"
)

// Reader is the read side of the record store. Implementations return
// copies; callers may mutate what they receive.
type Reader interface {
	FindHousehold(ctx context.Context, householdID id.HouseholdID) (*models.Household, error)
	ListHouseholds(ctx context.Context, filter models.HouseholdFilter) ([]*models.Household, error)
	FindRegistration(ctx context.Context, regID id.RegistrationID) (*models.RegistrationRequest, error)
	ListRegistrations(ctx context.Context, filter models.RegistrationFilter) ([]*models.RegistrationRequest, error)
	FindMember(ctx context.Context, memberID id.MemberID) (*models.Member, error)
	ListMembers(ctx context.Context, filter models.MemberFilter) ([]*models.Member, error)
	FindRequest(ctx context.Context, reqID id.RequestID) (*models.Request, error)
	// ListRequests returns matches in insertion order.
	ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.Request, error)
	FindCard(ctx context.Context, memberID id.MemberID) (*models.IdentityCard, error)
}

// Store is the transactional view handed to RunInTx callbacks.
//
// Update methods return sentinel.ErrConflict when the entity's Version no
// longer matches, and UpdateRequest/UpdateRegistration return
// sentinel.ErrInvalidState when the stored status is not from.
type Store interface {
	Reader
	CreateHousehold(ctx context.Context, h *models.Household) error
	UpdateHousehold(ctx context.Context, h *models.Household) error
	CreateRegistration(ctx context.Context, r *models.RegistrationRequest) error
	UpdateRegistration(ctx context.Context, r *models.RegistrationRequest, from models.RequestStatus) error
	CreateMember(ctx context.Context, m *models.Member) error
	UpdateMember(ctx context.Context, m *models.Member) error
	CreateRequest(ctx context.Context, r *models.Request) error
	UpdateRequest(ctx context.Context, r *models.Request, from models.RequestStatus) error
	SaveCard(ctx context.Context, c *models.IdentityCard) error
}

// StoreTx provides the atomic boundary for every mutation. Nothing fn wrote
// is visible to other readers unless fn returns nil and the commit succeeds.
// The ctx passed to fn carries the underlying transaction, if any.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store) error) error
}

// Backend is a record store usable for both reads and transactions.
type Backend interface {
	Reader
	StoreTx
}
