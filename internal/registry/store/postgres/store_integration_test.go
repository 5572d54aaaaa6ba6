//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"qochi/internal/registry/models"
	"qochi/internal/registry/service"
	pgstore "qochi/internal/registry/store/postgres"
	id "qochi/pkg/domain"
	"qochi/pkg/platform/sentinel"
	"qochi/pkg/testutil/containers"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type StoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *pgstore.Store
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = pgstore.New(s.pg.DB)
}

func (s *StoreSuite) TearDownSuite() {
	if s.pg != nil {
		_ = s.pg.DB.Close()
		_ = s.pg.Container.Terminate(context.Background())
	}
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.pg.Truncate(s.ctx))
}

func (s *StoreSuite) tx(fn func(ctx context.Context, tx service.Store) error) {
	s.Require().NoError(s.store.RunInTx(s.ctx, fn))
}

func (s *StoreSuite) household(houseNumber string) *models.Household {
	h, err := models.NewHousehold(id.NewHouseholdID(), models.HouseholdProfile{
		Name:               "Girma",
		Phone:              "+251911000000",
		Address:            models.Address{Kebele: "04", Zone: "North"},
		HouseNumber:        houseNumber,
		DeclaredFamilySize: 3,
		DwellingType:       models.DwellingOwned,
	}, now)
	s.Require().NoError(err)
	s.tx(func(ctx context.Context, tx service.Store) error { return tx.CreateHousehold(ctx, h) })
	return h
}

func (s *StoreSuite) member(h *models.Household, name string) *models.Member {
	m, err := models.NewMember(id.NewMemberID(), h.ID, models.MemberProfile{
		FullName:     name,
		BirthDate:    time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Relationship: "head",
		Education:    "degree",
		Occupation:   "nurse",
	}, now)
	s.Require().NoError(err)
	s.tx(func(ctx context.Context, tx service.Store) error { return tx.CreateMember(ctx, m) })
	return m
}

func (s *StoreSuite) newRequest(m *models.Member) *models.Request {
	r, err := models.NewRequest(id.NewRequestID(), m.HouseholdID, m.ID, "", &models.DeathDetails{
		DeceasedName: m.FullName,
		DateOfDeath:  now,
		PlaceOfDeath: "Hawassa",
		Cause:        "natural",
	}, models.Attachments{DocumentRef: "doc.pdf"}, now)
	s.Require().NoError(err)
	return r
}

func (s *StoreSuite) request(m *models.Member) *models.Request {
	r := s.newRequest(m)
	s.tx(func(ctx context.Context, tx service.Store) error { return tx.CreateRequest(ctx, r) })
	return r
}

func (s *StoreSuite) TestHouseholdRoundTripAndVersioning() {
	h := s.household("H-1")

	got, err := s.store.FindHousehold(s.ctx, h.ID)
	s.Require().NoError(err)
	s.Equal("H-1", got.HouseNumber)
	s.Equal(models.DwellingOwned, got.DwellingType)
	s.Equal(1, got.Version)

	got.ApplyRemoval(now.Add(time.Hour))
	s.tx(func(ctx context.Context, tx service.Store) error { return tx.UpdateHousehold(ctx, got) })
	s.Equal(2, got.Version)

	reloaded, err := s.store.FindHousehold(s.ctx, h.ID)
	s.Require().NoError(err)
	s.True(reloaded.Removed)
	s.Require().NotNil(reloaded.RemovedAt)

	// h still carries version 1.
	err = s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.Store) error {
		return tx.UpdateHousehold(ctx, h)
	})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *StoreSuite) TestFindMissingIsNotFound() {
	_, err := s.store.FindHousehold(s.ctx, id.NewHouseholdID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindRequest(s.ctx, id.NewRequestID())
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindCard(s.ctx, id.NewMemberID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestListedHouseNumberIsUnique() {
	s.household("H-7")
	h, err := models.NewHousehold(id.NewHouseholdID(), models.HouseholdProfile{
		Name:               "Tesfaye",
		Phone:              "+251911000001",
		Address:            models.Address{Kebele: "04"},
		HouseNumber:        "h-7",
		DeclaredFamilySize: 1,
		DwellingType:       models.DwellingRented,
	}, now)
	s.Require().NoError(err)

	err = s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.Store) error {
		return tx.CreateHousehold(ctx, h)
	})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *StoreSuite) TestMemberFilters() {
	h := s.household("H-2")
	other := s.household("H-3")
	abebe := s.member(h, "Abebe Kebede")
	s.member(h, "Hana Girma")
	s.member(other, "Abebe Tadesse")

	hid := h.ID
	byHousehold, err := s.store.ListMembers(s.ctx, models.MemberFilter{HouseholdID: &hid})
	s.Require().NoError(err)
	s.Len(byHousehold, 2)

	search, err := s.store.ListMembers(s.ctx, models.MemberFilter{HouseholdID: &hid, Search: "ABEBE"})
	s.Require().NoError(err)
	s.Require().Len(search, 1)
	s.Equal(abebe.ID, search[0].ID)
	s.Equal(abebe.BirthDate, search[0].BirthDate)

	pending, err := s.store.ListMembers(s.ctx, models.MemberFilter{AdmissionStatus: models.AdmissionPending})
	s.Require().NoError(err)
	s.Len(pending, 3)
}

func (s *StoreSuite) TestRequestSeqOrderAndFilters() {
	h := s.household("H-4")
	first := s.member(h, "Abebe Kebede")
	second := s.member(h, "Hana Girma")

	a := s.request(first)
	b := s.request(second)
	s.Less(a.Seq, b.Seq)

	got, err := s.store.FindRequest(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(models.KindDeath, got.Kind)
	s.Equal(models.StatusPending, got.Status)
	details, ok := got.Details.(*models.DeathDetails)
	s.Require().True(ok)
	s.Equal("Hawassa", details.PlaceOfDeath)

	s.Require().NoError(got.Approve("clerk-7", nil, now.Add(time.Hour)))
	s.tx(func(ctx context.Context, tx service.Store) error {
		return tx.UpdateRequest(ctx, got, models.StatusPending)
	})

	all, err := s.store.ListRequests(s.ctx, models.RequestFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(a.ID, all[0].ID)
	s.Equal(b.ID, all[1].ID)

	pending, err := s.store.ListRequests(s.ctx, models.RequestFilter{Statuses: []models.RequestStatus{models.StatusPending}})
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(b.ID, pending[0].ID)

	memberID := first.ID
	byMember, err := s.store.ListRequests(s.ctx, models.RequestFilter{MemberID: &memberID, Kind: models.KindDeath})
	s.Require().NoError(err)
	s.Require().Len(byMember, 1)
	s.Equal(models.StatusApproved, byMember[0].Status)
	s.Equal("clerk-7", byMember[0].DecidedBy)
}

func (s *StoreSuite) TestUpdateFromWrongStatusIsInvalidState() {
	h := s.household("H-5")
	r := s.request(s.member(h, "Abebe Kebede"))

	stale := *r
	s.Require().NoError(r.Reject("clerk-7", "missing proof", now))
	s.tx(func(ctx context.Context, tx service.Store) error {
		return tx.UpdateRequest(ctx, r, models.StatusPending)
	})

	s.Require().NoError(stale.Approve("clerk-8", nil, now))
	err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.Store) error {
		return tx.UpdateRequest(ctx, &stale, models.StatusPending)
	})
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *StoreSuite) TestOnePendingRequestPerSlot() {
	h := s.household("H-6")
	m := s.member(h, "Abebe Kebede")
	s.request(m)

	err := s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.Store) error {
		return tx.CreateRequest(ctx, s.newRequest(m))
	})
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *StoreSuite) TestSaveCardIsVersioned() {
	h := s.household("H-8")
	m := s.member(h, "Abebe Kebede")
	first := s.request(m)

	card := models.NewIdentityCard(m.ID, "QC-000001", first.ID, nil, now)
	s.tx(func(ctx context.Context, tx service.Store) error { return tx.SaveCard(ctx, card) })

	s.Require().NoError(first.Approve("clerk-7", nil, now))
	s.tx(func(ctx context.Context, tx service.Store) error {
		return tx.UpdateRequest(ctx, first, models.StatusPending)
	})
	second := s.request(m)

	stored, err := s.store.FindCard(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal(1, stored.Version)

	expires := now.AddDate(1, 0, 0)
	fresh := models.NewIdentityCard(m.ID, "QC-000002", second.ID, &expires, now.Add(time.Hour))
	err = s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.Store) error { return tx.SaveCard(ctx, fresh) })
	s.ErrorIs(err, sentinel.ErrConflict, "a fresh card cannot overwrite a stored one")

	stored.Reissue("QC-000002", second.ID, &expires, now.Add(time.Hour))
	s.tx(func(ctx context.Context, tx service.Store) error { return tx.SaveCard(ctx, stored) })
	s.Equal(2, stored.Version)

	got, err := s.store.FindCard(s.ctx, m.ID)
	s.Require().NoError(err)
	s.Equal("QC-000002", got.CardNumber)
	s.Equal(second.ID, got.RequestID)
	s.Equal(1, got.Replacements)
	s.Equal(2, got.Version)
	s.Require().NotNil(got.ExpiresAt)
	s.True(expires.Equal(*got.ExpiresAt))

	stale := *got
	stale.Version = 1
	err = s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.Store) error { return tx.SaveCard(ctx, &stale) })
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *StoreSuite) TestRunInTxRollsBack() {
	h := s.household("H-9")
	m, err := models.NewMember(id.NewMemberID(), h.ID, models.MemberProfile{
		FullName:     "Hana Girma",
		BirthDate:    time.Date(1995, 1, 2, 0, 0, 0, 0, time.UTC),
		Relationship: "spouse",
		Education:    "secondary",
		Occupation:   "trader",
	}, now)
	s.Require().NoError(err)

	boom := errors.New("boom")
	err = s.store.RunInTx(s.ctx, func(ctx context.Context, tx service.Store) error {
		s.Require().NoError(tx.CreateMember(ctx, m))
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.store.FindMember(s.ctx, m.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *StoreSuite) TestRegistrationLifecycle() {
	reg, err := models.NewRegistrationRequest(id.NewRegistrationID(), models.HouseholdProfile{
		Name:               "Alemu",
		Phone:              "+251911000002",
		Address:            models.Address{Kebele: "02"},
		HouseNumber:        "H-20",
		DeclaredFamilySize: 5,
		DwellingType:       models.DwellingGovernment,
	}, now)
	s.Require().NoError(err)
	s.tx(func(ctx context.Context, tx service.Store) error { return tx.CreateRegistration(ctx, reg) })

	byHouse, err := s.store.ListRegistrations(s.ctx, models.RegistrationFilter{HouseNumber: "h-20"})
	s.Require().NoError(err)
	s.Require().Len(byHouse, 1)
	s.Equal("Alemu", byHouse[0].Profile.Name)
	s.Nil(byHouse[0].HouseholdID)
}

func (s *StoreSuite) TestConcurrentSubmissionsThroughService() {
	svc := service.New(s.store, s.store, service.WithClock(func() time.Time { return now }))
	h, err := svc.CreateHousehold(s.ctx, models.HouseholdProfile{
		Name:               "Girma",
		Phone:              "+251911000000",
		Address:            models.Address{Kebele: "04"},
		HouseNumber:        "H-30",
		DeclaredFamilySize: 2,
		DwellingType:       models.DwellingOwned,
	}, "clerk-7")
	s.Require().NoError(err)
	added, err := svc.AddMember(s.ctx, service.AddMemberCommand{HouseholdID: h.ID, Profile: models.MemberProfile{
		FullName:     "Abebe Kebede",
		BirthDate:    time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Relationship: "head",
		Education:    "degree",
		Occupation:   "nurse",
	}})
	s.Require().NoError(err)
	s.Require().NotNil(added.MemberID)
	_, err = svc.ApproveAdmission(s.ctx, *added.MemberID, "clerk-7")
	s.Require().NoError(err)

	const goroutines = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Submit(s.ctx, service.SubmitCommand{
				SubjectMemberID: *added.MemberID,
				Details: &models.DeathDetails{
					DeceasedName: "Abebe Kebede",
					DateOfDeath:  now,
					PlaceOfDeath: "Hawassa",
					Cause:        "natural",
				},
				Attachments: models.Attachments{DocumentRef: "doc.pdf"},
			})
			if err == nil && res.Outcome == models.OutcomeSuccess {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.Equal(1, successes)
	reqs, err := s.store.ListRequests(s.ctx, models.RequestFilter{})
	s.Require().NoError(err)
	s.Len(reqs, 1)
}
