package service_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"qochi/internal/registry/metrics"
	"qochi/internal/registry/models"
	"qochi/internal/registry/service"
	"qochi/internal/registry/store/memory"
	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	audit "qochi/pkg/platform/audit"
	"qochi/pkg/platform/audit/publisher"
	auditmemory "qochi/pkg/platform/audit/store/memory"
)

const admin = "admin-1"

// ServiceSuite drives the service against the in-memory store so the
// transaction and locking paths run exactly as in production.
type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *memory.Store
	audit     *auditmemory.InMemoryStore
	metrics   *metrics.Metrics
	now       time.Time
	cards     atomic.Int32
	service   *service.Service
	household *models.Household
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.New()
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.cards.Store(0)
	s.service = s.newService(s.store)
	s.household = s.createHousehold("Girma", "H-12")
}

func (s *ServiceSuite) newService(backend service.Backend) *service.Service {
	return service.New(backend, backend, s.options()...)
}

// =============================================================================
// Fixtures
// =============================================================================

func (s *ServiceSuite) options() []service.Option {
	return []service.Option{
		service.WithClock(func() time.Time { return s.now }),
		service.WithAuditPublisher(publisher.NewPublisher(s.audit)),
		service.WithMetrics(s.metrics),
		service.WithExpiryPolicy(models.ExpiryPolicy{
			models.KindMarriage: 365 * 24 * time.Hour,
			models.KindIdentity: 30 * 24 * time.Hour,
		}),
		service.WithCardNumberGenerator(func() string {
			return fmt.Sprintf("CARD-%d", s.cards.Add(1))
		}),
	}
}

func (s *ServiceSuite) createHousehold(name, houseNumber string) *models.Household {
	h, err := s.service.CreateHousehold(s.ctx, models.HouseholdProfile{
		Name:               name,
		Phone:              "+251911000000",
		Address:            models.Address{Kebele: "04", Zone: "North"},
		HouseNumber:        houseNumber,
		DeclaredFamilySize: 4,
		DwellingType:       models.DwellingOwned,
	}, admin)
	s.Require().NoError(err)
	return h
}

func profile(name string) models.MemberProfile {
	return models.MemberProfile{
		FullName:     name,
		BirthDate:    time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Relationship: "relative",
		Education:    "secondary",
		Occupation:   "farmer",
	}
}

func (s *ServiceSuite) pendingMember(name string) id.MemberID {
	res, err := s.service.AddMember(s.ctx, service.AddMemberCommand{HouseholdID: s.household.ID, Profile: profile(name)})
	s.Require().NoError(err)
	s.Require().Equal(models.OutcomeSuccess, res.Outcome, res.Message)
	return *res.MemberID
}

func (s *ServiceSuite) admittedMember(name string) id.MemberID {
	memberID := s.pendingMember(name)
	_, err := s.service.ApproveAdmission(s.ctx, memberID, admin)
	s.Require().NoError(err)
	return memberID
}

func (s *ServiceSuite) member(memberID id.MemberID) *models.Member {
	m, err := s.service.GetMember(s.ctx, memberID)
	s.Require().NoError(err)
	return m
}

func (s *ServiceSuite) request(reqID id.RequestID) *models.Request {
	r, err := s.service.GetRequest(s.ctx, reqID)
	s.Require().NoError(err)
	return r
}

func deathDetails() *models.DeathDetails {
	return &models.DeathDetails{
		DeceasedName: "Abebe Kebede",
		DateOfDeath:  time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC),
		PlaceOfDeath: "Hawassa",
		Cause:        "natural",
	}
}

func marriageDetails(spouse *id.MemberID) *models.MarriageDetails {
	return &models.MarriageDetails{
		HusbandName:        "Abebe Kebede",
		HusbandNationality: "Ethiopian",
		WifeName:           "Hana Girma",
		WifeNationality:    "Ethiopian",
		MarriageDate:       time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		MarriagePlace:      "Hawassa",
		SpouseMemberID:     spouse,
	}
}

func divorceDetails(spouse *id.MemberID) *models.DivorceDetails {
	return &models.DivorceDetails{
		HusbandName:    "Abebe Kebede",
		WifeName:       "Hana Girma",
		DivorceDate:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		DivorcePlace:   "Hawassa",
		SpouseMemberID: spouse,
	}
}

func identityDetails() *models.IdentityDetails {
	return &models.IdentityDetails{
		FullName:         "Abebe Kebede",
		BirthDate:        time.Date(1990, 5, 17, 0, 0, 0, 0, time.UTC),
		Sex:              "M",
		Nationality:      "Ethiopian",
		EmergencyContact: "+251911000001",
	}
}

func certificate(memberID id.MemberID, details models.Details) service.SubmitCommand {
	return service.SubmitCommand{
		SubjectMemberID: memberID,
		Details:         details,
		Attachments:     models.Attachments{DocumentRef: "doc-1.pdf"},
	}
}

func identity(memberID id.MemberID, kind models.IdentityKind) service.SubmitCommand {
	return service.SubmitCommand{
		SubjectMemberID: memberID,
		IdentityKind:    kind,
		Details:         identityDetails(),
		Attachments:     models.Attachments{PortraitRef: "portrait.jpg", ProofRef: "proof.pdf"},
	}
}

func (s *ServiceSuite) submit(cmd service.SubmitCommand) service.SubmitResult {
	res, err := s.service.Submit(s.ctx, cmd)
	s.Require().NoError(err)
	return res
}

func (s *ServiceSuite) submitted(cmd service.SubmitCommand) id.RequestID {
	res := s.submit(cmd)
	s.Require().Equal(models.OutcomeSuccess, res.Outcome, res.Message)
	s.Require().NotNil(res.RequestID)
	return *res.RequestID
}

func (s *ServiceSuite) approved(cmd service.SubmitCommand) id.RequestID {
	reqID := s.submitted(cmd)
	_, err := s.service.Approve(s.ctx, reqID, admin)
	s.Require().NoError(err)
	return reqID
}

func (s *ServiceSuite) auditActions() []string {
	events, err := s.audit.ListRecent(s.ctx, 1000)
	s.Require().NoError(err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}

// =============================================================================
// Submit Tests
// =============================================================================

func (s *ServiceSuite) TestSubmitDuplicateDetection() {
	memberID := s.admittedMember("Abebe Kebede")

	first := s.submit(certificate(memberID, deathDetails()))
	s.Equal(models.OutcomeSuccess, first.Outcome)
	s.Require().NotNil(first.RequestID)

	s.Run("second submission while pending is under review", func() {
		res := s.submit(certificate(memberID, deathDetails()))
		s.Equal(models.OutcomeReview, res.Outcome)
		s.Nil(res.RequestID)
	})

	s.Run("submission after approval reports approved", func() {
		_, err := s.service.Approve(s.ctx, *first.RequestID, admin)
		s.Require().NoError(err)

		res := s.submit(certificate(memberID, deathDetails()))
		s.Equal(models.OutcomeApproved, res.Outcome)
		s.Equal(models.LifeDeceased, s.member(memberID).LifeStatus)
	})

	s.Run("only one request was stored", func() {
		reqs, err := s.store.ListRequests(s.ctx, models.RequestFilter{MemberID: &memberID})
		s.Require().NoError(err)
		s.Len(reqs, 1)
	})
}

func (s *ServiceSuite) TestSubmitValidation() {
	memberID := s.admittedMember("Abebe Kebede")

	s.Run("missing required field is a validation error with no write", func() {
		details := deathDetails()
		details.Cause = "   "
		res, err := s.service.Submit(s.ctx, certificate(memberID, details))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(models.OutcomeError, res.Outcome)
		s.Contains(res.Message, "cause")

		reqs, err := s.store.ListRequests(s.ctx, models.RequestFilter{})
		s.Require().NoError(err)
		s.Empty(reqs)
	})

	s.Run("identity request requires portrait and proof", func() {
		cmd := identity(memberID, models.IdentityNew)
		cmd.Attachments.ProofRef = ""
		res, err := s.service.Submit(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(models.OutcomeError, res.Outcome)
	})

	s.Run("unknown member is not found", func() {
		res, err := s.service.Submit(s.ctx, certificate(id.NewMemberID(), deathDetails()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Equal(models.OutcomeError, res.Outcome)
	})

	s.Run("spouse cannot be the subject", func() {
		_, err := s.service.Submit(s.ctx, certificate(memberID, marriageDetails(&memberID)))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestSubmitEligibility() {
	s.Run("member awaiting admission is rejected", func() {
		memberID := s.pendingMember("New Comer")
		res := s.submit(certificate(memberID, deathDetails()))
		s.Equal(models.OutcomeRejected, res.Outcome)
	})

	s.Run("deceased member cannot marry", func() {
		memberID := s.admittedMember("Late Member")
		s.approved(certificate(memberID, deathDetails()))

		res := s.submit(certificate(memberID, marriageDetails(nil)))
		s.Equal(models.OutcomeRejected, res.Outcome)
		s.Contains(res.Message, "DECEASED")
	})

	s.Run("household cannot submit for another household's member", func() {
		memberID := s.admittedMember("Own Member")
		other := s.createHousehold("Other", "H-99")
		cmd := certificate(memberID, deathDetails())
		cmd.HouseholdID = other.ID
		res, err := s.service.Submit(s.ctx, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal(models.OutcomeError, res.Outcome)
	})

	s.Run("removed household is rejected", func() {
		memberID := s.admittedMember("Soon Removed")
		_, err := s.service.RemoveHousehold(s.ctx, s.household.ID, admin)
		s.Require().NoError(err)
		defer func() {
			_, err := s.service.RestoreHousehold(s.ctx, s.household.ID, admin)
			s.Require().NoError(err)
		}()

		res := s.submit(certificate(memberID, deathDetails()))
		s.Equal(models.OutcomeRejected, res.Outcome)
	})

	s.Run("divorce requires a married member", func() {
		memberID := s.admittedMember("Single Member")
		res := s.submit(certificate(memberID, divorceDetails(nil)))
		s.Equal(models.OutcomeRejected, res.Outcome)
	})
}

func (s *ServiceSuite) TestSubmitCancelledContextWritesNothing() {
	memberID := s.admittedMember("Abebe Kebede")
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	res, err := s.service.Submit(ctx, certificate(memberID, deathDetails()))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	s.Equal(models.OutcomeError, res.Outcome)

	reqs, err := s.store.ListRequests(s.ctx, models.RequestFilter{MemberID: &memberID})
	s.Require().NoError(err)
	s.Empty(reqs)
}

// =============================================================================
// Approval Tests
// =============================================================================

func (s *ServiceSuite) TestApproveDeath() {
	memberID := s.admittedMember("Abebe Kebede")
	reqID := s.submitted(certificate(memberID, deathDetails()))

	req, err := s.service.Approve(s.ctx, reqID, admin)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, req.Status)
	s.Equal(admin, req.DecidedBy)
	s.NotNil(req.DecidedAt)
	s.Nil(req.ExpiresAt, "death certificates never expire under this policy")

	s.Equal(models.LifeDeceased, s.member(memberID).LifeStatus)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Decisions.WithLabelValues("death", "APPROVED")))
	s.Contains(s.auditActions(), string(audit.EventRequestApproved))
}

func (s *ServiceSuite) TestApproveTwiceIsInvalidTransition() {
	memberID := s.admittedMember("Abebe Kebede")
	reqID := s.submitted(certificate(memberID, deathDetails()))

	_, err := s.service.Approve(s.ctx, reqID, admin)
	s.Require().NoError(err)

	_, err = s.service.Approve(s.ctx, reqID, admin)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	_, err = s.service.Reject(s.ctx, reqID, admin, "too late")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	s.Equal(models.StatusApproved, s.request(reqID).Status)
}

func (s *ServiceSuite) TestRejectLeavesMemberUntouched() {
	memberID := s.admittedMember("Abebe Kebede")
	before := s.member(memberID)
	reqID := s.submitted(certificate(memberID, deathDetails()))

	req, err := s.service.Reject(s.ctx, reqID, admin, " missing stamp ")
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, req.Status)
	s.Equal("missing stamp", req.Reason)

	after := s.member(memberID)
	s.Equal(before.LifeStatus, after.LifeStatus)
	s.Equal(before.UpdatedAt, after.UpdatedAt)

	_, err = s.service.Reject(s.ctx, reqID, admin, "again")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	s.Run("a rejected request can be resubmitted", func() {
		res := s.submit(certificate(memberID, deathDetails()))
		s.Equal(models.OutcomeSuccess, res.Outcome)
	})
}

func (s *ServiceSuite) TestSetStatus() {
	memberID := s.admittedMember("Abebe Kebede")
	reqID := s.submitted(certificate(memberID, deathDetails()))

	s.Run("pending is not an accepted target", func() {
		_, err := s.service.SetStatus(s.ctx, reqID, "pending", admin, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown status is invalid input", func() {
		_, err := s.service.SetStatus(s.ctx, reqID, "archived", admin, "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("approved applies the side effect", func() {
		req, err := s.service.SetStatus(s.ctx, reqID, "approved", admin, "")
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, req.Status)
		s.Equal(models.LifeDeceased, s.member(memberID).LifeStatus)
	})

	s.Run("unknown request is not found", func() {
		_, err := s.service.SetStatus(s.ctx, id.NewRequestID(), "REJECTED", admin, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestMarriageAndDivorceWithSpouse() {
	husband := s.admittedMember("Abebe Kebede")
	wife := s.admittedMember("Hana Girma")

	marriage := s.approved(certificate(husband, marriageDetails(&wife)))
	s.Equal(models.LifeMarried, s.member(husband).LifeStatus)
	s.Equal(models.LifeMarried, s.member(wife).LifeStatus)
	s.NotNil(s.request(marriage).ExpiresAt)

	s.Run("spouse cannot marry again", func() {
		third := s.admittedMember("Third Person")
		res := s.submit(certificate(third, marriageDetails(&wife)))
		s.Equal(models.OutcomeRejected, res.Outcome)
		s.Contains(res.Message, "spouse")
	})

	divorce := s.approved(certificate(husband, divorceDetails(&wife)))
	s.Equal(models.StatusApproved, s.request(divorce).Status)
	s.Equal(models.LifeActive, s.member(husband).LifeStatus)
	s.Equal(models.LifeActive, s.member(wife).LifeStatus)
	s.Equal(models.StatusExpired, s.request(marriage).Status, "divorce supersedes the marriage")

	s.Run("remarriage supersedes the divorce", func() {
		s.approved(certificate(husband, marriageDetails(nil)))
		s.Equal(models.StatusExpired, s.request(divorce).Status)
		s.Equal(models.LifeMarried, s.member(husband).LifeStatus)
	})
}

func (s *ServiceSuite) TestApproveSideEffectFailureRollsBack() {
	husband := s.admittedMember("Abebe Kebede")
	wife := s.admittedMember("Hana Girma")
	rival := s.admittedMember("Other Suitor")

	first := s.submitted(certificate(husband, marriageDetails(&wife)))
	second := s.submitted(certificate(rival, marriageDetails(&wife)))

	_, err := s.service.Approve(s.ctx, first, admin)
	s.Require().NoError(err)

	_, err = s.service.Approve(s.ctx, second, admin)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	s.Equal(models.StatusPending, s.request(second).Status)
	s.Equal(models.LifeActive, s.member(rival).LifeStatus, "subject update rolled back with the status flip")
	s.Equal(models.LifeMarried, s.member(wife).LifeStatus)
}

func (s *ServiceSuite) TestApproveStoreFailureRollsBack() {
	memberID := s.admittedMember("Abebe Kebede")
	reqID := s.submitted(certificate(memberID, deathDetails()))

	failing := s.newService(failingStore{Store: s.store, failMember: true})
	_, err := failing.Approve(s.ctx, reqID, admin)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	s.Equal(models.StatusPending, s.request(reqID).Status)
	s.Equal(models.LifeActive, s.member(memberID).LifeStatus)
}

// =============================================================================
// Identity Card Tests
// =============================================================================

func (s *ServiceSuite) TestIdentityCardLifecycle() {
	memberID := s.admittedMember("Abebe Kebede")

	s.Run("update without a card is rejected", func() {
		res := s.submit(identity(memberID, models.IdentityUpdate))
		s.Equal(models.OutcomeRejected, res.Outcome)
	})

	newReq := s.approved(identity(memberID, models.IdentityNew))
	card, err := s.service.GetCard(s.ctx, memberID)
	s.Require().NoError(err)
	s.Equal("CARD-1", card.CardNumber)
	s.Equal(newReq, card.RequestID)
	s.Require().NotNil(card.ExpiresAt)

	s.Run("new with an active card reports approved", func() {
		res := s.submit(identity(memberID, models.IdentityNew))
		s.Equal(models.OutcomeApproved, res.Outcome)
	})

	s.Run("update refreshes the card and supersedes the issuing request", func() {
		s.now = s.now.Add(24 * time.Hour)
		updateReq := s.approved(identity(memberID, models.IdentityUpdate))

		card, err := s.service.GetCard(s.ctx, memberID)
		s.Require().NoError(err)
		s.Equal("CARD-1", card.CardNumber)
		s.Equal(updateReq, card.RequestID)
		s.Equal(s.now, card.IssuedAt)
		s.Equal(models.StatusExpired, s.request(newReq).Status)
	})

	s.Run("pending identity request blocks every identity kind", func() {
		s.submitted(identity(memberID, models.IdentityLose))
		res := s.submit(identity(memberID, models.IdentityUpdate))
		s.Equal(models.OutcomeReview, res.Outcome)
	})

	s.Run("lose reissues with a new number", func() {
		pending, err := s.store.ListRequests(s.ctx, models.RequestFilter{
			MemberID: &memberID,
			Statuses: []models.RequestStatus{models.StatusPending},
		})
		s.Require().NoError(err)
		s.Require().Len(pending, 1)

		_, err = s.service.Approve(s.ctx, pending[0].ID, admin)
		s.Require().NoError(err)
		card, err := s.service.GetCard(s.ctx, memberID)
		s.Require().NoError(err)
		s.Equal("CARD-2", card.CardNumber)
		s.Equal(1, card.Replacements)
	})

	s.Run("new after the card lapsed replaces the stored card", func() {
		s.now = s.now.Add(31 * 24 * time.Hour)
		reissued := s.approved(identity(memberID, models.IdentityNew))

		card, err := s.service.GetCard(s.ctx, memberID)
		s.Require().NoError(err)
		s.Equal("CARD-3", card.CardNumber)
		s.Equal(reissued, card.RequestID)
		s.Equal(1, card.Replacements)
		s.Nil(card.ExpiredAt)
	})
}

// =============================================================================
// Expiry Tests
// =============================================================================

func (s *ServiceSuite) TestSweepExpiresLapsedApprovals() {
	memberID := s.admittedMember("Abebe Kebede")
	reqID := s.approved(identity(memberID, models.IdentityNew))

	n, err := s.service.SweepExpired(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)

	s.now = s.now.Add(31 * 24 * time.Hour)
	n, err = s.service.SweepExpired(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	req := s.request(reqID)
	s.Equal(models.StatusExpired, req.Status)
	s.NotNil(req.ExpiredAt)
	card, err := s.service.GetCard(s.ctx, memberID)
	s.Require().NoError(err)
	s.NotNil(card.ExpiredAt)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Expirations.WithLabelValues("identity", "sweep")))

	s.Run("new is accepted once the card expired", func() {
		res := s.submit(identity(memberID, models.IdentityNew))
		s.Equal(models.OutcomeSuccess, res.Outcome)
	})
}

func (s *ServiceSuite) TestSubmitExpiresLapsedApproval() {
	husband := s.admittedMember("Abebe Kebede")
	marriage := s.approved(certificate(husband, marriageDetails(nil)))
	divorce := s.approved(certificate(husband, divorceDetails(nil)))
	s.Equal(models.StatusExpired, s.request(marriage).Status)

	// Divorce has no window, so resubmitting reports approved.
	res := s.submit(certificate(husband, divorceDetails(nil)))
	s.Equal(models.OutcomeApproved, res.Outcome)
	s.Equal(models.StatusApproved, s.request(divorce).Status)

	remarriage := s.approved(certificate(husband, marriageDetails(nil)))
	s.now = s.now.Add(366 * 24 * time.Hour)

	// The lapsed marriage is expired during the duplicate check; the
	// member is still MARRIED so the new marriage itself is refused.
	res = s.submit(certificate(husband, marriageDetails(nil)))
	s.Equal(models.OutcomeRejected, res.Outcome)
	s.Equal(models.StatusExpired, s.request(remarriage).Status)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Expirations.WithLabelValues("marriage", "submit")))
}

// =============================================================================
// Admission Tests
// =============================================================================

func (s *ServiceSuite) TestAddMemberDuplicates() {
	memberID := s.pendingMember("Abebe Kebede")

	s.Run("same name and birth date while pending is under review", func() {
		res, err := s.service.AddMember(s.ctx, service.AddMemberCommand{HouseholdID: s.household.ID, Profile: profile(" abebe  KEBEDE ")})
		s.Require().NoError(err)
		s.Equal(models.OutcomeReview, res.Outcome)
	})

	s.Run("after admission the duplicate reports approved", func() {
		_, err := s.service.ApproveAdmission(s.ctx, memberID, admin)
		s.Require().NoError(err)
		res, err := s.service.AddMember(s.ctx, service.AddMemberCommand{HouseholdID: s.household.ID, Profile: profile("Abebe Kebede")})
		s.Require().NoError(err)
		s.Equal(models.OutcomeApproved, res.Outcome)
	})

	s.Run("different birth date is a new member", func() {
		p := profile("Abebe Kebede")
		p.BirthDate = p.BirthDate.AddDate(20, 0, 0)
		res, err := s.service.AddMember(s.ctx, service.AddMemberCommand{HouseholdID: s.household.ID, Profile: p})
		s.Require().NoError(err)
		s.Equal(models.OutcomeSuccess, res.Outcome)
	})

	s.Run("invalid profile is a validation error", func() {
		p := profile("Abebe Kebede")
		p.Relationship = ""
		res, err := s.service.AddMember(s.ctx, service.AddMemberCommand{HouseholdID: s.household.ID, Profile: p})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Equal(models.OutcomeError, res.Outcome)
	})
}

func (s *ServiceSuite) TestAdmissionDecisions() {
	memberID := s.pendingMember("Abebe Kebede")

	m, err := s.service.SetAdmission(s.ctx, memberID, "rejected", admin)
	s.Require().NoError(err)
	s.Equal(models.AdmissionRejected, m.AdmissionStatus)

	_, err = s.service.ApproveAdmission(s.ctx, memberID, admin)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	_, err = s.service.SetAdmission(s.ctx, memberID, "PENDING", admin)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	s.Equal(1.0, testutil.ToFloat64(s.metrics.Admissions.WithLabelValues("REJECTED")))
}

func (s *ServiceSuite) TestMarkLeftLocality() {
	memberID := s.admittedMember("Moved Away")

	m, err := s.service.MarkLeftLocality(s.ctx, memberID, admin)
	s.Require().NoError(err)
	s.Equal(models.LifeLeftLocality, m.LifeStatus)
	s.Equal(models.LifeLeftLocality, s.member(memberID).LifeStatus)
	s.False(s.member(memberID).CountsTowardRoster())
	s.Contains(s.auditActions(), string(audit.EventMemberLeft))

	s.Run("new birth, marriage and identity requests are refused", func() {
		for _, cmd := range []service.SubmitCommand{
			certificate(memberID, marriageDetails(nil)),
			identity(memberID, models.IdentityNew),
		} {
			res := s.submit(cmd)
			s.Equal(models.OutcomeRejected, res.Outcome)
			s.Contains(res.Message, "LEFT_LOCALITY")
		}
	})

	s.Run("a death can still be recorded", func() {
		s.approved(certificate(memberID, deathDetails()))
		s.Equal(models.LifeDeceased, s.member(memberID).LifeStatus)
	})

	s.Run("gone members cannot leave again", func() {
		_, err := s.service.MarkLeftLocality(s.ctx, memberID, admin)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("unknown member", func() {
		_, err := s.service.MarkLeftLocality(s.ctx, id.NewMemberID(), admin)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

// =============================================================================
// Household Tests
// =============================================================================

func (s *ServiceSuite) TestRegistrationFlow() {
	p := models.HouseholdProfile{
		Name:               "Tesfaye",
		Phone:              "+251911000009",
		Address:            models.Address{Kebele: "02", Zone: "South"},
		HouseNumber:        "H-40",
		DeclaredFamilySize: 3,
		DwellingType:       models.DwellingRented,
	}

	res, err := s.service.SubmitRegistration(s.ctx, p)
	s.Require().NoError(err)
	s.Require().Equal(models.OutcomeSuccess, res.Outcome)

	dup, err := s.service.SubmitRegistration(s.ctx, p)
	s.Require().NoError(err)
	s.Equal(models.OutcomeReview, dup.Outcome)

	reg, err := s.service.ApproveRegistration(s.ctx, *res.RegistrationID, admin)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, reg.Status)
	s.Require().NotNil(reg.HouseholdID)

	h, err := s.service.GetHousehold(s.ctx, *reg.HouseholdID)
	s.Require().NoError(err)
	s.Equal("H-40", h.HouseNumber)

	again, err := s.service.SubmitRegistration(s.ctx, p)
	s.Require().NoError(err)
	s.Equal(models.OutcomeApproved, again.Outcome)

	_, err = s.service.RejectRegistration(s.ctx, *res.RegistrationID, admin, "late")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
}

func (s *ServiceSuite) TestRemoveAndRestoreHousehold() {
	h, err := s.service.RemoveHousehold(s.ctx, s.household.ID, admin)
	s.Require().NoError(err)
	s.True(h.Removed)
	s.NotNil(h.RemovedAt)

	_, err = s.service.RemoveHousehold(s.ctx, s.household.ID, admin)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	s.Run("house number reused while removed blocks restore", func() {
		other := s.createHousehold("Newcomer", s.household.HouseNumber)
		_, err := s.service.RestoreHousehold(s.ctx, s.household.ID, admin)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))

		_, err = s.service.RemoveHousehold(s.ctx, other.ID, admin)
		s.Require().NoError(err)
	})

	h, err = s.service.RestoreHousehold(s.ctx, s.household.ID, admin)
	s.Require().NoError(err)
	s.False(h.Removed)
	s.Nil(h.RemovedAt)
	s.Contains(s.auditActions(), string(audit.EventHouseholdRestored))
}

func (s *ServiceSuite) TestCreateHouseholdDuplicateHouseNumber() {
	_, err := s.service.CreateHousehold(s.ctx, models.HouseholdProfile{
		Name:               "Copy",
		Phone:              "1",
		Address:            models.Address{Kebele: "04"},
		HouseNumber:        "h-12",
		DeclaredFamilySize: 1,
		DwellingType:       models.DwellingOwned,
	}, admin)
	s.True(dErrors.HasCode(err, dErrors.CodeDuplicate))
}
