package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"qochi/internal/documents"
	"qochi/internal/platform/middleware"
	"qochi/internal/registry/models"
	"qochi/internal/registry/projection"
	"qochi/internal/registry/service"
	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	audit "qochi/pkg/platform/audit"
	"qochi/pkg/platform/httputil"
	"qochi/pkg/platform/middleware/admin"
	"qochi/pkg/platform/middleware/auth"
	"qochi/pkg/requestcontext"
)

const (
	defaultTimeout  = 30 * time.Second
	maxJSONBody     = 1 << 20
	multipartSlack  = 1 << 20
	defaultDocBytes = 10 << 20
)

// Registry is the write side: submissions, decisions and household
// administration.
type Registry interface {
	Submit(ctx context.Context, cmd service.SubmitCommand) (service.SubmitResult, error)
	SetStatus(ctx context.Context, reqID id.RequestID, status, adminID, reason string) (*models.Request, error)
	GetRequest(ctx context.Context, reqID id.RequestID) (*models.Request, error)
	AddMember(ctx context.Context, cmd service.AddMemberCommand) (service.AddMemberResult, error)
	SetAdmission(ctx context.Context, memberID id.MemberID, status, adminID string) (*models.Member, error)
	MarkLeftLocality(ctx context.Context, memberID id.MemberID, adminID string) (*models.Member, error)
	SubmitRegistration(ctx context.Context, profile models.HouseholdProfile) (service.RegistrationResult, error)
	SetRegistrationStatus(ctx context.Context, regID id.RegistrationID, status, adminID, reason string) (*models.RegistrationRequest, error)
	CreateHousehold(ctx context.Context, profile models.HouseholdProfile, adminID string) (*models.Household, error)
	RemoveHousehold(ctx context.Context, householdID id.HouseholdID, adminID string) (*models.Household, error)
	RestoreHousehold(ctx context.Context, householdID id.HouseholdID, adminID string) (*models.Household, error)
	SweepExpired(ctx context.Context) (int, error)
}

// Views is the read side.
type Views interface {
	PendingCounts(ctx context.Context) (*projection.PendingCounts, error)
	ForYou(ctx context.Context, householdID id.HouseholdID) ([]projection.RequestSummary, error)
	Roster(ctx context.Context, f projection.RosterFilter) ([]*models.Member, error)
	RequestList(ctx context.Context, f models.RequestFilter) ([]projection.RequestSummary, error)
	HouseholdSummary(ctx context.Context, householdID id.HouseholdID) (*projection.HouseholdSummary, error)
	Households(ctx context.Context, f models.HouseholdFilter) ([]*models.Household, error)
	Registrations(ctx context.Context, f models.RegistrationFilter) ([]*models.RegistrationRequest, error)
}

type Documents interface {
	Upload(ctx context.Context, filename string, r io.Reader) (*documents.Document, error)
	Open(ctx context.Context, ref string) (*documents.Document, io.ReadCloser, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AuditLog reads back the stored audit trail.
type AuditLog interface {
	List(ctx context.Context, householdID id.HouseholdID) ([]audit.Event, error)
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

// Handler serves the registry HTTP API.
type Handler struct {
	logger         *slog.Logger
	registry       Registry
	views          Views
	docs           Documents
	jwtValidator   auth.JWTValidator
	adminToken     string
	auditPublisher AuditPublisher
	auditLog       AuditLog
	timeout        time.Duration
	maxDocBytes    int64
}

type Option func(*Handler)

// WithAuditPublisher records refused household access as security events.
func WithAuditPublisher(p AuditPublisher) Option {
	return func(h *Handler) { h.auditPublisher = p }
}

// WithAuditLog exposes the audit trail under /admin/audit.
func WithAuditLog(l AuditLog) Option {
	return func(h *Handler) { h.auditLog = l }
}

func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithMaxDocumentBytes should match the document service's cap.
func WithMaxDocumentBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxDocBytes = n
		}
	}
}

// New creates a registry Handler.
func New(
	registry Registry,
	views Views,
	docs Documents,
	jwtValidator auth.JWTValidator,
	adminToken string,
	logger *slog.Logger,
	opts ...Option,
) *Handler {
	h := &Handler{
		logger:       logger,
		registry:     registry,
		views:        views,
		docs:         docs,
		jwtValidator: jwtValidator,
		adminToken:   adminToken,
		timeout:      defaultTimeout,
		maxDocBytes:  defaultDocBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the registry routes on r. Request IDs, access logs and
// client metadata are expected from the outer router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.Timeout(h.timeout))

		r.With(middleware.ContentTypeJSON, middleware.MaxBodyBytes(maxJSONBody)).
			Post("/registrations", h.handleSubmitRegistration)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireCaller(h.jwtValidator, h.adminToken, h.logger))

			r.Get("/requests", h.handleListRequests)
			r.Get("/requests/{id}", h.handleGetRequest)
			r.With(middleware.ContentTypeJSON, middleware.MaxBodyBytes(maxJSONBody)).
				Post("/requests", h.handleSubmit)

			r.Route("/households/{id}", func(r chi.Router) {
				r.Use(h.requireHouseholdScope)
				r.Get("/", h.handleHouseholdSummary)
				r.Get("/members", h.handleRoster)
				r.Get("/for-you", h.handleForYou)
				r.With(middleware.ContentTypeJSON, middleware.MaxBodyBytes(maxJSONBody)).
					Post("/members", h.handleAddMember)
			})

			r.With(middleware.MaxBodyBytes(h.maxDocBytes+multipartSlack)).
				Post("/documents", h.handleUploadDocument)
			r.Get("/documents/{ref}", h.handleGetDocument)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(admin.RequireAdminToken(h.adminToken, h.logger))
			r.Use(middleware.MaxBodyBytes(maxJSONBody))

			r.Get("/pending-counts", h.handlePendingCounts)
			r.Get("/households", h.handleListHouseholds)
			r.Get("/registrations", h.handleListRegistrations)
			r.Delete("/households/{id}", h.handleRemoveHousehold)
			r.Post("/households/{id}/restore", h.handleRestoreHousehold)
			r.Post("/sweep", h.handleSweep)
			r.Post("/members/{id}/left-locality", h.handleMarkLeftLocality)
			if h.auditLog != nil {
				r.Get("/audit", h.handleAuditTrail)
			}

			r.Group(func(r chi.Router) {
				r.Use(middleware.ContentTypeJSON)
				r.Put("/requests/{id}/status", h.handleSetRequestStatus)
				r.Put("/members/{id}/admission", h.handleSetAdmission)
				r.Put("/registrations/{id}/status", h.handleSetRegistrationStatus)
				r.Post("/households", h.handleCreateHousehold)
			})
		})
	})
}

// requireHouseholdScope keeps household callers on their own household.
// Administrators may read any household.
func (h *Handler) requireHouseholdScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		householdID, err := id.ParseHouseholdID(chi.URLParam(r, "id"))
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		if !h.canAccess(ctx, householdID) {
			h.denied(ctx, w, "household:"+householdID.String())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) canAccess(ctx context.Context, householdID id.HouseholdID) bool {
	return requestcontext.IsAdmin(ctx) || requestcontext.HouseholdID(ctx) == householdID
}

func (h *Handler) denied(ctx context.Context, w http.ResponseWriter, subject string) {
	event := audit.Event{
		Category:    audit.EventAccessDenied.Category(),
		Timestamp:   requestcontext.Now(ctx),
		HouseholdID: requestcontext.HouseholdID(ctx),
		Subject:     subject,
		Action:      string(audit.EventAccessDenied),
		Decision:    "denied",
		RequestID:   requestcontext.RequestID(ctx),
		ActorID:     requestcontext.Actor(ctx),
		ClientIP:    requestcontext.ClientIP(ctx),
		UserAgent:   requestcontext.UserAgent(ctx),
	}
	h.logger.WarnContext(ctx, "household access denied",
		"subject", subject,
		"actor", event.ActorID,
		"request_id", event.RequestID,
		"log_type", "audit",
	)
	if h.auditPublisher != nil {
		if err := h.auditPublisher.Emit(ctx, event); err != nil {
			h.logger.WarnContext(ctx, "failed to emit audit event", "action", event.Action, "error", err)
		}
	}
	h.writeError(ctx, w, dErrors.New(dErrors.CodeForbidden, "access to this household is not allowed"))
}

// writeError is the single place domain codes become HTTP statuses.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	h.failureStatus(ctx, err)
	httputil.WriteError(w, err)
}

// writeFailedOutcome answers an outcome endpoint (submit, add member,
// registration) with {outcome: error, message} under the error's status.
func (h *Handler) writeFailedOutcome(ctx context.Context, w http.ResponseWriter, err error) {
	status := h.failureStatus(ctx, err)
	httputil.WriteJSON(w, status, outcomeResponse{
		Outcome: models.OutcomeError,
		Message: failureMessage(status, err),
		Error:   string(dErrors.CodeOf(err)),
	})
}

// writeFailedStatus answers an admin status change with {ok: false, message}.
func (h *Handler) writeFailedStatus(ctx context.Context, w http.ResponseWriter, err error) {
	status := h.failureStatus(ctx, err)
	httputil.WriteJSON(w, status, statusResponse{
		OK:      false,
		Message: failureMessage(status, err),
		Error:   string(dErrors.CodeOf(err)),
	})
}

func (h *Handler) failureStatus(ctx context.Context, err error) int {
	status := httputil.StatusFor(dErrors.CodeOf(err))
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return status
}

// failureMessage hides internal detail behind the status text.
func failureMessage(status int, err error) string {
	if status >= http.StatusInternalServerError {
		return strings.ToLower(http.StatusText(status))
	}
	return dErrors.MessageOf(err)
}

// decodeJSON reads a JSON body into v and trims its string fields.
func (h *Handler) decodeJSON(ctx context.Context, body io.Reader, v any) error {
	if err := json.NewDecoder(body).Decode(v); err != nil {
		h.logger.WarnContext(ctx, "invalid request body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return dErrors.New(dErrors.CodeBadRequest, "request body too large")
		}
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	sanitize(v)
	return nil
}

// statusUpdate is the body of every admin status change.
type statusUpdate struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

type statusResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// outcomeResponse is the failure body of outcome endpoints. Successful
// calls return the service result, which has the same outcome and message.
type outcomeResponse struct {
	Outcome models.Outcome `json:"outcome"`
	Message string         `json:"message"`
	Error   string         `json:"error,omitempty"`
}
