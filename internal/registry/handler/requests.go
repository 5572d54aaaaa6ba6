package handler

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"qochi/internal/registry/models"
	"qochi/internal/registry/service"
	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	"qochi/pkg/platform/httputil"
	"qochi/pkg/requestcontext"
)

// submitRequest is the envelope of POST /requests. The kind-specific
// fields sit beside it in the same JSON object.
type submitRequest struct {
	Kind            string `json:"kind"`
	SubjectMemberID string `json:"subject_member_id"`
	IdentityKind    string `json:"identity_kind,omitempty"`
	models.Attachments
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeFailedOutcome(ctx, w, dErrors.New(dErrors.CodeBadRequest, "request body too large"))
		return
	}
	var req submitRequest
	if err := h.decodeJSON(ctx, bytes.NewReader(raw), &req); err != nil {
		h.writeFailedOutcome(ctx, w, err)
		return
	}

	cmd, err := h.submitCommand(r, req, raw)
	if err != nil {
		h.writeFailedOutcome(ctx, w, err)
		return
	}

	result, err := h.registry.Submit(ctx, cmd)
	if err != nil {
		h.writeFailedOutcome(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) submitCommand(r *http.Request, req submitRequest, raw []byte) (service.SubmitCommand, error) {
	kind, err := models.ParseRequestKind(req.Kind)
	if err != nil {
		return service.SubmitCommand{}, err
	}
	subject, err := id.ParseMemberID(req.SubjectMemberID)
	if err != nil {
		return service.SubmitCommand{}, err
	}
	var identityKind models.IdentityKind
	if req.IdentityKind != "" {
		if identityKind, err = models.ParseIdentityKind(req.IdentityKind); err != nil {
			return service.SubmitCommand{}, err
		}
	}
	details, err := models.DecodeDetails(kind, raw)
	if err != nil {
		return service.SubmitCommand{}, err
	}

	cmd := service.SubmitCommand{
		SubjectMemberID: subject,
		IdentityKind:    identityKind,
		Details:         details,
		Attachments:     req.Attachments,
	}
	// Administrators submit on behalf of the member's own household.
	if !requestcontext.IsAdmin(r.Context()) {
		cmd.HouseholdID = requestcontext.HouseholdID(r.Context())
	}
	return cmd, nil
}

func (h *Handler) handleSetRequestStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailedStatus(ctx, w, err)
		return
	}
	var body statusUpdate
	if err := h.decodeJSON(ctx, r.Body, &body); err != nil {
		h.writeFailedStatus(ctx, w, err)
		return
	}

	decided, err := h.registry.SetStatus(ctx, reqID, body.Status, requestcontext.AdminID(ctx), body.Reason)
	if err != nil {
		h.writeFailedStatus(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		OK:      true,
		Message: string(decided.Kind) + " request " + strings.ToLower(string(decided.Status)),
		Status:  string(decided.Status),
	})
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := requestFilter(r)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	if !requestcontext.IsAdmin(ctx) {
		own := requestcontext.HouseholdID(ctx)
		if filter.HouseholdID != nil && *filter.HouseholdID != own {
			h.denied(ctx, w, "household:"+filter.HouseholdID.String())
			return
		}
		filter.HouseholdID = &own
	}

	summaries, err := h.views.RequestList(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": summaries})
}

// handleGetRequest returns one request with its details. Household callers
// only see their own.
func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reqID, err := id.ParseRequestID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	req, err := h.registry.GetRequest(ctx, reqID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if !h.canAccess(ctx, req.HouseholdID) {
		h.denied(ctx, w, "request:"+req.ID.String())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, req)
}

// requestFilter reads household_id, member_id, kind and a comma separated
// status list from the query string.
func requestFilter(r *http.Request) (models.RequestFilter, error) {
	q := r.URL.Query()
	var f models.RequestFilter
	if v := q.Get("household_id"); v != "" {
		hid, err := id.ParseHouseholdID(v)
		if err != nil {
			return f, err
		}
		f.HouseholdID = &hid
	}
	if v := q.Get("member_id"); v != "" {
		mid, err := id.ParseMemberID(v)
		if err != nil {
			return f, err
		}
		f.MemberID = &mid
	}
	if v := q.Get("kind"); v != "" {
		kind, err := models.ParseRequestKind(v)
		if err != nil {
			return f, err
		}
		f.Kind = kind
	}
	for _, part := range strings.Split(q.Get("status"), ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		st, err := models.ParseRequestStatus(part)
		if err != nil {
			return f, err
		}
		f.Statuses = append(f.Statuses, st)
	}
	return f, nil
}
