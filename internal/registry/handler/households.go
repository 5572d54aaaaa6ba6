package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"qochi/internal/registry/models"
	"qochi/internal/registry/projection"
	"qochi/internal/registry/service"
	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	"qochi/pkg/platform/httputil"
	"qochi/pkg/requestcontext"
)

// householdParam is safe to call after requireHouseholdScope validated it.
func householdParam(r *http.Request) id.HouseholdID {
	hid, _ := id.ParseHouseholdID(chi.URLParam(r, "id"))
	return hid
}

func (h *Handler) handleHouseholdSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summary, err := h.views.HouseholdSummary(ctx, householdParam(r))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleRoster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := projection.RosterFilter{HouseholdID: householdParam(r), Search: q.Get("search")}
	if v := q.Get("life_status"); v != "" {
		st, err := models.ParseLifeStatus(v)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		filter.LifeStatus = st
	}
	if v := q.Get("admission_status"); v != "" {
		st, err := models.ParseAdmissionStatus(v)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		filter.AdmissionStatus = st
	}

	members, err := h.views.Roster(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *Handler) handleForYou(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	summaries, err := h.views.ForYou(ctx, householdParam(r))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": summaries})
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var profile models.MemberProfile
	if err := h.decodeJSON(ctx, r.Body, &profile); err != nil {
		h.writeFailedOutcome(ctx, w, err)
		return
	}
	result, err := h.registry.AddMember(ctx, service.AddMemberCommand{
		HouseholdID: householdParam(r),
		Profile:     profile,
	})
	if err != nil {
		h.writeFailedOutcome(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSetAdmission(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, err := id.ParseMemberID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailedStatus(ctx, w, err)
		return
	}
	var body statusUpdate
	if err := h.decodeJSON(ctx, r.Body, &body); err != nil {
		h.writeFailedStatus(ctx, w, err)
		return
	}
	member, err := h.registry.SetAdmission(ctx, memberID, body.Status, requestcontext.AdminID(ctx))
	if err != nil {
		h.writeFailedStatus(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		OK:      true,
		Message: member.FullName + " admission " + string(member.AdmissionStatus),
		Status:  string(member.AdmissionStatus),
	})
}

func (h *Handler) handleMarkLeftLocality(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID, err := id.ParseMemberID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailedStatus(ctx, w, err)
		return
	}
	member, err := h.registry.MarkLeftLocality(ctx, memberID, requestcontext.AdminID(ctx))
	if err != nil {
		h.writeFailedStatus(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, statusResponse{
		OK:      true,
		Message: member.FullName + " left the locality",
		Status:  string(member.LifeStatus),
	})
}

func (h *Handler) handleSubmitRegistration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var profile models.HouseholdProfile
	if err := h.decodeJSON(ctx, r.Body, &profile); err != nil {
		h.writeFailedOutcome(ctx, w, err)
		return
	}
	result, err := h.registry.SubmitRegistration(ctx, profile)
	if err != nil {
		h.writeFailedOutcome(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleSetRegistrationStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeFailedStatus(ctx, w, err)
		return
	}
	var body statusUpdate
	if err := h.decodeJSON(ctx, r.Body, &body); err != nil {
		h.writeFailedStatus(ctx, w, err)
		return
	}
	reg, err := h.registry.SetRegistrationStatus(ctx, regID, body.Status, requestcontext.AdminID(ctx), body.Reason)
	if err != nil {
		h.writeFailedStatus(ctx, w, err)
		return
	}
	resp := map[string]any{
		"ok":      true,
		"message": "registration " + string(reg.Status),
		"status":  reg.Status,
	}
	if reg.HouseholdID != nil {
		resp["household_id"] = reg.HouseholdID
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateHousehold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var profile models.HouseholdProfile
	if err := h.decodeJSON(ctx, r.Body, &profile); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	household, err := h.registry.CreateHousehold(ctx, profile, requestcontext.AdminID(ctx))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, household)
}

func (h *Handler) handleRemoveHousehold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	householdID, err := id.ParseHouseholdID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	household, err := h.registry.RemoveHousehold(ctx, householdID, requestcontext.AdminID(ctx))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, household)
}

func (h *Handler) handleRestoreHousehold(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	householdID, err := id.ParseHouseholdID(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	household, err := h.registry.RestoreHousehold(ctx, householdID, requestcontext.AdminID(ctx))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, household)
}

func (h *Handler) handleListHouseholds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := models.HouseholdFilter{HouseNumber: r.URL.Query().Get("house_number")}
	if v := r.URL.Query().Get("removed"); v != "" {
		removed, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(ctx, w, dErrors.New(dErrors.CodeInvalidInput, "removed must be true or false"))
			return
		}
		filter.Removed = &removed
	}
	households, err := h.views.Households(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"households": households})
}

func (h *Handler) handleListRegistrations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var filter models.RegistrationFilter
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := models.ParseRequestStatus(v)
		if err != nil {
			h.writeError(ctx, w, err)
			return
		}
		filter.Statuses = []models.RequestStatus{st}
	}
	regs, err := h.views.Registrations(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"registrations": regs})
}
