package handler

import (
	"net/http"
	"strconv"
	"time"

	id "qochi/pkg/domain"
	dErrors "qochi/pkg/domain-errors"
	audit "qochi/pkg/platform/audit"
	"qochi/pkg/platform/httputil"
	"qochi/pkg/requestcontext"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

func (h *Handler) handlePendingCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	counts, err := h.views.PendingCounts(ctx)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, counts)
}

type sweepResponse struct {
	Expired    int  `json:"expired"`
	Incomplete bool `json:"incomplete,omitempty"`
}

// handleSweep runs one expiry pass. Requests that failed to expire are
// left for the next pass and flagged as incomplete.
func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := h.registry.SweepExpired(ctx)
	if err != nil && n == 0 {
		h.writeError(ctx, w, err)
		return
	}
	if err != nil {
		h.logger.WarnContext(ctx, "expiry sweep incomplete",
			"expired", n,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteJSON(w, http.StatusOK, sweepResponse{Expired: n, Incomplete: err != nil})
}

type auditEntry struct {
	Category    string    `json:"category"`
	Timestamp   time.Time `json:"timestamp"`
	HouseholdID string    `json:"household_id,omitempty"`
	Subject     string    `json:"subject"`
	Action      string    `json:"action"`
	Kind        string    `json:"kind,omitempty"`
	Decision    string    `json:"decision,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
	ActorID     string    `json:"actor_id,omitempty"`
	ClientIP    string    `json:"client_ip,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
}

func toAuditEntries(events []audit.Event) []auditEntry {
	out := make([]auditEntry, 0, len(events))
	for _, e := range events {
		entry := auditEntry{
			Category:  string(e.Category),
			Timestamp: e.Timestamp,
			Subject:   e.Subject,
			Action:    e.Action,
			Kind:      e.Kind,
			Decision:  e.Decision,
			Reason:    e.Reason,
			RequestID: e.RequestID,
			ActorID:   e.ActorID,
			ClientIP:  e.ClientIP,
			UserAgent: e.UserAgent,
		}
		if !e.HouseholdID.IsNil() {
			entry.HouseholdID = e.HouseholdID.String()
		}
		out = append(out, entry)
	}
	return out
}

// handleAuditTrail lists one household's events, or the most recent events
// across the registry when no household_id is given.
func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		events []audit.Event
		err    error
	)
	if v := q.Get("household_id"); v != "" {
		householdID, perr := id.ParseHouseholdID(v)
		if perr != nil {
			h.writeError(ctx, w, perr)
			return
		}
		events, err = h.auditLog.List(ctx, householdID)
	} else {
		limit := defaultAuditLimit
		if v := q.Get("limit"); v != "" {
			n, perr := strconv.Atoi(v)
			if perr != nil || n < 1 || n > maxAuditLimit {
				h.writeError(ctx, w, dErrors.New(dErrors.CodeInvalidInput, "limit must be between 1 and 1000"))
				return
			}
			limit = n
		}
		events, err = h.auditLog.Recent(ctx, limit)
	}
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": toAuditEntries(events)})
}
