package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	request "qochi/pkg/platform/middleware/request"
	"qochi/pkg/requestcontext"
)

const (
	HeaderAdminToken = "X-Admin-Token"
	// HeaderAdminID names the acting administrator for audit trails.
	HeaderAdminID  = "X-Admin-ID"
	defaultAdminID = "admin"
)

// RequireAdminToken admits requests carrying the shared admin token and
// marks their context as administrative. An empty expected token rejects
// everything.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ValidToken(r, expectedToken) {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", request.GetRequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithAdmin(r.Context(), AdminID(r))))
		})
	}
}

// ValidToken compares the request's admin token in constant time.
func ValidToken(r *http.Request, expectedToken string) bool {
	if expectedToken == "" {
		return false
	}
	token := r.Header.Get(HeaderAdminToken)
	return subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) == 1
}

// AdminID returns the declared administrator, defaulting to "admin".
func AdminID(r *http.Request) string {
	adminID := strings.TrimSpace(r.Header.Get(HeaderAdminID))
	if adminID == "" || len(adminID) > 64 {
		return defaultAdminID
	}
	return adminID
}
