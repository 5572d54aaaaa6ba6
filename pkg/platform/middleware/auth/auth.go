package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "qochi/pkg/domain"
	"qochi/pkg/platform/middleware/admin"
	request "qochi/pkg/platform/middleware/request"
	"qochi/pkg/requestcontext"
)

// JWTValidator defines the interface for validating household bearer tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	HouseholdID id.HouseholdID
	JTI         string
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireCaller admits either an administrator (admin token header) or a
// household (bearer token). Household claims are bound to the context so
// services can scope what the caller may touch.
func RequireCaller(validator JWTValidator, adminToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			if r.Header.Get(admin.HeaderAdminToken) != "" {
				if !admin.ValidToken(r, adminToken) {
					logger.WarnContext(ctx, "unauthorized access - admin token mismatch",
						"request_id", requestID,
					)
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid admin token")
					return
				}
				next.ServeHTTP(w, r.WithContext(requestcontext.WithAdmin(ctx, admin.AdminID(r))))
				return
			}

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(ctx, claims)))
		})
	}
}

// WithClaims binds validated household claims to ctx.
func WithClaims(ctx context.Context, claims *JWTClaims) context.Context {
	return requestcontext.WithHousehold(ctx, claims.HouseholdID)
}
