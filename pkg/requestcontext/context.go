// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services read them without importing net/http.
//
//	actor := requestcontext.Actor(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests inject them directly:
//
//	ctx = requestcontext.WithHousehold(ctx, householdID)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "qochi/pkg/domain"
)

type (
	householdIDKey struct{}
	adminIDKey     struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyHouseholdID = householdIDKey{}
	ContextKeyAdminID     = adminIDKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// HouseholdID returns the authenticated household, or the nil ID for admins
// and anonymous callers.
func HouseholdID(ctx context.Context) id.HouseholdID {
	if householdID, ok := ctx.Value(ContextKeyHouseholdID).(id.HouseholdID); ok {
		return householdID
	}
	return id.HouseholdID{}
}

// WithHousehold marks the context as acting on behalf of a household.
func WithHousehold(ctx context.Context, householdID id.HouseholdID) context.Context {
	return context.WithValue(ctx, ContextKeyHouseholdID, householdID)
}

// AdminID returns the authenticated administrator label, or "" when the caller
// is not an admin.
func AdminID(ctx context.Context) string {
	if adminID, ok := ctx.Value(ContextKeyAdminID).(string); ok {
		return adminID
	}
	return ""
}

// WithAdmin marks the context as an administrative action.
func WithAdmin(ctx context.Context, adminID string) context.Context {
	return context.WithValue(ctx, ContextKeyAdminID, adminID)
}

// IsAdmin reports whether an administrator is acting.
func IsAdmin(ctx context.Context) bool {
	return AdminID(ctx) != ""
}

// Actor returns a printable identity of whoever is acting, for audit trails.
func Actor(ctx context.Context) string {
	if adminID := AdminID(ctx); adminID != "" {
		return "admin:" + adminID
	}
	if householdID := HouseholdID(ctx); !householdID.IsNil() {
		return "household:" + householdID.String()
	}
	return "anonymous"
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the summarised user agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and user agent into a context.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// RequestID retrieves the correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request-scoped time, falling back to time.Now.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok && !t.IsZero() {
		return t
	}
	return time.Now()
}

// WithTime pins the request-scoped time.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
