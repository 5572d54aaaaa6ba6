// Package requesttime pins one "now" per HTTP request so every timestamp a
// request writes (decision times, expiry deadlines, audit events) agrees.
package requesttime

import (
	"net/http"
	"time"

	"qochi/pkg/requestcontext"
)

// Precision matches Postgres timestamptz, so a value read back from the
// store compares equal to the one the request wrote.
const Precision = time.Microsecond

// Middleware stamps requests with the wall clock.
func Middleware(next http.Handler) http.Handler {
	return WithClock(time.Now)(next)
}

// WithClock stamps requests with now(), in UTC at store precision.
func WithClock(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := now().UTC().Truncate(Precision)
			next.ServeHTTP(w, r.WithContext(requestcontext.WithTime(r.Context(), t)))
		})
	}
}
