package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"qochi/pkg/requestcontext"
)

func TestRequireAdminToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var adminID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminID = requestcontext.AdminID(r.Context())
	})

	t.Run("accepts matching token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/admin/pending-counts", nil)
		r.Header.Set(HeaderAdminToken, "secret")
		rec := httptest.NewRecorder()
		RequireAdminToken("secret", logger)(next).ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "admin", adminID)
	})

	t.Run("rejects mismatch", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/admin/pending-counts", nil)
		r.Header.Set(HeaderAdminToken, "guess")
		rec := httptest.NewRecorder()
		RequireAdminToken("secret", logger)(next).ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("empty configured token rejects everything", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/admin/pending-counts", nil)
		rec := httptest.NewRecorder()
		RequireAdminToken("", logger)(next).ServeHTTP(rec, r)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
