package identity

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "dealerhub/pkg/domain"
	"dealerhub/pkg/requestcontext"
)

func TestRequireAuth(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var (
		gotAccount  id.AccountID
		gotVerified bool
	)
	handler := RequireAuth(validator, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccount = requestcontext.AccountID(r.Context())
		gotVerified = requestcontext.EmailVerified(r.Context())
		claims, ok := ClaimsFrom(r.Context())
		require.True(t, ok)
		assert.Equal(t, "d@example.com", claims.Email)
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("valid token reaches the handler", func(t *testing.T) {
		token, err := validator.Issue("dealer-1", "d@example.com", true, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.EqualValues(t, "dealer-1", gotAccount)
		assert.True(t, gotVerified)
	})

	t.Run("missing or invalid token is rejected", func(t *testing.T) {
		for _, header := range []string{"", "Basic abc", "Bearer ", "Bearer garbage"} {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
			assert.Contains(t, rec.Body.String(), `"error":"unauthorized"`)
		}
	})
}
