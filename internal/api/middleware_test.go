package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/kusum-bhattarai/dev-journal/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestErrorHandler(t *testing.T) {
	s := &ChatApp{log: testutil.TestLogger(t)}

	h := s.errorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code, "expected 500 after panic")
	assert.Equal(t, "close", rr.Header().Get("Connection"), "expected connection close header")
	assert.JSONEq(t, `{"status_code":500,"message":"internal server error"}`, rr.Body.String(), "expected error body")
}

func TestAuthMiddleware(t *testing.T) {
	key := []byte("test-signing-key")
	s := &ChatApp{log: testutil.TestLogger(t), signingKey: key}

	handler := s.authMiddleware(func(w http.ResponseWriter, r *http.Request) {
		userId, ok := UserId(r.Context())
		assert.True(t, ok, "expected user id in context")
		assert.Equal(t, 7, userId, "expected user id from token")
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid token", func(t *testing.T) {
		token := signTestToken(t, key, jwt.MapClaims{
			userIdClaim: 7,
			"exp":       time.Now().Add(time.Hour).Unix(),
		})

		r := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
		r.Header.Set("Authorization", "Bearer "+token)

		rr := httptest.NewRecorder()
		handler(rr, r)

		assert.Equal(t, http.StatusOK, rr.Code, "expected request to pass through")
		assert.Contains(t, rr.Header().Get("Cache-Control"), "no-store", "expected no-store cache header")
	})

	t.Run("missing header", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)

		rr := httptest.NewRecorder()
		handler(rr, r)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected 401 without a token")
	})

	t.Run("garbage token", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
		r.Header.Set("Authorization", "Bearer not-a-jwt")

		rr := httptest.NewRecorder()
		handler(rr, r)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected 401 for an unverifiable token")
	})
}

func TestInternalAuthMiddleware(t *testing.T) {
	s := &ChatApp{log: testutil.TestLogger(t), internalAPIKey: "internal-secret"}

	handler := s.internalAuthMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("valid key", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/internal/notifications/journal_share", nil)
		r.Header.Set("x-internal-api-key", "internal-secret")

		rr := httptest.NewRecorder()
		handler(rr, r)

		assert.Equal(t, http.StatusOK, rr.Code, "expected request to pass through")
	})

	t.Run("wrong key", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/internal/notifications/journal_share", nil)
		r.Header.Set("x-internal-api-key", "guess")

		rr := httptest.NewRecorder()
		handler(rr, r)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected 401 for a wrong key")
	})

	t.Run("missing key", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/internal/notifications/journal_share", nil)

		rr := httptest.NewRecorder()
		handler(rr, r)

		assert.Equal(t, http.StatusUnauthorized, rr.Code, "expected 401 without a key")
	})
}
