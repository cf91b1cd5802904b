package myMiddleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeValidator struct{}

func (fakeValidator) ValidateToken(tokenString string) (int, string, error) {
	if tokenString == "good-token" {
		return 7, "alice", nil
	}
	return 0, "", errors.New("invalid token")
}

func authedHandler(t *testing.T, called *bool) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		assert.Equal(t, 7, r.Context().Value(UserKey))
		assert.Equal(t, "alice", r.Context().Value(UsernameKey))
	})
}

func TestAuthMiddlewareHeader(t *testing.T) {
	am := NewAuthMiddleware(fakeValidator{})
	called := false

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	am.Handle(authedHandler(t, &called)).ServeHTTP(rec, req)

	require.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareQueryFallback(t *testing.T) {
	am := NewAuthMiddleware(fakeValidator{})
	called := false

	req := httptest.NewRequest(http.MethodGet, "/ws/chat/2?token=good-token", nil)
	rec := httptest.NewRecorder()

	am.Handle(authedHandler(t, &called)).ServeHTTP(rec, req)

	require.True(t, called)
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	am := NewAuthMiddleware(fakeValidator{})
	called := false

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	rec := httptest.NewRecorder()

	am.Handle(authedHandler(t, &called)).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareBadToken(t *testing.T) {
	am := NewAuthMiddleware(fakeValidator{})
	called := false

	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()

	am.Handle(authedHandler(t, &called)).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
