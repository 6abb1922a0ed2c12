package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUserIDMissingFromContext(t *testing.T) {
	_, err := UserID(context.Background())
	assert.Error(t, err)
}

func TestUserIDPresentInContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), userIDKey, int64(42))
	id, err := UserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestAuthenticateBearerForwardsToAuthService(t *testing.T) {
	authSvc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer good-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user_id": 7}`))
	}))
	defer authSvc.Close()

	m := NewMiddleware(authSvc.URL, zap.NewNop())

	var seenUserID int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUserID, _ = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/caldav/bob/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()

	m.Authenticate(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), seenUserID)
}

func TestAuthenticateRejectsMissingCredentials(t *testing.T) {
	m := NewMiddleware("http://unused.invalid", zap.NewNop())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run without credentials")
	})

	req := httptest.NewRequest(http.MethodGet, "/caldav/bob/", nil)
	rec := httptest.NewRecorder()

	m.Authenticate(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Basic realm="televent"`, rec.Header().Get("WWW-Authenticate"))
}

func TestAuthenticateRejectsAuthServiceFailure(t *testing.T) {
	authSvc := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer authSvc.Close()

	m := NewMiddleware(authSvc.URL, zap.NewNop())
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next handler must not run on auth service rejection")
	})

	req := httptest.NewRequest(http.MethodGet, "/caldav/bob/", nil)
	req.SetBasicAuth("bob", "device-password")
	rec := httptest.NewRecorder()

	m.Authenticate(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
