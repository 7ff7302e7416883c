package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct{ got string }

func (s *stubVerifier) Verify(token string) (models.Session, error) {
	s.got = token
	if token != "Bearer good" {
		return models.Session{}, apperr.New(apperr.KindAuthentication, "", "invalid token")
	}
	return models.Session{Username: "ana", UserID: "u1", Role: models.RoleUser}, nil
}

func TestFromRequestBearer(t *testing.T) {
	a := New(&stubVerifier{}, false)
	r := httptest.NewRequest(http.MethodGet, "/policies", nil)
	r.Header.Set("Authorization", "Bearer good")

	s, err := a.FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)

	r.Header.Set("Authorization", "Bearer bad")
	_, err = a.FromRequest(r)
	assert.ErrorIs(t, err, apperr.ErrAuthentication)

	r.Header.Del("Authorization")
	_, err = a.FromRequest(r)
	assert.ErrorIs(t, err, apperr.ErrAuthentication)
}

func TestDevBypass(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/policies", nil)
	r.Header.Set("X-User-Sub", "ops")
	r.Header.Set("X-User-Role", "admin")

	s, err := New(&stubVerifier{}, true).FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, models.Session{Username: "ops", UserID: "ops", Role: models.RoleAdmin}, s)

	_, err = New(&stubVerifier{}, false).FromRequest(r)
	assert.Error(t, err, "bypass headers are ignored unless enabled")

	r.Header.Set("X-User-Role", "SYSTEM")
	s, err = New(&stubVerifier{}, true).FromRequest(r)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, s.Role)
}

func TestRequireMiddleware(t *testing.T) {
	a := New(&stubVerifier{}, false)
	var seen models.Session
	h := a.Require(func(w http.ResponseWriter, err error) {
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = SessionFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ana", seen.Username)
}

func TestOptionalMiddleware(t *testing.T) {
	a := New(&stubVerifier{}, false)
	var ok bool
	h := a.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = SessionFrom(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/register", nil))
	assert.False(t, ok)

	req := httptest.NewRequest(http.MethodPost, "/auth/register", nil)
	req.Header.Set("Authorization", "Bearer good")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, ok)
}
