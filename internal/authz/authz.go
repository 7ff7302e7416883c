// Package authz resolves the acting session of an HTTP request.
package authz

import (
	"context"
	"net/http"
	"strings"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/models"
)

// Dev bypass headers, honoured only when bypass is enabled.
const (
	devSubHeader    = "x-user-sub"
	devUserIDHeader = "x-user-id"
	devRoleHeader   = "x-user-role"
)

// Verifier turns a bearer token into a session.
type Verifier interface {
	Verify(token string) (models.Session, error)
}

// Authenticator extracts sessions from requests.
type Authenticator struct {
	verifier  Verifier
	devBypass bool
}

// New builds an Authenticator.
func New(v Verifier, devBypass bool) *Authenticator {
	return &Authenticator{verifier: v, devBypass: devBypass}
}

// FromRequest resolves the session of r from the dev bypass headers (when
// enabled) or the Authorization bearer token.
func (a *Authenticator) FromRequest(r *http.Request) (models.Session, error) {
	if a.devBypass {
		if sub := strings.TrimSpace(r.Header.Get(devSubHeader)); sub != "" {
			s := models.Session{
				Username: sub,
				UserID:   strings.TrimSpace(r.Header.Get(devUserIDHeader)),
				Role:     models.Role(strings.ToUpper(strings.TrimSpace(r.Header.Get(devRoleHeader)))),
			}
			if s.UserID == "" {
				s.UserID = sub
			}
			if !s.Role.Valid() {
				s.Role = models.RoleUser
			}
			return s, nil
		}
	}

	auth := r.Header.Get("Authorization")
	if strings.TrimSpace(auth) == "" {
		return models.Session{}, apperr.New(apperr.KindAuthentication, "", "missing user")
	}
	return a.verifier.Verify(auth)
}

type ctxKey struct{}

// WithSession stores s in ctx.
func WithSession(ctx context.Context, s models.Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// SessionFrom returns the session stored in ctx.
func SessionFrom(ctx context.Context) (models.Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(models.Session)
	return s, ok
}

// Require rejects requests without a valid session. onError writes the failure.
func (a *Authenticator) Require(onError func(http.ResponseWriter, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, err := a.FromRequest(r)
			if err != nil {
				onError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// Optional attaches a session when one is present and valid, and otherwise
// lets the request through anonymously.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s, err := a.FromRequest(r); err == nil {
			r = r.WithContext(WithSession(r.Context(), s))
		}
		next.ServeHTTP(w, r)
	})
}
