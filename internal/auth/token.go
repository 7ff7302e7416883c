// Package auth issues and verifies bearer tokens and manages accounts.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of an access token.
type Claims struct {
	Role   models.Role `json:"role"`
	UserID string      `json:"userId"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer builds an issuer. A zero ttl issues tokens without exp.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for u.
func (i *Issuer) Issue(u models.User) (string, models.Session, error) {
	now := i.now()
	claims := Claims{
		Role:   u.Role,
		UserID: u.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  u.Username,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", models.Session{}, err
	}
	sess, err := sessionFrom(&claims)
	return token, sess, err
}

// Verify checks the signature and expiry of a bearer token and returns its session.
func (i *Issuer) Verify(raw string) (models.Session, error) {
	raw = StripBearer(raw)
	if raw == "" {
		return models.Session{}, apperr.New(apperr.KindAuthentication, "", "missing token")
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Session{}, apperr.Wrap(apperr.KindAuthentication, "", "token expired", err)
		}
		return models.Session{}, apperr.Wrap(apperr.KindAuthentication, "", "invalid token", err)
	}
	return sessionFrom(&claims)
}

// Decode reads a token without verifying its signature, the way a client
// restores a persisted session. Expired tokens and tokens missing required
// claims are rejected.
func Decode(raw string, now time.Time) (models.Session, error) {
	raw = StripBearer(raw)
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return models.Session{}, apperr.Wrap(apperr.KindAuthentication, "", "malformed token", err)
	}
	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return models.Session{}, apperr.New(apperr.KindAuthentication, "", "token expired")
	}
	return sessionFrom(&claims)
}

// StripBearer removes an optional "Bearer " prefix.
func StripBearer(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	return raw
}

func sessionFrom(c *Claims) (models.Session, error) {
	if c.Subject == "" || c.UserID == "" || !c.Role.Valid() {
		return models.Session{}, apperr.New(apperr.KindAuthentication, "", "token missing required claims")
	}
	s := models.Session{Username: c.Subject, UserID: c.UserID, Role: c.Role}
	if c.ExpiresAt != nil {
		s.ExpiresAt = c.ExpiresAt.Time
	}
	return s, nil
}
