package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/auth"
	"github.com/kylejryan/insurance-ops/internal/models"
)

// Session is the authenticated state of a console: the bearer token and
// the principal it encodes. It is passed explicitly to every call.
type Session struct {
	Token     string
	Principal models.Session
}

// NewSession decodes token locally. Expired tokens and tokens missing
// required claims yield an Authentication error.
func NewSession(token string, now time.Time) (Session, error) {
	p, err := auth.Decode(token, now)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: auth.StripBearer(token), Principal: p}, nil
}

// Valid reports whether s carries a token that has not expired at now.
func (s Session) Valid(now time.Time) bool {
	if s.Token == "" {
		return false
	}
	return s.Principal.ExpiresAt.IsZero() || now.Before(s.Principal.ExpiresAt)
}

// SessionStore persists the token between CLI invocations.
type SessionStore struct {
	Path string
}

// DefaultSessionPath is ~/.config/opsctl/session.json.
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "opsctl", "session.json"), nil
}

type sessionFile struct {
	Token string `json:"token"`
}

// Load restores the persisted session. ok is false when there is none or
// the stored token is no longer usable, in which case the file is removed.
func (st SessionStore) Load(now time.Time) (s Session, ok bool, err error) {
	raw, err := os.ReadFile(st.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("read session: %w", err)
	}
	var f sessionFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return Session{}, false, st.Clear()
	}
	s, err = NewSession(f.Token, now)
	if errors.Is(err, apperr.ErrAuthentication) {
		return Session{}, false, st.Clear()
	}
	if err != nil {
		return Session{}, false, err
	}
	return s, true, nil
}

// Save writes the session token with owner-only permissions.
func (st SessionStore) Save(s Session) error {
	if err := os.MkdirAll(filepath.Dir(st.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	raw, err := json.Marshal(sessionFile{Token: s.Token})
	if err != nil {
		return err
	}
	return os.WriteFile(st.Path, raw, 0o600)
}

// Clear removes the persisted session.
func (st SessionStore) Clear() error {
	if err := os.Remove(st.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
