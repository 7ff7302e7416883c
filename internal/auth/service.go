package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/models"
	"github.com/kylejryan/insurance-ops/internal/validate"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists accounts. GetUser fails with an apperr NotFound for
// unknown usernames; CreateUser fails with a Conflict for taken ones.
type UserStore interface {
	CreateUser(ctx context.Context, u models.User) error
	GetUser(ctx context.Context, username string) (models.User, error)
}

// Service registers users and logs them in.
type Service struct {
	users  UserStore
	issuer *Issuer
	cost   int
	now    func() time.Time
}

// NewService builds an account service.
func NewService(users UserStore, issuer *Issuer) *Service {
	return &Service{users: users, issuer: issuer, cost: bcrypt.DefaultCost, now: time.Now}
}

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role,omitempty"`
}

// Register creates an account. Only an administrator may create another
// administrator; caller may be nil for anonymous sign-up.
func (s *Service) Register(ctx context.Context, caller *models.Session, in RegisterInput) (models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.All(
		func() error { return validate.Email(in.Email) },
		func() error { return validate.Password(in.Password) },
		func() error { return validate.Role(in.Role) },
	); err != nil {
		return models.User{}, err
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if role == models.RoleAdmin && (caller == nil || !caller.IsAdmin()) {
		return models.User{}, apperr.New(apperr.KindAuthorization, "auth.register", "only administrators may create administrators")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{
		UserID:       ulid.Make().String(),
		Username:     in.Email,
		Email:        in.Email,
		Role:         role,
		PasswordHash: string(hash),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return models.User{}, apperr.Wrap(apperr.KindConflict, "auth.register", "account already exists", err)
		}
		return models.User{}, err
	}
	return u, nil
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (string, models.Session, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	invalid := apperr.New(apperr.KindAuthentication, "auth.login", "invalid credentials")
	if username == "" || password == "" {
		return "", models.Session{}, invalid
	}
	u, err := s.users.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return "", models.Session{}, invalid
		}
		return "", models.Session{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", models.Session{}, invalid
	}
	return s.issuer.Issue(u)
}
