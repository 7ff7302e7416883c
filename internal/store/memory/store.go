// Package memory is an in-process implementation of the persistence and
// document collaborators, used in dev mode and tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"
)

// Store keeps users, policies and claims in maps guarded by one mutex.
type Store struct {
	mu       sync.Mutex
	users    map[string]models.User
	policies map[string]models.Policy
	claims   map[string]models.Claim
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:    map[string]models.User{},
		policies: map[string]models.Policy{},
		claims:   map[string]models.Claim{},
	}
}

// CreatePolicy inserts p, failing if the id is taken.
func (s *Store) CreatePolicy(ctx context.Context, p models.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.PolicyID]; ok {
		return apperr.New(apperr.KindConflict, "policy.create", "policy already exists")
	}
	s.policies[p.PolicyID] = p
	return nil
}

// GetPolicy returns the policy with the given id.
func (s *Store) GetPolicy(ctx context.Context, policyID string) (models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[policyID]
	if !ok {
		return models.Policy{}, apperr.New(apperr.KindNotFound, "policy.get", "policy not found")
	}
	return p, nil
}

// ListPolicies returns matching policies, newest first.
func (s *Store) ListPolicies(ctx context.Context, f lifecycle.PolicyFilter) ([]models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Policy{}
	for _, p := range s.policies {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b models.Policy) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.PolicyID, a.PolicyID)
	})
	return out, nil
}

// UpdatePolicy replaces p if its stored status is still expected and p.Version
// directly follows the stored one.
func (s *Store) UpdatePolicy(ctx context.Context, p models.Policy, expected models.PolicyStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.policies[p.PolicyID]
	if !ok {
		return apperr.New(apperr.KindNotFound, "policy.update", "policy not found")
	}
	if cur.Status != expected || cur.Version != p.Version-1 {
		return apperr.New(apperr.KindConflict, "policy.update", "policy changed concurrently")
	}
	s.policies[p.PolicyID] = p
	return nil
}

// CreateClaim inserts c, failing if the id is taken.
func (s *Store) CreateClaim(ctx context.Context, c models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[c.ClaimID]; ok {
		return apperr.New(apperr.KindConflict, "claim.create", "claim already exists")
	}
	if _, ok := s.policies[c.PolicyID]; !ok {
		return apperr.New(apperr.KindNotFound, "claim.create", "policy not found")
	}
	s.claims[c.ClaimID] = c
	return nil
}

// GetClaim returns the claim with the given id.
func (s *Store) GetClaim(ctx context.Context, claimID string) (models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[claimID]
	if !ok {
		return models.Claim{}, apperr.New(apperr.KindNotFound, "claim.get", "claim not found")
	}
	return c, nil
}

// ListClaims returns matching claims, newest first.
func (s *Store) ListClaims(ctx context.Context, f lifecycle.ClaimFilter) ([]models.Claim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Claim{}
	for _, c := range s.claims {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.Claim) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ClaimID, a.ClaimID)
	})
	return out, nil
}

// UpdateClaim replaces c if its stored status is still expected.
func (s *Store) UpdateClaim(ctx context.Context, c models.Claim, expected models.ClaimStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.claims[c.ClaimID]
	if !ok {
		return apperr.New(apperr.KindNotFound, "claim.update", "claim not found")
	}
	if cur.Status != expected {
		return apperr.New(apperr.KindConflict, "claim.update", "claim changed concurrently")
	}
	// Evidence stamps are owned by RecordEvidence.
	c.EvidenceCount, c.LastEvidenceAt = cur.EvidenceCount, cur.LastEvidenceAt
	s.claims[c.ClaimID] = c
	return nil
}

// RecordEvidence increments the claim's evidence count.
func (s *Store) RecordEvidence(ctx context.Context, claimID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[claimID]
	if !ok {
		return apperr.New(apperr.KindNotFound, "claim.evidence", "claim not found")
	}
	c.EvidenceCount++
	c.LastEvidenceAt = &at
	s.claims[claimID] = c
	return nil
}

// CreateUser inserts u, failing if the username is taken.
func (s *Store) CreateUser(ctx context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Username]; ok {
		return apperr.New(apperr.KindConflict, "user.create", "user already exists")
	}
	s.users[u.Username] = u
	return nil
}

// GetUser returns the user with the given username.
func (s *Store) GetUser(ctx context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return models.User{}, apperr.New(apperr.KindNotFound, "user.get", "user not found")
	}
	return u, nil
}

// Probe always succeeds.
func (s *Store) Probe(ctx context.Context) error { return nil }
