package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPolicy(t *testing.T, s *Store, id, owner string, status models.PolicyStatus, at time.Time) models.Policy {
	t.Helper()
	p := models.Policy{PolicyID: id, UserID: owner, Status: status, CreatedAt: at, UpdatedAt: at, Version: 1}
	require.NoError(t, s.CreatePolicy(context.Background(), p))
	return p
}

func TestUpdatePolicyIsCompareAndSet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := seedPolicy(t, s, "P1", "u1", models.PolicyActive, time.Now())

	next := p
	next.Status = models.PolicySuspended
	next.Version = 2
	require.NoError(t, s.UpdatePolicy(ctx, next, models.PolicyActive))

	stale := p
	stale.Status = models.PolicyCancelled
	stale.Version = 2
	err := s.UpdatePolicy(ctx, stale, models.PolicyActive)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := s.GetPolicy(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, models.PolicySuspended, got.Status)
	assert.Equal(t, 2, got.Version)
}

func TestUpdatePolicyRejectsStaleVersionWithSameStatus(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	p := seedPolicy(t, s, "P1", "u1", models.PolicyActive, time.Now())
	p.TermMonths = 12
	first, second := p, p
	first.TermMonths, first.Version = 18, 2
	second.TermMonths, second.Version = 24, 2

	require.NoError(t, s.UpdatePolicy(ctx, first, models.PolicyActive))
	assert.ErrorIs(t, s.UpdatePolicy(ctx, second, models.PolicyActive), apperr.ErrConflict)

	got, err := s.GetPolicy(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 18, got.TermMonths)
}

func TestListPoliciesFiltersAndOrders(t *testing.T) {
	s := NewStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	seedPolicy(t, s, "P1", "u1", models.PolicyActive, base)
	seedPolicy(t, s, "P2", "u2", models.PolicyActive, base.Add(time.Hour))
	seedPolicy(t, s, "P3", "u1", models.PolicyExpired, base.Add(2*time.Hour))

	all, err := s.ListPolicies(context.Background(), lifecycle.PolicyFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "P3", all[0].PolicyID)

	mine, err := s.ListPolicies(context.Background(), lifecycle.PolicyFilter{UserID: "u1", Status: models.PolicyActive})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "P1", mine[0].PolicyID)
}

func TestClaimRequiresPolicyAndKeepsEvidenceStamps(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	err := s.CreateClaim(ctx, models.Claim{ClaimID: "C1", PolicyID: "missing"})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	seedPolicy(t, s, "P1", "u1", models.PolicyActive, time.Now())
	c := models.Claim{ClaimID: "C1", PolicyID: "P1", Status: models.ClaimDraft}
	require.NoError(t, s.CreateClaim(ctx, c))
	require.NoError(t, s.RecordEvidence(ctx, "C1", time.Now()))

	c.Status = models.ClaimSubmitted
	require.NoError(t, s.UpdateClaim(ctx, c, models.ClaimDraft))

	got, err := s.GetClaim(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.EvidenceCount)
	assert.NotNil(t, got.LastEvidenceAt)
	assert.Equal(t, models.ClaimSubmitted, got.Status)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.CreateUser(ctx, models.User{Username: "ana@example.com", UserID: "u1"}))
	assert.ErrorIs(t, s.CreateUser(ctx, models.User{Username: "ana@example.com"}), apperr.ErrConflict)

	u, err := s.GetUser(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.UserID)

	_, err = s.GetUser(ctx, "bob@example.com")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDocumentsLifecycle(t *testing.T) {
	ctx := context.Background()
	d := NewDocuments("http://storage.local/")
	target, err := d.PresignUpload(ctx, "C1", "photo.jpg", "image/jpeg")
	require.NoError(t, err)

	ct, ok := d.DeclaredContentType(target.Key)
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", ct)

	d.Put(target.Key, 128, time.Now())
	items, err := d.List(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "photo.jpg", items[0].Filename)

	claimID, ok := d.ClaimID(target.Key)
	assert.True(t, ok)
	assert.Equal(t, "C1", claimID)
}
