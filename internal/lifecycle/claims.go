package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/models"
	"github.com/kylejryan/insurance-ops/internal/validate"

	"github.com/shopspring/decimal"
)

// CreateClaim opens a DRAFT claim against an existing policy.
func (m *Manager) CreateClaim(ctx context.Context, actor models.Session, policyID, description string) (models.Claim, error) {
	if err := requireSession(actor); err != nil {
		return models.Claim{}, err
	}
	policyID = strings.TrimSpace(policyID)
	if policyID == "" {
		return models.Claim{}, apperr.Validation("policyId required")
	}
	if err := validate.Description(description); err != nil {
		return models.Claim{}, err
	}
	p, err := m.store.GetPolicy(ctx, policyID)
	if err != nil {
		return models.Claim{}, err
	}
	if err := m.check(actor, ActionCreateClaim, "", p.UserID); err != nil {
		return models.Claim{}, err
	}

	now := m.now()
	c := models.Claim{
		ClaimID:     m.newID(),
		PolicyID:    p.PolicyID,
		UserID:      p.UserID,
		Status:      models.ClaimDraft,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.CreateClaim(ctx, c); err != nil {
		return models.Claim{}, m.failed(EntityClaim, ActionCreateClaim, err)
	}
	m.done(actor, EntityClaim, ActionCreateClaim, Target{PolicyID: c.PolicyID, ClaimID: c.ClaimID}, "", string(c.Status))
	return c, nil
}

// GetClaim returns a claim visible to actor.
func (m *Manager) GetClaim(ctx context.Context, actor models.Session, claimID string) (models.Claim, error) {
	if err := requireSession(actor); err != nil {
		return models.Claim{}, err
	}
	c, err := m.store.GetClaim(ctx, claimID)
	if err != nil {
		return models.Claim{}, err
	}
	if !actor.IsAdmin() && !actor.Owns(c.UserID) {
		return models.Claim{}, apperr.New(apperr.KindAuthorization, "claim.get", "not permitted")
	}
	return c, nil
}

// ListClaims lists claims matching f. Non-admins only see claims on their own policies.
func (m *Manager) ListClaims(ctx context.Context, actor models.Session, f ClaimFilter) ([]models.Claim, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		f.UserID = actor.UserID
	}
	return m.store.ListClaims(ctx, f)
}

// SubmitClaim moves a DRAFT claim to SUBMITTED. Submitting anything else is a Conflict.
func (m *Manager) SubmitClaim(ctx context.Context, actor models.Session, claimID string) (models.Claim, error) {
	return m.transitionClaim(ctx, actor, ActionSubmit, claimID, func(c *models.Claim) {
		c.Status = models.ClaimSubmitted
	})
}

// AdjudicateClaim terminates a SUBMITTED claim. A DENIED decision always
// stores a zero payout whatever was supplied.
func (m *Manager) AdjudicateClaim(ctx context.Context, actor models.Session, claimID string, decision models.ClaimStatus, payout *decimal.Decimal) (models.Claim, error) {
	if err := validate.All(
		func() error { return validate.Decision(decision) },
		func() error { return validate.Payout(payout) },
	); err != nil {
		return models.Claim{}, err
	}
	if err := m.table.CheckTarget(ActionAdjudicate, string(decision)); err != nil {
		return models.Claim{}, err
	}
	amount := *payout
	if decision == models.ClaimDenied {
		amount = decimal.Zero
	}
	return m.transitionClaim(ctx, actor, ActionAdjudicate, claimID, func(c *models.Claim) {
		c.Status = decision
		c.PayoutAmount = &amount
	})
}

// AttachEvidence returns a presigned target the caller uploads the file to.
// The upload must carry exactly the returned content type.
func (m *Manager) AttachEvidence(ctx context.Context, actor models.Session, claimID, filename, contentType string) (models.UploadTarget, error) {
	if err := requireSession(actor); err != nil {
		return models.UploadTarget{}, err
	}
	if err := validate.All(
		func() error { return validate.Filename(filename) },
		func() error { return validate.ContentType(contentType) },
	); err != nil {
		return models.UploadTarget{}, err
	}
	c, err := m.store.GetClaim(ctx, claimID)
	if err != nil {
		return models.UploadTarget{}, err
	}
	if err := m.check(actor, ActionAttach, string(c.Status), c.UserID); err != nil {
		return models.UploadTarget{}, err
	}
	target, err := m.docs.PresignUpload(ctx, c.ClaimID, strings.TrimSpace(filename), strings.TrimSpace(contentType))
	if err != nil {
		return models.UploadTarget{}, m.failed(EntityClaim, ActionAttach, collaborator("claim.attach", err))
	}
	m.done(actor, EntityClaim, ActionAttach, Target{PolicyID: c.PolicyID, ClaimID: c.ClaimID}, string(c.Status), string(c.Status))
	return target, nil
}

// ListDocuments lists the evidence stored for a claim visible to actor.
func (m *Manager) ListDocuments(ctx context.Context, actor models.Session, claimID string) ([]models.DocumentInfo, error) {
	c, err := m.GetClaim(ctx, actor, claimID)
	if err != nil {
		return nil, err
	}
	items, err := m.docs.List(ctx, c.ClaimID)
	if err != nil {
		return nil, collaborator("documents.list", err)
	}
	return items, nil
}

// DownloadLink resolves a presigned download URL for a document key.
func (m *Manager) DownloadLink(ctx context.Context, actor models.Session, key string) (string, error) {
	claimID, ok := m.docs.ClaimID(key)
	if !ok {
		return "", apperr.Validation("invalid document key")
	}
	if _, err := m.GetClaim(ctx, actor, claimID); err != nil {
		return "", err
	}
	url, err := m.docs.PresignDownload(ctx, key)
	if err != nil {
		return "", collaborator("documents.download", err)
	}
	return url, nil
}

// RecordEvidence stamps the claim owning key with a newly stored document.
func (m *Manager) RecordEvidence(ctx context.Context, key string, at time.Time) (string, error) {
	claimID, ok := m.docs.ClaimID(key)
	if !ok {
		return "", apperr.Validation("invalid document key")
	}
	if err := m.store.RecordEvidence(ctx, claimID, at); err != nil {
		return "", err
	}
	for _, l := range m.listeners {
		l(ActionAttach, []Scope{ClaimScope(claimID), DocumentsScope(claimID)})
	}
	return claimID, nil
}

func (m *Manager) transitionClaim(ctx context.Context, actor models.Session, a Action, claimID string, apply func(*models.Claim)) (models.Claim, error) {
	if err := requireSession(actor); err != nil {
		return models.Claim{}, err
	}
	cur, err := m.store.GetClaim(ctx, claimID)
	if err != nil {
		return models.Claim{}, err
	}
	if err := m.check(actor, a, string(cur.Status), cur.UserID); err != nil {
		return models.Claim{}, err
	}
	next := cur
	apply(&next)
	next.UpdatedAt = m.now()
	if err := m.store.UpdateClaim(ctx, next, cur.Status); err != nil {
		return models.Claim{}, m.failed(EntityClaim, a, err)
	}
	m.done(actor, EntityClaim, a, Target{PolicyID: next.PolicyID, ClaimID: next.ClaimID}, string(cur.Status), string(next.Status))
	return next, nil
}

func collaborator(op string, err error) error {
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	return apperr.Wrap(apperr.KindCollaborator, op, "document store unavailable", err)
}
