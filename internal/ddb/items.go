package ddb

import (
	"fmt"
	"time"

	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/shopspring/decimal"
)

// Money is stored as decimal strings; attributevalue has no decimal support.

type userItem struct {
	PK           string    `dynamodbav:"PK"`
	SK           string    `dynamodbav:"SK"`
	Type         string    `dynamodbav:"type"`
	UserID       string    `dynamodbav:"user_id"`
	Username     string    `dynamodbav:"username"`
	Email        string    `dynamodbav:"email"`
	Role         string    `dynamodbav:"role"`
	PasswordHash string    `dynamodbav:"password_hash"`
	CreatedAt    time.Time `dynamodbav:"created_at"`
}

func toUserItem(u models.User) userItem {
	pk, sk := UserKeys(u.Username)
	return userItem{
		PK: pk, SK: sk, Type: "user",
		UserID:       u.UserID,
		Username:     u.Username,
		Email:        u.Email,
		Role:         string(u.Role),
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	}
}

func (it userItem) model() models.User {
	return models.User{
		UserID:       it.UserID,
		Username:     it.Username,
		Email:        it.Email,
		Role:         models.Role(it.Role),
		PasswordHash: it.PasswordHash,
		CreatedAt:    it.CreatedAt,
	}
}

type policyItem struct {
	PK              string    `dynamodbav:"PK"`
	SK              string    `dynamodbav:"SK"`
	GSI1PK          string    `dynamodbav:"GSI1PK"`
	GSI1SK          string    `dynamodbav:"GSI1SK"`
	Type            string    `dynamodbav:"type"`
	PolicyID        string    `dynamodbav:"policy_id"`
	UserID          string    `dynamodbav:"user_id"`
	QuoteID         string    `dynamodbav:"quote_id,omitempty"`
	Status          string    `dynamodbav:"status"`
	CoverageAmount  string    `dynamodbav:"coverage_amount"`
	Premium         string    `dynamodbav:"premium"`
	TermMonths      int       `dynamodbav:"term_months"`
	SuspendedReason string    `dynamodbav:"suspended_reason,omitempty"`
	CreatedAt       time.Time `dynamodbav:"created_at"`
	UpdatedAt       time.Time `dynamodbav:"updated_at"`
	Version         int       `dynamodbav:"version,omitempty"`
}

func toPolicyItem(p models.Policy) policyItem {
	pk, sk := PolicyKeys(p.PolicyID)
	gpk, gsk := OwnerIndexKeys(p.UserID, p.CreatedAt)
	return policyItem{
		PK: pk, SK: sk, GSI1PK: gpk, GSI1SK: gsk, Type: "policy",
		PolicyID:        p.PolicyID,
		UserID:          p.UserID,
		QuoteID:         p.QuoteID,
		Status:          string(p.Status),
		CoverageAmount:  p.CoverageAmount.String(),
		Premium:         p.Premium.String(),
		TermMonths:      p.TermMonths,
		SuspendedReason: p.SuspendedReason,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Version:         p.Version,
	}
}

func (it policyItem) model() (models.Policy, error) {
	coverage, err := decimal.NewFromString(it.CoverageAmount)
	if err != nil {
		return models.Policy{}, fmt.Errorf("policy %s coverage: %w", it.PolicyID, err)
	}
	premium, err := decimal.NewFromString(it.Premium)
	if err != nil {
		return models.Policy{}, fmt.Errorf("policy %s premium: %w", it.PolicyID, err)
	}
	return models.Policy{
		PolicyID:        it.PolicyID,
		UserID:          it.UserID,
		QuoteID:         it.QuoteID,
		Status:          models.PolicyStatus(it.Status),
		CoverageAmount:  coverage,
		Premium:         premium,
		TermMonths:      it.TermMonths,
		SuspendedReason: it.SuspendedReason,
		CreatedAt:       it.CreatedAt,
		UpdatedAt:       it.UpdatedAt,
		Version:         it.Version,
	}, nil
}

type claimItem struct {
	PK             string     `dynamodbav:"PK"`
	SK             string     `dynamodbav:"SK"`
	GSI1PK         string     `dynamodbav:"GSI1PK"`
	GSI1SK         string     `dynamodbav:"GSI1SK"`
	Type           string     `dynamodbav:"type"`
	ClaimID        string     `dynamodbav:"claim_id"`
	PolicyID       string     `dynamodbav:"policy_id"`
	UserID         string     `dynamodbav:"user_id"`
	Status         string     `dynamodbav:"status"`
	Description    string     `dynamodbav:"description"`
	PayoutAmount   *string    `dynamodbav:"payout_amount,omitempty"`
	EvidenceCount  int        `dynamodbav:"evidence_count"`
	LastEvidenceAt *time.Time `dynamodbav:"last_evidence_at,omitempty"`
	CreatedAt      time.Time  `dynamodbav:"created_at"`
	UpdatedAt      time.Time  `dynamodbav:"updated_at"`
}

func toClaimItem(c models.Claim) claimItem {
	pk, sk := ClaimKeys(c.ClaimID)
	gpk, gsk := PolicyClaimsIndexKeys(c.PolicyID, c.CreatedAt)
	it := claimItem{
		PK: pk, SK: sk, GSI1PK: gpk, GSI1SK: gsk, Type: "claim",
		ClaimID:        c.ClaimID,
		PolicyID:       c.PolicyID,
		UserID:         c.UserID,
		Status:         string(c.Status),
		Description:    c.Description,
		EvidenceCount:  c.EvidenceCount,
		LastEvidenceAt: c.LastEvidenceAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.PayoutAmount != nil {
		s := c.PayoutAmount.String()
		it.PayoutAmount = &s
	}
	return it
}

func (it claimItem) model() (models.Claim, error) {
	c := models.Claim{
		ClaimID:        it.ClaimID,
		PolicyID:       it.PolicyID,
		UserID:         it.UserID,
		Status:         models.ClaimStatus(it.Status),
		Description:    it.Description,
		EvidenceCount:  it.EvidenceCount,
		LastEvidenceAt: it.LastEvidenceAt,
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}
	if it.PayoutAmount != nil {
		d, err := decimal.NewFromString(*it.PayoutAmount)
		if err != nil {
			return models.Claim{}, fmt.Errorf("claim %s payout: %w", it.ClaimID, err)
		}
		c.PayoutAmount = &d
	}
	return c, nil
}
