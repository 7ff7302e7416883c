// Package models defines the data models used in the application.
package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FilterAll is the status filter value meaning "no status filter".
const FilterAll = "ALL"

// PolicyStatus represents the lifecycle status of a policy.
type PolicyStatus string

// Possible values for PolicyStatus
const (
	PolicyActive    PolicyStatus = "ACTIVE"
	PolicySuspended PolicyStatus = "SUSPENDED"
	PolicyCancelled PolicyStatus = "CANCELLED"
	PolicyExpired   PolicyStatus = "EXPIRED"
)

// PolicyStatuses lists every policy status in display order.
var PolicyStatuses = []PolicyStatus{PolicyActive, PolicySuspended, PolicyCancelled, PolicyExpired}

// Valid reports whether s is a known policy status.
func (s PolicyStatus) Valid() bool {
	for _, v := range PolicyStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// ClaimStatus represents the lifecycle status of an insurance claim.
type ClaimStatus string

// Possible values for ClaimStatus
const (
	ClaimDraft     ClaimStatus = "DRAFT"
	ClaimSubmitted ClaimStatus = "SUBMITTED"
	ClaimApproved  ClaimStatus = "APPROVED"
	ClaimDenied    ClaimStatus = "DENIED"
)

// ClaimStatuses lists every claim status in display order.
var ClaimStatuses = []ClaimStatus{ClaimDraft, ClaimSubmitted, ClaimApproved, ClaimDenied}

// Valid reports whether s is a known claim status.
func (s ClaimStatus) Valid() bool {
	for _, v := range ClaimStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s ClaimStatus) Terminal() bool { return s == ClaimApproved || s == ClaimDenied }

// ParsePolicyStatus parses a status filter. Empty and "ALL" yield "" (no filter).
func ParsePolicyStatus(raw string) (PolicyStatus, bool) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" || raw == FilterAll {
		return "", true
	}
	s := PolicyStatus(raw)
	return s, s.Valid()
}

// ParseClaimStatus parses a status filter. Empty and "ALL" yield "" (no filter).
func ParseClaimStatus(raw string) (ClaimStatus, bool) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if raw == "" || raw == FilterAll {
		return "", true
	}
	s := ClaimStatus(raw)
	return s, s.Valid()
}

// Role is the role carried by an authenticated session.
type Role string

// Possible values for Role. RoleSystem is never issued in tokens; it is
// used by scheduled jobs such as the expiry sweep.
const (
	RoleUser   Role = "USER"
	RoleAdmin  Role = "ADMIN"
	RoleSystem Role = "SYSTEM"
)

// Valid reports whether r can be carried by a user token.
func (r Role) Valid() bool { return r == RoleUser || r == RoleAdmin }

// Session identifies the actor behind a request.
type Session struct {
	Username  string    `json:"sub"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// IsAdmin reports whether the session carries the administrative role.
func (s Session) IsAdmin() bool { return s.Role == RoleAdmin || s.Role == RoleSystem }

// Owns reports whether the session belongs to the given owner id.
func (s Session) Owns(userID string) bool { return userID != "" && s.UserID == userID }

// Policy is an insurance coverage agreement.
type Policy struct {
	PolicyID        string          `json:"policyId"`
	UserID          string          `json:"userId"`
	QuoteID         string          `json:"quoteId,omitempty"`
	Status          PolicyStatus    `json:"status"`
	CoverageAmount  decimal.Decimal `json:"coverageAmount"`
	Premium         decimal.Decimal `json:"premium"`
	TermMonths      int             `json:"termMonths"`
	SuspendedReason string          `json:"suspendedReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	// Version increases by one on every stored update.
	Version int `json:"version"`
}

// ExpiresAt is the end of the policy term.
func (p Policy) ExpiresAt() time.Time { return p.CreatedAt.AddDate(0, p.TermMonths, 0) }

// Claim is a request for payout against a policy.
type Claim struct {
	ClaimID        string           `json:"claimId"`
	PolicyID       string           `json:"policyId"`
	UserID         string           `json:"userId,omitempty"` // owner of the policy at creation
	Status         ClaimStatus      `json:"status"`
	Description    string           `json:"description"`
	PayoutAmount   *decimal.Decimal `json:"payoutAmount"`
	EvidenceCount  int              `json:"evidenceCount"`
	LastEvidenceAt *time.Time       `json:"lastEvidenceAt,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// User is a registered account.
type User struct {
	UserID       string    `json:"userId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DocumentInfo describes one evidence object stored for a claim.
type DocumentInfo struct {
	Key          string    `json:"key"`
	Filename     string    `json:"filename"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// UploadTarget is a presigned destination for an evidence upload.
type UploadTarget struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"contentType,omitempty"`
	// Headers are signed into URL and must accompany the PUT unchanged.
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresIn int               `json:"expiresIn,omitempty"`
}

// QuoteRequest is the input of the pricing collaborator.
type QuoteRequest struct {
	Age            int             `json:"age"`
	CoverageAmount decimal.Decimal `json:"coverageAmount"`
	RiskFactors    []string        `json:"riskFactors"`
}

// Quote is the pricing collaborator's answer.
type Quote struct {
	Premium  decimal.Decimal `json:"premium"`
	Currency string          `json:"currency"`
}

// Health status values reported per dependency.
const (
	HealthOK    = "ok"
	HealthError = "error"
)

// Health reports dependency status. Absent fields mean the probe is not configured.
type Health struct {
	S3       string `json:"s3,omitempty"`
	DynamoDB string `json:"dynamodb,omitempty"`
	Lambda   string `json:"lambda,omitempty"`
}
