package lifecycle

import (
	"context"
	"time"

	"github.com/kylejryan/insurance-ops/internal/models"
)

// PolicyFilter narrows a policy listing. Zero fields do not filter.
type PolicyFilter struct {
	UserID string
	Status models.PolicyStatus
}

// Match reports whether p passes the filter.
func (f PolicyFilter) Match(p models.Policy) bool {
	return (f.UserID == "" || p.UserID == f.UserID) && (f.Status == "" || p.Status == f.Status)
}

// ClaimFilter narrows a claim listing. Zero fields do not filter.
type ClaimFilter struct {
	PolicyID string
	UserID   string
	Status   models.ClaimStatus
}

// Match reports whether c passes the filter.
func (f ClaimFilter) Match(c models.Claim) bool {
	return (f.PolicyID == "" || c.PolicyID == f.PolicyID) &&
		(f.UserID == "" || c.UserID == f.UserID) &&
		(f.Status == "" || c.Status == f.Status)
}

// Store persists policies and claims. Update methods are compare-and-set on
// status: they fail with an apperr Conflict when the stored status differs
// from expected, which is how at-most-one concurrent transition is enforced.
// UpdatePolicy additionally requires p.Version to be exactly one past the
// stored version, so two writers that read the same policy cannot both win
// even when the status does not change.
// Get methods fail with an apperr NotFound for unknown ids.
type Store interface {
	CreatePolicy(ctx context.Context, p models.Policy) error
	GetPolicy(ctx context.Context, policyID string) (models.Policy, error)
	ListPolicies(ctx context.Context, f PolicyFilter) ([]models.Policy, error)
	UpdatePolicy(ctx context.Context, p models.Policy, expected models.PolicyStatus) error

	CreateClaim(ctx context.Context, c models.Claim) error
	GetClaim(ctx context.Context, claimID string) (models.Claim, error)
	ListClaims(ctx context.Context, f ClaimFilter) ([]models.Claim, error)
	UpdateClaim(ctx context.Context, c models.Claim, expected models.ClaimStatus) error
	RecordEvidence(ctx context.Context, claimID string, at time.Time) error
}

// Documents is the evidence storage collaborator. It never proxies bytes:
// uploads and downloads go directly to presigned targets.
type Documents interface {
	PresignUpload(ctx context.Context, claimID, filename, contentType string) (models.UploadTarget, error)
	List(ctx context.Context, claimID string) ([]models.DocumentInfo, error)
	PresignDownload(ctx context.Context, key string) (string, error)
	// ClaimID extracts the owning claim from an object key.
	ClaimID(key string) (string, bool)
}
