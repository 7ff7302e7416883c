package ddb

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var _ lifecycle.Store = (*Repo)(nil)

// CreateClaim inserts c, ensuring no claim with the same id exists.
func (r *Repo) CreateClaim(ctx context.Context, c models.Claim) error {
	item, err := attributevalue.MarshalMap(toClaimItem(c))
	if err != nil {
		return err
	}
	return r.putNew(ctx, "claim.create", "claim", item)
}

// GetClaim loads a claim by id.
func (r *Repo) GetClaim(ctx context.Context, claimID string) (models.Claim, error) {
	item, err := r.get(ctx, key(ClaimKeys(claimID)))
	if err != nil {
		return models.Claim{}, fmt.Errorf("claim.get: %w", err)
	}
	if item == nil {
		return models.Claim{}, apperr.New(apperr.KindNotFound, "claim.get", "claim not found")
	}
	return decodeClaim(item)
}

// ListClaims queries the policy index when the filter names a policy and
// scans otherwise. Results are newest first.
func (r *Repo) ListClaims(ctx context.Context, f lifecycle.ClaimFilter) ([]models.Claim, error) {
	var (
		items []map[string]types.AttributeValue
		err   error
	)
	if f.PolicyID != "" {
		items, err = r.queryIndex(ctx, PolicyClaimsPartition(f.PolicyID), "CLAIM#",
			newFilter().eq("user_id", f.UserID).eq("status", string(f.Status)))
	} else {
		items, err = r.scan(ctx,
			newFilter().eq("type", "claim").eq("user_id", f.UserID).eq("status", string(f.Status)))
	}
	if err != nil {
		return nil, fmt.Errorf("claim.list: %w", err)
	}
	out := make([]models.Claim, 0, len(items))
	for _, item := range items {
		c, err := decodeClaim(item)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b models.Claim) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ClaimID, a.ClaimID)
	})
	return out, nil
}

// UpdateClaim writes status, payout and updated_at if the stored status is
// still expected. Evidence stamps are left alone.
func (r *Repo) UpdateClaim(ctx context.Context, c models.Claim, expected models.ClaimStatus) error {
	values, err := marshalValues(map[string]any{
		":to":      string(c.Status),
		":from":    string(expected),
		":updated": c.UpdatedAt,
	})
	if err != nil {
		return err
	}
	update := "SET #status = :to, updated_at = :updated"
	if c.PayoutAmount != nil {
		update += ", payout_amount = :payout"
		values[":payout"] = str(c.PayoutAmount.String())
	} else {
		update += " REMOVE payout_amount"
	}
	_, err = r.DB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.Table),
		Key:                                 key(ClaimKeys(c.ClaimID)),
		UpdateExpression:                    aws.String(update),
		ConditionExpression:                 aws.String("attribute_exists(PK) AND #status = :from"),
		ExpressionAttributeNames:            map[string]string{"#status": "status"},
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return casFailure("claim.update", "claim", err)
	}
	return nil
}

// RecordEvidence atomically bumps the claim's evidence counter.
func (r *Repo) RecordEvidence(ctx context.Context, claimID string, at time.Time) error {
	values, err := marshalValues(map[string]any{":one": 1, ":at": at})
	if err != nil {
		return err
	}
	_, err = r.DB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.Table),
		Key:                       key(ClaimKeys(claimID)),
		UpdateExpression:          aws.String("ADD evidence_count :one SET last_evidence_at = :at"),
		ConditionExpression:       aws.String("attribute_exists(PK)"),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return casFailure("claim.evidence", "claim", err)
	}
	return nil
}

func decodeClaim(item map[string]types.AttributeValue) (models.Claim, error) {
	var it claimItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return models.Claim{}, fmt.Errorf("decode claim: %w", err)
	}
	return it.model()
}
