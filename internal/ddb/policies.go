package ddb

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// CreatePolicy inserts p, ensuring no policy with the same id exists.
func (r *Repo) CreatePolicy(ctx context.Context, p models.Policy) error {
	item, err := attributevalue.MarshalMap(toPolicyItem(p))
	if err != nil {
		return err
	}
	return r.putNew(ctx, "policy.create", "policy", item)
}

// GetPolicy loads a policy by id.
func (r *Repo) GetPolicy(ctx context.Context, policyID string) (models.Policy, error) {
	item, err := r.get(ctx, key(PolicyKeys(policyID)))
	if err != nil {
		return models.Policy{}, fmt.Errorf("policy.get: %w", err)
	}
	if item == nil {
		return models.Policy{}, apperr.New(apperr.KindNotFound, "policy.get", "policy not found")
	}
	return decodePolicy(item)
}

// ListPolicies queries the owner index when the filter names a user and
// scans otherwise. Results are newest first.
func (r *Repo) ListPolicies(ctx context.Context, f lifecycle.PolicyFilter) ([]models.Policy, error) {
	var (
		items []map[string]types.AttributeValue
		err   error
	)
	if f.UserID != "" {
		items, err = r.queryIndex(ctx, OwnerPartition(f.UserID), "POLICY#", newFilter().eq("status", string(f.Status)))
	} else {
		items, err = r.scan(ctx, newFilter().eq("type", "policy").eq("status", string(f.Status)))
	}
	if err != nil {
		return nil, fmt.Errorf("policy.list: %w", err)
	}
	out := make([]models.Policy, 0, len(items))
	for _, item := range items {
		p, err := decodePolicy(item)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b models.Policy) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.PolicyID, a.PolicyID)
	})
	return out, nil
}

// UpdatePolicy writes the mutable policy fields if the stored status is
// still expected and the stored version is p.Version-1. Items written before
// versioning carry no version attribute and count as version 0.
func (r *Repo) UpdatePolicy(ctx context.Context, p models.Policy, expected models.PolicyStatus) error {
	values, err := marshalValues(map[string]any{
		":to":      string(p.Status),
		":from":    string(expected),
		":term":    p.TermMonths,
		":updated": p.UpdatedAt,
		":version": p.Version,
	})
	if err != nil {
		return err
	}
	cond := "attribute_exists(PK) AND #status = :from AND "
	if prev := p.Version - 1; prev > 0 {
		cond += "#version = :prev"
		values[":prev"] = &types.AttributeValueMemberN{Value: strconv.Itoa(prev)}
	} else {
		cond += "attribute_not_exists(#version)"
	}
	update := "SET #status = :to, term_months = :term, updated_at = :updated, #version = :version"
	if p.SuspendedReason != "" {
		update += ", suspended_reason = :reason"
		values[":reason"] = str(p.SuspendedReason)
	} else {
		update += " REMOVE suspended_reason"
	}
	_, err = r.DB.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(r.Table),
		Key:                                 key(PolicyKeys(p.PolicyID)),
		UpdateExpression:                    aws.String(update),
		ConditionExpression:                 aws.String(cond),
		ExpressionAttributeNames:            map[string]string{"#status": "status", "#version": "version"},
		ExpressionAttributeValues:           values,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return casFailure("policy.update", "policy", err)
	}
	return nil
}

func decodePolicy(item map[string]types.AttributeValue) (models.Policy, error) {
	var it policyItem
	if err := attributevalue.UnmarshalMap(item, &it); err != nil {
		return models.Policy{}, fmt.Errorf("decode policy: %w", err)
	}
	return it.model()
}

func marshalValues(in map[string]any) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(in))
	for k, v := range in {
		av, err := attributevalue.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}
