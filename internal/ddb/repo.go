// Package ddb stores users, policies and claims in a single DynamoDB table.
package ddb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apperr"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// GSI1 indexes policies by owner and claims by policy.
const gsi1 = "GSI1"

// sortTime keeps sort keys lexically ordered by time.
const sortTime = "2006-01-02T15:04:05.000000000Z"

// API is the subset of the DynamoDB client the repo uses.
type API interface {
	dynamodb.QueryAPIClient
	dynamodb.ScanAPIClient
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Repo wraps a DynamoDB client and table name.
type Repo struct {
	DB    API
	Table string
}

// New returns a repo over table.
func New(db API, table string) *Repo {
	return &Repo{DB: db, Table: table}
}

// Probe checks that the table is reachable.
func (r *Repo) Probe(ctx context.Context) error {
	_, err := r.DB.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(r.Table)})
	return err
}

// UserKeys is the primary key of a user profile.
func UserKeys(username string) (pk, sk string) {
	return "USER#" + username, "PROFILE"
}

// PolicyKeys is the primary key of a policy.
func PolicyKeys(policyID string) (pk, sk string) {
	return "POLICY#" + policyID, "META"
}

// ClaimKeys is the primary key of a claim.
func ClaimKeys(claimID string) (pk, sk string) {
	return "CLAIM#" + claimID, "META"
}

// OwnerPartition is the GSI1 partition holding a user's policies.
func OwnerPartition(userID string) string { return "OWNER#" + userID }

// PolicyClaimsPartition is the GSI1 partition holding a policy's claims.
func PolicyClaimsPartition(policyID string) string { return "POLICYCLAIMS#" + policyID }

// OwnerIndexKeys places a policy in its owner's GSI1 partition.
func OwnerIndexKeys(userID string, createdAt time.Time) (pk, sk string) {
	return OwnerPartition(userID), "POLICY#" + createdAt.UTC().Format(sortTime)
}

// PolicyClaimsIndexKeys places a claim in its policy's GSI1 partition.
func PolicyClaimsIndexKeys(policyID string, createdAt time.Time) (pk, sk string) {
	return PolicyClaimsPartition(policyID), "CLAIM#" + createdAt.UTC().Format(sortTime)
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func str(s string) types.AttributeValue { return &types.AttributeValueMemberS{Value: s} }

// putNew inserts item, failing with a Conflict when the key is taken.
func (r *Repo) putNew(ctx context.Context, op, what string, item map[string]types.AttributeValue) error {
	_, err := r.DB.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.Table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return apperr.New(apperr.KindConflict, op, what+" already exists")
	}
	if err != nil {
		return fmt.Errorf("%s: put item: %w", op, err)
	}
	return nil
}

// get loads the item at k, or nil when absent.
func (r *Repo) get(ctx context.Context, k map[string]types.AttributeValue) (map[string]types.AttributeValue, error) {
	out, err := r.DB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.Table),
		Key:            k,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return out.Item, nil
}

// casFailure classifies a failed conditional update: a missing item is
// NotFound, anything else lost the status race.
func casFailure(op, what string, err error) error {
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return fmt.Errorf("%s: update item: %w", op, err)
	}
	if len(ccf.Item) == 0 {
		return apperr.New(apperr.KindNotFound, op, what+" not found")
	}
	return apperr.New(apperr.KindConflict, op, what+" changed concurrently")
}
