package ddb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDB records requests and answers with canned results.
type fakeDB struct {
	puts    []*dynamodb.PutItemInput
	updates []*dynamodb.UpdateItemInput
	queries []*dynamodb.QueryInput
	scans   []*dynamodb.ScanInput

	item    map[string]types.AttributeValue
	items   []map[string]types.AttributeValue
	err     error
	descErr error
}

func (f *fakeDB) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.puts = append(f.puts, in)
	return &dynamodb.PutItemOutput{}, f.err
}

func (f *fakeDB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.item}, f.err
}

func (f *fakeDB) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.updates = append(f.updates, in)
	return &dynamodb.UpdateItemOutput{}, f.err
}

func (f *fakeDB) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queries = append(f.queries, in)
	return &dynamodb.QueryOutput{Items: f.items}, f.err
}

func (f *fakeDB) Scan(ctx context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.scans = append(f.scans, in)
	return &dynamodb.ScanOutput{Items: f.items}, f.err
}

func (f *fakeDB) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, f.descErr
}

var created = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func samplePolicy(id string, at time.Time) models.Policy {
	return models.Policy{
		PolicyID:       id,
		UserID:         "u1",
		Status:         models.PolicyActive,
		CoverageAmount: decimal.RequireFromString("50000"),
		Premium:        decimal.RequireFromString("812.40"),
		TermMonths:     12,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func mustItem(t *testing.T, v any) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(v)
	require.NoError(t, err)
	return item
}

func TestKeys(t *testing.T) {
	pk, sk := UserKeys("ana@example.com")
	assert.Equal(t, "USER#ana@example.com", pk)
	assert.Equal(t, "PROFILE", sk)

	pk, sk = PolicyKeys("p1")
	assert.Equal(t, "POLICY#p1", pk)
	assert.Equal(t, "META", sk)

	pk, sk = OwnerIndexKeys("u1", created)
	assert.Equal(t, "OWNER#u1", pk)
	assert.Equal(t, "POLICY#2026-03-01T09:30:00.000000000Z", sk)

	pk, sk = PolicyClaimsIndexKeys("p1", created)
	assert.Equal(t, "POLICYCLAIMS#p1", pk)
	assert.Equal(t, "CLAIM#2026-03-01T09:30:00.000000000Z", sk)
}

func TestItemConversion(t *testing.T) {
	p := samplePolicy("p1", created)
	p.Status, p.SuspendedReason = models.PolicySuspended, "fraud review"
	got, err := toPolicyItem(p).model()
	require.NoError(t, err)
	assert.True(t, p.CoverageAmount.Equal(got.CoverageAmount))
	assert.True(t, p.Premium.Equal(got.Premium))
	assert.Equal(t, "fraud review", got.SuspendedReason)

	payout := decimal.RequireFromString("1200.50")
	c := models.Claim{ClaimID: "c1", PolicyID: "p1", UserID: "u1", Status: models.ClaimApproved, PayoutAmount: &payout, CreatedAt: created}
	ci := toClaimItem(c)
	require.NotNil(t, ci.PayoutAmount)
	assert.Equal(t, "1200.5", *ci.PayoutAmount)
	back, err := ci.model()
	require.NoError(t, err)
	require.NotNil(t, back.PayoutAmount)
	assert.True(t, payout.Equal(*back.PayoutAmount))

	c.PayoutAmount = nil
	back, err = toClaimItem(c).model()
	require.NoError(t, err)
	assert.Nil(t, back.PayoutAmount)
}

func TestCreatePolicyConditional(t *testing.T) {
	db := &fakeDB{}
	r := New(db, "ops")
	require.NoError(t, r.CreatePolicy(context.Background(), samplePolicy("p1", created)))
	require.Len(t, db.puts, 1)
	assert.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", aws.ToString(db.puts[0].ConditionExpression))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "OWNER#u1"}, db.puts[0].Item["GSI1PK"])

	db.err = &types.ConditionalCheckFailedException{}
	err := r.CreatePolicy(context.Background(), samplePolicy("p1", created))
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestGetPolicy(t *testing.T) {
	db := &fakeDB{}
	r := New(db, "ops")
	_, err := r.GetPolicy(context.Background(), "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	db.item = mustItem(t, toPolicyItem(samplePolicy("p1", created)))
	p, err := r.GetPolicy(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", p.PolicyID)
	assert.True(t, created.Equal(p.CreatedAt))
}

func TestUpdatePolicyCAS(t *testing.T) {
	db := &fakeDB{}
	r := New(db, "ops")
	p := samplePolicy("p1", created)
	p.Status, p.SuspendedReason = models.PolicySuspended, "fraud review"
	p.Version = 3

	require.NoError(t, r.UpdatePolicy(context.Background(), p, models.PolicyActive))
	in := db.updates[0]
	assert.Equal(t, "attribute_exists(PK) AND #status = :from AND #version = :prev", aws.ToString(in.ConditionExpression))
	assert.Contains(t, aws.ToString(in.UpdateExpression), "suspended_reason = :reason")
	assert.Contains(t, aws.ToString(in.UpdateExpression), "#version = :version")
	assert.Equal(t, &types.AttributeValueMemberS{Value: "ACTIVE"}, in.ExpressionAttributeValues[":from"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "2"}, in.ExpressionAttributeValues[":prev"])
	assert.Equal(t, &types.AttributeValueMemberN{Value: "3"}, in.ExpressionAttributeValues[":version"])
	assert.Equal(t, "version", in.ExpressionAttributeNames["#version"])

	p.Status, p.SuspendedReason = models.PolicyActive, ""
	require.NoError(t, r.UpdatePolicy(context.Background(), p, models.PolicySuspended))
	assert.Contains(t, aws.ToString(db.updates[1].UpdateExpression), "REMOVE suspended_reason")

	db.err = &types.ConditionalCheckFailedException{Item: mustItem(t, toPolicyItem(p))}
	assert.ErrorIs(t, r.UpdatePolicy(context.Background(), p, models.PolicyActive), apperr.ErrConflict)

	db.err = &types.ConditionalCheckFailedException{}
	assert.ErrorIs(t, r.UpdatePolicy(context.Background(), p, models.PolicyActive), apperr.ErrNotFound)

	db.err = errors.New("throttled")
	err := r.UpdatePolicy(context.Background(), p, models.PolicyActive)
	assert.Error(t, err)
	assert.Equal(t, apperr.KindUnknown, apperr.KindOf(err))
}

func TestUpdatePolicyFirstWriteOfUnversionedItem(t *testing.T) {
	db := &fakeDB{}
	r := New(db, "ops")
	p := samplePolicy("p1", created)
	p.TermMonths, p.Version = 18, 1

	require.NoError(t, r.UpdatePolicy(context.Background(), p, models.PolicyActive))
	in := db.updates[0]
	assert.Equal(t, "attribute_exists(PK) AND #status = :from AND attribute_not_exists(#version)", aws.ToString(in.ConditionExpression))
	assert.NotContains(t, in.ExpressionAttributeValues, ":prev")

	item := mustItem(t, toPolicyItem(samplePolicy("p2", created)))
	assert.NotContains(t, item, "version")
}

func TestListPoliciesRouting(t *testing.T) {
	older, newer := samplePolicy("p1", created), samplePolicy("p2", created.Add(time.Hour))
	db := &fakeDB{items: []map[string]types.AttributeValue{
		mustItem(t, toPolicyItem(older)), mustItem(t, toPolicyItem(newer)),
	}}
	r := New(db, "ops")

	got, err := r.ListPolicies(context.Background(), lifecycle.PolicyFilter{UserID: "u1", Status: models.PolicyActive})
	require.NoError(t, err)
	require.Len(t, db.queries, 1)
	assert.Equal(t, "GSI1", aws.ToString(db.queries[0].IndexName))
	assert.Equal(t, "#status = :status", aws.ToString(db.queries[0].FilterExpression))
	assert.Equal(t, []string{"p2", "p1"}, []string{got[0].PolicyID, got[1].PolicyID})

	_, err = r.ListPolicies(context.Background(), lifecycle.PolicyFilter{})
	require.NoError(t, err)
	require.Len(t, db.scans, 1)
	assert.Equal(t, "#type = :type", aws.ToString(db.scans[0].FilterExpression))
}

func TestClaimsAndEvidence(t *testing.T) {
	db := &fakeDB{}
	r := New(db, "ops")

	_, err := r.ListClaims(context.Background(), lifecycle.ClaimFilter{PolicyID: "p1", UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, &types.AttributeValueMemberS{Value: "POLICYCLAIMS#p1"}, db.queries[0].ExpressionAttributeValues[":gpk"])
	assert.Equal(t, "#user_id = :user_id", aws.ToString(db.queries[0].FilterExpression))

	require.NoError(t, r.RecordEvidence(context.Background(), "c1", created))
	assert.Equal(t, "ADD evidence_count :one SET last_evidence_at = :at", aws.ToString(db.updates[0].UpdateExpression))

	db.err = &types.ConditionalCheckFailedException{}
	assert.ErrorIs(t, r.RecordEvidence(context.Background(), "nope", created), apperr.ErrNotFound)
}

func TestUsers(t *testing.T) {
	db := &fakeDB{}
	r := New(db, "ops")
	u := models.User{UserID: "u1", Username: "ana@example.com", Email: "ana@example.com", Role: models.RoleUser, PasswordHash: "h"}
	require.NoError(t, r.CreateUser(context.Background(), u))
	assert.Equal(t, &types.AttributeValueMemberS{Value: "USER#ana@example.com"}, db.puts[0].Item["PK"])

	db.item = db.puts[0].Item
	got, err := r.GetUser(context.Background(), "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, "h", got.PasswordHash)
}

func TestProbe(t *testing.T) {
	db := &fakeDB{}
	assert.NoError(t, New(db, "ops").Probe(context.Background()))
	db.descErr = errors.New("no table")
	assert.Error(t, New(db, "ops").Probe(context.Background()))
}
