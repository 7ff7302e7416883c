package ddb

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// filter accumulates equality conditions for a Query or Scan.
type filter struct {
	exprs  []string
	names  map[string]string
	values map[string]types.AttributeValue
}

func newFilter() *filter {
	return &filter{names: map[string]string{}, values: map[string]types.AttributeValue{}}
}

// eq adds attr = val. Empty values do not filter.
func (f *filter) eq(attr, val string) *filter {
	if val == "" {
		return f
	}
	f.names["#"+attr] = attr
	f.values[":"+attr] = str(val)
	f.exprs = append(f.exprs, "#"+attr+" = :"+attr)
	return f
}

func (f *filter) expression() *string {
	if len(f.exprs) == 0 {
		return nil
	}
	return aws.String(strings.Join(f.exprs, " AND "))
}

func (f *filter) attrNames() map[string]string {
	if len(f.names) == 0 {
		return nil
	}
	return f.names
}

// queryIndex returns the GSI1 partition pk, items whose sort key starts with
// prefix, newest first.
func (r *Repo) queryIndex(ctx context.Context, pk, prefix string, f *filter) ([]map[string]types.AttributeValue, error) {
	values := map[string]types.AttributeValue{":gpk": str(pk), ":gsk": str(prefix)}
	for k, v := range f.values {
		values[k] = v
	}
	pages := dynamodb.NewQueryPaginator(r.DB, &dynamodb.QueryInput{
		TableName:                 aws.String(r.Table),
		IndexName:                 aws.String(gsi1),
		KeyConditionExpression:    aws.String("GSI1PK = :gpk AND begins_with(GSI1SK, :gsk)"),
		FilterExpression:          f.expression(),
		ExpressionAttributeNames:  f.attrNames(),
		ExpressionAttributeValues: values,
		ScanIndexForward:          aws.Bool(false),
	})
	var out []map[string]types.AttributeValue
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
	}
	return out, nil
}

// scan returns every item passing f.
func (r *Repo) scan(ctx context.Context, f *filter) ([]map[string]types.AttributeValue, error) {
	pages := dynamodb.NewScanPaginator(r.DB, &dynamodb.ScanInput{
		TableName:                 aws.String(r.Table),
		FilterExpression:          f.expression(),
		ExpressionAttributeNames:  f.attrNames(),
		ExpressionAttributeValues: f.values,
	})
	var out []map[string]types.AttributeValue
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
	}
	return out, nil
}
