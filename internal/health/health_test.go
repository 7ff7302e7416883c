package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/stretchr/testify/assert"
)

func ok(context.Context) error { return nil }

func TestCheck(t *testing.T) {
	c := &Checker{
		S3:       ProbeFunc(ok),
		DynamoDB: ProbeFunc(func(context.Context) error { return errors.New("no table") }),
	}
	h := c.Check(context.Background())
	assert.Equal(t, models.Health{S3: models.HealthOK, DynamoDB: models.HealthError}, h)
	assert.False(t, Healthy(h))
	assert.True(t, Healthy(models.Health{S3: models.HealthOK}))
}

func TestCheckTimeout(t *testing.T) {
	c := &Checker{
		Lambda: ProbeFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
		Timeout: 20 * time.Millisecond,
	}
	start := time.Now()
	h := c.Check(context.Background())
	assert.Equal(t, models.HealthError, h.Lambda)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFailedProbeDoesNotCancelOthers(t *testing.T) {
	c := &Checker{
		S3: ProbeFunc(func(context.Context) error { return errors.New("access denied") }),
		Lambda: ProbeFunc(func(ctx context.Context) error {
			time.Sleep(20 * time.Millisecond)
			return ctx.Err()
		}),
		Timeout: time.Second,
	}
	h := c.Check(context.Background())
	assert.Equal(t, models.Health{S3: models.HealthError, Lambda: models.HealthOK}, h)
}

type stubFunctions struct{ name string }

func (s *stubFunctions) GetFunction(ctx context.Context, in *lambda.GetFunctionInput, _ ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error) {
	s.name = aws.ToString(in.FunctionName)
	return &lambda.GetFunctionOutput{}, nil
}

func TestLambdaProbe(t *testing.T) {
	api := &stubFunctions{}
	assert.NoError(t, LambdaProbe{API: api, Function: "pricing"}.Probe(context.Background()))
	assert.Equal(t, "pricing", api.name)
}
