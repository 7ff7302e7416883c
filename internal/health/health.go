// Package health reports the reachability of the service's AWS dependencies.
package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"golang.org/x/sync/errgroup"
)

// Prober checks one dependency.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a function to Prober.
type ProbeFunc func(ctx context.Context) error

// Probe calls f.
func (f ProbeFunc) Probe(ctx context.Context) error { return f(ctx) }

// Checker runs the configured probes concurrently. A nil probe is not
// configured and is omitted from the report.
type Checker struct {
	S3       Prober
	DynamoDB Prober
	Lambda   Prober
	Timeout  time.Duration
	Logger   *slog.Logger
}

// Check probes every configured dependency.
func (c *Checker) Check(ctx context.Context) models.Health {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// A plain Group: a failed probe is recorded, it must not cancel the others.
	var (
		out models.Health
		g   errgroup.Group
	)
	run := func(name string, p Prober, dst *string) {
		if p == nil {
			return
		}
		g.Go(func() error {
			*dst = models.HealthOK
			if err := p.Probe(ctx); err != nil {
				*dst = models.HealthError
				if c.Logger != nil {
					c.Logger.Warn("health probe failed", "dependency", name, "error", err)
				}
			}
			return nil
		})
	}
	run("s3", c.S3, &out.S3)
	run("dynamodb", c.DynamoDB, &out.DynamoDB)
	run("lambda", c.Lambda, &out.Lambda)
	_ = g.Wait()
	return out
}

// Healthy reports whether every reported dependency is ok.
func Healthy(h models.Health) bool {
	for _, s := range []string{h.S3, h.DynamoDB, h.Lambda} {
		if s == models.HealthError {
			return false
		}
	}
	return true
}

// FunctionAPI is the subset of the Lambda client the probe uses.
type FunctionAPI interface {
	GetFunction(ctx context.Context, params *lambda.GetFunctionInput, optFns ...func(*lambda.Options)) (*lambda.GetFunctionOutput, error)
}

// LambdaProbe checks that the pricing function exists.
type LambdaProbe struct {
	API      FunctionAPI
	Function string
}

// Probe implements Prober.
func (p LambdaProbe) Probe(ctx context.Context) error {
	_, err := p.API.GetFunction(ctx, &lambda.GetFunctionInput{FunctionName: aws.String(p.Function)})
	return err
}
