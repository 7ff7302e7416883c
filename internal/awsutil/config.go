// Package awsutil loads AWS configuration and builds service clients.
package awsutil

import (
	"context"

	"github.com/kylejryan/insurance-ops/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Clients bundles the service clients the binaries use.
type Clients struct {
	S3       *s3.Client
	DynamoDB *dynamodb.Client
	Lambda   *lambda.Client
}

// Load loads the AWS configuration, pointing every client at cfg.Endpoint
// when it is set (e.g. LocalStack).
func Load(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	opts := []func(*awsCfg.LoadOptions) error{awsCfg.WithRegion(cfg.Region)}
	if cfg.Endpoint != "" {
		opts = append(opts, awsCfg.WithBaseEndpoint(cfg.Endpoint))
	}
	return awsCfg.LoadDefaultConfig(ctx, opts...)
}

// NewClients builds the S3, DynamoDB and Lambda clients.
func NewClients(awsConf aws.Config, cfg config.AWSConfig) Clients {
	return Clients{
		S3: s3.NewFromConfig(awsConf, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.UsePathStyle = true // localstack/dev friendliness
			}
		}),
		DynamoDB: dynamodb.NewFromConfig(awsConf),
		Lambda:   lambda.NewFromConfig(awsConf),
	}
}
