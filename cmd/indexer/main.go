// Package main records claim evidence after an S3 PUT lands under claims/.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"time"

	"github.com/kylejryan/insurance-ops/internal/awsutil"
	"github.com/kylejryan/insurance-ops/internal/config"
	"github.com/kylejryan/insurance-ops/internal/ddb"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/logging"
	"github.com/kylejryan/insurance-ops/internal/s3io"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

type objectHeader interface {
	Head(ctx context.Context, key string) (*s3io.ObjectMetadata, error)
}

type evidenceRecorder interface {
	RecordEvidence(ctx context.Context, key string, at time.Time) (string, error)
}

// App holds the collaborators the handler needs.
type App struct {
	objects  objectHeader
	evidence evidenceRecorder
	logger   *slog.Logger
}

func main() {
	env := config.MustLoad()
	logger := logging.New(env.Logging)
	if err := env.ValidateWorker(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	awsConf, err := awsutil.Load(context.Background(), env.AWS)
	if err != nil {
		logger.Error("loading aws config", "error", err)
		os.Exit(1)
	}
	clients := awsutil.NewClients(awsConf, env.AWS)
	docs := s3io.NewDocuments(clients.S3, env.AWS.Bucket, env.AWS.PresignTTL())
	mgr := lifecycle.New(ddb.New(clients.DynamoDB, env.AWS.Table), docs, lifecycle.WithLogger(logger))

	app := &App{objects: docs, evidence: mgr, logger: logger}
	lambda.Start(app.handler)
}

// handler processes S3 event records. A bad record is logged and skipped so
// one stray object cannot block the batch.
func (a *App) handler(ctx context.Context, ev events.S3Event) (any, error) {
	for _, rec := range ev.Records {
		if err := a.processS3Record(ctx, rec); err != nil {
			a.logger.Error("indexer: process error", "key", rec.S3.Object.Key, "error", err)
		}
	}
	return nil, nil
}

func (a *App) processS3Record(ctx context.Context, record events.S3EventRecord) error {
	key, err := url.QueryUnescape(record.S3.Object.Key)
	if err != nil {
		return fmt.Errorf("unescape key: %w", err)
	}

	meta, err := a.objects.Head(ctx, key)
	if err != nil {
		return fmt.Errorf("head %s: %w", key, err)
	}
	at := meta.LastModified
	if at.IsZero() {
		at = record.EventTime
	}

	claimID, err := a.evidence.RecordEvidence(ctx, key, at.UTC())
	if err != nil {
		return fmt.Errorf("record %s: %w", key, err)
	}
	a.logger.Info("evidence recorded",
		"claim_id", claimID,
		"key", key,
		"size", meta.Size,
		"etag", meta.ETag,
		"content_type", meta.ContentType,
	)
	return nil
}
