// Package main expires ACTIVE policies whose term has ended. It runs on an
// EventBridge schedule.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/kylejryan/insurance-ops/internal/awsutil"
	"github.com/kylejryan/insurance-ops/internal/config"
	"github.com/kylejryan/insurance-ops/internal/ddb"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/logging"
	"github.com/kylejryan/insurance-ops/internal/models"
	"github.com/kylejryan/insurance-ops/internal/s3io"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
)

// systemActor is the identity scheduled expiry runs as.
var systemActor = models.Session{Username: "expirer", Role: models.RoleSystem}

type expirer interface {
	ExpireDue(ctx context.Context, actor models.Session, now time.Time) (int, error)
}

// Result is returned to the scheduler and shows up in the invocation log.
type Result struct {
	Expired int       `json:"expired"`
	AsOf    time.Time `json:"asOf"`
}

// App holds the collaborators the handler needs.
type App struct {
	policies expirer
	logger   *slog.Logger
	now      func() time.Time
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
	mgr := lifecycle.New(
		ddb.New(clients.DynamoDB, env.AWS.Table),
		s3io.NewDocuments(clients.S3, env.AWS.Bucket, env.AWS.PresignTTL()),
		lifecycle.WithLogger(logger),
	)

	app := &App{policies: mgr, logger: logger, now: time.Now}
	lambda.Start(app.handler)
}

// handler expires every policy due at the scheduled time of ev.
func (a *App) handler(ctx context.Context, ev events.CloudWatchEvent) (Result, error) {
	asOf := ev.Time
	if asOf.IsZero() {
		asOf = a.now()
	}
	asOf = asOf.UTC()

	n, err := a.policies.ExpireDue(ctx, systemActor, asOf)
	if err != nil {
		a.logger.Error("expiry run failed", "as_of", asOf, "expired", n, "error", err)
		return Result{Expired: n, AsOf: asOf}, err
	}
	a.logger.Info("expiry run complete", "as_of", asOf, "expired", n)
	return Result{Expired: n, AsOf: asOf}, nil
}
