// Package main runs the policy and claim operations API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kylejryan/insurance-ops/internal/auth"
	"github.com/kylejryan/insurance-ops/internal/authz"
	"github.com/kylejryan/insurance-ops/internal/awsutil"
	"github.com/kylejryan/insurance-ops/internal/config"
	"github.com/kylejryan/insurance-ops/internal/ddb"
	"github.com/kylejryan/insurance-ops/internal/health"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/logging"
	"github.com/kylejryan/insurance-ops/internal/metrics"
	"github.com/kylejryan/insurance-ops/internal/quote"
	"github.com/kylejryan/insurance-ops/internal/s3io"
	"github.com/kylejryan/insurance-ops/internal/server"
	"github.com/kylejryan/insurance-ops/internal/store/memory"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// backend is everything the lifecycle manager and the account service sit on.
type backend struct {
	store    lifecycle.Store
	users    auth.UserStore
	docs     lifecycle.Documents
	checker  *health.Checker
	pricing  quote.Calculator
	basePath string
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Logging)
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.Auth.DevBypassAuth {
		logger.Warn("DEV_BYPASS_AUTH is enabled; identity headers are trusted")
	}

	be, err := buildBackend(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to build backend", "error", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, "insurance_ops")

	renewFrom, _ := cfg.Lifecycle.RenewFrom()
	mgr := lifecycle.New(be.store, be.docs,
		lifecycle.WithTable(lifecycle.DefaultTable(renewFrom)),
		lifecycle.WithLogger(logger),
		lifecycle.WithObserver(m),
		lifecycle.WithListener(func(a lifecycle.Action, scopes []lifecycle.Scope) {
			logger.Debug("scopes invalidated", "action", a, "scopes", scopes)
		}),
	)
	var storage http.Handler
	if mem, ok := be.docs.(*memory.Documents); ok {
		storage = mem.UploadHandler(be.basePath, time.Now, func(key string, size int64, at time.Time) {
			if _, err := mgr.RecordEvidence(context.Background(), key, at); err != nil {
				logger.Warn("recording evidence failed", "key", key, "error", err)
			}
		})
	}

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	deps := server.Dependencies{
		Manager:        mgr,
		Accounts:       auth.NewService(be.users, issuer),
		Auth:           authz.New(issuer, cfg.Auth.DevBypassAuth),
		Health:         be.checker,
		Quote:          be.pricing,
		Metrics:        m,
		Storage:        storage,
		StoragePath:    be.basePath,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	}
	if cfg.HTTP.MetricsEnabled {
		deps.Gatherer = reg
	}

	srv := server.New(logger, cfg.HTTP, server.NewRouter(logger, deps))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildBackend(ctx context.Context, logger *slog.Logger, cfg config.Env) (backend, error) {
	if cfg.Store == "memory" {
		logger.Info("using in-memory store", "documents_base_url", cfg.HTTP.DocumentsBaseURL)
		u, err := url.Parse(cfg.HTTP.DocumentsBaseURL)
		if err != nil {
			return backend{}, fmt.Errorf("DOCUMENTS_BASE_URL: %w", err)
		}
		store := memory.NewStore()
		return backend{
			store:    store,
			users:    store,
			docs:     memory.NewDocuments(cfg.HTTP.DocumentsBaseURL),
			checker:  &health.Checker{DynamoDB: store, Logger: logger},
			basePath: u.Path,
		}, nil
	}

	awsConf, err := awsutil.Load(ctx, cfg.AWS)
	if err != nil {
		return backend{}, err
	}
	clients := awsutil.NewClients(awsConf, cfg.AWS)
	repo := ddb.New(clients.DynamoDB, cfg.AWS.Table)
	docs := s3io.NewDocuments(clients.S3, cfg.AWS.Bucket, cfg.AWS.PresignTTL())

	be := backend{
		store:   repo,
		users:   repo,
		docs:    docs,
		checker: &health.Checker{S3: docs, DynamoDB: repo, Logger: logger},
	}
	if fn := cfg.AWS.PricingFunction; fn != "" {
		be.checker.Lambda = health.LambdaProbe{API: clients.Lambda, Function: fn}
		be.pricing = quote.Function{API: clients.Lambda, Name: fn}
	}
	return be, nil
}
