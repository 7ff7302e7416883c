package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"
	"github.com/kylejryan/insurance-ops/internal/store/memory"

	"github.com/aws/aws-lambda-go/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExpiresDuePolicies(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	store := memory.NewStore()
	mgr := lifecycle.New(store, memory.NewDocuments("http://docs.local"),
		lifecycle.WithClock(func() time.Time { return start }),
		lifecycle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	owner := models.Session{Username: "ana@example.com", UserID: "u1", Role: models.RoleUser}

	short, err := mgr.CreatePolicy(ctx, owner, lifecycle.CreatePolicyInput{CoverageAmount: decimal.NewFromInt(1000), TermMonths: 6, Premium: decimal.NewFromInt(90)})
	require.NoError(t, err)
	long, err := mgr.CreatePolicy(ctx, owner, lifecycle.CreatePolicyInput{CoverageAmount: decimal.NewFromInt(1000), TermMonths: 24, Premium: decimal.NewFromInt(90)})
	require.NoError(t, err)

	app := &App{policies: mgr, logger: slog.New(slog.NewTextHandler(io.Discard, nil)), now: time.Now}
	res, err := app.handler(ctx, events.CloudWatchEvent{Time: start.AddDate(1, 0, 0)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)

	got, err := store.GetPolicy(ctx, short.PolicyID)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyExpired, got.Status)
	got, err = store.GetPolicy(ctx, long.PolicyID)
	require.NoError(t, err)
	assert.Equal(t, models.PolicyActive, got.Status)

	res, err = app.handler(ctx, events.CloudWatchEvent{Time: start.AddDate(1, 0, 0)})
	require.NoError(t, err)
	assert.Zero(t, res.Expired, "second run is a no-op")
}

func TestHandlerDefaultsToNow(t *testing.T) {
	now := time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC)
	var seen time.Time
	app := &App{
		policies: expirerFunc(func(ctx context.Context, actor models.Session, at time.Time) (int, error) {
			assert.Equal(t, models.RoleSystem, actor.Role)
			seen = at
			return 0, nil
		}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return now },
	}
	_, err := app.handler(context.Background(), events.CloudWatchEvent{})
	require.NoError(t, err)
	assert.Equal(t, now, seen)
}

type expirerFunc func(ctx context.Context, actor models.Session, now time.Time) (int, error)

func (f expirerFunc) ExpireDue(ctx context.Context, actor models.Session, now time.Time) (int, error) {
	return f(ctx, actor, now)
}
