package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/auth"
	"github.com/kylejryan/insurance-ops/internal/authz"
	"github.com/kylejryan/insurance-ops/internal/config"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"
	"github.com/kylejryan/insurance-ops/internal/server"
	"github.com/kylejryan/insurance-ops/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t   *testing.T
	cfg config.ClientConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewUnstartedServer(nil)
	store := memory.NewStore()
	docs := memory.NewDocuments("http://" + srv.Listener.Addr().String() + "/dev/storage")
	mgr := lifecycle.New(store, docs, lifecycle.WithLogger(logger))
	issuer := auth.NewIssuer("test-secret", time.Hour)
	accounts := auth.NewService(store, issuer)
	srv.Config.Handler = server.NewRouter(logger, server.Dependencies{
		Manager:  mgr,
		Accounts: accounts,
		Auth:     authz.New(issuer, false),
		Storage: docs.UploadHandler("/dev/storage", time.Now, func(key string, _ int64, at time.Time) {
			_, _ = mgr.RecordEvidence(context.Background(), key, at)
		}),
		StoragePath: "/dev/storage",
	})
	srv.Start()
	t.Cleanup(srv.Close)

	admin := &models.Session{Username: "seed", UserID: "seed", Role: models.RoleAdmin}
	for email, role := range map[string]models.Role{"root@example.com": models.RoleAdmin, "alice@example.com": models.RoleUser} {
		_, err := accounts.Register(context.Background(), admin, auth.RegisterInput{Email: email, Password: "correct-horse", Role: role})
		require.NoError(t, err)
	}

	return &harness{
		t: t,
		cfg: config.ClientConfig{
			APIURL:      srv.URL,
			SessionFile: filepath.Join(t.TempDir(), "session.json"),
			Timeout:     5 * time.Second,
		},
	}
}

// run executes one opsctl invocation with fresh process state, like a shell would.
func (h *harness) run(args ...string) (string, error) {
	var out, errOut bytes.Buffer
	root := newRootCmd(&cli{cfg: h.cfg, out: &out, errOut: &errOut})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) mustRun(v any, args ...string) {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "opsctl %v", args)
	if v != nil {
		require.NoError(h.t, json.Unmarshal([]byte(out), v), out)
	}
}

func TestPolicyAndClaimWorkflow(t *testing.T) {
	h := newHarness(t)

	var me models.Session
	h.mustRun(&me, "login", "-u", "alice@example.com", "-p", "correct-horse")
	assert.Equal(t, models.RoleUser, me.Role)

	var p models.Policy
	h.mustRun(&p, "policy", "create", "--coverage", "50000", "--premium", "812.40", "--term", "12")
	assert.Equal(t, models.PolicyActive, p.Status)

	var pv policyView
	h.mustRun(&pv, "policy", "get", p.PolicyID)
	assert.Equal(t, []lifecycle.Action{lifecycle.ActionRenew}, pv.Actions)

	_, err := h.run("policy", "suspend", p.PolicyID, "--reason", "fraud review")
	assert.ErrorIs(t, err, apperr.ErrAuthorization)
	assert.Equal(t, 4, exitCode(err))

	var cl models.Claim
	h.mustRun(&cl, "claim", "create", "--policy", p.PolicyID, "-d", "hail damage to roof")
	assert.Equal(t, models.ClaimDraft, cl.Status)

	file := filepath.Join(t.TempDir(), "roof.png")
	require.NoError(t, os.WriteFile(file, []byte("\x89PNG"), 0o600))
	var target models.UploadTarget
	h.mustRun(&target, "claim", "attach", cl.ClaimID, file)
	assert.Equal(t, "image/png", target.ContentType)

	var cv claimView
	h.mustRun(&cv, "claim", "submit", cl.ClaimID)
	assert.Equal(t, models.ClaimSubmitted, cv.Claim.Status)
	assert.Equal(t, 1, cv.Claim.EvidenceCount)

	_, err = h.run("claim", "submit", cl.ClaimID)
	assert.ErrorIs(t, err, apperr.ErrConflict)

	h.mustRun(nil, "logout")
	h.mustRun(nil, "login", "-u", "root@example.com", "-p", "correct-horse")
	h.mustRun(&cv, "claim", "adjudicate", cl.ClaimID, "--decision", "DENIED", "--payout", "500")
	assert.Equal(t, models.ClaimDenied, cv.Claim.Status)
	require.NotNil(t, cv.Claim.PayoutAmount)
	assert.True(t, cv.Claim.PayoutAmount.IsZero())
	assert.Empty(t, cv.Actions)

	var docs []models.DocumentInfo
	h.mustRun(&docs, "claim", "docs", cl.ClaimID)
	require.Len(t, docs, 1)
}

func TestCommandsRequireSession(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("policy", "list")
	assert.ErrorIs(t, err, apperr.ErrAuthentication)
	assert.Contains(t, describe(err), "opsctl login")

	_, err = h.run("login", "-u", "alice@example.com", "-p", "nope")
	assert.ErrorIs(t, err, apperr.ErrAuthentication)

	_, err = h.run("whoami")
	assert.ErrorIs(t, err, apperr.ErrAuthentication)
}

func TestLocalValidationExitCode(t *testing.T) {
	h := newHarness(t)
	h.mustRun(nil, "login", "-u", "alice@example.com", "-p", "correct-horse")

	_, err := h.run("policy", "create", "--coverage", "lots", "--premium", "10")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, 2, exitCode(err))

	_, err = h.run("claim", "create", "--policy", "p1", "-d", "tiny")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
