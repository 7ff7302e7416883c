package apiclient

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kylejryan/insurance-ops/internal/auth"
	"github.com/kylejryan/insurance-ops/internal/authz"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"
	"github.com/kylejryan/insurance-ops/internal/server"
	"github.com/kylejryan/insurance-ops/internal/store/memory"

	"github.com/stretchr/testify/require"
)

const password = "correct-horse"

// stack is a real API over the memory store, with request counting and an
// optional hook that runs before the router.
type stack struct {
	t        *testing.T
	srv      *httptest.Server
	client   *Client
	accounts *auth.Service
	issuer   *auth.Issuer

	mu     sync.Mutex
	counts map[string]int
	before func(r *http.Request)
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := &stack{t: t, counts: map[string]int{}}
	st.srv = httptest.NewUnstartedServer(nil)

	store := memory.NewStore()
	docs := memory.NewDocuments("http://" + st.srv.Listener.Addr().String() + "/dev/storage")
	mgr := lifecycle.New(store, docs, lifecycle.WithLogger(logger))
	st.issuer = auth.NewIssuer("test-secret", time.Hour)
	st.accounts = auth.NewService(store, st.issuer)

	router := server.NewRouter(logger, server.Dependencies{
		Manager:  mgr,
		Accounts: st.accounts,
		Auth:     authz.New(st.issuer, false),
		Storage: docs.UploadHandler("/dev/storage", time.Now, func(key string, _ int64, at time.Time) {
			_, _ = mgr.RecordEvidence(context.Background(), key, at)
		}),
		StoragePath: "/dev/storage",
	})
	st.srv.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st.mu.Lock()
		st.counts[r.Method+" "+r.URL.Path]++
		hook := st.before
		st.mu.Unlock()
		if hook != nil {
			hook(r)
		}
		router.ServeHTTP(w, r)
	})
	st.srv.Start()
	t.Cleanup(st.srv.Close)
	st.client = New(st.srv.URL, st.srv.Client())
	return st
}

func (st *stack) count(key string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.counts[key]
}

func (st *stack) total(prefix string) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for k, v := range st.counts {
		if strings.HasPrefix(k, prefix) {
			n += v
		}
	}
	return n
}

func (st *stack) setBefore(fn func(r *http.Request)) {
	st.mu.Lock()
	st.before = fn
	st.mu.Unlock()
}

// user registers an account with role and logs it in.
func (st *stack) user(email string, role models.Role) Session {
	st.t.Helper()
	ctx := context.Background()
	caller := &models.Session{Username: "seed", UserID: "seed", Role: models.RoleAdmin}
	_, err := st.accounts.Register(ctx, caller, auth.RegisterInput{Email: email, Password: password, Role: role})
	require.NoError(st.t, err)
	s, err := st.client.Login(ctx, email, password)
	require.NoError(st.t, err)
	return s
}
