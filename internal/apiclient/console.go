package apiclient

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/lifecycle"
	"github.com/kylejryan/insurance-ops/internal/models"

	"github.com/shopspring/decimal"
)

// Console is the stateful operator view over the API. It caches query
// results by scope, refetches the scopes a mutation invalidates before the
// mutation returns, gates actions on the shared transition table, and
// refuses a second concurrent run of the same action on the same record.
type Console struct {
	client *Client
	store  *SessionStore
	logger *slog.Logger

	mu       sync.Mutex
	session  Session
	table    *lifecycle.Table
	cache    map[lifecycle.Scope]map[string]*entry
	inflight map[string]struct{}
}

type entry struct {
	value any
	fetch func(ctx context.Context) (any, error)
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithSessionStore persists logins and clears the file on logout.
func WithSessionStore(st *SessionStore) ConsoleOption {
	return func(c *Console) { c.store = st }
}

// WithConsoleLogger sets the logger.
func WithConsoleLogger(l *slog.Logger) ConsoleOption {
	return func(c *Console) { c.logger = l }
}

// NewConsole builds a console over client acting as s. s may be the zero
// Session until Login is called.
func NewConsole(client *Client, s Session, opts ...ConsoleOption) *Console {
	c := &Console{
		client:   client,
		logger:   slog.Default(),
		session:  s,
		cache:    map[lifecycle.Scope]map[string]*entry{},
		inflight: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the current session.
func (c *Console) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Login authenticates and replaces the session.
func (c *Console) Login(ctx context.Context, username, password string) (Session, error) {
	s, err := c.client.Login(ctx, username, password)
	if err != nil {
		return Session{}, err
	}
	c.mu.Lock()
	c.session = s
	c.cache = map[lifecycle.Scope]map[string]*entry{}
	c.mu.Unlock()
	if c.store != nil {
		if err := c.store.Save(s); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Logout drops the session, the cache and any persisted token.
func (c *Console) Logout() error {
	c.mu.Lock()
	c.session = Session{}
	c.cache = map[lifecycle.Scope]map[string]*entry{}
	c.mu.Unlock()
	if c.store != nil {
		return c.store.Clear()
	}
	return nil
}

// Table returns the transition table, fetching it once.
func (c *Console) Table(ctx context.Context) (*lifecycle.Table, error) {
	c.mu.Lock()
	t := c.table
	c.mu.Unlock()
	if t != nil {
		return t, nil
	}
	t, err := c.client.Table(ctx)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.table = t
	c.mu.Unlock()
	return t, nil
}

// Available lists the actions the session may take on a record of entity in
// status owned by ownerID. These are the controls a view enables.
func (c *Console) Available(ctx context.Context, e lifecycle.Entity, status, ownerID string) ([]lifecycle.Action, error) {
	t, err := c.Table(ctx)
	if err != nil {
		return nil, err
	}
	return t.Actions(c.Session().Principal, e, status, ownerID), nil
}

// ListPolicies returns the (possibly cached) policy listing for q.
func (c *Console) ListPolicies(ctx context.Context, q PolicyQuery) ([]models.Policy, error) {
	return cached(ctx, c, lifecycle.Scope(lifecycle.ScopePolicies), q.encode(), func(ctx context.Context, s Session) ([]models.Policy, error) {
		return c.client.ListPolicies(ctx, s, q)
	})
}

// GetPolicy returns the (possibly cached) policy.
func (c *Console) GetPolicy(ctx context.Context, id string) (models.Policy, error) {
	return cached(ctx, c, lifecycle.PolicyScope(id), "", func(ctx context.Context, s Session) (models.Policy, error) {
		return c.client.GetPolicy(ctx, s, id)
	})
}

// ListClaims returns the (possibly cached) claim listing for q.
func (c *Console) ListClaims(ctx context.Context, q ClaimQuery) ([]models.Claim, error) {
	return cached(ctx, c, lifecycle.Scope(lifecycle.ScopeClaims), q.encode(), func(ctx context.Context, s Session) ([]models.Claim, error) {
		return c.client.ListClaims(ctx, s, q)
	})
}

// GetClaim returns the (possibly cached) claim.
func (c *Console) GetClaim(ctx context.Context, id string) (models.Claim, error) {
	return cached(ctx, c, lifecycle.ClaimScope(id), "", func(ctx context.Context, s Session) (models.Claim, error) {
		return c.client.GetClaim(ctx, s, id)
	})
}

// ListDocuments returns the (possibly cached) document listing of a claim.
func (c *Console) ListDocuments(ctx context.Context, claimID string) ([]models.DocumentInfo, error) {
	return cached(ctx, c, lifecycle.DocumentsScope(claimID), "", func(ctx context.Context, s Session) ([]models.DocumentInfo, error) {
		return c.client.ListDocuments(ctx, s, claimID)
	})
}

// DownloadLink resolves a download URL. Links expire and are never cached.
func (c *Console) DownloadLink(ctx context.Context, key string) (string, error) {
	url, err := c.client.DownloadLink(ctx, c.Session(), key)
	return url, c.check(err)
}

// CreatePolicy creates a policy and refreshes the policy listings.
func (c *Console) CreatePolicy(ctx context.Context, in lifecycle.CreatePolicyInput) (models.Policy, error) {
	return mutate(ctx, c, lifecycle.ActionCreatePolicy, "", func(ctx context.Context, s Session) (models.Policy, lifecycle.Target, error) {
		p, err := c.client.CreatePolicy(ctx, s, in)
		return p, lifecycle.Target{PolicyID: p.PolicyID}, err
	})
}

// RenewPolicy extends a policy's term.
func (c *Console) RenewPolicy(ctx context.Context, id string, extendMonths int) (models.Policy, error) {
	return c.policyTransition(ctx, lifecycle.ActionRenew, id, func(ctx context.Context, s Session) (models.Policy, error) {
		return c.client.RenewPolicy(ctx, s, id, extendMonths)
	})
}

// SuspendPolicy suspends a policy.
func (c *Console) SuspendPolicy(ctx context.Context, id, reason string) (models.Policy, error) {
	return c.policyTransition(ctx, lifecycle.ActionSuspend, id, func(ctx context.Context, s Session) (models.Policy, error) {
		return c.client.SuspendPolicy(ctx, s, id, reason)
	})
}

// ReinstatePolicy reinstates a suspended policy.
func (c *Console) ReinstatePolicy(ctx context.Context, id string) (models.Policy, error) {
	return c.policyTransition(ctx, lifecycle.ActionReinstate, id, func(ctx context.Context, s Session) (models.Policy, error) {
		return c.client.ReinstatePolicy(ctx, s, id)
	})
}

// CancelPolicy cancels a policy.
func (c *Console) CancelPolicy(ctx context.Context, id string) (models.Policy, error) {
	return c.policyTransition(ctx, lifecycle.ActionCancel, id, func(ctx context.Context, s Session) (models.Policy, error) {
		return c.client.CancelPolicy(ctx, s, id)
	})
}

func (c *Console) policyTransition(ctx context.Context, a lifecycle.Action, id string, call func(context.Context, Session) (models.Policy, error)) (models.Policy, error) {
	cur, err := c.GetPolicy(ctx, id)
	if err != nil {
		return models.Policy{}, err
	}
	if err := c.gate(ctx, a, string(cur.Status), cur.UserID); err != nil {
		return models.Policy{}, err
	}
	return mutate(ctx, c, a, id, func(ctx context.Context, s Session) (models.Policy, lifecycle.Target, error) {
		p, err := call(ctx, s)
		return p, lifecycle.Target{PolicyID: id}, err
	})
}

// CreateClaim opens a DRAFT claim.
func (c *Console) CreateClaim(ctx context.Context, policyID, description string) (models.Claim, error) {
	return mutate(ctx, c, lifecycle.ActionCreateClaim, "", func(ctx context.Context, s Session) (models.Claim, lifecycle.Target, error) {
		cl, err := c.client.CreateClaim(ctx, s, policyID, description)
		return cl, lifecycle.Target{PolicyID: policyID, ClaimID: cl.ClaimID}, err
	})
}

// SubmitClaim submits a DRAFT claim. Submitting a claim in any other status
// is refused without contacting the API.
func (c *Console) SubmitClaim(ctx context.Context, id string) (models.Claim, error) {
	return c.claimTransition(ctx, lifecycle.ActionSubmit, id, func(ctx context.Context, s Session) (models.Claim, error) {
		return c.client.SubmitClaim(ctx, s, id)
	})
}

// AdjudicateClaim approves or denies a submitted claim.
func (c *Console) AdjudicateClaim(ctx context.Context, id string, decision models.ClaimStatus, payout *decimal.Decimal) (models.Claim, error) {
	return c.claimTransition(ctx, lifecycle.ActionAdjudicate, id, func(ctx context.Context, s Session) (models.Claim, error) {
		return c.client.AdjudicateClaim(ctx, s, id, decision, payout)
	})
}

func (c *Console) claimTransition(ctx context.Context, a lifecycle.Action, id string, call func(context.Context, Session) (models.Claim, error)) (models.Claim, error) {
	cur, err := c.GetClaim(ctx, id)
	if err != nil {
		return models.Claim{}, err
	}
	if err := c.gate(ctx, a, string(cur.Status), cur.UserID); err != nil {
		return models.Claim{}, err
	}
	return mutate(ctx, c, a, id, func(ctx context.Context, s Session) (models.Claim, lifecycle.Target, error) {
		cl, err := call(ctx, s)
		return cl, lifecycle.Target{PolicyID: cur.PolicyID, ClaimID: id}, err
	})
}

// AttachEvidence presigns a target for the file and uploads body to it with
// the content type the target was signed for.
func (c *Console) AttachEvidence(ctx context.Context, claimID, filename, contentType string, body []byte) (models.UploadTarget, error) {
	cur, err := c.GetClaim(ctx, claimID)
	if err != nil {
		return models.UploadTarget{}, err
	}
	if err := c.gate(ctx, lifecycle.ActionAttach, string(cur.Status), cur.UserID); err != nil {
		return models.UploadTarget{}, err
	}
	return mutate(ctx, c, lifecycle.ActionAttach, claimID, func(ctx context.Context, s Session) (models.UploadTarget, lifecycle.Target, error) {
		target := lifecycle.Target{PolicyID: cur.PolicyID, ClaimID: claimID}
		t, err := c.client.PresignUpload(ctx, s, claimID, filename, contentType)
		if err != nil {
			return models.UploadTarget{}, target, err
		}
		return t, target, c.client.Upload(ctx, t, body, t.ContentType)
	})
}

// gate consults the transition table before any request is sent.
func (c *Console) gate(ctx context.Context, a lifecycle.Action, status, ownerID string) error {
	t, err := c.Table(ctx)
	if err != nil {
		return err
	}
	return t.Check(c.Session().Principal, a, status, ownerID)
}

// check applies the forced-logout policy to err.
func (c *Console) check(err error) error {
	if errors.Is(err, apperr.ErrAuthentication) {
		if lerr := c.Logout(); lerr != nil {
			c.logger.Warn("clearing session failed", "error", lerr)
		}
	}
	return err
}

// cached returns the entry for scope/query, fetching it on a miss.
func cached[T any](ctx context.Context, c *Console, scope lifecycle.Scope, query string, fetch func(context.Context, Session) (T, error)) (T, error) {
	c.mu.Lock()
	if e, ok := c.cache[scope][query]; ok {
		c.mu.Unlock()
		return e.value.(T), nil
	}
	c.mu.Unlock()

	var zero T
	e := &entry{fetch: func(ctx context.Context) (any, error) {
		return fetch(ctx, c.Session())
	}}
	v, err := e.fetch(ctx)
	if err != nil {
		return zero, c.check(err)
	}
	e.value = v

	c.mu.Lock()
	if c.cache[scope] == nil {
		c.cache[scope] = map[string]*entry{}
	}
	c.cache[scope][query] = e
	c.mu.Unlock()
	return v.(T), nil
}

// mutate runs call under the in-flight guard for a on id, then invalidates
// and refetches the scopes the action makes stale.
func mutate[T any](ctx context.Context, c *Console, a lifecycle.Action, id string, call func(context.Context, Session) (T, lifecycle.Target, error)) (T, error) {
	var zero T
	key := string(a) + ":" + id
	c.mu.Lock()
	if _, busy := c.inflight[key]; busy {
		c.mu.Unlock()
		return zero, apperr.New(apperr.KindConflict, string(a), "already in progress")
	}
	c.inflight[key] = struct{}{}
	s := c.session
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}()

	v, target, err := call(ctx, s)
	if err != nil {
		return zero, c.check(err)
	}
	c.Refresh(ctx, lifecycle.ScopesFor(a, target)...)
	return v, nil
}

// Refresh drops the cached entries of scopes and refetches them. Entries
// that fail to refetch stay dropped and are fetched again on next read.
func (c *Console) Refresh(ctx context.Context, scopes ...lifecycle.Scope) {
	type slot struct {
		scope lifecycle.Scope
		query string
		fetch func(context.Context) (any, error)
	}
	var stale []slot
	c.mu.Lock()
	for _, sc := range scopes {
		for q, e := range c.cache[sc] {
			stale = append(stale, slot{sc, q, e.fetch})
		}
		delete(c.cache, sc)
	}
	c.mu.Unlock()

	for _, st := range stale {
		v, err := st.fetch(ctx)
		if err != nil {
			c.logger.Warn("refetch failed", "scope", st.scope, "error", err)
			continue
		}
		c.mu.Lock()
		if c.cache[st.scope] == nil {
			c.cache[st.scope] = map[string]*entry{}
		}
		c.cache[st.scope][st.query] = &entry{value: v, fetch: st.fetch}
		c.mu.Unlock()
	}
}
