// Package lifecycle enforces the policy and claim state machines: which
// transitions are legal from which status, who may invoke them, and which
// queries each successful mutation invalidates.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/models"
	"github.com/kylejryan/insurance-ops/internal/validate"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

// Manager validates and executes lifecycle transitions against a Store.
type Manager struct {
	store     Store
	docs      Documents
	table     *Table
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	observer  Observer
	listeners []Listener
}

// New builds a Manager over store and docs.
func New(store Store, docs Documents, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		docs:   docs,
		table:  DefaultTable(nil),
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return ulid.Make().String() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Table returns the transition table in force.
func (m *Manager) Table() *Table { return m.table }

// CreatePolicyInput carries the fields of a new policy.
type CreatePolicyInput struct {
	UserID         string          `json:"userId"`
	CoverageAmount decimal.Decimal `json:"coverageAmount"`
	TermMonths     int             `json:"termMonths"`
	Premium        decimal.Decimal `json:"premium"`
	QuoteID        string          `json:"quoteId,omitempty"`
}

// Validate runs the local schema checks.
func (in CreatePolicyInput) Validate() error {
	return validate.All(
		func() error { return validate.PositiveDecimal("coverageAmount", in.CoverageAmount) },
		func() error { return validate.PositiveInt("termMonths", in.TermMonths) },
		func() error { return validate.PositiveDecimal("premium", in.Premium) },
	)
}

// CreatePolicy creates an ACTIVE policy. Non-admins may only create policies
// for themselves; an empty UserID means the actor.
func (m *Manager) CreatePolicy(ctx context.Context, actor models.Session, in CreatePolicyInput) (models.Policy, error) {
	if err := requireSession(actor); err != nil {
		return models.Policy{}, err
	}
	if err := in.Validate(); err != nil {
		return models.Policy{}, err
	}
	owner := strings.TrimSpace(in.UserID)
	if owner == "" {
		owner = actor.UserID
	}
	if err := m.check(actor, ActionCreatePolicy, "", owner); err != nil {
		return models.Policy{}, err
	}

	now := m.now()
	p := models.Policy{
		PolicyID:       m.newID(),
		UserID:         owner,
		QuoteID:        strings.TrimSpace(in.QuoteID),
		Status:         models.PolicyActive,
		CoverageAmount: in.CoverageAmount,
		Premium:        in.Premium,
		TermMonths:     in.TermMonths,
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        1,
	}
	if err := m.store.CreatePolicy(ctx, p); err != nil {
		return models.Policy{}, m.failed(EntityPolicy, ActionCreatePolicy, err)
	}
	m.done(actor, EntityPolicy, ActionCreatePolicy, Target{PolicyID: p.PolicyID}, "", string(p.Status))
	return p, nil
}

// GetPolicy returns a policy visible to actor.
func (m *Manager) GetPolicy(ctx context.Context, actor models.Session, policyID string) (models.Policy, error) {
	if err := requireSession(actor); err != nil {
		return models.Policy{}, err
	}
	p, err := m.store.GetPolicy(ctx, policyID)
	if err != nil {
		return models.Policy{}, err
	}
	if !actor.IsAdmin() && !actor.Owns(p.UserID) {
		return models.Policy{}, apperr.New(apperr.KindAuthorization, "policy.get", "not permitted")
	}
	return p, nil
}

// ListPolicies lists policies matching f. Non-admins only ever see their own.
func (m *Manager) ListPolicies(ctx context.Context, actor models.Session, f PolicyFilter) ([]models.Policy, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		f.UserID = actor.UserID
	}
	return m.store.ListPolicies(ctx, f)
}

// RenewPolicy extends the policy term by extendMonths without changing status.
func (m *Manager) RenewPolicy(ctx context.Context, actor models.Session, policyID string, extendMonths int) (models.Policy, error) {
	if err := validate.PositiveInt("extendMonths", extendMonths); err != nil {
		return models.Policy{}, err
	}
	return m.transitionPolicy(ctx, actor, ActionRenew, policyID, func(p *models.Policy) error {
		p.TermMonths += extendMonths
		return nil
	})
}

// SuspendPolicy moves an ACTIVE policy to SUSPENDED with a reason.
func (m *Manager) SuspendPolicy(ctx context.Context, actor models.Session, policyID, reason string) (models.Policy, error) {
	if err := validate.Reason(reason); err != nil {
		return models.Policy{}, err
	}
	return m.transitionPolicy(ctx, actor, ActionSuspend, policyID, func(p *models.Policy) error {
		p.Status = models.PolicySuspended
		p.SuspendedReason = strings.TrimSpace(reason)
		return nil
	})
}

// ReinstatePolicy moves a SUSPENDED policy back to ACTIVE.
func (m *Manager) ReinstatePolicy(ctx context.Context, actor models.Session, policyID string) (models.Policy, error) {
	return m.transitionPolicy(ctx, actor, ActionReinstate, policyID, func(p *models.Policy) error {
		p.Status = models.PolicyActive
		p.SuspendedReason = ""
		return nil
	})
}

// CancelPolicy terminates a policy.
func (m *Manager) CancelPolicy(ctx context.Context, actor models.Session, policyID string) (models.Policy, error) {
	return m.transitionPolicy(ctx, actor, ActionCancel, policyID, func(p *models.Policy) error {
		p.Status = models.PolicyCancelled
		p.SuspendedReason = ""
		return nil
	})
}

// ExpireDue moves every ACTIVE policy whose term ended at or before now to
// EXPIRED and returns how many it expired. Policies changed concurrently are
// skipped.
func (m *Manager) ExpireDue(ctx context.Context, actor models.Session, now time.Time) (int, error) {
	active, err := m.store.ListPolicies(ctx, PolicyFilter{Status: models.PolicyActive})
	if err != nil {
		return 0, err
	}
	expired := 0
	for _, p := range active {
		if p.ExpiresAt().After(now) {
			continue
		}
		_, err := m.transitionPolicy(ctx, actor, ActionExpire, p.PolicyID, func(q *models.Policy) error {
			// q is the fresh read; a renew may have landed since the list.
			if q.ExpiresAt().After(now) {
				return apperr.New(apperr.KindConflict, "policy.expire", "policy term extended")
			}
			q.Status = models.PolicyExpired
			return nil
		})
		switch {
		case err == nil:
			expired++
		case errors.Is(err, apperr.ErrConflict):
			m.logger.Info("expire skipped", "policy_id", p.PolicyID, "error", err)
		default:
			return expired, err
		}
	}
	return expired, nil
}

func (m *Manager) transitionPolicy(ctx context.Context, actor models.Session, a Action, policyID string, apply func(*models.Policy) error) (models.Policy, error) {
	if err := requireSession(actor); err != nil {
		return models.Policy{}, err
	}
	cur, err := m.store.GetPolicy(ctx, policyID)
	if err != nil {
		return models.Policy{}, err
	}
	if err := m.check(actor, a, string(cur.Status), cur.UserID); err != nil {
		return models.Policy{}, err
	}
	next := cur
	if err := apply(&next); err != nil {
		return models.Policy{}, m.failed(EntityPolicy, a, err)
	}
	next.UpdatedAt = m.now()
	next.Version = cur.Version + 1
	if err := m.store.UpdatePolicy(ctx, next, cur.Status); err != nil {
		return models.Policy{}, m.failed(EntityPolicy, a, err)
	}
	m.done(actor, EntityPolicy, a, Target{PolicyID: next.PolicyID}, string(cur.Status), string(next.Status))
	return next, nil
}

func (m *Manager) check(actor models.Session, a Action, status, ownerID string) error {
	if err := m.table.Check(actor, a, status, ownerID); err != nil {
		r, _ := m.table.Rule(a)
		m.observe(r.Entity, a, "rejected")
		return err
	}
	return nil
}

func (m *Manager) failed(e Entity, a Action, err error) error {
	m.observe(e, a, "error")
	return err
}

func (m *Manager) done(actor models.Session, e Entity, a Action, target Target, from, to string) {
	m.observe(e, a, "ok")
	m.logger.Info("lifecycle transition",
		"action", a,
		"policy_id", target.PolicyID,
		"claim_id", target.ClaimID,
		"from", from,
		"to", to,
		"actor", actor.Username,
	)
	scopes := ScopesFor(a, target)
	for _, l := range m.listeners {
		l(a, scopes)
	}
}

func (m *Manager) observe(e Entity, a Action, result string) {
	if m.observer != nil {
		m.observer.Transition(e, a, result)
	}
}

func requireSession(actor models.Session) error {
	if actor.Role == "" || (actor.Role != models.RoleSystem && actor.UserID == "") {
		return apperr.New(apperr.KindAuthentication, "", "authentication required")
	}
	return nil
}
