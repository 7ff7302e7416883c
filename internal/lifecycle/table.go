package lifecycle

import (
	"slices"

	"github.com/kylejryan/insurance-ops/internal/apperr"
	"github.com/kylejryan/insurance-ops/internal/models"
)

// Entity names the kind of record a rule applies to.
type Entity string

// Entities governed by the table.
const (
	EntityPolicy Entity = "policy"
	EntityClaim  Entity = "claim"
)

// Action is a named lifecycle operation.
type Action string

// Lifecycle actions.
const (
	ActionCreatePolicy Action = "policy.create"
	ActionRenew        Action = "policy.renew"
	ActionSuspend      Action = "policy.suspend"
	ActionReinstate    Action = "policy.reinstate"
	ActionCancel       Action = "policy.cancel"
	ActionExpire       Action = "policy.expire"
	ActionCreateClaim  Action = "claim.create"
	ActionSubmit       Action = "claim.submit"
	ActionAdjudicate   Action = "claim.adjudicate"
	ActionAttach       Action = "claim.attach"
)

// Rule is one row of the transition table. An empty From marks a creation
// rule; an empty To leaves the status unchanged. Owner grants the action to
// the owner of the record in addition to Roles.
type Rule struct {
	Action Action        `json:"action"`
	Entity Entity        `json:"entity"`
	From   []string      `json:"from,omitempty"`
	To     []string      `json:"to,omitempty"`
	Roles  []models.Role `json:"roles"`
	Owner  bool          `json:"owner"`
}

// Table is the single source of truth for which actions are legal in which
// status and who may invoke them.
type Table struct {
	rules []Rule
}

// DefaultTable builds the standard table. renewFrom lists the policy statuses
// renew is legal from; nil means ACTIVE only.
func DefaultTable(renewFrom []models.PolicyStatus) *Table {
	if len(renewFrom) == 0 {
		renewFrom = []models.PolicyStatus{models.PolicyActive}
	}
	admin := []models.Role{models.RoleAdmin}
	return NewTable([]Rule{
		{Action: ActionCreatePolicy, Entity: EntityPolicy, To: strs(models.PolicyActive), Roles: admin, Owner: true},
		{Action: ActionRenew, Entity: EntityPolicy, From: strs(renewFrom...), Roles: admin, Owner: true},
		{Action: ActionSuspend, Entity: EntityPolicy, From: strs(models.PolicyActive), To: strs(models.PolicySuspended), Roles: admin},
		{Action: ActionReinstate, Entity: EntityPolicy, From: strs(models.PolicySuspended), To: strs(models.PolicyActive), Roles: admin},
		{Action: ActionCancel, Entity: EntityPolicy, From: strs(models.PolicyActive, models.PolicySuspended), To: strs(models.PolicyCancelled), Roles: admin},
		{Action: ActionExpire, Entity: EntityPolicy, From: strs(models.PolicyActive), To: strs(models.PolicyExpired), Roles: []models.Role{models.RoleSystem}},

		{Action: ActionCreateClaim, Entity: EntityClaim, To: strs(models.ClaimDraft), Roles: admin, Owner: true},
		{Action: ActionSubmit, Entity: EntityClaim, From: strs(models.ClaimDraft), To: strs(models.ClaimSubmitted), Roles: admin, Owner: true},
		{Action: ActionAdjudicate, Entity: EntityClaim, From: strs(models.ClaimSubmitted), To: strs(models.ClaimApproved, models.ClaimDenied), Roles: admin},
		{Action: ActionAttach, Entity: EntityClaim, From: strs(models.ClaimDraft, models.ClaimSubmitted), Roles: admin, Owner: true},
	})
}

// NewTable builds a table from explicit rules. Later rules for the same action replace earlier ones.
func NewTable(rules []Rule) *Table {
	t := &Table{}
	for _, r := range rules {
		if i := slices.IndexFunc(t.rules, func(x Rule) bool { return x.Action == r.Action }); i >= 0 {
			t.rules[i] = r
			continue
		}
		t.rules = append(t.rules, r)
	}
	return t
}

// Rules returns a copy of the table rows.
func (t *Table) Rules() []Rule { return slices.Clone(t.rules) }

// Rule looks up the row for an action.
func (t *Table) Rule(a Action) (Rule, bool) {
	for _, r := range t.rules {
		if r.Action == a {
			return r, true
		}
	}
	return Rule{}, false
}

// Permitted reports whether actor may invoke the rule on a record owned by ownerID.
func (r Rule) Permitted(actor models.Session, ownerID string) bool {
	if slices.Contains(r.Roles, actor.Role) {
		return true
	}
	return r.Owner && actor.Owns(ownerID)
}

// LegalFrom reports whether the rule applies to a record in status.
func (r Rule) LegalFrom(status string) bool {
	if len(r.From) == 0 {
		return status == ""
	}
	return slices.Contains(r.From, status)
}

// Check returns an Authorization error if actor may not invoke a on a record
// owned by ownerID, and a Conflict error if a is not legal from status.
// Creation rules are checked with an empty status.
func (t *Table) Check(actor models.Session, a Action, status, ownerID string) error {
	op := string(a)
	r, ok := t.Rule(a)
	if !ok {
		return apperr.New(apperr.KindAuthorization, op, "action not available")
	}
	if !r.Permitted(actor, ownerID) {
		return apperr.New(apperr.KindAuthorization, op, "not permitted")
	}
	if !r.LegalFrom(status) {
		return apperr.New(apperr.KindConflict, op, "not allowed while "+status)
	}
	return nil
}

// CheckTarget returns a Validation error if to is not a status a can produce.
func (t *Table) CheckTarget(a Action, to string) error {
	r, ok := t.Rule(a)
	if !ok || !slices.Contains(r.To, to) {
		return apperr.New(apperr.KindValidation, string(a), "invalid target status "+to)
	}
	return nil
}

// Actions lists the non-creation actions actor may invoke on a record of
// entity in status owned by ownerID, in table order. A presentation layer
// enables exactly these controls.
func (t *Table) Actions(actor models.Session, e Entity, status, ownerID string) []Action {
	var out []Action
	for _, r := range t.rules {
		if r.Entity != e || len(r.From) == 0 {
			continue
		}
		if r.LegalFrom(status) && r.Permitted(actor, ownerID) {
			out = append(out, r.Action)
		}
	}
	return out
}

func strs[S ~string](vals ...S) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = string(v)
	}
	return out
}
