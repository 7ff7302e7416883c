package lifecycle

import "strings"

// Scope names a query whose cached result a mutation makes stale.
type Scope string

// ScopeKind is the family of a scope, before ids are filled in.
type ScopeKind string

// Scope kinds.
const (
	ScopePolicies  ScopeKind = "policies"
	ScopePolicy    ScopeKind = "policy"
	ScopeClaims    ScopeKind = "claims"
	ScopeClaim     ScopeKind = "claim"
	ScopeDocuments ScopeKind = "documents"
)

// Invalidations maps every mutating action to the query scopes it makes stale.
var Invalidations = map[Action][]ScopeKind{
	ActionCreatePolicy: {ScopePolicies},
	ActionRenew:        {ScopePolicies, ScopePolicy},
	ActionSuspend:      {ScopePolicies, ScopePolicy},
	ActionReinstate:    {ScopePolicies, ScopePolicy},
	ActionCancel:       {ScopePolicies, ScopePolicy},
	ActionExpire:       {ScopePolicies, ScopePolicy},
	ActionCreateClaim:  {ScopeClaims},
	ActionSubmit:       {ScopeClaims, ScopeClaim},
	ActionAdjudicate:   {ScopeClaims, ScopeClaim},
	ActionAttach:       {ScopeClaim, ScopeDocuments},
}

// Target identifies the records an action touched.
type Target struct {
	PolicyID string
	ClaimID  string
}

// ScopesFor resolves the scopes invalidated by a on target. Kinds that need
// an id the target lacks are skipped.
func ScopesFor(a Action, target Target) []Scope {
	var out []Scope
	for _, k := range Invalidations[a] {
		switch k {
		case ScopePolicies, ScopeClaims:
			out = append(out, Scope(k))
		case ScopePolicy:
			if target.PolicyID != "" {
				out = append(out, PolicyScope(target.PolicyID))
			}
		case ScopeClaim:
			if target.ClaimID != "" {
				out = append(out, ClaimScope(target.ClaimID))
			}
		case ScopeDocuments:
			if target.ClaimID != "" {
				out = append(out, DocumentsScope(target.ClaimID))
			}
		}
	}
	return out
}

// PolicyScope is the scope of a single policy read.
func PolicyScope(id string) Scope { return Scope(string(ScopePolicy) + ":" + id) }

// ClaimScope is the scope of a single claim read.
func ClaimScope(id string) Scope { return Scope(string(ScopeClaim) + ":" + id) }

// DocumentsScope is the scope of a claim's document listing.
func DocumentsScope(claimID string) Scope { return Scope(string(ScopeDocuments) + ":" + claimID) }

// Kind returns the family of s.
func (s Scope) Kind() ScopeKind {
	k, _, _ := strings.Cut(string(s), ":")
	return ScopeKind(k)
}

// ID returns the record id carried by s, if any.
func (s Scope) ID() string {
	_, id, _ := strings.Cut(string(s), ":")
	return id
}
