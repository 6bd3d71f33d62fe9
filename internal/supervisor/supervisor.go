package supervisor

import (
	"fmt"

	"github.com/cerinalabs/foundry/internal/gate"
	"github.com/cerinalabs/foundry/internal/role"
	"github.com/cerinalabs/foundry/internal/session"
)

// ReasonBudgetExhausted marks an abort caused by the revision budget.
const ReasonBudgetExhausted = "budget_exhausted"

// Decision is the supervisor's answer to "who next?". Either Next names the
// role to invoke, or Terminal names the state that ends the turn.
type Decision struct {
	Next     role.Role     `json:"next,omitempty"`
	Terminal session.State `json:"terminal,omitempty"`
	Reason   string        `json:"reason"`
}

// Supervisor routes sessions through the review pipeline. It is safe for
// concurrent use; all methods are pure functions of their inputs.
type Supervisor struct {
	gate   *gate.Gate
	budget int
}

// New creates a supervisor with the given review gate and revision budget
// (maximum Drafter invocations per turn).
func New(g *gate.Gate, budget int) *Supervisor {
	if g == nil {
		g = gate.New(0)
	}
	if budget < 1 {
		budget = 1
	}
	return &Supervisor{gate: g, budget: budget}
}

// Budget returns the revision budget.
func (sv *Supervisor) Budget() int { return sv.budget }

// Next decides which role to invoke for the session's current state, or
// reports the terminal state reached.
func (sv *Supervisor) Next(s *session.Session) Decision {
	switch s.State {
	case session.StateInit, session.StateRouteIntent:
		return Decision{Next: role.RoleIntentRouter, Reason: "classify intent for this turn"}
	case session.StateChat:
		return Decision{Next: role.RoleChat, Reason: "casual conversation"}
	case session.StateDrafting:
		return Decision{Next: role.RoleDrafter, Reason: "produce or revise the draft"}
	case session.StateSafetyReview:
		return Decision{Next: role.RoleSafetyGuardian, Reason: "safety review of current version"}
	case session.StateClinicalReview:
		return Decision{Next: role.RoleClinicalCritic, Reason: "clinical review of current version"}
	case session.StateHumanReview, session.StateChatDone, session.StateAborted:
		return Decision{Terminal: s.State, Reason: "turn complete"}
	}
	return Decision{Terminal: session.StateAborted, Reason: fmt.Sprintf("unknown state %q", s.State)}
}

// Transition computes the next state from the current state and the result
// the invoked role just produced. It is called after the result has been
// folded into the session, so the ledger already reflects it.
func (sv *Supervisor) Transition(s *session.Session, res *role.Result) (session.State, string) {
	switch s.State {
	case session.StateInit, session.StateRouteIntent:
		return sv.routeIntent(s, res)

	case session.StateChat:
		return session.StateChatDone, "chat reply produced"

	case session.StateDrafting:
		if res.Kind != role.KindDraft {
			return session.StateAborted, fmt.Sprintf("drafter produced %s, expected draft", res.Kind)
		}
		return session.StateSafetyReview, "new version needs safety review"

	case session.StateSafetyReview:
		return sv.review(s, res, session.StateClinicalReview, "safety approved, clinical review next")

	case session.StateClinicalReview:
		return sv.review(s, res, session.StateHumanReview, "all reviews approved")
	}
	return session.StateAborted, fmt.Sprintf("no transition from state %q", s.State)
}

// routeIntent maps the intent router's hint onto the first working state of
// the turn. An exercise intent re-enters drafting unless an approved current
// draft already exists and the user did not ask for a new one.
func (sv *Supervisor) routeIntent(s *session.Session, res *role.Result) (session.State, string) {
	if res.Kind != role.KindRoutingHint {
		return session.StateAborted, fmt.Sprintf("router produced %s, expected routing hint", res.Kind)
	}
	if IntentOf(res) == role.IntentCasual {
		return session.StateChat, "casual intent"
	}
	if sv.hasApprovedCurrentDraft(s) && !res.Hint.WantsNewDraft {
		return session.StateChat, "approved draft already exists"
	}
	return session.StateDrafting, "exercise requested"
}

// review handles both reviewer states: approval advances to onApproved,
// rejection loops back to drafting while budget remains, and a rejection
// past the budget aborts with the last draft retained.
func (sv *Supervisor) review(s *session.Session, res *role.Result, onApproved session.State, approvedReason string) (session.State, string) {
	if res.Kind != role.KindCritique {
		return session.StateAborted, fmt.Sprintf("reviewer produced %s, expected critique", res.Kind)
	}
	verdict := sv.gate.Evaluate(*res.Critique)
	if verdict.Approved {
		return onApproved, approvedReason
	}
	if s.TurnRevisions < sv.budget {
		return session.StateDrafting, fmt.Sprintf("%s rejected v%d, revising", res.Critique.Author, res.Critique.TargetVersion)
	}
	return session.StateAborted, ReasonBudgetExhausted
}

// hasApprovedCurrentDraft reports whether the latest draft version has been
// approved by both reviewers. Only critiques targeting the current version
// count; stale approvals of older versions never short-circuit a re-review.
func (sv *Supervisor) hasApprovedCurrentDraft(s *session.Session) bool {
	latest := s.Ledger.Latest()
	if latest == nil || s.Unresolved {
		return false
	}
	approvals := map[role.Role]bool{}
	for _, c := range s.Ledger.CritiquesFor(latest.Version) {
		if sv.gate.Evaluate(c).Approved {
			approvals[c.Author] = true
		}
	}
	// A human-edited version is usable without fresh reviews; overwrite
	// explicitly skips re-review.
	if latest.CreatedBy == role.RoleHuman {
		return true
	}
	return approvals[role.RoleSafetyGuardian] && approvals[role.RoleClinicalCritic]
}

// IntentOf extracts the intent from a routing result, defaulting to an
// exercise request when absent so ambiguous turns still reach review.
func IntentOf(res *role.Result) role.Intent {
	if res != nil && res.Hint != nil && res.Hint.Intent == role.IntentCasual {
		return role.IntentCasual
	}
	return role.IntentExercise
}
