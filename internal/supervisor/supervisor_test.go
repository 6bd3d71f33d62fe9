package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cerinalabs/foundry/internal/gate"
	"github.com/cerinalabs/foundry/internal/role"
	"github.com/cerinalabs/foundry/internal/session"
)

func fp(v float64) *float64 { return &v }
func bp(v bool) *bool       { return &v }

func newSupervisor(budget int) *Supervisor {
	return New(gate.New(0.7), budget)
}

func hint(intent role.Intent, wantsNew bool) *role.Result {
	return &role.Result{Kind: role.KindRoutingHint, Hint: &role.RoutingHint{Intent: intent, WantsNewDraft: wantsNew}}
}

func critique(author role.Role, approved bool, target int) *role.Result {
	return &role.Result{Kind: role.KindCritique, Critique: &role.Critique{
		Author: author, Approved: bp(approved), TargetVersion: target,
	}}
}

func TestNextRoutesStatesToRoles(t *testing.T) {
	sv := newSupervisor(3)

	tests := []struct {
		state session.State
		next  role.Role
	}{
		{session.StateInit, role.RoleIntentRouter},
		{session.StateRouteIntent, role.RoleIntentRouter},
		{session.StateChat, role.RoleChat},
		{session.StateDrafting, role.RoleDrafter},
		{session.StateSafetyReview, role.RoleSafetyGuardian},
		{session.StateClinicalReview, role.RoleClinicalCritic},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			s := session.New("k")
			s.State = tt.state
			d := sv.Next(s)
			assert.Equal(t, tt.next, d.Next)
			assert.Empty(t, d.Terminal)
		})
	}
}

func TestNextReportsTerminalStates(t *testing.T) {
	sv := newSupervisor(3)
	for _, state := range []session.State{session.StateHumanReview, session.StateChatDone, session.StateAborted} {
		s := session.New("k")
		s.State = state
		d := sv.Next(s)
		assert.Equal(t, state, d.Terminal)
		assert.Empty(t, d.Next)
	}
}

func TestTransitionCasualIntent(t *testing.T) {
	sv := newSupervisor(3)
	s := session.New("k")
	s.State = session.StateRouteIntent

	next, _ := sv.Transition(s, hint(role.IntentCasual, false))
	assert.Equal(t, session.StateChat, next)
}

func TestTransitionExerciseIntent(t *testing.T) {
	sv := newSupervisor(3)
	s := session.New("k")
	s.State = session.StateRouteIntent

	next, _ := sv.Transition(s, hint(role.IntentExercise, false))
	assert.Equal(t, session.StateDrafting, next)
}

func TestTransitionChatEndsTurn(t *testing.T) {
	sv := newSupervisor(3)
	s := session.New("k")
	s.State = session.StateChat

	next, _ := sv.Transition(s, &role.Result{Kind: role.KindChatMessage, Message: "hi"})
	assert.Equal(t, session.StateChatDone, next)
}

func TestTransitionDraftGoesToSafetyReview(t *testing.T) {
	sv := newSupervisor(3)
	s := session.New("k")
	s.State = session.StateDrafting

	next, _ := sv.Transition(s, &role.Result{Kind: role.KindDraft, Draft: &role.Draft{Title: "t"}})
	assert.Equal(t, session.StateSafetyReview, next)
}

func TestTransitionReviewChain(t *testing.T) {
	sv := newSupervisor(3)
	s := session.New("k")
	s.Ledger.Append(role.RoleDrafter, role.Draft{}, "")
	s.TurnRevisions = 1

	s.State = session.StateSafetyReview
	next, _ := sv.Transition(s, critique(role.RoleSafetyGuardian, true, 1))
	assert.Equal(t, session.StateClinicalReview, next)

	s.State = session.StateClinicalReview
	next, _ = sv.Transition(s, critique(role.RoleClinicalCritic, true, 1))
	assert.Equal(t, session.StateHumanReview, next)
}

func TestTransitionRejectionLoopsWhileBudgetRemains(t *testing.T) {
	sv := newSupervisor(3)
	s := session.New("k")
	s.Ledger.Append(role.RoleDrafter, role.Draft{}, "")
	s.TurnRevisions = 1
	s.State = session.StateSafetyReview

	next, reason := sv.Transition(s, critique(role.RoleSafetyGuardian, false, 1))
	assert.Equal(t, session.StateDrafting, next)
	assert.NotEqual(t, ReasonBudgetExhausted, reason)
}

func TestTransitionRejectionPastBudgetAborts(t *testing.T) {
	sv := newSupervisor(1)
	s := session.New("k")
	s.Ledger.Append(role.RoleDrafter, role.Draft{}, "")
	s.TurnRevisions = 1
	s.State = session.StateClinicalReview

	next, reason := sv.Transition(s, critique(role.RoleClinicalCritic, false, 1))
	assert.Equal(t, session.StateAborted, next)
	assert.Equal(t, ReasonBudgetExhausted, reason)
}

func TestTransitionScoreOnlyRejectionLoops(t *testing.T) {
	sv := newSupervisor(3)
	s := session.New("k")
	s.Ledger.Append(role.RoleDrafter, role.Draft{}, "")
	s.TurnRevisions = 1
	s.State = session.StateSafetyReview

	// No verdict, score below threshold: the gate rejects.
	res := &role.Result{Kind: role.KindCritique, Critique: &role.Critique{
		Author: role.RoleSafetyGuardian, TargetVersion: 1, SafetyScore: fp(0.4),
	}}
	next, _ := sv.Transition(s, res)
	assert.Equal(t, session.StateDrafting, next)
}

func TestTransitionWrongKindAborts(t *testing.T) {
	sv := newSupervisor(3)

	tests := []struct {
		state session.State
		res   *role.Result
	}{
		{session.StateRouteIntent, &role.Result{Kind: role.KindChatMessage, Message: "x"}},
		{session.StateDrafting, &role.Result{Kind: role.KindChatMessage, Message: "x"}},
		{session.StateSafetyReview, &role.Result{Kind: role.KindDraft, Draft: &role.Draft{}}},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			s := session.New("k")
			s.State = tt.state
			next, _ := sv.Transition(s, tt.res)
			assert.Equal(t, session.StateAborted, next)
		})
	}
}

func TestExerciseIntentWithApprovedDraftGoesToChat(t *testing.T) {
	sv := newSupervisor(3)
	s := session.New("k")
	s.State = session.StateRouteIntent
	s.Ledger.Append(role.RoleDrafter, role.Draft{Title: "done"}, "")
	require.NoError(t, s.Ledger.AttachCritique(role.Critique{Author: role.RoleSafetyGuardian, TargetVersion: 1, Approved: bp(true)}))
	require.NoError(t, s.Ledger.AttachCritique(role.Critique{Author: role.RoleClinicalCritic, TargetVersion: 1, Approved: bp(true)}))

	next, _ := sv.Transition(s, hint(role.IntentExercise, false))
	assert.Equal(t, session.StateChat, next, "follow-ups about an approved draft stay conversational")

	next, _ = sv.Transition(s, hint(role.IntentExercise, true))
	assert.Equal(t, session.StateDrafting, next, "an explicit new-draft request re-enters drafting")
}

func TestStaleApprovalsNeverShortCircuit(t *testing.T) {
	sv := newSupervisor(3)
	s := session.New("k")
	s.State = session.StateRouteIntent
	s.Ledger.Append(role.RoleDrafter, role.Draft{}, "")
	require.NoError(t, s.Ledger.AttachCritique(role.Critique{Author: role.RoleSafetyGuardian, TargetVersion: 1, Approved: bp(true)}))
	require.NoError(t, s.Ledger.AttachCritique(role.Critique{Author: role.RoleClinicalCritic, TargetVersion: 1, Approved: bp(true)}))

	// A newer, unreviewed version exists: v1 approvals are stale.
	s.Ledger.Append(role.RoleDrafter, role.Draft{}, "revised")

	next, _ := sv.Transition(s, hint(role.IntentExercise, false))
	assert.Equal(t, session.StateDrafting, next)
}

func TestHumanEditedLatestCountsAsUsable(t *testing.T) {
	sv := newSupervisor(3)
	s := session.New("k")
	s.State = session.StateRouteIntent
	s.Ledger.Append(role.RoleDrafter, role.Draft{}, "")
	s.Ledger.Append(role.RoleHuman, role.Draft{Title: "edited"}, "human edit")

	next, _ := sv.Transition(s, hint(role.IntentExercise, false))
	assert.Equal(t, session.StateChat, next)
}

func TestIntentOf(t *testing.T) {
	assert.Equal(t, role.IntentCasual, IntentOf(hint(role.IntentCasual, false)))
	assert.Equal(t, role.IntentExercise, IntentOf(hint(role.IntentExercise, false)))
	assert.Equal(t, role.IntentExercise, IntentOf(nil), "ambiguity defaults to the reviewed pipeline")
	assert.Equal(t, role.IntentExercise, IntentOf(&role.Result{Kind: role.KindRoutingHint, Hint: &role.RoutingHint{Intent: "garbage"}}))
}
