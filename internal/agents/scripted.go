package agents

import (
	"context"
	"fmt"
	"sync"

	"github.com/cerinalabs/foundry/internal/role"
)

// Scripted is a deterministic role.Adapter that replays queued results per
// role. It backs tests and the "scripted" provider, where no model is
// available.
type Scripted struct {
	mu       sync.Mutex
	queues   map[role.Role][]scriptStep
	defaults map[role.Role]*role.Result
	Invoked  []role.Role
}

type scriptStep struct {
	result *role.Result
	err    error
}

// NewScripted creates an empty scripted adapter.
func NewScripted() *Scripted {
	return &Scripted{
		queues:   make(map[role.Role][]scriptStep),
		defaults: make(map[role.Role]*role.Result),
	}
}

// Queue appends a result to replay on the next invocation of r.
func (s *Scripted) Queue(r role.Role, result *role.Result) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[r] = append(s.queues[r], scriptStep{result: result})
	return s
}

// QueueError appends a failure to replay on the next invocation of r.
func (s *Scripted) QueueError(r role.Role, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[r] = append(s.queues[r], scriptStep{err: err})
	return s
}

// Default sets a fallback result returned whenever r's queue is empty. The
// "scripted" provider uses defaults to serve turns indefinitely.
func (s *Scripted) Default(r role.Role, result *role.Result) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults[r] = result
	return s
}

// Invoke pops and returns the next queued step for r. An empty queue falls
// back to the role's default; with neither it is an invocation error,
// mirroring a broken external role.
func (s *Scripted) Invoke(ctx context.Context, r role.Role, view role.Context) (*role.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, role.NewInvocationError(r, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Invoked = append(s.Invoked, r)

	q := s.queues[r]
	if len(q) == 0 {
		if def := s.defaults[r]; def != nil {
			return def, nil
		}
		return nil, role.NewInvocationError(r, fmt.Errorf("no scripted result for role"))
	}
	step := q[0]
	s.queues[r] = q[1:]
	if step.err != nil {
		return nil, role.NewInvocationError(r, step.err)
	}
	return step.result, nil
}

var _ role.Adapter = (*Scripted)(nil)

// Canned script helpers, shared by tests and the scripted provider.

// CasualHint returns a routing hint that classifies the turn as casual.
func CasualHint(reason string) *role.Result {
	return &role.Result{Kind: role.KindRoutingHint, Hint: &role.RoutingHint{
		Intent: role.IntentCasual,
		Reason: reason,
	}}
}

// ExerciseHint returns a routing hint that requests the drafting pipeline.
func ExerciseHint(reason string, wantsNew bool) *role.Result {
	return &role.Result{Kind: role.KindRoutingHint, Hint: &role.RoutingHint{
		Intent:        role.IntentExercise,
		Reason:        reason,
		WantsNewDraft: wantsNew,
	}}
}

// ChatReply returns a chat message result.
func ChatReply(message string) *role.Result {
	return &role.Result{Kind: role.KindChatMessage, Message: message}
}

// DraftResult returns a draft result.
func DraftResult(title, content, instructions string) *role.Result {
	return &role.Result{Kind: role.KindDraft, Draft: &role.Draft{
		Title:        title,
		Content:      content,
		Instructions: instructions,
	}}
}

// Approval returns an approving critique with the given sub-scores.
func Approval(author role.Role, rationale string, scores map[string]float64) *role.Result {
	return critiqueResult(author, true, rationale, scores)
}

// Rejection returns a rejecting critique with the given sub-scores.
func Rejection(author role.Role, rationale string, scores map[string]float64) *role.Result {
	return critiqueResult(author, false, rationale, scores)
}

// ScoresOnly returns a critique with no boolean verdict, only sub-scores,
// exercising the gate's threshold derivation.
func ScoresOnly(author role.Role, rationale string, scores map[string]float64) *role.Result {
	c := &role.Critique{Author: author, Rationale: rationale}
	applyScores(c, scores)
	return &role.Result{Kind: role.KindCritique, Critique: c}
}

func critiqueResult(author role.Role, approved bool, rationale string, scores map[string]float64) *role.Result {
	c := &role.Critique{Author: author, Approved: &approved, Rationale: rationale}
	applyScores(c, scores)
	return &role.Result{Kind: role.KindCritique, Critique: c}
}

func applyScores(c *role.Critique, scores map[string]float64) {
	for name, v := range scores {
		v := v
		switch name {
		case "safety":
			c.SafetyScore = &v
		case "empathy":
			c.EmpathyScore = &v
		case "clarity":
			c.ClarityScore = &v
		}
	}
}
