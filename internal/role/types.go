package role

import (
	"context"
	"fmt"
	"time"
)

// Role identifies a participant in the drafting pipeline.
type Role string

const (
	// RoleIntentRouter classifies the user's intent for the turn.
	RoleIntentRouter Role = "intent_router"

	// RoleChat produces conversational replies for casual requests.
	RoleChat Role = "chat"

	// RoleDrafter produces and revises exercise drafts.
	RoleDrafter Role = "drafter"

	// RoleSafetyGuardian reviews drafts for harm and medical safety.
	RoleSafetyGuardian Role = "safety_guardian"

	// RoleClinicalCritic reviews drafts for empathy, tone and clarity.
	RoleClinicalCritic Role = "clinical_critic"

	// RoleHuman marks versions edited by a human outside the pipeline.
	RoleHuman Role = "human"
)

// AllRoles returns every invokable role. RoleHuman is excluded: humans are
// never invoked, they only author versions via the overwrite path.
func AllRoles() []Role {
	return []Role{RoleIntentRouter, RoleChat, RoleDrafter, RoleSafetyGuardian, RoleClinicalCritic}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleIntentRouter, RoleChat, RoleDrafter, RoleSafetyGuardian, RoleClinicalCritic, RoleHuman:
		return true
	}
	return false
}

// Intent is the routing decision produced by the intent router.
type Intent string

const (
	// IntentCasual routes to the chat role.
	IntentCasual Intent = "casual"

	// IntentExercise routes into the drafting pipeline.
	IntentExercise Intent = "exercise_request"
)

// Message is one entry in a session's ordered message log.
type Message struct {
	// Sender is "user" or "assistant".
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Note is an append-only scratchpad entry shared between roles.
type Note struct {
	Author Role      `json:"author"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Draft is the artifact payload a producer role emits. It has no version
// number: versioning belongs to the ledger.
type Draft struct {
	Title        string `json:"title"`
	Content      string `json:"content"`
	Instructions string `json:"instructions"`
}

// Critique is a reviewer's verdict on a specific draft version. Approved is a
// pointer because reviewers may return only sub-scores; derivation of a
// boolean verdict from scores is the review gate's job, not the reviewer's.
type Critique struct {
	Author        Role      `json:"author"`
	TargetVersion int       `json:"target_version"`
	Approved      *bool     `json:"approved,omitempty"`
	Rationale     string    `json:"rationale"`
	SafetyScore   *float64  `json:"safety_score,omitempty"`
	EmpathyScore  *float64  `json:"empathy_score,omitempty"`
	ClarityScore  *float64  `json:"clarity_score,omitempty"`
	At            time.Time `json:"at"`
}

// RoutingHint is the intent router's output.
type RoutingHint struct {
	Intent        Intent `json:"intent"`
	Reason        string `json:"reason"`
	WantsNewDraft bool   `json:"wants_new_draft"`
}

// ResultKind tags the variant carried by a Result.
type ResultKind string

const (
	KindChatMessage ResultKind = "chat_message"
	KindDraft       ResultKind = "draft"
	KindCritique    ResultKind = "critique"
	KindRoutingHint ResultKind = "routing_hint"
)

// Result is the tagged union every role invocation resolves to. Exactly one
// payload field is set, matching Kind.
type Result struct {
	Kind     ResultKind   `json:"kind"`
	Message  string       `json:"message,omitempty"`
	Draft    *Draft       `json:"draft,omitempty"`
	Critique *Critique    `json:"critique,omitempty"`
	Hint     *RoutingHint `json:"hint,omitempty"`
}

// Validate checks that the result's payload matches its kind.
func (r *Result) Validate() error {
	switch r.Kind {
	case KindChatMessage:
		if r.Message == "" {
			return fmt.Errorf("chat result has empty message")
		}
	case KindDraft:
		if r.Draft == nil {
			return fmt.Errorf("draft result has nil draft")
		}
	case KindCritique:
		if r.Critique == nil {
			return fmt.Errorf("critique result has nil critique")
		}
	case KindRoutingHint:
		if r.Hint == nil {
			return fmt.Errorf("routing result has nil hint")
		}
	default:
		return fmt.Errorf("unknown result kind %q", r.Kind)
	}
	return nil
}

// Context is the minimal view of session state a role invocation receives:
// the message log tail, the current draft (if any), recent critiques and the
// scratchpad. Roles never see the full session.
type Context struct {
	Messages     []Message  `json:"messages"`
	Draft        *Draft     `json:"draft,omitempty"`
	DraftVersion int        `json:"draft_version,omitempty"`
	Critiques    []Critique `json:"critiques,omitempty"`
	Notes        []Note     `json:"notes,omitempty"`
}

// LastUserMessage returns the most recent user message content, or "".
func (c *Context) LastUserMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Sender == "user" {
			return c.Messages[i].Content
		}
	}
	return ""
}

// Adapter invokes a role with a context view and returns its structured
// result. Implementations must treat repeated calls with the same context as
// independent invocations; the engine owns retry policy.
type Adapter interface {
	Invoke(ctx context.Context, r Role, view Context) (*Result, error)
}

// InvocationError wraps a failure from a role's underlying implementation.
// The engine retries an invocation that fails with this error exactly once.
type InvocationError struct {
	Role Role
	Err  error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("role %s invocation failed: %v", e.Role, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// NewInvocationError wraps err as an invocation failure for r.
func NewInvocationError(r Role, err error) *InvocationError {
	return &InvocationError{Role: r, Err: err}
}
