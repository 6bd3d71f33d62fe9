package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/cerinalabs/foundry/internal/gate"
	"github.com/cerinalabs/foundry/internal/ledger"
	"github.com/cerinalabs/foundry/internal/role"
	"github.com/cerinalabs/foundry/internal/session"
	"github.com/cerinalabs/foundry/internal/supervisor"
)

const instrumentationName = "github.com/cerinalabs/foundry/internal/engine"

// Config configures the orchestration engine.
type Config struct {
	// RevisionBudget is the maximum number of Drafter invocations per
	// turn (default: 3).
	RevisionBudget int

	// ScoreThreshold is the minimum passing sub-score when a critique
	// carries no explicit verdict (default: gate.DefaultThreshold).
	ScoreThreshold float64

	// MessageTail limits how many log entries a role invocation sees
	// (default: 20).
	MessageTail int

	// NoteTail limits how many scratchpad notes a role invocation sees
	// (default: 6).
	NoteTail int

	// EventBuffer sizes the per-turn event channel (default: 16).
	EventBuffer int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		RevisionBudget: 3,
		ScoreThreshold: gate.DefaultThreshold,
		MessageTail:    20,
		NoteTail:       6,
		EventBuffer:    16,
	}
}

// Engine is the session orchestrator.
type Engine struct {
	config  *Config
	store   session.Store
	adapter role.Adapter
	sv      *supervisor.Supervisor
	leases  *session.Leases
	logger  *zap.Logger

	// Telemetry
	tracer            trace.Tracer
	meter             metric.Meter
	turnCounter       metric.Int64Counter
	invocationCounter metric.Int64Counter
	checkpointCounter metric.Int64Counter
}

// New creates an engine over the given store and role adapter.
func New(cfg *Config, store session.Store, adapter role.Adapter, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RevisionBudget < 1 {
		cfg.RevisionBudget = DefaultConfig().RevisionBudget
	}
	if cfg.MessageTail < 1 {
		cfg.MessageTail = DefaultConfig().MessageTail
	}
	if cfg.NoteTail < 1 {
		cfg.NoteTail = DefaultConfig().NoteTail
	}
	if cfg.EventBuffer < 1 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if adapter == nil {
		return nil, errors.New("role adapter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		config:  cfg,
		store:   store,
		adapter: adapter,
		sv:      supervisor.New(gate.New(cfg.ScoreThreshold), cfg.RevisionBudget),
		leases:  session.NewLeases(),
		logger:  logger,
		tracer:  otel.Tracer(instrumentationName),
		meter:   otel.Meter(instrumentationName),
	}
	e.initMetrics()
	return e, nil
}

// initMetrics initializes OpenTelemetry metrics.
func (e *Engine) initMetrics() {
	var err error

	e.turnCounter, err = e.meter.Int64Counter(
		"foundry.engine.turns_total",
		metric.WithDescription("Total number of turns executed"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		e.logger.Warn("failed to create turn counter", zap.Error(err))
	}

	e.invocationCounter, err = e.meter.Int64Counter(
		"foundry.engine.role_invocations_total",
		metric.WithDescription("Total number of role invocations"),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		e.logger.Warn("failed to create invocation counter", zap.Error(err))
	}

	e.checkpointCounter, err = e.meter.Int64Counter(
		"foundry.engine.checkpoints_total",
		metric.WithDescription("Total number of session checkpoints written"),
		metric.WithUnit("{checkpoint}"),
	)
	if err != nil {
		e.logger.Warn("failed to create checkpoint counter", zap.Error(err))
	}
}

// Step runs one turn for the session key, appending userInput to the message
// log. It returns an ordered event stream: zero or more progress events, one
// per completed role invocation, then exactly one terminal event, after
// which the channel is closed.
//
// A second Step for the same key while one is in flight fails fast with
// session.ErrSessionBusy. Steps for different keys run concurrently.
func (e *Engine) Step(ctx context.Context, key, userInput string) (<-chan Event, error) {
	if key == "" {
		return nil, errors.New("session key is required")
	}
	if err := e.leases.Acquire(key); err != nil {
		return nil, err
	}

	sess, err := e.loadOrCreate(ctx, key)
	if err != nil {
		e.leases.Release(key)
		return nil, err
	}

	events := make(chan Event, e.config.EventBuffer)
	go e.runTurn(ctx, sess, userInput, events)
	return events, nil
}

// StepSync runs a turn to completion, collecting progress events, for
// callers that do not stream.
func (e *Engine) StepSync(ctx context.Context, key, userInput string) (*TerminalResult, []ProgressEvent, error) {
	events, err := e.Step(ctx, key, userInput)
	if err != nil {
		return nil, nil, err
	}
	var progress []ProgressEvent
	for ev := range events {
		if ev.Progress != nil {
			progress = append(progress, *ev.Progress)
		}
		if ev.Terminal != nil {
			return ev.Terminal, progress, nil
		}
	}
	return nil, progress, errors.New("event stream closed without terminal result")
}

// GetState returns a read-only snapshot of the session. Two calls without an
// intervening Step return identical snapshots.
func (e *Engine) GetState(ctx context.Context, key string) (*session.Session, error) {
	return e.store.Load(ctx, key)
}

// Checkpoints returns the session's append-only checkpoint log.
func (e *Engine) Checkpoints(ctx context.Context, key string) ([]session.Checkpoint, error) {
	return e.store.Checkpoints(ctx, key)
}

// Approve records the human editor's sign-off on the current draft version
// and checkpoints the session. The approval is stored as a critique on the
// ledger so the audit trail carries it alongside the reviewer verdicts.
func (e *Engine) Approve(ctx context.Context, key, note string) (*ledger.DraftVersion, error) {
	if err := e.leases.Acquire(key); err != nil {
		return nil, err
	}
	defer e.leases.Release(key)

	sess, err := e.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	latest := sess.Ledger.Latest()
	if latest == nil {
		return nil, fmt.Errorf("%w: nothing to approve", ledger.ErrVersionNotFound)
	}

	approved := true
	if err := sess.Ledger.AttachCritique(role.Critique{
		Author:        role.RoleHuman,
		TargetVersion: latest.Version,
		Approved:      &approved,
		Rationale:     note,
	}); err != nil {
		return nil, err
	}
	sess.AppendNote(role.RoleHuman, fmt.Sprintf("Approved v%d", latest.Version))
	sess.UpdatedAt = time.Now().UTC()

	if err := e.checkpoint(ctx, sess); err != nil {
		return nil, err
	}
	return sess.Ledger.Latest(), nil
}

// OverwriteDraft appends a new immutable version authored by a human editor,
// without re-triggering review. The originalInput is recorded on the
// scratchpad for the audit trail.
func (e *Engine) OverwriteDraft(ctx context.Context, key, title, content, instructions, originalInput string) (*ledger.DraftVersion, error) {
	if err := e.leases.Acquire(key); err != nil {
		return nil, err
	}
	defer e.leases.Release(key)

	sess, err := e.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	version := sess.Ledger.Append(role.RoleHuman, role.Draft{
		Title:        title,
		Content:      content,
		Instructions: instructions,
	}, "human edit")
	sess.AppendNote(role.RoleHuman, fmt.Sprintf("Edited draft, created v%d: %s", version, title))
	if originalInput != "" {
		sess.AppendNote(role.RoleHuman, fmt.Sprintf("Original request: %s", originalInput))
	}
	sess.UpdatedAt = time.Now().UTC()

	if err := e.checkpoint(ctx, sess); err != nil {
		return nil, err
	}
	return sess.Ledger.Latest(), nil
}

// loadOrCreate loads the session for key, creating a fresh one on the first
// message for a new key.
func (e *Engine) loadOrCreate(ctx context.Context, key string) (*session.Session, error) {
	sess, err := e.store.Load(ctx, key)
	if errors.Is(err, session.ErrNotFound) {
		return session.New(key), nil
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// runTurn executes the step loop for one session. It owns the lease and the
// event channel for the duration of the turn.
func (e *Engine) runTurn(ctx context.Context, sess *session.Session, userInput string, events chan<- Event) {
	defer e.leases.Release(sess.Key)
	defer close(events)

	ctx, span := e.tracer.Start(ctx, "engine.turn",
		trace.WithAttributes(attribute.String("session_key", sess.Key)))
	defer span.End()

	log := e.logger.With(zap.String("session_key", sess.Key))

	if userInput != "" {
		sess.AppendMessage("user", userInput)
	}
	resumed := !sess.State.Terminal() && sess.State != session.StateInit && sess.Steps > 0
	if !resumed {
		// Fresh turn: route intent and reset the per-turn budget.
		sess.State = session.StateRouteIntent
		sess.TurnRevisions = 0
		sess.Unresolved = false
	} else {
		log.Info("resuming interrupted turn", zap.String("state", string(sess.State)), zap.Int("step", sess.Steps))
	}

	for {
		// Cancellation is honored between role invocations only; the
		// session is already durable at its last fully-applied state.
		if ctx.Err() != nil {
			log.Info("turn cancelled", zap.Int("step", sess.Steps))
			e.emitTerminal(events, sess, TerminalCancelled, ctx.Err().Error())
			return
		}

		decision := e.sv.Next(sess)
		if decision.Terminal != "" {
			e.emitTerminal(events, sess, terminalKindFor(decision.Terminal), e.terminalReason(sess))
			return
		}

		result, err := e.invoke(ctx, decision.Next, sess.View(e.config.MessageTail, e.config.NoteTail))
		if err != nil {
			log.Error("role invocation failed twice", zap.String("role", string(decision.Next)), zap.Error(err))
			sess.AppendNote(decision.Next, fmt.Sprintf("Invocation failed: %v", err))
			sess.State = session.StateAborted
			sess.Unresolved = true
			sess.UpdatedAt = time.Now().UTC()
			if cerr := e.checkpoint(ctx, sess); cerr != nil {
				log.Error("checkpoint after failure also failed", zap.Error(cerr))
			}
			e.emitTerminal(events, sess, TerminalErrored, err.Error())
			return
		}

		summary, err := e.fold(sess, decision.Next, result)
		if err != nil {
			// Integrity errors (e.g. a critique targeting a missing
			// version) are never retried.
			log.Error("failed to fold role result", zap.String("role", string(decision.Next)), zap.Error(err))
			sess.State = session.StateAborted
			sess.Unresolved = true
			e.emitTerminal(events, sess, TerminalErrored, err.Error())
			return
		}

		nextState, reason := e.sv.Transition(sess, result)
		sess.State = nextState
		if nextState == session.StateAborted && reason == supervisor.ReasonBudgetExhausted {
			sess.Unresolved = true
		}
		sess.UpdatedAt = time.Now().UTC()

		if err := e.checkpoint(ctx, sess); err != nil {
			log.Error("checkpoint failed, aborting turn", zap.Error(err))
			e.emitTerminal(events, sess, TerminalErrored, err.Error())
			return
		}

		log.Debug("step complete",
			zap.String("role", string(decision.Next)),
			zap.Int("step", sess.Steps),
			zap.String("state", string(sess.State)),
			zap.String("reason", reason))

		events <- Event{Progress: &ProgressEvent{
			Role:    decision.Next,
			Summary: summary,
			Step:    sess.Steps,
		}}
	}
}

// invoke calls the role adapter, retrying a failed invocation exactly once
// with the same inputs. The engine never fabricates a result.
func (e *Engine) invoke(ctx context.Context, r role.Role, view role.Context) (*role.Result, error) {
	result, err := e.adapter.Invoke(ctx, r, view)
	if err != nil && ctx.Err() == nil {
		e.logger.Warn("role invocation failed, retrying once",
			zap.String("role", string(r)), zap.Error(err))
		result, err = e.adapter.Invoke(ctx, r, view)
	}
	if err != nil {
		var invErr *role.InvocationError
		if !errors.As(err, &invErr) {
			err = role.NewInvocationError(r, err)
		}
		e.countInvocation(ctx, r, false)
		return nil, err
	}
	if verr := result.Validate(); verr != nil {
		e.countInvocation(ctx, r, false)
		return nil, role.NewInvocationError(r, verr)
	}
	e.countInvocation(ctx, r, true)
	return result, nil
}

// fold merges one role's structured output into the session and returns a
// short summary for the progress event. It increments the step counter: the
// counter equals the number of role invocations executed.
func (e *Engine) fold(sess *session.Session, r role.Role, result *role.Result) (string, error) {
	sess.Steps++
	sess.LastRole = r

	switch result.Kind {
	case role.KindRoutingHint:
		return fmt.Sprintf("Intent: %s (%s)", supervisor.IntentOf(result), result.Hint.Reason), nil

	case role.KindChatMessage:
		sess.AppendMessage("assistant", result.Message)
		return "Replied", nil

	case role.KindDraft:
		changeNote := "Initial draft"
		if len(sess.Ledger.Versions) > 0 {
			changeNote = fmt.Sprintf("Revised after %d critiques", len(sess.Ledger.Critiques))
		}
		version := sess.Ledger.Append(role.RoleDrafter, *result.Draft, changeNote)
		sess.TurnRevisions++
		sess.AppendNote(role.RoleDrafter, fmt.Sprintf("Created v%d: %s. %s", version, result.Draft.Title, changeNote))
		sess.AppendMessage("assistant", fmt.Sprintf("Drafted: %s (v%d)", result.Draft.Title, version))
		return fmt.Sprintf("Drafted v%d: %s", version, result.Draft.Title), nil

	case role.KindCritique:
		latest := sess.Ledger.Latest()
		if latest == nil {
			return "", fmt.Errorf("%w: critique with no draft", ledger.ErrVersionNotFound)
		}
		critique := *result.Critique
		critique.Author = r
		critique.TargetVersion = latest.Version
		if err := sess.Ledger.AttachCritique(critique); err != nil {
			return "", err
		}
		// Feed the verdict back through the result so the transition
		// sees the version the critique was attached to.
		result.Critique = &critique

		outcome := "needs work"
		if critique.Approved != nil && *critique.Approved {
			outcome = "approved"
		}
		sess.AppendNote(r, fmt.Sprintf("Review of v%d %s: %s", latest.Version, outcome, truncate(critique.Rationale, 200)))
		return fmt.Sprintf("%s review of v%d: %s", reviewName(r), latest.Version, outcome), nil
	}
	return "", fmt.Errorf("unknown result kind %q from role %s", result.Kind, r)
}

// checkpoint persists the full session snapshot before the next role runs.
func (e *Engine) checkpoint(ctx context.Context, sess *session.Session) error {
	if err := e.store.Save(ctx, sess); err != nil {
		if !errors.Is(err, session.ErrCheckpointFailed) {
			err = fmt.Errorf("%w: %v", session.ErrCheckpointFailed, err)
		}
		return err
	}
	if e.checkpointCounter != nil {
		e.checkpointCounter.Add(ctx, 1)
	}
	return nil
}

// emitTerminal sends the single terminal event that ends a turn. The latest
// draft and metadata ride along on every outcome so callers always get the
// best-known partial state.
func (e *Engine) emitTerminal(events chan<- Event, sess *session.Session, kind TerminalKind, reason string) {
	result := &TerminalResult{Kind: kind, Reason: reason}
	if latest := sess.Ledger.Latest(); latest != nil {
		v := *latest
		meta := sess.Ledger.Metadata()
		result.Draft = &v
		result.Metadata = &meta
	}
	if kind == TerminalChatReply {
		result.Reply = lastAssistantMessage(sess)
		result.Reason = ""
	}
	if e.turnCounter != nil {
		e.turnCounter.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("outcome", string(kind))))
	}
	events <- Event{Terminal: result}
}

func (e *Engine) countInvocation(ctx context.Context, r role.Role, ok bool) {
	if e.invocationCounter == nil {
		return
	}
	e.invocationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("role", string(r)),
		attribute.Bool("ok", ok),
	))
}

// terminalReason maps terminal states reached through Next (resumed or
// already-terminal sessions) onto a reason string.
func (e *Engine) terminalReason(sess *session.Session) string {
	if sess.State == session.StateAborted {
		if sess.Unresolved {
			return supervisor.ReasonBudgetExhausted
		}
		return "aborted"
	}
	return ""
}

func terminalKindFor(state session.State) TerminalKind {
	switch state {
	case session.StateChatDone:
		return TerminalChatReply
	case session.StateHumanReview:
		return TerminalDraftReady
	case session.StateAborted:
		return TerminalAborted
	}
	return TerminalErrored
}

func lastAssistantMessage(sess *session.Session) string {
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if sess.Messages[i].Sender == "assistant" {
			return sess.Messages[i].Content
		}
	}
	return ""
}

func reviewName(r role.Role) string {
	switch r {
	case role.RoleSafetyGuardian:
		return "Safety"
	case role.RoleClinicalCritic:
		return "Clinical"
	}
	return string(r)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
