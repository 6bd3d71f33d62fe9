package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cerinalabs/foundry/internal/role"
)

const (
	defaultModel       = "gpt-4o"
	defaultTemperature = 0.2
	defaultRateLimit   = 2 // requests per second
	defaultBurst       = 4
)

// Config configures the LLM-backed role adapter.
type Config struct {
	// Model is the chat model identifier (default: gpt-4o).
	Model string

	// APIKey authenticates against the provider. Falls back to the
	// provider's environment variable when empty.
	APIKey string

	// BaseURL overrides the provider endpoint (optional).
	BaseURL string

	// Temperature for generation (default: 0.2).
	Temperature float64

	// RequestsPerSecond caps the call rate across all roles.
	RequestsPerSecond float64
}

// LLMAdapter implements role.Adapter over a chat model. Each invocation is
// independent: the adapter keeps no per-session state, so repeated calls
// with the same context are treated as fresh generations.
type LLMAdapter struct {
	llm         llms.Model
	limiter     *rate.Limiter
	logger      *zap.Logger
	temperature float64
}

// NewLLMAdapter creates an adapter backed by an OpenAI-compatible endpoint.
func NewLLMAdapter(cfg *Config, logger *zap.Logger) (*LLMAdapter, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	opts := []openai.Option{openai.WithModel(model)}
	if cfg.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create llm client: %w", err)
	}

	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRateLimit
	}

	return &LLMAdapter{
		llm:         llm,
		limiter:     rate.NewLimiter(rate.Limit(rps), defaultBurst),
		logger:      logger,
		temperature: temperature,
	}, nil
}

// Invoke runs one role against the model and parses its structured output.
func (a *LLMAdapter) Invoke(ctx context.Context, r role.Role, view role.Context) (*role.Result, error) {
	switch r {
	case role.RoleIntentRouter:
		return a.classifyIntent(ctx, view)
	case role.RoleChat:
		return a.chat(ctx, view)
	case role.RoleDrafter:
		return a.draft(ctx, view)
	case role.RoleSafetyGuardian:
		return a.reviewSafety(ctx, view)
	case role.RoleClinicalCritic:
		return a.reviewClinical(ctx, view)
	}
	return nil, role.NewInvocationError(r, fmt.Errorf("role is not invokable"))
}

func (a *LLMAdapter) classifyIntent(ctx context.Context, view role.Context) (*role.Result, error) {
	var out struct {
		Intent        string `json:"intent"`
		Reason        string `json:"reason"`
		WantsNewDraft bool   `json:"wants_new_draft"`
	}
	prompt := fmt.Sprintf("User message: %q\n\nClassify the intent.", view.LastUserMessage())
	if err := a.completeJSON(ctx, role.RoleIntentRouter, intentPrompt, prompt, &out); err != nil {
		return nil, err
	}
	intent := role.IntentExercise
	if out.Intent == string(role.IntentCasual) {
		intent = role.IntentCasual
	}
	return &role.Result{Kind: role.KindRoutingHint, Hint: &role.RoutingHint{
		Intent:        intent,
		Reason:        out.Reason,
		WantsNewDraft: out.WantsNewDraft,
	}}, nil
}

func (a *LLMAdapter) chat(ctx context.Context, view role.Context) (*role.Result, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := a.completeJSON(ctx, role.RoleChat, chatPrompt, renderConversation(view), &out); err != nil {
		return nil, err
	}
	return &role.Result{Kind: role.KindChatMessage, Message: out.Message}, nil
}

func (a *LLMAdapter) draft(ctx context.Context, view role.Context) (*role.Result, error) {
	var out struct {
		Title        string `json:"title"`
		Content      string `json:"content"`
		Instructions string `json:"instructions"`
	}
	if err := a.completeJSON(ctx, role.RoleDrafter, drafterPrompt, renderDraftingRequest(view), &out); err != nil {
		return nil, err
	}
	return &role.Result{Kind: role.KindDraft, Draft: &role.Draft{
		Title:        out.Title,
		Content:      out.Content,
		Instructions: out.Instructions,
	}}, nil
}

func (a *LLMAdapter) reviewSafety(ctx context.Context, view role.Context) (*role.Result, error) {
	var out struct {
		Approved    *bool    `json:"approved"`
		Rationale   string   `json:"rationale"`
		SafetyScore *float64 `json:"safety_score"`
	}
	if err := a.completeJSON(ctx, role.RoleSafetyGuardian, safetyPrompt, renderReviewRequest(view), &out); err != nil {
		return nil, err
	}
	return &role.Result{Kind: role.KindCritique, Critique: &role.Critique{
		Author:      role.RoleSafetyGuardian,
		Approved:    out.Approved,
		Rationale:   out.Rationale,
		SafetyScore: out.SafetyScore,
	}}, nil
}

func (a *LLMAdapter) reviewClinical(ctx context.Context, view role.Context) (*role.Result, error) {
	var out struct {
		Approved     *bool    `json:"approved"`
		Rationale    string   `json:"rationale"`
		EmpathyScore *float64 `json:"empathy_score"`
		ClarityScore *float64 `json:"clarity_score"`
	}
	if err := a.completeJSON(ctx, role.RoleClinicalCritic, clinicalPrompt, renderReviewRequest(view), &out); err != nil {
		return nil, err
	}
	return &role.Result{Kind: role.KindCritique, Critique: &role.Critique{
		Author:       role.RoleClinicalCritic,
		Approved:     out.Approved,
		Rationale:    out.Rationale,
		EmpathyScore: out.EmpathyScore,
		ClarityScore: out.ClarityScore,
	}}, nil
}

// completeJSON sends one system+user exchange and decodes the model's JSON
// reply into out.
func (a *LLMAdapter) completeJSON(ctx context.Context, r role.Role, system, user string, out any) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return role.NewInvocationError(r, fmt.Errorf("rate limiter: %w", err))
	}

	resp, err := a.llm.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, system),
		llms.TextParts(schema.ChatMessageTypeHuman, user),
	}, llms.WithTemperature(a.temperature))
	if err != nil {
		return role.NewInvocationError(r, err)
	}
	if len(resp.Choices) == 0 {
		return role.NewInvocationError(r, fmt.Errorf("empty response from model"))
	}

	raw := extractJSON(resp.Choices[0].Content)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		a.logger.Debug("unparseable role output",
			zap.String("role", string(r)),
			zap.String("output", truncateForLog(resp.Choices[0].Content)))
		return role.NewInvocationError(r, fmt.Errorf("parse structured output: %w", err))
	}
	return nil
}

// extractJSON strips code fences and surrounding prose, returning the
// outermost JSON object in the text.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

func truncateForLog(s string) string {
	if len(s) <= 300 {
		return s
	}
	return s[:300] + "..."
}

var _ role.Adapter = (*LLMAdapter)(nil)
