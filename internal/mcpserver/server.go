// Package mcpserver exposes the orchestration engine as MCP tools over the
// stdio transport.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/cerinalabs/foundry/internal/engine"
	"github.com/cerinalabs/foundry/internal/render"
)

// Config configures the MCP server.
type Config struct {
	Name    string
	Version string
}

// Server wraps the MCP stdio server around the engine.
type Server struct {
	mcp    *mcp.Server
	eng    *engine.Engine
	logger *zap.Logger
}

// New creates an MCP server exposing the engine's tools.
func New(cfg *Config, eng *engine.Engine, logger *zap.Logger) (*Server, error) {
	if cfg == nil {
		cfg = &Config{Name: "foundry", Version: "dev"}
	}
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    cfg.Name,
				Version: cfg.Version,
			},
			nil,
		),
		eng:    eng,
		logger: logger,
	}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server on the stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

type createExerciseInput struct {
	SessionKey string `json:"session_key" jsonschema:"required,Session identifier; reuse to continue a session"`
	Request    string `json:"request" jsonschema:"required,What the exercise should cover"`
}

type createExerciseOutput struct {
	Outcome    string   `json:"outcome" jsonschema:"How the turn ended (draft_ready, chat_reply, aborted...)"`
	Version    int      `json:"version,omitempty" jsonschema:"Draft version produced"`
	Markdown   string   `json:"markdown,omitempty" jsonschema:"Formatted exercise document"`
	Reply      string   `json:"reply,omitempty" jsonschema:"Conversational reply for casual requests"`
	Unresolved bool     `json:"unresolved,omitempty" jsonschema:"True if the revision budget ran out before approval"`
	Steps      []string `json:"steps" jsonschema:"Role invocations executed, in order"`
}

type sessionStateInput struct {
	SessionKey string `json:"session_key" jsonschema:"required,Session identifier"`
}

type sessionStateOutput struct {
	State         string `json:"state" jsonschema:"Current supervisor state"`
	Steps         int    `json:"steps" jsonschema:"Role invocations executed so far"`
	Messages      int    `json:"messages" jsonschema:"Message log length"`
	DraftVersions int    `json:"draft_versions" jsonschema:"Number of draft versions in the ledger"`
	LatestTitle   string `json:"latest_title,omitempty" jsonschema:"Title of the latest draft version"`
	Unresolved    bool   `json:"unresolved" jsonschema:"True if the last drafting turn ran out of budget"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "create_exercise",
		Description: "Draft a structured exercise through the review pipeline and return the approved document",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args createExerciseInput) (*mcp.CallToolResult, createExerciseOutput, error) {
		terminal, progress, err := s.eng.StepSync(ctx, args.SessionKey, args.Request)
		if err != nil {
			return nil, createExerciseOutput{}, fmt.Errorf("run turn: %w", err)
		}

		out := createExerciseOutput{Outcome: string(terminal.Kind), Reply: terminal.Reply}
		for _, p := range progress {
			out.Steps = append(out.Steps, fmt.Sprintf("%s: %s", p.Role, p.Summary))
		}
		if terminal.Draft != nil && terminal.Metadata != nil {
			out.Version = terminal.Draft.Version
			out.Markdown = render.Exercise(terminal.Draft, *terminal.Metadata)
		}
		out.Unresolved = terminal.Kind == engine.TerminalAborted

		text := out.Markdown
		if text == "" {
			text = out.Reply
		}
		if text == "" {
			text = fmt.Sprintf("Turn ended: %s (%s)", terminal.Kind, terminal.Reason)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: text}},
		}, out, nil
	})

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_session_state",
		Description: "Inspect a drafting session: supervisor state, step count, and draft history",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args sessionStateInput) (*mcp.CallToolResult, sessionStateOutput, error) {
		sess, err := s.eng.GetState(ctx, args.SessionKey)
		if err != nil {
			return nil, sessionStateOutput{}, fmt.Errorf("load session: %w", err)
		}

		out := sessionStateOutput{
			State:         string(sess.State),
			Steps:         sess.Steps,
			Messages:      len(sess.Messages),
			DraftVersions: len(sess.Ledger.Versions),
			Unresolved:    sess.Unresolved,
		}
		if latest := sess.Ledger.Latest(); latest != nil {
			out.LatestTitle = latest.Title
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("Session %s: %s", args.SessionKey, out.State)}},
		}, out, nil
	})
}
