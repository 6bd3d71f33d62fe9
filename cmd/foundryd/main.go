// Foundryd is a multi-agent drafting daemon.
//
// It routes user requests through a drafter and two independent reviewers
// until a structured exercise passes both quality gates, checkpointing every
// step to a local SQLite database.
//
// Usage:
//
//	# HTTP server (SSE streaming API)
//	foundryd serve
//
//	# MCP server on stdio, for agent hosts
//	foundryd mcp
//
// Configuration is loaded from ~/.config/foundry/config.yaml and FOUNDRY_*
// environment variables.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cerinalabs/foundry/internal/agents"
	"github.com/cerinalabs/foundry/internal/config"
	"github.com/cerinalabs/foundry/internal/engine"
	"github.com/cerinalabs/foundry/internal/httpapi"
	"github.com/cerinalabs/foundry/internal/logging"
	"github.com/cerinalabs/foundry/internal/mcpserver"
	"github.com/cerinalabs/foundry/internal/role"
	"github.com/cerinalabs/foundry/internal/session"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:           "foundryd",
		Short:         "Multi-agent exercise drafting daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to config file")

	root.AddCommand(serveCmd(), mcpCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := setup(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			srv, err := httpapi.New(&httpapi.Config{
				Host:            app.cfg.Server.Host,
				Port:            app.cfg.Server.Port,
				ShutdownTimeout: app.cfg.Server.ShutdownTimeout,
			}, app.eng, app.logger.Named("http"))
			if err != nil {
				return err
			}
			return srv.Start(ctx)
		},
	}
}

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := setup(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			srv, err := mcpserver.New(&mcpserver.Config{
				Name:    "foundry",
				Version: version,
			}, app.eng, app.logger.Named("mcp"))
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("foundryd\n")
			fmt.Printf("Version:    %s\n", version)
			fmt.Printf("Commit:     %s\n", gitCommit)
			fmt.Printf("Build Date: %s\n", buildDate)
		},
	}
}

// app bundles the wired daemon dependencies.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *session.SQLiteStore
	eng    *engine.Engine
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close session store", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}

// setup loads config and wires store, adapter, and engine.
func setup(cmd *cobra.Command) (*app, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, err
	}

	store, err := session.NewSQLiteStore(cfg.Store.Path, logger.Named("store"))
	if err != nil {
		return nil, err
	}

	adapter, err := buildAdapter(cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	eng, err := engine.New(&engine.Config{
		RevisionBudget: cfg.Engine.RevisionBudget,
		ScoreThreshold: cfg.Engine.ScoreThreshold,
	}, store, adapter, logger.Named("engine"))
	if err != nil {
		store.Close()
		return nil, err
	}

	logger.Info("foundryd initialized",
		zap.String("provider", cfg.LLM.Provider),
		zap.String("store", cfg.Store.Path),
		zap.Int("revision_budget", cfg.Engine.RevisionBudget))
	return &app{cfg: cfg, logger: logger, store: store, eng: eng}, nil
}

func buildAdapter(cfg *config.Config, logger *zap.Logger) (role.Adapter, error) {
	switch cfg.LLM.Provider {
	case "scripted":
		return scriptedAdapter(), nil
	default:
		return agents.NewLLMAdapter(&agents.Config{
			Model:       cfg.LLM.Model,
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
		}, logger.Named("agents"))
	}
}

// scriptedAdapter serves every turn with canned role outputs. Useful for
// smoke-testing the pipeline without model credentials.
func scriptedAdapter() role.Adapter {
	return agents.NewScripted().
		Default(role.RoleIntentRouter, agents.ExerciseHint("scripted provider always drafts", true)).
		Default(role.RoleChat, agents.ChatReply("Hi! Ask me to draft an exercise.")).
		Default(role.RoleDrafter, agents.DraftResult(
			"Thought Record",
			"1. Describe the situation.\n2. Note the automatic thought.\n3. Rate how strongly you believe it.\n4. List evidence for and against.\n5. Write a balanced alternative thought.",
			"Work through the steps in order, in writing, when you notice a strong negative feeling.")).
		Default(role.RoleSafetyGuardian, agents.Approval(role.RoleSafetyGuardian,
			"No crisis-adjacent content.", map[string]float64{"safety": 0.95})).
		Default(role.RoleClinicalCritic, agents.Approval(role.RoleClinicalCritic,
			"Clear steps, supportive tone.", map[string]float64{"empathy": 0.85, "clarity": 0.9}))
}
