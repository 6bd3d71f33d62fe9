// Package config provides configuration loading for foundry.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Engine  EngineConfig  `koanf:"engine"`
	LLM     LLMConfig     `koanf:"llm"`
	Store   StoreConfig   `koanf:"store"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// EngineConfig tunes the orchestration engine.
type EngineConfig struct {
	// RevisionBudget is the maximum Drafter invocations per turn.
	RevisionBudget int `koanf:"revision_budget"`

	// ScoreThreshold is the minimum passing sub-score when a critique
	// carries no explicit verdict.
	ScoreThreshold float64 `koanf:"score_threshold"`
}

// LLMConfig selects and configures the generative backend.
type LLMConfig struct {
	// Provider is "openai" or "scripted" (deterministic canned roles,
	// for local runs without a model).
	Provider string `koanf:"provider"`

	Model       string  `koanf:"model"`
	APIKey      string  `koanf:"api_key"`
	BaseURL     string  `koanf:"base_url"`
	Temperature float64 `koanf:"temperature"`
}

// StoreConfig configures the durable session store.
type StoreConfig struct {
	// Path is the SQLite database file holding session snapshots and
	// the checkpoint log.
	Path string `koanf:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Engine.RevisionBudget < 1 {
		return fmt.Errorf("engine.revision_budget must be >= 1, got %d", c.Engine.RevisionBudget)
	}
	if c.Engine.ScoreThreshold <= 0 || c.Engine.ScoreThreshold > 1 {
		return fmt.Errorf("engine.score_threshold must be in (0, 1], got %v", c.Engine.ScoreThreshold)
	}
	switch c.LLM.Provider {
	case "openai", "scripted":
	default:
		return fmt.Errorf("llm.provider must be openai or scripted, got %q", c.LLM.Provider)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
