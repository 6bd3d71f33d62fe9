package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load reads configuration from the YAML file at configPath, then overrides
// with FOUNDRY_-prefixed environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (FOUNDRY_ENGINE_REVISION_BUDGET, FOUNDRY_LLM_API_KEY, ...)
//  2. YAML config file (default: ~/.config/foundry/config.yaml)
//  3. Hardcoded defaults
//
// Environment variables map section-first: FOUNDRY_SERVER_HOST ->
// server.host, FOUNDRY_ENGINE_REVISION_BUDGET -> engine.revision_budget.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "foundry", "config.yaml")
	}

	if info, err := os.Stat(configPath); err == nil {
		if info.Size() > maxConfigFileSize {
			return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
		}
		content, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// FOUNDRY_SECTION_FIELD_NAME -> section.field_name: split on the
	// first underscore after the prefix; remaining underscores belong to
	// the field name.
	if err := k.Load(env.Provider("FOUNDRY_", ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, "FOUNDRY_"))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Engine.RevisionBudget == 0 {
		cfg.Engine.RevisionBudget = 3
	}
	if cfg.Engine.ScoreThreshold == 0 {
		cfg.Engine.ScoreThreshold = 0.7
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gpt-4o"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}

	if cfg.Store.Path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Store.Path = filepath.Join(home, ".config", "foundry", "sessions.db")
		} else {
			cfg.Store.Path = "foundry-sessions.db"
		}
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
