package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.RevisionBudget)
	assert.InDelta(t, 0.7, cfg.Engine.ScoreThreshold, 1e-9)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NotEmpty(t, cfg.Store.Path)
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
engine:
  revision_budget: 5
  score_threshold: 0.8
llm:
  provider: scripted
server:
  port: 9100
logging:
  format: console
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Engine.RevisionBudget)
	assert.InDelta(t, 0.8, cfg.Engine.ScoreThreshold, 1e-9)
	assert.Equal(t, "scripted", cfg.LLM.Provider)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "console", cfg.Logging.Format)
	// Unset keys still get defaults.
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600))

	t.Setenv("FOUNDRY_SERVER_PORT", "9200")
	t.Setenv("FOUNDRY_ENGINE_REVISION_BUDGET", "7")
	t.Setenv("FOUNDRY_LLM_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, 7, cfg.Engine.RevisionBudget)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown provider", "FOUNDRY_LLM_PROVIDER", "carrier-pigeon"},
		{"port out of range", "FOUNDRY_SERVER_PORT", "70000"},
		{"bad log format", "FOUNDRY_LOGGING_FORMAT", "xml"},
		{"threshold above one", "FOUNDRY_ENGINE_SCORE_THRESHOLD", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
			require.Error(t, err)
		})
	}
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	big := make([]byte, maxConfigFileSize+1)
	require.NoError(t, os.WriteFile(path, big, 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}
