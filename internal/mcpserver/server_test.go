package mcpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cerinalabs/foundry/internal/agents"
	"github.com/cerinalabs/foundry/internal/engine"
	"github.com/cerinalabs/foundry/internal/session"
)

func TestNewRequiresEngine(t *testing.T) {
	_, err := New(nil, nil, zap.NewNop())
	require.Error(t, err)
}

func TestNewRegistersTools(t *testing.T) {
	eng, err := engine.New(nil, session.NewMemoryStore(), agents.NewScripted(), zap.NewNop())
	require.NoError(t, err)

	srv, err := New(&Config{Name: "foundry-test", Version: "0.0.0"}, eng, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, srv.mcp)
}
