package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cerinalabs/foundry/internal/agents"
	"github.com/cerinalabs/foundry/internal/engine"
	"github.com/cerinalabs/foundry/internal/role"
	"github.com/cerinalabs/foundry/internal/session"
)

func newTestServer(t *testing.T, adapter role.Adapter) *Server {
	t.Helper()
	eng, err := engine.New(nil, session.NewMemoryStore(), adapter, zap.NewNop())
	require.NoError(t, err)
	srv, err := New(nil, eng, zap.NewNop())
	require.NoError(t, err)
	return srv
}

func draftingScript() *agents.Scripted {
	return agents.NewScripted().
		Queue(role.RoleIntentRouter, agents.ExerciseHint("wants an exercise", true)).
		Queue(role.RoleDrafter, agents.DraftResult("Breathing", "inhale, exhale", "slowly")).
		Queue(role.RoleSafetyGuardian, agents.Approval(role.RoleSafetyGuardian, "safe", map[string]float64{"safety": 0.95})).
		Queue(role.RoleClinicalCritic, agents.Approval(role.RoleClinicalCritic, "clear", map[string]float64{"empathy": 0.8, "clarity": 0.9}))
}

func doJSON(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, agents.NewScripted())
	rec := doJSON(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestStateUnknownSession(t *testing.T) {
	srv := newTestServer(t, agents.NewScripted())
	rec := doJSON(srv, http.MethodGet, "/state/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStreamRunsTurnAndEmitsSSE(t *testing.T) {
	srv := newTestServer(t, draftingScript())

	rec := doJSON(srv, http.MethodPost, "/stream", `{"thread_id":"t1","message":"exercise please"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	body := rec.Body.String()
	assert.Contains(t, body, "event: progress")
	assert.Contains(t, body, "event: terminal")
	assert.Contains(t, body, `"draft_ready"`)
	assert.Contains(t, body, "Breathing")
	assert.Equal(t, 4, strings.Count(body, "event: progress"))
	assert.Equal(t, 1, strings.Count(body, "event: terminal"))

	// The turn is durable: state is readable afterwards.
	rec = doJSON(srv, http.MethodGet, "/state/t1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"human_review"`)
}

func TestStreamValidatesRequest(t *testing.T) {
	srv := newTestServer(t, agents.NewScripted())

	rec := doJSON(srv, http.MethodPost, "/stream", `{"thread_id":"t1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(srv, http.MethodPost, "/stream", `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveDraftAndApprove(t *testing.T) {
	srv := newTestServer(t, draftingScript())

	rec := doJSON(srv, http.MethodPost, "/stream", `{"thread_id":"t1","message":"exercise please"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(srv, http.MethodPost, "/save-draft",
		`{"thread_id":"t1","title":"Edited","content":"my version","instructions":"my steps"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":2`)

	rec = doJSON(srv, http.MethodPost, "/approve", `{"thread_id":"t1","note":"ship it"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Edited")
	assert.Contains(t, rec.Body.String(), "markdown")
}

func TestApproveUnknownSession(t *testing.T) {
	srv := newTestServer(t, agents.NewScripted())
	rec := doJSON(srv, http.MethodPost, "/approve", `{"thread_id":"nope"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveDraftValidatesRequest(t *testing.T) {
	srv := newTestServer(t, agents.NewScripted())
	rec := doJSON(srv, http.MethodPost, "/save-draft", `{"thread_id":"t1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
