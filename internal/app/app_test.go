package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/specialistvlad/nodegraph/internal/executor"
	"github.com/specialistvlad/nodegraph/internal/node"
	"github.com/specialistvlad/nodegraph/internal/runlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apiStub answers api nodes without network access and records the URLs it saw.
type apiStub struct {
	mu   sync.Mutex
	urls []string
	fail map[string]bool
}

func (s *apiStub) Register(r *executor.Registry) {
	r.Register(node.KindAPI, func(_ context.Context, cfg node.Config) (any, error) {
		c, err := executor.ConfigAs[*node.APIConfig](cfg)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		s.urls = append(s.urls, c.URL)
		if s.fail[c.URL] {
			return nil, errors.New("HTTP 500: Internal Server Error")
		}
		return map[string]any{"data": []any{map[string]any{"id": 7}}}, nil
	})
}

const chainProject = `
node "api" "users" {
  url = "https://api.example.com/users"
}

node "api" "detail" {
  url        = "https://api.example.com/users/{{users.result.data[0].id}}"
  depends_on = ["users"]
}

node "api" "audit" {
  url        = "https://api.example.com/audit/{{detail.result.data[0].id}}"
  depends_on = ["detail"]
}
`

func writeProject(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.hcl"), []byte(content), 0o644))
	return dir
}

func testConfig() *Config {
	cfg := DefaultConfig()
	return &cfg
}

func TestApp_Run(t *testing.T) {
	// Arrange
	stub := &apiStub{}
	a, logs := SetupAppTest(t, testConfig(), stub)
	dir := writeProject(t, chainProject)

	// Act
	err := a.Run(context.Background(), RunOptions{Paths: []string{dir}})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{
		"https://api.example.com/users",
		"https://api.example.com/users/7",
		"https://api.example.com/audit/7",
	}, stub.urls)
	assert.Equal(t, node.StatusSuccess, a.Engine().Status("audit"))
	assert.Contains(t, logs.String(), "Starting execution")
	assert.Contains(t, logs.String(), "Run summary.")

	entries := a.Log().ForNode("detail")
	require.Len(t, entries, 2)
	assert.Equal(t, runlog.LevelInfo, entries[0].Level)
	assert.Equal(t, runlog.LevelSuccess, entries[1].Level)
	assert.NotEmpty(t, entries[0].RunID)
}

func TestApp_RunFailure(t *testing.T) {
	cfg := testConfig()
	cfg.PropagateBlocked = true
	stub := &apiStub{fail: map[string]bool{"https://api.example.com/users/7": true}}
	a, _ := SetupAppTest(t, cfg, stub)

	err := a.Run(context.Background(), RunOptions{Paths: []string{writeProject(t, chainProject)}})

	require.ErrorIs(t, err, ErrNodesFailed)
	assert.Contains(t, err.Error(), "detail")
	assert.Equal(t, node.StatusBlocked, a.Engine().Status("audit"))
	assert.Len(t, stub.urls, 2)
}

func TestApp_RunFromRoot(t *testing.T) {
	t.Run("unknown root", func(t *testing.T) {
		a, _ := SetupAppTest(t, testConfig(), &apiStub{})
		err := a.Run(context.Background(), RunOptions{Paths: []string{writeProject(t, chainProject)}, Root: "ghost"})
		require.ErrorContains(t, err, `root node "ghost" is not defined`)
	})

	t.Run("downstream only", func(t *testing.T) {
		stub := &apiStub{}
		a, _ := SetupAppTest(t, testConfig(), stub)
		dir := writeProject(t, chainProject)

		err := a.Run(context.Background(), RunOptions{Paths: []string{dir}, Root: "detail"})

		require.NoError(t, err)
		// users never ran, so the template is left as written.
		assert.Equal(t, "https://api.example.com/users/{{users.result.data[0].id}}", stub.urls[0])
		assert.Equal(t, node.StatusPending, a.Engine().Status("users"))
	})
}

func TestApp_LoadWarnings(t *testing.T) {
	a, logs := SetupAppTest(t, testConfig(), &apiStub{})
	dir := writeProject(t, `
node "api" "a" {
  url = "https://x"
}
node "api" "b" {
  url = "https://x/{{a.result.id}}"
}
`)

	_, err := a.Load(context.Background(), dir)

	require.NoError(t, err)
	assert.Contains(t, logs.String(), `node \"b\" references \"a\" without depending on it`)
}

func TestApp_HealthEndpoints(t *testing.T) {
	stub := &apiStub{}
	a, _ := SetupAppTest(t, testConfig(), stub)
	require.NoError(t, a.Run(context.Background(), RunOptions{Paths: []string{writeProject(t, chainProject)}}))
	mux := a.healthMux()

	t.Run("health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK\n", rec.Body.String())
	})

	t.Run("results", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var body map[string]map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Len(t, body, 3)
		assert.Equal(t, "success", body["users"]["status"])
		assert.Equal(t, "users", body["users"]["nodeId"])
	})

	t.Run("logs by node", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs?node=audit", nil))
		var entries []runlog.Entry
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
		assert.Len(t, entries, 2)
	})
}

func TestApp_CoreModules(t *testing.T) {
	a, _ := SetupAppTest(t, testConfig())
	assert.Equal(t, []node.Kind{node.KindAPI, node.KindDB, node.KindFile}, a.Registry().Kinds())
}

func TestApp_ScriptOutputIsLogged(t *testing.T) {
	a, _ := SetupAppTest(t, testConfig())
	dir := writeProject(t, `
node "file" "script" {
  path = "script.sh"
}
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.sh"), []byte("echo '{\"ok\": true}'\necho note >&2\n"), 0o755))

	require.NoError(t, a.Run(context.Background(), RunOptions{Paths: []string{dir}}))

	var levels []runlog.Level
	for _, e := range a.Log().ForNode("script") {
		levels = append(levels, e.Level)
	}
	assert.Equal(t, []runlog.Level{runlog.LevelInfo, runlog.LevelStdout, runlog.LevelStderr, runlog.LevelSuccess}, levels)
}
