package integration

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mcpvector/internal/api"
	"github.com/Aman-CERP/mcpvector/internal/config"
	"github.com/Aman-CERP/mcpvector/internal/engine"
	"github.com/Aman-CERP/mcpvector/internal/httpapi"
	"github.com/Aman-CERP/mcpvector/internal/logging"
)

const waitFor = 10 * time.Second

type stack struct {
	cfg    *config.Config
	root   string
	engine *engine.Engine
	svc    *api.Service
}

// newConfig builds a config for one watch root using static embeddings,
// so nothing reaches the network.
func newConfig(t *testing.T, root, storage string) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Watch.Folders = []string{root}
	cfg.Watch.Debounce = config.Duration(50 * time.Millisecond)
	cfg.Watch.PollInterval = config.Duration(100 * time.Millisecond)
	cfg.Storage.Path = storage
	cfg.Embeddings.Provider = "static"
	cfg.Embeddings.Dimensions = 32
	cfg.Worker.PollInterval = config.Duration(20 * time.Millisecond)
	cfg.Worker.JoinTimeout = config.Duration(2 * time.Second)
	_, err := cfg.Finalize()
	require.NoError(t, err)
	return cfg
}

func newStack(t *testing.T) *stack {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Setenv(config.EnvHome, t.TempDir())

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return &stack{cfg: newConfig(t, root, t.TempDir()), root: root}
}

func (s *stack) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(s.root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// start runs the engine and waits for the startup reconciliation.
func (s *stack) start(t *testing.T) {
	t.Helper()
	s.engine = engine.New(s.cfg, engine.Options{Logger: logging.Discard()})
	require.NoError(t, s.engine.Start(context.Background()))
	t.Cleanup(func() { _ = s.engine.Shutdown(context.Background()) })
	require.NoError(t, s.engine.Wait(context.Background()))
	s.svc = api.ForEngine(s.engine, logging.Discard())
}

// client serves the engine over HTTP and returns a client for it.
func (s *stack) client(t *testing.T) *httpapi.Client {
	t.Helper()
	srv := httpapi.NewServer(s.svc, "127.0.0.1:0", logging.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return httpapi.NewClient(ts.URL, 5*time.Second)
}

func documents(t *testing.T, c *httpapi.Client) int {
	t.Helper()
	st, err := c.Status(context.Background())
	require.NoError(t, err)
	return st.DocumentCount
}
