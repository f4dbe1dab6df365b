package cmd

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mcpvector/internal/api"
	"github.com/Aman-CERP/mcpvector/internal/config"
	"github.com/Aman-CERP/mcpvector/internal/engine"
	"github.com/Aman-CERP/mcpvector/internal/httpapi"
	"github.com/Aman-CERP/mcpvector/internal/logging"
	"github.com/Aman-CERP/mcpvector/internal/store"
)

// isolate points the state directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	for _, k := range []string{config.EnvHost, config.EnvPort, config.EnvModel, config.EnvDBPath, config.EnvWatchFolders, config.EnvExtensions, config.EnvEmbedder, config.EnvOllamaHost, config.EnvLogLevel} {
		t.Setenv(k, "")
	}
	return home
}

type stubBackend struct {
	initialized bool
	runPaths    []string
}

func (b *stubBackend) Initialized() bool { return b.initialized }
func (b *stubBackend) ModelName() string { return "stub-model" }

func (b *stubBackend) Status(context.Context) (engine.Status, error) {
	return engine.Status{
		Initialized:  true,
		WatchFolders: []string{"/docs"},
		Store:        store.Status{DocumentCount: 3, EmbeddingDimension: 8, StorageLocation: "/db"},
	}, nil
}

func (b *stubBackend) Run(_ context.Context, paths []string) (string, error) {
	b.runPaths = paths
	return "run-7", nil
}

type stubSearcher struct{}

func (stubSearcher) Search(context.Context, string, int) ([]store.Match, error) {
	return []store.Match{
		{Record: store.DocumentRecord{ID: 1, Path: "/docs/a.txt", ContentHash: "h1"}, Score: 0.8},
		{Record: store.DocumentRecord{ID: 2, Path: "/other/b.txt", ContentHash: "h2"}, Score: 0.3},
	}, nil
}

func newTestServer(t *testing.T, b *stubBackend) *httptest.Server {
	t.Helper()
	srv := httpapi.NewServer(api.New(b, stubSearcher{}, logging.Discard()), "127.0.0.1:0", logging.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
