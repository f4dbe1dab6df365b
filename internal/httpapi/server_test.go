package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mcpvector/internal/api"
	"github.com/Aman-CERP/mcpvector/internal/engine"
	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/logging"
	"github.com/Aman-CERP/mcpvector/internal/store"
)

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
	return "run-42", nil
}

type stubSearcher struct {
	err error
}

func (s stubSearcher) Search(context.Context, string, int) ([]store.Match, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []store.Match{
		{Record: store.DocumentRecord{ID: 1, Path: "/docs/a.txt", ContentHash: "h1"}, Score: 0.8},
		{Record: store.DocumentRecord{ID: 2, Path: "/other/b.txt", ContentHash: "h2"}, Score: 0.3},
	}, nil
}

func newTestServer(t *testing.T, b *stubBackend, s stubSearcher) *httptest.Server {
	t.Helper()
	srv := NewServer(api.New(b, s, logging.Discard()), "127.0.0.1:0", logging.Discard())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func detail(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Detail
}

func TestServer_Search(t *testing.T) {
	ts := newTestServer(t, &stubBackend{initialized: true}, stubSearcher{})

	for _, path := range []string{PathSearch, PathAliasSearch} {
		t.Run(path, func(t *testing.T) {
			resp := post(t, ts.URL+path, `{"query":"alpha","top_k":2,"paths":["/docs"]}`)

			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
			var out api.SearchResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
			assert.Equal(t, "alpha", out.Query)
			assert.Equal(t, 2, out.TopK)
			require.Equal(t, 1, out.ResultsCount)
			assert.Equal(t, "/docs/a.txt", out.Results[0].Path)
		})
	}
}

func TestServer_SearchErrors(t *testing.T) {
	tests := []struct {
		name     string
		backend  *stubBackend
		searcher stubSearcher
		body     string
		status   int
	}{
		{"malformed body", &stubBackend{initialized: true}, stubSearcher{}, `{"query":`, http.StatusBadRequest},
		{"empty query", &stubBackend{initialized: true}, stubSearcher{}, `{"query":""}`, http.StatusBadRequest},
		{"not initialized", &stubBackend{}, stubSearcher{}, `{"query":"q"}`, http.StatusServiceUnavailable},
		{
			"embedding failure",
			&stubBackend{initialized: true},
			stubSearcher{err: verrors.New(verrors.ErrCodeEmbeddingFailed, "embed query failed", errors.New("down"))},
			`{"query":"q"}`,
			http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.backend, tt.searcher)

			resp := post(t, ts.URL+PathSearch, tt.body)

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.NotEmpty(t, detail(t, resp))
		})
	}
}

func TestServer_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &stubBackend{initialized: true}, stubSearcher{})

	resp := get(t, ts.URL+PathSearch)

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_StatusAndAlias(t *testing.T) {
	ts := newTestServer(t, &stubBackend{initialized: true}, stubSearcher{})

	for _, path := range []string{PathStatus, PathAliasStatus} {
		resp := get(t, ts.URL+path)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out api.StatusResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "stub-model", out.ModelName)
		assert.Equal(t, 3, out.DocumentCount)
		assert.Equal(t, "/db", out.StorageLocation)
	}
}

func TestServer_RunAcceptsEmptyBody(t *testing.T) {
	b := &stubBackend{initialized: true}
	ts := newTestServer(t, b, stubSearcher{})

	resp := post(t, ts.URL+PathRun, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out api.RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "processing", out.Status)
	assert.Equal(t, api.RunMessage, out.Message)
	assert.Equal(t, "run-42", out.RunID)
	assert.Empty(t, b.runPaths)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, &stubBackend{}, stubSearcher{})

	resp := get(t, ts.URL+PathHealth)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out api.HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "healthy", out.Status)
	assert.False(t, out.Initialized)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	// Given: a server on an ephemeral port
	srv := NewServer(api.New(&stubBackend{}, stubSearcher{}, logging.Discard()), "127.0.0.1:0", logging.Discard())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	client := NewClient("http://"+ln.Addr().String(), time.Second)
	require.Eventually(t, func() bool {
		_, err := client.Health(context.Background())
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	// When: the context is cancelled
	cancel()

	// Then: Serve returns cleanly
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
