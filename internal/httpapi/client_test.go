package httpapi

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mcpvector/internal/api"
)

func TestClient_RoundTrip(t *testing.T) {
	// Given: a server with an initialized backend
	b := &stubBackend{initialized: true}
	ts := newTestServer(t, b, stubSearcher{})
	client := NewClient(ts.URL+"/", time.Second)
	ctx := context.Background()

	// When/Then: every call decodes its response
	res, err := client.Search(ctx, api.SearchRequest{Query: "alpha", TopK: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ResultsCount)

	st, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.DocumentCount)

	run, err := client.Run(ctx, api.RunRequest{Paths: []string{"/docs/a.txt"}})
	require.NoError(t, err)
	assert.Equal(t, "run-42", run.RunID)
	assert.Equal(t, []string{"/docs/a.txt"}, b.runPaths)

	health, err := client.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.Initialized)
	assert.Equal(t, ts.URL, client.BaseURL())
}

func TestClient_StatusError(t *testing.T) {
	ts := newTestServer(t, &stubBackend{}, stubSearcher{})
	client := NewClient(ts.URL, time.Second)

	_, err := client.Search(context.Background(), api.SearchRequest{Query: "alpha"})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "vector search not initialized", se.Detail)
}

func TestClient_Unreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 200*time.Millisecond)

	_, err := client.Health(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot reach mcpvector")
}
