package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
)

// fakeOllama serves /api/tags and /api/embed with 4-dim vectors.
func fakeOllama(t *testing.T, models []string, embedStatus int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var embedCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		var resp OllamaModelListResponse
		for _, m := range models {
			resp.Models = append(resp.Models, OllamaModelInfo{Name: m})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/api/embed", func(w http.ResponseWriter, r *http.Request) {
		embedCalls.Add(1)
		if embedStatus != http.StatusOK {
			http.Error(w, "nope", embedStatus)
			return
		}
		var req OllamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n := 1
		if list, ok := req.Input.([]any); ok {
			n = len(list)
		}
		resp := OllamaEmbedResponse{Model: req.Model}
		for i := 0; i < n; i++ {
			resp.Embeddings = append(resp.Embeddings, []float64{3, 4, 0, float64(i)})
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &embedCalls
}

func TestOllamaEmbedder_DetectsModelAndDimensions(t *testing.T) {
	// Given: ollama with the model installed under a tag
	srv, _ := fakeOllama(t, []string{"nomic-embed-text:latest"}, http.StatusOK)

	// When: the embedder starts
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})

	// Then: it resolves the tagged name and probes the width
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, "nomic-embed-text:latest", e.ModelName())
	assert.Equal(t, 4, e.Dimensions())
	assert.True(t, e.Available(context.Background()))
}

func TestOllamaEmbedder_MissingModel(t *testing.T) {
	srv, _ := fakeOllama(t, []string{"other"}, http.StatusOK)

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "nomic-embed-text"})

	assert.Equal(t, verrors.ErrCodeEmbedderUnavailable, verrors.GetCode(err))
}

func TestOllamaEmbedder_Unreachable(t *testing.T) {
	srv, _ := fakeOllama(t, nil, http.StatusOK)
	url := srv.URL
	srv.Close()

	_, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: url, Model: "m"})

	assert.True(t, verrors.IsRetryable(err))
}

func TestOllamaEmbedder_EmbedNormalizes(t *testing.T) {
	srv, _ := fakeOllama(t, []string{"m"}, http.StatusOK)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "m", Dimensions: 4, SkipHealthCheck: true})
	require.NoError(t, err)

	v, err := e.Embed(context.Background(), "hello")

	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.6, 0.8, 0, 0}, v, 1e-6)
}

func TestOllamaEmbedder_BatchSkipsBlankAndSplits(t *testing.T) {
	// Given: batch size 2
	srv, calls := fakeOllama(t, []string{"m"}, http.StatusOK)
	e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{
		Host: srv.URL, Model: "m", Dimensions: 4, BatchSize: 2, SkipHealthCheck: true,
	})
	require.NoError(t, err)

	// When: five texts, one blank, are embedded
	out, err := e.EmbedBatch(context.Background(), []string{"a", " ", "b", "c", "d"})

	// Then: blanks are zero vectors and the rest go out in two requests
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.Equal(t, make([]float32, 4), out[1])
	assert.InDelta(t, 1.0, vectorMagnitude(out[4]), 1e-5)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOllamaEmbedder_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		code   string
	}{
		{http.StatusServiceUnavailable, verrors.ErrCodeEmbedderUnavailable},
		{http.StatusTooManyRequests, verrors.ErrCodeEmbedderUnavailable},
		{http.StatusBadRequest, verrors.ErrCodeEmbedderRejected},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv, _ := fakeOllama(t, []string{"m"}, tt.status)
			e, err := NewOllamaEmbedder(context.Background(), OllamaConfig{Host: srv.URL, Model: "m", Dimensions: 4, SkipHealthCheck: true})
			require.NoError(t, err)

			_, err = e.Embed(context.Background(), "x")

			assert.Equal(t, tt.code, verrors.GetCode(err))
		})
	}
}
