package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
)

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
// Retries and timeouts are left to GuardedEmbedder.
type OllamaEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    OllamaConfig
	modelName string
	dims      int

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder connects to Ollama, checks the model is installed and
// detects its dimension.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	def := DefaultOllamaConfig()
	if cfg.Host == "" {
		cfg.Host = def.Host
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = def.PoolSize
	}

	// No client-level timeout: callers bound each request with a context.
	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		MaxConnsPerHost:     cfg.PoolSize * 2,
		IdleConnTimeout:     30 * time.Second,
	}

	e := &OllamaEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
		modelName: cfg.Model,
		dims:      cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()

		name, err := e.findModel(checkCtx)
		if err != nil {
			transport.CloseIdleConnections()
			return nil, err
		}
		e.modelName = name

		if e.dims == 0 {
			vecs, err := e.doEmbed(checkCtx, []string{"dimension probe"})
			if err != nil {
				transport.CloseIdleConnections()
				return nil, fmt.Errorf("detect embedding dimensions: %w", err)
			}
			if len(vecs) == 0 || len(vecs[0]) == 0 {
				transport.CloseIdleConnections()
				return nil, verrors.New(verrors.ErrCodeEmbedderRejected, "ollama returned an empty embedding", nil)
			}
			e.dims = len(vecs[0])
		}
	}

	if e.dims == 0 {
		return nil, verrors.ConfigError("embedding dimensions unknown; set dimensions or enable the health check", nil)
	}

	return e, nil
}

func (e *OllamaEmbedder) listModels(ctx context.Context) ([]OllamaModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var result OllamaModelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, verrors.New(verrors.ErrCodeEmbedderRejected, "decode model list", err)
	}
	return result.Models, nil
}

// findModel matches the configured model against the installed ones,
// with or without a tag.
func (e *OllamaEmbedder) findModel(ctx context.Context) (string, error) {
	models, err := e.listModels(ctx)
	if err != nil {
		return "", err
	}

	want := strings.ToLower(e.config.Model)
	wantBase := strings.Split(want, ":")[0]
	for _, m := range models {
		name := strings.ToLower(m.Name)
		if name == want || strings.Split(name, ":")[0] == wantBase {
			return m.Name, nil
		}
	}

	return "", verrors.New(verrors.ErrCodeEmbedderUnavailable,
		fmt.Sprintf("model %q is not installed in ollama", e.config.Model), nil).
		WithSuggestion(fmt.Sprintf("Run: ollama pull %s", e.config.Model))
}

// Embed generates the embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return make([]float32, e.dims), nil
	}

	vecs, err := e.doEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, verrors.New(verrors.ErrCodeEmbedderRejected,
			fmt.Sprintf("expected 1 embedding, got %d", len(vecs)), nil)
	}
	return vecs[0], nil
}

// EmbedBatch sends non-blank texts in batches of BatchSize.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := e.checkOpen(); err != nil {
		return nil, err
	}

	results := make([][]float32, len(texts))
	var idx []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			results[i] = make([]float32, e.dims)
			continue
		}
		idx = append(idx, i)
	}

	for start := 0; start < len(idx); start += e.config.BatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+e.config.BatchSize, len(idx))

		batch := make([]string, 0, end-start)
		for _, i := range idx[start:end] {
			batch = append(batch, texts[i])
		}
		vecs, err := e.doEmbed(ctx, batch)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(batch) {
			return nil, verrors.New(verrors.ErrCodeEmbedderRejected,
				fmt.Sprintf("expected %d embeddings, got %d", len(batch), len(vecs)), nil)
		}
		for j, i := range idx[start:end] {
			results[i] = vecs[j]
		}
	}

	return results, nil
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	var input any = texts
	if len(texts) == 1 {
		input = texts[0]
	}
	body, err := json.Marshal(OllamaEmbedRequest{Model: e.modelName, Input: input})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var out OllamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, verrors.New(verrors.ErrCodeEmbedderRejected, "decode embed response", err)
	}

	vecs := make([][]float32, len(out.Embeddings))
	for i, emb := range out.Embeddings {
		v := make([]float32, len(emb))
		for j, x := range emb {
			v[j] = float32(x)
		}
		vecs[i] = normalizeVector(v)
	}
	return vecs, nil
}

// classifyTransportError maps client errors onto retryable codes.
func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return verrors.New(verrors.ErrCodeEmbedderTimeout, "ollama request timed out", err)
	}
	return verrors.New(verrors.ErrCodeEmbedderUnavailable, "cannot reach ollama", err).
		WithSuggestion("Start Ollama with: ollama serve")
}

// statusError turns a non-200 response into an error. 5xx and 429 are
// transient; other statuses mean the request itself was refused.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return verrors.New(verrors.ErrCodeEmbedderUnavailable, msg, nil)
	}
	return verrors.New(verrors.ErrCodeEmbedderRejected, msg, nil)
}

func (e *OllamaEmbedder) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return fmt.Errorf("embedder is closed")
	}
	return nil
}

func (e *OllamaEmbedder) Dimensions() int { return e.dims }

func (e *OllamaEmbedder) ModelName() string { return e.modelName }

// Available checks that Ollama answers and still lists the model.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	if e.checkOpen() != nil {
		return false
	}
	_, err := e.findModel(ctx)
	return err == nil
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
