package embed

import "time"

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// OllamaConnectTimeout bounds the startup health check.
	OllamaConnectTimeout = 5 * time.Second

	// OllamaPoolSize is the HTTP connection pool size.
	OllamaPoolSize = 4
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string

	// Model is the embedding model to use.
	Model string

	// Dimensions overrides auto-detection (0 = detect from a probe embedding).
	Dimensions int

	// BatchSize is the number of texts per /api/embed request.
	BatchSize int

	// ConnectTimeout bounds the health check and dimension probe.
	ConnectTimeout time.Duration

	// PoolSize for the HTTP connection pool.
	PoolSize int

	// SkipHealthCheck skips the startup model lookup (tests).
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns the defaults for a local daemon.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:           DefaultOllamaHost,
		Model:          DefaultModel,
		BatchSize:      DefaultBatchSize,
		ConnectTimeout: OllamaConnectTimeout,
		PoolSize:       OllamaPoolSize,
	}
}

// OllamaEmbedRequest is the /api/embed request.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string for batch
}

// OllamaEmbedResponse is the /api/embed response.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaModelListResponse is the /api/tags response.
type OllamaModelListResponse struct {
	Models []OllamaModelInfo `json:"models"`
}

// OllamaModelInfo describes an installed model.
type OllamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
