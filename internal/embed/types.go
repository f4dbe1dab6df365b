// Package embed turns text into fixed-length unit vectors.
//
// Providers:
//   - OllamaEmbedder: a model served by a local Ollama daemon
//   - StaticEmbedder: hash-based vectors, no network, deterministic
//
// Wrappers add behavior without changing the interface: CachedEmbedder
// keeps recent results in an LRU, GuardedEmbedder adds a rate limit, a
// per-call timeout, retries and a circuit breaker.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultBatchSize is the number of texts per provider request.
	DefaultBatchSize = 32

	// DefaultTimeout bounds a single embedding call.
	DefaultTimeout = 30 * time.Second

	// DefaultModel is the sentence model the index is built with.
	DefaultModel = "paraphrase-multilingual-MiniLM-L12-v2"

	// StaticDimensions matches the default sentence model's width so a
	// static index has the same shape as a model-backed one.
	StaticDimensions = 384
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding width.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector scales v to unit length. Zero vectors are returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
