package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/logging"
)

// ProviderType names an embedding provider.
type ProviderType string

const (
	// ProviderAuto uses Ollama when it serves the model, static otherwise.
	ProviderAuto ProviderType = "auto"

	// ProviderOllama requires Ollama; startup fails without it.
	ProviderOllama ProviderType = "ollama"

	// ProviderStatic uses hash-based embeddings.
	ProviderStatic ProviderType = "static"
)

// Config selects and tunes the embedder stack.
type Config struct {
	Provider      ProviderType
	Model         string
	OllamaHost    string
	Dimensions    int
	Timeout       time.Duration
	RatePerSecond float64
	// CacheSize <= 0 uses DefaultCacheSize; set DisableCache to skip it.
	CacheSize    int
	DisableCache bool
}

// NewEmbedder builds the provider and its wrappers:
// provider -> GuardedEmbedder (network providers only) -> CachedEmbedder.
//
// With ProviderAuto an unreachable Ollama degrades to the static embedder
// with a warning; with ProviderOllama it is an error.
func NewEmbedder(ctx context.Context, cfg Config, logger *slog.Logger) (Embedder, error) {
	logger = logging.OrDefault(logger)

	var base Embedder
	switch ParseProvider(string(cfg.Provider)) {
	case ProviderStatic:
		base = NewStaticEmbedder(cfg.Dimensions)

	case ProviderOllama:
		e, err := newOllama(ctx, cfg)
		if err != nil {
			return nil, err
		}
		base = guardOllama(e, cfg)

	default:
		e, err := newOllama(ctx, cfg)
		if err != nil {
			logger.Warn("ollama unavailable, using static embeddings",
				slog.String("model", cfg.Model),
				slog.String("error", err.Error()))
			base = NewStaticEmbedder(cfg.Dimensions)
			break
		}
		base = guardOllama(e, cfg)
	}

	logger.Info("embedder ready",
		slog.String("model", base.ModelName()),
		slog.Int("dimensions", base.Dimensions()))

	if cfg.DisableCache {
		return base, nil
	}
	return NewCachedEmbedder(base, cfg.CacheSize), nil
}

func newOllama(ctx context.Context, cfg Config) (*OllamaEmbedder, error) {
	oc := DefaultOllamaConfig()
	if cfg.OllamaHost != "" {
		oc.Host = cfg.OllamaHost
	}
	if cfg.Model != "" {
		oc.Model = cfg.Model
	}
	oc.Dimensions = cfg.Dimensions

	e, err := NewOllamaEmbedder(ctx, oc)
	if err != nil {
		if _, ok := verrors.As(err); ok {
			return nil, err
		}
		return nil, verrors.New(verrors.ErrCodeEmbedderUnavailable, "ollama embedder failed to start", err)
	}
	return e, nil
}

func guardOllama(e *OllamaEmbedder, cfg Config) Embedder {
	gc := DefaultGuardConfig()
	if cfg.Timeout > 0 {
		gc.Timeout = cfg.Timeout
	}
	gc.RatePerSecond = cfg.RatePerSecond
	return NewGuardedEmbedder(e, gc)
}

// ParseProvider parses a provider name. Unknown names map to ProviderAuto.
func ParseProvider(s string) ProviderType {
	switch ProviderType(strings.ToLower(strings.TrimSpace(s))) {
	case ProviderOllama:
		return ProviderOllama
	case ProviderStatic:
		return ProviderStatic
	default:
		return ProviderAuto
	}
}

// ValidProviders lists the accepted provider names.
func ValidProviders() []string {
	return []string{string(ProviderAuto), string(ProviderOllama), string(ProviderStatic)}
}

// IsValidProvider reports whether s names a provider.
func IsValidProvider(s string) bool {
	for _, p := range ValidProviders() {
		if strings.EqualFold(s, p) {
			return true
		}
	}
	return false
}

// Info describes an embedder for status output.
type Info struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Cached     bool   `json:"cached"`
}

// Describe unwraps e and reports what it is.
func Describe(e Embedder) Info {
	info := Info{Model: e.ModelName(), Dimensions: e.Dimensions()}
	for {
		switch w := e.(type) {
		case *CachedEmbedder:
			info.Cached = true
			e = w.Inner()
			continue
		case *GuardedEmbedder:
			e = w.Inner()
			continue
		case *OllamaEmbedder:
			info.Provider = string(ProviderOllama)
		case *StaticEmbedder:
			info.Provider = string(ProviderStatic)
		default:
			info.Provider = fmt.Sprintf("%T", e)
		}
		return info
	}
}
