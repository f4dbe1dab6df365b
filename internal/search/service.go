// Package search is the query entry point: it embeds the query text and
// asks the vector store for the nearest documents.
package search

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Aman-CERP/mcpvector/internal/embed"
	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/logging"
	"github.com/Aman-CERP/mcpvector/internal/store"
	"github.com/Aman-CERP/mcpvector/internal/telemetry"
)

// Option configures a Service.
type Option func(*Service)

// WithMetrics records every query into m.
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logging.OrDefault(l)
	}
}

// Service is stateless apart from the components it is attached to. It
// exists before the store and embedder do, so transports can be wired up
// front; until Attach is called every search returns no results.
type Service struct {
	mu       sync.RWMutex
	store    *store.Store
	embedder embed.Embedder

	metrics *telemetry.QueryMetrics
	logger  *slog.Logger
}

// New creates a detached service.
func New(opts ...Option) *Service {
	s := &Service{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach connects the service to an initialized store and embedder.
func (s *Service) Attach(st *store.Store, em embed.Embedder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = st
	s.embedder = em
}

// Detach disconnects the service, e.g. during shutdown.
func (s *Service) Detach() {
	s.Attach(nil, nil)
}

// Ready reports whether both store and embedder are attached.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store != nil && s.embedder != nil
}

// Search embeds query and returns up to topK matches in the store's order.
//
// A detached service, or a store-side failure, yields an empty result and
// a logged cause rather than an error. Invalid input and embedding
// failures are returned to the caller.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]store.Match, error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, verrors.New(verrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	if topK < 1 {
		return nil, verrors.New(verrors.ErrCodeInvalidTopK, "top_k must be at least 1", nil).
			WithDetail("top_k", strconv.Itoa(topK))
	}

	s.mu.RLock()
	st, em := s.store, s.embedder
	s.mu.RUnlock()

	if st == nil || em == nil {
		s.logger.Warn("search before initialization, returning no results",
			slog.Bool("store_ready", st != nil),
			slog.Bool("embedder_ready", em != nil))
		return []store.Match{}, nil
	}

	vector, err := em.Embed(ctx, query)
	if err != nil {
		s.record(query, 0, start, true)
		return nil, verrors.New(verrors.ErrCodeEmbeddingFailed, "failed to embed query", err)
	}

	matches, err := st.Search(vector, topK)
	if err != nil {
		attrs := append([]slog.Attr{slog.Int("top_k", topK)}, verrors.LogAttrs(err)...)
		s.logger.LogAttrs(ctx, slog.LevelWarn, "vector search failed, returning no results", attrs...)
		s.record(query, 0, start, true)
		return []store.Match{}, nil
	}

	s.record(query, len(matches), start, false)
	s.logger.Debug("search complete",
		slog.Int("top_k", topK),
		slog.Int("results", len(matches)),
		slog.Duration("took", time.Since(start)))
	return matches, nil
}

func (s *Service) record(query string, n int, start time.Time, failed bool) {
	s.metrics.Record(telemetry.QueryEvent{
		Query:       query,
		ResultCount: n,
		Latency:     time.Since(start),
		Failed:      failed,
	})
}
