package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Aman-CERP/mcpvector/internal/engine"
	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/journal"
	"github.com/Aman-CERP/mcpvector/internal/logging"
	"github.com/Aman-CERP/mcpvector/internal/search"
	"github.com/Aman-CERP/mcpvector/internal/store"
)

// Backend is the part of the engine the API needs.
type Backend interface {
	Initialized() bool
	ModelName() string
	Status(ctx context.Context) (engine.Status, error)
	Run(ctx context.Context, paths []string) (string, error)
}

// JournalReader is implemented by backends that keep an ingestion journal.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Event, error)
}

// Searcher runs vector queries.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]store.Match, error)
}

// Service implements the query API over a backend.
type Service struct {
	backend  Backend
	searcher Searcher
	logger   *slog.Logger
}

// New creates the API service.
func New(backend Backend, searcher Searcher, logger *slog.Logger) *Service {
	return &Service{
		backend:  backend,
		searcher: searcher,
		logger:   logging.OrDefault(logger),
	}
}

// ForEngine wires the API to an engine.
func ForEngine(e *engine.Engine, logger *slog.Logger) *Service {
	return New(e, e.Search(), logger)
}

func notInitialized() error {
	return verrors.New(verrors.ErrCodeNotInitialized, "vector search not initialized", nil)
}

// Search embeds the query and returns the nearest documents.
func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	if !s.backend.Initialized() {
		return SearchResponse{}, notInitialized()
	}
	if err := req.Normalize(); err != nil {
		return SearchResponse{}, err
	}

	start := time.Now()
	matches, err := s.searcher.Search(ctx, req.Query, req.TopK)
	if err != nil {
		return SearchResponse{}, err
	}
	matches = search.FilterByPrefix(matches, req.Paths)

	resp := SearchResponse{
		Query:   req.Query,
		TopK:    req.TopK,
		Results: make([]SearchResult, 0, len(matches)),
	}
	for _, m := range matches {
		resp.Results = append(resp.Results, SearchResult{
			ID:          m.Record.ID,
			Score:       m.Score,
			Path:        m.Record.Path,
			ContentHash: m.Record.ContentHash,
			Metadata:    m.Record.Metadata,
		})
	}
	resp.ResultsCount = len(resp.Results)

	s.logger.Debug("search served",
		slog.String("query", req.Query),
		slog.Int("top_k", req.TopK),
		slog.Int("results", resp.ResultsCount),
		slog.Duration("latency", time.Since(start)))
	return resp, nil
}

// Status reports the index state.
func (s *Service) Status(ctx context.Context) (StatusResponse, error) {
	if !s.backend.Initialized() {
		return StatusResponse{}, notInitialized()
	}
	st, err := s.backend.Status(ctx)
	if err != nil {
		return StatusResponse{}, err
	}

	queries := st.Queries
	return StatusResponse{
		ModelName:             s.backend.ModelName(),
		WatchFolders:          st.WatchFolders,
		SupportedExtensions:   st.SupportedExtensions,
		EmbeddingDimension:    st.Store.EmbeddingDimension,
		DocumentCount:         st.Store.DocumentCount,
		StorageLocation:       st.Store.StorageLocation,
		PersistedFilesPresent: st.Store.PersistedFilesPresent,
		Embedder:              st.Embedder,
		QueueDepth:            st.QueueDepth,
		WatcherMode:           st.WatcherMode,
		Processed:             st.Processed,
		Journal:               st.Journal,
		LastRun:               st.LastRun,
		NextReconcile:         st.NextReconcile,
		Queries:               &queries,
	}, nil
}

// DefaultJournalLimit is the number of journal events Recent returns when
// limit is not positive.
const DefaultJournalLimit = 50

// Recent returns the latest ingestion events, newest first. Backends
// without a journal yield an empty list.
func (s *Service) Recent(ctx context.Context, limit int) ([]journal.Event, error) {
	if !s.backend.Initialized() {
		return nil, notInitialized()
	}
	if limit <= 0 {
		limit = DefaultJournalLimit
	}
	jr, ok := s.backend.(JournalReader)
	if !ok {
		return []journal.Event{}, nil
	}
	events, err := jr.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []journal.Event{}
	}
	return events, nil
}

// RunMessage is the acknowledgement text of a full run.
const RunMessage = "Started processing all files in watched folders"

// Run starts a reconciliation and returns without waiting for it.
func (s *Service) Run(ctx context.Context, req RunRequest) (RunResponse, error) {
	if !s.backend.Initialized() {
		return RunResponse{}, notInitialized()
	}
	id, err := s.backend.Run(ctx, req.Paths)
	if err != nil {
		return RunResponse{}, err
	}

	msg := RunMessage
	if len(req.Paths) > 0 {
		msg = fmt.Sprintf("Started processing %d requested path(s)", len(req.Paths))
	}
	return RunResponse{Status: "processing", Message: msg, RunID: id}, nil
}

// Health always answers; Initialized tells whether queries are served.
func (s *Service) Health() HealthResponse {
	return HealthResponse{Status: "healthy", Initialized: s.backend.Initialized()}
}

// HTTPStatus maps an API error onto a status code: 503 before
// initialization, 400 for bad input, 500 otherwise.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case verrors.GetCode(err) == verrors.ErrCodeNotInitialized:
		return http.StatusServiceUnavailable
	case verrors.GetCategory(err) == verrors.CategoryValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Detail is the user-facing message of err.
func Detail(err error) string {
	if ve, ok := verrors.As(err); ok {
		return ve.Message
	}
	return err.Error()
}
