// Package api is the query surface shared by every transport: search,
// status, run and health. Transports decode requests into these types,
// call Service and encode the responses unchanged.
package api

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/Aman-CERP/mcpvector/internal/async"
	"github.com/Aman-CERP/mcpvector/internal/embed"
	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/journal"
	"github.com/Aman-CERP/mcpvector/internal/store"
	"github.com/Aman-CERP/mcpvector/internal/telemetry"
)

// DefaultTopK is used when a search request leaves top_k unset.
const DefaultTopK = 5

// SearchRequest is the input of a search.
type SearchRequest struct {
	// Query is the natural language query (required).
	Query string `json:"query"`

	// TopK is the maximum number of results (default: 5).
	TopK int `json:"top_k,omitempty"`

	// Paths keeps only results whose path starts with one of these
	// prefixes (optional).
	Paths []string `json:"paths,omitempty"`
}

// Normalize applies defaults and validates the request.
func (r *SearchRequest) Normalize() error {
	r.Query = strings.TrimSpace(r.Query)
	if r.Query == "" {
		return verrors.New(verrors.ErrCodeQueryEmpty, "query must not be empty", nil)
	}
	if r.TopK == 0 {
		r.TopK = DefaultTopK
	}
	if r.TopK < 0 {
		return verrors.New(verrors.ErrCodeInvalidTopK, "top_k must be at least 1", nil).
			WithDetail("top_k", strconv.Itoa(r.TopK))
	}
	return nil
}

// SearchResult is one hit. Its extension metadata is flattened into the
// JSON object next to the core fields.
type SearchResult struct {
	ID          int64          `json:"id"`
	Score       float32        `json:"score"`
	Path        string         `json:"path"`
	ContentHash string         `json:"content_hash"`
	Metadata    store.Metadata `json:"-"`
}

// MarshalJSON flattens Metadata. Core fields win over metadata keys of the
// same name, which the store rejects anyway.
func (r SearchResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Metadata)+4)
	for k, v := range r.Metadata {
		out[k] = v
	}
	out["id"] = r.ID
	out["score"] = r.Score
	out["path"] = r.Path
	out["content_hash"] = r.ContentHash
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON. Unknown keys become metadata.
func (r *SearchResult) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = SearchResult{}
	for key, msg := range raw {
		var err error
		switch key {
		case "id":
			err = json.Unmarshal(msg, &r.ID)
		case "score":
			err = json.Unmarshal(msg, &r.Score)
		case "path":
			err = json.Unmarshal(msg, &r.Path)
		case "content_hash":
			err = json.Unmarshal(msg, &r.ContentHash)
		default:
			var v store.Value
			if err = json.Unmarshal(msg, &v); err == nil {
				if r.Metadata == nil {
					r.Metadata = make(store.Metadata)
				}
				r.Metadata[key] = v
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// SearchResponse is the output of a search.
type SearchResponse struct {
	Query        string         `json:"query"`
	TopK         int            `json:"top_k"`
	ResultsCount int            `json:"results_count"`
	Results      []SearchResult `json:"results"`
}

// StatusResponse describes the running indexer.
type StatusResponse struct {
	ModelName             string                    `json:"model_name"`
	WatchFolders          []string                  `json:"watch_folders"`
	SupportedExtensions   []string                  `json:"supported_extensions"`
	EmbeddingDimension    int                       `json:"embedding_dimension"`
	DocumentCount         int                       `json:"document_count"`
	StorageLocation       string                    `json:"storage_location"`
	PersistedFilesPresent bool                      `json:"persisted_files_present"`
	Embedder              embed.Info                `json:"embedder"`
	QueueDepth            int                       `json:"queue_depth"`
	WatcherMode           string                    `json:"watcher_mode,omitempty"`
	Processed             map[journal.Outcome]int64 `json:"processed,omitempty"`
	Journal               journal.Counts            `json:"journal,omitempty"`
	LastRun               *async.RunSnapshot        `json:"last_run,omitempty"`
	NextReconcile         *time.Time                `json:"next_reconcile,omitempty"`
	Queries               *telemetry.Snapshot       `json:"queries,omitempty"`
}

// RunRequest asks for a reconciliation.
type RunRequest struct {
	// Paths limits the run to these files or directories. Empty means
	// every watch folder.
	Paths []string `json:"paths,omitempty"`
}

// RunResponse acknowledges a run. Processing continues in the background.
type RunResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}

// HealthResponse is the liveness answer.
type HealthResponse struct {
	Status      string `json:"status"`
	Initialized bool   `json:"initialized"`
}
