package mcp

import (
	"encoding/json"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool names.
const (
	ToolSearch = "vector_search"
	ToolStatus = "vector_status"
	ToolRun    = "vector_run"
)

// SearchInput defines the input schema for the vector_search tool.
type SearchInput struct {
	Query string   `json:"query" jsonschema:"natural language text to search the indexed documents for"`
	TopK  int      `json:"top_k,omitempty" jsonschema:"number of results to return, default 5"`
	Paths []string `json:"paths,omitempty" jsonschema:"only return documents under these path prefixes"`
}

// SearchOutput defines the output schema for the vector_search tool.
type SearchOutput struct {
	Query        string               `json:"query"`
	TopK         int                  `json:"top_k"`
	ResultsCount int                  `json:"results_count"`
	Results      []SearchResultOutput `json:"results" jsonschema:"matches, best first"`
}

// SearchResultOutput is one matched document. Metadata keys are flattened
// into the result object next to the core fields.
type SearchResultOutput struct {
	ID          int64          `json:"id" jsonschema:"stable document id, kept across updates"`
	Path        string         `json:"path" jsonschema:"absolute path of the document"`
	Score       float64        `json:"score" jsonschema:"cosine similarity, higher is closer"`
	ContentHash string         `json:"content_hash"`
	MimeType    string         `json:"mime_type,omitempty"`
	Metadata    map[string]any `json:"-"`
}

// coreResultKeys are the SearchResultOutput fields that metadata cannot shadow.
var coreResultKeys = []string{"id", "path", "score", "content_hash", "mime_type"}

// MarshalJSON flattens Metadata into the object. Core fields win.
func (r SearchResultOutput) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Metadata)+len(coreResultKeys))
	for k, v := range r.Metadata {
		out[k] = v
	}
	out["id"] = r.ID
	out["path"] = r.Path
	out["score"] = r.Score
	out["content_hash"] = r.ContentHash
	if r.MimeType != "" {
		out["mime_type"] = r.MimeType
	} else {
		delete(out, "mime_type")
	}
	return json.Marshal(out)
}

// UnmarshalJSON reverses MarshalJSON. Keys other than the core fields
// become metadata.
func (r *SearchResultOutput) UnmarshalJSON(data []byte) error {
	type core SearchResultOutput
	var c core
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	var rest map[string]any
	if err := json.Unmarshal(data, &rest); err != nil {
		return err
	}
	for _, k := range coreResultKeys {
		delete(rest, k)
	}

	*r = SearchResultOutput(c)
	if len(rest) > 0 {
		r.Metadata = rest
	}
	return nil
}

// searchOutputSchema is the schema inferred from SearchOutput, with each
// result open to the scalar metadata keys flattened into it.
func searchOutputSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[SearchOutput](&jsonschema.ForOptions{})
	if err != nil {
		return nil, err
	}
	results, ok := schema.Properties["results"]
	if !ok || results.Items == nil {
		return nil, errors.New("search output schema has no result items")
	}
	results.Items.AdditionalProperties = &jsonschema.Schema{
		Types: []string{"string", "integer", "number", "boolean"},
	}
	return schema, nil
}

// StatusInput defines the input schema for the vector_status tool (no parameters).
type StatusInput struct{}

// StatusOutput defines the output schema for the vector_status tool.
type StatusOutput struct {
	ModelName           string           `json:"model_name"`
	WatchFolders        []string         `json:"watch_folders"`
	SupportedExtensions []string         `json:"supported_extensions"`
	EmbeddingDimension  int              `json:"embedding_dimension"`
	DocumentCount       int              `json:"document_count"`
	StorageLocation     string           `json:"storage_location"`
	PersistedFiles      bool             `json:"persisted_files_present" jsonschema:"whether index artifacts exist on disk"`
	Journal             map[string]int64 `json:"journal,omitempty" jsonschema:"ingestion outcomes recorded in the journal"`
	QueueDepth          int              `json:"queue_depth"`
	WatcherMode         string           `json:"watcher_mode,omitempty"`
	Embedder            EmbedderOutput   `json:"embedder"`
	Processed           map[string]int64 `json:"processed,omitempty" jsonschema:"documents handled by outcome since startup"`
	LastRun             *RunOutput       `json:"last_run,omitempty"`
}

// EmbedderOutput describes the active embedder so clients can judge result quality.
type EmbedderOutput struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Cached     bool   `json:"cached"`
}

// RunOutput summarizes a reconciliation run.
type RunOutput struct {
	ID             string  `json:"id"`
	Trigger        string  `json:"trigger"`
	Status         string  `json:"status"`
	Stage          string  `json:"stage,omitempty"`
	Scanned        int     `json:"scanned"`
	Enqueued       int     `json:"enqueued"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// RunInput defines the input schema for the vector_run tool.
type RunInput struct {
	Paths []string `json:"paths,omitempty" jsonschema:"files or folders to reprocess, default all watched folders"`
}

// RunAck is the acknowledgement of the vector_run tool.
type RunAck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	RunID   string `json:"run_id"`
}
