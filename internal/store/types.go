// Package store holds the vector index: an HNSW graph over document
// embeddings plus the catalog of document records it is keyed by.
package store

import (
	"path/filepath"
	"time"
)

// Config configures a Store.
type Config struct {
	// Dir is the storage directory holding the persisted artifacts.
	Dir string
	// Dimension is the embedding dimension. Artifacts are versioned by it.
	Dimension int
	// Capacity is the maximum number of ANN entries, soft-deleted ones included.
	Capacity int
	// M is the HNSW neighbor count.
	M int
	// EfSearch is the HNSW search candidate list size.
	EfSearch int
	// Compaction controls when soft-deleted entries are purged.
	Compaction CompactionPolicy
}

// DefaultConfig returns defaults for the given storage dir and dimension.
func DefaultConfig(dir string, dimension int) Config {
	return Config{
		Dir:        dir,
		Dimension:  dimension,
		Capacity:   100000,
		M:          16,
		EfSearch:   50,
		Compaction: DefaultCompactionPolicy(),
	}
}

// IndexPath is the serialized graph artifact for this dimension.
func (c Config) IndexPath() string {
	return filepath.Join(c.Dir, indexFileName(c.Dimension))
}

// CatalogPath is the document catalog artifact for this dimension.
func (c Config) CatalogPath() string {
	return filepath.Join(c.Dir, catalogFileName(c.Dimension))
}

// DocumentRecord is one indexed file.
type DocumentRecord struct {
	ID          int64     `json:"id"`
	Path        string    `json:"path"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Metadata    Metadata  `json:"metadata,omitempty"`
}

// Match is one search hit.
type Match struct {
	Record   DocumentRecord
	Score    float32
	Distance float32
}

// Status summarizes the store.
type Status struct {
	DocumentCount         int    `json:"document_count"`
	EmbeddingDimension    int    `json:"embedding_dimension"`
	StorageLocation       string `json:"storage_location"`
	PersistedFilesPresent bool   `json:"persisted_files_present"`
	GraphNodes            int    `json:"graph_nodes"`
	Orphans               int    `json:"orphans"`
	Capacity              int    `json:"capacity"`
	Dirty                 bool   `json:"dirty"`
}
