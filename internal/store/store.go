package store

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/logging"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Store is the vector index: the sole owner of the HNSW graph, the
// path/id mapping and the document catalog. Every operation, reads
// included, runs under one mutex so that id, path and vector always
// agree.
//
// The graph supports no in-place update. Updating a path soft-deletes its
// graph entry and inserts the new vector under a fresh graph key that maps
// back to the same document id. Soft-deleted entries stay in the graph
// until Compact rebuilds it.
type Store struct {
	mu     sync.Mutex
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	graph   *hnsw.Graph[uint64]
	records map[int64]*entry
	byPath  map[string]int64
	bySlot  map[uint64]int64

	nextID   int64
	nextSlot uint64

	dirty  bool
	closed bool
}

// entry is a live record plus the graph key currently holding its vector.
type entry struct {
	DocumentRecord
	slot uint64
}

func newGraph(cfg Config) *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = cfg.M
	g.EfSearch = cfg.EfSearch
	g.Ml = 0.25
	return g
}

func validateConfig(cfg Config) error {
	switch {
	case cfg.Dir == "":
		return verrors.ConfigError("storage directory is required", nil)
	case cfg.Dimension <= 0:
		return verrors.New(verrors.ErrCodeDimensionMismatch, fmt.Sprintf("invalid embedding dimension %d", cfg.Dimension), nil)
	case cfg.Capacity <= 0:
		return verrors.ConfigError(fmt.Sprintf("index capacity must be positive, got %d", cfg.Capacity), nil)
	case cfg.M <= 0 || cfg.EfSearch <= 0:
		return verrors.ConfigError("hnsw M and ef_search must be positive", nil)
	}
	return nil
}

// New returns an empty store. It does not touch the filesystem; use
// LoadOrCreate to pick up persisted state.
func New(cfg Config, logger *slog.Logger) (*Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	s := &Store{
		cfg:    cfg,
		logger: logging.OrDefault(logger),
		now:    time.Now,
	}
	s.reset()
	return s, nil
}

// must be called with mu held or before the store is shared
func (s *Store) reset() {
	s.graph = newGraph(s.cfg)
	s.records = make(map[int64]*entry)
	s.byPath = make(map[string]int64)
	s.bySlot = make(map[uint64]int64)
	s.nextID = 0
	s.nextSlot = 0
	s.dirty = false
}

// Dimension returns the embedding dimension this store accepts.
func (s *Store) Dimension() int {
	return s.cfg.Dimension
}

// Upsert inserts or replaces the vector for path and returns its id.
//
// A known path keeps its id and created_at; its previous vector is
// soft-deleted, metadata is merged (new keys win) and updated_at is bumped.
// An unknown path gets the next id from the counter.
func (s *Store) Upsert(path string, vector []float32, contentHash string, meta Metadata) (int64, error) {
	if path == "" {
		return 0, verrors.New(verrors.ErrCodeInvalidInput, "path is required", nil)
	}
	vec, err := s.prepare(vector)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	if s.graph.Len() >= s.cfg.Capacity {
		if len(s.bySlot) < s.graph.Len() {
			s.compactLocked()
		}
		if s.graph.Len() >= s.cfg.Capacity {
			return 0, verrors.New(verrors.ErrCodeCapacityExceeded,
				fmt.Sprintf("index capacity %d reached", s.cfg.Capacity), nil).
				WithSuggestion("raise index.capacity in the config and restart")
		}
	}

	now := s.now().UTC()
	slot := s.nextSlot
	s.nextSlot++

	if id, ok := s.byPath[path]; ok {
		e := s.records[id]
		delete(s.bySlot, e.slot)
		s.graph.Add(hnsw.MakeNode(slot, vec))
		e.slot = slot
		e.ContentHash = contentHash
		e.UpdatedAt = now
		e.Metadata = s.boundMetadata(path, e.Metadata.Merge(meta))
		s.bySlot[slot] = id
		s.dirty = true
		return id, nil
	}

	id := s.nextID
	s.nextID++

	s.graph.Add(hnsw.MakeNode(slot, vec))
	s.records[id] = &entry{
		DocumentRecord: DocumentRecord{
			ID:          id,
			Path:        path,
			ContentHash: contentHash,
			CreatedAt:   now,
			UpdatedAt:   now,
			Metadata:    s.boundMetadata(path, meta),
		},
		slot: slot,
	}
	s.byPath[path] = id
	s.bySlot[slot] = id
	s.dirty = true

	return id, nil
}

// boundMetadata applies the metadata limits and logs what had to go.
func (s *Store) boundMetadata(path string, meta Metadata) Metadata {
	bounded, dropped := meta.Bounded()
	if len(dropped) > 0 {
		s.logger.Warn("metadata keys dropped",
			slog.String("path", path),
			slog.Any("keys", dropped))
	}
	return bounded
}

// Delete soft-deletes the vector for path and drops its record. It reports
// whether anything was removed; unknown paths are a no-op.
func (s *Store) Delete(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	id, ok := s.byPath[path]
	if !ok {
		return false
	}

	e := s.records[id]
	delete(s.bySlot, e.slot)
	delete(s.records, id)
	delete(s.byPath, path)
	s.dirty = true

	return true
}

// Search returns up to topK records nearest to query by cosine distance,
// scored as 1 - distance. topK is clamped to the number of live records.
func (s *Store) Search(query []float32, topK int) ([]Match, error) {
	if topK < 1 {
		return nil, verrors.New(verrors.ErrCodeInvalidTopK, fmt.Sprintf("top_k must be >= 1, got %d", topK), nil)
	}
	if len(query) != s.cfg.Dimension {
		return nil, s.dimensionError(len(query))
	}

	q := make([]float32, len(query))
	copy(q, query)
	if !normalizeVectorInPlace(q) {
		return []Match{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	live := len(s.records)
	if live == 0 {
		return []Match{}, nil
	}
	k := min(topK, live)

	// Soft-deleted entries can occupy result slots, so ask for enough
	// neighbors to still find k live ones.
	orphans := s.graph.Len() - len(s.bySlot)
	fetch := min(k+orphans, s.graph.Len())

	ef := s.graph.EfSearch
	s.graph.EfSearch = max(ef, fetch)
	nodes := s.graph.Search(q, fetch)
	s.graph.EfSearch = ef

	matches := make([]Match, 0, k)
	for _, node := range nodes {
		id, ok := s.bySlot[node.Key]
		if !ok {
			continue
		}
		e, ok := s.records[id]
		if !ok {
			continue
		}
		d := s.graph.Distance(q, node.Value)
		matches = append(matches, Match{
			Record:   e.snapshot(),
			Distance: d,
			Score:    distanceToScore(d),
		})
	}

	// The graph's order for equal distances varies between calls, so ties
	// go to the lower id.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Record.ID < matches[j].Record.ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}

	return matches, nil
}

// Lookup returns the live record for path.
func (s *Store) Lookup(path string) (DocumentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byPath[path]
	if !ok {
		return DocumentRecord{}, false
	}
	return s.records[id].snapshot(), true
}

// Paths returns every live path, sorted.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	paths := make([]string, 0, len(s.byPath))
	for p := range s.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Count returns the number of live records.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Dirty reports whether there are mutations not yet persisted.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Status summarizes the store.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := 0
	if s.graph != nil {
		nodes = s.graph.Len()
	}

	return Status{
		DocumentCount:         len(s.records),
		EmbeddingDimension:    s.cfg.Dimension,
		StorageLocation:       s.cfg.Dir,
		PersistedFilesPresent: s.persistedFilesPresent(),
		GraphNodes:            nodes,
		Orphans:               nodes - len(s.bySlot),
		Capacity:              s.cfg.Capacity,
		Dirty:                 s.dirty,
	}
}

// Close marks the store closed. It does not persist.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func (e *entry) snapshot() DocumentRecord {
	rec := e.DocumentRecord
	rec.Metadata = e.Metadata.Clone()
	return rec
}

func (s *Store) dimensionError(got int) error {
	return verrors.New(verrors.ErrCodeDimensionMismatch,
		fmt.Sprintf("vector dimension %d does not match index dimension %d", got, s.cfg.Dimension), nil)
}

// prepare validates and normalizes a copy of vector.
func (s *Store) prepare(vector []float32) ([]float32, error) {
	if len(vector) != s.cfg.Dimension {
		return nil, s.dimensionError(len(vector))
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	if !normalizeVectorInPlace(vec) {
		return nil, verrors.New(verrors.ErrCodeZeroVector, "cannot index a zero or non-finite vector", nil)
	}
	return vec, nil
}

// normalizeVectorInPlace scales v to unit length. It reports false for
// zero or non-finite vectors, which have no direction.
func normalizeVectorInPlace(v []float32) bool {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 || math.IsNaN(sumSquares) || math.IsInf(sumSquares, 0) {
		return false
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// distanceToScore maps cosine distance [0, 2] to similarity [-1, 1].
func distanceToScore(d float32) float32 {
	score := 1 - d
	switch {
	case score > 1:
		return 1
	case score < -1:
		return -1
	}
	return score
}
