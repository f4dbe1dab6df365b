package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/coder/hnsw"
	"github.com/google/renameio"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
)

const catalogVersion = 1

func indexFileName(dim int) string   { return fmt.Sprintf("vector_index_%d.hnsw", dim) }
func catalogFileName(dim int) string { return fmt.Sprintf("vector_metadata_%d.json", dim) }

// catalog is the on-disk form of the document records.
type catalog struct {
	Version   int                      `json:"version"`
	Dimension int                      `json:"dimension"`
	NextID    int64                    `json:"current_id"`
	NextSlot  uint64                   `json:"next_slot"`
	Records   map[string]catalogRecord `json:"metadata"`
	SavedAt   time.Time                `json:"saved_at"`
}

type catalogRecord struct {
	Path        string    `json:"path"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Metadata    Metadata  `json:"extension_metadata,omitempty"`
	Slot        uint64    `json:"slot"`
}

// Persist writes the graph and the catalog. With zero live records it does
// nothing, so an empty index never overwrites a usable one.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.persistLocked()
}

// PersistIfDirty persists only when there are unsaved mutations.
func (s *Store) PersistIfDirty() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || !s.dirty {
		return false, nil
	}
	return true, s.persistLocked()
}

func (s *Store) persistLocked() error {
	if len(s.records) == 0 {
		s.logger.Debug("skipping persist of empty index", slog.String("dir", s.cfg.Dir))
		s.dirty = false
		return nil
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return verrors.New(verrors.ErrCodeStorageUnwritable, "failed to create storage directory", err).
			WithDetail("dir", s.cfg.Dir)
	}

	// Graph first: a catalog must never reference slots the graph on disk
	// does not have.
	if err := s.writeIndex(); err != nil {
		return err
	}

	cat := catalog{
		Version:   catalogVersion,
		Dimension: s.cfg.Dimension,
		NextID:    s.nextID,
		NextSlot:  s.nextSlot,
		Records:   make(map[string]catalogRecord, len(s.records)),
		SavedAt:   s.now().UTC(),
	}
	for id, e := range s.records {
		cat.Records[strconv.FormatInt(id, 10)] = catalogRecord{
			Path:        e.Path,
			ContentHash: e.ContentHash,
			CreatedAt:   e.CreatedAt,
			UpdatedAt:   e.UpdatedAt,
			Metadata:    e.Metadata,
			Slot:        e.slot,
		}
	}

	data, err := json.MarshalIndent(cat, "", "  ")
	if err != nil {
		return verrors.InternalError("failed to encode catalog", err)
	}
	if err := renameio.WriteFile(s.cfg.CatalogPath(), data, 0o644); err != nil {
		return verrors.New(verrors.ErrCodeStorageUnwritable, "failed to write catalog", err).
			WithDetail("path", s.cfg.CatalogPath())
	}

	s.dirty = false
	s.logger.Debug("index persisted",
		slog.Int("documents", len(s.records)),
		slog.Int("graph_nodes", s.graph.Len()))

	return nil
}

func (s *Store) writeIndex() error {
	path := s.cfg.IndexPath()
	pf, err := renameio.TempFile(s.cfg.Dir, path)
	if err != nil {
		return verrors.New(verrors.ErrCodeStorageUnwritable, "failed to create index file", err).
			WithDetail("path", path)
	}
	defer pf.Cleanup()

	w := bufio.NewWriter(pf)
	if err := s.graph.Export(w); err != nil {
		return verrors.New(verrors.ErrCodeStorageUnwritable, "failed to export graph", err)
	}
	if err := w.Flush(); err != nil {
		return verrors.New(verrors.ErrCodeStorageUnwritable, "failed to write index file", err)
	}
	if err := pf.CloseAtomicallyReplace(); err != nil {
		return verrors.New(verrors.ErrCodeStorageUnwritable, "failed to replace index file", err).
			WithDetail("path", path)
	}
	return nil
}

// must be called with mu held
func (s *Store) persistedFilesPresent() bool {
	for _, p := range []string{s.cfg.IndexPath(), s.cfg.CatalogPath()} {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// LoadOrCreate returns a store populated from the artifacts in cfg.Dir for
// cfg.Dimension. Missing, corrupt or mismatched artifacts are logged and
// replaced by an empty store; only an invalid config is an error.
func LoadOrCreate(cfg Config, logger *slog.Logger) (*Store, error) {
	s, err := New(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := s.load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info("no persisted index, starting empty",
				slog.String("dir", cfg.Dir), slog.Int("dimension", cfg.Dimension))
		} else {
			s.logger.Warn("discarding unreadable index, starting empty",
				slog.String("dir", cfg.Dir),
				slog.Int("dimension", cfg.Dimension),
				slog.String("error", err.Error()))
		}
		s.reset()
		return s, nil
	}

	if len(s.records) > cfg.Capacity {
		return nil, verrors.New(verrors.ErrCodeCapacityExceeded,
			fmt.Sprintf("persisted index holds %d documents but capacity is %d", len(s.records), cfg.Capacity), nil).
			WithSuggestion("raise index.capacity in the config")
	}
	if s.graph.Len() > cfg.Capacity || s.cfg.Compaction.Due(s.graph.Len(), len(s.bySlot)) {
		s.compactLocked()
	}

	s.logger.Info("index loaded",
		slog.String("dir", cfg.Dir),
		slog.Int("documents", len(s.records)),
		slog.Int("graph_nodes", s.graph.Len()))

	return s, nil
}

// load replaces the in-memory state with the persisted artifacts.
func (s *Store) load() error {
	data, err := os.ReadFile(s.cfg.CatalogPath())
	if err != nil {
		return err
	}

	var cat catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return verrors.New(verrors.ErrCodeCorruptIndex, "catalog is not valid JSON", err)
	}
	if cat.Version != catalogVersion {
		return verrors.New(verrors.ErrCodeCorruptIndex, fmt.Sprintf("unsupported catalog version %d", cat.Version), nil)
	}
	if cat.Dimension != s.cfg.Dimension {
		return verrors.New(verrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("catalog dimension %d, want %d", cat.Dimension, s.cfg.Dimension), nil)
	}

	f, err := os.Open(s.cfg.IndexPath())
	if err != nil {
		return err
	}
	defer f.Close()

	graph := newGraph(s.cfg)
	// Import needs an io.ByteReader.
	if err := graph.Import(bufio.NewReader(f)); err != nil {
		return verrors.New(verrors.ErrCodeCorruptIndex, "failed to import graph", err)
	}
	graph.Distance = hnsw.CosineDistance
	graph.EfSearch = s.cfg.EfSearch

	records := make(map[int64]*entry, len(cat.Records))
	byPath := make(map[string]int64, len(cat.Records))
	bySlot := make(map[uint64]int64, len(cat.Records))

	for key, rec := range cat.Records {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id < 0 || id >= cat.NextID {
			return verrors.New(verrors.ErrCodeCorruptIndex, fmt.Sprintf("catalog id %q out of range", key), err)
		}
		if rec.Path == "" {
			return verrors.New(verrors.ErrCodeCorruptIndex, fmt.Sprintf("catalog id %d has no path", id), nil)
		}
		if _, dup := byPath[rec.Path]; dup {
			return verrors.New(verrors.ErrCodeCorruptIndex, "duplicate path in catalog: "+rec.Path, nil)
		}
		if _, dup := bySlot[rec.Slot]; dup || rec.Slot >= cat.NextSlot {
			return verrors.New(verrors.ErrCodeCorruptIndex, fmt.Sprintf("catalog id %d has invalid slot %d", id, rec.Slot), nil)
		}
		vec, ok := graph.Lookup(rec.Slot)
		if !ok {
			return verrors.New(verrors.ErrCodeCorruptIndex, fmt.Sprintf("graph is missing vector for id %d", id), nil)
		}
		if len(vec) != s.cfg.Dimension {
			return verrors.New(verrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("graph vector dimension %d, want %d", len(vec), s.cfg.Dimension), nil)
		}

		meta := rec.Metadata
		if meta == nil {
			meta = Metadata{}
		}
		records[id] = &entry{
			DocumentRecord: DocumentRecord{
				ID:          id,
				Path:        rec.Path,
				ContentHash: rec.ContentHash,
				CreatedAt:   rec.CreatedAt,
				UpdatedAt:   rec.UpdatedAt,
				Metadata:    meta,
			},
			slot: rec.Slot,
		}
		byPath[rec.Path] = id
		bySlot[rec.Slot] = id
	}

	s.graph = graph
	s.records = records
	s.byPath = byPath
	s.bySlot = bySlot
	s.nextID = cat.NextID
	s.nextSlot = cat.NextSlot
	s.dirty = false

	return nil
}
