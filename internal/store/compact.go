package store

import (
	"log/slog"
	"sort"

	"github.com/coder/hnsw"
)

// CompactionPolicy decides when soft-deleted graph entries are purged.
type CompactionPolicy struct {
	Enabled bool
	// OrphanThreshold is the orphan/total ratio that triggers compaction.
	OrphanThreshold float64
	// MinOrphans avoids rebuilding small graphs over a handful of deletes.
	MinOrphans int
}

// DefaultCompactionPolicy compacts at 20% orphans once there are 100 of them.
func DefaultCompactionPolicy() CompactionPolicy {
	return CompactionPolicy{
		Enabled:         true,
		OrphanThreshold: 0.2,
		MinOrphans:      100,
	}
}

// Due reports whether a graph of nodes entries with live of them still
// referenced should be compacted.
func (p CompactionPolicy) Due(nodes, live int) bool {
	if !p.Enabled || nodes == 0 {
		return false
	}
	orphans := nodes - live
	if orphans < p.MinOrphans {
		return false
	}
	return float64(orphans)/float64(nodes) >= p.OrphanThreshold
}

// NeedsCompaction reports whether the configured policy calls for Compact.
func (s *Store) NeedsCompaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.cfg.Compaction.Due(s.graph.Len(), len(s.bySlot))
}

// Compact rebuilds the graph from live vectors only and returns the number
// of soft-deleted entries dropped. Document ids and graph keys are kept.
func (s *Store) Compact() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}
	return s.compactLocked()
}

// must be called with mu held
func (s *Store) compactLocked() int {
	before := s.graph.Len()
	if before == len(s.bySlot) {
		return 0
	}

	slots := make([]uint64, 0, len(s.bySlot))
	for slot := range s.bySlot {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	graph := newGraph(s.cfg)
	for _, slot := range slots {
		vec, ok := s.graph.Lookup(slot)
		if !ok {
			// Cannot happen while bySlot and the graph agree; drop the
			// record rather than keep an id with no vector.
			id := s.bySlot[slot]
			s.logger.Error("live record has no vector, dropping",
				slog.Int64("id", id), slog.String("path", s.records[id].Path))
			delete(s.byPath, s.records[id].Path)
			delete(s.records, id)
			delete(s.bySlot, slot)
			continue
		}
		graph.Add(hnsw.MakeNode(slot, vec))
	}

	s.graph = graph
	s.dirty = true
	removed := before - graph.Len()

	s.logger.Info("index compacted",
		slog.Int("removed", removed),
		slog.Int("graph_nodes", graph.Len()))

	return removed
}
