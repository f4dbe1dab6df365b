package ingest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/mcpvector/internal/logging"
	"github.com/Aman-CERP/mcpvector/internal/store"
	"github.com/Aman-CERP/mcpvector/internal/watcher"
)

// Report summarizes one reconciliation pass.
type Report struct {
	// Scanned is the number of accepted files found on disk.
	Scanned int `json:"scanned"`
	// Enqueued is how many of them were newly queued for indexing.
	Enqueued int `json:"enqueued"`
	// Missing is the number of indexed paths whose file is gone.
	Missing int `json:"missing"`
	// Rejected lists requested paths outside the watch roots.
	Rejected []string `json:"rejected,omitempty"`
}

// Reconciler brings the index in line with the file system. Every accepted
// file is queued for indexing, which is cheap for unchanged files because
// the worker skips matching fingerprints; every indexed path whose file is
// gone is queued for deletion. Stat calls happen without any lock held and
// deletions go through the worker like any other task.
type Reconciler struct {
	queue  *Queue
	store  *store.Store
	filter *watcher.Filter
	logger *slog.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(q *Queue, s *store.Store, f *watcher.Filter, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		queue:  q,
		store:  s,
		filter: f,
		logger: logging.OrDefault(logger),
	}
}

// Run reconciles every watch root.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	files, err := watcher.FullScan(ctx, r.filter, r.logger)
	if err != nil {
		return Report{}, err
	}

	rep := r.enqueue(files)
	rep.Missing = r.enqueueMissing(ctx, nil)

	r.logger.Info("reconciliation queued",
		slog.Int("scanned", rep.Scanned),
		slog.Int("enqueued", rep.Enqueued),
		slog.Int("missing", rep.Missing),
		slog.Int("queue_depth", r.queue.Depth()))
	return rep, nil
}

// RunPaths reconciles only the given files or directories. Paths outside
// the watch roots are reported in Report.Rejected and otherwise ignored.
func (r *Reconciler) RunPaths(ctx context.Context, paths []string) (Report, error) {
	if len(paths) == 0 {
		return r.Run(ctx)
	}

	files, rejected, err := watcher.ScanPaths(ctx, r.filter, paths, r.logger)
	if err != nil {
		return Report{}, err
	}

	var prefixes []string
	for _, p := range paths {
		if resolved, ok := r.filter.AcceptRemoved(p); ok {
			prefixes = append(prefixes, resolved)
		}
	}

	rep := r.enqueue(files)
	rep.Rejected = rejected
	if len(prefixes) > 0 {
		rep.Missing = r.enqueueMissing(ctx, prefixes)
	}

	if len(rejected) > 0 {
		r.logger.Warn("paths outside watch roots ignored", slog.Any("paths", rejected))
	}
	r.logger.Info("partial reconciliation queued",
		slog.Int("requested", len(paths)),
		slog.Int("scanned", rep.Scanned),
		slog.Int("enqueued", rep.Enqueued),
		slog.Int("missing", rep.Missing))
	return rep, nil
}

func (r *Reconciler) enqueue(files []string) Report {
	rep := Report{Scanned: len(files)}
	for _, f := range files {
		if r.queue.Enqueue(f, "scan") {
			rep.Enqueued++
		}
	}
	return rep
}

// enqueueMissing queues deletions for indexed paths that no longer exist.
// A nil prefixes slice checks every indexed path.
func (r *Reconciler) enqueueMissing(ctx context.Context, prefixes []string) int {
	missing := 0
	for _, p := range r.store.Paths() {
		if ctx.Err() != nil {
			break
		}
		if prefixes != nil && !underAny(p, prefixes) {
			continue
		}
		if !fileGone(p) {
			continue
		}
		r.queue.EnqueueDelete(p, "scan")
		missing++
	}
	return missing
}

func underAny(path string, prefixes []string) bool {
	for _, pre := range prefixes {
		if path == pre || strings.HasPrefix(path, strings.TrimSuffix(pre, string(filepath.Separator))+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// fileGone reports whether path no longer exists.
func fileGone(path string) bool {
	_, err := os.Lstat(path)
	return errors.Is(err, os.ErrNotExist)
}
