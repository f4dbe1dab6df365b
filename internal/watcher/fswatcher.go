package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Aman-CERP/mcpvector/internal/logging"
)

// ErrStopped is returned when starting a watcher that was already stopped.
var ErrStopped = errors.New("watcher stopped")

// FileChangeWatcher turns raw notifications under the watch roots into
// settled create/modify/delete events. fsnotify is used when available,
// polling otherwise.
type FileChangeWatcher struct {
	filter    *Filter
	opts      Options
	logger    *slog.Logger
	debouncer *Debouncer

	fsw  *fsnotify.Watcher
	mode string

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	rawEvents atomic.Uint64
	errCount  atomic.Uint64
}

// New creates a watcher for the roots in filter. It does not start watching.
func New(filter *Filter, opts Options, logger *slog.Logger) *FileChangeWatcher {
	opts = opts.WithDefaults()
	return &FileChangeWatcher{
		filter:    filter,
		opts:      opts,
		logger:    logging.OrDefault(logger),
		debouncer: NewDebouncer(opts.DebounceWindow, opts.EventBufferSize),
	}
}

// Start begins watching in the background and returns once the watch set
// is registered. A root that cannot be watched is logged and skipped.
func (w *FileChangeWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return ErrStopped
	}
	if w.started {
		return nil
	}
	w.started = true

	ctx, w.cancel = context.WithCancel(ctx)

	if !w.opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsw = fsw
			w.mode = "fsnotify"
			for _, root := range w.filter.roots {
				if err := w.addRecursive(root); err != nil {
					w.logger.Warn("cannot watch root, skipping",
						slog.String("root", root), slog.String("error", err.Error()))
				}
			}
			w.wg.Add(1)
			go w.runFsnotify(ctx)
			w.logger.Info("watcher started", slog.String("mode", w.mode), slog.Any("roots", w.filter.roots))
			return nil
		}
		w.logger.Warn("fsnotify unavailable, falling back to polling", slog.String("error", err.Error()))
	}

	w.mode = "polling"
	poller := newPollingSource(w.filter, w.opts.PollInterval)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		poller.run(ctx, w.debouncer.Add)
	}()
	w.logger.Info("watcher started", slog.String("mode", w.mode), slog.Any("roots", w.filter.roots))

	return nil
}

// Events returns settled events. The channel is closed by Stop.
func (w *FileChangeWatcher) Events() <-chan FileEvent {
	return w.debouncer.Output()
}

// Mode reports "fsnotify" or "polling" once started.
func (w *FileChangeWatcher) Mode() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Stop stops event delivery and waits for the background goroutines.
// Events still waiting out their debounce window are dropped.
func (w *FileChangeWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	cancel := w.cancel
	fsw := w.fsw
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if fsw != nil {
		err = fsw.Close()
	}
	w.wg.Wait()
	w.debouncer.Stop()

	w.logger.Info("watcher stopped",
		slog.Uint64("raw_events", w.rawEvents.Load()),
		slog.Uint64("errors", w.errCount.Load()))
	return err
}

func (w *FileChangeWatcher) runFsnotify(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.rawEvents.Add(1)
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.errCount.Add(1)
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// handle maps one fsnotify event onto the debouncer.
func (w *FileChangeWatcher) handle(event fsnotify.Event) {
	now := time.Now()

	switch {
	case event.Has(fsnotify.Remove):
		if path, ok := w.filter.AcceptRemoved(event.Name); ok {
			w.debouncer.Add(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}

	case event.Has(fsnotify.Rename):
		// The destination, if it is watched, arrives as its own Create.
		if path, ok := w.filter.AcceptRemoved(event.Name); ok {
			w.debouncer.Add(FileEvent{OldPath: path, Operation: OpRename, Timestamp: now})
		}

	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) {
				w.watchNewDir(event.Name, now)
			}
			return
		}
		path, ok := w.filter.AcceptFile(event.Name)
		if !ok || !info.Mode().IsRegular() {
			return
		}
		op := OpModify
		if event.Has(fsnotify.Create) {
			op = OpCreate
		}
		w.debouncer.Add(FileEvent{Path: path, Operation: op, Timestamp: now})
	}
}

// watchNewDir adds a directory created under a root and reports the files
// that landed in it before the watch was registered.
func (w *FileChangeWatcher) watchNewDir(dir string, now time.Time) {
	resolved, err := ResolvePath(dir)
	if err != nil || !w.filter.Within(resolved) || w.filter.hasIgnoredComponent(resolved) {
		return
	}
	if err := w.addRecursive(resolved); err != nil {
		w.logger.Warn("cannot watch new directory", slog.String("dir", dir), slog.String("error", err.Error()))
	}
	files, err := scanDir(context.Background(), w.filter, resolved, w.logger)
	if err != nil {
		return
	}
	for _, f := range files {
		w.debouncer.Add(FileEvent{Path: f, Operation: OpCreate, Timestamp: now})
	}
}

func (w *FileChangeWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.filter.Skip(path, true) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
