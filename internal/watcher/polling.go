package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"
)

// pollingSource detects changes by periodically walking the watch roots
// and diffing mtime and size. Used when fsnotify is unavailable, e.g. on
// some network mounts.
type pollingSource struct {
	filter   *Filter
	interval time.Duration
	state    map[string]fileSnapshot
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

func newPollingSource(filter *Filter, interval time.Duration) *pollingSource {
	return &pollingSource{
		filter:   filter,
		interval: interval,
		state:    make(map[string]fileSnapshot),
	}
}

// run establishes a baseline and then reports differences to emit until
// ctx is cancelled.
func (p *pollingSource) run(ctx context.Context, emit func(FileEvent)) {
	p.state = p.snapshot(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.detectChanges(ctx, emit)
		}
	}
}

func (p *pollingSource) snapshot(ctx context.Context) map[string]fileSnapshot {
	current := make(map[string]fileSnapshot)
	for _, root := range p.filter.roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				return nil
			}
			if path != root && p.filter.Skip(path, d.IsDir()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !p.filter.SupportsExtension(path) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			current[path] = fileSnapshot{modTime: info.ModTime(), size: info.Size()}
			return nil
		})
	}
	return current
}

func (p *pollingSource) detectChanges(ctx context.Context, emit func(FileEvent)) {
	current := p.snapshot(ctx)
	if ctx.Err() != nil {
		return
	}
	now := time.Now()

	for path, snap := range current {
		prev, existed := p.state[path]
		switch {
		case !existed:
			emit(FileEvent{Path: path, Operation: OpCreate, Timestamp: now})
		case prev.modTime != snap.modTime || prev.size != snap.size:
			emit(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path := range p.state {
		if _, ok := current[path]; !ok {
			emit(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}

	p.state = current
}
