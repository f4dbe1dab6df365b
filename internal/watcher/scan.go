package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// FullScan returns every accepted file under every watch root, sorted.
// Unreadable entries are logged and skipped.
func FullScan(ctx context.Context, f *Filter, logger *slog.Logger) ([]string, error) {
	var files []string
	for _, root := range f.roots {
		found, err := scanDir(ctx, f, root, logger)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	sort.Strings(files)
	return dedupe(files), nil
}

// ScanPaths is FullScan restricted to the given files or directories.
// Paths outside the watch roots are returned in rejected.
func ScanPaths(ctx context.Context, f *Filter, paths []string, logger *slog.Logger) (files, rejected []string, err error) {
	for _, p := range paths {
		resolved, rerr := ResolvePath(p)
		if rerr != nil || !f.Within(resolved) {
			rejected = append(rejected, p)
			continue
		}
		info, serr := os.Stat(resolved)
		if serr != nil {
			rejected = append(rejected, p)
			continue
		}
		if !info.IsDir() {
			if accepted, ok := f.AcceptFile(resolved); ok && info.Mode().IsRegular() {
				files = append(files, accepted)
			}
			continue
		}
		found, werr := scanDir(ctx, f, resolved, logger)
		if werr != nil {
			return nil, nil, werr
		}
		files = append(files, found...)
	}
	sort.Strings(files)
	return dedupe(files), rejected, nil
}

func scanDir(ctx context.Context, f *Filter, dir string, logger *slog.Logger) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if logger != nil {
				logger.Warn("skipping unreadable path during scan",
					slog.String("path", path), slog.String("error", err.Error()))
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path != dir && f.Skip(path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			// directories recurse; symlinks and devices are skipped
			return nil
		}
		if accepted, ok := f.AcceptFile(path); ok {
			files = append(files, accepted)
		}
		return nil
	})
	return files, err
}

func dedupe(sorted []string) []string {
	if len(sorted) < 2 {
		return sorted
	}
	out := sorted[:1]
	for _, p := range sorted[1:] {
		if p != out[len(out)-1] {
			out = append(out, p)
		}
	}
	return out
}
