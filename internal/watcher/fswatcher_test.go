package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mcpvector/internal/logging"
)

func startWatcher(t *testing.T, opts Options, exts []string, roots ...string) *FileChangeWatcher {
	t.Helper()
	f, _ := NewFilter(roots, exts)
	w := New(f, opts, logging.Discard())
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

// waitFor drains events until one matches or the timeout passes.
func waitFor(t *testing.T, w *FileChangeWatcher, path string, op Operation, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-w.Events():
			require.True(t, ok, "events closed")
			if ev.Path == path && ev.Operation == op {
				return
			}
		case <-deadline:
			t.Fatalf("no %s event for %s", op, path)
		}
	}
}

func fastOptions() Options {
	return Options{DebounceWindow: 50 * time.Millisecond, PollInterval: 50 * time.Millisecond, EventBufferSize: 100}
}

func TestFileChangeWatcher_CreateModifyDelete(t *testing.T) {
	// Given: a watched directory
	dir := resolvedTempDir(t)
	w := startWatcher(t, fastOptions(), []string{".txt"}, dir)
	assert.Equal(t, "fsnotify", w.Mode())
	path := filepath.Join(dir, "a.txt")

	// When/Then: each change settles into one event
	writeFile(t, path, "one")
	waitFor(t, w, path, OpCreate, 2*time.Second)

	require.NoError(t, os.WriteFile(path, []byte("two"), 0o644))
	waitFor(t, w, path, OpModify, 2*time.Second)

	require.NoError(t, os.Remove(path))
	waitFor(t, w, path, OpDelete, 2*time.Second)
}

func TestFileChangeWatcher_IgnoresUnsupportedFiles(t *testing.T) {
	// Given: a watcher for .txt only
	dir := resolvedTempDir(t)
	w := startWatcher(t, fastOptions(), []string{".txt"}, dir)

	// When: an unsupported file and then a supported one are written
	writeFile(t, filepath.Join(dir, "skip.bin"), "x")
	writeFile(t, filepath.Join(dir, "keep.txt"), "y")

	// Then: the first event seen is for the supported file
	select {
	case ev := <-w.Events():
		assert.Equal(t, filepath.Join(dir, "keep.txt"), ev.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout")
	}
}

func TestFileChangeWatcher_NewDirectoryIsWatched(t *testing.T) {
	// Given: a watched directory
	dir := resolvedTempDir(t)
	w := startWatcher(t, fastOptions(), nil, dir)

	// When: a subdirectory is created and a file later written in it
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	path := filepath.Join(sub, "late.txt")
	writeFile(t, path, "x")

	// Then: the file is reported
	waitFor(t, w, path, OpCreate, 2*time.Second)
}

func TestFileChangeWatcher_RenameDeletesOldPath(t *testing.T) {
	// Given: an existing file
	dir := resolvedTempDir(t)
	oldPath := filepath.Join(dir, "old.txt")
	writeFile(t, oldPath, "x")
	w := startWatcher(t, fastOptions(), nil, dir)

	// When: it is renamed
	newPath := filepath.Join(dir, "new.txt")
	require.NoError(t, os.Rename(oldPath, newPath))

	// Then: the old path is deleted and the new one created
	waitFor(t, w, oldPath, OpDelete, 2*time.Second)
	waitFor(t, w, newPath, OpCreate, 2*time.Second)
}

func TestFileChangeWatcher_Polling(t *testing.T) {
	// Given: a watcher forced into polling mode
	dir := resolvedTempDir(t)
	opts := fastOptions()
	opts.ForcePolling = true
	w := startWatcher(t, opts, []string{".txt"}, dir)
	assert.Equal(t, "polling", w.Mode())
	time.Sleep(100 * time.Millisecond)

	// When/Then: creation and deletion are detected
	path := filepath.Join(dir, "p.txt")
	writeFile(t, path, "x")
	waitFor(t, w, path, OpCreate, 2*time.Second)

	require.NoError(t, os.Remove(path))
	waitFor(t, w, path, OpDelete, 2*time.Second)
}

func TestFileChangeWatcher_StopClosesEvents(t *testing.T) {
	dir := resolvedTempDir(t)
	f, _ := NewFilter([]string{dir}, nil)
	w := New(f, fastOptions(), logging.Discard())
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
	assert.ErrorIs(t, w.Start(context.Background()), ErrStopped)
}
