package watcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mcpvector/internal/logging"
)

func TestFullScan_ListsAcceptedFiles(t *testing.T) {
	// Given: two roots with nested content
	a := resolvedTempDir(t)
	b := resolvedTempDir(t)
	writeFile(t, filepath.Join(a, "one.txt"), "1")
	writeFile(t, filepath.Join(a, "deep", "two.md"), "2")
	writeFile(t, filepath.Join(a, "skip.bin"), "x")
	writeFile(t, filepath.Join(a, ".cache", "three.txt"), "3")
	writeFile(t, filepath.Join(b, "four.txt"), "4")

	f, _ := NewFilter([]string{a, b}, []string{".txt", ".md"})

	// When: a full scan runs
	files, err := FullScan(context.Background(), f, logging.Discard())

	// Then: supported files are listed, sorted, ignored dirs skipped
	require.NoError(t, err)
	want := []string{
		filepath.Join(a, "deep", "two.md"),
		filepath.Join(a, "one.txt"),
		filepath.Join(b, "four.txt"),
	}
	assert.ElementsMatch(t, want, files)
	assert.IsIncreasing(t, files)
}

func TestFullScan_OverlappingRootsDeduplicated(t *testing.T) {
	// Given: a root and its own subdirectory as roots
	a := resolvedTempDir(t)
	writeFile(t, filepath.Join(a, "sub", "x.txt"), "x")
	f, _ := NewFilter([]string{a, filepath.Join(a, "sub")}, nil)

	// When: scanned
	files, err := FullScan(context.Background(), f, logging.Discard())

	// Then: the shared file appears once
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(a, "sub", "x.txt")}, files)
}

func TestFullScan_Cancelled(t *testing.T) {
	a := resolvedTempDir(t)
	writeFile(t, filepath.Join(a, "x.txt"), "x")
	f, _ := NewFilter([]string{a}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FullScan(ctx, f, logging.Discard())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanPaths_RejectsOutsideRoots(t *testing.T) {
	// Given: a root and an unrelated directory
	a := resolvedTempDir(t)
	other := resolvedTempDir(t)
	writeFile(t, filepath.Join(a, "d", "x.txt"), "x")
	writeFile(t, filepath.Join(a, "y.txt"), "y")
	writeFile(t, filepath.Join(other, "z.txt"), "z")
	f, _ := NewFilter([]string{a}, []string{".txt"})

	// When: a mix of paths is scanned
	files, rejected, err := ScanPaths(context.Background(), f,
		[]string{filepath.Join(a, "d"), filepath.Join(a, "y.txt"), filepath.Join(other, "z.txt")},
		logging.Discard())

	// Then: in-root paths expand, the outsider is rejected
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(a, "d", "x.txt"), filepath.Join(a, "y.txt")}, files)
	assert.Equal(t, []string{filepath.Join(other, "z.txt")}, rejected)
}

func TestFullScan_HonorsIgnoreRules(t *testing.T) {
	a := resolvedTempDir(t)
	writeFile(t, filepath.Join(a, "keep.txt"), "k")
	writeFile(t, filepath.Join(a, "private", "secret.txt"), "s")
	writeFile(t, filepath.Join(a, "notes", "draft.txt"), "d")
	f, _ := NewFilter([]string{a}, nil, WithIgnore([]string{"private/", "draft*"}))

	files, err := FullScan(context.Background(), f, logging.Discard())

	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(a, "keep.txt")}, files)
}
