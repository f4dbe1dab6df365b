package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_Progress(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf, WithRoots([]string{"/docs", "/notes"})))

	require.NoError(t, r.Start(context.Background()))
	r.UpdateProgress(ProgressEvent{Stage: StageScanning, Message: "scanning watch folders"})
	r.UpdateProgress(ProgressEvent{Stage: StageIndexing, Current: 1, Total: 3, CurrentFile: "/docs/a.md"})
	r.UpdateProgress(ProgressEvent{Stage: StageIndexing})
	require.NoError(t, r.Stop())

	assert.Equal(t, "Indexing /docs, /notes\n"+
		"[SCAN] scanning watch folders\n"+
		"[INDEX] 1/3 - /docs/a.md\n", buf.String())
}

func TestPlainRenderer_Errors(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.AddError(ErrorEvent{File: "/docs/bad.pdf", Err: errors.New("extract: malformed")})
	r.AddError(ErrorEvent{File: "/docs/empty.txt", Err: errors.New("no text content"), IsWarn: true})
	r.AddError(ErrorEvent{Err: errors.New("embedder offline")})

	assert.Equal(t, "ERROR: /docs/bad.pdf: extract: malformed\n"+
		"WARN: /docs/empty.txt: no text content\n"+
		"ERROR: embedder offline\n", buf.String())
}

func TestPlainRenderer_Complete(t *testing.T) {
	// Given: a finished index with failures
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	// When: completing
	r.Complete(CompletionStats{
		Scanned:   12,
		Indexed:   9,
		Unchanged: 2,
		Deleted:   1,
		Documents: 11,
		Duration:  1530 * time.Millisecond,
		Errors:    1,
		Embedder:  EmbedderInfo{Provider: "ollama", Model: "nomic-embed-text", Dimensions: 768},
	})

	// Then: the summary lists every count
	out := buf.String()
	assert.Contains(t, out, "Complete: 9 indexed, 2 unchanged, 1 deleted in 1.5s (1 errors, 0 warnings)\n")
	assert.Contains(t, out, "Documents in index: 11 (12 files scanned)\n")
	assert.Contains(t, out, "Embedder: ollama (nomic-embed-text, 768 dims)\n")
}
