package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func newTestModel() *indexingModel {
	m := newIndexingModel(NewProgressTracker(), []string{"/docs"})
	m.styles = NoColorStyles()
	return m
}

func TestIndexingModel_ViewShowsProgress(t *testing.T) {
	// Given: a model halfway through indexing
	m := newTestModel()
	m.tracker.SetStage(StageIndexing, 4)
	m.tracker.Update(2, 4, "/docs/report.pdf")

	// When: rendering
	view := m.View()

	// Then: stages, counts and the current file show
	assert.Contains(t, view, "mcpvector index • /docs")
	assert.Contains(t, view, "● Scanning")
	assert.Contains(t, view, "Indexing")
	assert.Contains(t, view, "2 / 4 documents")
	assert.Contains(t, view, "50%")
	assert.Contains(t, view, "/docs/report.pdf")
	assert.Contains(t, view, "q to quit")
}

func TestIndexingModel_ErrorsInStatusBar(t *testing.T) {
	m := newTestModel()
	m.tracker.AddError(ErrorEvent{File: "a"})
	m.tracker.AddError(ErrorEvent{File: "b", IsWarn: true})

	view := m.View()

	assert.Contains(t, view, "1 failed")
	assert.Contains(t, view, "1 skipped")
}

func TestIndexingModel_CompleteQuits(t *testing.T) {
	m := newTestModel()

	_, cmd := m.Update(completeMsg(CompletionStats{Indexed: 3, Documents: 5, Duration: 2 * time.Second}))

	assert.NotNil(t, cmd)
	view := m.View()
	assert.Contains(t, view, "Indexing complete")
	assert.Contains(t, view, "Documents: 5")
}

func TestIndexingModel_QuitKey(t *testing.T) {
	m := newTestModel()

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})

	assert.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", m.View())
}

func TestIndexingModel_WindowResize(t *testing.T) {
	m := newTestModel()

	m.Update(tea.WindowSizeMsg{Width: 30, Height: 10})

	assert.Equal(t, 20, m.progressBar.Width)
	assert.Equal(t, 30, m.width)
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "3m", formatDuration(3*time.Minute))
	assert.Equal(t, "3m 5s", formatDuration(185*time.Second))
	assert.Equal(t, "2h 10m", formatDuration(130*time.Minute))
}

func TestTruncateFilePath(t *testing.T) {
	long := "/home/user/" + strings.Repeat("deep/", 10) + "file.txt"

	got := truncateFilePath(long, 30)

	assert.Len(t, got, 30)
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "/file.txt"))
	assert.Equal(t, "/a/b.txt", truncateFilePath("/a/b.txt", 30))
	assert.Equal(t, "...", truncateFilePath("abcdef", 3))
}
