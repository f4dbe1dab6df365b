package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Aman-CERP/mcpvector/internal/api"
	"github.com/Aman-CERP/mcpvector/internal/async"
	"github.com/Aman-CERP/mcpvector/internal/journal"
)

// StatusRenderer displays the index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
	now    func() time.Time
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor), now: time.Now}
}

// Render writes a human-readable status.
func (r *StatusRenderer) Render(st api.StatusResponse) error {
	w := &errWriter{w: r.out}

	w.printf("%s\n\n", r.styles.Header.Render("mcpvector status"))
	w.printf("  Documents:  %d\n", st.DocumentCount)
	w.printf("  Model:      %s (%d dims)\n", st.ModelName, st.EmbeddingDimension)
	w.printf("  Embedder:   %s", st.Embedder.Provider)
	if st.Embedder.Cached {
		w.printf(" (cached)")
	}
	w.printf("\n")
	w.printf("  Storage:    %s", st.StorageLocation)
	if !st.PersistedFilesPresent {
		w.printf(" %s", r.styles.Warning.Render("(not persisted yet)"))
	}
	w.printf("\n\n")

	w.printf("  Watching:\n")
	for _, f := range st.WatchFolders {
		w.printf("    %s\n", f)
	}
	w.printf("  Extensions: %s\n", strings.Join(st.SupportedExtensions, " "))
	if st.WatcherMode != "" {
		w.printf("  Watcher:    %s\n", r.styles.Success.Render(st.WatcherMode))
	}
	w.printf("  Queue:      %d pending\n", st.QueueDepth)

	if len(st.Processed) > 0 {
		var parts []string
		for _, o := range journal.Outcomes {
			if n := st.Processed[o]; n > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", n, o))
			}
		}
		w.printf("  Processed:  %s\n", strings.Join(parts, ", "))
	}

	if run := st.LastRun; run != nil {
		w.printf("\n  Last run:   %s %s (%s, %d scanned, %d queued)\n",
			run.Trigger, r.renderRunStatus(run.Status), formatTime(run.StartedAt, r.now()), run.Scanned, run.Enqueued)
		if run.ErrorMessage != "" {
			w.printf("              %s\n", r.styles.Error.Render(run.ErrorMessage))
		}
	}
	if st.NextReconcile != nil {
		w.printf("  Next run:   %s\n", st.NextReconcile.Local().Format("2006-01-02 15:04"))
	}

	if q := st.Queries; q != nil && q.TotalQueries > 0 {
		w.printf("\n  Queries:    %d (%d with no results, %d failed)\n", q.TotalQueries, q.ZeroResultCount, q.FailedQueries)
	}
	return w.err
}

// RenderJSON writes the status as indented JSON.
func (r *StatusRenderer) RenderJSON(st api.StatusResponse) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func (r *StatusRenderer) renderRunStatus(s async.RunStatus) string {
	switch s {
	case async.StatusDone:
		return r.styles.Success.Render(string(s))
	case async.StatusRunning:
		return r.styles.Active.Render(string(s))
	case async.StatusCancelled:
		return r.styles.Warning.Render(string(s))
	case async.StatusFailed:
		return r.styles.Error.Render(string(s))
	default:
		return string(s)
	}
}

// formatTime renders t relative to now.
func formatTime(t, now time.Time) string {
	diff := now.Sub(t)
	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Local().Format("2006-01-02 15:04")
	}
}

// FormatBytes formats a byte count for humans.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
