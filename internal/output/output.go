// Package output formats command-line output: status lines and search results.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Aman-CERP/mcpvector/internal/api"
)

// Writer writes formatted CLI output. Write errors are ignored.
type Writer struct {
	out io.Writer
}

// New creates a Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints msg behind icon, or indented when icon is empty.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
		return
	}
	_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
}

// Statusf is Status with formatting.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success line.
func (w *Writer) Success(msg string) { w.Status("✅", msg) }

// Successf is Success with formatting.
func (w *Writer) Successf(format string, args ...any) { w.Success(fmt.Sprintf(format, args...)) }

// Warning prints a warning line.
func (w *Writer) Warning(msg string) { w.Status("⚠️ ", msg) }

// Warningf is Warning with formatting.
func (w *Writer) Warningf(format string, args ...any) { w.Warning(fmt.Sprintf(format, args...)) }

// Error prints an error line.
func (w *Writer) Error(msg string) { w.Status("❌", msg) }

// Errorf is Error with formatting.
func (w *Writer) Errorf(format string, args ...any) { w.Error(fmt.Sprintf(format, args...)) }

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// SearchResults prints ranked results with a score bar and their metadata.
// With verbose every metadata key is listed.
func (w *Writer) SearchResults(resp api.SearchResponse, verbose bool) {
	if len(resp.Results) == 0 {
		_, _ = fmt.Fprintf(w.out, "No results for %q\n", resp.Query)
		return
	}

	_, _ = fmt.Fprintf(w.out, "%d result(s) for %q\n\n", resp.ResultsCount, resp.Query)
	for i, r := range resp.Results {
		_, _ = fmt.Fprintf(w.out, "%2d. %s  %.3f  %s\n", i+1, scoreBar(r.Score, 10), r.Score, r.Path)
		if !verbose {
			continue
		}
		keys := make([]string, 0, len(r.Metadata))
		for k := range r.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			_, _ = fmt.Fprintf(w.out, "      %s: %s\n", k, r.Metadata[k].Text())
		}
	}
}

// scoreBar renders a cosine similarity in [-1, 1] as a bar; negatives are empty.
func scoreBar(score float32, width int) string {
	filled := int(score*float32(width) + 0.5)
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
