package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Summary states returned by SummaryStatus.
const (
	SummaryReady        = "ready"
	SummaryWithWarnings = "ready_with_warnings"
	SummaryFailed       = "failed"
)

// CheckResult is the outcome of one check. Required checks that fail keep
// the server from starting.
type CheckResult struct {
	Name     string        `json:"name"`
	Status   CheckStatus   `json:"status"`
	Message  string        `json:"message"`
	Details  string        `json:"details,omitempty"`
	Required bool          `json:"required"`
	Elapsed  time.Duration `json:"elapsed"`
}

// IsCritical reports whether r is a failed required check.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target describes the installation RunAll inspects.
type Target struct {
	StorageDir string
	Roots      []string

	// Capacity and Dimensions size the disk space requirement. Zero
	// values fall back to the minimum.
	Capacity   int
	Dimensions int

	// Probe reports whether the embedder answers. Nil skips the check.
	Probe func(ctx context.Context) error
}

// Checker runs checks and prints their results.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints details and timings.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) { c.verbose = verbose }
}

// WithOutput sets where PrintResults writes. Default: stdout.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.output = w }
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{output: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// timed runs check and records how long it took.
func timed(check func() CheckResult) CheckResult {
	start := time.Now()
	r := check()
	r.Elapsed = time.Since(start)
	return r
}

// RunAll runs every check that applies to t, in dependency order.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	storage := timed(func() CheckResult { return c.CheckStorage(t.StorageDir) })
	results := []CheckResult{storage}

	// Free space is measured on the directory CheckStorage created.
	if storage.Status == StatusPass {
		need := RequiredDiskBytes(t.Capacity, t.Dimensions)
		results = append(results, timed(func() CheckResult { return c.CheckDiskSpace(t.StorageDir, need) }))
	}

	results = append(results,
		timed(func() CheckResult { return c.CheckFileDescriptors(CountWatchedDirs(t.Roots)) }),
		timed(func() CheckResult { return c.CheckWatchRoots(t.Roots) }),
	)

	if t.Probe != nil {
		results = append(results, timed(func() CheckResult { return c.CheckEmbedder(ctx, t.Probe) }))
	}
	return results
}

// HasCriticalFailures reports whether any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus folds results into one of the Summary states. A failed
// optional check counts as a warning.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	summary := SummaryReady
	for _, r := range results {
		switch {
		case r.IsCritical():
			return SummaryFailed
		case r.Status != StatusPass:
			summary = SummaryWithWarnings
		}
	}
	return summary
}

// Problems splits the non-passing results into errors and warnings, each
// formatted as "name: message".
func Problems(results []CheckResult) (errs, warnings []string) {
	for _, r := range results {
		line := r.Name + ": " + r.Message
		switch {
		case r.IsCritical():
			errs = append(errs, line)
		case r.Status != StatusPass:
			warnings = append(warnings, line)
		}
	}
	return errs, warnings
}

// PrintResults writes a human-readable report.
func (c *Checker) PrintResults(results []CheckResult) {
	w := c.output
	_, _ = fmt.Fprintln(w, "mcpvector system check")
	_, _ = fmt.Fprintln(w, strings.Repeat("=", len("mcpvector system check")))
	_, _ = fmt.Fprintln(w)

	for _, r := range results {
		if c.verbose {
			_, _ = fmt.Fprintf(w, "[%s] %s: %s (%s)\n", r.Status, r.Name, r.Message, r.Elapsed.Round(time.Millisecond))
			if r.Details != "" {
				_, _ = fmt.Fprintf(w, "      %s\n", r.Details)
			}
			continue
		}
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
	}

	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintf(w, "Status: %s\n", strings.ToUpper(c.SummaryStatus(results)))

	errs, warnings := Problems(results)
	printList(w, "error(s)", errs)
	printList(w, "warning(s)", warnings)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n%d %s:\n", len(items), label)
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "  - %s\n", item)
	}
}
