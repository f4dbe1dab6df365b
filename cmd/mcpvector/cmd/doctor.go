package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mcpvector/internal/embed"
	"github.com/Aman-CERP/mcpvector/internal/engine"
	"github.com/Aman-CERP/mcpvector/internal/logging"
	"github.com/Aman-CERP/mcpvector/internal/preflight"
)

// errChecksFailed is returned when a required check fails.
var errChecksFailed = errors.New("system check failed")

type doctorOptions struct {
	verbose      bool
	json         bool
	skipEmbedder bool
}

func newDoctorCmd() *cobra.Command {
	var opts doctorOptions

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check system requirements and diagnose issues",
		Long: `Run the checks the server performs before it starts serving.

Checks:
  - Index directory is writable
  - Disk space for the index at its configured capacity
  - File descriptor limit against the folders to watch
  - Watch folders exist
  - Embedder answers a test request

Use --verbose for details and --json for machine-readable output.`,
		Example: `  mcpvector doctor
  mcpvector doctor --verbose
  mcpvector doctor --json --skip-embedder`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.skipEmbedder, "skip-embedder", false, "Do not contact the embedder")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, opts doctorOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if _, err := cfg.Finalize(); err != nil {
		return err
	}

	dims := cfg.Embeddings.Dimensions
	if dims == 0 {
		dims = embed.StaticDimensions
	}
	target := preflight.Target{
		StorageDir: cfg.Storage.Path,
		Roots:      cfg.Watch.Folders,
		Capacity:   cfg.Storage.Capacity,
		Dimensions: dims,
	}
	if !opts.skipEmbedder {
		ec := engine.EmbedderConfig(cfg)
		target.Probe = func(ctx context.Context) error {
			return probeEmbedder(ctx, ec)
		}
	}

	checker := preflight.New(
		preflight.WithVerbose(opts.verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(ctx, target)

	if opts.json {
		if err := writeDoctorJSON(cmd, checker, results); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return errChecksFailed
	}
	return nil
}

// probeEmbedder builds the configured embedder and embeds one string.
func probeEmbedder(ctx context.Context, cfg embed.Config) error {
	cfg.DisableCache = true
	e, err := embed.NewEmbedder(ctx, cfg, logging.Discard())
	if err != nil {
		return err
	}
	defer func() { _ = e.Close() }()

	_, err = e.Embed(ctx, "mcpvector doctor")
	return err
}

// doctorReport is the --json output.
type doctorReport struct {
	Status   string        `json:"status"`
	Checks   []doctorCheck `json:"checks"`
	Warnings []string      `json:"warnings,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
}

type doctorCheck struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Required  bool   `json:"required"`
	Details   string `json:"details,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

func writeDoctorJSON(cmd *cobra.Command, checker *preflight.Checker, results []preflight.CheckResult) error {
	report := doctorReport{
		Status: checker.SummaryStatus(results),
		Checks: make([]doctorCheck, len(results)),
	}

	for i, r := range results {
		report.Checks[i] = doctorCheck{
			Name:      r.Name,
			Status:    strings.ToLower(r.Status.String()),
			Message:   r.Message,
			Required:  r.Required,
			Details:   r.Details,
			ElapsedMS: r.Elapsed.Milliseconds(),
		}
	}
	report.Errors, report.Warnings = preflight.Problems(results)

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
