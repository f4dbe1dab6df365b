package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mcpvector/internal/engine"
	"github.com/Aman-CERP/mcpvector/internal/journal"
	"github.com/Aman-CERP/mcpvector/internal/ui"
)

type indexOptions struct {
	noTUI bool
	watch []string
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the watch folders once and exit",
		Long: `Scan every watch folder, embed new and modified documents, drop documents
whose file is gone and save the index. Nothing is watched afterwards.

The index directory is locked while this runs, so stop 'mcpvector serve'
first.`,
		Example: `  mcpvector index
  mcpvector index --watch ~/Documents --no-tui`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Plain text progress instead of the interactive display")
	cmd.Flags().StringArrayVarP(&opts.watch, "watch", "w", nil, "Folder to index (repeatable)")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("watch") {
		cfg.Watch.Folders = opts.watch
	}
	if _, err := cfg.Finalize(); err != nil {
		return err
	}

	// The progress display owns the terminal; logs go to the file only.
	logger, cleanup, err := setupLogging(cfg, false)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithRoots(cfg.Watch.Folders),
	))
	if err := r.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = r.Stop() }()

	r.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning, Message: "Scanning watch folders"})

	eng := engine.New(cfg, engine.Options{Logger: logger})
	summary, err := eng.IndexOnce(ctx, ui.IndexObserver(r))
	if err != nil {
		logger.Error("index failed", slog.String("error", err.Error()))
		return err
	}

	r.Complete(completionStats(summary))
	logger.Info("index complete",
		slog.Int("scanned", summary.Report.Scanned),
		slog.Int("documents", summary.Total),
		slog.Duration("duration", summary.Duration))
	return nil
}

func completionStats(s engine.IndexSummary) ui.CompletionStats {
	return ui.CompletionStats{
		Scanned:   s.Report.Scanned,
		Indexed:   int(s.Outcomes[journal.OutcomeIndexed]),
		Unchanged: int(s.Outcomes[journal.OutcomeUnchanged]),
		Deleted:   int(s.Outcomes[journal.OutcomeDeleted]),
		Documents: s.Total,
		Duration:  s.Duration,
		Errors:    int(s.Outcomes[journal.OutcomeFailed]),
		Warnings:  int(s.Outcomes[journal.OutcomeSkipped]),
		Embedder: ui.EmbedderInfo{
			Provider:   s.Embedder.Provider,
			Model:      s.Embedder.Model,
			Dimensions: s.Embedder.Dimensions,
		},
	}
}
