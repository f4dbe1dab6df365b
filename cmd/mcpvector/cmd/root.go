// Package cmd provides the CLI commands for mcpvector.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mcpvector/internal/config"
	"github.com/Aman-CERP/mcpvector/internal/logging"
	"github.com/Aman-CERP/mcpvector/internal/profiling"
	"github.com/Aman-CERP/mcpvector/pkg/version"
)

// Global flags
var (
	configPath string
	debugMode  bool
)

// Profiling flags
var (
	profileOpts    profiling.Options
	profileSession *profiling.Session
)

// NewRootCmd creates the root command for the mcpvector CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcpvector",
		Short: "Local semantic search over your files",
		Long: `mcpvector watches folders, embeds every supported document into a
local vector index and answers natural-language queries over HTTP and the
Model Context Protocol.

Start the server with 'mcpvector serve' and query it with
'mcpvector search'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("mcpvector version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (YAML or TOML)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = stopProfiling

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func startProfiling(_ *cobra.Command, _ []string) error {
	if !profileOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profileOpts)
	if err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}
	profileSession = s
	return nil
}

func stopProfiling(_ *cobra.Command, _ []string) error {
	err := profileSession.Stop()
	profileSession = nil
	if err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		_, _ = fmt.Fprint(root.ErrOrStderr(), formatError(err))
	}
	return err
}

// loadConfig loads the layered configuration and applies --debug.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

// setupLogging builds the process logger from cfg. Logs go to the rotating
// file and, when toStderr is set, to stderr; never to stdout.
func setupLogging(cfg *config.Config, toStderr bool) (*slog.Logger, func(), error) {
	logger, cleanup, err := logging.Setup(logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: toStderr,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	return logger, cleanup, nil
}
