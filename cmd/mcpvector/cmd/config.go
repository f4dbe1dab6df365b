package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/mcpvector/configs"
	"github.com/Aman-CERP/mcpvector/internal/config"
	"github.com/Aman-CERP/mcpvector/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage the mcpvector configuration file.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.mcp-vector/config.yaml)
  3. File given with --config
  4. Environment variables (MCP_VECTOR_*)
  5. Command-line flags`,
		Example: `  # Create the user config from the template
  mcpvector config init

  # Show the effective configuration
  mcpvector config show

  # Print the user config path
  mcpvector config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigRestoreCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file",
		Long: `Write a commented configuration template to ~/.mcp-vector/config.yaml
(or $MCP_VECTOR_HOME/config.yaml).

With --force an existing file is backed up and rewritten with your
settings plus any options added since it was created.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Back up and rewrite an existing file")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), config.UserConfigPath())
			return nil
		},
	}
}

func newConfigRestoreCmd() *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "restore [BACKUP]",
		Short: "Restore the user config from a backup",
		Long: `Restore ~/.mcp-vector/config.yaml from a backup made by 'config init
--force'. Without an argument the newest backup is used. The current file
is itself backed up first.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigRestore(cmd, args, list)
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List backups instead of restoring")

	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.UserConfigPath()

	if _, err := os.Stat(path); err == nil {
		if !force {
			out.Warning("Configuration already exists")
			out.Statusf("📁", "Location: %s", path)
			out.Status("💡", "Use --force to back it up and add new defaults")
			return nil
		}
		return runConfigUpgrade(out, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(configs.ConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", path)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Add your folders under watch.folders")
	out.Status("", "  2. Run 'mcpvector config show' to verify")
	out.Status("", "  3. Start the server with 'mcpvector serve'")
	return nil
}

// runConfigUpgrade backs up the user config and rewrites it merged over
// the current defaults.
func runConfigUpgrade(out *output.Writer, path string) error {
	backup, err := config.Backup(path)
	if err != nil {
		return fmt.Errorf("failed to backup config: %w", err)
	}

	cfg := config.NewConfig()
	if err := cfg.LoadFile(path); err != nil {
		return err
	}
	if err := cfg.WriteYAML(path); err != nil {
		return err
	}

	out.Success("Configuration upgraded")
	out.Statusf("📁", "Location: %s", path)
	out.Statusf("💾", "Backup: %s", backup)
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigRestore(cmd *cobra.Command, args []string, list bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.UserConfigPath()

	backups, err := config.ListBackups(path)
	if err != nil {
		return err
	}

	if list {
		if len(backups) == 0 {
			out.Status("", "No backups")
			return nil
		}
		for _, b := range backups {
			out.Status("", b)
		}
		return nil
	}

	var from string
	switch {
	case len(args) == 1:
		from = args[0]
	case len(backups) > 0:
		from = backups[0]
	default:
		return fmt.Errorf("no backups of %s", path)
	}

	if err := config.Restore(path, from); err != nil {
		return err
	}
	out.Successf("Restored %s", path)
	out.Statusf("💾", "From: %s", from)
	return nil
}
