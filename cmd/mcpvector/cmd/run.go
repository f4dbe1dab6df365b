package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mcpvector/internal/api"
	"github.com/Aman-CERP/mcpvector/internal/output"
)

type runOptions struct {
	client clientOptions
	json   bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run [PATH...]",
		Short: "Reconcile the index with the watched folders",
		Long: `Ask a running server to rescan its watch folders: new and modified files
are indexed and documents whose file is gone are removed.

With PATH arguments only those files or directories are rescanned. They
must lie inside a watch folder. The server answers immediately and works
in the background; follow progress with 'mcpvector status'.`,
		Example: `  mcpvector run
  mcpvector run ~/Documents/reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), cmd, args, opts)
		},
	}

	opts.client.register(cmd)
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")

	return cmd
}

func runRun(ctx context.Context, cmd *cobra.Command, args []string, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := opts.client.newClient()
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(args))
	for _, a := range args {
		paths = append(paths, absPath(a))
	}

	resp, err := client.Run(ctx, api.RunRequest{Paths: paths})
	if err != nil {
		return clientError(client, err)
	}

	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	out := output.New(cmd.OutOrStdout())
	out.Success(resp.Message)
	out.Statusf("", "Run ID: %s", resp.RunID)
	return nil
}
