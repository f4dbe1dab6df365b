package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mcpvector/internal/ui"
)

type statusOptions struct {
	client clientOptions
	json   bool
}

func newStatusCmd() *cobra.Command {
	var opts statusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of a running server",
		Long: `Show the model, watch folders, document count, queue depth and the
last reconciliation run of a running mcpvector server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, opts)
		},
	}

	opts.client.register(cmd)
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, opts statusOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := opts.client.newClient()
	if err != nil {
		return err
	}

	st, err := client.Status(ctx)
	if err != nil {
		return clientError(client, err)
	}

	r := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor() || !ui.IsTTY(cmd.OutOrStdout()))
	if opts.json {
		return r.RenderJSON(st)
	}
	return r.Render(st)
}
