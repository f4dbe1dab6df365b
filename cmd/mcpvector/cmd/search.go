package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/mcpvector/internal/api"
	"github.com/Aman-CERP/mcpvector/internal/output"
)

type searchOptions struct {
	client  clientOptions
	topK    int
	paths   []string
	json    bool
	verbose bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search the index of a running server",
		Long: `Search the documents indexed by a running mcpvector server.

Results are ranked by cosine similarity, best first. --path keeps only
results under the given prefixes.`,
		Example: `  mcpvector search "quarterly budget forecast"
  mcpvector search "meeting notes" -k 10 --path ~/Documents/work
  mcpvector search "invoice" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	opts.client.register(cmd)
	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", api.DefaultTopK, "Number of results")
	cmd.Flags().StringArrayVar(&opts.paths, "path", nil, "Only return results under this path (repeatable)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show document metadata")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := opts.client.newClient()
	if err != nil {
		return err
	}

	paths := make([]string, 0, len(opts.paths))
	for _, p := range opts.paths {
		paths = append(paths, absPath(p))
	}

	resp, err := client.Search(ctx, api.SearchRequest{Query: query, TopK: opts.topK, Paths: paths})
	if err != nil {
		return clientError(client, err)
	}
	slog.Debug("search_complete", slog.String("server", client.BaseURL()), slog.Int("results", resp.ResultsCount))

	if opts.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	output.New(cmd.OutOrStdout()).SearchResults(resp, opts.verbose)
	return nil
}

// absPath resolves p against the working directory. The server resolves
// paths against its own, which may differ.
func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
