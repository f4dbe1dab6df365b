package mcp

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/mcpvector/internal/api"
)

// metadataShown limits the metadata keys rendered per result.
var metadataShown = []string{"title", "size_bytes", "modified_time", "page_count"}

// FormatSearchResults renders a search response as markdown.
func FormatSearchResults(resp api.SearchResponse) string {
	if len(resp.Results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", resp.Query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", resp.Query)
	fmt.Fprintf(&sb, "Found %d result", len(resp.Results))
	if len(resp.Results) != 1 {
		sb.WriteString("s")
	}
	sb.WriteString("\n\n")

	for i, r := range resp.Results {
		formatResult(&sb, i+1, r)
	}
	return sb.String()
}

func formatResult(sb *strings.Builder, num int, r api.SearchResult) {
	fmt.Fprintf(sb, "### %d. %s (score: %.3f)\n\n", num, filepath.Base(r.Path), r.Score)
	fmt.Fprintf(sb, "- **Path:** `%s`\n", r.Path)
	fmt.Fprintf(sb, "- **Type:** %s\n", MimeTypeForPath(r.Path))

	keys := make([]string, 0, len(metadataShown))
	for _, k := range metadataShown {
		if _, ok := r.Metadata[k]; ok {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		if v := r.Metadata[k].Text(); v != "" {
			fmt.Fprintf(sb, "- **%s:** %s\n", k, v)
		}
	}
	sb.WriteString("\n")
}

// ToSearchResultOutput converts an API result to the tool output format.
func ToSearchResultOutput(r api.SearchResult) SearchResultOutput {
	out := SearchResultOutput{
		ID:          r.ID,
		Path:        r.Path,
		Score:       float64(r.Score),
		ContentHash: r.ContentHash,
		MimeType:    MimeTypeForPath(r.Path),
	}
	if len(r.Metadata) > 0 {
		out.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v.Any()
		}
	}
	return out
}
