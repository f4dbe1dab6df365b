package search

import (
	"strings"

	"github.com/Aman-CERP/mcpvector/internal/store"
)

// FilterByPrefix keeps matches whose path starts with any of prefixes.
// The comparison is a plain string prefix match; an empty prefix list
// keeps everything. Order is preserved.
func FilterByPrefix(matches []store.Match, prefixes []string) []store.Match {
	if len(prefixes) == 0 {
		return matches
	}

	out := make([]store.Match, 0, len(matches))
	for _, m := range matches {
		for _, p := range prefixes {
			if strings.HasPrefix(m.Record.Path, p) {
				out = append(out, m)
				break
			}
		}
	}
	return out
}
