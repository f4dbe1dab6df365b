package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
)

// CheckWatchRoots warns about roots that are missing or not directories.
// Missing roots are skipped at runtime, so this never fails.
func (c *Checker) CheckWatchRoots(roots []string) CheckResult {
	result := CheckResult{
		Name:     "watch_roots",
		Required: false,
	}

	if len(roots) == 0 {
		result.Status = StatusWarn
		result.Message = "no watch folders configured (the working directory is used)"
		return result
	}

	var bad []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil || !info.IsDir() {
			bad = append(bad, root)
		}
	}

	if len(bad) > 0 {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%d of %d folder(s) unavailable", len(bad), len(roots))
		result.Details = strings.Join(bad, ", ")
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d folder(s)", len(roots))
	return result
}

// EmbedderTimeout bounds CheckEmbedder.
const EmbedderTimeout = 10 * time.Second

// CheckEmbedder runs probe with a timeout. The embedder must be reachable
// for the server to start, so a failure is critical.
func (c *Checker) CheckEmbedder(ctx context.Context, probe func(ctx context.Context) error) CheckResult {
	result := CheckResult{
		Name:     "embedder",
		Required: true,
	}

	ctx, cancel := context.WithTimeout(ctx, EmbedderTimeout)
	defer cancel()

	if err := probe(ctx); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("unavailable: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = "ready"
	return result
}
