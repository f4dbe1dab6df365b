// Package logging configures structured slog output for mcpvector.
//
// Logs are JSON lines written to a size-rotated file, optionally tee'd to
// stderr. Stdout is never used so the MCP stdio transport stays clean.
package logging
