package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.mcp-vector/logs, or a temp directory when the
// home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".mcp-vector", "logs")
	}
	return filepath.Join(home, ".mcp-vector", "logs")
}

// DefaultLogPath returns the default server log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "server.log")
}
