package preflight

import (
	"fmt"
	"os"
	"path/filepath"
)

const probeFileName = ".mcpvector-preflight"

// CheckStorage creates the storage directory if needed and verifies a
// file can be written inside it.
func (c *Checker) CheckStorage(dir string) CheckResult {
	result := CheckResult{
		Name:     "storage",
		Required: true,
		Details:  dir,
	}

	if dir == "" {
		result.Status = StatusFail
		result.Message = "no storage directory configured"
		return result
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	probe := filepath.Join(dir, probeFileName)
	f, err := os.Create(probe)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(probe)

	result.Status = StatusPass
	result.Message = "writable"
	return result
}
