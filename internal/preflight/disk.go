package preflight

import (
	"fmt"
	"syscall"

	"github.com/dustin/go-humanize"
)

// MinDiskSpaceBytes is the floor for the free space required under the
// storage directory, whatever the index size.
const MinDiskSpaceBytes = 100 * humanize.MiByte

// recordOverheadBytes approximates the per-document cost beyond the raw
// vector: graph neighbor lists plus the JSON catalog entry.
const recordOverheadBytes = 1024

// EstimateIndexBytes is the on-disk size of a full index holding capacity
// vectors of dims float32 components.
func EstimateIndexBytes(capacity, dims int) uint64 {
	if capacity <= 0 || dims <= 0 {
		return 0
	}
	return uint64(capacity) * (uint64(dims)*4 + recordOverheadBytes)
}

// RequiredDiskBytes is the free space a persist of a full index needs.
// Artifacts are written beside the old ones before the rename, so both
// copies exist for a moment.
func RequiredDiskBytes(capacity, dims int) uint64 {
	need := 2 * EstimateIndexBytes(capacity, dims)
	if need < MinDiskSpaceBytes {
		return MinDiskSpaceBytes
	}
	return need
}

// CheckDiskSpace checks that the filesystem holding path has need bytes free.
func (c *Checker) CheckDiskSpace(path string, need uint64) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	free := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free, %s needed", humanize.IBytes(free), humanize.IBytes(need))

	if free < need {
		result.Status = StatusFail
		result.Details = "Free space or lower storage.capacity; a full index needs room for two copies while persisting"
		return result
	}

	result.Status = StatusPass
	return result
}
