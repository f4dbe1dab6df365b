package preflight

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"
)

// MinFileDescriptors is the lowest file descriptor limit accepted even
// for a tiny tree.
const MinFileDescriptors = 1024

// descriptorReserve covers the index files, the journal, log files and
// sockets on top of the watches.
const descriptorReserve = 256

// maxCountedDirs stops the directory walk early on huge trees.
const maxCountedDirs = 1 << 20

// CountWatchedDirs counts the directories the watcher will register under
// roots. Hidden directories are skipped like the watcher skips them.
// Missing roots count as zero.
func CountWatchedDirs(roots []string) int {
	n := 0
	for _, root := range roots {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || !d.IsDir() {
				return nil
			}
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			n++
			if n >= maxCountedDirs {
				return filepath.SkipAll
			}
			return nil
		})
	}
	return n
}

// RequiredFileDescriptors is the limit needed to watch dirs directories.
func RequiredFileDescriptors(dirs int) uint64 {
	need := uint64(dirs + descriptorReserve)
	if need < MinFileDescriptors {
		return MinFileDescriptors
	}
	return need
}

// CheckFileDescriptors checks the open file limit against the number of
// directories fsnotify would hold open. Polling needs none, so a low
// limit only warns.
func (c *Checker) CheckFileDescriptors(dirs int) CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: false,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to read the open file limit: %v", err)
		return result
	}

	need := RequiredFileDescriptors(dirs)
	result.Message = fmt.Sprintf("limit %d, %d directories to watch", rLimit.Cur, dirs)

	if uint64(rLimit.Cur) < need {
		result.Status = StatusWarn
		result.Details = fmt.Sprintf("Raise it to at least %d with 'ulimit -n %d' or set watch.force_polling", need, need)
		return result
	}

	result.Status = StatusPass
	return result
}
