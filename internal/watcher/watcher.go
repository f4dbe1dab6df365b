package watcher

import (
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted.
	OpDelete
	// OpRename indicates a file was moved from OldPath to Path. It never
	// leaves the debouncer: it is split into a delete and a create.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a file system event.
type FileEvent struct {
	// Path is the absolute path of the file.
	Path string

	// OldPath is the source path of a rename. Empty otherwise.
	OldPath string

	Operation Operation

	// Timestamp is when the event was observed.
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// DebounceWindow is the quiet interval before a path's event settles.
	// Default: 1s
	DebounceWindow time.Duration

	// PollInterval is the scan interval in polling mode.
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the size of the settled event channel.
	// Default: 1000
	EventBufferSize int

	// ForcePolling skips fsnotify entirely.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  time.Second,
		PollInterval:    5 * time.Second,
		EventBufferSize: 1000,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
