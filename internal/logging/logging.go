package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" toml:"level"`
	// FilePath is the log file. Empty disables file logging.
	FilePath string `yaml:"file" toml:"file"`
	// MaxSizeMB is the size that triggers rotation.
	MaxSizeMB int `yaml:"max_size_mb" toml:"max_size_mb"`
	// MaxFiles is the number of rotated files kept.
	MaxFiles int `yaml:"max_files" toml:"max_files"`
	// WriteToStderr tees log lines to stderr.
	WriteToStderr bool `yaml:"stderr" toml:"stderr"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// Setup builds a JSON slog logger from cfg. The returned cleanup closes the
// log file and must be called on exit.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var (
		outputs []io.Writer
		writer  *RotatingWriter
	)

	if cfg.FilePath != "" {
		w, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		writer = w
		outputs = append(outputs, w)
	}
	if cfg.WriteToStderr || len(outputs) == 0 {
		outputs = append(outputs, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(outputs...), &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})

	cleanup := func() {
		if writer != nil {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}

	return slog.New(handler), cleanup, nil
}

// Discard returns a logger that drops everything. Used by tests and by
// components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDefault returns l, or slog.Default() when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// ParseLevel converts a level name to slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
