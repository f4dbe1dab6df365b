// Package config loads the mcpvector configuration.
//
// Values are layered in increasing precedence:
//  1. Built-in defaults
//  2. User config (~/.mcp-vector/config.yaml), when present
//  3. An explicit config file (--config), YAML or TOML by extension
//  4. Environment variables (MCP_VECTOR_*)
//  5. Command line flags, applied by the caller
//
// Validate runs last and checks both struct tags and cross-field rules.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/ignore"
)

// Environment variables.
const (
	EnvHome         = "MCP_VECTOR_HOME"
	EnvHost         = "MCP_VECTOR_HOST"
	EnvPort         = "MCP_VECTOR_PORT"
	EnvModel        = "MCP_VECTOR_MODEL"
	EnvDBPath       = "MCP_VECTOR_DB_PATH"
	EnvWatchFolders = "MCP_VECTOR_WATCH_FOLDERS"
	EnvExtensions   = "MCP_VECTOR_EXTENSIONS"
	EnvEmbedder     = "MCP_VECTOR_EMBEDDER"
	EnvOllamaHost   = "MCP_VECTOR_OLLAMA_HOST"
	EnvLogLevel     = "MCP_VECTOR_LOG_LEVEL"
)

// Duration is a time.Duration written as "1s", "500ms" in config files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the complete mcpvector configuration.
type Config struct {
	Version    int              `yaml:"version" toml:"version" json:"version"`
	Server     ServerConfig     `yaml:"server" toml:"server" json:"server"`
	Watch      WatchConfig      `yaml:"watch" toml:"watch" json:"watch"`
	Storage    StorageConfig    `yaml:"storage" toml:"storage" json:"storage"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" toml:"embeddings" json:"embeddings"`
	Worker     WorkerConfig     `yaml:"worker" toml:"worker" json:"worker"`
	Schedule   ScheduleConfig   `yaml:"schedule" toml:"schedule" json:"schedule"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging" json:"logging"`
}

// ServerConfig configures the query transports.
type ServerConfig struct {
	Host string `yaml:"host" toml:"host" json:"host" validate:"required"`
	Port int    `yaml:"port" toml:"port" json:"port" validate:"min=1,max=65535"`
	// Transport is http, stdio (MCP) or both.
	Transport string `yaml:"transport" toml:"transport" json:"transport" validate:"oneof=http stdio both"`
}

// WatchConfig configures which files are indexed.
type WatchConfig struct {
	Folders []string `yaml:"folders" toml:"folders" json:"folders"`
	// Extensions limits indexing to these extensions. Empty means every
	// format the extractors support.
	Extensions []string `yaml:"extensions" toml:"extensions" json:"extensions"`
	// Ignore holds gitignore-style patterns applied below every folder.
	Ignore       []string `yaml:"ignore" toml:"ignore" json:"ignore"`
	Debounce     Duration `yaml:"debounce" toml:"debounce" json:"debounce"`
	PollInterval Duration `yaml:"poll_interval" toml:"poll_interval" json:"poll_interval"`
	ForcePolling bool     `yaml:"force_polling" toml:"force_polling" json:"force_polling"`
}

// StorageConfig configures the vector index.
type StorageConfig struct {
	Path     string `yaml:"path" toml:"path" json:"path" validate:"required"`
	Capacity int    `yaml:"capacity" toml:"capacity" json:"capacity" validate:"min=1"`
	M        int    `yaml:"m" toml:"m" json:"m" validate:"min=2,max=128"`
	// EfConstruction is recorded for compatibility; the graph library
	// builds with EfSearch.
	EfConstruction   int     `yaml:"ef_construction" toml:"ef_construction" json:"ef_construction" validate:"min=1"`
	EfSearch         int     `yaml:"ef_search" toml:"ef_search" json:"ef_search" validate:"min=1"`
	CompactThreshold float64 `yaml:"compact_threshold" toml:"compact_threshold" json:"compact_threshold" validate:"gt=0,lte=1"`
	CompactMinOrphan int     `yaml:"compact_min_orphans" toml:"compact_min_orphans" json:"compact_min_orphans" validate:"min=0"`
	JournalRetention int     `yaml:"journal_retention" toml:"journal_retention" json:"journal_retention" validate:"min=0"`
}

// EmbeddingsConfig configures the embedder.
type EmbeddingsConfig struct {
	// Provider is auto, ollama or static.
	Provider      string   `yaml:"provider" toml:"provider" json:"provider" validate:"oneof=auto ollama static"`
	Model         string   `yaml:"model" toml:"model" json:"model" validate:"required"`
	OllamaHost    string   `yaml:"ollama_host" toml:"ollama_host" json:"ollama_host"`
	Dimensions    int      `yaml:"dimensions" toml:"dimensions" json:"dimensions" validate:"min=0"`
	Timeout       Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
	RatePerSecond float64  `yaml:"rate_per_second" toml:"rate_per_second" json:"rate_per_second" validate:"min=0"`
	CacheSize     int      `yaml:"cache_size" toml:"cache_size" json:"cache_size" validate:"min=0"`
}

// WorkerConfig configures the ingestion worker.
type WorkerConfig struct {
	PollInterval Duration `yaml:"poll_interval" toml:"poll_interval" json:"poll_interval"`
	ItemTimeout  Duration `yaml:"item_timeout" toml:"item_timeout" json:"item_timeout"`
	JoinTimeout  Duration `yaml:"join_timeout" toml:"join_timeout" json:"join_timeout"`
	MaxAttempts  int      `yaml:"max_attempts" toml:"max_attempts" json:"max_attempts" validate:"min=1,max=10"`
}

// ScheduleConfig configures periodic reconciliation.
type ScheduleConfig struct {
	// Reconcile is a standard five-field cron expression or a descriptor
	// such as "@hourly". Empty disables scheduled reconciliation.
	Reconcile string `yaml:"reconcile" toml:"reconcile" json:"reconcile"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level     string `yaml:"level" toml:"level" json:"level" validate:"oneof=debug info warn error"`
	File      string `yaml:"file" toml:"file" json:"file"`
	MaxSizeMB int    `yaml:"max_size_mb" toml:"max_size_mb" json:"max_size_mb" validate:"min=1"`
	MaxFiles  int    `yaml:"max_files" toml:"max_files" json:"max_files" validate:"min=1"`
	Stderr    bool   `yaml:"stderr" toml:"stderr" json:"stderr"`
}

// HomeDir is the mcpvector state directory, ~/.mcp-vector unless
// MCP_VECTOR_HOME is set.
func HomeDir() string {
	if h := os.Getenv(EnvHome); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".mcp-vector")
	}
	return filepath.Join(home, ".mcp-vector")
}

// UserConfigPath is the implicit config file location.
func UserConfigPath() string {
	return filepath.Join(HomeDir(), "config.yaml")
}

// NewConfig returns the defaults.
func NewConfig() *Config {
	home := HomeDir()
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      5000,
			Transport: "http",
		},
		Watch: WatchConfig{
			Folders:      []string{},
			Extensions:   []string{},
			Ignore:       []string{},
			Debounce:     Duration(time.Second),
			PollInterval: Duration(5 * time.Second),
		},
		Storage: StorageConfig{
			Path:             filepath.Join(home, "db"),
			Capacity:         100000,
			M:                16,
			EfConstruction:   200,
			EfSearch:         50,
			CompactThreshold: 0.2,
			CompactMinOrphan: 100,
			JournalRetention: 10000,
		},
		Embeddings: EmbeddingsConfig{
			Provider:  "auto",
			Model:     "paraphrase-multilingual-MiniLM-L12-v2",
			Timeout:   Duration(30 * time.Second),
			CacheSize: 1000,
		},
		Worker: WorkerConfig{
			PollInterval: Duration(time.Second),
			ItemTimeout:  Duration(2 * time.Minute),
			JoinTimeout:  Duration(5 * time.Second),
			MaxAttempts:  3,
		},
		Logging: LoggingConfig{
			Level:     "info",
			File:      filepath.Join(home, "logs", "server.log"),
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// Load builds the effective configuration. path is an explicit config
// file and may be empty. The result is not yet validated: callers apply
// flag overrides first, then call Finalize.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if user := UserConfigPath(); fileExists(user) {
		if err := cfg.LoadFile(user); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path != "" {
		if !fileExists(path) {
			return nil, verrors.New(verrors.ErrCodeConfigNotFound, "config file not found", nil).
				WithDetail("path", path)
		}
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile overlays the file at path onto c. Keys absent from the file
// keep their current value. Files ending in .toml are parsed as TOML,
// anything else as YAML (which also accepts JSON).
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return verrors.New(verrors.ErrCodeConfigInvalid, "failed to read config file", err).
			WithDetail("path", path)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(c)
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(c)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	}
	if err != nil {
		return verrors.New(verrors.ErrCodeConfigInvalid, "failed to parse config file", err).
			WithDetail("path", path)
	}
	return nil
}

// ApplyEnv applies MCP_VECTOR_* overrides.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvHost); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return verrors.ConfigError(fmt.Sprintf("%s must be an integer, got %q", EnvPort, v), err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv(EnvWatchFolders); v != "" {
		c.Watch.Folders = splitList(v, ";")
	}
	if v := os.Getenv(EnvExtensions); v != "" {
		c.Watch.Extensions = splitList(v, ",")
	}
	if v := os.Getenv(EnvEmbedder); v != "" {
		c.Embeddings.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(EnvOllamaHost); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	return nil
}

// Finalize expands paths, falls back to the working directory when no
// watch folder is configured, and validates. It reports whether the
// working directory fallback was used.
func (c *Config) Finalize() (usedCwd bool, err error) {
	if len(c.Watch.Folders) == 0 {
		cwd, err := os.Getwd()
		if err != nil {
			return false, verrors.New(verrors.ErrCodeNoWatchRoots, "no watch folders configured", err)
		}
		c.Watch.Folders = []string{cwd}
		usedCwd = true
	}

	c.Storage.Path = ExpandHome(c.Storage.Path)
	c.Logging.File = ExpandHome(c.Logging.File)
	for i, f := range c.Watch.Folders {
		c.Watch.Folders[i] = ExpandHome(f)
	}

	return usedCwd, c.Validate()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return verrors.New(verrors.ErrCodeConfigInvalid, describeValidation(err), err)
	}

	durations := map[string]Duration{
		"watch.debounce":       c.Watch.Debounce,
		"watch.poll_interval":  c.Watch.PollInterval,
		"embeddings.timeout":   c.Embeddings.Timeout,
		"worker.poll_interval": c.Worker.PollInterval,
		"worker.item_timeout":  c.Worker.ItemTimeout,
		"worker.join_timeout":  c.Worker.JoinTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return verrors.ConfigError(fmt.Sprintf("%s must be positive, got %s", name, d.Std()), nil)
		}
	}

	if c.Schedule.Reconcile != "" {
		if _, err := cron.ParseStandard(c.Schedule.Reconcile); err != nil {
			return verrors.ConfigError(fmt.Sprintf("schedule.reconcile is not a valid cron expression: %q", c.Schedule.Reconcile), err)
		}
	}

	for _, f := range c.Watch.Folders {
		if strings.TrimSpace(f) == "" {
			return verrors.ConfigError("watch.folders must not contain empty entries", nil)
		}
	}
	if err := ignore.Validate(c.Watch.Ignore); err != nil {
		return verrors.ConfigError("watch.ignore: "+err.Error(), err)
	}

	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid configuration"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(strings.TrimPrefix(fe.Namespace(), "Config."))
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s (got %v)", field, fe.Tag(), fe.Value()))
		}
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// WriteYAML writes c to path, creating parent directories.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func splitList(v, sep string) []string {
	var out []string
	for _, part := range strings.Split(v, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
