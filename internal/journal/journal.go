// Package journal keeps a bounded history of ingestion outcomes in SQLite.
//
// The journal is diagnostic: the vector index never reads it, and a
// journal failure must not stop ingestion. Callers log Record errors and
// carry on.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// Outcome is what happened to one queued path.
type Outcome string

const (
	OutcomeIndexed   Outcome = "indexed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomeDeleted   Outcome = "deleted"
)

// Outcomes lists every outcome in display order.
var Outcomes = []Outcome{OutcomeIndexed, OutcomeUnchanged, OutcomeSkipped, OutcomeFailed, OutcomeDeleted}

const (
	// FileName is the journal database name inside the storage directory.
	FileName = "journal.db"

	// DefaultRetention is the number of most recent events kept.
	DefaultRetention = 10000

	pruneEvery = 100
)

// Event is one journal row.
type Event struct {
	ID       int64         `json:"id"`
	Path     string        `json:"path"`
	Outcome  Outcome       `json:"outcome"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ms"`
	At       time.Time     `json:"at"`
}

// Counts is the number of events per outcome within retention.
type Counts map[Outcome]int64

// Journal is a SQLite-backed event log.
type Journal struct {
	db        *sql.DB
	path      string
	retention int

	mu      sync.Mutex
	inserts int
	closed  bool
}

// Open opens or creates the journal in dir. retention <= 0 uses
// DefaultRetention.
func Open(dir string, retention int) (*Journal, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	path := filepath.Join(dir, FileName)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores most DSN pragmas; set them as statements.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS ingest_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		path        TEXT    NOT NULL,
		outcome     TEXT    NOT NULL,
		detail      TEXT    NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		at          INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ingest_events_path ON ingest_events(path);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}

	return &Journal{db: db, path: path, retention: retention}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Record appends an event and prunes old rows from time to time.
func (j *Journal) Record(ctx context.Context, ev Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("journal is closed")
	}

	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO ingest_events (path, outcome, detail, duration_ms, at) VALUES (?, ?, ?, ?, ?)`,
		ev.Path, string(ev.Outcome), ev.Detail, ev.Duration.Milliseconds(), ev.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	j.inserts++
	if j.inserts%pruneEvery == 0 {
		return j.pruneLocked(ctx)
	}
	return nil
}

// Prune drops everything but the most recent retention rows.
func (j *Journal) Prune(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return fmt.Errorf("journal is closed")
	}
	return j.pruneLocked(ctx)
}

func (j *Journal) pruneLocked(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx,
		`DELETE FROM ingest_events WHERE id <= (SELECT MAX(id) FROM ingest_events) - ?`, j.retention)
	if err != nil {
		return fmt.Errorf("prune journal: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	rows, err := j.db.QueryContext(ctx,
		`SELECT id, path, outcome, detail, duration_ms, at FROM ingest_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			ev       Event
			outcome  string
			duration int64
			at       int64
		)
		if err := rows.Scan(&ev.ID, &ev.Path, &outcome, &ev.Detail, &duration, &at); err != nil {
			return nil, fmt.Errorf("scan journal row: %w", err)
		}
		ev.Outcome = Outcome(outcome)
		ev.Duration = time.Duration(duration) * time.Millisecond
		ev.At = time.UnixMilli(at)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Counts returns the number of retained events per outcome. Every known
// outcome is present, zero or not.
func (j *Journal) Counts(ctx context.Context) (Counts, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	counts := make(Counts, len(Outcomes))
	for _, o := range Outcomes {
		counts[o] = 0
	}

	rows, err := j.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM ingest_events GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("count journal: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			outcome string
			n       int64
		)
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan journal count: %w", err)
		}
		counts[Outcome(outcome)] = n
	}
	return counts, rows.Err()
}

// Close checkpoints the WAL and closes the database. Idempotent.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	_, _ = j.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return j.db.Close()
}
