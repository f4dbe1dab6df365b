package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/Aman-CERP/mcpvector/internal/embed"
	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/extract"
	"github.com/Aman-CERP/mcpvector/internal/fingerprint"
	"github.com/Aman-CERP/mcpvector/internal/journal"
	"github.com/Aman-CERP/mcpvector/internal/logging"
	"github.com/Aman-CERP/mcpvector/internal/store"
)

// ErrAlreadyRunning is returned by Start on a running worker.
var ErrAlreadyRunning = errors.New("ingest worker already running")

// ErrJoinTimeout is returned by Stop when the loop did not exit in time.
var ErrJoinTimeout = errors.New("ingest worker did not stop within timeout")

// Config configures a Worker.
type Config struct {
	// PollInterval bounds how long the loop sleeps between queue checks.
	// Default: 1s
	PollInterval time.Duration

	// ItemTimeout bounds extraction plus embedding of one file.
	// Default: 2m
	ItemTimeout time.Duration

	// JoinTimeout bounds how long Stop waits for the loop to exit.
	// Default: 5s
	JoinTimeout time.Duration

	// MaxAttempts is how many times a task failing with a retryable error
	// is tried in total.
	// Default: 3
	MaxAttempts int

	// DeferPersist skips the per-item persist. The caller must persist the
	// store itself, e.g. once after a one-shot bulk index.
	DeferPersist bool
}

// DefaultConfig returns the default worker configuration.
func DefaultConfig() Config {
	return Config{
		PollInterval: time.Second,
		ItemTimeout:  2 * time.Minute,
		JoinTimeout:  5 * time.Second,
		MaxAttempts:  3,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.ItemTimeout <= 0 {
		c.ItemTimeout = d.ItemTimeout
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = d.JoinTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	return c
}

// Result is the outcome of processing one task.
type Result struct {
	Task     Task
	Outcome  journal.Outcome
	ID       int64
	Removed  int
	Detail   string
	Err      error
	Duration time.Duration
}

// Worker is the single writer of the vector store.
type Worker struct {
	queue     *Queue
	store     *store.Store
	extractor extract.Extractor
	embedder  embed.Embedder
	journal   *journal.Journal
	cfg       Config
	logger    *slog.Logger

	observer func(Result)

	counts [5]atomic.Int64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewWorker creates a worker. j may be nil to disable the journal.
func NewWorker(q *Queue, s *store.Store, ex extract.Extractor, em embed.Embedder, j *journal.Journal, cfg Config, logger *slog.Logger) *Worker {
	return &Worker{
		queue:     q,
		store:     s,
		extractor: ex,
		embedder:  em,
		journal:   j,
		cfg:       cfg.WithDefaults(),
		logger:    logging.OrDefault(logger),
	}
}

// OnResult registers fn to be called after every processed task, on the
// worker goroutine. Must be called before Start.
func (w *Worker) OnResult(fn func(Result)) {
	w.observer = fn
}

// Start launches the worker loop. It returns immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	go w.run(ctx, w.done)

	w.logger.Info("ingest worker started")
	return nil
}

// Running reports whether the loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stop cancels the loop and waits up to JoinTimeout for it to exit. An
// in-flight item is interrupted.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
		w.logger.Info("ingest worker stopped", slog.Int("queue_depth", w.queue.Depth()))
		return nil
	case <-time.After(w.cfg.JoinTimeout):
		w.logger.Warn("ingest worker did not stop in time",
			slog.Duration("timeout", w.cfg.JoinTimeout))
		return ErrJoinTimeout
	}
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	for {
		task, err := w.queue.Next(ctx, w.cfg.PollInterval)
		if err != nil {
			return
		}
		w.Process(ctx, task)
	}
}

// Drain processes tasks on the calling goroutine until the queue is empty
// or ctx is done. It must not be used while the loop is running.
func (w *Worker) Drain(ctx context.Context) int {
	n := 0
	for ctx.Err() == nil {
		task, ok := w.queue.TryNext()
		if !ok {
			break
		}
		w.Process(ctx, task)
		n++
	}
	return n
}

// Counts returns the number of processed tasks per outcome since creation.
func (w *Worker) Counts() map[journal.Outcome]int64 {
	out := make(map[journal.Outcome]int64, len(journal.Outcomes))
	for i, o := range journal.Outcomes {
		out[o] = w.counts[i].Load()
	}
	return out
}

// Process runs one task to completion. Failures are logged and returned in
// the Result; they never panic out of Process.
func (w *Worker) Process(ctx context.Context, task Task) (res Result) {
	start := time.Now()
	res.Task = task

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = journal.OutcomeFailed
			res.Err = verrors.InternalError(fmt.Sprintf("panic while processing: %v", r), nil)
			res.Detail = res.Err.Error()
		}
		res.Duration = time.Since(start)
		w.finish(ctx, res)
	}()

	switch task.Kind {
	case TaskDelete:
		return w.processDelete(task, res)
	default:
		return w.processIndex(ctx, task, res)
	}
}

func (w *Worker) processIndex(ctx context.Context, task Task, res Result) Result {
	itemCtx, cancel := context.WithTimeout(ctx, w.cfg.ItemTimeout)
	defer cancel()

	extracted, err := w.extractor.Extract(itemCtx, task.Path)
	if err != nil {
		if verrors.GetCode(err) == verrors.ErrCodeFileNotFound {
			// Gone between the event and now: the file system wins.
			return w.processDelete(task, res)
		}
		return w.fail(ctx, res, "extract", w.timeoutAware(ctx, itemCtx, err))
	}

	if strings.TrimSpace(extracted.Text) == "" {
		w.logger.Warn("no text extracted, skipping", slog.String("path", task.Path))
		res.Outcome = journal.OutcomeSkipped
		res.Detail = "no text content"
		return res
	}

	hash := fingerprint.OfString(extracted.Text)
	if rec, ok := w.store.Lookup(task.Path); ok && rec.ContentHash == hash {
		w.logger.Debug("content unchanged, skipping", slog.String("path", task.Path))
		res.Outcome = journal.OutcomeUnchanged
		res.ID = rec.ID
		return res
	}

	vector, err := w.embedder.Embed(itemCtx, extracted.Text)
	if err != nil {
		return w.fail(ctx, res, "embed", w.timeoutAware(ctx, itemCtx, err))
	}

	meta := extracted.Metadata.Clone()
	meta["content_length"] = store.Int(int64(utf8.RuneCountInString(extracted.Text)))
	bounded, dropped := meta.Bounded()
	if len(dropped) > 0 {
		w.logger.Warn("metadata keys dropped",
			slog.String("path", task.Path),
			slog.Any("keys", dropped))
	}

	id, err := w.store.Upsert(task.Path, vector, hash, bounded)
	if err != nil {
		return w.fail(ctx, res, "upsert", err)
	}
	res.ID = id
	res.Outcome = journal.OutcomeIndexed

	w.persist(task.Path)

	w.logger.Info("indexed file",
		slog.String("path", task.Path),
		slog.Int64("id", id),
		slog.Int("chars", utf8.RuneCountInString(extracted.Text)))
	return res
}

// processDelete removes path and, for a deleted directory, every record
// beneath it.
func (w *Worker) processDelete(task Task, res Result) Result {
	removed := 0
	if w.store.Delete(task.Path) {
		removed++
	}

	prefix := strings.TrimSuffix(task.Path, string(filepath.Separator)) + string(filepath.Separator)
	for _, p := range w.store.Paths() {
		if strings.HasPrefix(p, prefix) && w.store.Delete(p) {
			removed++
		}
	}

	res.Removed = removed
	if removed == 0 {
		res.Outcome = journal.OutcomeSkipped
		res.Detail = "not indexed"
		return res
	}

	res.Outcome = journal.OutcomeDeleted
	w.persist(task.Path)

	w.logger.Info("removed from index",
		slog.String("path", task.Path),
		slog.Int("records", removed))
	return res
}

// persist saves the store after a mutation and compacts when enough
// soft-deleted entries piled up. A failed save leaves the store dirty, so
// the next persist or shutdown retries it.
func (w *Worker) persist(path string) {
	if w.cfg.DeferPersist {
		return
	}

	if err := w.store.Persist(); err != nil {
		w.logger.Error("persist failed",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return
	}

	if !w.store.NeedsCompaction() {
		return
	}
	purged := w.store.Compact()
	if err := w.store.Persist(); err != nil {
		w.logger.Error("persist after compaction failed", slog.String("error", err.Error()))
		return
	}
	w.logger.Info("index compacted", slog.Int("purged", purged))
}

// timeoutAware turns an expired per-item deadline into a retryable error.
// Shutdown cancellation is left as is.
func (w *Worker) timeoutAware(parent, item context.Context, err error) error {
	if parent.Err() == nil && errors.Is(item.Err(), context.DeadlineExceeded) {
		if _, ok := verrors.As(err); !ok || !verrors.IsRetryable(err) {
			return verrors.New(verrors.ErrCodeEmbedderTimeout,
				fmt.Sprintf("item exceeded %s", w.cfg.ItemTimeout), err)
		}
	}
	return err
}

func (w *Worker) fail(ctx context.Context, res Result, step string, err error) Result {
	res.Outcome = journal.OutcomeFailed
	res.Err = err
	res.Detail = step + ": " + err.Error()

	if ctx.Err() != nil {
		w.logger.Info("processing interrupted by shutdown", slog.String("path", res.Task.Path))
		return res
	}

	attrs := append([]slog.Attr{
		slog.String("path", res.Task.Path),
		slog.String("step", step),
		slog.Int("attempt", res.Task.Attempt+1),
	}, verrors.LogAttrs(err)...)
	w.logger.LogAttrs(ctx, slog.LevelWarn, "failed to process file", attrs...)

	if verrors.IsRetryable(err) && res.Task.Attempt+1 < w.cfg.MaxAttempts {
		retry := res.Task
		retry.Attempt++
		retry.Source = "retry"
		if w.queue.Requeue(retry) {
			res.Detail += " (requeued)"
		}
	}
	return res
}

func (w *Worker) finish(ctx context.Context, res Result) {
	for i, o := range journal.Outcomes {
		if o == res.Outcome {
			w.counts[i].Add(1)
			break
		}
	}

	if w.journal != nil && ctx.Err() == nil {
		jctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := w.journal.Record(jctx, journal.Event{
			Path:     res.Task.Path,
			Outcome:  res.Outcome,
			Detail:   res.Detail,
			Duration: res.Duration,
		})
		cancel()
		if err != nil {
			w.logger.Warn("journal write failed",
				slog.String("path", res.Task.Path),
				slog.String("error", err.Error()))
		}
	}

	if w.observer != nil {
		w.observer(res)
	}
}
