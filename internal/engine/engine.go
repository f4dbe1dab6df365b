// Package engine owns the indexer's lifecycle. It wires the store,
// embedder, journal, watcher, queue and worker together, starts them in
// dependency order and tears them down in reverse.
//
// Startup order:
//
//  1. storage lock and preflight (storage writable)
//  2. embedder (fatal when unavailable)
//  3. store load or create, journal
//  4. worker, watcher, initial reconciliation, cron schedule
//  5. search attached: queries are served from here on
//
// Shutdown stops the schedule and the watcher before the worker, persists
// once if anything is unsaved and releases the lock last.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Aman-CERP/mcpvector/internal/async"
	"github.com/Aman-CERP/mcpvector/internal/config"
	"github.com/Aman-CERP/mcpvector/internal/embed"
	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/extract"
	"github.com/Aman-CERP/mcpvector/internal/ingest"
	"github.com/Aman-CERP/mcpvector/internal/journal"
	"github.com/Aman-CERP/mcpvector/internal/logging"
	"github.com/Aman-CERP/mcpvector/internal/preflight"
	"github.com/Aman-CERP/mcpvector/internal/search"
	"github.com/Aman-CERP/mcpvector/internal/store"
	"github.com/Aman-CERP/mcpvector/internal/telemetry"
	"github.com/Aman-CERP/mcpvector/internal/watcher"
)

// Run triggers.
const (
	TriggerStartup  = "startup"
	TriggerSchedule = "schedule"
	TriggerRequest  = "request"
)

// ErrAlreadyStarted is returned by Start on a running engine.
var ErrAlreadyStarted = errors.New("engine already started")

// EmbedderFactory builds the embedder. Tests substitute a fake.
type EmbedderFactory func(ctx context.Context, cfg embed.Config, logger *slog.Logger) (embed.Embedder, error)

// Options configures an Engine.
type Options struct {
	Logger *slog.Logger
	// Extractor defaults to extract.Default().
	Extractor extract.Extractor
	// Extensions is the accepted set when the config lists none. Defaults
	// to the default registry's extensions.
	Extensions []string
	// NewEmbedder defaults to embed.NewEmbedder.
	NewEmbedder EmbedderFactory
	// Metrics records query telemetry. Nil creates one.
	Metrics *telemetry.QueryMetrics
}

// Engine runs one indexer instance over one storage directory.
type Engine struct {
	cfg        *config.Config
	logger     *slog.Logger
	extractor  extract.Extractor
	extensions []string
	newEmbed   EmbedderFactory
	metrics    *telemetry.QueryMetrics
	search     *search.Service
	runs       *async.Runner

	mu          sync.RWMutex
	started     bool
	stopped     bool
	initialized bool
	initErr     error
	cancel      context.CancelFunc

	lock       *store.Lock
	store      *store.Store
	embedder   embed.Embedder
	journal    *journal.Journal
	filter     *watcher.Filter
	queue      *ingest.Queue
	worker     *ingest.Worker
	reconciler *ingest.Reconciler
	watcher    *watcher.FileChangeWatcher
	scheduler  *Scheduler
	forwarding sync.WaitGroup
}

// New creates an engine for cfg. cfg must already be finalized.
func New(cfg *config.Config, opts Options) *Engine {
	e := &Engine{
		cfg:        cfg,
		logger:     logging.OrDefault(opts.Logger),
		extractor:  opts.Extractor,
		extensions: opts.Extensions,
		newEmbed:   opts.NewEmbedder,
		metrics:    opts.Metrics,
		runs:       async.NewRunner(),
	}
	if e.extractor == nil {
		reg := extract.Default()
		e.extractor = reg
		if e.extensions == nil {
			e.extensions = reg.Extensions()
		}
	}
	if e.extensions == nil {
		e.extensions = extract.Default().Extensions()
	}
	if e.newEmbed == nil {
		e.newEmbed = embed.NewEmbedder
	}
	if e.metrics == nil {
		e.metrics = telemetry.NewQueryMetrics(telemetry.Config{})
	}
	e.search = search.New(search.WithLogger(e.logger), search.WithMetrics(e.metrics))
	return e
}

// Search returns the query service. It serves empty results until Start
// has attached it.
func (e *Engine) Search() *search.Service { return e.search }

// Initialized reports whether Start completed.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// InitError returns the error Start failed with, if any.
func (e *Engine) InitError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initErr
}

// Start brings the engine up. Any failure before queries are attached is
// fatal: acquired resources are released and the error is returned.
func (e *Engine) Start(ctx context.Context) (err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}
	e.started = true
	defer func() {
		if err != nil {
			e.initErr = err
			e.closeLocked()
		}
	}()

	if err := e.openLocked(ctx, false); err != nil {
		return err
	}

	// Long-lived goroutines outlive the startup context.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel

	if err := e.worker.Start(runCtx); err != nil {
		return verrors.InternalError("start worker", err)
	}

	e.watcher = watcher.New(e.filter, watcher.Options{
		DebounceWindow: e.cfg.Watch.Debounce.Std(),
		PollInterval:   e.cfg.Watch.PollInterval.Std(),
		ForcePolling:   e.cfg.Watch.ForcePolling,
	}, e.logger)
	if err := e.watcher.Start(runCtx); err != nil {
		return verrors.InternalError("start watcher", err)
	}
	e.forwarding.Add(1)
	go e.forward(e.watcher.Events())

	e.startRunLocked(runCtx, TriggerStartup, nil)

	if spec := e.cfg.Schedule.Reconcile; spec != "" {
		sched, err := NewScheduler(spec, func() {
			e.startRun(runCtx, TriggerSchedule, nil)
		}, e.logger)
		if err != nil {
			return verrors.ConfigError(fmt.Sprintf("invalid reconcile schedule %q", spec), err)
		}
		e.scheduler = sched
		sched.Start()
	}

	e.search.Attach(e.store, e.embedder)
	e.initialized = true

	info := embed.Describe(e.embedder)
	e.logger.Info("engine started",
		slog.String("storage", e.cfg.Storage.Path),
		slog.Int("documents", e.store.Count()),
		slog.String("embedder", info.Provider),
		slog.String("model", info.Model),
		slog.Int("dimension", info.Dimensions),
		slog.String("watcher_mode", e.watcher.Mode()))
	return nil
}

// openLocked acquires the storage lock and builds everything the worker
// needs. deferPersist is set for one-shot indexing.
func (e *Engine) openLocked(ctx context.Context, deferPersist bool) error {
	dir := e.cfg.Storage.Path
	checker := preflight.New()
	if res := checker.CheckStorage(dir); res.IsCritical() {
		return verrors.New(verrors.ErrCodeStorageUnwritable, res.Message, nil).
			WithDetail("path", dir).
			WithSuggestion("Set storage.path or MCP_VECTOR_DB_PATH to a writable directory")
	}

	e.lock = store.NewLock(dir)
	if err := e.lock.TryLock(); err != nil {
		e.lock = nil
		return err
	}

	em, err := e.newEmbed(ctx, EmbedderConfig(e.cfg), e.logger)
	if err != nil {
		if _, ok := verrors.As(err); ok {
			return err
		}
		return verrors.New(verrors.ErrCodeEmbedderUnavailable, "embedder initialization failed", err)
	}
	e.embedder = em

	probe := checker.CheckEmbedder(ctx, func(ctx context.Context) error {
		if !em.Available(ctx) {
			return fmt.Errorf("%s is not available", em.ModelName())
		}
		return nil
	})
	if probe.IsCritical() {
		return verrors.New(verrors.ErrCodeEmbedderUnavailable, probe.Message, nil)
	}

	st, err := store.LoadOrCreate(store.Config{
		Dir:       dir,
		Dimension: em.Dimensions(),
		Capacity:  e.cfg.Storage.Capacity,
		M:         e.cfg.Storage.M,
		EfSearch:  e.cfg.Storage.EfSearch,
		Compaction: store.CompactionPolicy{
			Enabled:         e.cfg.Storage.CompactThreshold > 0,
			OrphanThreshold: e.cfg.Storage.CompactThreshold,
			MinOrphans:      e.cfg.Storage.CompactMinOrphan,
		},
	}, e.logger)
	if err != nil {
		return err
	}
	e.store = st

	if j, err := journal.Open(dir, e.cfg.Storage.JournalRetention); err != nil {
		e.logger.Warn("ingestion journal unavailable, continuing without it",
			slog.String("error", err.Error()))
	} else {
		e.journal = j
	}

	extensions := e.cfg.Watch.Extensions
	if len(extensions) == 0 {
		extensions = e.extensions
	}
	filter, missing := watcher.NewFilter(e.cfg.Watch.Folders, extensions, watcher.WithIgnore(e.cfg.Watch.Ignore))
	for _, root := range missing {
		e.logger.Warn("watch folder does not exist, skipping", slog.String("root", root))
	}
	for _, err := range filter.Warnings() {
		e.logger.Warn("ignore rules partly loaded", slog.String("error", err.Error()))
	}
	e.filter = filter

	e.queue = ingest.NewQueue()
	e.worker = ingest.NewWorker(e.queue, e.store, e.extractor, e.embedder, e.journal, ingest.Config{
		PollInterval: e.cfg.Worker.PollInterval.Std(),
		ItemTimeout:  e.cfg.Worker.ItemTimeout.Std(),
		JoinTimeout:  e.cfg.Worker.JoinTimeout.Std(),
		MaxAttempts:  e.cfg.Worker.MaxAttempts,
		DeferPersist: deferPersist,
	}, e.logger)
	e.reconciler = ingest.NewReconciler(e.queue, e.store, e.filter, e.logger)
	return nil
}

// forward turns settled watcher events into queue tasks until the
// watcher closes its channel.
func (e *Engine) forward(events <-chan watcher.FileEvent) {
	defer e.forwarding.Done()
	for ev := range events {
		switch ev.Operation {
		case watcher.OpCreate, watcher.OpModify:
			e.queue.Enqueue(ev.Path, "watcher")
		case watcher.OpDelete:
			e.queue.EnqueueDelete(ev.Path, "watcher")
		case watcher.OpRename:
			if ev.OldPath != "" {
				e.queue.EnqueueDelete(ev.OldPath, "watcher")
			}
			if ev.Path != "" {
				e.queue.Enqueue(ev.Path, "watcher")
			}
		}
	}
}

// Run starts a reconciliation of paths, or of every watch root when paths
// is empty, and returns its run id without waiting for it. A request
// while a run is active joins that run.
func (e *Engine) Run(ctx context.Context, paths []string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return "", e.notInitializedLocked()
	}
	id, _ := e.startRunLocked(context.WithoutCancel(ctx), TriggerRequest, paths)
	return id, nil
}

func (e *Engine) startRun(ctx context.Context, trigger string, paths []string) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.reconciler == nil {
		return
	}
	e.startRunLocked(ctx, trigger, paths)
}

func (e *Engine) startRunLocked(ctx context.Context, trigger string, paths []string) (string, bool) {
	rec := e.reconciler
	id, started := e.runs.Start(ctx, trigger, func(ctx context.Context, p *async.Progress) error {
		var (
			rep ingest.Report
			err error
		)
		if len(paths) == 0 {
			rep, err = rec.Run(ctx)
		} else {
			rep, err = rec.RunPaths(ctx, paths)
		}
		p.SetStage(async.StageQueueing)
		p.SetCounts(rep.Scanned, rep.Enqueued, rep.Missing)
		p.SetRejected(rep.Rejected)
		return err
	})
	if started {
		e.logger.Info("reconciliation started", slog.String("run_id", id), slog.String("trigger", trigger))
	} else if id != "" {
		e.logger.Debug("reconciliation already running", slog.String("run_id", id), slog.String("trigger", trigger))
	}
	return id, started
}

// Wait blocks until the active reconciliation run, if any, has queued
// its work.
func (e *Engine) Wait(ctx context.Context) error {
	return e.runs.Wait(ctx)
}

// Shutdown stops the engine. It is safe to call on an engine that never
// started or failed to start.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started || e.stopped {
		return nil
	}
	e.stopped = true
	e.initialized = false

	var errs []error
	if e.scheduler != nil {
		e.scheduler.Stop(ctx)
		e.scheduler = nil
	}
	if err := e.runs.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop reconciliation: %w", err))
	}
	if e.watcher != nil {
		if err := e.watcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop watcher: %w", err))
		}
		e.forwarding.Wait()
		e.watcher = nil
	}
	if e.worker != nil {
		if err := e.worker.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop worker: %w", err))
		}
	}
	if e.queue != nil {
		if dropped := e.queue.Close(); dropped > 0 {
			e.logger.Info("dropped queued tasks", slog.Int("count", dropped))
		}
	}
	if e.store != nil {
		if saved, err := e.store.PersistIfDirty(); err != nil {
			errs = append(errs, fmt.Errorf("persist on shutdown: %w", err))
		} else if saved {
			e.logger.Info("index persisted on shutdown", slog.Int("documents", e.store.Count()))
		}
	}
	e.closeLocked()

	e.logger.Info("engine stopped")
	return errors.Join(errs...)
}

// closeLocked releases resources in reverse acquisition order without
// persisting.
func (e *Engine) closeLocked() {
	e.search.Detach()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.watcher != nil {
		_ = e.watcher.Stop()
		e.forwarding.Wait()
		e.watcher = nil
	}
	if e.worker != nil {
		_ = e.worker.Stop()
	}
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			e.logger.Warn("close journal", slog.String("error", err.Error()))
		}
		e.journal = nil
	}
	if e.store != nil {
		_ = e.store.Close()
	}
	if e.embedder != nil {
		_ = e.embedder.Close()
	}
	if e.lock != nil {
		if err := e.lock.Unlock(); err != nil {
			e.logger.Warn("release storage lock", slog.String("error", err.Error()))
		}
		e.lock = nil
	}
}

func (e *Engine) notInitializedLocked() error {
	msg := "vector search not initialized"
	if e.initErr != nil {
		return verrors.New(verrors.ErrCodeNotInitialized, msg, e.initErr)
	}
	return verrors.New(verrors.ErrCodeNotInitialized, msg, nil)
}

// EmbedderConfig translates the embeddings section of cfg.
func EmbedderConfig(cfg *config.Config) embed.Config {
	return embed.Config{
		Provider:      embed.ParseProvider(cfg.Embeddings.Provider),
		Model:         cfg.Embeddings.Model,
		OllamaHost:    cfg.Embeddings.OllamaHost,
		Dimensions:    cfg.Embeddings.Dimensions,
		Timeout:       cfg.Embeddings.Timeout.Std(),
		RatePerSecond: cfg.Embeddings.RatePerSecond,
		CacheSize:     cfg.Embeddings.CacheSize,
	}
}

// IndexSummary reports a one-shot indexing pass.
type IndexSummary struct {
	Report   ingest.Report
	Outcomes map[journal.Outcome]int64
	Total    int
	Embedder embed.Info
	Duration time.Duration
}

// IndexOnce reconciles every watch root, processes the queue to
// completion on the calling goroutine and persists once. It does not
// watch. onResult, when set, is called after every task with the number
// done and the total queued.
func (e *Engine) IndexOnce(ctx context.Context, onResult func(res ingest.Result, done, total int)) (IndexSummary, error) {
	start := time.Now()

	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return IndexSummary{}, ErrAlreadyStarted
	}
	e.started = true
	defer func() {
		e.mu.Lock()
		e.closeLocked()
		e.started = false
		e.mu.Unlock()
	}()

	if err := e.openLocked(ctx, true); err != nil {
		e.initErr = err
		e.mu.Unlock()
		return IndexSummary{}, err
	}
	worker, rec, st := e.worker, e.reconciler, e.store
	info := embed.Describe(e.embedder)
	e.mu.Unlock()

	rep, err := rec.Run(ctx)
	if err != nil {
		return IndexSummary{}, err
	}

	total := e.queue.Depth()
	done := 0
	if onResult != nil {
		worker.OnResult(func(res ingest.Result) {
			done++
			// Retries are requeued, so the total can grow.
			if d := done + e.queue.Depth(); d > total {
				total = d
			}
			onResult(res, done, total)
		})
	}
	worker.Drain(ctx)

	if _, err := st.PersistIfDirty(); err != nil {
		return IndexSummary{}, err
	}
	if st.NeedsCompaction() {
		st.Compact()
		if err := st.Persist(); err != nil {
			return IndexSummary{}, err
		}
	}

	return IndexSummary{
		Report:   rep,
		Outcomes: worker.Counts(),
		Total:    st.Count(),
		Embedder: info,
		Duration: time.Since(start),
	}, ctx.Err()
}

// Status is a point-in-time view of the engine.
type Status struct {
	Initialized         bool                      `json:"initialized"`
	WatchFolders        []string                  `json:"watch_folders"`
	SupportedExtensions []string                  `json:"supported_extensions"`
	Embedder            embed.Info                `json:"embedder"`
	Store               store.Status              `json:"store"`
	QueueDepth          int                       `json:"queue_depth"`
	WatcherMode         string                    `json:"watcher_mode,omitempty"`
	Processed           map[journal.Outcome]int64 `json:"processed"`
	Journal             journal.Counts            `json:"journal,omitempty"`
	LastRun             *async.RunSnapshot        `json:"last_run,omitempty"`
	NextReconcile       *time.Time                `json:"next_reconcile,omitempty"`
	Queries             telemetry.Snapshot        `json:"queries"`
}

// Status reports the engine state. It fails only when the engine is not
// initialized.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return Status{}, e.notInitializedLocked()
	}

	st := Status{
		Initialized:         true,
		WatchFolders:        e.filter.Roots(),
		SupportedExtensions: e.filter.Extensions(),
		Embedder:            embed.Describe(e.embedder),
		Store:               e.store.Status(),
		QueueDepth:          e.queue.Depth(),
		Processed:           e.worker.Counts(),
		Queries:             e.metrics.Snapshot(10),
	}
	if e.watcher != nil {
		st.WatcherMode = e.watcher.Mode()
	}
	if e.journal != nil {
		if counts, err := e.journal.Counts(ctx); err == nil {
			st.Journal = counts
		} else {
			e.logger.Debug("journal counts unavailable", slog.String("error", err.Error()))
		}
	}
	if run, ok := e.runs.Current(); ok {
		st.LastRun = &run
	}
	if e.scheduler != nil {
		next := e.scheduler.Next()
		st.NextReconcile = &next
	}
	return st, nil
}

// Recent returns the latest journal events, newest first.
func (e *Engine) Recent(ctx context.Context, limit int) ([]journal.Event, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return nil, e.notInitializedLocked()
	}
	if e.journal == nil {
		return nil, nil
	}
	return e.journal.Recent(ctx, limit)
}

// ModelName returns the configured embedding model.
func (e *Engine) ModelName() string { return e.cfg.Embeddings.Model }
