package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Aman-CERP/mcpvector/internal/logging"
)

// Scheduler triggers reconciliation on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	entry  cron.EntryID
	fn     func()
	logger *slog.Logger

	mu      sync.Mutex
	running bool
}

// NewScheduler registers fn under spec, a five-field cron expression or a
// descriptor such as "@hourly". It does not start the scheduler.
func NewScheduler(spec string, fn func(), logger *slog.Logger) (*Scheduler, error) {
	logger = logging.OrDefault(logger)

	c := cron.New(cron.WithLogger(cron.PrintfLogger(
		slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	s := &Scheduler{
		cron:   c,
		spec:   spec,
		fn:     fn,
		logger: logger,
	}

	id, err := c.AddFunc(spec, s.fire)
	if err != nil {
		return nil, err
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) fire() {
	s.logger.Info("scheduled reconciliation triggered", slog.String("schedule", s.spec))
	s.fn()
}

// Start starts the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info("reconcile scheduler started",
		slog.String("schedule", s.spec),
		slog.Time("next", s.Next()))
}

// Stop stops the scheduler and waits, bounded by ctx, for a firing job to
// return.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out")
	}
	s.logger.Info("reconcile scheduler stopped")
}

// Next returns the next activation time, zero when not started.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}
