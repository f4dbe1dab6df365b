package ui

import (
	"sync"
	"time"
)

// etaSmoothingFactor weights a new ETA estimate against the previous one.
const etaSmoothingFactor = 0.3

// speedInterval is the minimum gap between throughput samples.
const speedInterval = 500 * time.Millisecond

// ProgressTracker keeps progress state across stages. It is safe for
// concurrent use.
type ProgressTracker struct {
	mu          sync.Mutex
	stage       Stage
	current     int
	total       int
	currentFile string
	startTime   time.Time
	stageStart  time.Time
	errors      int
	warnings    int
	lastETA     time.Duration

	lastCurrent int
	lastSample  time.Time
	speed       SpeedStats
	samples     int

	now func() time.Time
}

// SpeedStats is document throughput in documents per second.
type SpeedStats struct {
	Current float64
	Avg     float64
	Peak    float64
}

// ProgressStats is a snapshot of the tracker.
type ProgressStats struct {
	Stage       Stage
	Current     int
	Total       int
	Progress    float64
	ETA         time.Duration
	CurrentFile string
	ErrorCount  int
	WarnCount   int
	Speed       SpeedStats
}

// NewProgressTracker creates a tracker in the scanning stage.
func NewProgressTracker() *ProgressTracker {
	return newProgressTracker(time.Now)
}

func newProgressTracker(now func() time.Time) *ProgressTracker {
	t := now()
	return &ProgressTracker{
		stage:      StageScanning,
		startTime:  t,
		stageStart: t,
		lastSample: t,
		now:        now,
	}
}

// SetStage moves to stage and resets the per-stage counters.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.now()
	p.stage = stage
	p.total = total
	p.current = 0
	p.currentFile = ""
	p.stageStart = t
	p.lastETA = 0
	p.lastCurrent = 0
	p.lastSample = t
	p.speed = SpeedStats{}
	p.samples = 0
}

// Update records progress within the current stage. A larger total
// replaces the old one, since retried documents grow the queue.
func (p *ProgressTracker) Update(current, total int, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	if total > p.total {
		p.total = total
	}
	if file != "" {
		p.currentFile = file
	}

	t := p.now()
	elapsed := t.Sub(p.lastSample)
	if elapsed < speedInterval {
		return
	}
	if delta := current - p.lastCurrent; delta > 0 {
		s := float64(delta) / elapsed.Seconds()
		p.speed.Current = s
		p.samples++
		if p.samples == 1 {
			p.speed.Avg = s
		} else {
			p.speed.Avg = 0.2*s + 0.8*p.speed.Avg
		}
		if s > p.speed.Peak {
			p.speed.Peak = s
		}
	}
	p.lastCurrent = current
	p.lastSample = t
}

// AddError counts an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event.IsWarn {
		p.warnings++
	} else {
		p.errors++
	}
}

// Elapsed returns the time since the tracker was created.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.now().Sub(p.startTime)
}

// Stats returns a snapshot. It updates the ETA smoothing state.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return ProgressStats{
		Stage:       p.stage,
		Current:     p.current,
		Total:       p.total,
		Progress:    p.fraction(),
		ETA:         p.eta(),
		CurrentFile: p.currentFile,
		ErrorCount:  p.errors,
		WarnCount:   p.warnings,
		Speed:       p.speed,
	}
}

func (p *ProgressTracker) fraction() float64 {
	if p.total == 0 {
		return 0
	}
	f := float64(p.current) / float64(p.total)
	if f > 1 {
		return 1
	}
	return f
}

// eta extrapolates the stage duration and smooths it exponentially.
// Must be called with the lock held.
func (p *ProgressTracker) eta() time.Duration {
	f := p.fraction()
	if f <= 0 || f >= 1 {
		return 0
	}
	elapsed := p.now().Sub(p.stageStart)
	remaining := time.Duration(float64(elapsed)/f) - elapsed
	if remaining < 0 {
		return 0
	}
	if p.lastETA == 0 {
		p.lastETA = remaining
		return remaining
	}
	p.lastETA = time.Duration(etaSmoothingFactor*float64(remaining) + (1-etaSmoothingFactor)*float64(p.lastETA))
	return p.lastETA
}
