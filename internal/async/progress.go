// Package async runs reconciliation passes in the background and tracks
// their progress for status reporting.
package async

import (
	"sync"
	"time"
)

// RunStatus is the state of one run.
type RunStatus string

const (
	// StatusRunning means the run has not finished.
	StatusRunning RunStatus = "running"
	// StatusDone means the run finished and its work is queued.
	StatusDone RunStatus = "done"
	// StatusFailed means the run stopped with an error.
	StatusFailed RunStatus = "failed"
	// StatusCancelled means the run was stopped before finishing.
	StatusCancelled RunStatus = "cancelled"
)

// Stage is the current step of a running run.
type Stage string

const (
	StageScanning Stage = "scanning"
	StageQueueing Stage = "queueing"
	StageFinished Stage = "finished"
)

// RunSnapshot is an immutable copy of a run's progress.
type RunSnapshot struct {
	ID             string     `json:"id"`
	Trigger        string     `json:"trigger"`
	Status         RunStatus  `json:"status"`
	Stage          Stage      `json:"stage"`
	Scanned        int        `json:"scanned"`
	Enqueued       int        `json:"enqueued"`
	Missing        int        `json:"missing"`
	Rejected       []string   `json:"rejected,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	ElapsedSeconds float64    `json:"elapsed_seconds"`
	ErrorMessage   string     `json:"error_message,omitempty"`
}

// Progress is the thread-safe progress of one run.
type Progress struct {
	mu sync.RWMutex

	id       string
	trigger  string
	status   RunStatus
	stage    Stage
	scanned  int
	enqueued int
	missing  int
	rejected []string
	started  time.Time
	finished time.Time
	errMsg   string
}

// NewProgress creates the progress record of a starting run.
func NewProgress(id, trigger string) *Progress {
	return &Progress{
		id:      id,
		trigger: trigger,
		status:  StatusRunning,
		stage:   StageScanning,
		started: time.Now(),
	}
}

// ID returns the run identifier.
func (p *Progress) ID() string { return p.id }

// SetStage moves the run to stage.
func (p *Progress) SetStage(stage Stage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stage = stage
}

// SetCounts records what the run found and queued.
func (p *Progress) SetCounts(scanned, enqueued, missing int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scanned = scanned
	p.enqueued = enqueued
	p.missing = missing
}

// SetRejected records requested paths that were outside the watch roots.
func (p *Progress) SetRejected(paths []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected = append([]string(nil), paths...)
}

func (p *Progress) finish(status RunStatus, errMsg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	p.stage = StageFinished
	p.finished = time.Now()
	p.errMsg = errMsg
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() RunSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := RunSnapshot{
		ID:           p.id,
		Trigger:      p.trigger,
		Status:       p.status,
		Stage:        p.stage,
		Scanned:      p.scanned,
		Enqueued:     p.enqueued,
		Missing:      p.missing,
		Rejected:     append([]string(nil), p.rejected...),
		StartedAt:    p.started,
		ErrorMessage: p.errMsg,
	}
	end := time.Now()
	if !p.finished.IsZero() {
		f := p.finished
		snap.FinishedAt = &f
		end = f
	}
	snap.ElapsedSeconds = end.Sub(p.started).Seconds()
	return snap
}
