package ui

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestTracker() (*ProgressTracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	return newProgressTracker(clock.now), clock
}

func TestProgressTracker_Fraction(t *testing.T) {
	p, _ := newTestTracker()
	p.SetStage(StageIndexing, 10)

	p.Update(4, 10, "/docs/a.txt")
	stats := p.Stats()

	assert.Equal(t, StageIndexing, stats.Stage)
	assert.InDelta(t, 0.4, stats.Progress, 1e-9)
	assert.Equal(t, "/docs/a.txt", stats.CurrentFile)
}

func TestProgressTracker_TotalOnlyGrows(t *testing.T) {
	// Given: a stage of 10 documents
	p, _ := newTestTracker()
	p.SetStage(StageIndexing, 10)

	// When: retries grow the total and a later update reports less
	p.Update(5, 12, "")
	p.Update(6, 11, "")

	// Then: the larger total sticks and an empty file keeps the last one
	stats := p.Stats()
	assert.Equal(t, 12, stats.Total)
	assert.InDelta(t, 0.5, stats.Progress, 1e-9)
}

func TestProgressTracker_ProgressCapsAtOne(t *testing.T) {
	p, _ := newTestTracker()
	p.SetStage(StageIndexing, 2)
	p.total = 2
	p.current = 5

	assert.Equal(t, 1.0, p.Stats().Progress)
}

func TestProgressTracker_Speed(t *testing.T) {
	// Given: 10 documents done over one second
	p, clock := newTestTracker()
	p.SetStage(StageIndexing, 100)
	clock.advance(time.Second)
	p.Update(10, 100, "")

	// Then: the current and peak speed are 10 docs/s
	speed := p.Stats().Speed
	assert.InDelta(t, 10, speed.Current, 1e-9)
	assert.InDelta(t, 10, speed.Avg, 1e-9)
	assert.InDelta(t, 10, speed.Peak, 1e-9)

	// When: a slower second follows
	clock.advance(time.Second)
	p.Update(15, 100, "")

	// Then: the average is smoothed and the peak kept
	speed = p.Stats().Speed
	assert.InDelta(t, 5, speed.Current, 1e-9)
	assert.InDelta(t, 9, speed.Avg, 1e-9)
	assert.InDelta(t, 10, speed.Peak, 1e-9)
}

func TestProgressTracker_SpeedIgnoresRapidUpdates(t *testing.T) {
	p, clock := newTestTracker()
	p.SetStage(StageIndexing, 100)
	clock.advance(100 * time.Millisecond)

	p.Update(50, 100, "")

	assert.Zero(t, p.Stats().Speed.Current)
}

func TestProgressTracker_ETA(t *testing.T) {
	// Given: a quarter done after 10 seconds
	p, clock := newTestTracker()
	p.SetStage(StageIndexing, 100)
	clock.advance(10 * time.Second)
	p.Update(25, 100, "")

	// Then: 30 seconds remain
	assert.Equal(t, 30*time.Second, p.Stats().ETA)

	// When: half done after 30 seconds (raw ETA 30s)
	clock.advance(20 * time.Second)
	p.Update(50, 100, "")

	// Then: the estimate moves toward the new value without jumping
	assert.Equal(t, 30*time.Second, p.Stats().ETA)
}

func TestProgressTracker_ETAZeroWithoutProgress(t *testing.T) {
	p, _ := newTestTracker()
	p.SetStage(StageIndexing, 0)

	assert.Zero(t, p.Stats().ETA)
}

func TestProgressTracker_Errors(t *testing.T) {
	p, _ := newTestTracker()

	p.AddError(ErrorEvent{File: "a"})
	p.AddError(ErrorEvent{File: "b", IsWarn: true})
	p.AddError(ErrorEvent{File: "c", IsWarn: true})

	stats := p.Stats()
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 2, stats.WarnCount)
}

func TestProgressTracker_SetStageResets(t *testing.T) {
	p, clock := newTestTracker()
	p.SetStage(StageIndexing, 10)
	clock.advance(time.Second)
	p.Update(5, 10, "/x")

	p.SetStage(StageComplete, 0)

	stats := p.Stats()
	assert.Equal(t, 0, stats.Current)
	assert.Equal(t, "", stats.CurrentFile)
	assert.Zero(t, stats.Speed.Peak)
	assert.Equal(t, time.Second, p.Elapsed())
}
