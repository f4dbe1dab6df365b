package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_CompletesRun(t *testing.T) {
	// Given: an idle runner
	r := NewRunner()

	// When: a run records counts and returns
	id, started := r.Start(context.Background(), "api", func(_ context.Context, p *Progress) error {
		p.SetStage(StageQueueing)
		p.SetCounts(10, 4, 1)
		p.SetRejected([]string{"/outside"})
		return nil
	})
	require.True(t, started)
	require.NotEmpty(t, id)
	require.NoError(t, r.Wait(context.Background()))

	// Then: the finished snapshot carries the results
	snap, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, id, snap.ID)
	assert.Equal(t, "api", snap.Trigger)
	assert.Equal(t, StatusDone, snap.Status)
	assert.Equal(t, StageFinished, snap.Stage)
	assert.Equal(t, 10, snap.Scanned)
	assert.Equal(t, 4, snap.Enqueued)
	assert.Equal(t, 1, snap.Missing)
	assert.Equal(t, []string{"/outside"}, snap.Rejected)
	assert.NotNil(t, snap.FinishedAt)
	assert.False(t, r.Running())
}

func TestRunner_CoalescesOverlappingStarts(t *testing.T) {
	// Given: a run that blocks until released
	r := NewRunner()
	release := make(chan struct{})
	first, started := r.Start(context.Background(), "api", func(ctx context.Context, _ *Progress) error {
		<-release
		return nil
	})
	require.True(t, started)

	// When: another start arrives while it runs
	second, startedAgain := r.Start(context.Background(), "cron", func(context.Context, *Progress) error {
		t.Error("second run must not execute")
		return nil
	})

	// Then: the caller is pointed at the active run
	assert.False(t, startedAgain)
	assert.Equal(t, first, second)
	assert.True(t, r.Running())

	close(release)
	require.NoError(t, r.Wait(context.Background()))
}

func TestRunner_RecordsFailure(t *testing.T) {
	r := NewRunner()
	r.Start(context.Background(), "api", func(context.Context, *Progress) error {
		return errors.New("scan failed")
	})
	require.NoError(t, r.Wait(context.Background()))

	snap, ok := r.Current()
	require.True(t, ok)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, "scan failed", snap.ErrorMessage)
}

func TestRunner_StopCancelsActiveRun(t *testing.T) {
	// Given: a run that waits for cancellation
	r := NewRunner()
	r.Start(context.Background(), "startup", func(ctx context.Context, _ *Progress) error {
		<-ctx.Done()
		return ctx.Err()
	})

	// When: the runner is stopped
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Stop(ctx))

	// Then: the run is cancelled and no new runs start
	snap, _ := r.Current()
	assert.Equal(t, StatusCancelled, snap.Status)
	_, started := r.Start(context.Background(), "api", func(context.Context, *Progress) error { return nil })
	assert.False(t, started)
}

func TestRunner_NoRunYet(t *testing.T) {
	r := NewRunner()
	_, ok := r.Current()
	assert.False(t, ok)
	assert.NoError(t, r.Wait(context.Background()))
}

func TestProgress_ElapsedGrowsWhileRunning(t *testing.T) {
	p := NewProgress("id", "api")
	time.Sleep(5 * time.Millisecond)

	snap := p.Snapshot()

	assert.Equal(t, StatusRunning, snap.Status)
	assert.Nil(t, snap.FinishedAt)
	assert.Greater(t, snap.ElapsedSeconds, 0.0)
}
