package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, d *Debouncer, timeout time.Duration) FileEvent {
	t.Helper()
	select {
	case ev, ok := <-d.Output():
		require.True(t, ok, "output closed")
		return ev
	case <-time.After(timeout):
		t.Fatal("timeout waiting for debounced event")
		return FileEvent{}
	}
}

func assertQuiet(t *testing.T, d *Debouncer, wait time.Duration) {
	t.Helper()
	select {
	case ev := <-d.Output():
		t.Fatalf("unexpected event: %s %s", ev.Operation, ev.Path)
	case <-time.After(wait):
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with short window
	d := NewDebouncer(50*time.Millisecond, 10)
	defer d.Stop()

	// When: a single event is added
	d.Add(FileEvent{Path: "/w/a.txt", Operation: OpCreate, Timestamp: time.Now()})

	// Then: it is emitted after the window
	ev := receive(t, d, time.Second)
	assert.Equal(t, "/w/a.txt", ev.Path)
	assert.Equal(t, OpCreate, ev.Operation)
}

func TestDebouncer_Burst_EmitsOnce(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(100*time.Millisecond, 10)
	defer d.Stop()

	// When: five modifies arrive 10ms apart
	start := time.Now()
	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "/w/a.txt", Operation: OpModify, Timestamp: time.Now()})
		time.Sleep(10 * time.Millisecond)
	}

	// Then: exactly one event, no earlier than one window after the first
	ev := receive(t, d, time.Second)
	assert.Equal(t, OpModify, ev.Operation)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assertQuiet(t, d, 250*time.Millisecond)
}

func TestDebouncer_LastKindWins(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(50*time.Millisecond, 10)
	defer d.Stop()

	// When: modify then create for the same path
	d.Add(FileEvent{Path: "/w/a.txt", Operation: OpModify})
	d.Add(FileEvent{Path: "/w/a.txt", Operation: OpCreate})

	// Then: the single emitted event is the create
	ev := receive(t, d, time.Second)
	assert.Equal(t, OpCreate, ev.Operation)
	assertQuiet(t, d, 150*time.Millisecond)
}

func TestDebouncer_Delete_BypassesWindow(t *testing.T) {
	// Given: a debouncer with a long window
	d := NewDebouncer(time.Hour, 10)
	defer d.Stop()

	// When: a delete is added
	d.Add(FileEvent{Path: "/w/a.txt", Operation: OpDelete})

	// Then: it is emitted right away
	ev := receive(t, d, time.Second)
	assert.Equal(t, OpDelete, ev.Operation)
}

func TestDebouncer_Delete_CancelsPending(t *testing.T) {
	// Given: a pending modify
	d := NewDebouncer(100*time.Millisecond, 10)
	defer d.Stop()
	d.Add(FileEvent{Path: "/w/a.txt", Operation: OpModify})
	assert.Equal(t, 1, d.Pending())

	// When: the file is deleted inside the window
	d.Add(FileEvent{Path: "/w/a.txt", Operation: OpDelete})

	// Then: only the delete comes out
	ev := receive(t, d, time.Second)
	assert.Equal(t, OpDelete, ev.Operation)
	assert.Equal(t, 0, d.Pending())
	assertQuiet(t, d, 250*time.Millisecond)
}

func TestDebouncer_Rename_SplitsIntoDeleteAndCreate(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(50*time.Millisecond, 10)
	defer d.Stop()

	// When: a rename is added
	d.Add(FileEvent{OldPath: "/w/old.txt", Path: "/w/new.txt", Operation: OpRename})

	// Then: the old path is deleted at once and the new path created later
	first := receive(t, d, time.Second)
	assert.Equal(t, OpDelete, first.Operation)
	assert.Equal(t, "/w/old.txt", first.Path)

	second := receive(t, d, time.Second)
	assert.Equal(t, OpCreate, second.Operation)
	assert.Equal(t, "/w/new.txt", second.Path)
}

func TestDebouncer_DistinctPaths_SettleIndependently(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(50*time.Millisecond, 10)
	defer d.Stop()

	// When: two paths change
	d.Add(FileEvent{Path: "/w/a.txt", Operation: OpModify})
	d.Add(FileEvent{Path: "/w/b.txt", Operation: OpModify})

	// Then: both are emitted
	got := map[string]bool{}
	got[receive(t, d, time.Second).Path] = true
	got[receive(t, d, time.Second).Path] = true
	assert.True(t, got["/w/a.txt"])
	assert.True(t, got["/w/b.txt"])
}

func TestDebouncer_Stop_DropsPendingAndClosesOutput(t *testing.T) {
	// Given: a pending event
	d := NewDebouncer(time.Hour, 10)
	d.Add(FileEvent{Path: "/w/a.txt", Operation: OpModify})

	// When: the debouncer is stopped (twice)
	d.Stop()
	d.Stop()

	// Then: output is closed without the pending event
	_, ok := <-d.Output()
	assert.False(t, ok)

	// And: later adds are ignored
	d.Add(FileEvent{Path: "/w/b.txt", Operation: OpDelete})
	assert.Equal(t, 0, d.Pending())
}
