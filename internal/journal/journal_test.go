package journal

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, retention int) *Journal {
	t.Helper()
	j, err := Open(t.TempDir(), retention)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal_RecordAndRecent(t *testing.T) {
	// Given: an empty journal
	j := openTemp(t, 0)
	ctx := context.Background()

	// When: three events are recorded
	require.NoError(t, j.Record(ctx, Event{Path: "/a", Outcome: OutcomeIndexed, Duration: 15 * time.Millisecond}))
	require.NoError(t, j.Record(ctx, Event{Path: "/b", Outcome: OutcomeFailed, Detail: "boom"}))
	require.NoError(t, j.Record(ctx, Event{Path: "/a", Outcome: OutcomeUnchanged}))

	// Then: Recent returns newest first, with fields intact
	got, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, OutcomeUnchanged, got[0].Outcome)
	assert.Equal(t, "/b", got[1].Path)
	assert.Equal(t, "boom", got[1].Detail)
	assert.False(t, got[0].At.IsZero())
}

func TestJournal_Counts(t *testing.T) {
	j := openTemp(t, 0)
	ctx := context.Background()
	for _, o := range []Outcome{OutcomeIndexed, OutcomeIndexed, OutcomeDeleted} {
		require.NoError(t, j.Record(ctx, Event{Path: "/x", Outcome: o}))
	}

	counts, err := j.Counts(ctx)

	require.NoError(t, err)
	assert.Equal(t, int64(2), counts[OutcomeIndexed])
	assert.Equal(t, int64(1), counts[OutcomeDeleted])
	assert.Equal(t, int64(0), counts[OutcomeFailed])
	assert.Len(t, counts, len(Outcomes))
}

func TestJournal_Retention(t *testing.T) {
	// Given: a journal that keeps 10 rows
	j := openTemp(t, 10)
	ctx := context.Background()

	// When: more rows than that are written and pruned
	for i := 0; i < 25; i++ {
		require.NoError(t, j.Record(ctx, Event{Path: fmt.Sprintf("/f%d", i), Outcome: OutcomeIndexed}))
	}
	require.NoError(t, j.Prune(ctx))

	// Then: only the newest 10 remain
	got, err := j.Recent(ctx, 100)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, "/f24", got[0].Path)
	assert.Equal(t, "/f15", got[9].Path)
}

func TestJournal_ReopenKeepsHistory(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	j, err := Open(dir, 0)
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, Event{Path: "/kept", Outcome: OutcomeSkipped}))
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	j2, err := Open(dir, 0)
	require.NoError(t, err)
	defer j2.Close()
	got, err := j2.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/kept", got[0].Path)
}

func TestJournal_ClosedRejectsWrites(t *testing.T) {
	j, err := Open(t.TempDir(), 0)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	assert.Error(t, j.Record(context.Background(), Event{Path: "/x", Outcome: OutcomeIndexed}))
}
