package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mcpvector/internal/api"
)

func TestRestart_ReloadsPersistedIndex(t *testing.T) {
	// Given: a stack that indexed two documents and shut down cleanly
	s := newStack(t)
	path := s.write(t, "kept.txt", "persisted across restarts")
	s.write(t, "other.txt", "something unrelated entirely")
	s.start(t)
	c := s.client(t)
	require.Eventually(t, func() bool { return documents(t, c) == 2 }, waitFor, 20*time.Millisecond)
	require.NoError(t, s.engine.Shutdown(context.Background()))

	// When: a new engine starts over the same storage
	s.start(t)
	c = s.client(t)

	// Then: the index is loaded from disk and answers queries
	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.PersistedFilesPresent)
	assert.Equal(t, 2, st.DocumentCount)

	resp, err := c.Search(context.Background(), api.SearchRequest{Query: "persisted across restarts", TopK: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, path, resp.Results[0].Path)
}
