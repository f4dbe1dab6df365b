package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mcpvector/internal/api"
)

func TestRunCmd_AllFolders(t *testing.T) {
	// Given: a running server
	b := &stubBackend{initialized: true}
	ts := newTestServer(t, b)

	// When: running without paths
	out, err := execute(t, newRunCmd(), "--server", ts.URL)

	// Then: the acknowledgement and run id are printed
	require.NoError(t, err)
	assert.Contains(t, out, api.RunMessage)
	assert.Contains(t, out, "Run ID: run-7")
	assert.Empty(t, b.runPaths)
}

func TestRunCmd_RelativePathsAreResolved(t *testing.T) {
	b := &stubBackend{initialized: true}
	ts := newTestServer(t, b)
	wd, err := os.Getwd()
	require.NoError(t, err)

	out, err := execute(t, newRunCmd(), "reports", "/abs/notes", "--server", ts.URL, "--json")

	require.NoError(t, err)
	var resp api.RunResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "run-7", resp.RunID)
	assert.Equal(t, []string{filepath.Join(wd, "reports"), "/abs/notes"}, b.runPaths)
}
