package cmd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mcpvector/internal/api"
	verrors "github.com/Aman-CERP/mcpvector/internal/errors"
	"github.com/Aman-CERP/mcpvector/internal/httpapi"
)

func TestSearchCmd_PlainOutput(t *testing.T) {
	// Given: a running server
	ts := newTestServer(t, &stubBackend{initialized: true})

	// When: searching with a multi-word query split over args
	out, err := execute(t, newSearchCmd(), "budget", "forecast", "--server", ts.URL)

	// Then: results are listed best first
	require.NoError(t, err)
	assert.Contains(t, out, `2 result(s) for "budget forecast"`)
	assert.Contains(t, out, "/docs/a.txt")
	assert.Less(t, strings.Index(out, "/docs/a.txt"), strings.Index(out, "/other/b.txt"))
}

func TestSearchCmd_JSONWithPathFilter(t *testing.T) {
	ts := newTestServer(t, &stubBackend{initialized: true})

	out, err := execute(t, newSearchCmd(), "alpha", "--server", ts.URL, "--path", "/docs", "-k", "3", "--json")

	require.NoError(t, err)
	var resp api.SearchResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "alpha", resp.Query)
	assert.Equal(t, 3, resp.TopK)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "/docs/a.txt", resp.Results[0].Path)
}

func TestSearchCmd_ServerErrors(t *testing.T) {
	tests := []struct {
		name        string
		initialized bool
		args        []string
		wantStatus  int
	}{
		{"negative top-k", true, []string{"alpha", "--top-k=-1"}, http.StatusBadRequest},
		{"not initialized", false, []string{"alpha"}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &stubBackend{initialized: tt.initialized})

			_, err := execute(t, newSearchCmd(), append(tt.args, "--server", ts.URL)...)

			var se *httpapi.StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.wantStatus, se.StatusCode)
		})
	}
}

func TestSearchCmd_ServerDown(t *testing.T) {
	_, err := execute(t, newSearchCmd(), "alpha", "--server", "http://127.0.0.1:1")

	require.Error(t, err)
	assert.Equal(t, verrors.ErrCodeServerUnavailable, verrors.GetCode(err))
	assert.Contains(t, formatError(err), "mcpvector serve")
}

func TestSearchCmd_RequiresQuery(t *testing.T) {
	_, err := execute(t, newSearchCmd())

	assert.Error(t, err)
}
