package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/mcpvector/pkg/version"
)

func TestVersionCmd_DefaultOutput(t *testing.T) {
	// Given: a version command
	// When: executing without flags
	out, err := execute(t, newVersionCmd())

	// Then: it prints program name, version and commit
	require.NoError(t, err)
	assert.Contains(t, out, "mcpvector")
	assert.Contains(t, out, version.Version)
	assert.Contains(t, out, "commit")
}

func TestVersionCmd_ShortOutput(t *testing.T) {
	out, err := execute(t, newVersionCmd(), "--short")

	require.NoError(t, err)
	assert.Equal(t, version.Short(), strings.TrimSpace(out))
}

func TestVersionCmd_JSONOutput(t *testing.T) {
	out, err := execute(t, newVersionCmd(), "--json")

	require.NoError(t, err)
	var info version.BuildInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, version.Version, info.Version)
	assert.NotEmpty(t, info.GoVersion)
}
