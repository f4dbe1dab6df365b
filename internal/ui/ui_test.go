package ui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStage_Names(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
		icon  string
	}{
		{StageScanning, "Scanning", "SCAN"},
		{StageIndexing, "Indexing", "INDEX"},
		{StageComplete, "Complete", "DONE"},
		{Stage(42), "Unknown", "???"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.stage.String())
		assert.Equal(t, tt.icon, tt.stage.Icon())
	}
}

func TestNewConfig_Options(t *testing.T) {
	var buf bytes.Buffer

	cfg := NewConfig(&buf, WithForcePlain(true), WithNoColor(true), WithRoots([]string{"/docs"}))

	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, []string{"/docs"}, cfg.Roots)
}

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	// Given: output that is a buffer, not a terminal
	var buf bytes.Buffer

	// When: choosing a renderer
	r := NewRenderer(NewConfig(&buf))

	// Then: plain text is used
	assert.IsType(t, &PlainRenderer{}, r)
}

func TestNewTUIRenderer_RejectsNonTTY(t *testing.T) {
	_, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))
	assert.Error(t, err)
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))

	f, err := os.CreateTemp(t.TempDir(), "out")
	if assert.NoError(t, err) {
		defer f.Close()
		assert.False(t, IsTTY(f))
	}
}

func TestDetectCI(t *testing.T) {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
	assert.False(t, DetectCI())

	t.Setenv("GITHUB_ACTIONS", "true")
	assert.True(t, DetectCI())
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	assert.True(t, DetectNoColor())
}
