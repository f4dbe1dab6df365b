package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	// Given: a binary built with or without ldflags
	if Version == "dev" {
		return
	}

	// Then: an injected version is semver
	semver := regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semver.MatchString(Version), "got %s", Version)
}

func TestString_ContainsBuildInfo(t *testing.T) {
	s := String()

	assert.Contains(t, s, "mcpvector")
	assert.Contains(t, s, Version)
	assert.Contains(t, s, Commit)
	assert.Contains(t, s, GoVersion)
}

func TestShort(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestGetInfo_JSON(t *testing.T) {
	// Given: the structured info
	info := GetInfo()

	// When: encoded
	data, err := json.Marshal(info)
	require.NoError(t, err)

	// Then: the platform fields are the runtime's
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, runtime.GOOS, decoded["os"])
	assert.Equal(t, runtime.GOARCH, decoded["arch"])
	assert.Equal(t, Version, decoded["version"])
	assert.Contains(t, decoded, "go_version")
}
