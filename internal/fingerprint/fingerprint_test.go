package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf_StableAndContentSensitive(t *testing.T) {
	a := Of([]byte("hello world"))

	assert.Equal(t, a, Of([]byte("hello world")))
	assert.NotEqual(t, a, Of([]byte("hello world!")))
	assert.Len(t, a, 64)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", a)
}

func TestOfString_MatchesBytes(t *testing.T) {
	assert.Equal(t, Of([]byte("abc")), OfString("abc"))
}
