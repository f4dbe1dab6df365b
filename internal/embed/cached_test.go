package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbedder_HitSkipsInner(t *testing.T) {
	// Given: a cache over a counting embedder
	inner := &scriptedEmbedder{}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	// When: the same text is embedded twice
	_, err := c.Embed(ctx, "hello")
	require.NoError(t, err)
	_, err = c.Embed(ctx, "hello")
	require.NoError(t, err)

	// Then: the provider was called once
	assert.Equal(t, 1, inner.Calls())
	assert.Equal(t, 1, c.Len())
}

func TestCachedEmbedder_BatchSendsOnlyMisses(t *testing.T) {
	inner := &scriptedEmbedder{}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()
	_, _ = c.Embed(ctx, "a")

	out, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})

	require.NoError(t, err)
	assert.Len(t, out, 3)
	assert.Equal(t, 2, inner.Calls(), "one single call plus one batch for the misses")
	assert.Equal(t, 3, c.Len())

	_, err = c.EmbedBatch(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.Calls())
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	inner := &scriptedEmbedder{errs: []error{assert.AnError}}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := c.Embed(ctx, "x")
	assert.Error(t, err)
	_, err = c.Embed(ctx, "x")
	assert.NoError(t, err)
	assert.Equal(t, 2, inner.Calls())
}

func TestCachedEmbedder_Evicts(t *testing.T) {
	inner := &scriptedEmbedder{}
	c := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	for _, s := range []string{"a", "b", "c"} {
		_, _ = c.Embed(ctx, s)
	}

	assert.Equal(t, 2, c.Len())
	require.NoError(t, c.Close())
	assert.Equal(t, 0, c.Len())
	assert.True(t, inner.closed)
}
