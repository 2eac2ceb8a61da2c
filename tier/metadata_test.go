package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexGetSetDelete(t *testing.T) {
	idx := NewIndex(NewMemoryMetadataStore(), 16)
	_, ok := idx.Get("k")
	assert.False(t, ok)

	idx.Set("k", Metadata{Tier: Hot, Size: 10})
	m, ok := idx.Get("k")
	require.True(t, ok)
	assert.Equal(t, Hot, m.Tier)
	assert.Equal(t, int64(10), m.Size)

	idx.Delete("k")
	_, ok = idx.Get("k")
	assert.False(t, ok)
}

func TestIndexSetMetadataMergesFields(t *testing.T) {
	idx := NewIndex(NewMemoryMetadataStore(), 16)
	idx.Set("k", Metadata{Tier: Warm, Size: 10, AccessCount: 4})

	idx.SetMetadata("k", Metadata{ContentHash: "abc123"})
	m, ok := idx.Get("k")
	require.True(t, ok)
	assert.Equal(t, Warm, m.Tier)
	assert.Equal(t, int64(10), m.Size)
	assert.Equal(t, int64(4), m.AccessCount)
	assert.Equal(t, "abc123", m.ContentHash)
}

func TestIndexAuthoritativeStoreSurvivesCacheEviction(t *testing.T) {
	store := NewMemoryMetadataStore()
	idx := NewIndex(store, 1) // tiny cache to force eviction
	idx.Set("a", Metadata{Tier: Hot, Size: 1})
	idx.Set("b", Metadata{Tier: Warm, Size: 2}) // evicts "a" from the cache

	// "a" is gone from the advisory cache but still authoritative.
	m, ok := idx.Get("a")
	require.True(t, ok)
	assert.Equal(t, Hot, m.Tier)
}

func TestIndexInvalidateDoesNotTouchAuthoritativeStore(t *testing.T) {
	store := NewMemoryMetadataStore()
	idx := NewIndex(store, 16)
	idx.Set("a", Metadata{Tier: Hot, Size: 1})
	idx.Invalidate("a")

	_, ok := store.Get("a")
	assert.True(t, ok, "authoritative store must be untouched by Invalidate")

	m, ok := idx.Get("a")
	require.True(t, ok, "Get repopulates the cache from the authoritative store")
	assert.Equal(t, Hot, m.Tier)
}
