package tier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPlacement(opt Options) *Placement {
	idx := NewIndex(NewMemoryMetadataStore(), 64)
	return New(idx, NewMemoryBlobTier(), NewMemoryBlobTier(), NewMemoryBlobTier(), opt)
}

// A mid-size payload lands in warm, reads back byte-identical, and
// survives demotion to cold.
func TestTierRoundTrip(t *testing.T) {
	p := newTestPlacement(Options{HotMaxSize: 1024, WarmMaxSize: 10240})
	payload := make([]byte, 5120)
	for i := range payload {
		payload[i] = byte(i)
	}

	tr, err := p.WriteFile("/m.bin", payload)
	require.NoError(t, err)
	assert.Equal(t, Warm, tr)

	data, tr, err := p.ReadFile("/m.bin")
	require.NoError(t, err)
	assert.Equal(t, Warm, tr)
	assert.Equal(t, payload, data)

	require.NoError(t, p.Demote("/m.bin", Cold))
	data, tr, err = p.ReadFile("/m.bin")
	require.NoError(t, err)
	assert.Equal(t, Cold, tr)
	assert.Equal(t, payload, data)
}

func TestSelectTier(t *testing.T) {
	p := newTestPlacement(Options{HotMaxSize: 100, WarmMaxSize: 1000})
	assert.Equal(t, Hot, p.SelectTier(50))
	assert.Equal(t, Hot, p.SelectTier(100))
	assert.Equal(t, Warm, p.SelectTier(101))
	assert.Equal(t, Warm, p.SelectTier(1000))
	assert.Equal(t, Cold, p.SelectTier(1001))
}

func TestSelectTierFallsBackWhenTierUnavailable(t *testing.T) {
	idx := NewIndex(NewMemoryMetadataStore(), 64)
	p := New(idx, NewMemoryBlobTier(), nil, nil, Options{HotMaxSize: 100, WarmMaxSize: 1000})
	assert.Equal(t, Hot, p.SelectTier(500))  // warm missing -> hot
	assert.Equal(t, Hot, p.SelectTier(5000)) // cold and warm missing -> hot

	idx2 := NewIndex(NewMemoryMetadataStore(), 64)
	p2 := New(idx2, NewMemoryBlobTier(), NewMemoryBlobTier(), nil, Options{HotMaxSize: 100, WarmMaxSize: 1000})
	assert.Equal(t, Warm, p2.SelectTier(5000)) // cold missing -> warm
}

func TestDemotionPreservation(t *testing.T) {
	p := newTestPlacement(Options{HotMaxSize: 10, WarmMaxSize: 100})
	b := []byte("hello world, this exceeds warm threshold size no it does not")
	_, err := p.WriteFile("k", b)
	require.NoError(t, err)
	require.NoError(t, p.Demote("k", Warm))
	require.NoError(t, p.Demote("k", Cold))
	data, tr, err := p.ReadFile("k")
	require.NoError(t, err)
	assert.Equal(t, Cold, tr)
	assert.Equal(t, b, data)
}

func TestReadMissingKeyIsNotFound(t *testing.T) {
	p := newTestPlacement(Options{HotMaxSize: 100, WarmMaxSize: 1000})
	_, _, err := p.ReadFile("missing")
	require.Error(t, err)
	var nf *ErrNotFound
	assert.ErrorAs(t, err, &nf)
}

func TestAggressivePromotionOnFirstAccess(t *testing.T) {
	idx := NewIndex(NewMemoryMetadataStore(), 64)
	p := New(idx, NewMemoryBlobTier(), NewMemoryBlobTier(), NewMemoryBlobTier(), Options{
		HotMaxSize: 1000, WarmMaxSize: 10000, Promotion: PromotionAggressive,
	})
	_, err := p.WriteFile("k2", []byte("small-ish"))
	require.NoError(t, err)
	require.NoError(t, p.Demote("k2", Warm))

	_, tr, err := p.ReadFile("k2")
	require.NoError(t, err)
	assert.Equal(t, Hot, tr, "aggressive promotion should move to hot on first access")
}

func TestOnAccessPromotionIsIdempotent(t *testing.T) {
	idx := NewIndex(NewMemoryMetadataStore(), 64)
	p := New(idx, NewMemoryBlobTier(), NewMemoryBlobTier(), NewMemoryBlobTier(), Options{
		HotMaxSize: 1000, WarmMaxSize: 10000, Promotion: PromotionOnAccess, PromotionThreshold: 2,
	})
	_, err := p.WriteFile("k", []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, p.Demote("k", Warm))

	_, _, err = p.ReadFile("k")
	require.NoError(t, err)
	_, tr, err := p.ReadFile("k")
	require.NoError(t, err)
	assert.Equal(t, Hot, tr)

	// promoting twice is safe
	_, tr, err = p.ReadFile("k")
	require.NoError(t, err)
	assert.Equal(t, Hot, tr)
}

func TestBlobBucketAdapter(t *testing.T) {
	p := newTestPlacement(Options{HotMaxSize: 100, WarmMaxSize: 1000})
	require.NoError(t, p.Put("a", []byte("12345")))
	data, err := p.Get("a")
	require.NoError(t, err)
	assert.Equal(t, []byte("12345"), data)

	info, ok := p.Head("a")
	require.True(t, ok)
	assert.Equal(t, int64(5), info.Size)

	p.Delete("a")
	data, err = p.Get("a")
	require.NoError(t, err)
	assert.Nil(t, data)
	_, ok = p.Head("a")
	assert.False(t, ok)
}
