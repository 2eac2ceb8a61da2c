package cas

import (
	"testing"

	"github.com/fsxd/fsxd/refcount"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlobBucketRoundTrip(t *testing.T) {
	bucket, err := NewLocalBlobBucket(t.TempDir())
	require.NoError(t, err)

	key := Hash([]byte("payload"))
	require.NoError(t, bucket.Put(key, []byte("payload")))

	data, err := bucket.Get(key)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	size, ok := bucket.Head(key)
	require.True(t, ok)
	assert.Equal(t, int64(len("payload")), size)

	entries, err := bucket.List(key[:2])
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, key, entries[0].Key)

	bucket.Delete(key)
	data, err = bucket.Get(key)
	require.NoError(t, err)
	assert.Nil(t, data)
	_, ok = bucket.Head(key)
	assert.False(t, ok)
}

func TestLocalBlobBucketAbsentKeyIsNilNotError(t *testing.T) {
	bucket, err := NewLocalBlobBucket(t.TempDir())
	require.NoError(t, err)
	data, err := bucket.Get("0000000000000000000000000000000000000000000000000000000000000000")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestCASOverLocalBlobBucket(t *testing.T) {
	bucket, err := NewLocalBlobBucket(t.TempDir())
	require.NoError(t, err)
	store := New(bucket, refcount.New())

	h, _, err := store.Put([]byte("on disk"))
	require.NoError(t, err)
	data, err := store.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, []byte("on disk"), data)

	require.NoError(t, store.Release(h))
	_, err = store.ReadAll(h)
	assert.Error(t, err)
}
