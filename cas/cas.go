// Package cas implements the content-addressed store: map content to a
// cryptographic hash, write bytes once per hash, and delete only on the
// refcount GC signal.
package cas

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/fsxd/fsxd/refcount"
	"golang.org/x/sync/singleflight"
)

// BlobBucket is the part of the external blob storage contract the CAS
// layer uses: put, get and delete, keyed by content hash; head and list
// are not part of this interface. tier.Placement implements it directly
// so the CAS layer can write through the tiered placement engine without
// depending on its package.
type BlobBucket interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, error)
	Delete(key string)
}

// Store is the content-addressed store.
type Store struct {
	bucket BlobBucket
	refs   *refcount.Store

	// putGroup collapses concurrent Put calls for identical bytes so the
	// BlobBucket write and the size bookkeeping happen once, even though
	// every caller still gets its own refcount increment. Concurrent puts
	// of identical content are safe because identical content hashes the
	// same.
	putGroup singleflight.Group
}

// New builds a CAS Store over bucket, tracking references in refs.
func New(bucket BlobBucket, refs *refcount.Store) *Store {
	return &Store{bucket: bucket, refs: refs}
}

// Hash returns the lowercase hex SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Put hashes data, writing it to the BlobBucket the first time the hash
// is seen, then unconditionally increments the hash's refcount.
func (s *Store) Put(data []byte) (hash string, size int64, err error) {
	hash = Hash(data)
	size = int64(len(data))

	_, err, _ = s.putGroup.Do(hash, func() (interface{}, error) {
		if s.refs.Get(hash) == 0 {
			if werr := s.bucket.Put(hash, data); werr != nil {
				return nil, werr
			}
		}
		s.refs.SetSize(hash, uint64(size))
		return nil, nil
	})
	if err != nil {
		return "", 0, err
	}
	s.refs.Increment(hash)
	return hash, size, nil
}

// AddRef increments hash's refcount directly, for callers (like
// InodeGraph.CopyFile) that want to share an existing hash without
// re-hashing bytes. Fails ENOENT-shaped if the hash is entirely unknown.
func (s *Store) AddRef(hash string) error {
	if s.refs.Get(hash) == 0 && s.refs.GetSize(hash) == 0 {
		return &NotFoundError{Hash: hash}
	}
	s.refs.Increment(hash)
	return nil
}

// Release decrements hash's refcount, deleting the blob from the
// BlobBucket exactly once, synchronously inside the GC callback, iff this
// call is the 1→0 transition.
func (s *Store) Release(hash string) error {
	s.refs.DecrementWithGC(hash, func(h string) {
		s.bucket.Delete(h)
	})
	return nil
}

// ReadAll fetches hash's bytes from the BlobBucket.
func (s *Store) ReadAll(hash string) ([]byte, error) {
	data, err := s.bucket.Get(hash)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, &NotFoundError{Hash: hash}
	}
	return data, nil
}

// NotFoundError reports a hash with no known blob or size.
type NotFoundError struct{ Hash string }

func (e *NotFoundError) Error() string { return "unknown content hash: " + e.Hash }
