package cas

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// LocalBlobBucket is a filesystem-backed BlobBucket keyed by content
// hash, fanned out under two-character prefix directories so no single
// directory accumulates every object. It also implements the head/list
// portions of the external blob storage contract.
type LocalBlobBucket struct {
	root string
}

// NewLocalBlobBucket creates (if needed) and opens a blob bucket rooted
// at dir.
func NewLocalBlobBucket(dir string) (*LocalBlobBucket, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating blob root %q", dir)
	}
	return &LocalBlobBucket{root: dir}, nil
}

func (b *LocalBlobBucket) pathFor(key string) string {
	if len(key) < 2 {
		return filepath.Join(b.root, "_", key)
	}
	return filepath.Join(b.root, key[:2], key)
}

// Put writes data under key. Keys are content hashes, so an existing
// file already holds identical bytes and the write is skipped.
func (b *LocalBlobBucket) Put(key string, data []byte) error {
	path := b.pathFor(key)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating blob shard for %q", key)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrapf(err, "writing blob %q", key)
	}
	return errors.Wrapf(os.Rename(tmp, path), "committing blob %q", key)
}

// Get returns key's bytes, or (nil, nil) when the blob is absent,
// matching the BlobBucket.get contract.
func (b *LocalBlobBucket) Get(key string) ([]byte, error) {
	data, err := os.ReadFile(b.pathFor(key))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading blob %q", key)
	}
	return data, nil
}

// Delete removes key's blob. Deleting an absent key is a no-op.
func (b *LocalBlobBucket) Delete(key string) {
	_ = os.Remove(b.pathFor(key))
}

// Head returns key's size without reading the bytes, or false when the
// blob is absent.
func (b *LocalBlobBucket) Head(key string) (int64, bool) {
	st, err := os.Stat(b.pathFor(key))
	if err != nil {
		return 0, false
	}
	return st.Size(), true
}

// BlobEntry is one row of List.
type BlobEntry struct {
	Key  string
	Size int64
}

// List enumerates stored blobs, optionally restricted to keys with the
// given prefix.
func (b *LocalBlobBucket) List(prefix string) ([]BlobEntry, error) {
	var out []BlobEntry
	err := filepath.Walk(b.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		key := filepath.Base(path)
		if strings.HasSuffix(key, ".tmp") {
			return nil
		}
		if prefix != "" && !strings.HasPrefix(key, prefix) {
			return nil
		}
		out = append(out, BlobEntry{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing blobs")
	}
	return out, nil
}
