// Package tier implements the tiered placement engine and the
// authoritative metadata index: size-threshold-driven tier selection,
// cross-tier read fallback, demotion, access-frequency promotion, and a
// key → {tier, size, hash, ...} index kept in the hot tier with an
// advisory in-process cache shadowing it.
package tier

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Tier identifies one of the three storage tiers.
type Tier string

const (
	Hot  Tier = "hot"
	Warm Tier = "warm"
	Cold Tier = "cold"
)

// Metadata is the per-key placement record.
type Metadata struct {
	Tier         Tier
	Size         int64
	ContentHash  string
	LastAccessMs int64
	AccessCount  int64
}

// MetadataStore is the authoritative, hot-tier-backed key → Metadata
// index. A production deployment backs this with the concrete hot-tier
// database; here it is an injectable interface so the in-memory default
// and any persistent implementation share the same contract.
type MetadataStore interface {
	Get(key string) (Metadata, bool)
	Set(key string, m Metadata)
	Delete(key string)
	Keys() []string
}

// memoryMetadataStore is the in-memory MetadataStore used when no
// external hot-tier database is wired in.
type memoryMetadataStore struct {
	mu   sync.RWMutex
	data map[string]Metadata
}

// NewMemoryMetadataStore returns a MetadataStore backed by a plain map,
// standing in for the hot tier's concrete database.
func NewMemoryMetadataStore() MetadataStore {
	return &memoryMetadataStore{data: make(map[string]Metadata)}
}

func (m *memoryMetadataStore) Get(key string) (Metadata, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *memoryMetadataStore) Set(key string, meta Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = meta
}

func (m *memoryMetadataStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func (m *memoryMetadataStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.data))
	for k := range m.data {
		out = append(out, k)
	}
	return out
}

// Index is the metadata index: it consults an advisory LRU cache first,
// falling back to (and repopulating from) the authoritative
// MetadataStore. On inconsistency the authoritative store always wins.
type Index struct {
	store MetadataStore
	cache *lru.Cache // advisory read-through shadow, never authoritative
}

// NewIndex wraps store with an advisory cache of the given size.
func NewIndex(store MetadataStore, cacheSize int) *Index {
	if cacheSize <= 0 {
		cacheSize = 4096
	}
	c, _ := lru.New(cacheSize)
	return &Index{store: store, cache: c}
}

// Get returns key's metadata, consulting the cache first and falling back
// to (and repopulating from) the authoritative store.
func (idx *Index) Get(key string) (Metadata, bool) {
	if v, ok := idx.cache.Get(key); ok {
		return v.(Metadata), true
	}
	m, ok := idx.store.Get(key)
	if ok {
		idx.cache.Add(key, m)
	}
	return m, ok
}

// Set writes key's metadata to the authoritative store first, then
// updates the cache. The cache is never the system of record.
func (idx *Index) Set(key string, m Metadata) {
	idx.store.Set(key, m)
	idx.cache.Add(key, m)
}

// SetMetadata merges the non-zero fields of update into key's existing
// record, preserving everything else. A missing record is created with
// just the updated fields.
func (idx *Index) SetMetadata(key string, update Metadata) {
	m, _ := idx.store.Get(key)
	if update.Tier != "" {
		m.Tier = update.Tier
	}
	if update.Size != 0 {
		m.Size = update.Size
	}
	if update.ContentHash != "" {
		m.ContentHash = update.ContentHash
	}
	if update.LastAccessMs != 0 {
		m.LastAccessMs = update.LastAccessMs
	}
	if update.AccessCount != 0 {
		m.AccessCount = update.AccessCount
	}
	idx.Set(key, m)
}

// Delete removes key from both the authoritative store and the cache.
func (idx *Index) Delete(key string) {
	idx.store.Delete(key)
	idx.cache.Remove(key)
}

// Keys lists every key the authoritative store knows about.
func (idx *Index) Keys() []string {
	return idx.store.Keys()
}

// Invalidate drops key from the cache without touching the authoritative
// store, for use when a tier probe finds the cache stale.
func (idx *Index) Invalidate(key string) {
	idx.cache.Remove(key)
}
