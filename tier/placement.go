package tier

import (
	"sync"
)

// BlobTier is one physical tier's byte storage. In production the hot
// tier is backed by fast local storage and warm/cold by external blob
// buckets; both stay behind this interface. The package ships an
// in-memory implementation and treats any tier as optionally absent
// (nil), matching SelectTier's fallback chain.
type BlobTier interface {
	Put(key string, data []byte) error
	Get(key string) ([]byte, bool)
	Delete(key string)
}

type memoryBlobTier struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryBlobTier returns an in-memory BlobTier.
func NewMemoryBlobTier() BlobTier {
	return &memoryBlobTier{data: make(map[string][]byte)}
}

func (t *memoryBlobTier) Put(key string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	t.data[key] = cp
	return nil
}

func (t *memoryBlobTier) Get(key string) ([]byte, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.data[key]
	return v, ok
}

func (t *memoryBlobTier) Delete(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.data, key)
}

// PromotionPolicy controls whether reads promote a key to a smaller tier.
type PromotionPolicy string

const (
	PromotionNone       PromotionPolicy = "none"
	PromotionOnAccess   PromotionPolicy = "on-access"
	PromotionAggressive PromotionPolicy = "aggressive"
)

// Options configures a Placement.
type Options struct {
	HotMaxSize  int64
	WarmMaxSize int64
	Promotion   PromotionPolicy
	// PromotionThreshold is the access count at which "on-access" promotes.
	PromotionThreshold int64
}

// ErrNotFound mirrors the ENOENT case for a key present in no tier.
type ErrNotFound struct{ Key string }

func (e *ErrNotFound) Error() string { return "key not found in any tier: " + e.Key }

// Placement is the tiered placement engine. It also implements the
// external BlobBucket contract (put/get/delete/head/list), so the CAS
// layer can use it directly, keyed by content hash.
type Placement struct {
	opt   Options
	index *Index

	hot, warm, cold BlobTier // a nil tier is "unavailable"
}

// New builds a Placement. warm and cold may be nil to model an
// unavailable tier; SelectTier then falls back to the next available
// one.
func New(index *Index, hot, warm, cold BlobTier, opt Options) *Placement {
	if opt.PromotionThreshold <= 0 {
		opt.PromotionThreshold = 3
	}
	return &Placement{opt: opt, index: index, hot: hot, warm: warm, cold: cold}
}

func (p *Placement) tierStore(t Tier) BlobTier {
	switch t {
	case Hot:
		return p.hot
	case Warm:
		return p.warm
	case Cold:
		return p.cold
	}
	return nil
}

// SelectTier picks hot/warm/cold for a payload of size n bytes.
func (p *Placement) SelectTier(n int64) Tier {
	if n <= p.opt.HotMaxSize {
		return Hot
	}
	if n <= p.opt.WarmMaxSize {
		if p.warm != nil {
			return Warm
		}
		return Hot
	}
	if p.cold != nil {
		return Cold
	}
	if p.warm != nil {
		return Warm
	}
	return Hot
}

// WriteFile writes data under key to its selected tier and records the
// placement in the MetadataIndex.
func (p *Placement) WriteFile(key string, data []byte) (Tier, error) {
	t := p.SelectTier(int64(len(data)))
	store := p.tierStore(t)
	if store == nil {
		t = Hot
		store = p.hot
	}
	if err := store.Put(key, data); err != nil {
		return "", err
	}
	p.index.Set(key, Metadata{Tier: t, Size: int64(len(data))})
	return t, nil
}

// ReadFile looks up key's recorded tier and reads from it; on a cache
// miss it probes warm → cold → hot, backfilling the index on the first
// hit. The returned tier is where the bytes live after any
// policy-driven promotion the read itself triggered.
func (p *Placement) ReadFile(key string) ([]byte, Tier, error) {
	data, _, err := p.readRaw(key)
	if err != nil {
		return nil, "", err
	}
	m, _ := p.index.Get(key)
	t := p.recordAccess(key, m)
	return data, t, nil
}

// readRaw locates key's bytes without touching access tracking or the
// promotion machinery, so Demote (and promotion itself, which runs
// through Demote) can read without recursing back into policy.
func (p *Placement) readRaw(key string) ([]byte, Tier, error) {
	if m, ok := p.index.Get(key); ok {
		if store := p.tierStore(m.Tier); store != nil {
			if data, ok := store.Get(key); ok {
				return data, m.Tier, nil
			}
		}
		// index says a tier that doesn't actually have it: fall through to
		// a full probe, which will correct the index.
		p.index.Invalidate(key)
	}

	probeOrder := []Tier{Warm, Cold, Hot}
	for _, t := range probeOrder {
		store := p.tierStore(t)
		if store == nil {
			continue
		}
		if data, ok := store.Get(key); ok {
			m, _ := p.index.Get(key)
			m.Tier = t
			m.Size = int64(len(data))
			p.index.Set(key, m)
			return data, t, nil
		}
	}
	return nil, "", &ErrNotFound{Key: key}
}

// recordAccess bumps key's access bookkeeping and applies the promotion
// policy, returning the tier the bytes occupy afterwards.
func (p *Placement) recordAccess(key string, m Metadata) Tier {
	m.LastAccessMs = nowMs()
	m.AccessCount++
	p.index.Set(key, m)
	p.maybePromote(key, m)
	if after, ok := p.index.Get(key); ok {
		return after.Tier
	}
	return m.Tier
}

// Demote moves key's bytes from its current tier to target, preserving
// bytes exactly across the transition. It fails if target is
// unavailable. The protocol is write-then-delete so a concurrent reader
// always observes valid bytes in one tier or the other.
func (p *Placement) Demote(key string, target Tier) error {
	targetStore := p.tierStore(target)
	if targetStore == nil {
		return &ErrNotFound{Key: key}
	}
	data, source, err := p.readRaw(key)
	if err != nil {
		return err
	}
	m, _ := p.index.Get(key)
	if err := targetStore.Put(key, data); err != nil {
		return err
	}
	p.index.Set(key, Metadata{Tier: target, Size: int64(len(data)), ContentHash: m.ContentHash, LastAccessMs: m.LastAccessMs, AccessCount: m.AccessCount})
	if sourceStore := p.tierStore(source); sourceStore != nil && source != target {
		sourceStore.Delete(key)
	}
	return nil
}

// maybePromote applies the configured promotion policy. Promoting twice
// is a no-op once the bytes already sit in the target tier.
func (p *Placement) maybePromote(key string, m Metadata) {
	if p.opt.Promotion == PromotionNone || m.Tier == Hot {
		return
	}
	switch p.opt.Promotion {
	case PromotionAggressive:
		p.tryPromote(key, m, Hot)
	case PromotionOnAccess:
		if m.AccessCount >= p.opt.PromotionThreshold {
			p.tryPromote(key, m, Hot)
		}
	}
}

func (p *Placement) tryPromote(key string, m Metadata, target Tier) {
	if m.Size > p.opt.HotMaxSize && target == Hot {
		return // wouldn't fit the target tier's size limit
	}
	_ = p.Demote(key, target)
}

// Delete removes key from whichever tier holds it and drops its index
// entry; the CAS layer calls this on the refcount 1→0 transition.
func (p *Placement) Delete(key string) {
	if m, ok := p.index.Get(key); ok {
		if store := p.tierStore(m.Tier); store != nil {
			store.Delete(key)
		}
	}
	p.index.Delete(key)
}

// Put, Get, Head and List adapt Placement to the external BlobBucket
// contract.
func (p *Placement) Put(key string, data []byte) error {
	_, err := p.WriteFile(key, data)
	return err
}

func (p *Placement) Get(key string) ([]byte, error) {
	data, _, err := p.ReadFile(key)
	if _, notFound := err.(*ErrNotFound); notFound {
		return nil, nil // BlobBucket.get returns (bytes|nil), not an error, when absent
	}
	return data, err
}

// BlobInfo is the {size} result of BlobBucket.head.
type BlobInfo struct{ Size int64 }

func (p *Placement) Head(key string) (*BlobInfo, bool) {
	m, ok := p.index.Get(key)
	if !ok {
		return nil, false
	}
	return &BlobInfo{Size: m.Size}, true
}

// ListEntry is one row of BlobBucket.list.
type ListEntry struct {
	Key  string
	Size int64
}

func (p *Placement) List(prefix string) []ListEntry {
	var out []ListEntry
	for _, k := range p.index.Keys() {
		if prefix != "" && !hasPrefix(k, prefix) {
			continue
		}
		if m, ok := p.index.Get(k); ok {
			out = append(out, ListEntry{Key: k, Size: m.Size})
		}
	}
	return out
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
