// Package refcount implements the content-addressed store's per-hash
// reference counting: fine-grained mutual exclusion, atomic
// compare-and-swap, batch increment/decrement, and exactly-once GC
// signalling on the 1→0 transition.
package refcount

import (
	"sync"
	"time"
)

// shardCount bounds the number of striped locks so memory doesn't grow
// without bound as distinct hashes accumulate. The cost is occasional
// false sharing between unrelated hashes, which is rare enough not to
// matter.
const shardCount = 256

type entry struct {
	refCount uint64
	size     uint64
}

// Metrics tallies the store's operation counters: increments/decrements,
// CAS attempts and failures, lock contention, total lock-wait time, GC
// signals, batch ops.
type Metrics struct {
	Increments      uint64
	Decrements      uint64
	CASAttempts     uint64
	CASFailures     uint64
	ContentionCount uint64
	LockWaitMs      int64
	GCSignals       uint64
	BatchOps        uint64
}

// shard is one lock stripe: a mutex guarding a subset of hashes, keyed by
// hash string within the shard's own map. Holding the shard's lock during
// the full read-modify-write makes every operation on a given hash
// linearizable relative to other operations on the same hash.
type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// Store tracks per-hash reference counts and object sizes.
type Store struct {
	shards [shardCount]*shard

	metricsMu sync.Mutex
	metrics   Metrics
}

// New returns an empty Store.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return s
}

func (s *Store) shardFor(hash string) *shard {
	var h uint32
	for i := 0; i < len(hash); i++ {
		h = h*31 + uint32(hash[i])
	}
	return s.shards[h%shardCount]
}

// lock acquires sh.mu, recording contention metrics if the acquisition had
// to wait.
func (s *Store) lock(sh *shard) {
	if sh.mu.TryLock() {
		return
	}
	start := time.Now()
	sh.mu.Lock()
	waited := time.Since(start)
	s.metricsMu.Lock()
	s.metrics.ContentionCount++
	s.metrics.LockWaitMs += waited.Milliseconds()
	s.metricsMu.Unlock()
}

// Get returns the current refcount for hash, 0 when absent.
func (s *Store) Get(hash string) uint64 {
	sh := s.shardFor(hash)
	s.lock(sh)
	defer sh.mu.Unlock()
	e, ok := sh.entries[hash]
	if !ok {
		return 0
	}
	return e.refCount
}

// Set assigns hash's refcount to n. n <= 0 deletes the entry.
func (s *Store) Set(hash string, n int64) {
	sh := s.shardFor(hash)
	s.lock(sh)
	defer sh.mu.Unlock()
	if n <= 0 {
		delete(sh.entries, hash)
		return
	}
	e := sh.entries[hash]
	if e == nil {
		e = &entry{}
		sh.entries[hash] = e
	}
	e.refCount = uint64(n)
}

// Increment increments hash's refcount and returns the new value.
func (s *Store) Increment(hash string) uint64 {
	sh := s.shardFor(hash)
	s.lock(sh)
	defer sh.mu.Unlock()
	s.metricsMu.Lock()
	s.metrics.Increments++
	s.metricsMu.Unlock()
	e := sh.entries[hash]
	if e == nil {
		e = &entry{}
		sh.entries[hash] = e
	}
	e.refCount++
	return e.refCount
}

// Decrement decrements hash's refcount, saturating at 0 and removing the
// entry when it reaches 0. It invokes no GC callback (a 1→0 transition
// still counts toward Metrics.GCSignals); use DecrementWithGC to receive
// one.
func (s *Store) Decrement(hash string) uint64 {
	return s.DecrementWithGC(hash, nil)
}

// DecrementWithGC decrements hash's refcount inside a single critical
// section and invokes onGC(hash) synchronously iff this call is the one
// that brought the count to 0. onGC must not try to reacquire this
// hash's lock.
func (s *Store) DecrementWithGC(hash string, onGC func(string)) uint64 {
	sh := s.shardFor(hash)
	s.lock(sh)
	s.metricsMu.Lock()
	s.metrics.Decrements++
	s.metricsMu.Unlock()

	e, ok := sh.entries[hash]
	if !ok || e.refCount == 0 {
		sh.mu.Unlock()
		return 0
	}
	e.refCount--
	newCount := e.refCount
	reachedZero := newCount == 0
	if reachedZero {
		delete(sh.entries, hash)
	}
	sh.mu.Unlock()

	if reachedZero {
		s.metricsMu.Lock()
		s.metrics.GCSignals++
		s.metricsMu.Unlock()
		if onGC != nil {
			onGC(hash)
		}
	}
	return newCount
}

// CAS atomically sets hash's refcount to new iff it currently equals
// expected. Returns whether the swap happened.
func (s *Store) CAS(hash string, expected, new uint64) bool {
	sh := s.shardFor(hash)
	s.lock(sh)
	defer sh.mu.Unlock()
	s.metricsMu.Lock()
	s.metrics.CASAttempts++
	s.metricsMu.Unlock()

	e := sh.entries[hash]
	cur := uint64(0)
	if e != nil {
		cur = e.refCount
	}
	if cur != expected {
		s.metricsMu.Lock()
		s.metrics.CASFailures++
		s.metricsMu.Unlock()
		return false
	}
	if new == 0 {
		delete(sh.entries, hash)
		return true
	}
	if e == nil {
		e = &entry{}
		sh.entries[hash] = e
	}
	e.refCount = new
	return true
}

// SetSize records hash's object size.
func (s *Store) SetSize(hash string, size uint64) {
	sh := s.shardFor(hash)
	s.lock(sh)
	defer sh.mu.Unlock()
	e := sh.entries[hash]
	if e == nil {
		e = &entry{}
		sh.entries[hash] = e
	}
	e.size = size
}

// GetSize returns hash's recorded size, 0 when absent.
func (s *Store) GetSize(hash string) uint64 {
	sh := s.shardFor(hash)
	s.lock(sh)
	defer sh.mu.Unlock()
	e, ok := sh.entries[hash]
	if !ok {
		return 0
	}
	return e.size
}

// BatchIncrement increments every hash in hs (applying duplicates once
// per occurrence) and returns the resulting counts.
func (s *Store) BatchIncrement(hs []string) map[string]uint64 {
	s.metricsMu.Lock()
	s.metrics.BatchOps++
	s.metricsMu.Unlock()
	out := make(map[string]uint64, len(hs))
	for _, h := range hs {
		out[h] = s.Increment(h)
	}
	return out
}

// BatchDecrementResult is the outcome of BatchDecrement.
type BatchDecrementResult struct {
	Results           map[string]uint64
	HashesReachedZero []string
}

// BatchDecrement decrements every hash in hs (applying duplicates once per
// occurrence), invoking onGC for each hash whose decrement reaches 0.
func (s *Store) BatchDecrement(hs []string, onGC func(string)) BatchDecrementResult {
	s.metricsMu.Lock()
	s.metrics.BatchOps++
	s.metricsMu.Unlock()
	res := BatchDecrementResult{Results: make(map[string]uint64, len(hs))}
	for _, h := range hs {
		var reachedZero bool
		newCount := s.DecrementWithGC(h, func(hash string) {
			reachedZero = true
			if onGC != nil {
				onGC(hash)
			}
		})
		res.Results[h] = newCount
		if reachedZero {
			res.HashesReachedZero = append(res.HashesReachedZero, h)
		}
	}
	return res
}

// Snapshot returns a point-in-time (per-hash consistent) view of every
// tracked hash.
func (s *Store) Snapshot() map[string]struct {
	RefCount uint64
	Size     uint64
} {
	out := make(map[string]struct {
		RefCount uint64
		Size     uint64
	})
	for _, sh := range s.shards {
		sh.mu.Lock()
		for h, e := range sh.entries {
			out[h] = struct {
				RefCount uint64
				Size     uint64
			}{RefCount: e.refCount, Size: e.size}
		}
		sh.mu.Unlock()
	}
	return out
}

// Metrics returns a snapshot of the store's operation counters.
func (s *Store) Metrics() Metrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	return s.metrics
}

// DeduplicatedBytes computes Σ size(h)·(refCount(h)−1) over every tracked
// hash: the bytes saved by content-addressed sharing.
func (s *Store) DeduplicatedBytes() uint64 {
	var total uint64
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, e := range sh.entries {
			if e.refCount > 1 {
				total += e.size * (e.refCount - 1)
			}
		}
		sh.mu.Unlock()
	}
	return total
}
