// Package dubcache provides the two-tier reconciliation cache: a short-TTL
// in-process memo and a long-lived bbolt snapshot whose staleness policy is
// derived from the cached subject's lifecycle.
package dubcache

import (
	"fmt"
	"sync"
	"time"
)

// Cache is the uniform contract both tiers implement.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte, ttl time.Duration) error
	Invalidate(key string) error
}

// Cache key prefixes.
const (
	prefixVerdict = "verdict:"
	prefixSeason  = "season:"
)

// VerdictKey builds the cache key for one entity's dub verdict.
func VerdictKey(entityID int64) string {
	return fmt.Sprintf("%s%d", prefixVerdict, entityID)
}

// SeasonKey builds the cache key for one season bucket snapshot.
func SeasonKey(season string, year int) string {
	return fmt.Sprintf("%s%s:%d", prefixSeason, season, year)
}

type memoEntry struct {
	value    []byte
	storedAt time.Time
	ttl      time.Duration
}

// Memo is the in-process tier. Safe for concurrent use; contention is low
// since lookups bracket network I/O.
type Memo struct {
	mu      sync.Mutex
	entries map[string]memoEntry
	now     func() time.Time
}

var _ Cache = (*Memo)(nil)

// NewMemo creates an empty in-process cache.
func NewMemo() *Memo {
	return &Memo{entries: make(map[string]memoEntry), now: time.Now}
}

// Get returns the cached value if present and unexpired.
func (m *Memo) Get(key string) ([]byte, bool) {
	value, _, ok := m.GetWithTTL(key)
	return value, ok
}

// GetWithTTL returns the cached value along with its remaining lifetime.
func (m *Memo) GetWithTTL(key string) ([]byte, time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, 0, false
	}
	age := m.now().Sub(entry.storedAt)
	if age > entry.ttl {
		delete(m.entries, key)
		return nil, 0, false
	}
	return entry.value, entry.ttl - age, true
}

// Put stores a value with the supplied TTL.
func (m *Memo) Put(key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoEntry{value: value, storedAt: m.now(), ttl: ttl}
	return nil
}

// Invalidate drops a key.
func (m *Memo) Invalidate(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Tiered layers the memo over the snapshot: reads check the memo first and
// promote snapshot hits; writes and invalidations go to both tiers.
type Tiered struct {
	memo     Cache
	snapshot Cache
	memoTTL  time.Duration
}

var _ Cache = (*Tiered)(nil)

// NewTiered combines the two tiers. Either tier may be nil. memoTTL caps how
// long the memo tier retains any entry; zero or negative selects the default.
func NewTiered(memo, snapshot Cache, memoTTL time.Duration) *Tiered {
	if memoTTL <= 0 {
		memoTTL = defaultMemoTTL
	}
	return &Tiered{memo: memo, snapshot: snapshot, memoTTL: memoTTL}
}

func (t *Tiered) Get(key string) ([]byte, bool) {
	if t.memo != nil {
		if value, ok := t.memo.Get(key); ok {
			return value, true
		}
	}
	if t.snapshot != nil {
		value, remaining, ok := getWithRemaining(t.snapshot, key)
		if ok {
			if t.memo != nil {
				// A promoted entry must not outlive the snapshot entry it
				// came from, or the memo would serve it past expiry.
				ttl := t.memoTTL
				if remaining > 0 && remaining < ttl {
					ttl = remaining
				}
				_ = t.memo.Put(key, value, ttl)
			}
			return value, true
		}
	}
	return nil, false
}

// Fresh reports whether the snapshot tier holds an unexpired entry for key,
// bypassing the memo. Background refreshers use it to skip stable buckets.
func (t *Tiered) Fresh(key string) bool {
	if t.snapshot == nil {
		return false
	}
	if freshness, ok := t.snapshot.(interface{ Fresh(key string) bool }); ok {
		return freshness.Fresh(key)
	}
	_, ok := t.snapshot.Get(key)
	return ok
}

func (t *Tiered) Put(key string, value []byte, ttl time.Duration) error {
	if t.memo != nil {
		memoTTL := ttl
		if memoTTL > t.memoTTL {
			memoTTL = t.memoTTL
		}
		if err := t.memo.Put(key, value, memoTTL); err != nil {
			return err
		}
	}
	if t.snapshot != nil {
		return t.snapshot.Put(key, value, ttl)
	}
	return nil
}

// getWithRemaining prefers the tier's TTL-aware lookup when it has one.
func getWithRemaining(c Cache, key string) ([]byte, time.Duration, bool) {
	if probe, ok := c.(interface {
		GetWithTTL(key string) ([]byte, time.Duration, bool)
	}); ok {
		return probe.GetWithTTL(key)
	}
	value, ok := c.Get(key)
	return value, 0, ok
}

func (t *Tiered) Invalidate(key string) error {
	if t.memo != nil {
		if err := t.memo.Invalidate(key); err != nil {
			return err
		}
	}
	if t.snapshot != nil {
		return t.snapshot.Invalidate(key)
	}
	return nil
}
