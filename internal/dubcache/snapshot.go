package dubcache

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketCache = []byte("cache")

type envelope struct {
	Value      json.RawMessage `json:"value"`
	StoredAt   time.Time       `json:"stored_at"`
	TTLSeconds int64           `json:"ttl_seconds"`
}

// Snapshot is the persisted tier, backed by bbolt. Entries carry their own
// TTL so a reopened process inherits the staleness decisions of the one
// that wrote them.
type Snapshot struct {
	db  *bolt.DB
	now func() time.Time
}

var _ Cache = (*Snapshot)(nil)

// OpenSnapshot opens (or creates) the snapshot database at path.
func OpenSnapshot(path string) (*Snapshot, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCache)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshot bucket: %w", err)
	}
	return &Snapshot{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Snapshot) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the cached value if present and within its TTL. Expired
// entries are left in place and overwritten by the next Put.
func (s *Snapshot) Get(key string) ([]byte, bool) {
	value, _, ok := s.GetWithTTL(key)
	return value, ok
}

// GetWithTTL returns the cached value along with its remaining lifetime, so
// the memo tier can promote without outliving the snapshot entry.
func (s *Snapshot) GetWithTTL(key string) ([]byte, time.Duration, bool) {
	var wrapped envelope
	found := false
	_ = s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketCache).Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil
		}
		found = true
		return nil
	})
	if !found {
		return nil, 0, false
	}
	ttl := time.Duration(wrapped.TTLSeconds) * time.Second
	age := s.now().Sub(wrapped.StoredAt)
	if age > ttl {
		return nil, 0, false
	}
	return wrapped.Value, ttl - age, true
}

// Put stores a value with the supplied TTL.
func (s *Snapshot) Put(key string, value []byte, ttl time.Duration) error {
	wrapped, err := json.Marshal(envelope{
		Value:      value,
		StoredAt:   s.now().UTC(),
		TTLSeconds: int64(ttl / time.Second),
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot entry: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Put([]byte(key), wrapped)
	})
}

// Invalidate drops a key.
func (s *Snapshot) Invalidate(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCache).Delete([]byte(key))
	})
}

// Fresh reports whether a key is present and within its TTL without reading
// the payload, so background refreshers can skip stable data entirely.
func (s *Snapshot) Fresh(key string) bool {
	_, ok := s.Get(key)
	return ok
}
