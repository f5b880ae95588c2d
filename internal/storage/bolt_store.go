package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	routeBucket      = "routes"
	expiryValueBytes = 8
)

// boltStore implements a Store backed by BoltDB. Each key maps to its
// big-endian unix expiry.
type boltStore struct {
	db              *bolt.DB
	now             func() time.Time
	routeTTL        time.Duration
	cleanupInterval time.Duration
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (*boltStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(routeBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	s := &boltStore{
		db:              db,
		now:             time.Now,
		routeTTL:        opts.RouteTTL,
		cleanupInterval: opts.CleanupInterval,
	}
	s.lastCleanup.Store(s.now().Unix())
	return s, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SeenRoute reports whether key was marked and has not expired yet. Expired
// entries read as unseen and are left for the periodic sweep.
func (b *boltStore) SeenRoute(key string) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}
	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return false, err
	}

	var seen bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket, err := routesBucket(tx)
		if err != nil {
			return err
		}
		seen = live(bucket.Get([]byte(key)), now)
		return nil
	})
	return seen, err
}

// MarkRoute records key as relayed until the route TTL elapses.
func (b *boltStore) MarkRoute(key string) error {
	if b == nil || b.db == nil {
		return nil
	}
	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := routesBucket(tx)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), encodeExpiry(now.Add(b.routeTTL)))
	})
}

// maybeCleanupExpired sweeps expired keys at most once per cleanup interval.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if !b.cleanupDue(now) {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()
	if !b.cleanupDue(now) {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := routesBucket(tx)
		if err != nil {
			return err
		}
		c := bucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if live(v, now) {
				continue
			}
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func (b *boltStore) cleanupDue(now time.Time) bool {
	return now.Sub(time.Unix(b.lastCleanup.Load(), 0)) >= b.cleanupInterval
}

func routesBucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	bucket := tx.Bucket([]byte(routeBucket))
	if bucket == nil {
		return nil, fmt.Errorf("route bucket missing")
	}
	return bucket, nil
}

func encodeExpiry(t time.Time) []byte {
	buf := make([]byte, expiryValueBytes)
	binary.BigEndian.PutUint64(buf, uint64(t.Unix()))
	return buf
}

// live reports whether a stored expiry is well-formed and still in the future.
func live(value []byte, now time.Time) bool {
	if len(value) != expiryValueBytes {
		return false
	}
	unix := int64(binary.BigEndian.Uint64(value))
	return unix > 0 && time.Unix(unix, 0).After(now)
}
