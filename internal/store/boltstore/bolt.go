// Package boltstore implements a single-file storage backend on bbolt.
package boltstore

import (
	"bytes"
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/discochess/coach/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// DefaultBucket holds every key.
const DefaultBucket = "coach"

// Store is a bbolt-backed store. Every Put is one write transaction, so a
// value is either fully committed or absent after a crash.
type Store struct {
	db     *bbolt.DB
	bucket []byte
	closed atomic.Bool
}

// Option configures a Store.
type Option func(*options)

type options struct {
	bucket  string
	timeout time.Duration
	noSync  bool
}

// WithBucket sets the bucket name.
func WithBucket(name string) Option {
	return func(o *options) { o.bucket = name }
}

// WithTimeout sets how long Open waits for the file lock.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithNoSync skips fsync after each commit. Only for tests and scratch
// caches.
func WithNoSync() Option {
	return func(o *options) { o.noSync = true }
}

// Open opens or creates the database file at path.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{bucket: DefaultBucket, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{
		Timeout: o.timeout,
		NoSync:  o.noSync,
	})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(o.bucket)); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, bucket: []byte(o.bucket)}, nil
}

// Get returns a copy of the stored value.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(s.bucket).Get([]byte(key))
		if v == nil {
			return store.ErrNotFound
		}
		// Values are only valid for the life of the transaction.
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// Put stores value under key in one transaction.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if err := store.ValidateKey(key); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(s.bucket).Put([]byte(key), value); err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
		return nil
	})
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(s.bucket).Delete([]byte(key))
	})
}

// Keys returns the keys with the given prefix in byte order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var keys []string
	p := []byte(prefix)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(s.bucket).Cursor()
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			keys = append(keys, string(k))
		}
		return nil
	})
	return keys, err
}

// Compact copies the live data into a fresh file at dst, dropping free
// pages left behind by deleted and rewritten entries.
func (s *Store) Compact(dst string) error {
	out, err := bbolt.Open(dst, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("opening compaction target: %w", err)
	}
	defer out.Close()
	return bbolt.Compact(out, s.db, 64<<20)
}

// Size returns the database file size in bytes.
func (s *Store) Size() (int64, error) {
	var size int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size, err
}

// Close closes the database file.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) check(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if s.closed.Load() {
		return bbolt.ErrDatabaseNotOpen
	}
	return nil
}
