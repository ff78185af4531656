// Package diskstore implements a disk-based filesystem storage backend.
//
// Each key is stored as one file. Files are spread across shard
// directories so no single directory grows with the number of games:
//
//	<root>/<shard>/<escaped key>
package diskstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/discochess/coach/internal/shard"
	"github.com/discochess/coach/internal/shard/fnvshard"
	"github.com/discochess/coach/internal/store"
)

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// DefaultShards is the default number of shard directories.
const DefaultShards = 256

const tempPrefix = ".tmp-"

// Store is a disk-based filesystem storage backend.
type Store struct {
	root     string
	shards   int
	strategy shard.Strategy
}

// Option configures a Store.
type Option func(*Store)

// WithShards sets the number of shard directories.
func WithShards(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shards = n
		}
	}
}

// WithStrategy sets the key sharding strategy.
func WithStrategy(strategy shard.Strategy) Option {
	return func(s *Store) { s.strategy = strategy }
}

// New creates a new disk store rooted at the given directory.
// The directory must exist.
func New(root string, opts ...Option) (*Store, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	s := &Store{
		root:     root,
		shards:   DefaultShards,
		strategy: fnvshard.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get reads the file stored for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	// Check for cancellation before starting I/O.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}

// Put writes value to a temporary file in the target directory and renames
// it over the previous file, so readers never observe a partial write.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := store.ValidateKey(key); err != nil {
		return err
	}

	path := s.path(key)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating shard directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("syncing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing %s: %w", key, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming %s: %w", key, err)
	}
	return nil
}

// Delete removes the file stored for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key with the given prefix.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	shardDirs, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("listing root: %w", err)
	}

	var keys []string
	for _, d := range shardDirs {
		if !d.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.root, d.Name()))
		if err != nil {
			return nil, fmt.Errorf("listing shard %s: %w", d.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || strings.HasPrefix(f.Name(), tempPrefix) {
				continue
			}
			key, err := url.QueryUnescape(f.Name())
			if err != nil {
				continue
			}
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close releases any resources held by the store.
func (s *Store) Close() error {
	return nil
}

// path returns the filesystem path for a key.
func (s *Store) path(key string) string {
	id := s.strategy.ShardID(key, s.shards)
	return filepath.Join(s.root, fmt.Sprintf("%03x", id), url.QueryEscape(key))
}
