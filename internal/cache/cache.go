// Package cache implements the analysis cache: one fully populated entry per
// game, persisted in a store.Store.
//
// Entries are written whole or not at all. Every stored value carries a
// checksum; a value that fails its integrity check is treated as absent and
// removed, so the game is simply recomputed. Access is serialized per game
// ID: writers to distinct games never contend, and a reader never observes
// an entry while it is being replaced.
//
// Store layout:
//
//	entry/<game id>   analysis entry
//	game/<game id>    game record
//	meta/manifest     fingerprints of the last update
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/discochess/coach/internal/codec"
	"github.com/discochess/coach/internal/codec/gzipcodec"
	"github.com/discochess/coach/internal/codec/noopcodec"
	"github.com/discochess/coach/internal/codec/zstdcodec"
	"github.com/discochess/coach/internal/game"
	"github.com/discochess/coach/internal/stats"
	"github.com/discochess/coach/internal/store"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNotFound indicates no valid entry exists for the game.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrCorrupt indicates a stored value failed its integrity check.
	// Callers of Get never see it: corrupt entries read as ErrNotFound.
	ErrCorrupt = errors.New("cache: corrupt entry")

	// ErrIncomplete indicates an entry is missing required parts and was
	// not written.
	ErrIncomplete = errors.New("cache: incomplete entry")

	// ErrInvalidID indicates a game ID that cannot be used as a key.
	ErrInvalidID = errors.New("cache: invalid game id")
)

const (
	entryPrefix = "entry/"
	gamePrefix  = "game/"
	manifestKey = "meta/manifest"
)

// DefaultWorkers is the default parallelism of RebuildAll.
const DefaultWorkers = 4

// Cache is the analysis cache. A Cache is safe for concurrent use.
type Cache struct {
	store   store.Store
	codec   codec.Codec
	codecs  *codec.Registry
	locks   *keyLocks
	workers int
	stats   stats.Collector
	logger  *zap.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithCodec sets the codec new values are written with. Values written
// with any built-in codec remain readable.
func WithCodec(c codec.Codec) Option {
	return func(cc *Cache) { cc.codec = c }
}

// WithWorkers sets how many entries RebuildAll computes in parallel.
func WithWorkers(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithStats sets the stats collector.
func WithStats(s stats.Collector) Option {
	return func(c *Cache) { c.stats = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// New creates a cache over st. Values are compressed with zstd unless
// another codec is configured.
func New(st store.Store, opts ...Option) (*Cache, error) {
	if st == nil {
		return nil, errors.New("cache: nil store")
	}
	zc, err := zstdcodec.New()
	if err != nil {
		return nil, fmt.Errorf("creating zstd codec: %w", err)
	}

	c := &Cache{
		store:   st,
		codec:   zc,
		locks:   newKeyLocks(),
		workers: DefaultWorkers,
		stats:   stats.NewNoop(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.codecs = codec.NewRegistry(noopcodec.New(), gzipcodec.New(), zc, c.codec)
	c.logger = c.logger.Named("cache")
	return c, nil
}

// Store returns the underlying store.
func (c *Cache) Store() store.Store {
	return c.store
}

// Codec returns the codec new values are written with.
func (c *Cache) Codec() codec.Codec {
	return c.codec
}

func entryKey(id string) string { return entryPrefix + id }
func gameKey(id string) string  { return gamePrefix + id }

// Get returns the entry for a game, or ErrNotFound. A corrupt entry is
// logged, removed and reported as ErrNotFound.
func (c *Cache) Get(ctx context.Context, id string) (*Entry, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	c.stats.IncCounter(stats.MetricCacheGets, 1)

	key := entryKey(id)
	unlock := c.locks.RLock(key)
	raw, err := c.store.Get(ctx, key)
	unlock()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.stats.IncCounter(stats.MetricCacheMisses, 1)
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading entry %s: %w", id, err)
	}

	e, err := c.decodeEntry(id, raw)
	if err != nil {
		c.stats.IncCounter(stats.MetricCacheMisses, 1)
		c.discard(ctx, key, raw, err)
		return nil, ErrNotFound
	}

	c.stats.IncCounter(stats.MetricCacheHits, 1)
	return e, nil
}

func (c *Cache) decodeEntry(id string, raw []byte) (*Entry, error) {
	var e Entry
	if err := c.decode(raw, &e); err != nil {
		return nil, err
	}
	if e.GameID != id {
		return nil, fmt.Errorf("%w: entry for %q stored under %q", ErrCorrupt, e.GameID, id)
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &e, nil
}

// discard removes a corrupt value, unless a writer replaced it since it
// was read.
func (c *Cache) discard(ctx context.Context, key string, raw []byte, cause error) {
	c.stats.IncCounter(stats.MetricCacheCorrupt, 1)
	c.logger.Warn("discarding corrupt value", zap.String("key", key), zap.Error(cause))

	unlock := c.locks.Lock(key)
	defer unlock()

	cur, err := c.store.Get(ctx, key)
	if err != nil || !bytes.Equal(cur, raw) {
		return
	}
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("deleting corrupt value", zap.String("key", key), zap.Error(err))
	}
}

// Has reports whether a valid entry exists for the game.
func (c *Cache) Has(ctx context.Context, id string) (bool, error) {
	_, err := c.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Put validates e and atomically replaces the game's entry with it. An
// invalid entry is rejected with ErrIncomplete and the existing entry is
// left untouched.
func (c *Cache) Put(ctx context.Context, e *Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	data, err := c.encode(e.normalized())
	if err != nil {
		return fmt.Errorf("encoding entry %s: %w", e.GameID, err)
	}

	key := entryKey(e.GameID)
	unlock := c.locks.Lock(key)
	defer unlock()

	if err := c.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("writing entry %s: %w", e.GameID, err)
	}
	c.stats.IncCounter(stats.MetricCachePuts, 1)
	c.stats.ObserveHistogram(stats.MetricCacheEntrySize, float64(len(data)))
	return nil
}

// Invalidate removes the game's entry, forcing recomputation. Invalidating
// a missing entry is not an error.
func (c *Cache) Invalidate(ctx context.Context, id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	key := entryKey(id)
	unlock := c.locks.Lock(key)
	defer unlock()

	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}
	return nil
}

// IDs returns the sorted IDs of games with a stored entry. Entries are not
// validated.
func (c *Cache) IDs(ctx context.Context) ([]string, error) {
	return c.ids(ctx, entryPrefix)
}

func (c *Cache) ids(ctx context.Context, prefix string) ([]string, error) {
	keys, err := c.store.Keys(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", strings.TrimSuffix(prefix, "/"), err)
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, strings.TrimPrefix(k, prefix))
	}
	return ids, nil
}

// Snapshot reads every valid entry, ordered by game ID. Each entry is read
// under its lock, so no entry is observed mid-write; entries written while
// the snapshot runs may or may not be included.
func (c *Cache) Snapshot(ctx context.Context) ([]*Entry, error) {
	ids, err := c.IDs(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]*Entry, 0, len(ids))
	for _, id := range ids {
		e, err := c.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	c.stats.SetGauge(stats.MetricCacheEntries, int64(len(entries)))
	return entries, nil
}

// ComputeFunc computes the entry for a game.
type ComputeFunc func(ctx context.Context, id string) (*Entry, error)

// RebuildReport summarizes a RebuildAll run.
type RebuildReport struct {
	Rebuilt []string
	Failed  map[string]error
	Pruned  []string
}

// RebuildAll recomputes the entry of every listed game and then removes
// entries and records of games not in ids. A game whose computation fails
// loses its old entry and is reported in Failed; other games are
// unaffected. If ctx is canceled, RebuildAll stops, prunes nothing and
// returns the context error; every visible entry is still complete.
func (c *Cache) RebuildAll(ctx context.Context, ids []string, compute ComputeFunc) (*RebuildReport, error) {
	report := &RebuildReport{Failed: make(map[string]error)}
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(c.workers)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := c.rebuildOne(ctx, id, compute)
			if ctx.Err() != nil {
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[id] = err
			} else {
				report.Rebuilt = append(report.Rebuilt, id)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	sort.Strings(report.Rebuilt)

	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	pruned, err := c.prune(ctx, keep)
	report.Pruned = pruned
	if err != nil {
		return report, err
	}

	c.logger.Info("rebuild complete",
		zap.Int("rebuilt", len(report.Rebuilt)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("pruned", len(report.Pruned)),
	)
	return report, nil
}

func (c *Cache) rebuildOne(ctx context.Context, id string, compute ComputeFunc) error {
	e, err := compute(ctx, id)
	if err == nil && e != nil && e.GameID != id {
		err = fmt.Errorf("%w: computed entry for %q", ErrIncomplete, e.GameID)
	}
	if err == nil {
		err = c.Put(ctx, e)
	}
	if err == nil || ctx.Err() != nil {
		return err
	}

	// The old entry no longer matches the upstream game.
	if derr := c.Invalidate(ctx, id); derr != nil {
		c.logger.Warn("invalidating failed entry", zap.String("game", id), zap.Error(derr))
	}
	return err
}

// prune removes entries and game records whose ID is not kept.
func (c *Cache) prune(ctx context.Context, keep map[string]bool) ([]string, error) {
	var pruned []string

	entryIDs, err := c.IDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range entryIDs {
		if keep[id] {
			continue
		}
		if err := c.Invalidate(ctx, id); err != nil {
			return pruned, err
		}
		pruned = append(pruned, id)
	}

	gameIDs, err := c.ids(ctx, gamePrefix)
	if err != nil {
		return pruned, err
	}
	for _, id := range gameIDs {
		if keep[id] {
			continue
		}
		if err := c.DeleteGame(ctx, id); err != nil {
			return pruned, err
		}
	}
	return pruned, nil
}

// PutGame stores a game record.
func (c *Cache) PutGame(ctx context.Context, rec *game.Record) error {
	if rec == nil || !validID(rec.ID) {
		return ErrInvalidID
	}
	data, err := c.encode(rec)
	if err != nil {
		return fmt.Errorf("encoding game %s: %w", rec.ID, err)
	}

	key := gameKey(rec.ID)
	unlock := c.locks.Lock(key)
	defer unlock()
	if err := c.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("writing game %s: %w", rec.ID, err)
	}
	return nil
}

// GetGame returns a stored game record, or ErrNotFound. Corrupt records are
// removed like corrupt entries.
func (c *Cache) GetGame(ctx context.Context, id string) (*game.Record, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	key := gameKey(id)
	unlock := c.locks.RLock(key)
	raw, err := c.store.Get(ctx, key)
	unlock()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading game %s: %w", id, err)
	}

	var rec game.Record
	if err := c.decode(raw, &rec); err != nil {
		c.discard(ctx, key, raw, err)
		return nil, ErrNotFound
	}
	return &rec, nil
}

// DeleteGame removes a stored game record.
func (c *Cache) DeleteGame(ctx context.Context, id string) error {
	key := gameKey(id)
	unlock := c.locks.Lock(key)
	defer unlock()
	if err := c.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("deleting game %s: %w", id, err)
	}
	return nil
}

// GameIDs returns the sorted IDs of stored game records.
func (c *Cache) GameIDs(ctx context.Context) ([]string, error) {
	return c.ids(ctx, gamePrefix)
}

// Games returns every readable game record, ordered by ID.
func (c *Cache) Games(ctx context.Context) ([]*game.Record, error) {
	ids, err := c.GameIDs(ctx)
	if err != nil {
		return nil, err
	}
	recs := make([]*game.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := c.GetGame(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}
