// Package coach builds a chess player's coaching profile from their recent
// games: games are fetched from chess.com, evaluated with a local UCI
// engine, classified by opening and folded into a profile of style tags,
// opening tallies and representative games. Every per-game analysis is
// cached, so later updates only evaluate new games.
//
// Example usage:
//
//	c, err := coach.New(
//	    coach.WithUsername("magnus"),
//	    coach.WithStore(st),
//	    coach.WithEngine(uciengine.Factory(uciengine.Config{Path: "stockfish"}, logger), 2),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	snap, err := c.Update(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(snap.Profile.Summary())
package coach

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/discochess/coach/internal/analysis"
	"github.com/discochess/coach/internal/cache"
	"github.com/discochess/coach/internal/chesscom"
	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/game"
	"github.com/discochess/coach/internal/openings"
	"github.com/discochess/coach/internal/pipeline"
	"github.com/discochess/coach/internal/profile"
	"github.com/discochess/coach/internal/stats"
	"github.com/discochess/coach/internal/store"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrClosed indicates the coach has been closed.
	ErrClosed = errors.New("coach: closed")

	// ErrNoStore indicates no store was provided.
	ErrNoStore = errors.New("coach: no store provided")

	// ErrNoEngine indicates an evaluation was requested without an engine.
	ErrNoEngine = errors.New("coach: no engine configured")

	// ErrNoUsername indicates games were requested without a username.
	ErrNoUsername = errors.New("coach: no username configured")
)

// Coach maintains the analysis cache and the current profile snapshot.
// A Coach is safe for concurrent use by multiple goroutines. Updates are
// serialized; readers always see a complete snapshot.
type Coach struct {
	username   string
	cache      *cache.Cache
	pool       *engine.Pool
	memo       *engine.Memo
	pipeline   *pipeline.Pipeline
	classifier *openings.Classifier
	fetcher    Fetcher
	hasEngine  bool
	opts       options
	stats      stats.Collector
	logger     *zap.Logger

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	version atomic.Int64
	closed  atomic.Bool
}

// New creates a Coach with the given options. A store is required; the
// engine is only needed by Update and Rebuild.
func New(opts ...Option) (*Coach, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	if cfg.store == nil {
		return nil, ErrNoStore
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.stats == nil {
		cfg.stats = stats.NewNoop()
	}

	classifier := cfg.classifier
	if classifier == nil {
		var err error
		classifier, err = openings.Default()
		if err != nil {
			return nil, fmt.Errorf("loading openings: %w", err)
		}
	}

	cacheOpts := []cache.Option{
		cache.WithWorkers(cfg.workers),
		cache.WithStats(cfg.stats),
		cache.WithLogger(cfg.logger),
	}
	if cfg.codec != nil {
		cacheOpts = append(cacheOpts, cache.WithCodec(cfg.codec))
	}
	ac, err := cache.New(cfg.store, cacheOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	var memo *engine.Memo
	if cfg.memoSize > 0 {
		if memo, err = engine.NewMemo(cfg.memoSize); err != nil {
			return nil, fmt.Errorf("creating memo: %w", err)
		}
	}

	factory := cfg.factory
	hasEngine := factory != nil
	if !hasEngine {
		factory = func(context.Context) (engine.Engine, error) { return nil, ErrNoEngine }
	}
	pool := engine.NewPool(factory, cfg.sessions, cfg.logger.Named("engine"))

	p, err := pipeline.New(pipeline.Config{
		Username:   cfg.username,
		Cache:      ac,
		Pool:       pool,
		Memo:       memo,
		Classifier: classifier,
		Detector:   analysis.NewDetector(cfg.thresholds),
		Budget:     cfg.budget,
		Workers:    cfg.workers,
		Stats:      cfg.stats,
		Logger:     cfg.logger,
		Progress:   cfg.progress,
	})
	if err != nil {
		return nil, err
	}

	fetcher := cfg.fetcher
	if fetcher == nil {
		fetcher = chesscom.New(chesscom.WithLogger(cfg.logger))
	}

	c := &Coach{
		username:   cfg.username,
		cache:      ac,
		pool:       pool,
		memo:       memo,
		pipeline:   p,
		classifier: classifier,
		fetcher:    fetcher,
		hasEngine:  hasEngine,
		opts:       cfg,
		stats:      cfg.stats,
		logger:     cfg.logger.Named("coach"),
	}

	c.logger.Debug("coach initialized",
		zap.String("user", c.username),
		zap.String("codec", ac.Codec().Name()),
		zap.Int("openings", classifier.Len()),
		zap.Int("sessions", pool.Size()),
	)
	return c, nil
}

// Username returns the configured player.
func (c *Coach) Username() string {
	return c.username
}

// Cache returns the analysis cache.
func (c *Coach) Cache() *cache.Cache {
	return c.cache
}

// Pipeline returns the evaluation pipeline.
func (c *Coach) Pipeline() *pipeline.Pipeline {
	return c.pipeline
}

// Update fetches recent games, evaluates the ones not analysed yet and
// publishes a new snapshot. Games that fail evaluation are reported in the
// snapshot and retried on the next update.
func (c *Coach) Update(ctx context.Context) (*Snapshot, error) {
	return c.refresh(ctx, false)
}

// Rebuild fetches recent games and recomputes every cache entry from
// scratch, pruning entries for games no longer fetched.
func (c *Coach) Rebuild(ctx context.Context) (*Snapshot, error) {
	return c.refresh(ctx, true)
}

func (c *Coach) refresh(ctx context.Context, rebuild bool) (*Snapshot, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if c.username == "" {
		return nil, ErrNoUsername
	}
	if !c.hasEngine {
		return nil, ErrNoEngine
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records, err := c.fetcher.RecentGames(ctx, c.username, c.opts.monthsBack, c.opts.now())
	if err != nil {
		return nil, fmt.Errorf("fetching games: %w", err)
	}
	records = newest(records, c.opts.maxGames)

	var report *pipeline.Report
	if rebuild {
		report, err = c.pipeline.Rebuild(ctx, records)
	} else {
		report, err = c.pipeline.Run(ctx, records, pipeline.Options{})
	}
	if err != nil {
		return nil, err
	}

	ratings, err := c.fetcher.Stats(ctx, c.username)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("fetching ratings", zap.Error(err))
		ratings = nil
	}

	snap, err := c.publish(ctx, records, report, ratings)
	if err != nil {
		return nil, err
	}
	report.MarkAggregated()

	c.logger.Info("profile updated",
		zap.String("run", report.RunID),
		zap.Int64("version", snap.Version),
		zap.Int("games", snap.Profile.TotalGames),
		zap.Int("fetched", snap.Profile.FetchedGames),
		zap.Int("evaluated", len(report.Evaluated)),
		zap.Int("failed", len(report.Failed)),
	)
	return snap, nil
}

// publish aggregates records over a point-in-time view of the cache and
// installs the result as the current snapshot.
func (c *Coach) publish(ctx context.Context, records []*game.Record, report *pipeline.Report, ratings *chesscom.PlayerStats) (*Snapshot, error) {
	p, err := c.aggregate(ctx, records)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Version:     c.version.Add(1),
		Profile:     p,
		GeneratedAt: c.opts.now().UTC(),
		Ratings:     ratings,
	}
	if report != nil {
		snap.RunID = report.RunID
		snap.Failed = failures(report.Failed)
	}
	c.current.Store(snap)
	c.stats.SetGauge(stats.MetricProfileGames, int64(p.TotalGames))
	return snap, nil
}

func (c *Coach) aggregate(ctx context.Context, records []*game.Record) (*profile.Profile, error) {
	entries, err := c.cache.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	byID := make(map[string]*cache.Entry, len(entries))
	for _, e := range entries {
		byID[e.GameID] = e
	}

	items := make([]profile.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, profile.Item{Record: rec, Entry: byID[rec.ID]})
	}
	return profile.Aggregate(items, profile.Options{
		Username: c.username,
		Fetched:  len(records),
		Style:    c.opts.style,
		Losing:   c.opts.thresholds.Losing,
	}), nil
}

// Profile returns the current snapshot. Before the first update it is
// aggregated from the games already in the cache.
func (c *Coach) Profile(ctx context.Context) (*Snapshot, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}
	return c.reload(ctx, nil)
}

// reload aggregates the cached games. Callers hold c.mu.
func (c *Coach) reload(ctx context.Context, ratings *chesscom.PlayerStats) (*Snapshot, error) {
	records, err := c.cache.Games(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading games: %w", err)
	}
	return c.publish(ctx, newest(records, c.opts.maxGames), nil, ratings)
}

// StyleSummary returns a plain-text description of the player's style.
func (c *Coach) StyleSummary(ctx context.Context) (string, error) {
	snap, err := c.Profile(ctx)
	if err != nil {
		return "", err
	}
	return snap.Profile.Summary(), nil
}

// OpeningsByWinRate returns the openings played at least minGames times,
// best win rate first.
func (c *Coach) OpeningsByWinRate(ctx context.Context, minGames int) ([]profile.OpeningStats, error) {
	snap, err := c.Profile(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Profile.OpeningsByWinRate(minGames), nil
}

// Representative holds the games chosen to illustrate the profile.
type Representative struct {
	profile.Samples
	ByResult profile.ResultSamples `json:"by_result"`
}

// RepresentativeGames returns the best win, the best recovery, a typical
// loss and up to five games per result.
func (c *Coach) RepresentativeGames(ctx context.Context) (*Representative, error) {
	snap, err := c.Profile(ctx)
	if err != nil {
		return nil, err
	}
	return &Representative{Samples: snap.Profile.Samples, ByResult: snap.Profile.ByResult}, nil
}

// Invalidate drops the cached analysis of a game and publishes a snapshot
// without it. The game is evaluated again on the next update.
func (c *Coach) Invalidate(ctx context.Context, id string) (*Snapshot, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.cache.Invalidate(ctx, id); err != nil {
		return nil, fmt.Errorf("invalidating %s: %w", id, err)
	}
	var ratings *chesscom.PlayerStats
	if prev := c.current.Load(); prev != nil {
		ratings = prev.Ratings
	}
	return c.reload(ctx, ratings)
}

// Rederive recomputes cached entries whose detection thresholds or opening
// dataset changed, without engine work, and publishes a new snapshot.
func (c *Coach) Rederive(ctx context.Context) (*Snapshot, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	report, err := c.pipeline.Rederive(ctx)
	if err != nil {
		return nil, err
	}
	var ratings *chesscom.PlayerStats
	if prev := c.current.Load(); prev != nil {
		ratings = prev.Ratings
	}
	records, err := c.cache.Games(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading games: %w", err)
	}
	return c.publish(ctx, newest(records, c.opts.maxGames), report, ratings)
}

// Close releases the engine sessions and the store.
// After Close, the coach should not be used.
func (c *Coach) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}

	var errs []error
	if err := c.pool.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing engines: %w", err))
	}
	if err := c.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	return errors.Join(errs...)
}

// Store returns the storage backend used by this coach.
func (c *Coach) Store() store.Store {
	return c.cache.Store()
}

// newest returns the n most recent records, oldest first. n <= 0 keeps all.
func newest(records []*game.Record, n int) []*game.Record {
	sorted := append([]*game.Record(nil), records...)
	sortRecords(sorted)
	if n > 0 && len(sorted) > n {
		sorted = sorted[len(sorted)-n:]
	}
	return sorted
}
