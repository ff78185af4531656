// Package diskcoachfx provides an fx module for a disk-backed coach.
package diskcoachfx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/coach"
	"github.com/discochess/coach/internal/chesscom"
	"github.com/discochess/coach/internal/codec/zstdcodec"
	"github.com/discochess/coach/internal/config"
	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/engine/uciengine"
	"github.com/discochess/coach/internal/openings"
	"github.com/discochess/coach/internal/stats"
	"github.com/discochess/coach/internal/stats/logger"
	"github.com/discochess/coach/internal/store/cachedstore"
	"github.com/discochess/coach/internal/store/cachedstore/cachestrategy/lru"
	"github.com/discochess/coach/internal/store/cachedstore/memory"
	"github.com/discochess/coach/internal/store/diskstore"
)

// Module provides a coach caching analyses under Config.DataDir and
// evaluating with the configured UCI engine.
// Requires a *config.Config and a *zap.Logger to be provided.
var Module = fx.Module("diskcoach",
	fx.Provide(
		newStatsCollector,
		newCoach,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("coach"))
}

// Params holds dependencies for creating the coach.
type Params struct {
	fx.In

	Config    *config.Config
	Logger    *zap.Logger
	Collector stats.Collector
	Lifecycle fx.Lifecycle
}

// Result holds the provided coach.
type Result struct {
	fx.Out

	Coach *coach.Coach
}

func newCoach(p Params) (Result, error) {
	cfg := p.Config
	dir := filepath.Join(cfg.DataDir, "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating cache directory: %w", err)
	}
	baseStore, err := diskstore.New(dir)
	if err != nil {
		return Result{}, err
	}

	cacheSize := cfg.Store.CacheSize
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	lruStrategy, err := lru.New(cacheSize)
	if err != nil {
		baseStore.Close()
		return Result{}, err
	}
	st := cachedstore.New(baseStore, memory.New(lruStrategy, p.Collector))

	cd, err := zstdcodec.New()
	if err != nil {
		st.Close()
		return Result{}, err
	}
	var classifier *openings.Classifier
	if cfg.OpeningsDir != "" {
		classifier, err = openings.LoadDir(cfg.OpeningsDir, openings.WithPlies(cfg.OpeningPlies))
	} else {
		classifier, err = openings.Default(openings.WithPlies(cfg.OpeningPlies))
	}
	if err != nil {
		st.Close()
		return Result{}, err
	}

	factory := uciengine.Factory(uciengine.Config{
		Path:    cfg.Engine.Path,
		Threads: cfg.Engine.Threads,
		HashMB:  cfg.Engine.HashMB,
	}, p.Logger.Named("uci"))

	c, err := coach.New(
		coach.WithUsername(cfg.Username),
		coach.WithStore(st),
		coach.WithCodec(cd),
		coach.WithEngine(factory, cfg.Engine.Sessions),
		coach.WithBudget(engine.Budget{
			MoveTime: cfg.Engine.MoveTime,
			Depth:    cfg.Engine.Depth,
			Timeout:  cfg.Engine.PositionTimeout,
		}),
		coach.WithMemoSize(cfg.Engine.MemoSize),
		coach.WithClassifier(classifier),
		coach.WithFetcher(chesscom.New(
			chesscom.WithRequestsPerMinute(cfg.RequestsPerMinute),
			chesscom.WithLogger(p.Logger.Named("chesscom")),
		)),
		coach.WithThresholds(cfg.Thresholds),
		coach.WithStyle(cfg.Style),
		coach.WithWorkers(cfg.Workers),
		coach.WithMonthsBack(cfg.MonthsBack),
		coach.WithMaxGames(cfg.MaxGames),
		coach.WithStats(p.Collector),
		coach.WithLogger(p.Logger.Named("coach")),
	)
	if err != nil {
		st.Close()
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})

	return Result{Coach: c}, nil
}
