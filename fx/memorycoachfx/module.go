// Package memorycoachfx provides an fx module for an in-memory coach.
// Useful for testing.
package memorycoachfx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/coach"
	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/stats"
	"github.com/discochess/coach/internal/stats/logger"
	"github.com/discochess/coach/internal/store/memstore"
)

// Module provides an in-memory coach for testing.
// Requires a *zap.Logger to be provided. An engine.Factory, a coach.Fetcher
// and a username (named "username") may be supplied.
var Module = fx.Module("memorycoach",
	fx.Provide(
		newStatsCollector,
		newMemStore,
		newCoach,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("coach"))
}

func newMemStore() *memstore.Store {
	return memstore.New()
}

// Params holds dependencies for creating the coach.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	Store     *memstore.Store
	Factory   engine.Factory `optional:"true"`
	Fetcher   coach.Fetcher  `optional:"true"`
	Username  string         `name:"username" optional:"true"`
	Lifecycle fx.Lifecycle
}

// Result holds the provided coach and store.
type Result struct {
	fx.Out

	Coach *coach.Coach
	Store *memstore.Store // Exposed for test setup
}

func newCoach(p Params) (Result, error) {
	opts := []coach.Option{
		coach.WithUsername(p.Username),
		coach.WithStore(p.Store),
		coach.WithStats(p.Collector),
		coach.WithLogger(p.Logger.Named("coach")),
	}
	if p.Factory != nil {
		opts = append(opts, coach.WithEngine(p.Factory, 1))
	}
	if p.Fetcher != nil {
		opts = append(opts, coach.WithFetcher(p.Fetcher))
	}
	c, err := coach.New(opts...)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return c.Close()
		},
	})

	return Result{
		Coach: c,
		Store: p.Store,
	}, nil
}
