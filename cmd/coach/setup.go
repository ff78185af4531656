package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/discochess/coach"
	"github.com/discochess/coach/internal/codec"
	"github.com/discochess/coach/internal/codec/gzipcodec"
	"github.com/discochess/coach/internal/codec/noopcodec"
	"github.com/discochess/coach/internal/codec/zstdcodec"
	"github.com/discochess/coach/internal/config"
	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/engine/uciengine"
	"github.com/discochess/coach/internal/openings"
	"github.com/discochess/coach/internal/pipeline"
	"github.com/discochess/coach/internal/store"
	"github.com/discochess/coach/internal/store/boltstore"
	"github.com/discochess/coach/internal/store/cachedstore"
	"github.com/discochess/coach/internal/store/cachedstore/cachestrategy/lru"
	"github.com/discochess/coach/internal/store/cachedstore/memory"
	"github.com/discochess/coach/internal/store/diskstore"
	"github.com/discochess/coach/internal/store/gcsstore"
	"github.com/discochess/coach/internal/store/memstore"
	"github.com/discochess/coach/internal/store/s3store"
)

// signalContext returns a context canceled on interrupt.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nInterrupted, finishing in-flight writes...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// openStore opens the configured cache backend. Remote backends get an
// in-memory LRU in front of them.
func openStore(ctx context.Context) (store.Store, error) {
	var (
		st     store.Store
		remote bool
		err    error
	)
	switch cfg.Store.Backend {
	case config.BackendDisk:
		var dir string
		if dir, err = dataPath("cache"); err == nil {
			if err = os.MkdirAll(dir, 0o755); err == nil {
				st, err = diskstore.New(dir)
			}
		}
	case config.BackendBolt:
		var path string
		if path, err = dataPath("coach.db"); err == nil {
			st, err = boltstore.Open(path)
		}
	case config.BackendMemory:
		st = memstore.New()
	case config.BackendS3:
		opts := []s3store.Option{s3store.WithPrefix(cfg.Store.Prefix)}
		if cfg.Store.Region != "" {
			opts = append(opts, s3store.WithRegion(cfg.Store.Region))
		}
		if cfg.Store.Endpoint != "" {
			opts = append(opts, s3store.WithEndpoint(cfg.Store.Endpoint))
		}
		st, err = s3store.New(ctx, cfg.Store.Bucket, opts...)
		remote = true
	case config.BackendGCS:
		st, err = gcsstore.New(ctx, cfg.Store.Bucket, gcsstore.WithPrefix(cfg.Store.Prefix))
		remote = true
	default:
		err = fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Backend, err)
	}

	if remote && cfg.Store.CacheSize > 0 {
		strategy, err := lru.New(cfg.Store.CacheSize)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("creating LRU strategy: %w", err)
		}
		st = cachedstore.New(st, memory.New(strategy, collector))
	}
	return st, nil
}

func openCodec() (codec.Codec, error) {
	switch cfg.Codec {
	case "gzip":
		return gzipcodec.New(), nil
	case "none":
		return noopcodec.New(), nil
	default:
		return zstdcodec.New()
	}
}

func openClassifier() (*openings.Classifier, error) {
	if cfg.OpeningsDir != "" {
		return openings.LoadDir(cfg.OpeningsDir, openings.WithPlies(cfg.OpeningPlies))
	}
	return openings.Default(openings.WithPlies(cfg.OpeningPlies))
}

func engineFactory() engine.Factory {
	return uciengine.Factory(uciengine.Config{
		Path:    cfg.Engine.Path,
		Threads: cfg.Engine.Threads,
		HashMB:  cfg.Engine.HashMB,
	}, logger.Named("uci"))
}

func budget() engine.Budget {
	return engine.Budget{
		MoveTime: cfg.Engine.MoveTime,
		Depth:    cfg.Engine.Depth,
		Timeout:  cfg.Engine.PositionTimeout,
	}
}

// openCoach wires a Coach from the loaded configuration.
func openCoach(ctx context.Context, st store.Store, progress bool) (*coach.Coach, error) {
	if st == nil {
		var err error
		if st, err = openStore(ctx); err != nil {
			return nil, err
		}
	}
	cd, err := openCodec()
	if err != nil {
		st.Close()
		return nil, err
	}
	classifier, err := openClassifier()
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("loading openings: %w", err)
	}

	opts := []coach.Option{
		coach.WithUsername(cfg.Username),
		coach.WithStore(st),
		coach.WithCodec(cd),
		coach.WithEngine(engineFactory(), cfg.Engine.Sessions),
		coach.WithBudget(budget()),
		coach.WithMemoSize(cfg.Engine.MemoSize),
		coach.WithClassifier(classifier),
		coach.WithFetcher(newFetcher()),
		coach.WithThresholds(cfg.Thresholds),
		coach.WithStyle(cfg.Style),
		coach.WithWorkers(cfg.Workers),
		coach.WithMonthsBack(cfg.MonthsBack),
		coach.WithMaxGames(cfg.MaxGames),
		coach.WithStats(collector),
		coach.WithLogger(logger),
	}
	if progress && !verbose {
		opts = append(opts, coach.WithProgress(pipeline.DefaultProgressFunc))
	}
	c, err := coach.New(opts...)
	if err != nil {
		st.Close()
		return nil, err
	}
	logger.Debug("coach ready",
		zap.String("user", cfg.Username),
		zap.String("backend", cfg.Store.Backend),
		zap.String("openings", classifier.Version()),
	)
	return c, nil
}
