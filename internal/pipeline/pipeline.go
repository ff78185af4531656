// Package pipeline moves games through evaluation, classification and
// caching: Fetched -> Evaluated -> Classified. Aggregation over the cache is
// left to the caller.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/discochess/coach/internal/analysis"
	"github.com/discochess/coach/internal/cache"
	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/game"
	"github.com/discochess/coach/internal/openings"
	"github.com/discochess/coach/internal/stats"
)

// Config holds the pipeline's collaborators.
type Config struct {
	Username   string
	Cache      *cache.Cache
	Pool       *engine.Pool
	Memo       *engine.Memo
	Classifier *openings.Classifier
	Detector   *analysis.Detector
	Budget     engine.Budget

	// Workers bounds how many games are evaluated at once. Zero means the
	// pool size.
	Workers int

	Stats    stats.Collector
	Logger   *zap.Logger
	Progress ProgressFunc
}

// Pipeline evaluates games and caches their analysis.
type Pipeline struct {
	cfg    Config
	stats  stats.Collector
	logger *zap.Logger
}

// New validates cfg and creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Cache == nil:
		return nil, errors.New("pipeline: no cache")
	case cfg.Pool == nil:
		return nil, errors.New("pipeline: no engine pool")
	case cfg.Classifier == nil:
		return nil, errors.New("pipeline: no opening classifier")
	}
	if cfg.Detector == nil {
		cfg.Detector = analysis.NewDetector(analysis.DefaultThresholds())
	}
	if cfg.Workers <= 0 {
		cfg.Workers = cfg.Pool.Size()
	}
	p := &Pipeline{cfg: cfg, stats: cfg.Stats, logger: cfg.Logger}
	if p.stats == nil {
		p.stats = stats.NewNoop()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	p.logger = p.logger.Named("pipeline")
	return p, nil
}

// Options control a run.
type Options struct {
	// Force re-evaluates games that already have a cache entry.
	Force bool
}

// Report summarizes a run. Failed games stay at the Fetched stage and are
// retried on the next run.
type Report struct {
	RunID     string
	StartTime time.Time
	Duration  time.Duration
	Fetched   int
	Cached    []string
	Evaluated []string
	Failed    map[string]error
	Pruned    []string
	Tracker   *game.Tracker
}

// Analysed returns the IDs of games that reached the Classified stage.
func (r *Report) Analysed() []string {
	return r.Tracker.In(game.Classified)
}

// MarkAggregated advances every classified game to Aggregated.
func (r *Report) MarkAggregated() {
	for _, id := range r.Tracker.In(game.Classified) {
		_ = r.Tracker.Advance(id, game.Aggregated)
	}
}

func newReport(records []*game.Record) *Report {
	r := &Report{
		RunID:     uuid.NewString(),
		StartTime: time.Now(),
		Fetched:   len(records),
		Failed:    make(map[string]error),
		Tracker:   game.NewTracker(),
	}
	for _, rec := range records {
		r.Tracker.Add(rec.ID)
	}
	return r
}

// EngineFingerprint identifies the evaluation settings.
func (p *Pipeline) EngineFingerprint() string {
	return p.cfg.Budget.Key()
}

// AnalysisFingerprint identifies the settings entries are derived with
// from a trace: detection thresholds and the opening dataset.
func (p *Pipeline) AnalysisFingerprint() string {
	th, _ := json.Marshal(p.cfg.Detector.Thresholds())
	h := xxhash.New()
	h.Write(th)
	h.WriteString(p.cfg.Classifier.Version())
	h.WriteString(strconv.Itoa(p.cfg.Classifier.Plies()))
	return strconv.FormatUint(h.Sum64(), 16)
}

func (p *Pipeline) fingerprint() string {
	return p.EngineFingerprint() + "/" + p.AnalysisFingerprint()
}

// Run stores the records and evaluates every game without a cache entry
// (every game with opts.Force). Per-game failures are recorded in the
// report and never stop the batch. If ctx is canceled, Run returns the
// context error; entries already written stay valid.
func (p *Pipeline) Run(ctx context.Context, records []*game.Record, opts Options) (*Report, error) {
	report := newReport(records)
	logger := p.logger.With(zap.String("run", report.RunID))
	logger.Info("run started", zap.Int("games", len(records)), zap.Bool("force", opts.Force))
	p.stats.IncCounter(stats.MetricGamesFetched, int64(len(records)))

	var todo []*game.Record
	for _, rec := range records {
		if err := p.cfg.Cache.PutGame(ctx, rec); err != nil {
			return report, fmt.Errorf("storing game %s: %w", rec.ID, err)
		}
		if !opts.Force {
			ok, err := p.cfg.Cache.Has(ctx, rec.ID)
			if err != nil {
				return report, err
			}
			if ok {
				report.Tracker.Set(rec.ID, game.Classified)
				report.Cached = append(report.Cached, rec.ID)
				continue
			}
		}
		todo = append(todo, rec)
	}

	prog := p.progress(report, PhaseEvaluate, len(records))
	prog.cached(len(report.Cached))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Workers)
	for _, rec := range todo {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := p.process(ctx, rec, report.Tracker)
			if ctx.Err() != nil {
				return nil
			}

			mu.Lock()
			if err != nil {
				report.Failed[rec.ID] = err
				logger.Warn("game failed", zap.String("game", rec.ID), zap.Error(err))
			} else {
				report.Evaluated = append(report.Evaluated, rec.ID)
			}
			mu.Unlock()
			prog.step(err)
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(report.StartTime)
	sort.Strings(report.Evaluated)
	if err := ctx.Err(); err != nil {
		prog.fail(err)
		return report, err
	}

	if err := p.writeManifest(ctx); err != nil {
		return report, err
	}
	prog.done()
	logger.Info("run finished",
		zap.Int("evaluated", len(report.Evaluated)),
		zap.Int("cached", len(report.Cached)),
		zap.Int("failed", len(report.Failed)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// Rebuild stores the records and recomputes the whole cache from them,
// removing entries of games not among records.
func (p *Pipeline) Rebuild(ctx context.Context, records []*game.Record) (*Report, error) {
	report := newReport(records)
	logger := p.logger.With(zap.String("run", report.RunID))
	logger.Info("rebuild started", zap.Int("games", len(records)))
	p.stats.IncCounter(stats.MetricGamesFetched, int64(len(records)))

	byID := make(map[string]*game.Record, len(records))
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if err := p.cfg.Cache.PutGame(ctx, rec); err != nil {
			return report, fmt.Errorf("storing game %s: %w", rec.ID, err)
		}
		byID[rec.ID] = rec
		ids = append(ids, rec.ID)
	}

	prog := p.progress(report, PhaseEvaluate, len(records))
	compute := func(ctx context.Context, id string) (*cache.Entry, error) {
		e, err := p.evaluate(ctx, byID[id], report.Tracker)
		if ctx.Err() == nil {
			prog.step(err)
		}
		return e, err
	}

	rr, err := p.cfg.Cache.RebuildAll(ctx, ids, compute)
	report.Duration = time.Since(report.StartTime)
	if rr != nil {
		report.Evaluated = rr.Rebuilt
		report.Pruned = rr.Pruned
		for id, ferr := range rr.Failed {
			report.Failed[id] = ferr
			_ = report.Tracker.Advance(id, game.Fetched)
		}
	}
	if err != nil {
		prog.fail(err)
		return report, err
	}

	if err := p.writeManifest(ctx); err != nil {
		return report, err
	}
	prog.done()
	logger.Info("rebuild finished",
		zap.Int("rebuilt", len(report.Evaluated)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("pruned", len(report.Pruned)),
	)
	return report, nil
}

// process evaluates one game and writes its entry.
func (p *Pipeline) process(ctx context.Context, rec *game.Record, tr *game.Tracker) error {
	e, err := p.evaluate(ctx, rec, tr)
	if err != nil {
		return err
	}
	if err := p.cfg.Cache.Put(ctx, e); err != nil {
		_ = tr.Advance(rec.ID, game.Fetched)
		return err
	}
	return nil
}

// evaluate runs the engine over a game and derives its entry, advancing
// the game through Evaluated and Classified. On failure the game is reset
// to Fetched.
func (p *Pipeline) evaluate(ctx context.Context, rec *game.Record, tr *game.Tracker) (*cache.Entry, error) {
	if rec == nil {
		return nil, errors.New("pipeline: unknown game")
	}
	start := time.Now()

	trace, err := p.Trace(ctx, rec)
	if err != nil {
		if errors.Is(err, engine.ErrTimeout) {
			p.stats.IncCounter(stats.MetricEngineTimeouts, 1)
		}
		if ctx.Err() == nil {
			p.stats.IncCounter(stats.MetricGamesFailed, 1)
		}
		_ = tr.Advance(rec.ID, game.Fetched)
		return nil, err
	}
	p.stats.IncCounter(stats.MetricGamesEvaluated, 1)
	p.stats.ObserveHistogram(stats.MetricEvalSeconds, time.Since(start).Seconds())
	if err := tr.Advance(rec.ID, game.Evaluated); err != nil {
		return nil, err
	}

	e := p.Derive(rec, trace)
	if err := tr.Advance(rec.ID, game.Classified); err != nil {
		return nil, err
	}
	return e, nil
}

// Trace evaluates every position of a game on a pooled engine session.
func (p *Pipeline) Trace(ctx context.Context, rec *game.Record) (analysis.Trace, error) {
	positions, err := game.Positions(rec.Moves)
	if err != nil {
		return nil, fmt.Errorf("replaying game %s: %w", rec.ID, err)
	}

	eng, err := p.cfg.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	results, err := engine.EvaluateGame(ctx, engine.Memoize(eng, p.cfg.Memo), positions, p.cfg.Budget)
	p.cfg.Pool.Release(eng, err == nil)
	if err != nil {
		return nil, fmt.Errorf("evaluating game %s: %w", rec.ID, err)
	}
	return analysis.BuildTrace(rec, results), nil
}

// Derive computes a game's entry from its trace: dips, summary and opening.
func (p *Pipeline) Derive(rec *game.Record, trace analysis.Trace) *cache.Entry {
	d := p.cfg.Detector
	events := d.Detect(trace, rec.Color, rec.TimeControl)
	return &cache.Entry{
		GameID:      rec.ID,
		Trace:       trace,
		Events:      events,
		Opening:     p.cfg.Classifier.Classify(rec.Moves),
		Summary:     d.Summarize(trace, rec.Color, events),
		Fingerprint: p.fingerprint(),
	}
}

// Rederive recomputes dips, summaries and openings of cached entries whose
// analysis fingerprint is out of date, reusing their traces. No engine work
// is done.
func (p *Pipeline) Rederive(ctx context.Context) (*Report, error) {
	ids, err := p.cfg.Cache.IDs(ctx)
	if err != nil {
		return nil, err
	}
	report := newReport(nil)
	report.Fetched = len(ids)
	prog := p.progress(report, PhaseRederive, len(ids))

	want := p.fingerprint()
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Tracker.Set(id, game.Classified)

		e, err := p.cfg.Cache.Get(ctx, id)
		if errors.Is(err, cache.ErrNotFound) {
			continue
		}
		if err != nil {
			return report, err
		}
		if e.Fingerprint == want {
			report.Cached = append(report.Cached, id)
			prog.cached(1)
			continue
		}
		rec, err := p.cfg.Cache.GetGame(ctx, id)
		if err != nil {
			report.Failed[id] = err
			prog.step(err)
			continue
		}

		_ = report.Tracker.Advance(id, game.Evaluated)
		fresh := p.Derive(rec, e.Trace)
		if err := p.cfg.Cache.Put(ctx, fresh); err != nil {
			report.Failed[id] = err
			prog.step(err)
			continue
		}
		_ = report.Tracker.Advance(id, game.Classified)
		report.Evaluated = append(report.Evaluated, id)
		prog.step(nil)
	}

	report.Duration = time.Since(report.StartTime)
	if err := p.writeManifest(ctx); err != nil {
		return report, err
	}
	prog.done()
	return report, nil
}

// Stale reports whether the stored manifest was written with different
// analysis settings than the pipeline's.
func (p *Pipeline) Stale(ctx context.Context) (bool, error) {
	m, err := p.cfg.Cache.ReadManifest(ctx)
	if errors.Is(err, cache.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.AnalysisFingerprint != p.AnalysisFingerprint(), nil
}

func (p *Pipeline) writeManifest(ctx context.Context) error {
	return p.cfg.Cache.WriteManifest(ctx, &cache.Manifest{
		Version:             cache.ManifestVersion,
		Username:            p.cfg.Username,
		Codec:               p.cfg.Cache.Codec().Name(),
		EngineFingerprint:   p.EngineFingerprint(),
		AnalysisFingerprint: p.AnalysisFingerprint(),
		OpeningsVersion:     p.cfg.Classifier.Version(),
	})
}

// progress serializes ProgressFunc calls for one run.
type progress struct {
	mu sync.Mutex
	fn ProgressFunc
	p  Progress
}

func (p *Pipeline) progress(r *Report, phase string, total int) *progress {
	return &progress{
		fn: p.cfg.Progress,
		p: Progress{
			Phase:      phase,
			RunID:      r.RunID,
			GamesTotal: total,
			StartTime:  r.StartTime,
		},
	}
}

func (pr *progress) emit(update func(*Progress)) {
	pr.mu.Lock()
	defer pr.mu.Unlock()
	update(&pr.p)
	if pr.fn != nil {
		pr.fn(pr.p)
	}
}

func (pr *progress) cached(n int) {
	pr.emit(func(p *Progress) { p.GamesCached += n })
}

func (pr *progress) step(err error) {
	pr.emit(func(p *Progress) {
		if err != nil {
			p.GamesFailed++
		} else {
			p.GamesDone++
		}
	})
}

func (pr *progress) done() {
	pr.emit(func(p *Progress) { p.Phase = PhaseDone })
}

func (pr *progress) fail(err error) {
	pr.emit(func(p *Progress) {
		p.Phase = PhaseError
		p.Error = err
	})
}
