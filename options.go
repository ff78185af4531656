package coach

import (
	"time"

	"go.uber.org/zap"

	"github.com/discochess/coach/internal/analysis"
	"github.com/discochess/coach/internal/codec"
	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/openings"
	"github.com/discochess/coach/internal/pipeline"
	"github.com/discochess/coach/internal/profile"
	"github.com/discochess/coach/internal/stats"
	"github.com/discochess/coach/internal/store"
)

// Option configures a Coach.
type Option interface {
	apply(*options)
}

// options holds the coach configuration.
type options struct {
	username   string
	store      store.Store
	codec      codec.Codec
	factory    engine.Factory
	sessions   int
	memoSize   int
	budget     engine.Budget
	classifier *openings.Classifier
	fetcher    Fetcher
	thresholds analysis.Thresholds
	style      profile.StyleThresholds
	workers    int
	monthsBack int
	maxGames   int
	stats      stats.Collector
	logger     *zap.Logger
	progress   pipeline.ProgressFunc
	now        func() time.Time
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	return options{
		sessions:   2,
		memoSize:   100_000,
		budget:     engine.Budget{MoveTime: 100 * time.Millisecond},
		thresholds: analysis.DefaultThresholds(),
		style:      profile.DefaultStyleThresholds(),
		workers:    2,
		monthsBack: 3,
		stats:      stats.NewNoop(),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithUsername sets the chess.com player whose games are analysed.
func WithUsername(name string) Option {
	return optionFunc(func(o *options) {
		o.username = name
	})
}

// WithStore sets the storage backend holding the analysis cache.
func WithStore(s store.Store) Option {
	return optionFunc(func(o *options) {
		o.store = s
	})
}

// WithCodec sets the codec cache entries are written with.
// If not set, zstd is used.
func WithCodec(c codec.Codec) Option {
	return optionFunc(func(o *options) {
		o.codec = c
	})
}

// WithEngine sets the factory starting engine sessions and how many
// sessions may run at once.
func WithEngine(f engine.Factory, sessions int) Option {
	return optionFunc(func(o *options) {
		o.factory = f
		if sessions > 0 {
			o.sessions = sessions
		}
	})
}

// WithBudget sets the per-position engine budget.
func WithBudget(b engine.Budget) Option {
	return optionFunc(func(o *options) {
		o.budget = b
	})
}

// WithMemoSize sets how many position evaluations are memoized in memory.
// Zero disables memoization.
func WithMemoSize(n int) Option {
	return optionFunc(func(o *options) {
		o.memoSize = n
	})
}

// WithClassifier sets the opening classifier.
// If not set, the embedded dataset is used.
func WithClassifier(c *openings.Classifier) Option {
	return optionFunc(func(o *options) {
		o.classifier = c
	})
}

// WithFetcher sets the source of game records.
// If not set, the chess.com public API is used.
func WithFetcher(f Fetcher) Option {
	return optionFunc(func(o *options) {
		o.fetcher = f
	})
}

// WithThresholds sets the dip detection thresholds.
func WithThresholds(th analysis.Thresholds) Option {
	return optionFunc(func(o *options) {
		o.thresholds = th
	})
}

// WithStyle sets the style tag thresholds.
func WithStyle(th profile.StyleThresholds) Option {
	return optionFunc(func(o *options) {
		o.style = th
	})
}

// WithWorkers bounds how many games are evaluated concurrently.
func WithWorkers(n int) Option {
	return optionFunc(func(o *options) {
		o.workers = n
	})
}

// WithMonthsBack sets how many months of archives an update fetches.
// Default is 3.
func WithMonthsBack(n int) Option {
	return optionFunc(func(o *options) {
		o.monthsBack = n
	})
}

// WithMaxGames keeps only the n most recent games of each fetch.
// Zero keeps every game.
func WithMaxGames(n int) Option {
	return optionFunc(func(o *options) {
		o.maxGames = n
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithProgress sets a callback for evaluation progress.
func WithProgress(fn pipeline.ProgressFunc) Option {
	return optionFunc(func(o *options) {
		o.progress = fn
	})
}

// WithClock overrides the time source used for archive windows and
// snapshot timestamps.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(o *options) {
		o.now = now
	})
}
