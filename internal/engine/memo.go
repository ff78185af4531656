package engine

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memo caches evaluations by normalized position and budget. It is shared
// by all sessions of a pool, so common opening positions and transpositions
// are searched once.
type Memo struct {
	cache *lru.Cache[string, Result]

	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemo creates a memo holding up to capacity evaluations.
func NewMemo(capacity int) (*Memo, error) {
	c, err := lru.New[string, Result](capacity)
	if err != nil {
		return nil, err
	}
	return &Memo{cache: c}, nil
}

func memoKey(fen string, budget Budget) string {
	return Normalize(fen) + "|" + budget.Key()
}

// Get returns a cached evaluation.
func (m *Memo) Get(fen string, budget Budget) (Result, bool) {
	res, ok := m.cache.Get(memoKey(fen, budget))
	if ok {
		m.hits.Add(1)
	} else {
		m.misses.Add(1)
	}
	return res, ok
}

// Add caches a successful evaluation. Timeouts and errors are never cached.
func (m *Memo) Add(fen string, budget Budget, res Result) {
	if res.Kind != KindEvaluation {
		return
	}
	m.cache.Add(memoKey(fen, budget), res)
}

// Len returns the number of cached evaluations.
func (m *Memo) Len() int {
	return m.cache.Len()
}

// HitRate returns the memo hit rate as a percentage.
func (m *Memo) HitRate() float64 {
	hits, misses := m.hits.Load(), m.misses.Load()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses) * 100
}

// Memoize wraps eng so evaluations are served from memo when possible.
func Memoize(eng Engine, memo *Memo) Engine {
	if memo == nil {
		return eng
	}
	return &memoEngine{Engine: eng, memo: memo}
}

type memoEngine struct {
	Engine
	memo *Memo
}

func (e *memoEngine) Evaluate(ctx context.Context, fen string, budget Budget) Result {
	if res, ok := e.memo.Get(fen, budget); ok {
		return res
	}
	res := e.Engine.Evaluate(ctx, fen, budget)
	e.memo.Add(fen, budget, res)
	return res
}
