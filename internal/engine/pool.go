package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Pool is a bounded set of engine sessions. Each session evaluates one game
// at a time; at most size sessions exist at once.
type Pool struct {
	factory Factory
	logger  *zap.Logger

	sem    chan struct{}
	mu     sync.Mutex
	idle   []Engine
	closed atomic.Bool

	started   atomic.Int64
	discarded atomic.Int64
}

// NewPool creates a pool that starts sessions lazily with factory.
// A nil logger is replaced with a no-op logger.
func NewPool(factory Factory, size int, logger *zap.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		factory: factory,
		logger:  logger,
		sem:     make(chan struct{}, size),
	}
}

// Size returns the maximum number of concurrent sessions.
func (p *Pool) Size() int {
	return cap(p.sem)
}

// Acquire blocks until a session is available. The session must be given
// back with Release.
func (p *Pool) Acquire(ctx context.Context) (Engine, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		eng := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return eng, nil
	}
	p.mu.Unlock()

	eng, err := p.factory(ctx)
	if err != nil {
		<-p.sem
		return nil, &Error{Reason: "starting engine", Err: err}
	}
	p.started.Add(1)
	return eng, nil
}

// Release returns a session to the pool. Sessions that timed out or failed
// are closed instead of reused, and a fresh one is started on demand.
func (p *Pool) Release(eng Engine, healthy bool) {
	defer func() { <-p.sem }()

	if !healthy || p.closed.Load() {
		p.discard(eng)
		return
	}

	p.mu.Lock()
	p.idle = append(p.idle, eng)
	p.mu.Unlock()
}

func (p *Pool) discard(eng Engine) {
	p.discarded.Add(1)
	if err := eng.Close(); err != nil {
		p.logger.Debug("closing discarded engine", zap.Error(err))
	}
}

// Stats returns the number of sessions started and discarded so far.
func (p *Pool) Stats() (started, discarded int64) {
	return p.started.Load(), p.discarded.Load()
}

// Close closes all idle sessions. Sessions in use are closed on Release.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var firstErr error
	for _, eng := range idle {
		if err := eng.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing engine: %w", err)
		}
	}
	return firstErr
}
