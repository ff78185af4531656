// Package uciengine drives an external UCI engine binary such as Stockfish.
package uciengine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/notnil/chess"
	"github.com/notnil/chess/uci"
	"go.uber.org/zap"

	"github.com/discochess/coach/internal/engine"
)

// Compile-time check that Engine implements engine.Engine.
var _ engine.Engine = (*Engine)(nil)

// Config holds engine process settings.
type Config struct {
	// Path is the engine binary, e.g. "stockfish".
	Path string

	// Threads sets the UCI "Threads" option when non-zero.
	Threads int

	// HashMB sets the UCI "Hash" option when non-zero.
	HashMB int
}

// Engine is one UCI engine process. It is not safe for concurrent use.
type Engine struct {
	eng    *uci.Engine
	logger *zap.Logger

	mu     sync.Mutex
	broken bool
}

// New starts the engine process and performs the UCI handshake.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		cfg.Path = "stockfish"
	}

	eng, err := uci.New(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("starting %s: %w", cfg.Path, err)
	}

	cmds := []uci.Cmd{uci.CmdUCI}
	if cfg.Threads > 0 {
		cmds = append(cmds, uci.CmdSetOption{Name: "Threads", Value: strconv.Itoa(cfg.Threads)})
	}
	if cfg.HashMB > 0 {
		cmds = append(cmds, uci.CmdSetOption{Name: "Hash", Value: strconv.Itoa(cfg.HashMB)})
	}
	cmds = append(cmds, uci.CmdIsReady, uci.CmdUCINewGame)

	e := &Engine{eng: eng, logger: logger}
	if err := e.run(ctx, 30*time.Second, cmds...); err != nil {
		_ = eng.Close()
		return nil, fmt.Errorf("uci handshake: %w", err)
	}
	return e, nil
}

// Factory returns an engine.Factory starting processes with cfg.
func Factory(cfg Config, logger *zap.Logger) engine.Factory {
	return func(ctx context.Context) (engine.Engine, error) {
		return New(ctx, cfg, logger)
	}
}

// Evaluate searches the position and returns a White-perspective score.
func (e *Engine) Evaluate(ctx context.Context, fen string, budget engine.Budget) engine.Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.broken {
		return engine.Failure("engine session is broken")
	}

	opt, err := chess.FEN(fen)
	if err != nil {
		return engine.Failure("invalid fen: " + err.Error())
	}
	pos := chess.NewGame(opt).Position()

	goCmd := uci.CmdGo{MoveTime: budget.MoveTime, Depth: budget.Depth}
	if goCmd.MoveTime == 0 && goCmd.Depth == 0 {
		goCmd.MoveTime = 100 * time.Millisecond
	}

	if err := e.run(ctx, budget.Deadline(), uci.CmdPosition{Position: pos}, goCmd); err != nil {
		e.broken = true
		if err == errDeadline || ctx.Err() != nil {
			return engine.Timeout()
		}
		return engine.Failure(err.Error())
	}

	res := e.eng.SearchResults()
	if res.BestMove == nil && res.Info.Depth == 0 {
		return engine.Failure("empty search result")
	}

	score := engine.Score{CP: res.Info.Score.CP, Mate: res.Info.Score.Mate}
	if pos.Turn() == chess.Black {
		score = score.Negate()
	}

	var best string
	if res.BestMove != nil {
		best = res.BestMove.String()
	}
	return engine.Evaluation(score, res.Info.Depth, best)
}

var errDeadline = errors.New("deadline exceeded")

// run executes commands with a wall-clock limit. The uci package blocks on
// the process pipes, so the commands run in a goroutine and the process is
// killed if the limit passes first.
func (e *Engine) run(ctx context.Context, limit time.Duration, cmds ...uci.Cmd) error {
	done := make(chan error, 1)
	go func() {
		done <- e.eng.Run(cmds...)
	}()

	timer := time.NewTimer(limit)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		e.logger.Warn("engine deadline exceeded, killing process", zap.Duration("limit", limit))
		_ = e.eng.Close()
		return errDeadline
	case <-ctx.Done():
		_ = e.eng.Close()
		return ctx.Err()
	}
}

// Close terminates the engine process.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.broken = true
	return e.eng.Close()
}
