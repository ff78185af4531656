package engine

import (
	"context"
	"errors"
	"fmt"
)

// PlyResult is the evaluation of the position after a ply. Ply 0 is the
// initial position.
type PlyResult struct {
	Ply    int
	Result Result
}

// EvaluateGame evaluates every position of a game in order. Each position is
// bounded by budget.Deadline() regardless of the engine. A timeout or an
// engine error on any position aborts the whole game: partial traces are
// never returned.
func EvaluateGame(ctx context.Context, eng Engine, positions []string, budget Budget) ([]PlyResult, error) {
	results := make([]PlyResult, 0, len(positions))
	for ply, fen := range positions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, timedOut := evaluate(ctx, eng, fen, budget)
		if timedOut {
			return nil, fmt.Errorf("ply %d: %w", ply, ErrTimeout)
		}
		switch res.Kind {
		case KindEvaluation:
			results = append(results, PlyResult{Ply: ply, Result: res})
		case KindTimeout:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("ply %d: %w", ply, ErrTimeout)
		default:
			return nil, &Error{FEN: fen, Reason: res.Reason}
		}
	}
	return results, nil
}

// evaluate runs one position under its deadline. timedOut is set when the
// deadline expired while ctx itself is still live.
func evaluate(ctx context.Context, eng Engine, fen string, budget Budget) (res Result, timedOut bool) {
	pctx, cancel := context.WithTimeout(ctx, budget.Deadline())
	defer cancel()

	res = eng.Evaluate(pctx, fen, budget)
	if errors.Is(pctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return res, true
	}
	return res, false
}
