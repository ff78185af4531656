// Package analysis turns engine evaluations of a game into an evaluation
// trace and detects the player's dips and blunders in it.
package analysis

import (
	"time"

	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/game"
)

// PlyEval is the evaluation of the position after a ply. Ply 0 is the
// initial position and has no move. Score is nil when the position was not
// evaluated.
type PlyEval struct {
	Ply      int            `json:"ply"`
	Move     string         `json:"move,omitempty"`
	Score    *engine.Score  `json:"score,omitempty"`
	Depth    int            `json:"depth,omitempty"`
	BestMove string         `json:"best_move,omitempty"`
	Clock    *time.Duration `json:"clock,omitempty"`
	Spent    *time.Duration `json:"spent,omitempty"`
}

// Trace is the per-ply evaluation of one game, ordered by ply.
type Trace []PlyEval

// Evaluated returns the number of plies with a score.
func (t Trace) Evaluated() int {
	n := 0
	for _, pe := range t {
		if pe.Score != nil {
			n++
		}
	}
	return n
}

// BuildTrace combines a game record with its engine results. Plies without
// a result keep a nil score.
func BuildTrace(rec *game.Record, results []engine.PlyResult) Trace {
	trace := make(Trace, len(rec.Moves)+1)
	for ply := range trace {
		pe := PlyEval{Ply: ply}
		if ply > 0 {
			pe.Move = rec.Moves[ply-1]
			if c, ok := rec.Clock(ply); ok {
				pe.Clock = &c
			}
			if s, ok := rec.MoveTime(ply); ok {
				pe.Spent = &s
			}
		}
		trace[ply] = pe
	}

	for _, r := range results {
		if r.Ply < 0 || r.Ply >= len(trace) || r.Result.Kind != engine.KindEvaluation {
			continue
		}
		score := r.Result.Score
		trace[r.Ply].Score = &score
		trace[r.Ply].Depth = r.Result.Depth
		trace[r.Ply].BestMove = r.Result.BestMove
	}
	return trace
}

// moverOf returns the side that played the given ply (1-based).
func moverOf(ply int) game.Color {
	if ply%2 == 1 {
		return game.White
	}
	return game.Black
}
