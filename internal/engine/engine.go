// Package engine defines the chess-engine adapter used to evaluate the
// positions of a game, plus session pooling and evaluation memoization.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/discochess/coach/internal/fen"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrTimeout indicates a position was not evaluated within its budget.
	ErrTimeout = errors.New("engine: evaluation timed out")

	// ErrClosed indicates the engine or pool has been closed.
	ErrClosed = errors.New("engine: closed")
)

// Error is an engine failure: a crashed process or a malformed response.
type Error struct {
	FEN    string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := "engine error"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.FEN != "" {
		msg += " (" + e.FEN + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Kind tags the variant held by a Result.
type Kind int

const (
	KindEvaluation Kind = iota
	KindTimeout
	KindError
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindEvaluation:
		return "evaluation"
	case KindTimeout:
		return "timeout"
	case KindError:
		return "error"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Score is an evaluation from White's perspective. Exactly one of CP and
// Mate is meaningful: when Mate is non-zero the position is a forced mate in
// that many moves (positive for White, negative for Black).
type Score struct {
	CP   int `json:"cp,omitempty"`
	Mate int `json:"mate,omitempty"`
}

// IsMate reports whether the score is a forced mate.
func (s Score) IsMate() bool {
	return s.Mate != 0
}

// Clamp returns the score as centipawns, mapping forced mates to
// +/-mateValue so magnitude arithmetic stays finite.
func (s Score) Clamp(mateValue int) int {
	switch {
	case s.Mate > 0:
		return mateValue
	case s.Mate < 0:
		return -mateValue
	}
	if s.CP > mateValue {
		return mateValue
	}
	if s.CP < -mateValue {
		return -mateValue
	}
	return s.CP
}

// Negate flips the perspective of the score.
func (s Score) Negate() Score {
	return Score{CP: -s.CP, Mate: -s.Mate}
}

// String returns a human-readable score.
// Examples: "+1.25", "-0.50", "#3", "#-5"
func (s Score) String() string {
	if s.Mate != 0 {
		return "#" + strconv.Itoa(s.Mate)
	}
	cp := s.CP
	sign := "+"
	if cp < 0 {
		sign = "-"
		cp = -cp
	}
	return fmt.Sprintf("%s%d.%02d", sign, cp/100, cp%100)
}

// Result is the tagged outcome of evaluating one position:
// Evaluation(score, depth) | Timeout | Error(reason).
type Result struct {
	Kind     Kind
	Score    Score
	Depth    int
	BestMove string
	Reason   string
}

// Evaluation builds a successful result.
func Evaluation(score Score, depth int, bestMove string) Result {
	return Result{Kind: KindEvaluation, Score: score, Depth: depth, BestMove: bestMove}
}

// Timeout builds a timeout result.
func Timeout() Result {
	return Result{Kind: KindTimeout, Reason: "timeout"}
}

// Failure builds an error result.
func Failure(reason string) Result {
	return Result{Kind: KindError, Reason: reason}
}

// Budget bounds the work spent on a single position.
type Budget struct {
	// MoveTime is the engine search time per position.
	MoveTime time.Duration

	// Depth limits the search depth when non-zero.
	Depth int

	// Timeout is the hard wall-clock limit for one position, including
	// engine round-trips. Zero means MoveTime plus a grace period.
	Timeout time.Duration
}

// Deadline returns the wall-clock limit for one position.
func (b Budget) Deadline() time.Duration {
	if b.Timeout > 0 {
		return b.Timeout
	}
	if b.MoveTime > 0 {
		return b.MoveTime + 5*time.Second
	}
	return 30 * time.Second
}

// Key identifies the budget in memo keys and fingerprints.
func (b Budget) Key() string {
	return fmt.Sprintf("t%d-d%d", b.MoveTime.Milliseconds(), b.Depth)
}

// Engine evaluates chess positions. An Engine handles one position at a
// time; use a Pool to evaluate games concurrently.
type Engine interface {
	// Evaluate returns the evaluation of a FEN position. Implementations
	// must honor ctx and the budget's deadline and report them as Timeout.
	Evaluate(ctx context.Context, fen string, budget Budget) Result

	// Close releases the engine process.
	Close() error
}

// Factory starts a new engine session.
type Factory func(ctx context.Context) (Engine, error)

// Normalize returns the position key of a FEN: transpositions that differ
// only in move counters share a key.
func Normalize(position string) string {
	return fen.Key(position)
}
