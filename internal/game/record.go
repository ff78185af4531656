// Package game defines the played-game record shared by every stage of the
// analysis pipeline.
package game

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidRecord indicates a record is missing fields required for analysis.
var ErrInvalidRecord = errors.New("game: invalid record")

// Color is the side a player had in a game.
type Color int

const (
	White Color = iota
	Black
)

// String returns "white" or "black".
func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Sign returns +1 for White and -1 for Black. Multiplying a White-perspective
// score by Sign yields the score from this side's perspective.
func (c Color) Sign() int {
	if c == Black {
		return -1
	}
	return 1
}

// Result is the outcome of a game from the player's perspective.
type Result int

const (
	Unknown Result = iota
	Win
	Loss
	Draw
)

// String returns a short name for the result.
func (r Result) String() string {
	switch r {
	case Win:
		return "win"
	case Loss:
		return "loss"
	case Draw:
		return "draw"
	default:
		return "unknown"
	}
}

// ResultFor maps a PGN result tag ("1-0", "0-1", "1/2-1/2") to the
// outcome for the given color.
func ResultFor(tag string, c Color) Result {
	switch strings.TrimSpace(tag) {
	case "1/2-1/2":
		return Draw
	case "1-0":
		if c == White {
			return Win
		}
		return Loss
	case "0-1":
		if c == Black {
			return Win
		}
		return Loss
	}
	return Unknown
}

// Record is one played game. Records are created by the fetcher and are
// treated as read-only afterwards.
type Record struct {
	ID             string          `json:"id"`
	URL            string          `json:"url,omitempty"`
	EndTime        time.Time       `json:"end_time"`
	White          string          `json:"white"`
	Black          string          `json:"black"`
	Color          Color           `json:"color"`
	PlayerRating   int             `json:"player_rating,omitempty"`
	OpponentRating int             `json:"opponent_rating,omitempty"`
	TimeControl    TimeControl     `json:"time_control"`
	Result         Result          `json:"result"`
	Termination    string          `json:"termination,omitempty"`
	Moves          []string        `json:"moves"`
	Clocks         []time.Duration `json:"clocks,omitempty"`
	FinalFEN       string          `json:"final_fen,omitempty"`
	PGN            string          `json:"pgn,omitempty"`
}

// Validate checks the fields the pipeline depends on.
func (r *Record) Validate() error {
	switch {
	case r.ID == "":
		return errors.Join(ErrInvalidRecord, errors.New("missing id"))
	case r.Result == Unknown:
		return errors.Join(ErrInvalidRecord, errors.New("unknown result"))
	case len(r.Clocks) > 0 && len(r.Clocks) != len(r.Moves):
		return errors.Join(ErrInvalidRecord, errors.New("clock count does not match move count"))
	}
	return nil
}

// Opponent returns the opponent's username.
func (r *Record) Opponent() string {
	if r.Color == White {
		return r.Black
	}
	return r.White
}

// Clock returns the mover's remaining clock after the given ply (1-based).
func (r *Record) Clock(ply int) (time.Duration, bool) {
	if ply < 1 || ply > len(r.Clocks) {
		return 0, false
	}
	return r.Clocks[ply-1], true
}

// MoveTime returns the time the mover spent on the given ply (1-based),
// derived from consecutive clock readings of the same side plus increment.
func (r *Record) MoveTime(ply int) (time.Duration, bool) {
	after, ok := r.Clock(ply)
	if !ok {
		return 0, false
	}
	before := r.TimeControl.Base
	if prev, ok := r.Clock(ply - 2); ok {
		before = prev
	}
	if before == 0 {
		return 0, false
	}
	spent := before - after + r.TimeControl.Increment
	if spent < 0 {
		spent = 0
	}
	return spent, true
}

// Newer reports whether r is more recent than other. Records with equal end
// times are ordered by ID so the comparison is total.
func (r *Record) Newer(other *Record) bool {
	if !r.EndTime.Equal(other.EndTime) {
		return r.EndTime.After(other.EndTime)
	}
	return r.ID > other.ID
}
