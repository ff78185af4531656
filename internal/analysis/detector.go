package analysis

import (
	"time"

	"github.com/discochess/coach/internal/game"
)

// Thresholds configure dip detection. All values are centipawns from the
// player's perspective unless noted.
type Thresholds struct {
	// Dip is the minimum drop between consecutive evaluations that counts
	// as a dip.
	Dip int `koanf:"dip" json:"dip"`

	// Blunder is the minimum drop that makes a dip a blunder.
	Blunder int `koanf:"blunder" json:"blunder"`

	// Losing is the evaluation below which the player is considered lost.
	// A dip that crosses it from above is a blunder regardless of size.
	Losing int `koanf:"losing" json:"losing"`

	// Mate is the magnitude forced mates are clamped to.
	Mate int `koanf:"mate" json:"mate"`

	// Quiet is the maximum absolute change of a quiet ply.
	Quiet int `koanf:"quiet" json:"quiet"`

	// LowTimeFraction is the fraction of the base time under which the
	// player is in time trouble.
	LowTimeFraction float64 `koanf:"low_time_fraction" json:"low_time_fraction"`

	// LateGamePly and ShortBase define time trouble for games without clock
	// data: a dip at or after LateGamePly in a game with a base time under
	// ShortBase.
	LateGamePly int           `koanf:"late_game_ply" json:"late_game_ply"`
	ShortBase   time.Duration `koanf:"short_base" json:"short_base"`

	// EarlyPly bounds the opening phase for early-dip counting.
	EarlyPly int `koanf:"early_ply" json:"early_ply"`
}

// DefaultThresholds returns the default detection thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Dip:             150,
		Blunder:         300,
		Losing:          -150,
		Mate:            10000,
		Quiet:           50,
		LowTimeFraction: 0.1,
		LateGamePly:     60,
		ShortBase:       15 * time.Minute,
		EarlyPly:        20,
	}
}

// Severity grades a dip.
type Severity int

const (
	SeverityDip Severity = iota + 1
	SeverityBlunder
)

// String returns "dip" or "blunder".
func (s Severity) String() string {
	if s == SeverityBlunder {
		return "blunder"
	}
	return "dip"
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a severity name.
func (s *Severity) UnmarshalText(b []byte) error {
	if string(b) == "blunder" {
		*s = SeverityBlunder
	} else {
		*s = SeverityDip
	}
	return nil
}

// Event is a detected drop in the player's evaluation.
type Event struct {
	Ply           int            `json:"ply"`
	Move          string         `json:"move,omitempty"`
	Severity      Severity       `json:"severity"`
	Magnitude     int            `json:"magnitude"`
	Before        int            `json:"before"`
	After         int            `json:"after"`
	Clock         *time.Duration `json:"clock,omitempty"`
	Spent         *time.Duration `json:"spent,omitempty"`
	InTimeTrouble bool           `json:"in_time_trouble"`
}

// Detector finds dips and blunders in evaluation traces.
type Detector struct {
	th Thresholds
}

// NewDetector creates a detector. Zero thresholds fall back to defaults,
// except Losing: an evaluation of zero is a valid losing bound.
func NewDetector(th Thresholds) *Detector {
	def := DefaultThresholds()
	if th.Dip <= 0 {
		th.Dip = def.Dip
	}
	if th.Blunder <= 0 {
		th.Blunder = def.Blunder
	}
	if th.Mate <= 0 {
		th.Mate = def.Mate
	}
	if th.Quiet <= 0 {
		th.Quiet = def.Quiet
	}
	if th.LowTimeFraction <= 0 {
		th.LowTimeFraction = def.LowTimeFraction
	}
	if th.LateGamePly <= 0 {
		th.LateGamePly = def.LateGamePly
	}
	if th.ShortBase <= 0 {
		th.ShortBase = def.ShortBase
	}
	if th.EarlyPly <= 0 {
		th.EarlyPly = def.EarlyPly
	}
	return &Detector{th: th}
}

// Thresholds returns the effective thresholds.
func (d *Detector) Thresholds() Thresholds {
	return d.th
}

// step is one comparison between consecutive evaluated plies.
type step struct {
	ply        int
	before     int
	after      int
	beforeMate bool
}

// steps walks the evaluated plies from the player's perspective. Plies
// without a score are skipped; each step compares against the last scored
// ply.
func (d *Detector) steps(trace Trace, color game.Color) []step {
	var (
		out  []step
		prev *PlyEval
	)
	for i := range trace {
		pe := &trace[i]
		if pe.Score == nil {
			continue
		}
		if prev != nil {
			s := step{
				ply:        pe.Ply,
				before:     prev.Score.Clamp(d.th.Mate) * color.Sign(),
				after:      pe.Score.Clamp(d.th.Mate) * color.Sign(),
				beforeMate: prev.Score.IsMate(),
			}
			out = append(out, s)
		}
		prev = pe
	}
	return out
}

// Detect returns the player's dips in ply order. Traces with fewer than two
// evaluated plies have no events.
func (d *Detector) Detect(trace Trace, color game.Color, tc game.TimeControl) []Event {
	byPly := make(map[int]*PlyEval, len(trace))
	for i := range trace {
		byPly[trace[i].Ply] = &trace[i]
	}

	var events []Event
	for _, s := range d.steps(trace, color) {
		drop := s.before - s.after
		if drop < d.th.Dip {
			continue
		}
		if s.beforeMate && d.mateInProgress(s) {
			continue
		}

		ev := Event{
			Ply:       s.ply,
			Severity:  SeverityDip,
			Magnitude: drop,
			Before:    s.before,
			After:     s.after,
		}
		if drop >= d.th.Blunder || (s.before >= d.th.Losing && s.after < d.th.Losing) {
			ev.Severity = SeverityBlunder
		}
		if pe := byPly[s.ply]; pe != nil {
			ev.Move = pe.Move
			ev.Spent = pe.Spent
		}
		ev.Clock = playerClock(trace, color, s.ply)
		ev.InTimeTrouble = d.inTimeTrouble(ev.Clock, s.ply, tc)
		events = append(events, ev)
	}
	return events
}

// mateInProgress reports whether a drop is only the continuation of a
// forced mate: the player was already being mated, or still has a decisive
// advantage after stepping off a mating line.
func (d *Detector) mateInProgress(s step) bool {
	if s.before < 0 {
		return true
	}
	return s.after >= d.th.Blunder
}

// playerClock returns the player's remaining time at the given ply.
func playerClock(trace Trace, color game.Color, ply int) *time.Duration {
	for i := len(trace) - 1; i >= 0; i-- {
		pe := trace[i]
		if pe.Ply > ply || pe.Ply == 0 {
			continue
		}
		if moverOf(pe.Ply) == color && pe.Clock != nil {
			return pe.Clock
		}
	}
	return nil
}

func (d *Detector) inTimeTrouble(clock *time.Duration, ply int, tc game.TimeControl) bool {
	if tc.Daily() || tc.Base <= 0 {
		return false
	}
	if clock != nil {
		limit := time.Duration(float64(tc.Base) * d.th.LowTimeFraction)
		return *clock < limit
	}
	return tc.Base < d.th.ShortBase && ply >= d.th.LateGamePly
}
