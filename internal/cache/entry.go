package cache

import (
	"fmt"
	"strings"

	"github.com/discochess/coach/internal/analysis"
	"github.com/discochess/coach/internal/openings"
)

// Entry is the analysis of one game: its evaluation trace, the dips
// detected in it and its opening label.
type Entry struct {
	GameID  string           `json:"game_id"`
	Trace   analysis.Trace   `json:"trace"`
	Events  []analysis.Event `json:"events"`
	Opening openings.Label   `json:"opening"`
	Summary analysis.Summary `json:"summary"`

	// Fingerprint identifies the engine budget, thresholds and opening
	// dataset the entry was computed with.
	Fingerprint string `json:"fingerprint,omitempty"`
}

// Validate rejects partially populated entries.
func (e *Entry) Validate() error {
	switch {
	case e == nil:
		return fmt.Errorf("%w: nil entry", ErrIncomplete)
	case !validID(e.GameID):
		return fmt.Errorf("%w: invalid game id %q", ErrIncomplete, e.GameID)
	case len(e.Trace) == 0:
		return fmt.Errorf("%w: %s has no trace", ErrIncomplete, e.GameID)
	case e.Opening.Name == "":
		return fmt.Errorf("%w: %s has no opening label", ErrIncomplete, e.GameID)
	case e.Summary.EvaluatedPlies != e.Trace.Evaluated():
		return fmt.Errorf("%w: %s summary covers %d plies, trace has %d",
			ErrIncomplete, e.GameID, e.Summary.EvaluatedPlies, e.Trace.Evaluated())
	}
	for i, pe := range e.Trace {
		if pe.Ply != i {
			return fmt.Errorf("%w: %s trace out of order at ply %d", ErrIncomplete, e.GameID, i)
		}
	}
	return nil
}

// normalized returns a shallow copy with a non-nil event list so equal
// entries always encode to equal bytes.
func (e *Entry) normalized() *Entry {
	out := *e
	if out.Events == nil {
		out.Events = []analysis.Event{}
	}
	return &out
}

func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, "/\\\x00")
}
