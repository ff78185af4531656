package game

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrIllegalTransition is returned when a game would skip or reverse a stage.
var ErrIllegalTransition = errors.New("game: illegal stage transition")

// Stage is a game's position in the analysis pipeline.
type Stage int

const (
	Fetched Stage = iota
	Evaluated
	Classified
	Aggregated
)

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case Fetched:
		return "fetched"
	case Evaluated:
		return "evaluated"
	case Classified:
		return "classified"
	case Aggregated:
		return "aggregated"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// CanTransition reports whether a game may move from one stage to another.
// Games advance one stage at a time, fall back to Fetched when evaluation
// fails, and re-enter Evaluated after their cache entry is invalidated.
func CanTransition(from, to Stage) bool {
	switch {
	case to == from+1:
		return true
	case to == Fetched:
		return true
	case to == Evaluated && from >= Classified:
		return true
	}
	return false
}

// Tracker records the stage of each game. It is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	stages map[string]Stage
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{stages: make(map[string]Stage)}
}

// Add registers a game at the Fetched stage. Known games keep their stage.
func (t *Tracker) Add(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.stages[id]; !ok {
		t.stages[id] = Fetched
	}
}

// Set registers a game directly at the given stage, e.g. when its analysis
// is already cached from an earlier run.
func (t *Tracker) Set(id string, s Stage) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stages[id] = s
}

// Advance moves a game to the given stage.
func (t *Tracker) Advance(id string, to Stage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	from, ok := t.stages[id]
	if !ok {
		return fmt.Errorf("%w: unknown game %s", ErrIllegalTransition, id)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s %s -> %s", ErrIllegalTransition, id, from, to)
	}
	t.stages[id] = to
	return nil
}

// Stage returns the current stage of a game.
func (t *Tracker) Stage(id string) (Stage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.stages[id]
	return s, ok
}

// In returns the sorted IDs of games at the given stage.
func (t *Tracker) In(s Stage) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []string
	for id, st := range t.stages {
		if st == s {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Counts returns the number of games per stage.
func (t *Tracker) Counts() map[Stage]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts := make(map[Stage]int, 4)
	for _, st := range t.stages {
		counts[st]++
	}
	return counts
}
