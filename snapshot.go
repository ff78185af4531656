package coach

import (
	"sort"
	"time"

	"github.com/discochess/coach/internal/chesscom"
	"github.com/discochess/coach/internal/game"
	"github.com/discochess/coach/internal/profile"
)

// Snapshot is an immutable, versioned view of the player's profile. Every
// update publishes a new snapshot; readers holding an older one are never
// affected.
type Snapshot struct {
	// Version increases with every published snapshot of a Coach.
	Version int64 `json:"version"`

	Profile     *profile.Profile `json:"profile"`
	GeneratedAt time.Time        `json:"generated_at"`

	// RunID identifies the pipeline run that produced the snapshot. It is
	// empty for snapshots aggregated straight from the cache.
	RunID string `json:"run_id,omitempty"`

	// Ratings are the player's chess.com ratings, when they could be
	// fetched.
	Ratings *chesscom.PlayerStats `json:"ratings,omitempty"`

	// Failed maps game IDs that could not be evaluated to the reason.
	Failed map[string]string `json:"failed,omitempty"`
}

func failures(errs map[string]error) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	out := make(map[string]string, len(errs))
	for id, err := range errs {
		out[id] = err.Error()
	}
	return out
}

// sortRecords orders records oldest first.
func sortRecords(records []*game.Record) {
	sort.Slice(records, func(i, j int) bool { return records[j].Newer(records[i]) })
}
