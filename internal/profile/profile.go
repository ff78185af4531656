// Package profile folds cached game analyses into a player profile.
//
// Aggregation is a pure function of its inputs: items are sorted by game ID
// before folding, so the same set of games always yields the same profile
// whatever order it arrives in.
package profile

import (
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/discochess/coach/internal/cache"
	"github.com/discochess/coach/internal/fen"
	"github.com/discochess/coach/internal/game"
	"github.com/discochess/coach/internal/openings"
)

// Item is one game and its analysis. Entry is nil for games that failed
// evaluation; they count as fetched but are not aggregated.
type Item struct {
	Record *game.Record
	Entry  *cache.Entry
}

// Options configure aggregation.
type Options struct {
	Username string

	// Fetched is the number of games fetched upstream. Zero means the
	// number of items.
	Fetched int

	Style StyleThresholds

	// Losing is the evaluation a game must fall below to count as a
	// recovery when it is not lost. Zero is a valid bound; callers pass
	// the detector's losing threshold.
	Losing int
}

// OpeningStats is the win/loss/draw tally of one opening family.
type OpeningStats struct {
	Name   string `json:"name"`
	ECO    string `json:"eco"`
	Games  int    `json:"games"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Draws  int    `json:"draws"`
}

// Tally returns "wins-losses-draws".
func (o OpeningStats) Tally() string {
	return fmt.Sprintf("%d-%d-%d", o.Wins, o.Losses, o.Draws)
}

// WinRate returns the fraction of games won.
func (o OpeningStats) WinRate() float64 {
	if o.Games == 0 {
		return 0
	}
	return float64(o.Wins) / float64(o.Games)
}

// Score returns points per game, counting draws as half.
func (o OpeningStats) Score() float64 {
	if o.Games == 0 {
		return 0
	}
	return (float64(o.Wins) + float64(o.Draws)/2) / float64(o.Games)
}

// Profile is the aggregate of a player's analysed games.
type Profile struct {
	Username string `json:"username"`

	// TotalGames is the number of aggregated games (N); FetchedGames the
	// number fetched (M). Partial is set when N < M.
	TotalGames   int  `json:"total_games"`
	FetchedGames int  `json:"fetched_games"`
	Partial      bool `json:"partial"`

	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`

	Openings map[string]OpeningStats `json:"openings"`

	// TacticalScore is swings / (swings + quiet plies): near 1 for sharp
	// games, near 0 for quiet maneuvering.
	TacticalScore float64 `json:"tactical_score"`

	// TimeTroubleIncidence is the fraction of games with a dip in time
	// trouble.
	TimeTroubleIncidence float64 `json:"time_trouble_incidence"`

	DipsPerGame        float64 `json:"dips_per_game"`
	BlundersPerGame    float64 `json:"blunders_per_game"`
	EarlySwingsPerGame float64 `json:"early_swings_per_game"`
	DipMagnitudeMean   float64 `json:"dip_magnitude_mean"`
	DipMagnitudeStdDev float64 `json:"dip_magnitude_stddev"`

	// EndgameRate is the fraction of games that reached an endgame.
	EndgameRate float64 `json:"endgame_rate"`

	Tags     []string      `json:"tags"`
	Samples  Samples       `json:"samples"`
	ByResult ResultSamples `json:"by_result"`
}

// Tally returns the opening tallies keyed by opening family.
func (p *Profile) Tally() map[string]string {
	out := make(map[string]string, len(p.Openings))
	for name, o := range p.Openings {
		out[name] = o.Tally()
	}
	return out
}

// totals accumulates the numbers the rates are derived from.
type totals struct {
	swings, quiet    int
	dips, blunders   int
	earlySwings      int
	timeTroubleGames int
	endgames         int
	magnitudes       []float64
}

// Aggregate folds items into a profile.
func Aggregate(items []Item, opts Options) *Profile {
	style := opts.Style.withDefaults()

	games := analysed(items)

	p := &Profile{
		Username:     opts.Username,
		TotalGames:   len(games),
		FetchedGames: max(opts.Fetched, len(items)),
		Openings:     make(map[string]OpeningStats),
		Tags:         []string{},
	}
	p.Partial = p.TotalGames < p.FetchedGames

	var t totals
	for _, it := range games {
		rec, e := it.Record, it.Entry

		o := p.Openings[openingKey(e.Opening)]
		o.Name = openingKey(e.Opening)
		if o.ECO == "" || e.Opening.ECO < o.ECO {
			o.ECO = e.Opening.ECO
		}
		o.Games++
		switch rec.Result {
		case game.Win:
			o.Wins++
			p.Wins++
		case game.Loss:
			o.Losses++
			p.Losses++
		case game.Draw:
			o.Draws++
			p.Draws++
		}
		p.Openings[o.Name] = o

		s := e.Summary
		t.swings += s.Swings
		t.quiet += s.QuietPlies
		t.dips += s.Dips
		t.blunders += s.Blunders
		t.earlySwings += s.EarlySwings
		if s.TimeTroubleDips > 0 {
			t.timeTroubleGames++
		}
		if reachedEndgame(rec) {
			t.endgames++
		}
		for _, ev := range e.Events {
			t.magnitudes = append(t.magnitudes, float64(ev.Magnitude))
		}
	}

	if n := float64(p.TotalGames); n > 0 {
		p.TimeTroubleIncidence = float64(t.timeTroubleGames) / n
		p.DipsPerGame = float64(t.dips+t.blunders) / n
		p.BlundersPerGame = float64(t.blunders) / n
		p.EarlySwingsPerGame = float64(t.earlySwings) / n
		p.EndgameRate = float64(t.endgames) / n
	}
	if t.swings+t.quiet > 0 {
		p.TacticalScore = float64(t.swings) / float64(t.swings+t.quiet)
	}
	p.DipMagnitudeMean, p.DipMagnitudeStdDev = meanStdDev(t.magnitudes)

	p.Tags = Tags(p, style)
	p.Samples = selectSamples(games, opts.Losing)
	p.ByResult = resultSamples(games)
	return p
}

// analysed returns the items with an entry, sorted by game ID.
func analysed(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Record == nil || it.Entry == nil {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Record.ID < out[j].Record.ID
	})
	return out
}

func openingKey(l openings.Label) string {
	if l.Name == "" {
		return openings.Unclassified.Name
	}
	return l.Family()
}

func reachedEndgame(rec *game.Record) bool {
	if rec.FinalFEN == "" {
		return false
	}
	m, err := fen.ParseMaterial(rec.FinalFEN)
	if err != nil {
		return false
	}
	return m.Phase() == fen.Endgame
}

// meanStdDev returns the mean and sample standard deviation of xs. The
// values are sorted first so the floating-point result does not depend on
// input order.
func meanStdDev(xs []float64) (float64, float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return stat.MeanStdDev(sorted, nil)
}

// GameRef points at a game in the profile's samples.
type GameRef struct {
	ID       string    `json:"id"`
	URL      string    `json:"url,omitempty"`
	Opponent string    `json:"opponent"`
	Color    string    `json:"color"`
	Result   string    `json:"result"`
	Opening  string    `json:"opening"`
	EndTime  time.Time `json:"end_time"`
	Dips     int       `json:"dips"`
	Blunders int       `json:"blunders"`
	Lowest   int       `json:"lowest_eval"`
	Final    int       `json:"final_eval"`
}

func refOf(it Item) *GameRef {
	rec, e := it.Record, it.Entry
	return &GameRef{
		ID:       rec.ID,
		URL:      rec.URL,
		Opponent: rec.Opponent(),
		Color:    rec.Color.String(),
		Result:   rec.Result.String(),
		Opening:  e.Opening.String(),
		EndTime:  rec.EndTime,
		Dips:     e.Summary.Dips,
		Blunders: e.Summary.Blunders,
		Lowest:   e.Summary.LowestEval,
		Final:    e.Summary.FinalEval,
	}
}
