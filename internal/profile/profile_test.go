package profile

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discochess/coach/internal/analysis"
	"github.com/discochess/coach/internal/cache"
	"github.com/discochess/coach/internal/game"
	"github.com/discochess/coach/internal/openings"
)

var (
	queensGambit = openings.Label{ECO: "D06", Name: "Queen's Gambit"}
	qgDeclined   = openings.Label{ECO: "D30", Name: "Queen's Gambit Declined"}
	sicilian     = openings.Label{ECO: "B20", Name: "Sicilian Defense"}
	najdorf      = openings.Label{ECO: "B90", Name: "Sicilian Defense: Najdorf Variation"}
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type gameSpec struct {
	id      string
	result  game.Result
	opening openings.Label
	summary analysis.Summary
	dips    []int
	ago     time.Duration
	final   string
}

func (g gameSpec) item() Item {
	rec := &game.Record{
		ID:       g.id,
		URL:      "https://www.chess.com/game/live/" + g.id,
		White:    "alice",
		Black:    "opp-" + g.id,
		Color:    game.White,
		Result:   g.result,
		EndTime:  base.Add(-g.ago),
		FinalFEN: g.final,
	}
	e := &cache.Entry{GameID: g.id, Opening: g.opening, Summary: g.summary, Events: []analysis.Event{}}
	for i, m := range g.dips {
		sev := analysis.SeverityDip
		if m >= 300 {
			sev = analysis.SeverityBlunder
		}
		e.Events = append(e.Events, analysis.Event{Ply: 10 + i, Severity: sev, Magnitude: m})
	}
	return Item{Record: rec, Entry: e}
}

func sampleGames() []gameSpec {
	return []gameSpec{
		{id: "1001", result: game.Win, opening: queensGambit, ago: 5 * time.Hour,
			summary: analysis.Summary{EvaluatedPlies: 60, Swings: 2, QuietPlies: 40, Dips: 1, FinalEval: 900, LowestEval: -20, TotalLoss: 180},
			dips:    []int{180}},
		{id: "1002", result: game.Win, opening: queensGambit, ago: 4 * time.Hour,
			summary: analysis.Summary{EvaluatedPlies: 50, Swings: 0, QuietPlies: 45, FinalEval: 1200, LowestEval: 10}},
		{id: "1003", result: game.Loss, opening: sicilian, ago: 3 * time.Hour,
			summary: analysis.Summary{EvaluatedPlies: 40, Swings: 4, QuietPlies: 20, Dips: 1, Blunders: 1, TimeTroubleDips: 1, EarlySwings: 2, FinalEval: -800, LowestEval: -800, TotalLoss: 600},
			dips:    []int{200, 400}},
	}
}

func items(specs []gameSpec) []Item {
	out := make([]Item, len(specs))
	for i, s := range specs {
		out[i] = s.item()
	}
	return out
}

func TestAggregate_OpeningTally(t *testing.T) {
	p := Aggregate(items(sampleGames()), Options{Username: "alice"})

	assert.Equal(t, map[string]string{
		"Queen's Gambit":   "2-0-0",
		"Sicilian Defense": "0-1-0",
	}, p.Tally())
	assert.Equal(t, 3, p.TotalGames)
	assert.Equal(t, 3, p.FetchedGames)
	assert.False(t, p.Partial)
	assert.Equal(t, 2, p.Wins)
	assert.Equal(t, 1, p.Losses)
}

func TestAggregate_Rates(t *testing.T) {
	p := Aggregate(items(sampleGames()), Options{})

	assert.InDelta(t, 6.0/(6.0+105.0), p.TacticalScore, 1e-9)
	assert.InDelta(t, 1.0/3.0, p.TimeTroubleIncidence, 1e-9)
	assert.InDelta(t, 1.0, p.DipsPerGame, 1e-9)
	assert.InDelta(t, 1.0/3.0, p.BlundersPerGame, 1e-9)
	assert.InDelta(t, 2.0/3.0, p.EarlySwingsPerGame, 1e-9)
	assert.InDelta(t, 260.0, p.DipMagnitudeMean, 1e-9)
	assert.InDelta(t, 121.655250605964, p.DipMagnitudeStdDev, 1e-6)
	assert.Equal(t, []string{TagPositional, TagTimeTrouble}, p.Tags)
}

func TestAggregate_OrderIndependent(t *testing.T) {
	specs := sampleGames()
	specs = append(specs,
		gameSpec{id: "1004", result: game.Draw, opening: najdorf, ago: 2 * time.Hour,
			summary: analysis.Summary{EvaluatedPlies: 80, Swings: 3, QuietPlies: 50, Dips: 2, LowestEval: -400, TotalLoss: 333},
			dips:    []int{151, 182}},
		gameSpec{id: "1005", result: game.Loss, opening: qgDeclined, ago: time.Hour,
			summary: analysis.Summary{EvaluatedPlies: 30, Swings: 1, QuietPlies: 12, Blunders: 1, TotalLoss: 977},
			dips:    []int{977}},
	)
	want := Aggregate(items(specs), Options{Username: "alice"})

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		shuffled := items(specs)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, Aggregate(shuffled, Options{Username: "alice"}))
	}
}

func TestAggregate_AddingGameOnlyChangesItsOpening(t *testing.T) {
	before := Aggregate(items(sampleGames()), Options{})

	specs := append(sampleGames(), gameSpec{id: "1004", result: game.Draw, opening: najdorf,
		summary: analysis.Summary{EvaluatedPlies: 30}})
	after := Aggregate(items(specs), Options{})

	assert.Equal(t, before.Openings["Queen's Gambit"], after.Openings["Queen's Gambit"])
	sic := after.Openings["Sicilian Defense"]
	assert.Equal(t, "0-1-1", sic.Tally(), "variation tallied under its family")
	assert.Equal(t, "B20", sic.ECO)
	assert.Equal(t, before.Wins, after.Wins)
	assert.Equal(t, before.Draws+1, after.Draws)
}

func TestAggregate_Partial(t *testing.T) {
	its := items(sampleGames())
	its[2].Entry = nil

	p := Aggregate(its, Options{Fetched: 5})
	assert.Equal(t, 2, p.TotalGames)
	assert.Equal(t, 5, p.FetchedGames)
	assert.True(t, p.Partial)
	assert.NotContains(t, p.Openings, "Sicilian Defense")
	assert.Contains(t, p.Summary(), "partial: 2 of 5")
}

func TestAggregate_Empty(t *testing.T) {
	p := Aggregate(nil, Options{Username: "alice"})
	assert.Zero(t, p.TotalGames)
	assert.Empty(t, p.Tags)
	assert.Nil(t, p.Samples.BestWin)
	assert.Empty(t, p.Openings)
}

func TestAggregate_Unclassified(t *testing.T) {
	spec := gameSpec{id: "1", result: game.Win, opening: openings.Unclassified}
	p := Aggregate([]Item{spec.item()}, Options{})
	assert.Equal(t, "1-0-0", p.Openings["Unclassified"].Tally())
}

func TestAggregate_EndgameRate(t *testing.T) {
	specs := sampleGames()
	specs[0].final = "8/5k2/8/8/3K4/8/5P2/8 b - - 0 60"
	specs[1].final = "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 2"

	p := Aggregate(items(specs), Options{})
	assert.InDelta(t, 1.0/3.0, p.EndgameRate, 1e-9)
}

func TestSamples_ZeroLosingBound(t *testing.T) {
	specs := []gameSpec{
		{id: "2001", result: game.Draw, opening: najdorf, ago: time.Hour,
			summary: analysis.Summary{Dips: 1, LowestEval: -60}},
	}

	p := Aggregate(items(specs), Options{Losing: -150})
	assert.Nil(t, p.Samples.Recovery, "-60 is not below -150")

	p = Aggregate(items(specs), Options{Losing: 0})
	require.NotNil(t, p.Samples.Recovery)
	assert.Equal(t, "2001", p.Samples.Recovery.ID)
}

func TestSamples(t *testing.T) {
	specs := sampleGames()
	specs = append(specs,
		gameSpec{id: "1004", result: game.Draw, opening: najdorf, ago: 2 * time.Hour,
			summary: analysis.Summary{Dips: 2, LowestEval: -400}},
		gameSpec{id: "1005", result: game.Loss, opening: qgDeclined, ago: time.Hour,
			summary: analysis.Summary{Blunders: 1}},
		gameSpec{id: "0999", result: game.Loss, opening: qgDeclined, ago: 30 * time.Hour,
			summary: analysis.Summary{Dips: 4}},
	)
	p := Aggregate(items(specs), Options{Losing: -150})

	require.NotNil(t, p.Samples.BestWin)
	assert.Equal(t, "1002", p.Samples.BestWin.ID)

	require.NotNil(t, p.Samples.Recovery)
	assert.Equal(t, "1004", p.Samples.Recovery.ID)

	// Loss events: 2, 1, 4 -> mean 2.33; 1003 (2 events) is closest.
	require.NotNil(t, p.Samples.TypicalLoss)
	assert.Equal(t, "1003", p.Samples.TypicalLoss.ID)

	ids := func(refs []GameRef) []string {
		var out []string
		for _, r := range refs {
			out = append(out, r.ID)
		}
		return out
	}
	assert.Equal(t, []string{"1002", "1001"}, ids(p.ByResult.Wins))
	assert.Equal(t, []string{"1005", "1003", "0999"}, ids(p.ByResult.Losses))
	assert.Equal(t, []string{"1004"}, ids(p.ByResult.Draws))
}

func TestSamples_TiesGoToMostRecent(t *testing.T) {
	clean := analysis.Summary{FinalEval: 500}
	specs := []gameSpec{
		{id: "1", result: game.Win, opening: sicilian, summary: clean, ago: 3 * time.Hour},
		{id: "2", result: game.Win, opening: sicilian, summary: clean, ago: time.Hour},
		{id: "3", result: game.Win, opening: sicilian, summary: clean, ago: 2 * time.Hour},
	}
	p := Aggregate(items(specs), Options{})
	require.NotNil(t, p.Samples.BestWin)
	assert.Equal(t, "2", p.Samples.BestWin.ID)
	assert.Equal(t, "opp-2", p.Samples.BestWin.Opponent)
}

func TestTags(t *testing.T) {
	tests := []struct {
		name string
		p    Profile
		want []string
	}{
		{"too few games", Profile{TotalGames: 0, TacticalScore: 0.9}, []string{}},
		{"tactical", Profile{TotalGames: 10, TacticalScore: 0.3, DipsPerGame: 2}, []string{TagTactical}},
		{"positional and solid", Profile{TotalGames: 10, TacticalScore: 0.05, DipsPerGame: 0.2}, []string{TagPositional, TagSolid}},
		{"blunder prone", Profile{TotalGames: 10, TacticalScore: 0.2, DipsPerGame: 3, BlundersPerGame: 1.5},
			[]string{TagBlunderProne}},
		{"aggressive in time trouble", Profile{TotalGames: 10, TacticalScore: 0.2, DipsPerGame: 1,
			EarlySwingsPerGame: 1.2, TimeTroubleIncidence: 0.5}, []string{TagAggressive, TagTimeTrouble}},
		{"endgame", Profile{TotalGames: 10, TacticalScore: 0.2, DipsPerGame: 1, EndgameRate: 0.6}, []string{TagEndgame}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tags(&tt.p, StyleThresholds{}))
		})
	}
}

func TestQueries(t *testing.T) {
	specs := sampleGames()
	specs = append(specs, gameSpec{id: "1004", result: game.Win, opening: najdorf})
	p := Aggregate(items(specs), Options{})

	byRate := p.OpeningsByWinRate(1)
	require.Len(t, byRate, 2)
	assert.Equal(t, "Queen's Gambit", byRate[0].Name)
	assert.Equal(t, "Sicilian Defense", byRate[1].Name)
	assert.InDelta(t, 0.5, byRate[1].WinRate(), 1e-9)

	assert.Len(t, p.OpeningsByWinRate(3), 0)

	top := p.MostPlayed(1)
	require.Len(t, top, 1)
	assert.Equal(t, "Queen's Gambit", top[0].Name, "ties broken by name")

	summary := p.Summary()
	assert.Contains(t, summary, "Games analysed: 4")
	assert.Contains(t, summary, "Queen's Gambit")
}
