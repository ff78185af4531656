package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/discochess/coach/internal/engine"
	"github.com/discochess/coach/internal/game"
)

// cp builds a trace of White-perspective centipawn scores; nil entries are
// unevaluated plies.
func cp(values ...*int) Trace {
	trace := make(Trace, len(values))
	for i, v := range values {
		trace[i] = PlyEval{Ply: i}
		if v != nil {
			trace[i].Score = &engine.Score{CP: *v}
		}
	}
	return trace
}

func v(n int) *int { return &n }

func flat(n, value int) []*int {
	out := make([]*int, n)
	for i := range out {
		out[i] = v(value)
	}
	return out
}

var rapid = game.ParseTimeControl("600")

func TestDetect_FlatTraceHasNoEvents(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	trace := cp(flat(41, 20)...)

	events := d.Detect(trace, game.White, rapid)
	assert.Empty(t, events)

	sum := d.Summarize(trace, game.White, events)
	assert.Equal(t, 41, sum.EvaluatedPlies)
	assert.Equal(t, 40, sum.QuietPlies)
	assert.Zero(t, sum.Swings)
}

func TestDetect_SingleBlunder(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	values := append(flat(24, 50), flat(17, -300)...)
	trace := cp(values...)

	events := d.Detect(trace, game.White, rapid)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, 24, ev.Ply)
	assert.Equal(t, SeverityBlunder, ev.Severity)
	assert.Equal(t, 350, ev.Magnitude)
	assert.Equal(t, 50, ev.Before)
	assert.Equal(t, -300, ev.After)

	sum := d.Summarize(trace, game.White, events)
	assert.Equal(t, 1, sum.Blunders)
	assert.Equal(t, 0, sum.Dips)
	assert.Equal(t, 1, sum.Swings)
	assert.Equal(t, 350, sum.TotalLoss)
	assert.Equal(t, -300, sum.LowestEval)
	assert.Equal(t, 50, sum.HighestEval)
}

func TestNewDetector_ZeroLosingBoundIsKept(t *testing.T) {
	// A 160 cp drop from +100 to -60 is only a dip under the default bound
	// but crosses a losing bound of zero.
	trace := cp(v(100), v(100), v(-60))

	events := NewDetector(DefaultThresholds()).Detect(trace, game.White, rapid)
	require.Len(t, events, 1)
	assert.Equal(t, SeverityDip, events[0].Severity)

	th := DefaultThresholds()
	th.Losing = 0
	events = NewDetector(th).Detect(trace, game.White, rapid)
	require.Len(t, events, 1)
	assert.Equal(t, SeverityBlunder, events[0].Severity)
}

func TestDetect_BlackPerspective(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	// White's evaluation rising is Black's evaluation dropping.
	trace := cp(v(-50), v(-50), v(300))

	events := d.Detect(trace, game.Black, rapid)
	require.Len(t, events, 1)
	assert.Equal(t, 350, events[0].Magnitude)
	assert.Empty(t, d.Detect(trace, game.White, rapid))
}

func TestDetect_Severity(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	tests := []struct {
		name          string
		before, after int
		want          []Severity
	}{
		{"below threshold", 100, -40, nil},
		{"dip", 400, 200, []Severity{SeverityDip}},
		{"dip into losing is a blunder", 50, -160, []Severity{SeverityBlunder}},
		{"large drop", 800, 450, []Severity{SeverityBlunder}},
		{"already losing", -400, -600, []Severity{SeverityDip}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := d.Detect(cp(v(tt.before), v(tt.after)), game.White, rapid)
			var got []Severity
			for _, ev := range events {
				got = append(got, ev.Severity)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetect_MissingEvaluationsAreSkipped(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	trace := cp(v(200), v(200), nil, v(0))

	events := d.Detect(trace, game.White, rapid)
	require.Len(t, events, 1)
	assert.Equal(t, 3, events[0].Ply)
	assert.Equal(t, 200, events[0].Magnitude)
}

func TestDetect_ShortTrace(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	assert.Empty(t, d.Detect(cp(v(500)), game.White, rapid))
	assert.Empty(t, d.Detect(nil, game.White, rapid))
}

func TestDetect_MateScores(t *testing.T) {
	d := NewDetector(DefaultThresholds())

	mate := func(n int) PlyEval { return PlyEval{Score: &engine.Score{Mate: n}} }
	score := func(c int) PlyEval { return PlyEval{Score: &engine.Score{CP: c}} }
	number := func(tr Trace) Trace {
		for i := range tr {
			tr[i].Ply = i
		}
		return tr
	}

	// Walking into a forced mate is a blunder with a clamped magnitude.
	events := d.Detect(number(Trace{score(-400), mate(-5)}), game.White, rapid)
	require.Len(t, events, 1)
	assert.Equal(t, 9600, events[0].Magnitude)

	// Being mated already: no further dips.
	assert.Empty(t, d.Detect(number(Trace{mate(-3), mate(-2)}), game.White, rapid))

	// Missing a faster mate while still winning is not a dip.
	assert.Empty(t, d.Detect(number(Trace{mate(3), score(900)}), game.White, rapid))

	// Throwing away a mate is.
	events = d.Detect(number(Trace{mate(3), score(-200)}), game.White, rapid)
	require.Len(t, events, 1)
	assert.Equal(t, 10200, events[0].Magnitude)
}

func TestDetect_TimeTrouble(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	blitz := game.ParseTimeControl("180")

	values := append(flat(24, 50), flat(3, -300)...)
	trace := cp(values...)
	low := 10 * time.Second
	trace[23].Clock = &low // White's clock after ply 23

	events := d.Detect(trace, game.White, blitz)
	require.Len(t, events, 1)
	assert.True(t, events[0].InTimeTrouble)
	require.NotNil(t, events[0].Clock)
	assert.Equal(t, low, *events[0].Clock)

	plenty := 90 * time.Second
	trace[23].Clock = &plenty
	events = d.Detect(trace, game.White, blitz)
	require.Len(t, events, 1)
	assert.False(t, events[0].InTimeTrouble)
}

func TestDetect_TimeTroubleWithoutClocks(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	blitz := game.ParseTimeControl("180+2")

	early := cp(append(flat(24, 50), v(-300))...)
	events := d.Detect(early, game.White, blitz)
	require.Len(t, events, 1)
	assert.False(t, events[0].InTimeTrouble)

	late := cp(append(flat(64, 50), v(-300))...)
	events = d.Detect(late, game.White, blitz)
	require.Len(t, events, 1)
	assert.True(t, events[0].InTimeTrouble)

	// Long games never fall back to the late-game rule.
	events = d.Detect(late, game.White, game.ParseTimeControl("1800"))
	require.Len(t, events, 1)
	assert.False(t, events[0].InTimeTrouble)
}

func TestBuildTrace(t *testing.T) {
	rec := &game.Record{
		ID:          "g1",
		Moves:       []string{"e4", "e5"},
		Clocks:      []time.Duration{179 * time.Second, 178 * time.Second},
		TimeControl: game.ParseTimeControl("180"),
	}
	results := []engine.PlyResult{
		{Ply: 0, Result: engine.Evaluation(engine.Score{CP: 20}, 18, "e2e4")},
		{Ply: 2, Result: engine.Evaluation(engine.Score{CP: 25}, 18, "g1f3")},
	}

	trace := BuildTrace(rec, results)
	require.Len(t, trace, 3)
	assert.Equal(t, "", trace[0].Move)
	assert.Equal(t, "e5", trace[2].Move)
	assert.Nil(t, trace[1].Score)
	require.NotNil(t, trace[2].Score)
	assert.Equal(t, 25, trace[2].Score.CP)
	require.NotNil(t, trace[1].Spent)
	assert.Equal(t, time.Second, *trace[1].Spent)
	assert.Equal(t, 2, trace.Evaluated())
}
