package analysis

import "github.com/discochess/coach/internal/game"

// Summary holds the per-game numbers the profile is aggregated from.
type Summary struct {
	EvaluatedPlies  int `json:"evaluated_plies"`
	Swings          int `json:"swings"`
	QuietPlies      int `json:"quiet_plies"`
	Dips            int `json:"dips"`
	Blunders        int `json:"blunders"`
	EarlyDips       int `json:"early_dips"`
	EarlySwings     int `json:"early_swings"`
	TimeTroubleDips int `json:"time_trouble_dips"`
	LowestEval      int `json:"lowest_eval"`
	HighestEval     int `json:"highest_eval"`
	FinalEval       int `json:"final_eval"`
	TotalLoss       int `json:"total_loss"`
}

// Events returns the number of dips including blunders.
func (s Summary) Events() int {
	return s.Dips + s.Blunders
}

// Summarize computes the summary of a trace and its detected events.
func (d *Detector) Summarize(trace Trace, color game.Color, events []Event) Summary {
	var sum Summary
	sum.EvaluatedPlies = trace.Evaluated()

	first := true
	for _, pe := range trace {
		if pe.Score == nil {
			continue
		}
		v := pe.Score.Clamp(d.th.Mate) * color.Sign()
		if first || v < sum.LowestEval {
			sum.LowestEval = v
		}
		if first || v > sum.HighestEval {
			sum.HighestEval = v
		}
		sum.FinalEval = v
		first = false
	}

	for _, s := range d.steps(trace, color) {
		delta := s.after - s.before
		if delta < 0 {
			delta = -delta
		}
		switch {
		case delta >= d.th.Dip:
			sum.Swings++
			if s.ply <= d.th.EarlyPly {
				sum.EarlySwings++
			}
		case delta < d.th.Quiet:
			sum.QuietPlies++
		}
	}

	for _, ev := range events {
		if ev.Severity == SeverityBlunder {
			sum.Blunders++
		} else {
			sum.Dips++
		}
		if ev.Ply <= d.th.EarlyPly {
			sum.EarlyDips++
		}
		if ev.InTimeTrouble {
			sum.TimeTroubleDips++
		}
		sum.TotalLoss += ev.Magnitude
	}
	return sum
}
