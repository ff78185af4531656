package profile

import (
	"math"
	"sort"

	"github.com/discochess/coach/internal/game"
)

// MaxResultSamples is the number of games listed per result.
const MaxResultSamples = 5

// Samples are representative games chosen by fixed scoring rules. Ties go
// to the most recent game.
type Samples struct {
	// BestWin is the win with the fewest dips and the least evaluation
	// lost.
	BestWin *GameRef `json:"best_win,omitempty"`

	// Recovery is the non-lost game with the lowest evaluation, provided
	// it fell into a losing position.
	Recovery *GameRef `json:"recovery,omitempty"`

	// TypicalLoss is the loss whose dip count is closest to the average
	// loss.
	TypicalLoss *GameRef `json:"typical_loss,omitempty"`
}

// ResultSamples lists up to MaxResultSamples games per result, cleanest
// games first.
type ResultSamples struct {
	Wins   []GameRef `json:"wins"`
	Losses []GameRef `json:"losses"`
	Draws  []GameRef `json:"draws"`
}

// pick returns the best eligible item. cmp returns a negative number when a
// is better than b; equal items are ordered by recency.
func pick(items []Item, eligible func(Item) bool, cmp func(a, b Item) float64) *GameRef {
	var best *Item
	for i := range items {
		it := items[i]
		if !eligible(it) {
			continue
		}
		if best == nil {
			best = &items[i]
			continue
		}
		c := cmp(it, *best)
		if c < 0 || (c == 0 && it.Record.Newer(best.Record)) {
			best = &items[i]
		}
	}
	if best == nil {
		return nil
	}
	return refOf(*best)
}

func selectSamples(items []Item, losing int) Samples {
	var s Samples

	s.BestWin = pick(items,
		func(it Item) bool { return it.Record.Result == game.Win },
		func(a, b Item) float64 {
			sa, sb := a.Entry.Summary, b.Entry.Summary
			if d := sa.Events() - sb.Events(); d != 0 {
				return float64(d)
			}
			if d := sa.TotalLoss - sb.TotalLoss; d != 0 {
				return float64(d)
			}
			return float64(sb.FinalEval - sa.FinalEval)
		})

	s.Recovery = pick(items,
		func(it Item) bool {
			return it.Record.Result != game.Loss && it.Entry.Summary.LowestEval < losing
		},
		func(a, b Item) float64 {
			return float64(a.Entry.Summary.LowestEval - b.Entry.Summary.LowestEval)
		})

	var lossEvents, losses int
	for _, it := range items {
		if it.Record.Result == game.Loss {
			lossEvents += it.Entry.Summary.Events()
			losses++
		}
	}
	if losses > 0 {
		mean := float64(lossEvents) / float64(losses)
		s.TypicalLoss = pick(items,
			func(it Item) bool { return it.Record.Result == game.Loss },
			func(a, b Item) float64 {
				da := math.Abs(float64(a.Entry.Summary.Events()) - mean)
				db := math.Abs(float64(b.Entry.Summary.Events()) - mean)
				return da - db
			})
	}
	return s
}

func resultSamples(items []Item) ResultSamples {
	byResult := map[game.Result][]Item{}
	for _, it := range items {
		byResult[it.Record.Result] = append(byResult[it.Record.Result], it)
	}

	list := func(r game.Result) []GameRef {
		games := byResult[r]
		sort.SliceStable(games, func(i, j int) bool {
			ei, ej := games[i].Entry.Summary.Events(), games[j].Entry.Summary.Events()
			if ei != ej {
				return ei < ej
			}
			return games[i].Record.Newer(games[j].Record)
		})
		refs := make([]GameRef, 0, MaxResultSamples)
		for _, it := range games {
			if len(refs) == MaxResultSamples {
				break
			}
			refs = append(refs, *refOf(it))
		}
		return refs
	}

	return ResultSamples{
		Wins:   list(game.Win),
		Losses: list(game.Loss),
		Draws:  list(game.Draw),
	}
}
