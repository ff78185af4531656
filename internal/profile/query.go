package profile

import (
	"fmt"
	"sort"
	"strings"
)

// OpeningList returns the opening tallies ordered by name.
func (p *Profile) OpeningList() []OpeningStats {
	out := make([]OpeningStats, 0, len(p.Openings))
	for _, o := range p.Openings {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// OpeningsByWinRate returns openings played at least minGames times, best
// win rate first. Ties go to the more played opening, then by name.
func (p *Profile) OpeningsByWinRate(minGames int) []OpeningStats {
	var out []OpeningStats
	for _, o := range p.OpeningList() {
		if o.Games >= minGames {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if wi, wj := out[i].WinRate(), out[j].WinRate(); wi != wj {
			return wi > wj
		}
		return out[i].Games > out[j].Games
	})
	return out
}

// MostPlayed returns the n most played openings.
func (p *Profile) MostPlayed(n int) []OpeningStats {
	out := p.OpeningList()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Games > out[j].Games })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Summary returns a plain-text style summary.
func (p *Profile) Summary() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Player: %s\n", p.Username)
	fmt.Fprintf(&b, "Games analysed: %d", p.TotalGames)
	if p.Partial {
		fmt.Fprintf(&b, " (partial: %d of %d fetched games)", p.TotalGames, p.FetchedGames)
	}
	fmt.Fprintf(&b, "\nRecord: %d wins, %d losses, %d draws\n", p.Wins, p.Losses, p.Draws)

	tags := "none"
	if len(p.Tags) > 0 {
		tags = strings.Join(p.Tags, ", ")
	}
	fmt.Fprintf(&b, "Style: %s\n", tags)
	fmt.Fprintf(&b, "Tactical score: %.2f\n", p.TacticalScore)
	fmt.Fprintf(&b, "Dips per game: %.2f (blunders %.2f)\n", p.DipsPerGame, p.BlundersPerGame)
	if p.DipMagnitudeMean > 0 {
		fmt.Fprintf(&b, "Average dip: %.0fcp (stddev %.0fcp)\n", p.DipMagnitudeMean, p.DipMagnitudeStdDev)
	}
	fmt.Fprintf(&b, "Games with a time-trouble dip: %.0f%%\n", p.TimeTroubleIncidence*100)
	fmt.Fprintf(&b, "Games reaching an endgame: %.0f%%\n", p.EndgameRate*100)

	if top := p.MostPlayed(5); len(top) > 0 {
		b.WriteString("Most played openings:\n")
		for _, o := range top {
			fmt.Fprintf(&b, "  %-40s %3d games  %s\n", o.Name, o.Games, o.Tally())
		}
	}
	return b.String()
}
