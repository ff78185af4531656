package main

import (
	"fmt"
	"os"

	"github.com/notnil/chess"
	"github.com/spf13/cobra"

	"github.com/discochess/coach/internal/game"
	"github.com/discochess/coach/internal/store/memstore"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [PGN file]",
	Short: "Find dips and blunders in games from a local PGN file",
	Long: `Evaluate the games of a PGN file with the engine and print every dip and
blunder of the given player. Results are not cached.

Examples:
  coach analyze games.pgn --player magnus --games 5`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	analyzePlayer string
	analyzeGames  int
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzePlayer, "player", "", "player to analyse (default the configured username)")
	analyzeCmd.Flags().IntVar(&analyzeGames, "games", 10, "max games to analyse")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	player := analyzePlayer
	if player == "" {
		player = cfg.Username
	}
	if player == "" {
		return fmt.Errorf("no player given: pass --player or set a username")
	}

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening PGN: %w", err)
	}
	defer f.Close()

	ctx, cancel := signalContext()
	defer cancel()

	c, err := openCoach(ctx, memstore.New(), false)
	if err != nil {
		return err
	}
	defer c.Close()
	p := c.Pipeline()

	scanner := chess.NewScanner(f)
	analysed, skipped := 0, 0
	for analysed < analyzeGames && scanner.Scan() {
		g := scanner.Next()
		rec, err := game.ParsePGN(g.String(), player)
		if err != nil {
			skipped++
			continue
		}
		analysed++
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("%s-%d", args[0], analysed)
		}

		fmt.Printf("\n=== Game %d: %s vs %s (%s as %s) ===\n", analysed, rec.White, rec.Black, rec.Result, rec.Color)
		trace, err := p.Trace(ctx, rec)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Printf("  evaluation failed: %v\n", err)
			continue
		}
		e := p.Derive(rec, trace)
		fmt.Printf("  Opening: %s\n", e.Opening)
		for _, ev := range e.Events {
			fmt.Printf("  Ply %3d %-8s %-8s %+5d -> %+5d (%d cp)%s\n",
				ev.Ply, ev.Move, ev.Severity, ev.Before, ev.After, ev.Magnitude, timeNote(ev.InTimeTrouble))
		}
		fmt.Printf("  %d dips, %d blunders, lowest %+d, final %+d\n",
			e.Summary.Dips, e.Summary.Blunders, e.Summary.LowestEval, e.Summary.FinalEval)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading PGN: %w", err)
	}

	fmt.Printf("\n=== Summary ===\n")
	fmt.Printf("Games analysed: %d\n", analysed)
	if skipped > 0 {
		fmt.Printf("Games skipped:  %d (not played by %s or unreadable)\n", skipped, player)
	}
	return nil
}

func timeNote(inTrouble bool) string {
	if inTrouble {
		return " [time trouble]"
	}
	return ""
}
