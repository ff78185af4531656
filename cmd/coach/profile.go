package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/discochess/coach/internal/profile"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the player's style profile",
	Long: `Print the style summary aggregated from the cached analysis. No games are
fetched or evaluated; run 'coach update' first.`,
	RunE: runProfile,
}

var openingsCmd = &cobra.Command{
	Use:   "openings",
	Short: "List openings by win rate",
	RunE:  runOpenings,
}

var gamesCmd = &cobra.Command{
	Use:   "games",
	Short: "Show representative games",
	Long: `Show the cleanest win, the best recovery from a losing position, a typical
loss and up to five games per result.`,
	RunE: runGames,
}

var (
	outputJSON bool
	minGames   int
)

func init() {
	profileCmd.Flags().BoolVar(&outputJSON, "json", false, "output the full snapshot as JSON")
	openingsCmd.Flags().IntVar(&minGames, "min-games", 1, "only list openings played at least this often")
	gamesCmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(profileCmd, openingsCmd, gamesCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := readOnly(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	snap, err := c.Profile(ctx)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(snap)
	}
	if snap.Profile.FetchedGames == 0 {
		fmt.Println("No analysed games yet. Run 'coach update' to build the profile.")
		return nil
	}
	printSnapshot(snap)
	return nil
}

func runOpenings(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := readOnly(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	list, err := c.OpeningsByWinRate(ctx, minGames)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Println("No openings found.")
		return nil
	}
	fmt.Printf("%-4s %-44s %5s  %-8s %6s\n", "ECO", "Opening", "Games", "W-L-D", "Win%")
	for _, o := range list {
		fmt.Printf("%-4s %-44s %5d  %-8s %5.0f%%\n", o.ECO, o.Name, o.Games, o.Tally(), o.WinRate()*100)
	}
	return nil
}

func runGames(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	c, err := readOnly(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	reps, err := c.RepresentativeGames(ctx)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(reps)
	}

	printRef("Best win", reps.BestWin)
	printRef("Best recovery", reps.Recovery)
	printRef("Typical loss", reps.TypicalLoss)
	for _, group := range []struct {
		name string
		refs []profile.GameRef
	}{
		{"Wins", reps.ByResult.Wins},
		{"Losses", reps.ByResult.Losses},
		{"Draws", reps.ByResult.Draws},
	} {
		if len(group.refs) == 0 {
			continue
		}
		fmt.Printf("\n%s:\n", group.name)
		for i := range group.refs {
			printRef("", &group.refs[i])
		}
	}
	return nil
}

func printRef(label string, ref *profile.GameRef) {
	if ref == nil {
		return
	}
	if label != "" {
		fmt.Printf("%s:\n", label)
	}
	fmt.Printf("  %s vs %s as %s (%s), %s, %d dips, lowest %+d\n",
		ref.EndTime.Format("2006-01-02"), ref.Opponent, ref.Color, ref.Result, ref.Opening, ref.Dips, ref.Lowest)
	if ref.URL != "" {
		fmt.Printf("    %s\n", ref.URL)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
