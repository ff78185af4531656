package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/discochess/coach"
	"github.com/discochess/coach/internal/chesscom"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Fetch recent games, analyse new ones and update the profile",
	Long: `Fetch the player's games from the last months_back months of chess.com
archives, evaluate every game not analysed yet and print the updated profile.

Games whose evaluation fails (engine crash or timeout) are listed and retried
on the next update.

Examples:
  coach update --user magnus
  COACH_ENGINE_MOVE_TIME=500ms coach update`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRefresh(false)
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-analyse every fetched game from scratch",
	Long: `Fetch the player's recent games and recompute every cache entry, removing
entries for games that are no longer fetched. Use this after changing the
engine or its settings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRefresh(true)
	},
}

var rederiveCmd = &cobra.Command{
	Use:   "rederive",
	Short: "Recompute dips and openings from cached evaluations",
	Long: `Re-run dip detection and opening classification over the cached engine
evaluations without starting the engine. Use this after changing thresholds
or the opening dataset.`,
	RunE: runRederive,
}

func init() {
	rootCmd.AddCommand(updateCmd, rebuildCmd, rederiveCmd)
}

func newFetcher() *chesscom.Client {
	return chesscom.New(
		chesscom.WithRequestsPerMinute(cfg.RequestsPerMinute),
		chesscom.WithLogger(logger),
	)
}

func runRefresh(rebuild bool) error {
	if err := cfg.RequireUsername(); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	c, err := openCoach(ctx, nil, true)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Printf("Analysing games for %s\n", cfg.Username)
	fmt.Printf("  Months:   %d\n", cfg.MonthsBack)
	fmt.Printf("  Engine:   %s (%s per move)\n", cfg.Engine.Path, cfg.Engine.MoveTime)
	fmt.Printf("  Workers:  %d\n", cfg.Workers)
	fmt.Printf("  Backend:  %s\n", cfg.Store.Backend)
	fmt.Println()

	var snap *coach.Snapshot
	if rebuild {
		snap, err = c.Rebuild(ctx)
	} else {
		snap, err = c.Update(ctx)
	}
	if err != nil {
		return err
	}
	printSnapshot(snap)
	return nil
}

func runRederive(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := openCoach(ctx, nil, true)
	if err != nil {
		return err
	}
	defer c.Close()

	stale, err := c.Pipeline().Stale(ctx)
	if err != nil {
		return err
	}
	if !stale {
		fmt.Println("Cache is up to date with the current thresholds and openings.")
	}
	snap, err := c.Rederive(ctx)
	if err != nil {
		return err
	}
	printSnapshot(snap)
	return nil
}

func printSnapshot(snap *coach.Snapshot) {
	fmt.Println()
	fmt.Print(snap.Profile.Summary())
	if snap.Ratings != nil && len(snap.Ratings.Ratings) > 0 {
		classes := make([]string, 0, len(snap.Ratings.Ratings))
		for class := range snap.Ratings.Ratings {
			classes = append(classes, class)
		}
		sort.Strings(classes)
		fmt.Println("Ratings:")
		for _, class := range classes {
			r := snap.Ratings.Ratings[class]
			fmt.Printf("  %-10s %4d (best %d)\n", class, r.Last, r.Best)
		}
	}
	if len(snap.Failed) > 0 {
		ids := make([]string, 0, len(snap.Failed))
		for id := range snap.Failed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Printf("Failed games (%d, retried on next update):\n", len(ids))
		for _, id := range ids {
			fmt.Printf("  %s: %s\n", id, snap.Failed[id])
		}
	}
	fmt.Printf("Snapshot v%d generated %s\n", snap.Version, snap.GeneratedAt.Format("2006-01-02 15:04:05"))
}

// readOnly opens the coach for commands that only read the cache.
func readOnly(ctx context.Context) (*coach.Coach, error) {
	return openCoach(ctx, nil, false)
}

