package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/discochess/coach/internal/openings"
	"github.com/discochess/coach/internal/pipeline"
)

var fetchOpeningsCmd = &cobra.Command{
	Use:   "openings-fetch",
	Short: "Download the opening dataset",
	Long: `Download the lichess chess-openings TSV files. Once downloaded, set
openings_dir (or COACH_OPENINGS_DIR) to use them instead of the built-in
dataset. Changing the dataset marks derived data stale.`,
	RunE: runFetchOpenings,
}

var openingsURL string

func init() {
	fetchOpeningsCmd.Flags().StringVar(&openingsURL, "url", openings.DefaultBaseURL, "dataset base URL")
	rootCmd.AddCommand(fetchOpeningsCmd)
}

func runFetchOpenings(cmd *cobra.Command, args []string) error {
	dir := cfg.OpeningsDir
	if dir == "" {
		var err error
		if dir, err = dataPath("openings"); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	d := openings.NewDownloader(openings.WithBaseURL(openingsURL))
	var current string
	err := d.Fetch(ctx, dir, func(file string, written, total int64) {
		if current != "" && file != current {
			fmt.Println()
		}
		current = file
		if total > 0 {
			fmt.Printf("\r  %s: %s / %s", file, pipeline.FormatBytes(written), pipeline.FormatBytes(total))
		} else {
			fmt.Printf("\r  %s: %s", file, pipeline.FormatBytes(written))
		}
	})
	fmt.Println()
	if err != nil {
		return err
	}

	abs, _ := filepath.Abs(dir)
	fmt.Printf("Openings saved to %s\n", abs)
	if cfg.OpeningsDir == "" {
		fmt.Printf("Set COACH_OPENINGS_DIR=%s to use them.\n", abs)
	}
	return nil
}
