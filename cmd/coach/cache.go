package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discochess/coach/internal/cache"
	"github.com/discochess/coach/internal/pipeline"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show analysis cache statistics",
	RunE:  runStats,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check every cached entry for corruption",
	Long: `Decode every cached entry and report the ones that fail to decode or
validate. With --repair, corrupt entries are deleted so the next update
re-evaluates those games.`,
	RunE: runVerify,
}

var repair bool

func init() {
	verifyCmd.Flags().BoolVar(&repair, "repair", false, "delete corrupt entries")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := readOnly(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	st, err := c.Cache().Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Backend:  %s\n", cfg.Store.Backend)
	fmt.Printf("Codec:    %s\n", c.Cache().Codec().Name())
	fmt.Printf("Entries:  %d\n", st.Entries)
	fmt.Printf("Games:    %d\n", st.Games)
	fmt.Printf("Size:     %s\n", pipeline.FormatBytes(st.Bytes))

	m, err := c.Cache().ReadManifest(ctx)
	switch {
	case errors.Is(err, cache.ErrNotFound):
		fmt.Println("Manifest: none (no update has completed yet)")
		return nil
	case err != nil:
		return err
	}
	fmt.Println()
	fmt.Printf("Manifest version: %d\n", m.Version)
	fmt.Printf("  Username: %s\n", m.Username)
	fmt.Printf("  Codec:    %s\n", m.Codec)
	fmt.Printf("  Engine:   %s\n", m.EngineFingerprint)
	fmt.Printf("  Analysis: %s\n", m.AnalysisFingerprint)
	fmt.Printf("  Openings: %s\n", m.OpeningsVersion)

	stale, err := c.Pipeline().Stale(ctx)
	if err != nil {
		return err
	}
	if stale {
		fmt.Println("\nDerived data is stale; run 'coach rederive'.")
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	c, err := readOnly(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	report, err := c.Cache().Verify(ctx, repair)
	if err != nil {
		return err
	}
	fmt.Printf("Checked %d entries\n", report.Checked)
	for _, id := range report.Corrupt {
		fmt.Printf("  corrupt: %s\n", id)
	}
	for _, id := range report.Missing {
		fmt.Printf("  missing game record: %s\n", id)
	}
	switch {
	case len(report.Corrupt) == 0:
		fmt.Println("No corrupt entries.")
	case repair:
		fmt.Printf("Removed %d corrupt entries.\n", len(report.Corrupt))
	default:
		fmt.Printf("%d corrupt entries; run with --repair to remove them.\n", len(report.Corrupt))
	}
	return nil
}
