package main

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/coach/internal/config"
	"github.com/discochess/coach/internal/logging"
	"github.com/discochess/coach/internal/stats"
	statslogger "github.com/discochess/coach/internal/stats/logger"
	"github.com/discochess/coach/internal/stats/prometheus"
)

var (
	// Global flags.
	configPath  string
	dataDir     string
	username    string
	metricsAddr string
	verbose     bool
)

var (
	cfg       *config.Config
	logger    *zap.Logger
	collector stats.Collector = stats.NewNoop()
)

var rootCmd = &cobra.Command{
	Use:   "coach",
	Short: "Chess coaching profile built from your chess.com games",
	Long: `Coach fetches your recent chess.com games, analyses them with a local
UCI engine such as Stockfish, classifies the openings you play and builds a
profile of your style. Every game's analysis is cached, so later updates only
analyse new games.

Settings come from a YAML file (--config or COACH_CONFIG), COACH_* environment
variables and a .env file in the working directory.

Examples:
  # Analyse new games and print the profile
  coach update --user magnus

  # Re-analyse everything from scratch
  coach rebuild

  # Ask the coach about your play
  coach ask "Which openings should I play more?"`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $COACH_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&dataDir, "data-dir", "d", "", "directory holding the analysis cache (default ./data)")
	rootCmd.PersistentFlags().StringVarP(&username, "user", "u", "", "chess.com username")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if cmd.Flags().Changed("user") {
		cfg.Username = username
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}

	logger, err = logging.New(cfg.LogLevel, verbose)
	if err != nil {
		return err
	}

	var sinks []stats.Collector
	if verbose {
		sinks = append(sinks, statslogger.New(logger))
	}
	if cfg.MetricsAddr != "" {
		sinks = append(sinks, serveMetrics(cfg.MetricsAddr))
	}
	collector = stats.NewMulti(sinks...)
	return nil
}

// serveMetrics exposes a fresh registry over HTTP for the lifetime of the
// process.
func serveMetrics(addr string) stats.Collector {
	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.String("addr", addr), zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", addr))
	return prometheus.New(reg)
}

// dataPath returns a path inside the data directory, creating it.
func dataPath(elem ...string) (string, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(append([]string{cfg.DataDir}, elem...)...), nil
}
