// Package config loads coach settings from defaults, an optional YAML file
// and COACH_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/discochess/coach/internal/analysis"
	"github.com/discochess/coach/internal/profile"
)

// Backends accepted by Config.Backend.
const (
	BackendDisk   = "disk"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
	BackendS3     = "s3"
	BackendGCS    = "gcs"
)

// Config holds every tunable of the coach.
type Config struct {
	Username    string `koanf:"username"`
	ProfileInfo string `koanf:"profile_info"`
	DataDir     string `koanf:"data_dir"`
	LogLevel    string `koanf:"log_level"`
	MetricsAddr string `koanf:"metrics_addr"`

	Store StoreConfig `koanf:"store"`

	// Codec names the cache envelope codec: zstd, gzip or none.
	Codec string `koanf:"codec"`

	Engine EngineConfig `koanf:"engine"`

	Workers           int    `koanf:"workers"`
	MonthsBack        int    `koanf:"months_back"`
	MaxGames          int    `koanf:"max_games"`
	OpeningPlies      int    `koanf:"opening_plies"`
	OpeningsDir       string `koanf:"openings_dir"`
	RequestsPerMinute int    `koanf:"requests_per_minute"`

	Thresholds analysis.Thresholds     `koanf:"thresholds"`
	Style      profile.StyleThresholds `koanf:"style"`

	LLM LLMConfig `koanf:"llm"`
}

// StoreConfig selects the blob store holding the cache.
type StoreConfig struct {
	Backend  string `koanf:"backend"`
	Bucket   string `koanf:"bucket"`
	Prefix   string `koanf:"prefix"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"`

	// CacheSize is the number of blobs kept in memory in front of remote
	// backends. Zero disables it.
	CacheSize int `koanf:"cache_size"`
}

// EngineConfig configures the UCI engine sessions.
type EngineConfig struct {
	Path            string        `koanf:"path"`
	Threads         int           `koanf:"threads"`
	HashMB          int           `koanf:"hash_mb"`
	Sessions        int           `koanf:"sessions"`
	MoveTime        time.Duration `koanf:"move_time"`
	Depth           int           `koanf:"depth"`
	PositionTimeout time.Duration `koanf:"position_timeout"`
	MemoSize        int           `koanf:"memo_size"`
}

// LLMConfig points the coaching agent at an OpenAI-compatible endpoint.
type LLMConfig struct {
	BaseURL     string  `koanf:"base_url"`
	Model       string  `koanf:"model"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
	MaxSteps    int     `koanf:"max_steps"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:  "data",
		LogLevel: "info",
		Store: StoreConfig{
			Backend:   BackendDisk,
			CacheSize: 1024,
		},
		Codec: "zstd",
		Engine: EngineConfig{
			Path:            "stockfish",
			Threads:         2,
			Sessions:        2,
			MoveTime:        100 * time.Millisecond,
			PositionTimeout: 10 * time.Second,
			MemoSize:        100_000,
		},
		Workers:           4,
		MonthsBack:        3,
		MaxGames:          30,
		OpeningPlies:      12,
		RequestsPerMinute: 120,
		Thresholds:        analysis.DefaultThresholds(),
		Style:             profile.DefaultStyleThresholds(),
		LLM: LLMConfig{
			BaseURL:     "http://localhost:1234/v1",
			Model:       "nous-hermes-2-mistral-7b-dpo",
			Temperature: 0.2,
			MaxSteps:    6,
		},
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case BackendDisk, BackendBolt, BackendMemory:
	case BackendS3, BackendGCS:
		if c.Store.Bucket == "" {
			errs = append(errs, fmt.Errorf("store.bucket is required for the %s backend", c.Store.Backend))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}
	switch c.Codec {
	case "zstd", "gzip", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown codec %q", c.Codec))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Engine.Sessions < 1 {
		errs = append(errs, errors.New("engine.sessions must be positive"))
	}
	if c.Engine.MoveTime <= 0 && c.Engine.Depth <= 0 {
		errs = append(errs, errors.New("engine.move_time or engine.depth must be set"))
	}
	if c.MonthsBack < 1 {
		errs = append(errs, errors.New("months_back must be positive"))
	}
	if c.MaxGames < 0 {
		errs = append(errs, errors.New("max_games must not be negative"))
	}
	if c.OpeningPlies < 1 {
		errs = append(errs, errors.New("opening_plies must be positive"))
	}
	if c.Thresholds.Blunder < c.Thresholds.Dip {
		errs = append(errs, errors.New("thresholds.blunder must not be below thresholds.dip"))
	}
	if c.Thresholds.LowTimeFraction < 0 || c.Thresholds.LowTimeFraction > 1 {
		errs = append(errs, errors.New("thresholds.low_time_fraction must be within [0, 1]"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// RequireUsername reports an error when no username is configured.
func (c Config) RequireUsername() error {
	if strings.TrimSpace(c.Username) == "" {
		return errors.New("config: username is required (set COACH_USERNAME or pass --user)")
	}
	return nil
}
