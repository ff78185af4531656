package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "COACH_"

	// EnvFile names the environment variable pointing at a YAML file.
	EnvFile = "COACH_CONFIG"
)

// sections are nested config blocks reachable from flat env names, so
// COACH_ENGINE_MOVE_TIME sets engine.move_time.
var sections = []string{"store", "engine", "thresholds", "style", "llm"}

// Load reads the configuration. A .env file in the working directory is
// applied first; path overrides COACH_CONFIG when non-empty.
func Load(path string) (*Config, error) {
	_ = godotenv.Load(".env")

	k := koanf.New(".")

	if path == "" {
		path = os.Getenv(EnvFile)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	applyLegacyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, sec := range sections {
		if strings.HasPrefix(key, sec+"_") {
			return sec + "." + strings.TrimPrefix(key, sec+"_")
		}
	}
	return key
}

// applyLegacyEnv honours the unprefixed variables older setups export.
func applyLegacyEnv(cfg *Config) {
	if cfg.Username == "" {
		cfg.Username = os.Getenv("CHESSCOM_USERNAME")
	}
	if cfg.ProfileInfo == "" {
		cfg.ProfileInfo = os.Getenv("PROFILE_INFO")
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}
