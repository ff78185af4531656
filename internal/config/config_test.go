package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no coach variables set.
func isolate(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir())
	for _, name := range []string{EnvFile, "CHESSCOM_USERNAME", "PROFILE_INFO", "OPENAI_API_KEY"} {
		t.Setenv(name, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, 3, cfg.MonthsBack)
	assert.Equal(t, 150, cfg.Thresholds.Dip)
	assert.Equal(t, BackendDisk, cfg.Store.Backend)
}

func TestLoad_FileAndEnv(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "coach.yaml")
	yaml := `
username: magnus
workers: 2
engine:
  move_time: 250ms
  depth: 12
thresholds:
  dip: 120
  blunder: 300
style:
  tactical: 0.5
llm:
  model: local-model
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv("COACH_WORKERS", "8")
	t.Setenv("COACH_ENGINE_SESSIONS", "3")
	t.Setenv("COACH_STORE_BACKEND", "bolt")
	t.Setenv("COACH_THRESHOLDS_LOW_TIME_FRACTION", "0.2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "magnus", cfg.Username)
	assert.Equal(t, 8, cfg.Workers, "env overrides file")
	assert.Equal(t, 250*time.Millisecond, cfg.Engine.MoveTime)
	assert.Equal(t, 12, cfg.Engine.Depth)
	assert.Equal(t, 3, cfg.Engine.Sessions)
	assert.Equal(t, "stockfish", cfg.Engine.Path, "unset keys keep defaults")
	assert.Equal(t, BackendBolt, cfg.Store.Backend)
	assert.Equal(t, 120, cfg.Thresholds.Dip)
	assert.Equal(t, 300, cfg.Thresholds.Blunder)
	assert.InDelta(t, 0.2, cfg.Thresholds.LowTimeFraction, 1e-9)
	assert.InDelta(t, 0.5, cfg.Style.Tactical, 1e-9)
	assert.Equal(t, "local-model", cfg.LLM.Model)
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "coach.yaml")
	require.NoError(t, os.WriteFile(path, []byte("username: hikaru\n"), 0o644))
	t.Setenv(EnvFile, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "hikaru", cfg.Username)
}

func TestLoad_DotEnvAndLegacy(t *testing.T) {
	isolate(t)
	os.Unsetenv("CHESSCOM_USERNAME")
	os.Unsetenv("PROFILE_INFO")
	t.Cleanup(func() {
		os.Unsetenv("CHESSCOM_USERNAME")
		os.Unsetenv("PROFILE_INFO")
	})

	require.NoError(t, os.WriteFile(".env", []byte("CHESSCOM_USERNAME=anand\nPROFILE_INFO=club player\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "anand", cfg.Username)
	assert.Equal(t, "club player", cfg.ProfileInfo)
}

func TestLoad_MissingFile(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Store.Backend = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Store.Backend = BackendS3 }},
		{"unknown codec", func(c *Config) { c.Codec = "lz4" }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"no budget", func(c *Config) { c.Engine.MoveTime, c.Engine.Depth = 0, 0 }},
		{"blunder below dip", func(c *Config) { c.Thresholds.Blunder = 10 }},
		{"bad fraction", func(c *Config) { c.Thresholds.LowTimeFraction = 2 }},
		{"no plies", func(c *Config) { c.OpeningPlies = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	cfg := Default()
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.RequireUsername())
	cfg.Username = "magnus"
	assert.NoError(t, cfg.RequireUsername())
}
