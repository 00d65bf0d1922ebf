package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, args, err := Load("analyze", nil)
	require.NoError(t, err)
	assert.Empty(t, args)

	assert.Equal(t, "db", cfg.DataDir)
	assert.Equal(t, ":memory:", cfg.Database)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 2014, cfg.FirstSeason)
	assert.Equal(t, 2024, cfg.LastSeason)
	assert.Equal(t, StandardLeague, cfg.League)
	assert.Equal(t, RegularSeasonStage, cfg.Stage)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 10, cfg.TopGames)
	assert.Equal(t, 1, cfg.MarginRanking)
	assert.Len(t, cfg.Seasons(), 11)
}

func TestLoad_FlagsAndPositional(t *testing.T) {
	cfg, args, err := Load(SetupCommand, []string{
		"--first-season", "2019",
		"--last-season", "2021",
		"--base-url", "http://localhost:9999/",
		"secret-key",
		"--concurrency=3",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"secret-key"}, args)
	assert.Equal(t, []int{2019, 2020, 2021}, cfg.Seasons())
	assert.Equal(t, "http://localhost:9999", cfg.BaseURL)
	assert.Equal(t, 3, cfg.Concurrency)

	require.NoError(t, cfg.RequireAPIKey(args))
	assert.Equal(t, "secret-key", cfg.APIKey)
}

func TestLoad_InvalidWindow(t *testing.T) {
	_, _, err := Load(SetupCommand, []string{"--first-season", "2024", "--last-season", "2014"})

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "first-season", cfgErr.Field)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoopstats.yaml")
	yaml := []byte(`
data-dir: /tmp/league
first-season: 2018
last-season: 2020
season-games:
  "2019": 70
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o644))

	cfg, _, err := Load("analyze", []string{"--config", path, "--last-season", "2022"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/league", cfg.DataDir)
	assert.Equal(t, 2018, cfg.FirstSeason)
	assert.Equal(t, 2022, cfg.LastSeason, "flags win over the config file")
	assert.Equal(t, 70, cfg.GamesInSeason(2019))
	assert.Equal(t, DefaultGamesPerSeason, cfg.GamesInSeason(2020))
}

func TestLoad_ConfigFileSeasonGames(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want map[int]int
	}{
		{"quoted keys", "season-games:\n  \"2019\": 70\n", map[int]int{2019: 70}},
		{"bare keys", "season-games:\n  2019: 70\n  2011: 66\n", map[int]int{2019: 70, 2011: 66}},
		{"string counts", "season-games:\n  2019: \"72\"\n", map[int]int{2019: 72}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hoopstats.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			for _, command := range []string{SetupCommand, "analyze"} {
				cfg, _, err := Load(command, []string{"--config", path})
				require.NoError(t, err, command)
				assert.Equal(t, tt.want, cfg.SeasonGames, command)
			}
		})
	}
}

func TestLoad_ConfigFileSeasonGamesInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero games", "season-games:\n  2019: 0\n"},
		{"not a number", "season-games:\n  2019: lots\n"},
		{"bad season", "season-games:\n  next: 70\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hoopstats.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			_, _, err := Load("analyze", []string{"--config", path})
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, "season-games", cfgErr.Field)
		})
	}
}

func TestLoad_FlagOverridesConfigFileSeasonGames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoopstats.yaml")
	require.NoError(t, os.WriteFile(path, []byte("season-games:\n  2019: 70\n"), 0o644))

	cfg, _, err := Load("analyze", []string{"--config", path, "--season-games", "2019=60"})
	require.NoError(t, err)
	assert.Equal(t, map[int]int{2019: 60}, cfg.SeasonGames)
}

func TestLoad_APIFlagsOnlyForSetup(t *testing.T) {
	for _, flag := range []string{
		"--base-url=http://localhost",
		"--api-host=example",
		"--timeout=1s",
		"--retries=1",
		"--retry-delay=1ms",
		"--rate-limit=5",
		"--concurrency=2",
	} {
		t.Run(flag, func(t *testing.T) {
			_, _, err := Load("analyze", []string{flag})
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, "flags", cfgErr.Field)

			_, _, err = Load(SetupCommand, []string{flag})
			assert.NoError(t, err)
		})
	}

	cfg, _, err := Load("analyze", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultRetries, cfg.Retries)
	assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay)
	assert.Equal(t, DefaultRateLimit, cfg.RateLimit)
}

func TestGamesInSeason(t *testing.T) {
	cfg, _, err := Load("analyze", []string{"--season-games", "2011=66,2020=72", "--games-per-season", "82"})
	require.NoError(t, err)

	assert.Equal(t, 66, cfg.GamesInSeason(2011))
	assert.Equal(t, 72, cfg.GamesInSeason(2020))
	assert.Equal(t, 82, cfg.GamesInSeason(2023))
}

func TestRequireAPIKey(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing", nil},
		{"extra", []string{"a", "b"}},
		{"blank", []string{"  "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			err := cfg.RequireAPIKey(tt.args)

			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, "api-key", cfgErr.Field)
			assert.Empty(t, cfg.APIKey)
		})
	}
}
