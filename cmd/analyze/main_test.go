package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"hoopstats/config"
	"hoopstats/dataset"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir string) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	store := dataset.NewStore(dir, logger)
	_, err := store.WriteGames(dataset.CombinedGamesName, dataset.Filter{League: config.StandardLeague, Stage: config.RegularSeasonStage}, []dataset.Game{
		{GameID: 1, Season: 2020, HomeTeamID: 1, AwayTeamID: 2, HomeScore: 110, AwayScore: 100, League: "standard", Stage: 2},
		{GameID: 2, Season: 2020, HomeTeamID: 1, AwayTeamID: 2, HomeScore: 120, AwayScore: 90, League: "standard", Stage: 2},
		{GameID: 3, Season: 2021, HomeTeamID: 2, AwayTeamID: 1, HomeScore: 105, AwayScore: 100, League: "standard", Stage: 2},
		{GameID: 4, Season: 2020, HomeTeamID: 3, AwayTeamID: 4, HomeScore: 130, AwayScore: 129, League: "standard", Stage: 2},
	})
	require.NoError(t, err)
	_, err = store.WriteTeams([]dataset.Team{
		{TeamID: 1, TeamName: "Team A", Conference: "East", Division: "Atlantic"},
		{TeamID: 2, TeamName: "Team B", Conference: "West", Division: "Pacific"},
		{TeamID: 3, TeamName: "Team C", Conference: "East", Division: "Central"},
		{TeamID: 4, TeamName: "Team D", Conference: "West", Division: "Southwest"},
	})
	require.NoError(t, err)
}

func TestRun_Report(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)

	var out bytes.Buffer
	err := run(context.Background(), []string{"--data-dir", dir, "--top-games", "1", "--log-level", "error"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "259 points  Team C 130 vs Team D 129")
	assert.Contains(t, out.String(), "2020  Team A")
	assert.Contains(t, out.String(), "115.00")
	assert.Contains(t, out.String(), "Scheduled games per team\n  2020  72 games\n  2021  82 games\n")
}

func TestRun_RejectsAPIFlags(t *testing.T) {
	err := run(context.Background(), []string{"--log-level", "error", "--base-url", "http://localhost"}, io.Discard)
	var cfgErr *config.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "flags", cfgErr.Field)
}

func TestRun_MissingArtifacts(t *testing.T) {
	err := run(context.Background(), []string{"--data-dir", t.TempDir(), "--log-level", "error"}, io.Discard)
	assert.True(t, errors.Is(err, dataset.ErrNotFound))
}

func TestRun_RejectsPositionalArguments(t *testing.T) {
	err := run(context.Background(), []string{"--log-level", "error", "extra"}, io.Discard)
	var cfgErr *config.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}
