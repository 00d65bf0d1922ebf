package dataset

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFilter = Filter{League: "standard", Stage: 2}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestStore_WriteOverwritesSeasonArtifact(t *testing.T) {
	store := NewStore(t.TempDir(), quietLogger())
	games := []Game{
		{GameID: 1, Season: 2020, HomeTeamID: 1, AwayTeamID: 2, HomeScore: 110, AwayScore: 100, League: "standard", Stage: 2},
		{GameID: 2, Season: 2020, HomeTeamID: 2, AwayTeamID: 1, HomeScore: 90, AwayScore: 120, League: "standard", Stage: 2},
	}

	_, err := store.WriteGames(SeasonGamesName(2020), testFilter, games)
	require.NoError(t, err)
	h, err := store.WriteGames(SeasonGamesName(2020), testFilter, games)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Records)

	got, err := store.ReadGames(SeasonGamesName(2020))
	require.NoError(t, err)
	assert.Equal(t, games, got, "a second write must replace, not append")
}

func TestStore_LookupRequiresMatchingChecksum(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, quietLogger())

	_, ok, err := store.Lookup(CombinedGamesName)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.WriteGames(CombinedGamesName, testFilter, []Game{{GameID: 7, Season: 2021}})
	require.NoError(t, err)

	h, ok, err := store.Lookup(CombinedGamesName)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, h.Records)
	assert.Equal(t, filepath.Join(dir, CombinedGamesName), h.Path)

	// A truncated or hand-edited file no longer counts as present.
	require.NoError(t, os.WriteFile(h.Path, []byte(`[{"game_id":7`), 0o644))
	_, ok, err = store.Lookup(CombinedGamesName)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.ReadGames(CombinedGamesName)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_FileWithoutManifestEntryIsAbsent(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, TeamsName), []byte(`[]`), 0o644))

	store := NewStore(dir, quietLogger())
	_, ok, err := store.Lookup(TeamsName)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_TeamsRoundTripAndManifest(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, quietLogger())
	teams := []Team{
		{TeamID: 1, TeamName: "Atlanta Hawks", Conference: "East", Division: "Southeast"},
		{TeamID: 41, TeamName: "Washington Wizards", Conference: "East", Division: "Southeast"},
	}

	_, err := store.WriteTeams(teams)
	require.NoError(t, err)

	got, err := store.ReadTeams()
	require.NoError(t, err)
	assert.Equal(t, teams, got)

	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	require.NoError(t, err)
	var manifest Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	entry, ok := manifest.Artifacts[TeamsName]
	require.True(t, ok)
	assert.Equal(t, 2, entry.Records)
	assert.Equal(t, store.RunID(), entry.RunID)
	assert.Len(t, entry.SHA256, 64)
}

func TestStore_EmptyArtifactIsJSONArray(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, quietLogger())

	_, err := store.WriteGames(SeasonGamesName(2011), testFilter, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, SeasonGamesName(2011)))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestStore_FilterRecordedInManifest(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, quietLogger())
	filter := Filter{League: "standard", Stage: 2}

	written, err := store.WriteGames(SeasonGamesName(2020), filter, []Game{{GameID: 1, Season: 2020}})
	require.NoError(t, err)
	assert.Equal(t, filter, written.Filter)

	// A fresh store sees the filter through the manifest alone.
	h, ok, err := NewStore(dir, quietLogger()).Lookup(SeasonGamesName(2020))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, written, h)

	playoffs := Filter{League: "standard", Stage: 4}
	_, err = store.WriteGames(SeasonGamesName(2020), playoffs, []Game{{GameID: 1, Season: 2020}})
	require.NoError(t, err)
	h, ok, err = store.Lookup(SeasonGamesName(2020))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, playoffs, h.Filter, "a rewrite replaces the filter")

	_, err = store.WriteTeams(nil)
	require.NoError(t, err)
	teams, ok, err := store.Lookup(TeamsName)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Filter{}, teams.Filter)
}
