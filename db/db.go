package db

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"hoopstats/dataset"
	"hoopstats/utils"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrations embed.FS

const memory = ":memory:"

// Database is the in-process query engine the analytics run against.
type Database struct {
	*sqlx.DB
	logger *logrus.Logger
}

// Open connects to the SQLite database at path and migrates it to the
// latest schema.
func Open(ctx context.Context, path string, logger *logrus.Logger) (*Database, error) {
	conn, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	// Every connection to :memory: is a separate database.
	if path == memory {
		conn.SetMaxOpenConns(1)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, utils.ErrorWithTrace(err)
	}
	d := &Database{DB: conn, logger: logger}
	if err := d.RunMigrations(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

func (d *Database) RunMigrations() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	driver, err := sqlite3.WithInstance(d.DB.DB, &sqlite3.Config{})
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	// m.Close would close d.DB as well, so the migrator is left for the GC.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return utils.ErrorWithTrace(err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	if dirty {
		return utils.ErrorWithTrace(fmt.Errorf("schema version %d is dirty", version))
	}
	d.logger.WithField("version", version).Debug("schema migrated")
	return nil
}

// ArtifactReader is the subset of *dataset.Store needed to load the
// canonical datasets.
type ArtifactReader interface {
	ReadGames(name string) ([]dataset.Game, error)
	ReadTeams() ([]dataset.Team, error)
}

// SeasonTable gives the scheduled games per team for a season.
type SeasonTable interface {
	GamesInSeason(season int) int
}

type Counts struct {
	Games   int `db:"games"`
	Teams   int `db:"teams"`
	Seasons int `db:"seasons"`
}

// Load reads games.json and teams.json into the engine and records the
// schedule length of every season present in the games.
func (d *Database) Load(ctx context.Context, store ArtifactReader, seasons SeasonTable) (Counts, error) {
	games, err := store.ReadGames(dataset.CombinedGamesName)
	if err != nil {
		return Counts{}, utils.ErrorWithTrace(err)
	}
	teams, err := store.ReadTeams()
	if err != nil {
		return Counts{}, utils.ErrorWithTrace(err)
	}
	if err := d.InsertGames(ctx, games); err != nil {
		return Counts{}, err
	}
	if err := d.InsertTeams(ctx, teams); err != nil {
		return Counts{}, err
	}
	if err := d.LoadSeasons(ctx, seasons); err != nil {
		return Counts{}, err
	}

	counts, err := d.Counts(ctx)
	if err != nil {
		return Counts{}, err
	}
	if counts.Games != len(games) {
		return Counts{}, utils.ErrorWithTrace(fmt.Errorf("expected %d games, found %d", len(games), counts.Games))
	}
	if counts.Teams != len(teams) {
		return Counts{}, utils.ErrorWithTrace(fmt.Errorf("expected %d teams, found %d", len(teams), counts.Teams))
	}
	d.logger.WithFields(logrus.Fields{
		"games":   counts.Games,
		"teams":   counts.Teams,
		"seasons": counts.Seasons,
	}).Info("loaded canonical datasets")
	return counts, nil
}

type gameRow struct {
	Ordinal int `db:"ordinal"`
	dataset.Game
}

// InsertGames replaces the games table with games, keyed by their position
// in the slice, which is the canonical dataset order.
func (d *Database) InsertGames(ctx context.Context, games []dataset.Game) error {
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM games`); err != nil {
		return utils.ErrorWithTrace(err)
	}

	query := `
		REPLACE INTO games (
			ordinal, game_id, season, date, home_team_id, away_team_id,
			home_score, away_score, league, stage
		) VALUES (
			:ordinal, :game_id, :season, :date, :home_team_id, :away_team_id,
			:home_score, :away_score, :league, :stage
		)
	`
	for i, g := range games {
		if _, err := tx.NamedExecContext(ctx, query, gameRow{Ordinal: i, Game: g}); err != nil {
			return utils.ErrorWithTrace(err)
		}
	}
	return tx.Commit()
}

func (d *Database) InsertTeams(ctx context.Context, teams []dataset.Team) error {
	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM teams`); err != nil {
		return utils.ErrorWithTrace(err)
	}

	query := `
		REPLACE INTO teams (team_id, team_name, conference, division)
		VALUES (:team_id, :team_name, :conference, :division)
	`
	for _, t := range teams {
		if _, err := tx.NamedExecContext(ctx, query, t); err != nil {
			return utils.ErrorWithTrace(err)
		}
	}
	return tx.Commit()
}

type Season struct {
	Season         int `db:"season"`
	GamesPerSeason int `db:"games_per_season"`
}

// LoadSeasons refills the seasons table for every season that has games.
func (d *Database) LoadSeasons(ctx context.Context, table SeasonTable) error {
	present := []int{}
	if err := d.SelectContext(ctx, &present, `SELECT DISTINCT season FROM games ORDER BY season`); err != nil {
		return utils.ErrorWithTrace(err)
	}

	tx, err := d.BeginTxx(ctx, nil)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM seasons`); err != nil {
		return utils.ErrorWithTrace(err)
	}

	query := `
		REPLACE INTO seasons (season, games_per_season)
		VALUES (:season, :games_per_season)
	`
	for _, s := range present {
		row := Season{Season: s, GamesPerSeason: table.GamesInSeason(s)}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return utils.ErrorWithTrace(err)
		}
	}
	return tx.Commit()
}

func (d *Database) Counts(ctx context.Context) (Counts, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM games) AS games,
			(SELECT COUNT(*) FROM teams) AS teams,
			(SELECT COUNT(*) FROM seasons) AS seasons
	`
	counts := Counts{}
	if err := d.GetContext(ctx, &counts, query); err != nil {
		return Counts{}, utils.ErrorWithTrace(err)
	}
	return counts, nil
}

// SelectSeasons lists the scheduled games per team for every loaded season.
func (d *Database) SelectSeasons(ctx context.Context) ([]Season, error) {
	seasons := []Season{}
	if err := d.SelectContext(ctx, &seasons, `SELECT season, games_per_season FROM seasons ORDER BY season`); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return seasons, nil
}
