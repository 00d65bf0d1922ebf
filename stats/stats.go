package stats

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"strings"

	"hoopstats/cache"
	"hoopstats/utils"

	"github.com/jmoiron/sqlx"
)

var ErrNoGames = errors.New("no games loaded")

// SeasonTable gives the scheduled games per team for seasons missing from
// the seasons table.
type SeasonTable interface {
	GamesInSeason(season int) int
}

// SeasonRange is an inclusive range of season starting years.
type SeasonRange struct {
	Low  int
	High int
}

// Engine computes aggregates over the games table and resolves team ids
// through a TeamCache.
type Engine struct {
	db      sqlx.QueryerContext
	teams   *cache.TeamCache
	seasons SeasonTable
}

func New(db sqlx.QueryerContext, teams *cache.TeamCache, seasons SeasonTable) *Engine {
	return &Engine{db: db, teams: teams, seasons: seasons}
}

// Each game contributes one row per side: the side's team, points and
// whether it strictly outscored the other side.
const appearances = `
	WITH appearances AS (
		SELECT season, home_team_id AS team_id, home_score AS points,
			home_score - away_score AS margin,
			CASE WHEN home_score > away_score THEN 1 ELSE 0 END AS won
		FROM games
		UNION ALL
		SELECT season, away_team_id AS team_id, away_score AS points,
			away_score - home_score AS margin,
			CASE WHEN away_score > home_score THEN 1 ELSE 0 END AS won
		FROM games
	)
`

type ScoringGame struct {
	GameID     int    `db:"game_id"`
	Season     int    `db:"season"`
	Date       string `db:"date"`
	HomeTeamID int    `db:"home_team_id"`
	AwayTeamID int    `db:"away_team_id"`
	HomeScore  int    `db:"home_score"`
	AwayScore  int    `db:"away_score"`
	Total      int    `db:"total"`
	HomeTeam   string `db:"-"`
	AwayTeam   string `db:"-"`
}

// TopScoringGames returns up to limit games in seasons [r.Low, r.High] with
// the highest combined score. Equal totals keep dataset order.
func (e *Engine) TopScoringGames(ctx context.Context, limit int, r SeasonRange) ([]ScoringGame, error) {
	games := []ScoringGame{}
	if limit <= 0 {
		return games, nil
	}
	query := `
		SELECT game_id, season, date, home_team_id, away_team_id,
			home_score, away_score, home_score + away_score AS total
		FROM games
		WHERE season BETWEEN ? AND ?
		ORDER BY total DESC, ordinal ASC
		LIMIT ?
	`
	if err := sqlx.SelectContext(ctx, e.db, &games, query, r.Low, r.High, limit); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	for i := range games {
		home, err := e.teams.Resolve(games[i].HomeTeamID)
		if err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
		away, err := e.teams.Resolve(games[i].AwayTeamID)
		if err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
		games[i].HomeTeam = home.TeamName
		games[i].AwayTeam = away.TeamName
	}
	return games, nil
}

type TeamRecord struct {
	Season         int    `db:"season"`
	TeamID         int    `db:"team_id"`
	TeamName       string `db:"-"`
	Wins           int    `db:"wins"`
	Losses         int    `db:"-"`
	GamesPerSeason int    `db:"-"`
}

// WinLossRecords counts strict wins per (season, team). Losses are the
// season's scheduled games minus wins, so unplayed games count as losses.
func (e *Engine) WinLossRecords(ctx context.Context) ([]TeamRecord, error) {
	rows := []struct {
		TeamRecord
		Scheduled sql.NullInt64 `db:"games_per_season"`
	}{}
	query := appearances + `
		SELECT a.season, a.team_id, SUM(a.won) AS wins,
			MAX(s.games_per_season) AS games_per_season
		FROM appearances a
		LEFT JOIN seasons s ON s.season = a.season
		GROUP BY a.season, a.team_id
		ORDER BY a.season, a.team_id
	`
	if err := sqlx.SelectContext(ctx, e.db, &rows, query); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}

	records := make([]TeamRecord, 0, len(rows))
	for _, row := range rows {
		rec := row.TeamRecord
		team, err := e.teams.Resolve(rec.TeamID)
		if err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
		rec.TeamName = team.TeamName
		rec.GamesPerSeason = e.seasons.GamesInSeason(rec.Season)
		if row.Scheduled.Valid {
			rec.GamesPerSeason = int(row.Scheduled.Int64)
		}
		rec.Losses = rec.GamesPerSeason - rec.Wins
		records = append(records, rec)
	}
	return records, nil
}

type TeamAverage struct {
	Season        int     `db:"season"`
	TeamID        int     `db:"team_id"`
	TeamName      string  `db:"-"`
	AveragePoints float64 `db:"average_points"`
	Games         int     `db:"games"`
}

// AveragePointsPerSeason averages each team's points over its home and away
// appearances in a season.
func (e *Engine) AveragePointsPerSeason(ctx context.Context) ([]TeamAverage, error) {
	averages := []TeamAverage{}
	query := appearances + `
		SELECT season, team_id, AVG(points) AS average_points, COUNT(*) AS games
		FROM appearances
		GROUP BY season, team_id
		ORDER BY season, team_id
	`
	if err := sqlx.SelectContext(ctx, e.db, &averages, query); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	for i := range averages {
		team, err := e.teams.Resolve(averages[i].TeamID)
		if err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
		averages[i].TeamName = team.TeamName
	}
	return averages, nil
}

type ConferenceTotal struct {
	Conference string
	Wins       int
}

// ConferenceStandings holds total wins per conference, most wins first.
// Winner is empty and Tie is set when the top two totals are equal.
type ConferenceStandings struct {
	Totals []ConferenceTotal
	Winner string
	Tie    bool
}

// ConferenceWinTotals sums every team's wins across all seasons into its
// conference.
func (e *Engine) ConferenceWinTotals(ctx context.Context) (ConferenceStandings, error) {
	rows := []struct {
		TeamID int `db:"team_id"`
		Wins   int `db:"wins"`
	}{}
	query := appearances + `
		SELECT team_id, SUM(won) AS wins
		FROM appearances
		GROUP BY team_id
		ORDER BY team_id
	`
	if err := sqlx.SelectContext(ctx, e.db, &rows, query); err != nil {
		return ConferenceStandings{}, utils.ErrorWithTrace(err)
	}

	totals := map[string]int{"East": 0, "West": 0}
	for _, row := range rows {
		team, err := e.teams.Resolve(row.TeamID)
		if err != nil {
			return ConferenceStandings{}, utils.ErrorWithTrace(err)
		}
		totals[team.Conference] += row.Wins
	}

	standings := ConferenceStandings{}
	for conf, wins := range totals {
		standings.Totals = append(standings.Totals, ConferenceTotal{Conference: conf, Wins: wins})
	}
	slices.SortFunc(standings.Totals, func(a, b ConferenceTotal) int {
		if a.Wins != b.Wins {
			return b.Wins - a.Wins
		}
		return strings.Compare(a.Conference, b.Conference)
	})
	if standings.Totals[0].Wins == standings.Totals[1].Wins {
		standings.Tie = true
	} else {
		standings.Winner = standings.Totals[0].Conference
	}
	return standings, nil
}

type MarginOfVictory struct {
	TeamID        int     `db:"team_id"`
	TeamName      string  `db:"-"`
	AverageMargin float64 `db:"average_margin"`
	Games         int     `db:"games"`
}

// MarginOfVictoryRanking orders teams by average signed margin over all of
// their games, lower team id first on equal averages. A limit of zero or
// less returns every team.
func (e *Engine) MarginOfVictoryRanking(ctx context.Context, limit int) ([]MarginOfVictory, error) {
	if limit <= 0 {
		limit = -1
	}
	ranking := []MarginOfVictory{}
	query := appearances + `
		SELECT team_id, AVG(margin) AS average_margin, COUNT(*) AS games
		FROM appearances
		GROUP BY team_id
		ORDER BY average_margin DESC, team_id ASC
		LIMIT ?
	`
	if err := sqlx.SelectContext(ctx, e.db, &ranking, query, limit); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	for i := range ranking {
		team, err := e.teams.Resolve(ranking[i].TeamID)
		if err != nil {
			return nil, utils.ErrorWithTrace(err)
		}
		ranking[i].TeamName = team.TeamName
	}
	return ranking, nil
}

// TopMarginOfVictory returns the single team with the greatest average
// margin.
func (e *Engine) TopMarginOfVictory(ctx context.Context) (MarginOfVictory, error) {
	ranking, err := e.MarginOfVictoryRanking(ctx, 1)
	if err != nil {
		return MarginOfVictory{}, err
	}
	if len(ranking) == 0 {
		return MarginOfVictory{}, utils.ErrorWithTrace(ErrNoGames)
	}
	return ranking[0], nil
}
