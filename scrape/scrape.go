package scrape

import (
	"context"
	"fmt"

	"hoopstats/config"
	"hoopstats/dataset"
	"hoopstats/nba"
	"hoopstats/utils"

	"github.com/sirupsen/logrus"
)

var validConferences = map[string]bool{
	"East": true,
	"West": true,
}

var validDivisions = map[string]bool{
	"Atlantic":  true,
	"Central":   true,
	"Southeast": true,
	"Northwest": true,
	"Pacific":   true,
	"Southwest": true,
}

type GamesAPI interface {
	Games(ctx context.Context, season int) ([]nba.RawGame, error)
}

type TeamsAPI interface {
	Teams(ctx context.Context) ([]nba.RawTeam, error)
}

// Artifacts is the subset of *dataset.Store the pipeline reads and writes.
type Artifacts interface {
	Lookup(name string) (dataset.Handle, bool, error)
	ReadGames(name string) ([]dataset.Game, error)
	WriteGames(name string, filter dataset.Filter, games []dataset.Game) (dataset.Handle, error)
	WriteTeams(teams []dataset.Team) (dataset.Handle, error)
}

type SeasonFetcher struct {
	api    GamesAPI
	store  Artifacts
	cfg    *config.Config
	logger *logrus.Logger
}

func NewSeasonFetcher(api GamesAPI, store Artifacts, cfg *config.Config, logger *logrus.Logger) *SeasonFetcher {
	return &SeasonFetcher{
		api:    api,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Filter is the league and stage the fetcher admits.
func Filter(cfg *config.Config) dataset.Filter {
	return dataset.Filter{League: cfg.League, Stage: cfg.Stage}
}

// FetchSeason requests one season of games, keeps finished regular season
// games of the configured league and overwrites games-<season>.json with
// them.
func (f *SeasonFetcher) FetchSeason(ctx context.Context, season int) ([]dataset.Game, error) {
	if f.cfg.IsInvalidSeason(season) {
		return nil, utils.ErrorWithTrace(fmt.Errorf("invalid season provided: %d", season))
	}
	raw, err := f.api.Games(ctx, season)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	games, err := f.normalizeGames(season, raw)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	if _, err := f.store.WriteGames(dataset.SeasonGamesName(season), Filter(f.cfg), games); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return games, nil
}

func (f *SeasonFetcher) normalizeGames(season int, raw []nba.RawGame) ([]dataset.Game, error) {
	games := make([]dataset.Game, 0, len(raw))
	skipped := map[string]int{}
	for i, r := range raw {
		c, err := r.Classify(i)
		if err != nil {
			return nil, err
		}
		switch {
		case c.League != f.cfg.League:
			skipped["league"]++
			continue
		case c.Stage != f.cfg.Stage:
			skipped["stage"]++
			continue
		case !c.Finished():
			skipped["unfinished"]++
			continue
		}
		g, err := r.Game(i)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	f.logger.WithFields(logrus.Fields{
		"season":     season,
		"records":    len(games),
		"league":     skipped["league"],
		"stage":      skipped["stage"],
		"unfinished": skipped["unfinished"],
	}).Info("normalized season")
	return games, nil
}

type TeamFetcher struct {
	api    TeamsAPI
	store  Artifacts
	logger *logrus.Logger
}

func NewTeamFetcher(api TeamsAPI, store Artifacts, logger *logrus.Logger) *TeamFetcher {
	return &TeamFetcher{api: api, store: store, logger: logger}
}

// FetchTeams keeps franchise teams with a known conference and division, in
// response order, and overwrites teams.json with them.
func (f *TeamFetcher) FetchTeams(ctx context.Context) ([]dataset.Team, error) {
	raw, err := f.api.Teams(ctx)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	teams, err := f.normalizeTeams(raw)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	if _, err := f.store.WriteTeams(teams); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return teams, nil
}

func (f *TeamFetcher) normalizeTeams(raw []nba.RawTeam) ([]dataset.Team, error) {
	teams := make([]dataset.Team, 0, len(raw))
	for i, r := range raw {
		franchise, err := r.IsFranchise(i)
		if err != nil {
			return nil, err
		}
		if !franchise {
			continue
		}
		t, err := r.Team(i)
		if err != nil {
			return nil, err
		}
		if !validConferences[t.Conference] || !validDivisions[t.Division] {
			f.logger.WithFields(logrus.Fields{
				"team_id":    t.TeamID,
				"conference": t.Conference,
				"division":   t.Division,
			}).Debug("skipping team outside the league's conferences")
			continue
		}
		teams = append(teams, t)
	}
	f.logger.WithField("records", len(teams)).Info("normalized teams")
	return teams, nil
}

type Result struct {
	Games dataset.Handle
	Teams dataset.Handle
}

// Scrape ensures teams.json and games.json exist for the configured season
// window, fetching only what is missing.
func Scrape(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (Result, error) {
	if cfg.APIKey == "" {
		return Result{}, &config.ConfigurationError{Field: "api-key", Reason: "must not be empty"}
	}
	store := dataset.NewStore(cfg.DataDir, logger)
	client := nba.NewClient(cfg, logger)
	combiner := NewCombiner(store, Filter(cfg), cfg.Concurrency, logger)
	logger.WithField("run_id", store.RunID()).Info("starting ingestion")

	logger.Info("Scraping Teams")
	teams, err := combiner.EnsureTeams(ctx, NewTeamFetcher(client, store, logger))
	if err != nil {
		return Result{}, utils.ErrorWithTrace(err)
	}

	logger.Infof("Scraping Games for seasons %d-%d", cfg.FirstSeason, cfg.LastSeason)
	seasons := NewCachedSeasons(store, NewSeasonFetcher(client, store, cfg, logger), logger)
	games, err := combiner.Combine(ctx, cfg.Seasons(), seasons)
	if err != nil {
		return Result{}, utils.ErrorWithTrace(err)
	}

	logger.WithFields(logrus.Fields{
		"games": games.Records,
		"teams": teams.Records,
	}).Info("Finished Scraping")
	return Result{Games: games, Teams: teams}, nil
}

func (r Result) String() string {
	return fmt.Sprintf("%s (%d games), %s (%d teams)", r.Games.Path, r.Games.Records, r.Teams.Path, r.Teams.Records)
}
