package scrape

import (
	"context"
	"fmt"

	"hoopstats/dataset"
	"hoopstats/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SeasonSource yields the canonical games of one season.
type SeasonSource interface {
	Season(ctx context.Context, season int) ([]dataset.Game, error)
}

type TeamSource interface {
	FetchTeams(ctx context.Context) ([]dataset.Team, error)
}

// CachedSeasons reuses a valid games-<season>.json written under the
// fetcher's filter and otherwise fetches the season, so an interrupted run
// does not refetch seasons it already wrote.
type CachedSeasons struct {
	store   Artifacts
	fetcher *SeasonFetcher
	logger  *logrus.Logger
}

func NewCachedSeasons(store Artifacts, fetcher *SeasonFetcher, logger *logrus.Logger) *CachedSeasons {
	return &CachedSeasons{store: store, fetcher: fetcher, logger: logger}
}

func (c *CachedSeasons) Season(ctx context.Context, season int) ([]dataset.Game, error) {
	name := dataset.SeasonGamesName(season)
	h, ok, err := c.store.Lookup(name)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	want := Filter(c.fetcher.cfg)
	switch {
	case ok && h.Filter == want:
		c.logger.WithField("season", season).Info("reusing season artifact")
		return c.store.ReadGames(name)
	case ok:
		c.logger.WithFields(logrus.Fields{
			"season": season,
			"league": h.Filter.League,
			"stage":  h.Filter.Stage,
		}).Info("season artifact was normalized under another filter, refetching")
	}
	c.logger.WithField("season", season).Info("fetching season")
	return c.fetcher.FetchSeason(ctx, season)
}

type Combiner struct {
	store       Artifacts
	filter      dataset.Filter
	concurrency int
	logger      *logrus.Logger
}

func NewCombiner(store Artifacts, filter dataset.Filter, concurrency int, logger *logrus.Logger) *Combiner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Combiner{store: store, filter: filter, concurrency: concurrency, logger: logger}
}

// Combine returns the existing games.json untouched when the manifest vouches
// for it and it was combined under the same filter. Otherwise it gathers every season from src and writes games.json in
// season order, keeping each season's record order. Any failed season aborts
// the run and nothing is written.
func (c *Combiner) Combine(ctx context.Context, seasons []int, src SeasonSource) (dataset.Handle, error) {
	h, ok, err := c.store.Lookup(dataset.CombinedGamesName)
	if err != nil {
		return dataset.Handle{}, utils.ErrorWithTrace(err)
	}
	if ok && h.Filter == c.filter {
		c.logger.WithFields(logrus.Fields{
			"artifact": h.Name,
			"records":  h.Records,
		}).Info("combined games already present, skipping ingestion")
		return h, nil
	}

	bySeason := make([][]dataset.Game, len(seasons))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, season := range seasons {
		i, season := i, season
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			games, err := src.Season(gctx, season)
			if err != nil {
				return fmt.Errorf("season %d: %w", season, err)
			}
			bySeason[i] = games
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return dataset.Handle{}, utils.ErrorWithTrace(err)
	}

	total := 0
	for _, games := range bySeason {
		total += len(games)
	}
	combined := make([]dataset.Game, 0, total)
	for _, games := range bySeason {
		combined = append(combined, games...)
	}

	h, err = c.store.WriteGames(dataset.CombinedGamesName, c.filter, combined)
	if err != nil {
		return dataset.Handle{}, utils.ErrorWithTrace(err)
	}
	c.logger.WithFields(logrus.Fields{
		"artifact": h.Name,
		"records":  h.Records,
		"seasons":  len(seasons),
	}).Info("wrote combined games")
	return h, nil
}

// EnsureTeams is the teams.json counterpart of Combine.
func (c *Combiner) EnsureTeams(ctx context.Context, src TeamSource) (dataset.Handle, error) {
	h, ok, err := c.store.Lookup(dataset.TeamsName)
	if err != nil {
		return dataset.Handle{}, utils.ErrorWithTrace(err)
	}
	if ok {
		c.logger.WithFields(logrus.Fields{
			"artifact": h.Name,
			"records":  h.Records,
		}).Info("teams already present, skipping fetch")
		return h, nil
	}

	if _, err := src.FetchTeams(ctx); err != nil {
		return dataset.Handle{}, utils.ErrorWithTrace(err)
	}
	h, ok, err = c.store.Lookup(dataset.TeamsName)
	if err != nil {
		return dataset.Handle{}, utils.ErrorWithTrace(err)
	}
	if !ok {
		return dataset.Handle{}, utils.ErrorWithTrace(fmt.Errorf("%s: %w", dataset.TeamsName, dataset.ErrNotFound))
	}
	return h, nil
}
