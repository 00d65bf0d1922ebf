// Command analyze loads the canonical datasets into SQLite and prints the
// statistics report. It never contacts the statistics API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"hoopstats/cache"
	"hoopstats/config"
	"hoopstats/dataset"
	"hoopstats/db"
	"hoopstats/stats"
	"hoopstats/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "analyze:", err)
		if errors.Is(err, dataset.ErrNotFound) {
			fmt.Fprintln(os.Stderr, "run setup first to ingest the datasets")
		}
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	cfg, rest, err := config.Load("analyze", args)
	if err != nil {
		return err
	}
	if len(rest) != 0 {
		return &config.ConfigurationError{Field: "args", Reason: fmt.Sprintf("analyze takes no positional arguments, got %d", len(rest))}
	}
	logger := cfg.Logger()

	store := dataset.NewStore(cfg.DataDir, logger)
	database, err := db.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if _, err := database.Load(ctx, store, cfg); err != nil {
		return err
	}
	teams, err := cache.Load(ctx, database)
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	logger.WithField("teams", teams.Len()).Debug("built team cache")

	schedule, err := database.SelectSeasons(ctx)
	if err != nil {
		return err
	}

	engine := stats.New(database, teams, cfg)
	return stats.Report(ctx, out, engine, stats.ReportOptions{
		Limit:    cfg.TopGames,
		Range:    stats.SeasonRange{Low: cfg.FirstSeason, High: cfg.LastSeason},
		Margin:   cfg.MarginRanking,
		Schedule: schedule,
	})
}
