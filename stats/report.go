package stats

import (
	"context"
	"fmt"
	"io"
	"strings"

	"hoopstats/db"
)

type ReportOptions struct {
	Limit  int
	Range  SeasonRange
	Margin int
	// Schedule is printed ahead of the win-loss records when set.
	Schedule []db.Season
}

// Report runs every computation and prints the results to w.
func Report(ctx context.Context, w io.Writer, e *Engine, opts ReportOptions) error {
	games, err := e.TopScoringGames(ctx, opts.Limit, opts.Range)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Top %d highest-scoring games, seasons %d-%d\n", opts.Limit, opts.Range.Low, opts.Range.High)
	for i, g := range games {
		fmt.Fprintf(w, "  #%d  %d points  %s %d vs %s %d  (season %d, game %d)\n",
			i+1, g.Total, g.HomeTeam, g.HomeScore, g.AwayTeam, g.AwayScore, g.Season, g.GameID)
	}

	records, err := e.WinLossRecords(ctx)
	if err != nil {
		return err
	}
	if len(opts.Schedule) > 0 {
		fmt.Fprintln(w, "\nScheduled games per team")
		for _, s := range opts.Schedule {
			fmt.Fprintf(w, "  %d  %d games\n", s.Season, s.GamesPerSeason)
		}
	}
	fmt.Fprintln(w, "\nWin-loss records")
	for _, r := range records {
		fmt.Fprintf(w, "  %d  %-28s %d-%d\n", r.Season, r.TeamName, r.Wins, r.Losses)
	}

	averages, err := e.AveragePointsPerSeason(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nAverage points per game")
	for _, a := range averages {
		fmt.Fprintf(w, "  %d  %-28s %.2f\n", a.Season, a.TeamName, a.AveragePoints)
	}

	standings, err := e.ConferenceWinTotals(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nConference wins")
	totals := make([]string, 0, len(standings.Totals))
	for _, t := range standings.Totals {
		totals = append(totals, fmt.Sprintf("%s %d", t.Conference, t.Wins))
	}
	fmt.Fprintf(w, "  %s\n", strings.Join(totals, ", "))
	if standings.Tie {
		fmt.Fprintln(w, "  The conferences are tied.")
	} else {
		fmt.Fprintf(w, "  The %s conference had more wins.\n", standings.Winner)
	}

	leader, err := e.TopMarginOfVictory(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "\nHighest average margin of victory: %s (%+.2f per game)\n", leader.TeamName, leader.AverageMargin)
	if opts.Margin <= 1 {
		return nil
	}
	ranking, err := e.MarginOfVictoryRanking(ctx, opts.Margin)
	if err != nil {
		return err
	}
	for i, m := range ranking {
		fmt.Fprintf(w, "  #%d  %-28s %+.2f\n", i+1, m.TeamName, m.AverageMargin)
	}
	return nil
}
