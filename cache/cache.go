package cache

import (
	"context"
	"fmt"

	"hoopstats/dataset"
	"hoopstats/utils"

	"github.com/jmoiron/sqlx"
)

// UnknownTeamError means a game references a team id missing from the teams
// dataset.
type UnknownTeamError struct {
	TeamID int
}

func (e *UnknownTeamError) Error() string {
	return fmt.Sprintf("unknown team id %d", e.TeamID)
}

type Entry struct {
	TeamName   string
	Conference string
}

// TeamCache maps team ids to display names and conferences. It is never
// modified after construction and is safe for concurrent readers.
type TeamCache struct {
	entries map[int]Entry
}

func Build(teams []dataset.Team) *TeamCache {
	entries := make(map[int]Entry, len(teams))
	for _, t := range teams {
		entries[t.TeamID] = Entry{TeamName: t.TeamName, Conference: t.Conference}
	}
	return &TeamCache{entries: entries}
}

// Load builds the cache from the engine's teams table.
func Load(ctx context.Context, q sqlx.QueryerContext) (*TeamCache, error) {
	teams := []dataset.Team{}
	query := `SELECT team_id, team_name, conference, division FROM teams ORDER BY team_id`
	if err := sqlx.SelectContext(ctx, q, &teams, query); err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	return Build(teams), nil
}

func (c *TeamCache) Resolve(id int) (Entry, error) {
	e, ok := c.entries[id]
	if !ok {
		return Entry{}, &UnknownTeamError{TeamID: id}
	}
	return e, nil
}

func (c *TeamCache) Len() int {
	return len(c.entries)
}
