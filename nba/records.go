package nba

import (
	"fmt"
	"strconv"

	"hoopstats/dataset"
)

// FinishedStatus is the status.long value of a completed game.
const FinishedStatus = "Finished"

// SchemaError reports an expected field path missing from a vendor record.
type SchemaError struct {
	Endpoint string
	Index    int
	RecordID string
	Field    string
	Err      error
}

func (e *SchemaError) Error() string {
	where := e.Endpoint
	if e.Index >= 0 {
		where = fmt.Sprintf("%s record %d", e.Endpoint, e.Index)
		if e.RecordID != "" {
			where += " (id " + e.RecordID + ")"
		}
	}
	if e.Err != nil {
		return fmt.Sprintf("schema: %s: field %q: %v", where, e.Field, e.Err)
	}
	return fmt.Sprintf("schema: %s: missing field %q", where, e.Field)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

type RawTeamRef struct {
	ID   *int    `json:"id"`
	Name *string `json:"name"`
	Code *string `json:"code"`
}

type RawScore struct {
	Points *int `json:"points"`
}

type RawGame struct {
	ID     *int    `json:"id"`
	League *string `json:"league"`
	Season *int    `json:"season"`
	Stage  *int    `json:"stage"`
	Date   *struct {
		Start *string `json:"start"`
	} `json:"date"`
	Status *struct {
		Long *string `json:"long"`
	} `json:"status"`
	Teams *struct {
		Home     *RawTeamRef `json:"home"`
		Visitors *RawTeamRef `json:"visitors"`
	} `json:"teams"`
	Scores *struct {
		Home     *RawScore `json:"home"`
		Visitors *RawScore `json:"visitors"`
	} `json:"scores"`
}

// Classification holds the fields normalization filters on.
type Classification struct {
	League string
	Stage  int
	Status string
}

func (c Classification) Finished() bool {
	return c.Status == FinishedStatus
}

func (g RawGame) recordID() string {
	if g.ID == nil {
		return ""
	}
	return strconv.Itoa(*g.ID)
}

func (g RawGame) missing(index int, field string) *SchemaError {
	return &SchemaError{Endpoint: "games", Index: index, RecordID: g.recordID(), Field: field}
}

// Classify extracts league, stage and status so a record can be filtered
// before its score fields are required.
func (g RawGame) Classify(index int) (Classification, error) {
	switch {
	case g.ID == nil:
		return Classification{}, g.missing(index, "id")
	case g.League == nil:
		return Classification{}, g.missing(index, "league")
	case g.Stage == nil:
		return Classification{}, g.missing(index, "stage")
	case g.Status == nil || g.Status.Long == nil:
		return Classification{}, g.missing(index, "status.long")
	}
	return Classification{League: *g.League, Stage: *g.Stage, Status: *g.Status.Long}, nil
}

// Game flattens the nested vendor record into a canonical Game.
func (g RawGame) Game(index int) (dataset.Game, error) {
	c, err := g.Classify(index)
	if err != nil {
		return dataset.Game{}, err
	}
	switch {
	case g.Season == nil:
		return dataset.Game{}, g.missing(index, "season")
	case g.Date == nil || g.Date.Start == nil:
		return dataset.Game{}, g.missing(index, "date.start")
	case g.Teams == nil || g.Teams.Home == nil || g.Teams.Home.ID == nil:
		return dataset.Game{}, g.missing(index, "teams.home.id")
	case g.Teams.Visitors == nil || g.Teams.Visitors.ID == nil:
		return dataset.Game{}, g.missing(index, "teams.visitors.id")
	case g.Scores == nil || g.Scores.Home == nil || g.Scores.Home.Points == nil:
		return dataset.Game{}, g.missing(index, "scores.home.points")
	case g.Scores.Visitors == nil || g.Scores.Visitors.Points == nil:
		return dataset.Game{}, g.missing(index, "scores.visitors.points")
	}
	return dataset.Game{
		GameID:     *g.ID,
		Season:     *g.Season,
		Date:       *g.Date.Start,
		HomeTeamID: *g.Teams.Home.ID,
		AwayTeamID: *g.Teams.Visitors.ID,
		HomeScore:  *g.Scores.Home.Points,
		AwayScore:  *g.Scores.Visitors.Points,
		League:     c.League,
		Stage:      c.Stage,
	}, nil
}

type RawTeam struct {
	ID           *int    `json:"id"`
	Name         *string `json:"name"`
	Nickname     *string `json:"nickname"`
	Code         *string `json:"code"`
	City         *string `json:"city"`
	NBAFranchise *bool   `json:"nbaFranchise"`
	AllStar      *bool   `json:"allStar"`
	Leagues      *struct {
		Standard *struct {
			Conference *string `json:"conference"`
			Division   *string `json:"division"`
		} `json:"standard"`
	} `json:"leagues"`
}

func (t RawTeam) missing(index int, field string) *SchemaError {
	id := ""
	if t.ID != nil {
		id = strconv.Itoa(*t.ID)
	}
	return &SchemaError{Endpoint: "teams", Index: index, RecordID: id, Field: field}
}

// IsFranchise reports the nbaFranchise flag, which every record must carry.
func (t RawTeam) IsFranchise(index int) (bool, error) {
	if t.ID == nil {
		return false, t.missing(index, "id")
	}
	if t.NBAFranchise == nil {
		return false, t.missing(index, "nbaFranchise")
	}
	return *t.NBAFranchise, nil
}

// Team flattens a franchise record; conference and division are read from
// the standard league entry.
func (t RawTeam) Team(index int) (dataset.Team, error) {
	switch {
	case t.ID == nil:
		return dataset.Team{}, t.missing(index, "id")
	case t.Name == nil:
		return dataset.Team{}, t.missing(index, "name")
	case t.Leagues == nil || t.Leagues.Standard == nil:
		return dataset.Team{}, t.missing(index, "leagues.standard")
	case t.Leagues.Standard.Conference == nil:
		return dataset.Team{}, t.missing(index, "leagues.standard.conference")
	case t.Leagues.Standard.Division == nil:
		return dataset.Team{}, t.missing(index, "leagues.standard.division")
	}
	return dataset.Team{
		TeamID:     *t.ID,
		TeamName:   *t.Name,
		Conference: *t.Leagues.Standard.Conference,
		Division:   *t.Leagues.Standard.Division,
	}, nil
}
