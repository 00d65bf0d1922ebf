// Package nbatest serves canned api-nba-v1 responses for tests.
package nbatest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
)

const APIKey = "test-key"

type failure struct {
	status     int
	times      int
	retryAfter string
}

type Server struct {
	URL string

	mu       sync.Mutex
	seasons  map[int][]map[string]any
	teams    []map[string]any
	raw      map[string]string
	failures map[string]*failure
	hits     map[string]int
}

// New starts a fake API that requires the x-rapidapi-key header to equal
// APIKey. It is shut down when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		seasons:  map[int][]map[string]any{},
		raw:      map[string]string{},
		failures: map[string]*failure{},
		hits:     map[string]int{},
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(s.count, s.authorize, s.inject)
	e.GET("/games", s.games)
	e.GET("/teams", s.listTeams)

	ts := httptest.NewServer(e)
	t.Cleanup(ts.Close)
	s.URL = ts.URL
	return s
}

func (s *Server) count(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		s.hits[c.Path()]++
		s.mu.Unlock()
		return next(c)
	}
}

func (s *Server) authorize(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("x-rapidapi-key") != APIKey {
			return c.JSON(http.StatusForbidden, map[string]any{"message": "You are not subscribed to this API."})
		}
		return next(c)
	}
}

func (s *Server) inject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		f, ok := s.failures[c.Path()]
		if ok && f.times > 0 {
			f.times--
			retryAfter := f.retryAfter
			s.mu.Unlock()
			if retryAfter != "" {
				c.Response().Header().Set("Retry-After", retryAfter)
			}
			return c.String(f.status, http.StatusText(f.status))
		}
		body, hasRaw := s.raw[c.Path()]
		s.mu.Unlock()
		if hasRaw {
			return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, []byte(body))
		}
		return next(c)
	}
}

func (s *Server) games(c echo.Context) error {
	season, err := strconv.Atoi(c.QueryParam("season"))
	if err != nil {
		return c.JSON(http.StatusOK, envelope("games", nil, map[string]string{"season": "The Season field must be a valid season."}))
	}
	s.mu.Lock()
	records := s.seasons[season]
	s.mu.Unlock()
	return c.JSON(http.StatusOK, envelope("games", records, nil))
}

func (s *Server) listTeams(c echo.Context) error {
	s.mu.Lock()
	records := s.teams
	s.mu.Unlock()
	return c.JSON(http.StatusOK, envelope("teams", records, nil))
}

func envelope(get string, records []map[string]any, errs any) map[string]any {
	if records == nil {
		records = []map[string]any{}
	}
	if errs == nil {
		errs = []any{}
	}
	return map[string]any{
		"get":      get,
		"errors":   errs,
		"results":  len(records),
		"response": records,
	}
}

func (s *Server) SetSeason(season int, records ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seasons[season] = records
}

func (s *Server) SetTeams(records ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams = records
}

// SetRaw makes path answer 200 with body verbatim.
func (s *Server) SetRaw(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[path] = body
}

// Fail makes the next n requests to path answer with status.
func (s *Server) Fail(path string, status, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = &failure{status: status, times: n}
}

// FailRetryAfter is Fail with a Retry-After header on each failed response.
func (s *Server) FailRetryAfter(path string, status, n int, retryAfter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = &failure{status: status, times: n, retryAfter: retryAfter}
}

func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

// Game builds a finished, standard-league, regular-season game record in
// the vendor's nested shape. Use the With* helpers to vary it.
func Game(id, season, homeID, awayID, homePts, awayPts int) map[string]any {
	return map[string]any{
		"id":      id,
		"league":  "standard",
		"season":  season,
		"stage":   2,
		"date":    map[string]any{"start": "2020-12-22T00:00:00.000Z", "end": nil, "duration": "2:13"},
		"status":  map[string]any{"clock": nil, "halftime": false, "short": 3, "long": "Finished"},
		"periods": map[string]any{"current": 4, "total": 4, "endOfPeriod": false},
		"teams": map[string]any{
			"home":     map[string]any{"id": homeID, "name": "Home", "code": "HOM"},
			"visitors": map[string]any{"id": awayID, "name": "Away", "code": "AWY"},
		},
		"scores": map[string]any{
			"home":     map[string]any{"win": 0, "loss": 0, "points": homePts},
			"visitors": map[string]any{"win": 0, "loss": 0, "points": awayPts},
		},
	}
}

func WithLeague(g map[string]any, league string) map[string]any {
	g["league"] = league
	return g
}

func WithStage(g map[string]any, stage int) map[string]any {
	g["stage"] = stage
	return g
}

func Scheduled(g map[string]any) map[string]any {
	g["status"] = map[string]any{"clock": nil, "halftime": false, "short": 1, "long": "Scheduled"}
	scores := g["scores"].(map[string]any)
	scores["home"].(map[string]any)["points"] = nil
	scores["visitors"].(map[string]any)["points"] = nil
	return g
}

// Without deletes a top-level key or a dotted nested path.
func Without(g map[string]any, path ...string) map[string]any {
	m := g
	for _, key := range path[:len(path)-1] {
		m = m[key].(map[string]any)
	}
	delete(m, path[len(path)-1])
	return g
}

func Team(id int, name, conference, division string) map[string]any {
	return map[string]any{
		"id":           id,
		"name":         name,
		"nickname":     name,
		"code":         "TST",
		"city":         "Test",
		"allStar":      false,
		"nbaFranchise": true,
		"leagues": map[string]any{
			"standard": map[string]any{"conference": conference, "division": division},
		},
	}
}

func NonFranchise(t map[string]any) map[string]any {
	t["nbaFranchise"] = false
	return t
}
