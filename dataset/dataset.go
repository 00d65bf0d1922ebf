package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hoopstats/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	CombinedGamesName = "games.json"
	TeamsName         = "teams.json"
	ManifestName      = "manifest.json"
)

// ErrNotFound is returned when an artifact is missing or its manifest entry
// does not match the file on disk.
var ErrNotFound = errors.New("artifact not found")

type Game struct {
	GameID     int    `json:"game_id" db:"game_id"`
	Season     int    `json:"season" db:"season"`
	Date       string `json:"date" db:"date"`
	HomeTeamID int    `json:"home_team_id" db:"home_team_id"`
	AwayTeamID int    `json:"away_team_id" db:"away_team_id"`
	HomeScore  int    `json:"home_score" db:"home_score"`
	AwayScore  int    `json:"away_score" db:"away_score"`
	League     string `json:"league" db:"league"`
	Stage      int    `json:"stage" db:"stage"`
}

type Team struct {
	TeamID     int    `json:"team_id" db:"team_id"`
	TeamName   string `json:"team_name" db:"team_name"`
	Conference string `json:"conference" db:"conference"`
	Division   string `json:"division" db:"division"`
}

func SeasonGamesName(season int) string {
	return fmt.Sprintf("games-%d.json", season)
}

// Filter is the league and stage a games artifact was normalized under.
type Filter struct {
	League string `json:"league"`
	Stage  int    `json:"stage"`
}

// Handle identifies a persisted artifact as recorded in the manifest.
type Handle struct {
	Name    string
	Path    string
	Records int
	SHA256  string
	Filter  Filter
}

type ManifestEntry struct {
	SHA256    string    `json:"sha256"`
	Records   int       `json:"records"`
	WrittenAt time.Time `json:"written_at"`
	RunID     string    `json:"run_id"`
	Filter    *Filter   `json:"filter,omitempty"`
}

func (e ManifestEntry) handle(name, path string) Handle {
	h := Handle{Name: name, Path: path, Records: e.Records, SHA256: e.SHA256}
	if e.Filter != nil {
		h.Filter = *e.Filter
	}
	return h
}

type Manifest struct {
	Artifacts map[string]ManifestEntry `json:"artifacts"`
}

// Store persists canonical artifacts as JSON arrays under one directory and
// tracks them in manifest.json.
type Store struct {
	dir    string
	runID  string
	logger *logrus.Logger
	mu     sync.Mutex
}

func NewStore(dir string, logger *logrus.Logger) *Store {
	return &Store{
		dir:    dir,
		runID:  uuid.NewString(),
		logger: logger,
	}
}

func (s *Store) RunID() string {
	return s.runID
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

// Lookup reports whether name has a manifest entry whose hash matches the
// file on disk.
func (s *Store) Lookup(name string) (Handle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(name)
}

func (s *Store) lookup(name string) (Handle, bool, error) {
	manifest, err := s.readManifest()
	if err != nil {
		return Handle{}, false, err
	}
	entry, ok := manifest.Artifacts[name]
	if !ok {
		return Handle{}, false, nil
	}
	data, err := os.ReadFile(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return Handle{}, false, nil
	} else if err != nil {
		return Handle{}, false, utils.ErrorWithTrace(err)
	}
	if checksum(data) != entry.SHA256 {
		s.logger.WithField("artifact", name).Warn("artifact does not match manifest checksum")
		return Handle{}, false, nil
	}
	return entry.handle(name, s.path(name)), true, nil
}

// WriteGames also records the filter the games were normalized under, so
// later runs can tell whether they still apply.
func (s *Store) WriteGames(name string, filter Filter, games []Game) (Handle, error) {
	if games == nil {
		games = []Game{}
	}
	return s.write(name, games, len(games), &filter)
}

func (s *Store) WriteTeams(teams []Team) (Handle, error) {
	if teams == nil {
		teams = []Team{}
	}
	return s.write(TeamsName, teams, len(teams), nil)
}

func (s *Store) ReadGames(name string) ([]Game, error) {
	games := []Game{}
	if err := s.read(name, &games); err != nil {
		return nil, err
	}
	return games, nil
}

func (s *Store) ReadTeams() ([]Team, error) {
	teams := []Team{}
	if err := s.read(TeamsName, &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// write overwrites the artifact atomically, then records it in the manifest.
func (s *Store) write(name string, records any, count int, filter *Filter) (Handle, error) {
	data, err := json.Marshal(records)
	if err != nil {
		return Handle{}, utils.ErrorWithTrace(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := utils.WriteFileAtomic(s.path(name), data); err != nil {
		return Handle{}, utils.ErrorWithTrace(err)
	}

	manifest, err := s.readManifest()
	if err != nil {
		return Handle{}, err
	}
	entry := ManifestEntry{
		SHA256:    checksum(data),
		Records:   count,
		WrittenAt: time.Now().UTC(),
		RunID:     s.runID,
		Filter:    filter,
	}
	manifest.Artifacts[name] = entry
	if err := s.writeManifest(manifest); err != nil {
		return Handle{}, err
	}

	s.logger.WithFields(logrus.Fields{"artifact": name, "records": count}).Debug("wrote artifact")
	return entry.handle(name, s.path(name)), nil
}

func (s *Store) read(name string, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok, err := s.lookup(name); err != nil {
		return err
	} else if !ok {
		return utils.ErrorWithTrace(fmt.Errorf("%s: %w", name, ErrNotFound))
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return utils.ErrorWithTrace(fmt.Errorf("decoding %s: %w", name, err))
	}
	return nil
}

func (s *Store) readManifest() (*Manifest, error) {
	manifest := &Manifest{Artifacts: map[string]ManifestEntry{}}
	data, err := os.ReadFile(s.path(ManifestName))
	if errors.Is(err, os.ErrNotExist) {
		return manifest, nil
	} else if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	if err := json.Unmarshal(data, manifest); err != nil {
		return nil, utils.ErrorWithTrace(fmt.Errorf("decoding manifest: %w", err))
	}
	if manifest.Artifacts == nil {
		manifest.Artifacts = map[string]ManifestEntry{}
	}
	return manifest, nil
}

func (s *Store) writeManifest(manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return utils.ErrorWithTrace(err)
	}
	return utils.WriteFileAtomic(s.path(ManifestName), data)
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
