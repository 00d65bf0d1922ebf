package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultBaseURL = "https://api-nba-v1.p.rapidapi.com"
	DefaultAPIHost = "api-nba-v1.p.rapidapi.com"

	// StandardLeague is the api-nba league key for the regular competition tier.
	StandardLeague = "standard"
	// RegularSeasonStage is the api-nba stage value for regular season games.
	RegularSeasonStage = 2

	DefaultGamesPerSeason = 82

	DefaultTimeout     = 30 * time.Second
	DefaultRetries     = 3
	DefaultRetryDelay  = 2 * time.Second
	DefaultRateLimit   = 1.0
	DefaultConcurrency = 1

	// SetupCommand is the only command that talks to the statistics API.
	SetupCommand = "setup"
)

// Lockout and pandemic seasons, keyed by the season's starting year.
var defaultSeasonGames = map[string]int{
	"2011": 66,
	"2020": 72,
}

type Config struct {
	DataDir  string
	Database string

	BaseURL string
	APIHost string
	APIKey  string

	FirstSeason int
	LastSeason  int
	League      string
	Stage       int

	GamesPerSeason int
	SeasonGames    map[int]int

	Timeout     time.Duration
	Retries     int
	RetryDelay  time.Duration
	RateLimit   float64
	Concurrency int

	TopGames      int
	MarginRanking int

	LogLevel string
}

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// Load parses args with a pflag FlagSet, overlays an optional YAML file
// given by --config, and returns the validated config plus the remaining
// positional arguments. API client flags are only registered for the setup
// command; other commands keep their defaults.
func Load(name string, args []string) (*Config, []string, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	configFile := fs.String("config", "", "optional YAML config file")
	fs.String("data-dir", "db", "directory holding the canonical JSON artifacts")
	fs.String("database", ":memory:", "SQLite database the analytics run against")
	fs.Int("first-season", 2014, "first season of the ingestion window")
	fs.Int("last-season", 2024, "last season of the ingestion window (inclusive)")
	fs.String("league", StandardLeague, "league admitted during normalization")
	fs.Int("stage", RegularSeasonStage, "game stage admitted during normalization")
	fs.Int("games-per-season", DefaultGamesPerSeason, "scheduled games per team per season")
	fs.StringToInt("season-games", defaultSeasonGames, "per-season overrides of games-per-season")
	fs.Int("top-games", 10, "number of highest-scoring games to report")
	fs.Int("margin-ranking", 1, "number of teams listed in the margin of victory ranking")
	fs.String("log-level", "info", "log level")
	if name == SetupCommand {
		fs.String("base-url", DefaultBaseURL, "statistics API base URL")
		fs.String("api-host", DefaultAPIHost, "value of the x-rapidapi-host header")
		fs.Duration("timeout", DefaultTimeout, "per-request timeout")
		fs.Int("retries", DefaultRetries, "retries for transient API failures")
		fs.Duration("retry-delay", DefaultRetryDelay, "base delay between retries")
		fs.Float64("rate-limit", DefaultRateLimit, "maximum API requests per second")
		fs.Int("concurrency", DefaultConcurrency, "seasons fetched in parallel")
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, &ConfigurationError{Field: "flags", Reason: err.Error()}
	}

	v := viper.New()
	v.SetDefault("base-url", DefaultBaseURL)
	v.SetDefault("api-host", DefaultAPIHost)
	v.SetDefault("timeout", DefaultTimeout)
	v.SetDefault("retries", DefaultRetries)
	v.SetDefault("retry-delay", DefaultRetryDelay)
	v.SetDefault("rate-limit", DefaultRateLimit)
	v.SetDefault("concurrency", DefaultConcurrency)
	if err := v.BindPFlags(fs); err != nil {
		return nil, nil, err
	}
	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, &ConfigurationError{Field: "config", Reason: err.Error()}
		}
	}

	cfg := &Config{
		DataDir:        v.GetString("data-dir"),
		Database:       v.GetString("database"),
		BaseURL:        strings.TrimRight(v.GetString("base-url"), "/"),
		APIHost:        v.GetString("api-host"),
		FirstSeason:    v.GetInt("first-season"),
		LastSeason:     v.GetInt("last-season"),
		League:         v.GetString("league"),
		Stage:          v.GetInt("stage"),
		GamesPerSeason: v.GetInt("games-per-season"),
		Timeout:        v.GetDuration("timeout"),
		Retries:        v.GetInt("retries"),
		RetryDelay:     v.GetDuration("retry-delay"),
		RateLimit:      v.GetFloat64("rate-limit"),
		Concurrency:    v.GetInt("concurrency"),
		TopGames:       v.GetInt("top-games"),
		MarginRanking:  v.GetInt("margin-ranking"),
		LogLevel:       v.GetString("log-level"),
	}

	seasonGames, err := seasonGamesFrom(v, fs)
	if err != nil {
		return nil, nil, err
	}
	cfg.SeasonGames = seasonGames

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, fs.Args(), nil
}

// seasonGamesFrom prefers the flag when it was given, then the config file,
// then the flag default. YAML keys may be quoted or bare integers.
func seasonGamesFrom(v *viper.Viper, fs *flag.FlagSet) (map[int]int, error) {
	raw := map[string]int{}
	if v.InConfig("season-games") && !fs.Changed("season-games") {
		for k, val := range v.GetStringMap("season-games") {
			games, err := cast.ToIntE(val)
			if err != nil {
				return nil, &ConfigurationError{Field: "season-games", Reason: fmt.Sprintf("season %s: %v", k, err)}
			}
			raw[k] = games
		}
	} else {
		m, err := fs.GetStringToInt("season-games")
		if err != nil {
			return nil, &ConfigurationError{Field: "season-games", Reason: err.Error()}
		}
		raw = m
	}

	out := make(map[int]int, len(raw))
	for k, games := range raw {
		season, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, &ConfigurationError{Field: "season-games", Reason: fmt.Sprintf("invalid season %q", k)}
		}
		if games <= 0 {
			return nil, &ConfigurationError{Field: "season-games", Reason: fmt.Sprintf("season %d: games must be positive", season)}
		}
		out[season] = games
	}
	return out, nil
}

func (c *Config) Validate() error {
	switch {
	case c.DataDir == "":
		return &ConfigurationError{Field: "data-dir", Reason: "must not be empty"}
	case c.Database == "":
		return &ConfigurationError{Field: "database", Reason: "must not be empty"}
	case c.BaseURL == "":
		return &ConfigurationError{Field: "base-url", Reason: "must not be empty"}
	case c.FirstSeason > c.LastSeason:
		return &ConfigurationError{Field: "first-season", Reason: fmt.Sprintf("%d is after last season %d", c.FirstSeason, c.LastSeason)}
	case c.League == "":
		return &ConfigurationError{Field: "league", Reason: "must not be empty"}
	case c.GamesPerSeason <= 0:
		return &ConfigurationError{Field: "games-per-season", Reason: "must be positive"}
	case c.Timeout <= 0:
		return &ConfigurationError{Field: "timeout", Reason: "must be positive"}
	case c.Retries < 0:
		return &ConfigurationError{Field: "retries", Reason: "must not be negative"}
	case c.RateLimit <= 0:
		return &ConfigurationError{Field: "rate-limit", Reason: "must be positive"}
	case c.Concurrency < 1:
		return &ConfigurationError{Field: "concurrency", Reason: "must be at least 1"}
	case c.TopGames < 0:
		return &ConfigurationError{Field: "top-games", Reason: "must not be negative"}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return &ConfigurationError{Field: "log-level", Reason: err.Error()}
	}
	return nil
}

// RequireAPIKey accepts exactly one positional argument, the API credential.
func (c *Config) RequireAPIKey(args []string) error {
	if len(args) != 1 {
		return &ConfigurationError{Field: "api-key", Reason: fmt.Sprintf("expected exactly one positional argument (the API key), got %d", len(args))}
	}
	key := strings.TrimSpace(args[0])
	if key == "" {
		return &ConfigurationError{Field: "api-key", Reason: "must not be empty"}
	}
	c.APIKey = key
	return nil
}

// Seasons lists the configured season window in ascending order.
func (c *Config) Seasons() []int {
	seasons := make([]int, 0, c.LastSeason-c.FirstSeason+1)
	for s := c.FirstSeason; s <= c.LastSeason; s++ {
		seasons = append(seasons, s)
	}
	return seasons
}

func (c *Config) IsInvalidSeason(season int) bool {
	return season < c.FirstSeason || season > c.LastSeason
}

// GamesInSeason is the number of games each team is scheduled to play.
func (c *Config) GamesInSeason(season int) int {
	if n, ok := c.SeasonGames[season]; ok {
		return n
	}
	return c.GamesPerSeason
}

func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}
