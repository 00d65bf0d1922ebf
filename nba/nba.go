package nba

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"hoopstats/config"
	"hoopstats/utils"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// maxRetryAfter caps how long a Retry-After header can stall a request.
const maxRetryAfter = 2 * time.Minute

// FetchError reports a transport failure or a non-success response.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error

	retryAfter    time.Duration
	hasRetryAfter bool
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) retryable() bool {
	return e.StatusCode == 0 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// wait is the server's Retry-After when it sent one, otherwise backoff.
func (e *FetchError) wait(backoff time.Duration) time.Duration {
	if e.hasRetryAfter {
		return e.retryAfter
	}
	return backoff
}

// parseRetryAfter reads a Retry-After value given in seconds or as an HTTP
// date relative to now.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(value); err == nil {
		d = max(at.Sub(now), 0)
	} else {
		return 0, false
	}
	return min(d, maxRetryAfter), true
}

type Client struct {
	baseURL    string
	apiHost    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	retryDelay time.Duration
	logger     *logrus.Logger
}

func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiHost:    cfg.APIHost,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

func (c *Client) initNBAReq(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Add("Accept", "application/json")
	req.Header.Add("x-rapidapi-key", c.apiKey)
	req.Header.Add("x-rapidapi-host", c.apiHost)
	return req, nil
}

type envelope struct {
	Errors   json.RawMessage  `json:"errors"`
	Response *json.RawMessage `json:"response"`
}

// Games returns the raw game records for one season.
func (c *Client) Games(ctx context.Context, season int) ([]RawGame, error) {
	endpoint := fmt.Sprintf("%s/games?%s", c.baseURL, url.Values{"season": {strconv.Itoa(season)}}.Encode())
	games := []RawGame{}
	if err := c.getResults(ctx, endpoint, "games", &games); err != nil {
		return nil, err
	}
	return games, nil
}

// Teams returns every raw team record, in response order.
func (c *Client) Teams(ctx context.Context) ([]RawTeam, error) {
	endpoint := fmt.Sprintf("%s/teams", c.baseURL)
	teams := []RawTeam{}
	if err := c.getResults(ctx, endpoint, "teams", &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

func (c *Client) getResults(ctx context.Context, endpoint, name string, out any) error {
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}

	env := envelope{}
	if err := json.Unmarshal(body, &env); err != nil {
		return &FetchError{URL: endpoint, Err: fmt.Errorf("decoding body: %w", err)}
	}
	if apiErrors := bytes.TrimSpace(env.Errors); len(apiErrors) > 0 && !isEmptyJSON(apiErrors) {
		return &FetchError{URL: endpoint, Err: fmt.Errorf("api errors: %s", apiErrors)}
	}
	if env.Response == nil {
		return &SchemaError{Endpoint: name, Index: -1, Field: "response"}
	}
	if err := json.Unmarshal(*env.Response, out); err != nil {
		return &SchemaError{Endpoint: name, Index: -1, Field: "response", Err: err}
	}
	return nil
}

// get performs one GET with rate limiting and bounded exponential backoff
// on transport errors, 429 and 5xx responses. A Retry-After header replaces
// the backoff for the next attempt.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr *FetchError
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := lastErr.wait(c.retryDelay * time.Duration(1<<(attempt-1)))
			c.logger.WithFields(logrus.Fields{
				"url":     endpoint,
				"attempt": attempt,
				"delay":   delay,
			}).WithError(lastErr).Warn("retrying request")
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, &FetchError{URL: endpoint, Err: ctx.Err()}
			case <-timer.C:
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: endpoint, Err: err}
		}

		body, err := c.do(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) || !fetchErr.retryable() || ctx.Err() != nil {
			return nil, err
		}
		lastErr = fetchErr
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := c.initNBAReq(ctx, endpoint)
	if err != nil {
		return nil, utils.ErrorWithTrace(err)
	}
	c.logger.WithField("url", endpoint).Debug("GET")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: endpoint, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fetchErr := &FetchError{URL: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", snippet(body))}
		fetchErr.retryAfter, fetchErr.hasRetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		return nil, fetchErr
	}
	return body, nil
}

func isEmptyJSON(raw []byte) bool {
	switch string(raw) {
	case "[]", "{}", "null", `""`:
		return true
	}
	return false
}

func snippet(body []byte) string {
	if len(body) > 200 {
		return string(body[:200])
	}
	return string(body)
}
