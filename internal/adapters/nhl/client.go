// Package nhl is a client for the public NHL web and stats APIs.
package nhl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/puckcast/internal/domain/model"
	"github.com/okian/puckcast/pkg/logger"
	"github.com/okian/puckcast/pkg/metrics"
)

// Default endpoints and timeout.
const (
	DefaultWebBaseURL   = "https://api-web.nhle.com/v1/"
	DefaultStatsBaseURL = "https://api.nhle.com/stats/rest/en/"
	DefaultTimeout      = 15 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithWebBaseURL sets the schedule and standings base URL.
func WithWebBaseURL(u string) Option {
	return func(cl *Client) {
		if u != "" {
			cl.webBase = withSlash(u)
		}
	}
}

// WithStatsBaseURL sets the team list base URL.
func WithStatsBaseURL(u string) Option {
	return func(cl *Client) {
		if u != "" {
			cl.statsBase = withSlash(u)
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.log = l
		}
	}
}

func withSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}

// Client fetches teams, schedules and standings.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	webBase   string
	statsBase string
	log       logger.Logger
}

// NewClient returns a client with a 15s timeout against the public API.
func NewClient(opts ...Option) *Client {
	c := &Client{
		timeout:   DefaultTimeout,
		webBase:   DefaultWebBaseURL,
		statsBase: DefaultStatsBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.log == nil {
		c.log = logger.Get().Named("nhl")
	}
	return c
}

// TeamInfo is one row of the stats team list.
type TeamInfo struct {
	ID          int    `json:"id"`
	FranchiseID *int   `json:"franchiseId"`
	FullName    string `json:"fullName"`
	TriCode     string `json:"triCode"`
}

// ScheduledGame is one upstream game with its raw payload kept for storage.
type ScheduledGame struct {
	Payload model.GamePayload
	Raw     json.RawMessage
}

// Standing is one team's standings row.
type Standing struct {
	Abbrev  string
	Payload model.StandingsPayload
	Raw     json.RawMessage
}

// get performs one GET and decodes the JSON body into out. Non-200
// responses are ErrUpstreamFetch.
func (c *Client) get(ctx context.Context, endpoint, url string, out any) error {
	const op = "nhl.get"
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Wrap(op, model.ErrUpstreamFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordUpstreamError(endpoint)
		return model.Wrap(op, model.ErrUpstreamFetch, err)
	}
	defer resp.Body.Close()

	metrics.RecordUpstreamRequest(endpoint, strconv.Itoa(resp.StatusCode), float64(time.Since(start).Milliseconds()))
	if resp.StatusCode != http.StatusOK {
		metrics.RecordUpstreamError(endpoint)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn(ctx, "upstream returned non-200",
			logger.String("endpoint", endpoint), logger.Int("status", resp.StatusCode))
		return model.Kind(op, model.ErrUpstreamFetch, "%s status %d: %s", endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.RecordUpstreamError(endpoint)
		return model.Wrap(op, model.ErrUpstreamFetch, fmt.Errorf("decode %s: %w", endpoint, err))
	}
	return nil
}

// Teams lists every team with a franchise.
func (c *Client) Teams(ctx context.Context) ([]TeamInfo, error) {
	var body struct {
		Data []TeamInfo `json:"data"`
	}
	if err := c.get(ctx, "team", c.statsBase+"team", &body); err != nil {
		return nil, err
	}
	out := make([]TeamInfo, 0, len(body.Data))
	for _, t := range body.Data {
		if t.FranchiseID == nil {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// Schedule returns the games played on date.
func (c *Client) Schedule(ctx context.Context, date time.Time) ([]ScheduledGame, error) {
	day := date.Format(time.DateOnly)
	var body struct {
		GameWeek []struct {
			Date  string            `json:"date"`
			Games []json.RawMessage `json:"games"`
		} `json:"gameWeek"`
	}
	if err := c.get(ctx, "schedule", c.webBase+"schedule/"+day, &body); err != nil {
		return nil, err
	}

	var out []ScheduledGame
	for _, wk := range body.GameWeek {
		if wk.Date != day {
			continue
		}
		for _, raw := range wk.Games {
			p, err := model.DecodeGame(raw)
			if err != nil {
				c.log.Warn(ctx, "skipping undecodable game", logger.String("date", day), logger.Error(err))
				continue
			}
			if p.GameDate == "" {
				p.GameDate = wk.Date
			}
			out = append(out, ScheduledGame{Payload: p, Raw: raw})
		}
	}
	return out, nil
}

// Standings returns the league standings as of date. An empty list is
// valid: no games have been played yet that season.
func (c *Client) Standings(ctx context.Context, date time.Time) ([]Standing, error) {
	var body struct {
		Standings []json.RawMessage `json:"standings"`
	}
	if err := c.get(ctx, "standings", c.webBase+"standings/"+date.Format(time.DateOnly), &body); err != nil {
		return nil, err
	}
	out := make([]Standing, 0, len(body.Standings))
	for _, raw := range body.Standings {
		p, err := model.DecodeStandings(raw)
		if err != nil {
			c.log.Warn(ctx, "skipping undecodable standings row", logger.Error(err))
			continue
		}
		out = append(out, Standing{Abbrev: string(p.TeamAbbrev), Payload: p, Raw: raw})
	}
	return out, nil
}
