// Package berghain provides a Go client for the Berghain Challenge API.
//
// A game is created per scenario and then played one person at a time:
// each /decide-and-next call submits the decision for the current person
// and returns the next one, until the venue is full or the rejection
// budget runs out.
//
// # Usage
//
//	client := berghain.NewClient(berghain.Config{})
//
//	game, err := client.NewGame(ctx, 1, playerID)
//	state, err := client.DecideAndNext(ctx, game.GameID, 0, nil)
package berghain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public challenge endpoint.
const DefaultBaseURL = "berghain.challenges.listenlabs.ai"

// Config holds configuration for the challenge API client.
type Config struct {
	// BaseURL is the challenge endpoint. The scheme may be omitted;
	// https is assumed. Defaults to the public endpoint if empty.
	BaseURL string

	// HTTPClient allows injecting a custom HTTP client (useful for
	// testing). Defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// Timeout overrides the default HTTP client timeout. Ignored when
	// HTTPClient is set.
	Timeout time.Duration

	// UserAgent overrides the User-Agent header. Optional.
	UserAgent string
}

// Client is a Berghain Challenge API client.
type Client struct {
	config Config
	http   *http.Client
}

// NewClient creates a new challenge API client with the given configuration.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		config: cfg,
		http:   httpClient,
	}
}

// BaseURL returns the configured endpoint.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// NewGame starts a game for the given scenario and returns its id,
// constraints, and attribute statistics.
func (c *Client) NewGame(ctx context.Context, scenario int, playerID string) (*NewGameResponse, error) {
	if playerID == "" {
		return nil, fmt.Errorf("berghain: player id is required")
	}

	q := url.Values{}
	q.Set("scenario", strconv.Itoa(scenario))
	q.Set("playerId", playerID)

	body, err := c.do(ctx, http.MethodGet, "new-game", q)
	if err != nil {
		return nil, err
	}

	var game NewGameResponse
	if err := json.Unmarshal(body, &game); err != nil {
		return nil, fmt.Errorf("berghain: decode new-game response: %w", err)
	}
	if game.GameID == "" {
		return nil, fmt.Errorf("berghain: new-game response missing gameId")
	}
	return &game, nil
}

// DecideAndNext submits the decision for the person at personIndex and
// returns the updated game state. accept must be set for every person
// after the first; for personIndex 0 a nil accept just fetches the
// first person.
func (c *Client) DecideAndNext(ctx context.Context, gameID string, personIndex int, accept *bool) (*DecideState, error) {
	if gameID == "" {
		return nil, fmt.Errorf("berghain: game id is required")
	}
	if personIndex > 0 && accept == nil {
		return nil, fmt.Errorf("berghain: accept is required for personIndex %d", personIndex)
	}

	q := url.Values{}
	q.Set("gameId", gameID)
	q.Set("personIndex", strconv.Itoa(personIndex))
	if accept != nil {
		q.Set("accept", strconv.FormatBool(*accept))
	}

	body, err := c.do(ctx, http.MethodPost, "decide-and-next", q)
	if err != nil {
		return nil, err
	}

	var state DecideState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("berghain: decode decide-and-next response: %w", err)
	}
	return &state, nil
}

// do sends a single request with query parameters and returns the raw
// body of a 200 response.
func (c *Client) do(ctx context.Context, method, path string, query url.Values) ([]byte, error) {
	base := c.config.BaseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}
	u := fmt.Sprintf("%s/%s?%s", strings.TrimRight(base, "/"), strings.TrimPrefix(path, "/"), query.Encode())

	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return nil, fmt.Errorf("berghain: create request: %w", err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("berghain: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("berghain: read response: %w", err)
	}

	if resp.StatusCode != 200 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
