package football

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/matchday-predictor/internal/model"
)

const (
	defaultBaseURL     = "https://api.football-data.org/v4"
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 512
)

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config controls how the client reaches football-data.org.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the football-data.org v4 REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient httpDoer
}

// compile-time check
var _ Provider = (*Client)(nil)

// NewClient constructs a client with the provided configuration.
func NewClient(cfg Config) *Client {
	return &Client{
		baseURL:    normalizeBaseURL(cfg.BaseURL),
		token:      cfg.Token,
		httpClient: resolveHTTPClient(cfg.HTTPClient, cfg.Timeout),
	}
}

// FetchMatches performs one GET and decodes the "matches" array.
func (c *Client) FetchMatches(ctx context.Context, q Query) ([]model.Match, error) {
	req, err := c.buildRequest(ctx, q)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: parseReset(resp.Header.Get("X-RequestCounter-Reset")),
		}
	}

	var payload matchesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Matches == nil {
		return []model.Match{}, nil
	}
	return payload.Matches, nil
}

func (c *Client) buildRequest(ctx context.Context, q Query) (*http.Request, error) {
	path := "/matches"
	if q.CompetitionID > 0 {
		path = "/competitions/" + strconv.Itoa(q.CompetitionID) + "/matches"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	params := req.URL.Query()
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.DateFrom != "" {
		params.Set("dateFrom", q.DateFrom)
	}
	if q.DateTo != "" {
		params.Set("dateTo", q.DateTo)
	}
	if len(q.IDs) > 0 {
		params.Set("ids", strings.Join(q.IDs, ","))
	}
	req.URL.RawQuery = params.Encode()

	if c.token != "" {
		req.Header.Set("X-Auth-Token", c.token)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

type matchesResponse struct {
	Matches []model.Match `json:"matches"`
}

func resolveHTTPClient(client *http.Client, timeout time.Duration) httpDoer {
	if client != nil {
		return client
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &http.Client{Timeout: timeout}
}

func normalizeBaseURL(raw string) string {
	if raw == "" {
		raw = defaultBaseURL
	}
	return strings.TrimSuffix(raw, "/")
}

func parseReset(raw string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
