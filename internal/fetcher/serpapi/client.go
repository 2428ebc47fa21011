// Package serpapi queries an HTTP search-results API and maps its payload
// onto ranked search results.
package serpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rankscope/rankscope/internal/domain"
	"github.com/rankscope/rankscope/internal/seo"
)

const defaultTimeout = 20 * time.Second

// ErrUnavailable indicates the search API is unreachable.
var ErrUnavailable = errors.New("search API unavailable")

// Config holds the connection settings for the search API.
type Config struct {
	Endpoint string
	APIKey   string
	Engine   string
	Timeout  time.Duration
}

// Client is an HTTP client for a SERP API service.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient creates a new SERP API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("search API endpoint is required")
	}
	if cfg.Engine == "" {
		cfg.Engine = "google"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type searchResponse struct {
	OrganicResults []organicResult `json:"organic_results"`
	Error          string          `json:"error"`
}

type organicResult struct {
	Position int    `json:"position"`
	Link     string `json:"link"`
	Title    string `json:"title"`
	Snippet  string `json:"snippet"`
}

// Search runs a query against the SERP API and returns the organic results
// in rank order. Returns ErrUnavailable when the service is unreachable.
func (c *Client) Search(ctx context.Context, query string) ([]seo.SearchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL(query), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("search API error: %s", payload.Error)
	}

	results := make([]seo.SearchResult, 0, len(payload.OrganicResults))
	for i, r := range payload.OrganicResults {
		position := r.Position
		if position <= 0 {
			position = i + 1
		}
		results = append(results, seo.SearchResult{
			Position: position,
			URL:      r.Link,
			Title:    r.Title,
			Snippet:  r.Snippet,
			Domain:   domain.Normalize(r.Link),
		})
	}
	return results, nil
}

func (c *Client) searchURL(query string) string {
	params := url.Values{}
	params.Set("engine", c.cfg.Engine)
	params.Set("q", query)
	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}
	return c.cfg.Endpoint + "?" + params.Encode()
}
