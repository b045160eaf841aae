package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrMissingPageID is returned when the API yields a page without an id.
// A record with no identifier cannot participate in change tracking, so the
// whole query fails rather than guessing.
var ErrMissingPageID = errors.New("notion: page without id in query response")

const (
	defaultBaseURL  = "https://api.notion.com"
	defaultVersion  = "2022-06-28"
	defaultPageSize = 100
	maxBodyBytes    = 25 * 1024 * 1024
)

// Config configures the client.
type Config struct {
	// Token is the integration token (required).
	Token string
	// BaseURL overrides the API base (for testing). Empty uses production.
	BaseURL string
	// Version is the Notion-Version header. Default: 2022-06-28.
	Version string
	// Timeout is the per-request HTTP timeout. Default: 30s.
	Timeout time.Duration
	// PageSize is the query page size, capped by the API at 100.
	PageSize int
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Version == "" {
		c.Version = defaultVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.PageSize <= 0 || c.PageSize > defaultPageSize {
		c.PageSize = defaultPageSize
	}
}

// Client queries Notion databases.
type Client struct {
	httpc  *http.Client
	config Config
}

// NewClient creates a Client. The token must be a Notion integration token
// with read access to the watched databases.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		httpc:  &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

type queryRequest struct {
	StartCursor string `json:"start_cursor,omitempty"`
	PageSize    int    `json:"page_size"`
}

type queryResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// QueryAll retrieves every page of the database, following pagination until
// exhausted. The returned order is the API's own (stable for a given database
// state), which downstream diffing relies on for deterministic output.
func (c *Client) QueryAll(ctx context.Context, databaseID string) ([]Page, error) {
	var (
		pages  []Page
		cursor string
	)
	for {
		resp, err := c.queryOnce(ctx, databaseID, cursor)
		if err != nil {
			return nil, err
		}
		for _, p := range resp.Results {
			if p.ID == "" {
				return nil, ErrMissingPageID
			}
			pages = append(pages, p)
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return pages, nil
		}
		cursor = *resp.NextCursor
	}
}

func (c *Client) queryOnce(ctx context.Context, databaseID, cursor string) (*queryResponse, error) {
	body, err := json.Marshal(queryRequest{StartCursor: cursor, PageSize: c.config.PageSize})
	if err != nil {
		return nil, fmt.Errorf("notion: marshal query: %w", err)
	}

	url := fmt.Sprintf("%s/v1/databases/%s/query", c.config.BaseURL, databaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("notion: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Notion-Version", c.config.Version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("notion: query database %s: %w", databaseID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("notion: query database %s: HTTP %d: %s", databaseID, resp.StatusCode, string(snippet))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("notion: read response: %w", err)
	}
	var out queryResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("notion: decode response: %w", err)
	}
	return &out, nil
}
