// Package ghpr talks to the GitHub REST API for the report lifecycle:
// finding the open report PR, reading the snapshot state committed to its
// branch, committing refreshed state, and creating or updating the PR.
package ghpr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrNotFound marks a missing branch, file or PR.
	ErrNotFound = errors.New("ghpr: not found")
	// ErrMultipleOpenPRs is returned when more than one open PR exists for
	// the report branch. Which one is authoritative is ambiguous, so this
	// requires manual intervention; no automatic tie-break is attempted.
	ErrMultipleOpenPRs = errors.New("ghpr: multiple open pull requests for report branch")
)

const defaultBaseURL = "https://api.github.com"

// Config configures the client.
type Config struct {
	// Owner and Repo identify the repository holding report PRs.
	Owner string
	Repo  string
	// Token is a GitHub token with contents and pull-request scopes.
	Token string
	// BaseURL overrides the API base (for testing). Empty uses production.
	BaseURL string
	// Timeout is the per-request HTTP timeout. Default: 30s.
	Timeout time.Duration
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// Client is a minimal GitHub REST client.
type Client struct {
	httpc  *http.Client
	config Config
}

// NewClient creates a Client.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		httpc:  &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

// PullRequest is the subset of the API's PR object the watcher needs.
type PullRequest struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state"`
	Head   struct {
		Ref string `json:"ref"`
	} `json:"head"`
	HTMLURL string `json:"html_url"`
}

// FindOpenPR returns the open PR whose head is the given branch, or
// ErrNotFound when none exists. Two or more open PRs for the same head is
// ErrMultipleOpenPRs.
func (c *Client) FindOpenPR(ctx context.Context, headBranch string) (*PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls?state=open&head=%s:%s",
		c.config.BaseURL, c.config.Owner, c.config.Repo, c.config.Owner, headBranch)
	var prs []PullRequest
	if err := c.getJSON(ctx, url, &prs); err != nil {
		return nil, err
	}
	switch len(prs) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &prs[0], nil
	default:
		return nil, fmt.Errorf("%w: branch %s has %d", ErrMultipleOpenPRs, headBranch, len(prs))
	}
}

// CreatePR opens a pull request from head into base.
func (c *Client) CreatePR(ctx context.Context, head, base, title, body string) (*PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls", c.config.BaseURL, c.config.Owner, c.config.Repo)
	payload := map[string]string{"title": title, "head": head, "base": base, "body": body}
	var pr PullRequest
	if err := c.doJSON(ctx, http.MethodPost, url, payload, &pr); err != nil {
		return nil, err
	}
	return &pr, nil
}

// UpdateBody replaces the PR body.
func (c *Client) UpdateBody(ctx context.Context, number int, body string) error {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.config.BaseURL, c.config.Owner, c.config.Repo, number)
	return c.doJSON(ctx, http.MethodPatch, url, map[string]string{"body": body}, nil)
}

type contentsResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

// GetFile reads a file's content at the given ref via the contents API.
// Returns ErrNotFound for a missing path or ref.
func (c *Client) GetFile(ctx context.Context, ref, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.config.BaseURL, c.config.Owner, c.config.Repo, path, ref)
	var cr contentsResponse
	if err := c.getJSON(ctx, url, &cr); err != nil {
		return nil, err
	}
	if cr.Encoding != "base64" {
		return nil, fmt.Errorf("ghpr: unexpected encoding %q for %s", cr.Encoding, path)
	}
	return base64.StdEncoding.DecodeString(cr.Content)
}

// PutFile creates or updates a file on the given branch via the contents
// API, committing with the given message. The file's current blob sha is
// looked up first; absent means create.
func (c *Client) PutFile(ctx context.Context, branch, path, message string, content []byte) error {
	sha := ""
	url := fmt.Sprintf("%s/repos/%s/%s/contents/%s?ref=%s",
		c.config.BaseURL, c.config.Owner, c.config.Repo, path, branch)
	var existing contentsResponse
	err := c.getJSON(ctx, url, &existing)
	switch {
	case err == nil:
		sha = existing.SHA
	case errors.Is(err, ErrNotFound):
		// create
	default:
		return err
	}

	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  branch,
	}
	if sha != "" {
		payload["sha"] = sha
	}
	putURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s",
		c.config.BaseURL, c.config.Owner, c.config.Repo, path)
	return c.doJSON(ctx, http.MethodPut, putURL, payload, nil)
}

type refObject struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

// EnsureBranch creates branch from base if it does not exist yet.
func (c *Client) EnsureBranch(ctx context.Context, branch, base string) error {
	headURL := fmt.Sprintf("%s/repos/%s/%s/git/ref/heads/%s",
		c.config.BaseURL, c.config.Owner, c.config.Repo, branch)
	var existing refObject
	err := c.getJSON(ctx, headURL, &existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	baseURL := fmt.Sprintf("%s/repos/%s/%s/git/ref/heads/%s",
		c.config.BaseURL, c.config.Owner, c.config.Repo, base)
	var baseRef refObject
	if err := c.getJSON(ctx, baseURL, &baseRef); err != nil {
		return fmt.Errorf("ghpr: resolve base branch %s: %w", base, err)
	}

	createURL := fmt.Sprintf("%s/repos/%s/%s/git/refs", c.config.BaseURL, c.config.Owner, c.config.Repo)
	payload := map[string]string{
		"ref": "refs/heads/" + branch,
		"sha": baseRef.Object.SHA,
	}
	return c.doJSON(ctx, http.MethodPost, createURL, payload, nil)
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, out)
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("ghpr: marshal payload: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("ghpr: new request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("ghpr: %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ghpr: %s %s: HTTP %d: %s", method, url, resp.StatusCode, string(snippet))
	}
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return fmt.Errorf("ghpr: read response: %w", err)
	}
	return json.Unmarshal(data, out)
}
