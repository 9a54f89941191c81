// Package github provides the pull-request publication client.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// APIError is a typed GitHub API failure carrying the HTTP status and the
// raw response body.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github API error %d: %s", e.Status, e.Body)
}

// Publisher creates pull requests. Interface for testing; implemented by
// Client.
type Publisher interface {
	CreatePullRequest(ctx context.Context, owner, repo string, pr NewPullRequest) (*PullRequest, error)
}

// NewPullRequest holds the fields for creating a PR.
type NewPullRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

// PullRequest is the created PR.
type PullRequest struct {
	URL    string `json:"html_url"`
	Number int    `json:"number"`
}

// Client talks to the GitHub REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a GitHub client. baseURL defaults to the public API.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "https://api.github.com"
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreatePullRequest opens a PR and returns its URL and number. Non-2xx
// responses come back as *APIError.
func (c *Client) CreatePullRequest(ctx context.Context, owner, repo string, pr NewPullRequest) (*PullRequest, error) {
	payload, err := json.Marshal(pr)
	if err != nil {
		return nil, fmt.Errorf("marshal pull request: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/pulls", c.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, &APIError{Status: resp.StatusCode, Body: string(data)}
	}

	var created PullRequest
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("unmarshal pull request: %w", err)
	}
	return &created, nil
}
