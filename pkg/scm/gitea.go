package scm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GiteaClient fetches diffs from a Gitea instance. Gitea exposes whole-diff
// documents rather than per-file change lists, so responses are split with
// ParseUnifiedDiff.
type GiteaClient struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewGiteaClient returns a client bound to the given instance and token.
func NewGiteaClient(baseURL, token string) (*GiteaClient, error) {
	if token == "" {
		return nil, errors.New("gitea token is required")
	}
	if baseURL == "" {
		return nil, errors.New("gitea base url is required")
	}
	return &GiteaClient{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// PullRequestChanges fetches the full diff of a pull request.
func (c *GiteaClient) PullRequestChanges(ctx context.Context, owner, repo string, index int) ([]Change, error) {
	endpoint := fmt.Sprintf("%s/api/v1/repos/%s/%s/pulls/%d.diff", c.baseURL, owner, repo, index)
	raw, err := c.fetchDiff(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return ParseUnifiedDiff(raw), nil
}

// Compare fetches the diff between two revisions, used for push reviews.
func (c *GiteaClient) Compare(ctx context.Context, owner, repo, before, after string) ([]Change, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/compare/%s...%s.diff", c.baseURL, owner, repo, before, after)
	raw, err := c.fetchDiff(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return ParseUnifiedDiff(raw), nil
}

func (c *GiteaClient) fetchDiff(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "token "+c.token)
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("gitea api error: status %d: %s", resp.StatusCode, string(raw))
	}
	return string(raw), nil
}
