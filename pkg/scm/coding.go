package scm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// CodingClient fetches diffs from a CODING instance. Pull request payloads
// carry a ready-made diff URL; push diffs go through the depot compare API.
type CodingClient struct {
	token   string
	baseURL string
	client  *http.Client
}

// NewCodingClient returns a client bound to the given instance and token.
func NewCodingClient(baseURL, token string) (*CodingClient, error) {
	if token == "" {
		return nil, errors.New("coding token is required")
	}
	if baseURL == "" {
		return nil, errors.New("coding base url is required")
	}
	return &CodingClient{
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// DiffFromURL fetches the raw diff document the pull request payload points
// at and splits it into per-file changes.
func (c *CodingClient) DiffFromURL(ctx context.Context, diffURL string) ([]Change, error) {
	if diffURL == "" {
		return nil, errors.New("coding diff url is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, diffURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Accept", "application/vnd.github.v3.diff")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("coding api error: status %d: %s", resp.StatusCode, string(raw))
	}
	return ParseUnifiedDiff(string(raw)), nil
}

// Compare fetches the diff between two revisions of a depot, used for push
// reviews.
func (c *CodingClient) Compare(ctx context.Context, project string, repoID int64, before, after string) ([]Change, error) {
	endpoint := fmt.Sprintf("%s/api/v3/projects/%s/git/repositories/%d/compare/%s...%s",
		c.baseURL, project, repoID, before, after)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+c.token)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coding api error: status %d: %s", resp.StatusCode, string(raw))
	}
	var out struct {
		Files []struct {
			Patch     string `json:"patch"`
			Filename  string `json:"filename"`
			Status    string `json:"status"`
			Additions int    `json:"additions"`
			Deletions int    `json:"deletions"`
		} `json:"files"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return nil, err
	}
	changes := make([]Change, 0, len(out.Files))
	for _, file := range out.Files {
		additions, deletions := file.Additions, file.Deletions
		if additions == 0 && deletions == 0 {
			additions, deletions = CountDiffLines(file.Patch)
		}
		changes = append(changes, Change{
			Diff:      file.Patch,
			NewPath:   file.Filename,
			Additions: additions,
			Deletions: deletions,
			Deleted:   file.Status == "removed" || file.Status == "deleted",
		})
	}
	return changes, nil
}
