package scm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"reviewhooks/pkg/entity"

	gh "github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubClient fetches pull request files and push compare diffs from
// github.com or a GitHub Enterprise instance.
type GitHubClient struct {
	client *gh.Client
}

// NewGitHubClient returns a client bound to the given instance and token.
func NewGitHubClient(ctx context.Context, baseURL, token string) (*GitHubClient, error) {
	if token == "" {
		return nil, errors.New("github token is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := gh.NewClient(oauth2.NewClient(ctx, ts))
	if baseURL != "" && baseURL != "https://github.com" {
		api := strings.TrimRight(baseURL, "/") + "/api/v3/"
		enterprise, err := client.WithEnterpriseURLs(api, api)
		if err != nil {
			return nil, fmt.Errorf("github enterprise urls: %w", err)
		}
		client = enterprise
	}
	return &GitHubClient{client: client}, nil
}

// PullRequestChanges fetches the changed files of a pull request.
func (c *GitHubClient) PullRequestChanges(ctx context.Context, owner, repo string, number int) ([]Change, error) {
	var changes []Change
	opts := &gh.ListOptions{PerPage: 100}
	for {
		files, resp, err := c.client.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("github pull request files: %w", err)
		}
		for _, file := range files {
			changes = append(changes, fromCommitFile(file))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return changes, nil
}

// PullRequestCommits fetches the commits of a pull request.
func (c *GitHubClient) PullRequestCommits(ctx context.Context, owner, repo string, number int) ([]entity.Commit, error) {
	raw, _, err := c.client.PullRequests.ListCommits(ctx, owner, repo, number, &gh.ListOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("github pull request commits: %w", err)
	}
	commits := make([]entity.Commit, 0, len(raw))
	for _, item := range raw {
		commit := entity.Commit{
			ID:      item.GetSHA(),
			Message: item.GetCommit().GetMessage(),
			URL:     item.GetHTMLURL(),
		}
		if author := item.GetCommit().GetAuthor(); author != nil {
			commit.Author = author.GetName()
			commit.Email = author.GetEmail()
			commit.Timestamp = author.GetDate().Format("2006-01-02T15:04:05Z07:00")
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// Compare fetches the diff between two revisions, used for push reviews.
func (c *GitHubClient) Compare(ctx context.Context, owner, repo, base, head string) ([]Change, error) {
	comparison, _, err := c.client.Repositories.CompareCommits(ctx, owner, repo, base, head, &gh.ListOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("github compare: %w", err)
	}
	changes := make([]Change, 0, len(comparison.Files))
	for _, file := range comparison.Files {
		changes = append(changes, fromCommitFile(file))
	}
	return changes, nil
}

func fromCommitFile(file *gh.CommitFile) Change {
	return Change{
		Diff:      file.GetPatch(),
		NewPath:   file.GetFilename(),
		OldPath:   file.GetPreviousFilename(),
		Additions: file.GetAdditions(),
		Deletions: file.GetDeletions(),
		Deleted:   file.GetStatus() == "removed",
		Renamed:   file.GetStatus() == "renamed",
	}
}
