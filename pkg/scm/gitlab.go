package scm

import (
	"context"
	"errors"
	"fmt"

	"reviewhooks/pkg/entity"

	gl "github.com/xanzy/go-gitlab"
)

// GitLabClient fetches merge request changes and push compare diffs from a
// GitLab instance.
type GitLabClient struct {
	client *gl.Client
}

// NewGitLabClient returns a client bound to the given instance and token.
func NewGitLabClient(baseURL, token string) (*GitLabClient, error) {
	if token == "" {
		return nil, errors.New("gitlab token is required")
	}
	opts := []gl.ClientOptionFunc{}
	if baseURL != "" {
		opts = append(opts, gl.WithBaseURL(baseURL))
	}
	client, err := gl.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("gitlab client: %w", err)
	}
	return &GitLabClient{client: client}, nil
}

// MergeRequestChanges fetches the changed files of a merge request. project
// is the numeric ID or the namespace/name path.
func (c *GitLabClient) MergeRequestChanges(ctx context.Context, project string, iid int) ([]Change, error) {
	mr, _, err := c.client.MergeRequests.GetMergeRequestChanges(project, iid, nil, gl.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlab merge request changes: %w", err)
	}
	changes := make([]Change, 0, len(mr.Changes))
	for _, item := range mr.Changes {
		additions, deletions := CountDiffLines(item.Diff)
		changes = append(changes, Change{
			Diff:      item.Diff,
			NewPath:   item.NewPath,
			OldPath:   item.OldPath,
			Additions: additions,
			Deletions: deletions,
			Deleted:   item.DeletedFile,
			Renamed:   item.RenamedFile,
		})
	}
	return changes, nil
}

// MergeRequestCommits fetches the commits of a merge request.
func (c *GitLabClient) MergeRequestCommits(ctx context.Context, project string, iid int) ([]entity.Commit, error) {
	raw, _, err := c.client.MergeRequests.GetMergeRequestCommits(project, iid, &gl.GetMergeRequestCommitsOptions{PerPage: 100}, gl.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlab merge request commits: %w", err)
	}
	commits := make([]entity.Commit, 0, len(raw))
	for _, item := range raw {
		commit := entity.Commit{
			ID:      item.ID,
			Message: item.Message,
			Author:  item.AuthorName,
			Email:   item.AuthorEmail,
			URL:     item.WebURL,
		}
		if item.CreatedAt != nil {
			commit.Timestamp = item.CreatedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		commits = append(commits, commit)
	}
	return commits, nil
}

// Compare fetches the diff between two revisions, used for push reviews.
func (c *GitLabClient) Compare(ctx context.Context, project, from, to string) ([]Change, error) {
	compare, _, err := c.client.Repositories.Compare(project, &gl.CompareOptions{
		From: gl.String(from),
		To:   gl.String(to),
	}, gl.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("gitlab compare: %w", err)
	}
	changes := make([]Change, 0, len(compare.Diffs))
	for _, item := range compare.Diffs {
		additions, deletions := CountDiffLines(item.Diff)
		changes = append(changes, Change{
			Diff:      item.Diff,
			NewPath:   item.NewPath,
			OldPath:   item.OldPath,
			Additions: additions,
			Deletions: deletions,
			Deleted:   item.DeletedFile,
			Renamed:   item.RenamedFile,
		})
	}
	return changes, nil
}
