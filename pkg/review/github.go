package review

import (
	"context"
	"encoding/json"
	"fmt"

	"reviewhooks/internal"
	"reviewhooks/pkg/dispatch"
	"reviewhooks/pkg/entity"

	ghhook "github.com/go-playground/webhooks/v6/github"
)

var githubPullRequestActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
}

// HandleGitHubPullRequest reviews a GitHub pull request event.
func (s *Service) HandleGitHubPullRequest(ctx context.Context, event internal.WebhookEvent) dispatch.Outcome {
	var payload ghhook.PullRequestPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return dispatch.Fail(fmt.Errorf("decode github pull request payload: %w", err))
	}

	if !githubPullRequestActions[payload.Action] {
		return dispatch.Skip("pull request action %q ignored", payload.Action)
	}
	if payload.PullRequest.State != "open" {
		return dispatch.Skip("pull request state %q ignored", payload.PullRequest.State)
	}
	if reason, skip := s.checkSkipRules(event); skip {
		return dispatch.Skip("skip rule matched: %s", reason)
	}

	owner := payload.Repository.Owner.Login
	repo := payload.Repository.Name
	project := payload.Repository.FullName
	lastCommitID := payload.PullRequest.Head.Sha
	sourceBranch := payload.PullRequest.Head.Ref
	targetBranch := payload.PullRequest.Base.Ref
	if s.seenMergeRequest(ctx, project, sourceBranch, targetBranch, lastCommitID) {
		return dispatch.Skip("commit %s already reviewed", lastCommitID)
	}

	client, err := s.newGitHub(ctx, event.BaseURL, event.Token)
	if err != nil {
		return dispatch.Fail(err)
	}
	number := int(payload.Number)
	changes, err := client.PullRequestChanges(ctx, owner, repo, number)
	if err != nil {
		return dispatch.Fail(err)
	}
	filtered := FilterChanges(changes, s.cfg.Extensions())
	if len(filtered) == 0 {
		return dispatch.Skip("no reviewable changes")
	}

	commits, err := client.PullRequestCommits(ctx, owner, repo, number)
	if err != nil {
		return dispatch.Fail(err)
	}

	text, score, err := s.review(ctx, filtered, commitMessages(commits))
	if err != nil {
		return dispatch.Fail(err)
	}

	additions, deletions := TotalCounts(filtered)
	s.bus.PublishMergeRequestReviewed(&entity.MergeRequestReview{
		ProjectName:  project,
		Author:       payload.PullRequest.User.Login,
		SourceBranch: sourceBranch,
		TargetBranch: targetBranch,
		UpdatedAt:    nowUnix(),
		Commits:      commits,
		Score:        score,
		URL:          payload.PullRequest.HTMLURL,
		ReviewResult: text,
		URLSlug:      event.URLSlug,
		LastCommitID: lastCommitID,
		Additions:    additions,
		Deletions:    deletions,
		WebhookData:  event.Payload,
	})
	return dispatch.Done()
}

// HandleGitHubPush reviews a GitHub push event.
func (s *Service) HandleGitHubPush(ctx context.Context, event internal.WebhookEvent) dispatch.Outcome {
	if !s.cfg.PushReviewEnabled {
		return dispatch.Skip("push review disabled")
	}
	var payload ghhook.PushPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return dispatch.Fail(fmt.Errorf("decode github push payload: %w", err))
	}
	if payload.Deleted || payload.After == zeroSHA {
		return dispatch.Skip("branch deleted")
	}
	if payload.Created || payload.Before == zeroSHA {
		return dispatch.Skip("new branch push has no compare base")
	}
	if reason, skip := s.checkSkipRules(event); skip {
		return dispatch.Skip("skip rule matched: %s", reason)
	}

	owner := payload.Repository.Owner.Login
	repo := payload.Repository.Name
	project := payload.Repository.FullName
	branch := branchFromRef(payload.Ref)
	if s.seenPush(ctx, project, branch, payload.Before, payload.After) {
		return dispatch.Skip("push %s..%s already reviewed", payload.Before, payload.After)
	}

	client, err := s.newGitHub(ctx, event.BaseURL, event.Token)
	if err != nil {
		return dispatch.Fail(err)
	}
	changes, err := client.Compare(ctx, owner, repo, payload.Before, payload.After)
	if err != nil {
		return dispatch.Fail(err)
	}
	filtered := FilterChanges(changes, s.cfg.Extensions())
	if len(filtered) == 0 {
		return dispatch.Skip("no reviewable changes")
	}

	commits := make([]entity.Commit, 0, len(payload.Commits))
	for _, commit := range payload.Commits {
		commits = append(commits, entity.Commit{
			ID:      commit.ID,
			Message: commit.Message,
			Author:  commit.Author.Name,
			Email:   commit.Author.Email,
			URL:     commit.URL,
		})
	}

	text, score, err := s.review(ctx, filtered, commitMessages(commits))
	if err != nil {
		return dispatch.Fail(err)
	}

	s.bus.PublishPushReviewed(&entity.PushReview{
		ProjectName:  project,
		Branch:       branch,
		BeforeSHA:    payload.Before,
		AfterSHA:     payload.After,
		PusherName:   payload.Pusher.Name,
		PusherEmail:  payload.Pusher.Email,
		UpdatedAt:    nowUnix(),
		Commits:      commits,
		Score:        score,
		WebURL:       payload.Repository.HTMLURL,
		DiffContent:  JoinDiffs(filtered),
		ReviewResult: text,
		URLSlug:      event.URLSlug,
		WebhookData:  event.Payload,
	})
	return dispatch.Done()
}
