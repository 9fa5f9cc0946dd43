package review

import (
	"context"
	"encoding/json"
	"fmt"

	"reviewhooks/internal"
	"reviewhooks/pkg/dispatch"
	"reviewhooks/pkg/entity"

	glhook "github.com/go-playground/webhooks/v6/gitlab"
)

var gitlabMergeActions = map[string]bool{
	"open":   true,
	"update": true,
	"reopen": true,
}

// HandleGitLabMergeRequest reviews a GitLab merge request event.
func (s *Service) HandleGitLabMergeRequest(ctx context.Context, event internal.WebhookEvent) dispatch.Outcome {
	var payload glhook.MergeRequestEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return dispatch.Fail(fmt.Errorf("decode gitlab merge request payload: %w", err))
	}

	attrs := payload.ObjectAttributes
	if !gitlabMergeActions[attrs.Action] {
		return dispatch.Skip("merge request action %q ignored", attrs.Action)
	}
	if reason, skip := s.checkSkipRules(event); skip {
		return dispatch.Skip("skip rule matched: %s", reason)
	}

	project := payload.Project.PathWithNamespace
	lastCommitID := attrs.LastCommit.ID
	if s.seenMergeRequest(ctx, project, attrs.SourceBranch, attrs.TargetBranch, lastCommitID) {
		return dispatch.Skip("commit %s already reviewed", lastCommitID)
	}

	client, err := s.newGitLab(event.BaseURL, event.Token)
	if err != nil {
		return dispatch.Fail(err)
	}
	changes, err := client.MergeRequestChanges(ctx, project, int(attrs.IID))
	if err != nil {
		return dispatch.Fail(err)
	}
	filtered := FilterChanges(changes, s.cfg.Extensions())
	if len(filtered) == 0 {
		return dispatch.Skip("no reviewable changes")
	}

	commits, err := client.MergeRequestCommits(ctx, project, int(attrs.IID))
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
		Author:       payload.User.UserName,
		SourceBranch: attrs.SourceBranch,
		TargetBranch: attrs.TargetBranch,
		UpdatedAt:    nowUnix(),
		Commits:      commits,
		Score:        score,
		URL:          attrs.URL,
		ReviewResult: text,
		URLSlug:      event.URLSlug,
		LastCommitID: lastCommitID,
		Additions:    additions,
		Deletions:    deletions,
		WebhookData:  event.Payload,
	})
	return dispatch.Done()
}

// HandleGitLabPush reviews a GitLab push event.
func (s *Service) HandleGitLabPush(ctx context.Context, event internal.WebhookEvent) dispatch.Outcome {
	if !s.cfg.PushReviewEnabled {
		return dispatch.Skip("push review disabled")
	}
	var payload glhook.PushEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return dispatch.Fail(fmt.Errorf("decode gitlab push payload: %w", err))
	}
	if payload.After == zeroSHA {
		return dispatch.Skip("branch deleted")
	}
	if payload.Before == zeroSHA {
		return dispatch.Skip("new branch push has no compare base")
	}
	if reason, skip := s.checkSkipRules(event); skip {
		return dispatch.Skip("skip rule matched: %s", reason)
	}

	project := payload.Project.PathWithNamespace
	branch := branchFromRef(payload.Ref)
	if s.seenPush(ctx, project, branch, payload.Before, payload.After) {
		return dispatch.Skip("push %s..%s already reviewed", payload.Before, payload.After)
	}

	client, err := s.newGitLab(event.BaseURL, event.Token)
	if err != nil {
		return dispatch.Fail(err)
	}
	changes, err := client.Compare(ctx, project, payload.Before, payload.After)
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
		PusherName:   payload.UserName,
		PusherEmail:  payload.UserEmail,
		UpdatedAt:    nowUnix(),
		Commits:      commits,
		Score:        score,
		WebURL:       payload.Project.WebURL,
		DiffContent:  JoinDiffs(filtered),
		ReviewResult: text,
		URLSlug:      event.URLSlug,
		WebhookData:  event.Payload,
	})
	return dispatch.Done()
}
