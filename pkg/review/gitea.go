package review

import (
	"context"
	"encoding/json"
	"fmt"

	"reviewhooks/internal"
	"reviewhooks/pkg/dispatch"
	"reviewhooks/pkg/entity"
)

// Gitea webhook payloads mirror its REST resources. Only the consumed
// fields are decoded here.
type giteaPullRequestPayload struct {
	Action      string `json:"action"`
	Number      int64  `json:"number"`
	PullRequest struct {
		State   string `json:"state"`
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
		User    struct {
			Login string `json:"login"`
		} `json:"user"`
		Head struct {
			Ref string `json:"ref"`
			Sha string `json:"sha"`
		} `json:"head"`
		Base struct {
			Ref string `json:"ref"`
		} `json:"base"`
	} `json:"pull_request"`
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		HTMLURL  string `json:"html_url"`
		Owner    struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
}

type giteaPushPayload struct {
	Ref     string `json:"ref"`
	Before  string `json:"before"`
	After   string `json:"after"`
	Commits []struct {
		ID      string `json:"id"`
		Message string `json:"message"`
		URL     string `json:"url"`
		Author  struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"author"`
	} `json:"commits"`
	Repository struct {
		Name     string `json:"name"`
		FullName string `json:"full_name"`
		HTMLURL  string `json:"html_url"`
		Owner    struct {
			Login string `json:"login"`
		} `json:"owner"`
	} `json:"repository"`
	Pusher struct {
		Login    string `json:"login"`
		FullName string `json:"full_name"`
		Email    string `json:"email"`
	} `json:"pusher"`
}

// HandleGiteaPullRequest reviews a Gitea pull request event.
func (s *Service) HandleGiteaPullRequest(ctx context.Context, event internal.WebhookEvent) dispatch.Outcome {
	var payload giteaPullRequestPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return dispatch.Fail(fmt.Errorf("decode gitea pull request payload: %w", err))
	}

	action := payload.Action
	if action != "opened" && action != "reopened" && action != "synchronized" {
		return dispatch.Skip("pull request action %q ignored", action)
	}
	if payload.PullRequest.State != "open" {
		return dispatch.Skip("pull request state %q ignored", payload.PullRequest.State)
	}
	if reason, skip := s.checkSkipRules(event); skip {
		return dispatch.Skip("skip rule matched: %s", reason)
	}

	project := payload.Repository.FullName
	lastCommitID := payload.PullRequest.Head.Sha
	sourceBranch := payload.PullRequest.Head.Ref
	targetBranch := payload.PullRequest.Base.Ref
	if s.seenMergeRequest(ctx, project, sourceBranch, targetBranch, lastCommitID) {
		return dispatch.Skip("commit %s already reviewed", lastCommitID)
	}

	client, err := s.newGitea(event.BaseURL, event.Token)
	if err != nil {
		return dispatch.Fail(err)
	}
	changes, err := client.PullRequestChanges(ctx, payload.Repository.Owner.Login, payload.Repository.Name, int(payload.Number))
	if err != nil {
		return dispatch.Fail(err)
	}
	filtered := FilterChanges(changes, s.cfg.Extensions())
	if len(filtered) == 0 {
		return dispatch.Skip("no reviewable changes")
	}

	// Gitea's diff endpoint has no commit list; the title stands in for
	// the commit messages.
	commits := []entity.Commit{{
		ID:      lastCommitID,
		Message: payload.PullRequest.Title,
		Author:  payload.PullRequest.User.Login,
	}}

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

// HandleGiteaPush reviews a Gitea push event.
func (s *Service) HandleGiteaPush(ctx context.Context, event internal.WebhookEvent) dispatch.Outcome {
	if !s.cfg.PushReviewEnabled {
		return dispatch.Skip("push review disabled")
	}
	var payload giteaPushPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return dispatch.Fail(fmt.Errorf("decode gitea push payload: %w", err))
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

	project := payload.Repository.FullName
	branch := branchFromRef(payload.Ref)
	if s.seenPush(ctx, project, branch, payload.Before, payload.After) {
		return dispatch.Skip("push %s..%s already reviewed", payload.Before, payload.After)
	}

	client, err := s.newGitea(event.BaseURL, event.Token)
	if err != nil {
		return dispatch.Fail(err)
	}
	changes, err := client.Compare(ctx, payload.Repository.Owner.Login, payload.Repository.Name, payload.Before, payload.After)
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

	pusher := payload.Pusher.FullName
	if pusher == "" {
		pusher = payload.Pusher.Login
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
		PusherName:   pusher,
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
