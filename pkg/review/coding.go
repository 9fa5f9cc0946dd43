package review

import (
	"context"
	"encoding/json"
	"fmt"

	"reviewhooks/internal"
	"reviewhooks/pkg/dispatch"
	"reviewhooks/pkg/entity"
)

// CODING merge request payloads use camelCase keys and carry a ready-made
// diff URL.
type codingPullRequestPayload struct {
	Action       string `json:"action"`
	MergeRequest struct {
		Number  int64  `json:"number"`
		Title   string `json:"title"`
		HTMLURL string `json:"html_url"`
		DiffURL string `json:"diff_url"`
		User    struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
		Head struct {
			Ref string `json:"ref"`
		} `json:"head"`
		Base struct {
			Ref string `json:"ref"`
		} `json:"base"`
		MergeCommitSHA string `json:"merge_commit_sha"`
		Additions      int    `json:"additions"`
		Deletions      int    `json:"deletions"`
	} `json:"mergeRequest"`
	Repository struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		WebURL string `json:"web_url"`
	} `json:"repository"`
}

type codingPushPayload struct {
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
	Pusher struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"pusher"`
	Repository struct {
		ID     int64  `json:"id"`
		Name   string `json:"name"`
		WebURL string `json:"web_url"`
	} `json:"repository"`
}

// HandleCodingPullRequest reviews a CODING merge request event.
func (s *Service) HandleCodingPullRequest(ctx context.Context, event internal.WebhookEvent) dispatch.Outcome {
	var payload codingPullRequestPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return dispatch.Fail(fmt.Errorf("decode coding merge request payload: %w", err))
	}

	action := payload.Action
	if action != "create" && action != "update" && action != "synchronize" {
		return dispatch.Skip("merge request action %q ignored", action)
	}
	if payload.MergeRequest.DiffURL == "" {
		return dispatch.Fail(fmt.Errorf("coding merge request payload has no diff url"))
	}
	if reason, skip := s.checkSkipRules(event); skip {
		return dispatch.Skip("skip rule matched: %s", reason)
	}

	project := payload.Repository.Name
	lastCommitID := payload.MergeRequest.MergeCommitSHA
	sourceBranch := payload.MergeRequest.Head.Ref
	targetBranch := payload.MergeRequest.Base.Ref
	if s.seenMergeRequest(ctx, project, sourceBranch, targetBranch, lastCommitID) {
		return dispatch.Skip("commit %s already reviewed", lastCommitID)
	}

	client, err := s.newCoding(event.BaseURL, event.Token)
	if err != nil {
		return dispatch.Fail(err)
	}
	changes, err := client.DiffFromURL(ctx, payload.MergeRequest.DiffURL)
	if err != nil {
		return dispatch.Fail(err)
	}
	filtered := FilterChanges(changes, s.cfg.Extensions())
	if len(filtered) == 0 {
		return dispatch.Skip("no reviewable changes")
	}

	// The payload carries no commit list; the title stands in for the
	// commit messages.
	commits := []entity.Commit{{
		Message: payload.MergeRequest.Title,
		Author:  payload.MergeRequest.User.Name,
		Email:   payload.MergeRequest.User.Email,
	}}

	text, score, err := s.review(ctx, filtered, commitMessages(commits))
	if err != nil {
		return dispatch.Fail(err)
	}

	additions := payload.MergeRequest.Additions
	deletions := payload.MergeRequest.Deletions
	if additions == 0 && deletions == 0 {
		additions, deletions = TotalCounts(filtered)
	}
	s.bus.PublishMergeRequestReviewed(&entity.MergeRequestReview{
		ProjectName:  project,
		Author:       payload.MergeRequest.User.Name,
		SourceBranch: sourceBranch,
		TargetBranch: targetBranch,
		UpdatedAt:    nowUnix(),
		Commits:      commits,
		Score:        score,
		URL:          payload.MergeRequest.HTMLURL,
		ReviewResult: text,
		URLSlug:      event.URLSlug,
		LastCommitID: lastCommitID,
		Additions:    additions,
		Deletions:    deletions,
		WebhookData:  event.Payload,
	})
	return dispatch.Done()
}

// HandleCodingPush reviews a CODING push event.
func (s *Service) HandleCodingPush(ctx context.Context, event internal.WebhookEvent) dispatch.Outcome {
	if !s.cfg.PushReviewEnabled {
		return dispatch.Skip("push review disabled")
	}
	var payload codingPushPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return dispatch.Fail(fmt.Errorf("decode coding push payload: %w", err))
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

	project := payload.Repository.Name
	branch := branchFromRef(payload.Ref)
	if s.seenPush(ctx, project, branch, payload.Before, payload.After) {
		return dispatch.Skip("push %s..%s already reviewed", payload.Before, payload.After)
	}

	client, err := s.newCoding(event.BaseURL, event.Token)
	if err != nil {
		return dispatch.Fail(err)
	}
	changes, err := client.Compare(ctx, project, payload.Repository.ID, payload.Before, payload.After)
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
		WebURL:       payload.Repository.WebURL,
		DiffContent:  JoinDiffs(filtered),
		ReviewResult: text,
		URLSlug:      event.URLSlug,
		WebhookData:  event.Payload,
	})
	return dispatch.Done()
}
