// Package review implements the code review pipeline behind the dispatch
// router: payload decoding, change filtering, deduplication, model review,
// and completion publication.
package review

import (
	"context"
	"log"
	"strings"
	"time"

	"reviewhooks/internal"
	"reviewhooks/pkg/bus"
	"reviewhooks/pkg/dispatch"
	"reviewhooks/pkg/entity"
	"reviewhooks/pkg/llm"
	"reviewhooks/pkg/scm"
)

const zeroSHA = "0000000000000000000000000000000000000000"

// Engine scores a diff and returns the review text.
type Engine interface {
	Review(ctx context.Context, diff, commitMessages string) (string, error)
}

// DedupStore answers whether a change was already reviewed. Lookups are
// best effort: a store error lets the review proceed.
type DedupStore interface {
	HasMergeRequestReview(ctx context.Context, project, sourceBranch, targetBranch, lastCommitID string) (bool, error)
	HasPushReview(ctx context.Context, project, branch, beforeSHA, afterSHA string) (bool, error)
}

// GitLabFetcher fetches merge request and compare diffs from GitLab.
type GitLabFetcher interface {
	MergeRequestChanges(ctx context.Context, project string, iid int) ([]scm.Change, error)
	MergeRequestCommits(ctx context.Context, project string, iid int) ([]entity.Commit, error)
	Compare(ctx context.Context, project, from, to string) ([]scm.Change, error)
}

// GitHubFetcher fetches pull request and compare diffs from GitHub.
type GitHubFetcher interface {
	PullRequestChanges(ctx context.Context, owner, repo string, number int) ([]scm.Change, error)
	PullRequestCommits(ctx context.Context, owner, repo string, number int) ([]entity.Commit, error)
	Compare(ctx context.Context, owner, repo, base, head string) ([]scm.Change, error)
}

// GiteaFetcher fetches pull request and compare diffs from Gitea.
type GiteaFetcher interface {
	PullRequestChanges(ctx context.Context, owner, repo string, index int) ([]scm.Change, error)
	Compare(ctx context.Context, owner, repo, before, after string) ([]scm.Change, error)
}

// CodingFetcher fetches pull request and compare diffs from CODING.
type CodingFetcher interface {
	DiffFromURL(ctx context.Context, diffURL string) ([]scm.Change, error)
	Compare(ctx context.Context, project string, repoID int64, before, after string) ([]scm.Change, error)
}

// Service runs the review pipeline for every provider. Fetchers are built
// per event because the token and base URL travel with the event.
type Service struct {
	cfg    internal.ReviewConfig
	engine Engine
	dedup  DedupStore
	skips  *internal.SkipRuleEngine
	bus    *bus.Bus
	logger *log.Logger

	newGitLab func(baseURL, token string) (GitLabFetcher, error)
	newGitHub func(ctx context.Context, baseURL, token string) (GitHubFetcher, error)
	newGitea  func(baseURL, token string) (GiteaFetcher, error)
	newCoding func(baseURL, token string) (CodingFetcher, error)
}

// New builds the review service with real SCM clients.
func New(cfg internal.ReviewConfig, engine Engine, dedup DedupStore, skips *internal.SkipRuleEngine, b *bus.Bus) *Service {
	return &Service{
		cfg:    cfg,
		engine: engine,
		dedup:  dedup,
		skips:  skips,
		bus:    b,
		logger: internal.NewLogger("review"),
		newGitLab: func(baseURL, token string) (GitLabFetcher, error) {
			return scm.NewGitLabClient(baseURL, token)
		},
		newGitHub: func(ctx context.Context, baseURL, token string) (GitHubFetcher, error) {
			return scm.NewGitHubClient(ctx, baseURL, token)
		},
		newGitea: func(baseURL, token string) (GiteaFetcher, error) {
			return scm.NewGiteaClient(baseURL, token)
		},
		newCoding: func(baseURL, token string) (CodingFetcher, error) {
			return scm.NewCodingClient(baseURL, token)
		},
	}
}

// Register wires every (provider, kind) pair this service handles into the
// router.
func (s *Service) Register(router *dispatch.Router) {
	router.Register("gitlab", internal.KindPullRequest, s.HandleGitLabMergeRequest)
	router.Register("gitlab", internal.KindPush, s.HandleGitLabPush)
	router.Register("github", internal.KindPullRequest, s.HandleGitHubPullRequest)
	router.Register("github", internal.KindPush, s.HandleGitHubPush)
	router.Register("gitea", internal.KindPullRequest, s.HandleGiteaPullRequest)
	router.Register("gitea", internal.KindPush, s.HandleGiteaPush)
	router.Register("coding", internal.KindPullRequest, s.HandleCodingPullRequest)
	router.Register("coding", internal.KindPush, s.HandleCodingPush)
}

// checkSkipRules evaluates the configured skip rules against the payload.
func (s *Service) checkSkipRules(event internal.WebhookEvent) (string, bool) {
	if s.skips == nil {
		return "", false
	}
	return s.skips.ShouldSkip(event.Payload)
}

// seenMergeRequest runs the merge request dedup check. Store errors are
// logged and treated as unseen.
func (s *Service) seenMergeRequest(ctx context.Context, project, source, target, lastCommitID string) bool {
	if s.dedup == nil || lastCommitID == "" {
		return false
	}
	seen, err := s.dedup.HasMergeRequestReview(ctx, project, source, target, lastCommitID)
	if err != nil {
		s.logger.Printf("merge request dedup lookup failed for %s: %v", project, err)
		return false
	}
	if seen {
		internal.IncDedupSkip(project)
	}
	return seen
}

// seenPush runs the push dedup check. Store errors are logged and treated
// as unseen.
func (s *Service) seenPush(ctx context.Context, project, branch, before, after string) bool {
	if s.dedup == nil {
		return false
	}
	seen, err := s.dedup.HasPushReview(ctx, project, branch, before, after)
	if err != nil {
		s.logger.Printf("push dedup lookup failed for %s: %v", project, err)
		return false
	}
	if seen {
		internal.IncDedupSkip(project)
	}
	return seen
}

// review runs the model over the filtered changes and returns the review
// text and score.
func (s *Service) review(ctx context.Context, changes []scm.Change, commitMessages string) (string, float64, error) {
	text, err := s.engine.Review(ctx, JoinDiffs(changes), commitMessages)
	if err != nil {
		return "", 0, err
	}
	return text, llm.ParseScore(text), nil
}

// FilterChanges drops deleted files and files outside the extension
// allow-list, retaining only the fields the review pipeline consumes.
func FilterChanges(changes []scm.Change, extensions []string) []scm.Change {
	out := make([]scm.Change, 0, len(changes))
	for _, change := range changes {
		if change.Deleted {
			continue
		}
		if !supportedExtension(change.NewPath, extensions) {
			continue
		}
		out = append(out, scm.Change{
			Diff:      change.Diff,
			NewPath:   change.NewPath,
			Additions: change.Additions,
			Deletions: change.Deletions,
		})
	}
	return out
}

func supportedExtension(path string, extensions []string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// JoinDiffs concatenates per-file diffs into one review input.
func JoinDiffs(changes []scm.Change) string {
	var b strings.Builder
	for i, change := range changes {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(change.Diff)
	}
	return b.String()
}

// TotalCounts sums additions and deletions across changes.
func TotalCounts(changes []scm.Change) (additions, deletions int) {
	for _, change := range changes {
		additions += change.Additions
		deletions += change.Deletions
	}
	return additions, deletions
}

func branchFromRef(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

func commitMessages(commits []entity.Commit) string {
	parts := make([]string, 0, len(commits))
	for _, commit := range commits {
		parts = append(parts, commit.Message)
	}
	return strings.Join(parts, "; ")
}

func nowUnix() int64 {
	return time.Now().Unix()
}
