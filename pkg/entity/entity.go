// Package entity defines the review result records published on the
// completion bus and persisted to the review log store.
package entity

import "encoding/json"

// Commit is one commit carried by a review entity.
type Commit struct {
	ID        string `json:"id,omitempty"`
	Message   string `json:"message"`
	Author    string `json:"author,omitempty"`
	Email     string `json:"email,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	URL       string `json:"url,omitempty"`
}

// MergeRequestReview is the result of reviewing a merge/pull request.
// (project, source branch, target branch, LastCommitID) identifies the
// reviewed change and is the deduplication key. The entity is immutable
// after publication.
type MergeRequestReview struct {
	ProjectName  string          `json:"project_name"`
	Author       string          `json:"author"`
	SourceBranch string          `json:"source_branch"`
	TargetBranch string          `json:"target_branch"`
	UpdatedAt    int64           `json:"updated_at"`
	Commits      []Commit        `json:"commits"`
	Score        float64         `json:"score"`
	URL          string          `json:"url"`
	ReviewResult string          `json:"review_result"`
	URLSlug      string          `json:"url_slug"`
	LastCommitID string          `json:"last_commit_id"`
	Additions    int             `json:"additions"`
	Deletions    int             `json:"deletions"`
	WebhookData  json.RawMessage `json:"webhook_data,omitempty"`
}

// CommitMessages joins the commit messages for notification and report use.
func (m *MergeRequestReview) CommitMessages() string {
	return joinMessages(m.Commits)
}

// PushReview is the result of reviewing a push. (project, branch, BeforeSHA,
// AfterSHA) identifies the reviewed change and is the deduplication key.
type PushReview struct {
	ProjectName  string          `json:"project_name"`
	Branch       string          `json:"branch"`
	BeforeSHA    string          `json:"before_sha"`
	AfterSHA     string          `json:"after_sha"`
	PusherName   string          `json:"pusher_name"`
	PusherEmail  string          `json:"pusher_email,omitempty"`
	UpdatedAt    int64           `json:"updated_at"`
	Commits      []Commit        `json:"commits"`
	Score        float64         `json:"score"`
	WebURL       string          `json:"web_url"`
	DiffContent  string          `json:"diff_content"`
	ReviewResult string          `json:"review_result"`
	URLSlug      string          `json:"url_slug"`
	WebhookData  json.RawMessage `json:"webhook_data,omitempty"`
}

// CommitMessages joins the commit messages for notification and report use.
func (p *PushReview) CommitMessages() string {
	return joinMessages(p.Commits)
}

func joinMessages(commits []Commit) string {
	out := ""
	for i, commit := range commits {
		if i > 0 {
			out += "; "
		}
		out += commit.Message
	}
	return out
}
