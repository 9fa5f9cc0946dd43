// Package notify pushes review summaries to IM webhook endpoints.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"reviewhooks/internal"
	"reviewhooks/pkg/entity"
)

// Notifier posts markdown messages to a configured webhook. Delivery is
// best effort: failures are logged, never propagated to the review task.
type Notifier struct {
	cfg    internal.NotifierConfig
	client *http.Client
	logger *log.Logger
}

// New returns a notifier for the given configuration.
func New(cfg internal.NotifierConfig) *Notifier {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: internal.NewLogger("notify"),
	}
}

// MergeRequestReviewed sends a summary of a finished merge request review.
func (n *Notifier) MergeRequestReviewed(ctx context.Context, review *entity.MergeRequestReview) {
	if n == nil || !n.cfg.Enabled || review == nil {
		return
	}
	content := fmt.Sprintf(
		"### Merge request reviewed\n**Project:** %s\n**Author:** %s\n**Branch:** %s → %s\n**Score:** %.0f\n**URL:** %s\n\n%s",
		review.ProjectName, review.Author, review.SourceBranch, review.TargetBranch,
		review.Score, review.URL, review.ReviewResult,
	)
	n.send(ctx, n.webhookFor(review.URLSlug, review.ProjectName), content)
}

// PushReviewed sends a summary of a finished push review.
func (n *Notifier) PushReviewed(ctx context.Context, review *entity.PushReview) {
	if n == nil || !n.cfg.Enabled || review == nil {
		return
	}
	content := fmt.Sprintf(
		"### Push reviewed\n**Project:** %s\n**Branch:** %s\n**Pusher:** %s\n**Score:** %.0f\n**Commits:** %s\n\n%s",
		review.ProjectName, review.Branch, review.PusherName,
		review.Score, review.CommitMessages(), review.ReviewResult,
	)
	n.send(ctx, n.webhookFor(review.URLSlug, review.ProjectName), content)
}

// webhookFor picks the per-instance or per-project override, falling back
// to the default webhook.
func (n *Notifier) webhookFor(urlSlug, project string) string {
	if url, ok := n.cfg.Overrides[urlSlug]; ok && url != "" {
		return url
	}
	if url, ok := n.cfg.Overrides[project]; ok && url != "" {
		return url
	}
	return n.cfg.WebhookURL
}

func (n *Notifier) send(ctx context.Context, webhookURL, content string) {
	if webhookURL == "" {
		return
	}
	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]interface{}{
			"content": content,
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		n.logger.Printf("marshal notification: %v", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(raw))
	if err != nil {
		n.logger.Printf("build notification request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Printf("send notification: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		n.logger.Printf("notification rejected: status %d: %s", resp.StatusCode, string(body))
	}
}
