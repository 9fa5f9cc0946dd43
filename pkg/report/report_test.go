package report

import (
	"strings"
	"testing"
	"time"

	"reviewhooks/pkg/entity"
)

// TestRenderMarkdown verifies the markdown body lands inside the HTML page.
func TestRenderMarkdown(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	page, err := r.Render("Review", "## Summary\n\nall good")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(page, "<h2") || !strings.Contains(page, "all good") {
		t.Fatalf("markdown not rendered: %q", page)
	}
	if !strings.Contains(page, "<title>Review</title>") {
		t.Fatalf("title missing: %q", page)
	}
}

// TestSaveAndList verifies reports land under the date directory and come
// back from List newest first.
func TestSaveAndList(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	older := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	if _, err := r.Save("group_app_mr_1", "Review", "text", older); err != nil {
		t.Fatalf("save older: %v", err)
	}
	rel, err := r.Save("group/app push", "Review", "text", newer)
	if err != nil {
		t.Fatalf("save newer: %v", err)
	}
	if strings.Contains(rel, "/app ") {
		t.Fatalf("unsafe characters not sanitized: %q", rel)
	}

	list, err := r.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(list))
	}
	if !strings.HasPrefix(list[0], "2025-03-02") {
		t.Fatalf("expected newest day first, got %v", list)
	}
}

// TestOpenRejectsTraversal verifies report fetches cannot escape the
// reports directory.
func TestOpenRejectsTraversal(t *testing.T) {
	r, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new renderer: %v", err)
	}
	if _, err := r.Open("../secrets"); err == nil {
		t.Fatalf("expected error for traversal path")
	}
	if _, err := r.Open("/etc/passwd"); err == nil {
		t.Fatalf("expected error for absolute path")
	}
}

// TestDailyMarkdown verifies both sections and the empty-state lines.
func TestDailyMarkdown(t *testing.T) {
	day := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	md := DailyMarkdown(day, []entity.MergeRequestReview{
		{ProjectName: "group/app", Author: "dev", SourceBranch: "f", TargetBranch: "main", Score: 80},
	}, nil)
	if !strings.Contains(md, "2025-03-02") {
		t.Fatalf("day missing: %q", md)
	}
	if !strings.Contains(md, "| group/app | dev | f | main | 80 |") {
		t.Fatalf("merge request row missing: %q", md)
	}
	if !strings.Contains(md, "No push reviews.") {
		t.Fatalf("push empty state missing: %q", md)
	}
}
