package internal

import (
	"os"
	"path/filepath"
	"testing"
)

const testConfig = `
server:
  port: 5001
providers:
  - name: github
    identification:
      - header: X-GitHub-Event
        values: [pull_request, push]
    credentials:
      type: env
      key: GITHUB_ACCESS_TOKEN
    event_mapping:
      pull_request: pull_request
      push: push
    parser: github
  - name: gitlab
    identification:
      - header: X-Gitlab-Event
        values: ["Merge Request Hook", "Push Hook"]
    credentials:
      type: env
      key: GITLAB_ACCESS_TOKEN
    event_mapping:
      "Merge Request Hook": pull_request
      "Push Hook": push
    parser: gitlab
    base_url: ${TEST_GITLAB_URL}
review:
  push_review_enabled: true
skip_rules:
  - when: 'object_attributes.work_in_progress == true'
    reason: wip
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoadConfig tests parsing, env expansion, and defaults.
func TestLoadConfig(t *testing.T) {
	t.Setenv("TEST_GITLAB_URL", "https://gitlab.corp.example")

	cfg, err := LoadConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if len(cfg.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(cfg.Providers))
	}
	if cfg.Providers[1].BaseURL != "https://gitlab.corp.example" {
		t.Fatalf("expected env expansion, got %q", cfg.Providers[1].BaseURL)
	}
	if cfg.DefaultProvider != "gitlab" {
		t.Fatalf("expected default provider gitlab, got %q", cfg.DefaultProvider)
	}
	if cfg.Queue.Workers != 4 || cfg.Queue.Depth != 64 {
		t.Fatalf("expected queue defaults, got %+v", cfg.Queue)
	}
	if got := cfg.Review.Extensions(); len(got) != 3 || got[0] != ".java" {
		t.Fatalf("expected default extensions, got %v", got)
	}
	if !cfg.Review.PushReviewEnabled {
		t.Fatalf("expected push review enabled")
	}
	if len(cfg.SkipRules) != 1 || cfg.SkipRules[0].Reason != "wip" {
		t.Fatalf("unexpected skip rules %+v", cfg.SkipRules)
	}
	if cfg.Forward.RiverQueue.Kind != "reviewhooks.review_completed" {
		t.Fatalf("unexpected river kind %q", cfg.Forward.RiverQueue.Kind)
	}
}

// TestLoadConfigUnknownParser tests that an unknown parser name fails at load.
func TestLoadConfigUnknownParser(t *testing.T) {
	body := `
providers:
  - name: svn
    identification:
      - header: X-SVN-Event
    parser: svn
`
	if _, err := LoadConfig(writeConfig(t, body)); err == nil {
		t.Fatalf("expected unknown parser error")
	}
}

// TestLoadConfigNoProviders tests that an empty provider list fails at load.
func TestLoadConfigNoProviders(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "server:\n  port: 1\n")); err == nil {
		t.Fatalf("expected missing providers error")
	}
}

// TestExtensionsParsing tests the comma-separated allow-list parsing.
func TestExtensionsParsing(t *testing.T) {
	cfg := ReviewConfig{SupportedExtensions: ".py, .java,,.go"}
	got := cfg.Extensions()
	want := []string{".py", ".java", ".go"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
