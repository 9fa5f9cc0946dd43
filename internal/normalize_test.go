package internal

import (
	"strings"
	"testing"
)

// TestSlugifyURL tests scheme stripping and underscore substitution.
func TestSlugifyURL(t *testing.T) {
	cases := map[string]string{
		"http://example.com/path/to/repo/":  "example_com_path_to_repo",
		"https://coding.net/user/repo.git":  "coding_net_user_repo_git",
		"https://gitlab.example.com/":       "gitlab_example_com",
		"gitea.internal:3000":               "gitea_internal_3000",
	}
	for in, want := range cases {
		if got := SlugifyURL(in); got != want {
			t.Fatalf("SlugifyURL(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestSlugifyURLStable tests that re-slugging a slug changes nothing and that
// slugs never start or end with an underscore run.
func TestSlugifyURLStable(t *testing.T) {
	inputs := []string{
		"https://gitlab.com/",
		"http://10.0.0.2:8080/git/",
		"https://example.com/a//b///",
	}
	for _, in := range inputs {
		slug := SlugifyURL(in)
		if again := SlugifyURL(slug); again != slug {
			t.Fatalf("slug not stable: %q -> %q", slug, again)
		}
		if strings.HasSuffix(slug, "_") {
			t.Fatalf("slug %q has a trailing underscore", slug)
		}
	}
}

// TestNormalizeGitLabDerivesBaseURL tests base URL extraction from the
// repository homepage when no override is configured.
func TestNormalizeGitLabDerivesBaseURL(t *testing.T) {
	payload := []byte(`{"object_kind":"merge_request","repository":{"homepage":"https://gitlab.example.com/group/proj"}}`)

	event, err := normalizeGitLab(Descriptor{Name: "gitlab"}, payload, "tok", KindPullRequest)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.BaseURL != "https://gitlab.example.com/" {
		t.Fatalf("unexpected base url %q", event.BaseURL)
	}
	if event.URLSlug != "gitlab_example_com" {
		t.Fatalf("unexpected slug %q", event.URLSlug)
	}
	if event.Provider != "gitlab" || event.Kind != KindPullRequest {
		t.Fatalf("unexpected event identity %q/%q", event.Provider, event.Kind)
	}
}

// TestNormalizeGitLabMissingURL tests that an unresolvable base URL is a
// normalization error, not a crash.
func TestNormalizeGitLabMissingURL(t *testing.T) {
	if _, err := normalizeGitLab(Descriptor{Name: "gitlab"}, []byte(`{}`), "tok", KindPush); err == nil {
		t.Fatalf("expected missing url error")
	}
}

// TestNormalizeGitHubDefaults tests the config -> env -> public default chain.
func TestNormalizeGitHubDefaults(t *testing.T) {
	t.Setenv("GITHUB_URL", "")

	event, err := normalizeGitHub(Descriptor{Name: "github"}, []byte(`{}`), "tok", KindPush)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.BaseURL != "https://github.com" {
		t.Fatalf("expected public default, got %q", event.BaseURL)
	}

	t.Setenv("GITHUB_URL", "https://ghe.corp.example")
	event, err = normalizeGitHub(Descriptor{Name: "github"}, []byte(`{}`), "tok", KindPush)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.BaseURL != "https://ghe.corp.example" {
		t.Fatalf("expected env override, got %q", event.BaseURL)
	}

	event, err = normalizeGitHub(Descriptor{Name: "github", BaseURL: "https://cfg.example"}, []byte(`{}`), "tok", KindPush)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.BaseURL != "https://cfg.example" {
		t.Fatalf("expected config override, got %q", event.BaseURL)
	}
}

// TestNormalizeCodingFromRepository tests base URL extraction from the
// repository html_url.
func TestNormalizeCodingFromRepository(t *testing.T) {
	payload := []byte(`{"repository":{"html_url":"https://corp.coding.net/user/repo"}}`)

	event, err := normalizeCoding(Descriptor{Name: "coding"}, payload, "tok", KindPullRequest)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.BaseURL != "https://corp.coding.net" {
		t.Fatalf("unexpected base url %q", event.BaseURL)
	}
}

// TestNormalizerRejectsUnknownKind tests the canonical-kind invariant at
// construction time.
func TestNormalizerRejectsUnknownKind(t *testing.T) {
	if _, err := normalizeGitea(Descriptor{Name: "gitea"}, []byte(`{}`), "tok", "tag_push"); err == nil {
		t.Fatalf("expected unsupported kind error")
	}
}

// TestNormalizerForRegistry tests static parser lookup.
func TestNormalizerForRegistry(t *testing.T) {
	for _, name := range []string{"gitlab", "github", "gitea", "coding"} {
		if _, ok := NormalizerFor(name); !ok {
			t.Fatalf("missing normalizer %q", name)
		}
	}
	if _, ok := NormalizerFor("svn"); ok {
		t.Fatalf("unexpected normalizer for svn")
	}
}
