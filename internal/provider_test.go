package internal

import (
	"net/http"
	"testing"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := NewRegistry([]Descriptor{
		{
			Name: "github",
			Identification: []HeaderRule{
				{Header: "X-GitHub-Event", Values: []string{"pull_request", "push"}},
			},
			Credentials:  CredentialRule{Type: "env", Key: "GITHUB_ACCESS_TOKEN"},
			EventMapping: map[string]string{"pull_request": KindPullRequest, "push": KindPush},
			Parser:       "github",
		},
		{
			Name: "gitea",
			Identification: []HeaderRule{
				{Header: "X-Gitea-Event", Values: []string{"pull_request", "push"}},
			},
			Credentials:  CredentialRule{Type: "env", Key: "GITEA_ACCESS_TOKEN"},
			EventMapping: map[string]string{"pull_request": KindPullRequest, "push": KindPush},
			Parser:       "gitea",
		},
		{
			Name: "gitlab",
			Identification: []HeaderRule{
				{Header: "X-Gitlab-Event", Values: []string{"Merge Request Hook", "Push Hook"}},
			},
			Credentials:  CredentialRule{Type: "env", Key: "GITLAB_ACCESS_TOKEN"},
			EventMapping: map[string]string{"Merge Request Hook": KindPullRequest, "Push Hook": KindPush},
			Parser:       "gitlab",
		},
	}, "gitlab")
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	return registry
}

// TestResolveMatchesProvider tests that a matching header set selects the
// right descriptor.
func TestResolveMatchesProvider(t *testing.T) {
	registry := testRegistry(t)

	headers := http.Header{}
	headers.Set("X-Gitea-Event", "pull_request")

	desc, err := registry.Resolve(headers)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if desc.Name != "gitea" {
		t.Fatalf("expected gitea, got %q", desc.Name)
	}
}

// TestResolveOrderIsPriority tests that with two overlapping rule sets the
// earlier-registered provider wins.
func TestResolveOrderIsPriority(t *testing.T) {
	registry, err := NewRegistry([]Descriptor{
		{
			Name:           "first",
			Identification: []HeaderRule{{Header: "X-Event"}},
			EventMapping:   map[string]string{"push": KindPush},
		},
		{
			Name:           "second",
			Identification: []HeaderRule{{Header: "X-Event", Values: []string{"push"}}},
			EventMapping:   map[string]string{"push": KindPush},
		},
		{
			Name:           "gitlab",
			Identification: []HeaderRule{{Header: "X-Gitlab-Event"}},
			EventMapping:   map[string]string{"Push Hook": KindPush},
		},
	}, "gitlab")
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	headers := http.Header{}
	headers.Set("X-Event", "push")

	desc, err := registry.Resolve(headers)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if desc.Name != "first" {
		t.Fatalf("expected first registered provider to win, got %q", desc.Name)
	}
}

// TestResolveFallsBackToDefault tests that unmatched headers resolve to the
// default descriptor.
func TestResolveFallsBackToDefault(t *testing.T) {
	registry := testRegistry(t)

	headers := http.Header{}
	headers.Set("X-Unknown-Header", "whatever")

	desc, err := registry.Resolve(headers)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if desc.Name != "gitlab" {
		t.Fatalf("expected default gitlab, got %q", desc.Name)
	}
}

// TestResolveNoDefault tests that a missing default descriptor is an error.
func TestResolveNoDefault(t *testing.T) {
	registry, err := NewRegistry([]Descriptor{
		{
			Name:           "github",
			Identification: []HeaderRule{{Header: "X-GitHub-Event"}},
			EventMapping:   map[string]string{"push": KindPush},
		},
	}, "gitlab")
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}

	if _, err := registry.Resolve(http.Header{}); err == nil {
		t.Fatalf("expected error when default provider is absent")
	}
}

// TestRegistryRejectsDuplicates tests that duplicate provider names fail at load.
func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry([]Descriptor{
		{Name: "gitlab", Identification: []HeaderRule{{Header: "A"}}},
		{Name: "gitlab", Identification: []HeaderRule{{Header: "B"}}},
	}, "gitlab")
	if err == nil {
		t.Fatalf("expected duplicate name error")
	}
}

// TestRegistryRejectsUnknownKind tests that event mappings must target a
// canonical kind.
func TestRegistryRejectsUnknownKind(t *testing.T) {
	_, err := NewRegistry([]Descriptor{
		{
			Name:           "gitlab",
			Identification: []HeaderRule{{Header: "X-Gitlab-Event"}},
			EventMapping:   map[string]string{"Tag Push Hook": "tag_push"},
		},
	}, "gitlab")
	if err == nil {
		t.Fatalf("expected unknown kind error")
	}
}

// TestMapEventKind tests the allow-list behavior of the event mapping.
func TestMapEventKind(t *testing.T) {
	registry := testRegistry(t)
	desc, _ := registry.Lookup("gitlab")

	kind, ok := MapEventKind(desc, "Merge Request Hook")
	if !ok || kind != KindPullRequest {
		t.Fatalf("expected pull_request, got %q ok=%v", kind, ok)
	}
	if _, ok := MapEventKind(desc, "Pipeline Hook"); ok {
		t.Fatalf("expected unmapped native event to be unsupported")
	}
}

// TestAccessTokenFromEnv tests the env credential rule.
func TestAccessTokenFromEnv(t *testing.T) {
	t.Setenv("GITEA_ACCESS_TOKEN", "tok-123")
	registry := testRegistry(t)
	desc, _ := registry.Lookup("gitea")

	if token := AccessToken(desc); token != "tok-123" {
		t.Fatalf("expected tok-123, got %q", token)
	}

	desc.Credentials.Key = "REVIEWHOOKS_TEST_UNSET"
	if token := AccessToken(desc); token != "" {
		t.Fatalf("expected empty token for unset env var, got %q", token)
	}
}

// TestNativeEvent tests extraction of the native event name from headers.
func TestNativeEvent(t *testing.T) {
	registry := testRegistry(t)
	desc, _ := registry.Lookup("github")

	headers := http.Header{}
	headers.Set("X-GitHub-Event", "pull_request")
	if native := NativeEvent(desc, headers); native != "pull_request" {
		t.Fatalf("expected pull_request, got %q", native)
	}
	if native := NativeEvent(desc, http.Header{}); native != "" {
		t.Fatalf("expected empty native event, got %q", native)
	}
}
