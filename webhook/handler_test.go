package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"reviewhooks/internal"
	"reviewhooks/pkg/dispatch"
)

func testRegistry(t *testing.T) *internal.Registry {
	t.Helper()
	registry, err := internal.NewRegistry([]internal.Descriptor{
		{
			Name: "github",
			Identification: []internal.HeaderRule{
				{Header: "X-GitHub-Event"},
			},
			EventMapping: map[string]string{
				"pull_request": internal.KindPullRequest,
				"push":         internal.KindPush,
			},
			Parser: "github",
		},
		{
			Name: "gitlab",
			Identification: []internal.HeaderRule{
				{Header: "X-Gitlab-Event"},
			},
			EventMapping: map[string]string{
				"Merge Request Hook": internal.KindPullRequest,
				"Push Hook":          internal.KindPush,
			},
			Parser:  "gitlab",
			BaseURL: "http://gitlab.example.com",
		},
	}, "gitlab")
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return registry
}

type recordedEvent struct {
	mu     sync.Mutex
	events []internal.WebhookEvent
}

func (r *recordedEvent) handler(ctx context.Context, event internal.WebhookEvent) dispatch.Outcome {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
	return dispatch.Done()
}

func (r *recordedEvent) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func newTestHandler(t *testing.T) (*Handler, *recordedEvent) {
	t.Helper()
	recorder := &recordedEvent{}
	router := dispatch.NewRouter()
	for _, provider := range []string{"gitlab", "github"} {
		for _, kind := range []string{internal.KindPullRequest, internal.KindPush} {
			router.Register(provider, kind, recorder.handler)
		}
	}
	queue := dispatch.NewQueue(internal.QueueConfig{Workers: 1, Depth: 8, DrainTimeoutMS: 2000}, nil)
	t.Cleanup(func() { _ = queue.Close() })
	return NewHandler(testRegistry(t), router, queue, 1<<20), recorder
}

func waitForEvents(t *testing.T, recorder *recordedEvent, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if recorder.count() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d events, got %d", want, recorder.count())
}

// TestAcceptsGitLabPush verifies a push delivery is resolved, normalized, and
// queued, and the sender gets 202 before the review runs.
func TestAcceptsGitLabPush(t *testing.T) {
	handler, recorder := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/review_webhook", strings.NewReader(`{"ref":"refs/heads/main"}`))
	req.Header.Set("X-Gitlab-Event", "Push Hook")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["provider"] != "gitlab" || body["kind"] != internal.KindPush {
		t.Fatalf("unexpected response body: %v", body)
	}

	waitForEvents(t, recorder, 1)
	event := recorder.events[0]
	if event.Provider != "gitlab" || event.Kind != internal.KindPush {
		t.Fatalf("unexpected event %q/%q", event.Provider, event.Kind)
	}
	if event.URLSlug != "gitlab_example_com" {
		t.Fatalf("unexpected slug %q", event.URLSlug)
	}
}

// TestResolvesGitHubByHeader verifies the first matching descriptor wins over
// the default provider.
func TestResolvesGitHubByHeader(t *testing.T) {
	handler, recorder := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/review_webhook", strings.NewReader(`{"action":"opened"}`))
	req.Header.Set("X-GitHub-Event", "pull_request")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	waitForEvents(t, recorder, 1)
	if recorder.events[0].Provider != "github" {
		t.Fatalf("expected github, got %q", recorder.events[0].Provider)
	}
}

// TestDefaultsToGitLab verifies deliveries with no identifying headers fall
// back to the default provider. Without a gitlab event header the native
// event name is empty and unmapped, so the request is rejected as
// unsupported rather than silently dropped.
func TestDefaultsToGitLab(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/review_webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["provider"] != "gitlab" {
		t.Fatalf("expected fallback to gitlab, got %v", body)
	}
}

// TestRejectsUnmappedEvent verifies event names absent from the descriptor
// mapping produce a 400 instead of reaching the queue.
func TestRejectsUnmappedEvent(t *testing.T) {
	handler, recorder := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/review_webhook", strings.NewReader(`{}`))
	req.Header.Set("X-Gitlab-Event", "Issue Hook")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if recorder.count() != 0 {
		t.Fatalf("unmapped event must not be queued")
	}
}

// TestRejectsInvalidJSON verifies malformed bodies never reach the registry.
func TestRejectsInvalidJSON(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/review_webhook", strings.NewReader("not json"))
	req.Header.Set("X-Gitlab-Event", "Push Hook")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// TestRejectsNonPost verifies only POST is served.
func TestRejectsNonPost(t *testing.T) {
	handler, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/review_webhook", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

// TestUnwiredPairRejected verifies a mapped event whose (provider, kind)
// pair has no registered handler is rejected as a request error, not a
// server fault.
func TestUnwiredPairRejected(t *testing.T) {
	recorder := &recordedEvent{}
	router := dispatch.NewRouter()
	router.Register("gitlab", internal.KindPullRequest, recorder.handler)

	queue := dispatch.NewQueue(internal.QueueConfig{Workers: 1, Depth: 8, DrainTimeoutMS: 1000}, nil)
	t.Cleanup(func() { _ = queue.Close() })
	handler := NewHandler(testRegistry(t), router, queue, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/review_webhook", strings.NewReader(`{}`))
	req.Header.Set("X-Gitlab-Event", "Push Hook")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["provider"] != "gitlab" || !strings.Contains(body["reason"], "no handler") {
		t.Fatalf("unexpected response body: %v", body)
	}
	if recorder.count() != 0 {
		t.Fatalf("unwired pair must not be queued")
	}
}

// TestMissingTokenRejected verifies a descriptor with a configured but unset
// credential env var is rejected before any fetch work.
func TestMissingTokenRejected(t *testing.T) {
	registry, err := internal.NewRegistry([]internal.Descriptor{
		{
			Name:           "gitlab",
			Parser:         "gitlab",
			Identification: []internal.HeaderRule{{Header: "X-Gitlab-Event"}},
			Credentials:    internal.CredentialRule{Type: "env", Key: "REVIEWHOOKS_TEST_TOKEN"},
			EventMapping:   map[string]string{"Push Hook": internal.KindPush},
			BaseURL:        "http://gitlab.example.com",
		},
	}, "gitlab")
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	os.Unsetenv("REVIEWHOOKS_TEST_TOKEN")

	queue := dispatch.NewQueue(internal.QueueConfig{Workers: 1, Depth: 1, DrainTimeoutMS: 1000}, nil)
	t.Cleanup(func() { _ = queue.Close() })
	handler := NewHandler(registry, dispatch.NewRouter(), queue, 1<<20)

	req := httptest.NewRequest(http.MethodPost, "/review_webhook", strings.NewReader(`{}`))
	req.Header.Set("X-Gitlab-Event", "Push Hook")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if !strings.Contains(body["reason"], "access token") {
		t.Fatalf("unexpected reason %q", body["reason"])
	}
}

// TestSaturatedQueueReturns503 verifies queue saturation maps to a retryable
// status instead of blocking the request.
func TestSaturatedQueueReturns503(t *testing.T) {
	release := make(chan struct{})
	blocker := func(ctx context.Context, event internal.WebhookEvent) dispatch.Outcome {
		<-release
		return dispatch.Done()
	}
	defer close(release)

	router := dispatch.NewRouter()
	router.Register("gitlab", internal.KindPush, blocker)
	queue := dispatch.NewQueue(internal.QueueConfig{Workers: 1, Depth: 1, DrainTimeoutMS: 2000}, nil)
	handler := NewHandler(testRegistry(t), router, queue, 1<<20)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/review_webhook", strings.NewReader(`{}`))
		req.Header.Set("X-Gitlab-Event", "Push Hook")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	// First delivery occupies the worker, second fills the channel. One of
	// the next deliveries must observe saturation.
	saw503 := false
	for i := 0; i < 4; i++ {
		if send() == http.StatusServiceUnavailable {
			saw503 = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !saw503 {
		t.Fatalf("expected a 503 once the queue saturated")
	}
}

// TestOversizedBodyRejected verifies the body limit is enforced.
func TestOversizedBodyRejected(t *testing.T) {
	handler, _ := newTestHandler(t)
	handler.maxBody = 16

	req := httptest.NewRequest(http.MethodPost, "/review_webhook", strings.NewReader(`{"padding":"`+strings.Repeat("x", 64)+`"}`))
	req.Header.Set("X-Gitlab-Event", "Push Hook")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
