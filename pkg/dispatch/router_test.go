package dispatch

import (
	"context"
	"testing"

	"reviewhooks/internal"
)

func noopHandler(ctx context.Context, event internal.WebhookEvent) Outcome {
	return Done()
}

// TestRouteResolvesHandler tests the (provider, kind) lookup.
func TestRouteResolvesHandler(t *testing.T) {
	router := NewRouter()
	router.Register("gitlab", internal.KindPullRequest, noopHandler)
	router.Register("gitlab", internal.KindPush, noopHandler)

	h, err := router.Route(internal.WebhookEvent{Provider: "gitlab", Kind: internal.KindPush})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if h == nil {
		t.Fatalf("expected handler")
	}
}

// TestRouteUnwiredPair tests that a supported-but-unwired pair is an error.
func TestRouteUnwiredPair(t *testing.T) {
	router := NewRouter()
	router.Register("gitlab", internal.KindPush, noopHandler)

	if _, err := router.Route(internal.WebhookEvent{Provider: "coding", Kind: internal.KindPush}); err == nil {
		t.Fatalf("expected unwired pair error")
	}
}

// TestRegisterDuplicatePanics tests the one-handler-per-key invariant.
func TestRegisterDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate registration")
		}
	}()
	router := NewRouter()
	router.Register("github", internal.KindPush, noopHandler)
	router.Register("github", internal.KindPush, noopHandler)
}
