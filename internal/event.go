package internal

import "encoding/json"

// Canonical event kinds. Every provider-native event name is mapped onto one
// of these before dispatch; anything else is rejected upstream.
const (
	KindPullRequest = "pull_request"
	KindPush        = "push"
)

// WebhookEvent is the provider-independent form of an inbound webhook.
type WebhookEvent struct {
	// Provider is the name of the Git provider (e.g., "gitlab", "github").
	Provider string `json:"provider"`
	// Kind is the canonical event kind, KindPullRequest or KindPush.
	Kind string `json:"kind"`
	// Payload is the untouched provider-native request body. Handlers decode
	// the fields they need from it.
	Payload json.RawMessage `json:"payload"`
	// Token is the provider access token resolved for this request.
	Token string `json:"-"`
	// BaseURL is the provider instance base URL.
	BaseURL string `json:"base_url"`
	// URLSlug is a filename-safe derivation of BaseURL.
	URLSlug string `json:"url_slug"`
}
