package internal

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

// Normalizer turns a provider-native request body into a canonical
// WebhookEvent. kind is the canonical event kind already resolved from the
// descriptor's event mapping.
type Normalizer func(desc Descriptor, payload []byte, token, kind string) (WebhookEvent, error)

// normalizers maps descriptor parser names to their normalizer. Resolved at
// startup through NormalizerFor, never by runtime symbol lookup.
var normalizers = map[string]Normalizer{
	"gitlab": normalizeGitLab,
	"github": normalizeGitHub,
	"gitea":  normalizeGitea,
	"coding": normalizeCoding,
}

// NormalizerFor returns the normalizer registered under the given parser name.
func NormalizerFor(name string) (Normalizer, bool) {
	fn, ok := normalizers[name]
	return fn, ok
}

var (
	schemePrefix = regexp.MustCompile(`^https?://`)
	nonAlnum     = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// SlugifyURL converts a base URL into a string safe to use as a path
// component: the scheme is stripped, every other non-alphanumeric character
// becomes an underscore, and trailing underscores are trimmed.
//
//	SlugifyURL("http://example.com/path/to/repo/") == "example_com_path_to_repo"
func SlugifyURL(raw string) string {
	out := schemePrefix.ReplaceAllString(raw, "")
	out = nonAlnum.ReplaceAllString(out, "_")
	return strings.TrimRight(out, "_")
}

func normalizeGitLab(desc Descriptor, payload []byte, token, kind string) (WebhookEvent, error) {
	baseURL := desc.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("GITLAB_URL")
	}
	if baseURL == "" {
		var body struct {
			Repository struct {
				Homepage string `json:"homepage"`
			} `json:"repository"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return WebhookEvent{}, fmt.Errorf("decode gitlab payload: %w", err)
		}
		if body.Repository.Homepage == "" {
			return WebhookEvent{}, fmt.Errorf("missing gitlab url")
		}
		parsed, err := url.Parse(body.Repository.Homepage)
		if err != nil || parsed.Host == "" {
			return WebhookEvent{}, fmt.Errorf("parse gitlab homepage %q: invalid url", body.Repository.Homepage)
		}
		baseURL = parsed.Scheme + "://" + parsed.Host + "/"
	}
	return newEvent("gitlab", kind, payload, token, baseURL)
}

func normalizeGitHub(desc Descriptor, payload []byte, token, kind string) (WebhookEvent, error) {
	baseURL := desc.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("GITHUB_URL")
	}
	if baseURL == "" {
		baseURL = "https://github.com"
	}
	return newEvent("github", kind, payload, token, baseURL)
}

func normalizeGitea(desc Descriptor, payload []byte, token, kind string) (WebhookEvent, error) {
	baseURL := desc.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("GITEA_URL")
	}
	if baseURL == "" {
		baseURL = "https://gitea.com"
	}
	return newEvent("gitea", kind, payload, token, baseURL)
}

func normalizeCoding(desc Descriptor, payload []byte, token, kind string) (WebhookEvent, error) {
	baseURL := desc.BaseURL
	if baseURL == "" {
		var body struct {
			Repository struct {
				HTMLURL string `json:"html_url"`
			} `json:"repository"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			return WebhookEvent{}, fmt.Errorf("decode coding payload: %w", err)
		}
		if body.Repository.HTMLURL != "" {
			parsed, err := url.Parse(body.Repository.HTMLURL)
			if err == nil && parsed.Host != "" {
				baseURL = parsed.Scheme + "://" + parsed.Host
			}
		}
	}
	if baseURL == "" {
		baseURL = os.Getenv("CODING_URL")
	}
	if baseURL == "" {
		baseURL = "https://coding.net"
	}
	return newEvent("coding", kind, payload, token, baseURL)
}

func newEvent(provider, kind string, payload []byte, token, baseURL string) (WebhookEvent, error) {
	if kind != KindPullRequest && kind != KindPush {
		return WebhookEvent{}, fmt.Errorf("unsupported event kind %q for %s", kind, provider)
	}
	return WebhookEvent{
		Provider: provider,
		Kind:     kind,
		Payload:  json.RawMessage(payload),
		Token:    token,
		BaseURL:  baseURL,
		URLSlug:  SlugifyURL(baseURL),
	}, nil
}
