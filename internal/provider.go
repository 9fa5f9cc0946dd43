package internal

import (
	"fmt"
	"net/http"
	"os"
	"strings"
)

// HeaderRule matches one request header against a set of accepted values.
// An empty Values list means presence of the header is enough.
type HeaderRule struct {
	Header string   `yaml:"header"`
	Values []string `yaml:"values"`
}

// CredentialRule describes how the provider's access token is obtained.
// The only supported source today is an environment variable.
type CredentialRule struct {
	Type string `yaml:"type"`
	Key  string `yaml:"key"`
}

// Descriptor is the static configuration for one Git provider.
type Descriptor struct {
	Name           string            `yaml:"name"`
	Identification []HeaderRule      `yaml:"identification"`
	Credentials    CredentialRule    `yaml:"credentials"`
	EventMapping   map[string]string `yaml:"event_mapping"`
	Parser         string            `yaml:"parser"`
	// BaseURL overrides the provider instance URL; when empty the normalizer
	// falls back to provider-specific derivation rules.
	BaseURL string `yaml:"base_url"`
}

// Registry holds provider descriptors in configured order. It is loaded once
// at startup and never mutated, so it is safe to share across requests.
type Registry struct {
	descriptors []Descriptor
	defaultName string
}

// NewRegistry validates descriptors and builds a Registry. Order is preserved:
// the first descriptor whose identification rules fully match wins.
func NewRegistry(descriptors []Descriptor, defaultName string) (*Registry, error) {
	if defaultName == "" {
		defaultName = "gitlab"
	}
	seen := make(map[string]struct{}, len(descriptors))
	for i, desc := range descriptors {
		name := strings.TrimSpace(desc.Name)
		if name == "" {
			return nil, fmt.Errorf("provider %d has no name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate provider %q", name)
		}
		seen[name] = struct{}{}
		for native, kind := range desc.EventMapping {
			if kind != KindPullRequest && kind != KindPush {
				return nil, fmt.Errorf("provider %q maps %q to unknown kind %q", name, native, kind)
			}
		}
	}
	return &Registry{descriptors: descriptors, defaultName: defaultName}, nil
}

// Descriptors returns the configured descriptors in order.
func (r *Registry) Descriptors() []Descriptor {
	return r.descriptors
}

// Lookup returns the descriptor with the given name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	for _, desc := range r.descriptors {
		if desc.Name == name {
			return desc, true
		}
	}
	return Descriptor{}, false
}

// Resolve picks the first descriptor whose identification rules all match the
// request headers. When nothing matches it degrades to the default provider;
// an error means even the default is absent from configuration.
func (r *Registry) Resolve(headers http.Header) (Descriptor, error) {
	for _, desc := range r.descriptors {
		if matches(desc, headers) {
			return desc, nil
		}
	}
	if desc, ok := r.Lookup(r.defaultName); ok {
		return desc, nil
	}
	return Descriptor{}, fmt.Errorf("no provider matched and default %q is not configured", r.defaultName)
}

func matches(desc Descriptor, headers http.Header) bool {
	if len(desc.Identification) == 0 {
		return false
	}
	for _, rule := range desc.Identification {
		actual := headers.Get(rule.Header)
		if actual == "" {
			return false
		}
		if len(rule.Values) == 0 {
			continue
		}
		accepted := false
		for _, value := range rule.Values {
			if actual == value {
				accepted = true
				break
			}
		}
		if !accepted {
			return false
		}
	}
	return true
}

// AccessToken resolves the provider access token per the descriptor's
// credential rule. An empty string means the token is missing, which the
// caller must treat as a request error.
func AccessToken(desc Descriptor) string {
	if desc.Credentials.Type == "env" && desc.Credentials.Key != "" {
		return os.Getenv(desc.Credentials.Key)
	}
	return ""
}

// NativeEvent extracts the provider-native event name from the first
// identification header present on the request.
func NativeEvent(desc Descriptor, headers http.Header) string {
	for _, rule := range desc.Identification {
		if value := headers.Get(rule.Header); value != "" {
			return value
		}
	}
	return ""
}

// MapEventKind maps a provider-native event name onto a canonical kind. This
// is a deliberate allow-list: names absent from the mapping are unsupported.
func MapEventKind(desc Descriptor, native string) (string, bool) {
	kind, ok := desc.EventMapping[native]
	return kind, ok
}
