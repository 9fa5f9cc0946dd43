// Package dispatch routes canonical webhook events to their provider
// handlers and runs them on a bounded worker pool, off the request path.
package dispatch

import (
	"context"
	"fmt"

	"reviewhooks/internal"
)

// Handler processes one canonical event on a worker goroutine.
type Handler func(ctx context.Context, event internal.WebhookEvent) Outcome

type routeKey struct {
	provider string
	kind     string
}

// Router is a pure lookup from (provider, kind) to a handler. It resolves
// but never executes, so routing stays testable without side effects.
type Router struct {
	handlers map[routeKey]Handler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[routeKey]Handler)}
}

// Register wires a handler for one (provider, kind) pair. Registering the
// same pair twice is a programming error and panics at startup.
func (r *Router) Register(provider, kind string, h Handler) {
	key := routeKey{provider: provider, kind: kind}
	if _, dup := r.handlers[key]; dup {
		panic(fmt.Sprintf("dispatch: duplicate handler for %s/%s", provider, kind))
	}
	r.handlers[key] = h
}

// Route resolves the handler for an event. An unmatched pair is a
// supported-but-unwired combination and is reported, never dropped.
func (r *Router) Route(event internal.WebhookEvent) (Handler, error) {
	h, ok := r.handlers[routeKey{provider: event.Provider, kind: event.Kind}]
	if !ok {
		return nil, fmt.Errorf("no handler registered for %s %s event", event.Provider, event.Kind)
	}
	return h, nil
}
