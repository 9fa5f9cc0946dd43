// Package webhook exposes the HTTP surface: the webhook intake endpoint
// and the report endpoints.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"reviewhooks/internal"
	"reviewhooks/pkg/dispatch"
)

// Handler is the single webhook intake endpoint. Every provider posts to
// the same path; the registry resolves the sender from headers.
type Handler struct {
	registry *internal.Registry
	router   *dispatch.Router
	queue    *dispatch.Queue
	maxBody  int64
	logger   *log.Logger
}

// NewHandler builds the intake endpoint.
func NewHandler(registry *internal.Registry, router *dispatch.Router, queue *dispatch.Queue, maxBody int64) *Handler {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handler{
		registry: registry,
		router:   router,
		queue:    queue,
		maxBody:  maxBody,
		logger:   internal.NewLogger("webhook"),
	}
}

// ServeHTTP accepts one webhook delivery, normalizes it, and enqueues the
// review task. The response is sent before any review work happens.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"status": "error",
			"reason": "only POST is accepted",
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error",
			"reason": "unreadable request body",
		})
		return
	}
	if !json.Valid(body) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error",
			"reason": "invalid JSON payload",
		})
		return
	}

	desc, err := h.registry.Resolve(r.Header)
	if err != nil {
		internal.IncResolveError("unknown_provider")
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status": "error",
			"reason": "unable to identify the webhook sender",
		})
		return
	}

	internal.IncRequest(desc.Name)

	native := internal.NativeEvent(desc, r.Header)
	kind, ok := internal.MapEventKind(desc, native)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":   "error",
			"provider": desc.Name,
			"reason":   "unsupported event type: " + native,
		})
		return
	}

	token := internal.AccessToken(desc)
	if desc.Credentials.Key != "" && token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":   "error",
			"provider": desc.Name,
			"reason":   "access token for provider is not configured",
		})
		return
	}

	normalize, ok := internal.NormalizerFor(desc.Parser)
	if !ok {
		internal.IncResolveError("missing_parser")
		h.logger.Printf("provider %s has no parser %q", desc.Name, desc.Parser)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":   "error",
			"provider": desc.Name,
			"reason":   "no parser registered for provider",
		})
		return
	}
	event, err := normalize(desc, body, token, kind)
	if err != nil {
		internal.IncNormalizeError(desc.Name)
		h.logger.Printf("normalize %s %s failed: %v", desc.Name, kind, err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":   "error",
			"provider": desc.Name,
			"reason":   err.Error(),
		})
		return
	}

	handler, err := h.router.Route(event)
	if err != nil {
		h.logger.Printf("route %s %s failed: %v", event.Provider, event.Kind, err)
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"status":   "error",
			"provider": event.Provider,
			"reason":   "no handler for event",
		})
		return
	}

	if err := h.queue.Enqueue(handler, event); err != nil {
		if errors.Is(err, dispatch.ErrQueueFull) || errors.Is(err, dispatch.ErrQueueClosed) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "error",
				"reason": "review queue is saturated, retry later",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"reason": "enqueue failed",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":   "queued",
		"provider": event.Provider,
		"kind":     event.Kind,
	})
}

// Index reports liveness on the root path.
func Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "the code review service is running",
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
