package webhook

import (
	"log"
	"net/http"
	"strings"
	"time"

	"reviewhooks/internal"
	"reviewhooks/pkg/report"
	"reviewhooks/pkg/store"
)

// ReportsHandler serves the stored review reports and generates the daily
// digest on demand.
type ReportsHandler struct {
	store    store.Store
	renderer *report.Renderer
	logger   *log.Logger
}

// NewReportsHandler builds the report endpoints.
func NewReportsHandler(st store.Store, renderer *report.Renderer) *ReportsHandler {
	return &ReportsHandler{
		store:    st,
		renderer: renderer,
		logger:   internal.NewLogger("reports"),
	}
}

// List returns the relative paths of every stored report, newest day first.
func (h *ReportsHandler) List(w http.ResponseWriter, r *http.Request) {
	paths, err := h.renderer.List()
	if err != nil {
		h.logger.Printf("list reports: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"reason": "unable to list reports",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"reports": paths,
	})
}

// View serves one stored report as HTML. The report path comes from the
// request path below the mount point.
func (h *ReportsHandler) View(prefix string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(r.URL.Path, prefix)
		if rel == "" || rel == r.URL.Path {
			h.List(w, r)
			return
		}
		body, err := h.renderer.Open(rel)
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"status": "error",
				"reason": "report not found",
			})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

// Daily renders the digest of all reviews recorded on one day. The day comes
// from the date query parameter (2006-01-02) and defaults to today.
func (h *ReportsHandler) Daily(w http.ResponseWriter, r *http.Request) {
	day := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"status": "error",
				"reason": "date must be formatted as 2006-01-02",
			})
			return
		}
		day = parsed
	}

	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	to := from.Add(24 * time.Hour)

	mrs, err := h.store.ListMergeRequestReviews(r.Context(), from.Unix(), to.Unix())
	if err != nil {
		h.logger.Printf("list merge request reviews: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"reason": "unable to load reviews",
		})
		return
	}
	pushes, err := h.store.ListPushReviews(r.Context(), from.Unix(), to.Unix())
	if err != nil {
		h.logger.Printf("list push reviews: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"reason": "unable to load reviews",
		})
		return
	}

	markdown := report.DailyMarkdown(day, mrs, pushes)
	title := "Daily review digest " + day.Format("2006-01-02")
	page, err := h.renderer.Render(title, markdown)
	if err != nil {
		h.logger.Printf("render daily digest: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status": "error",
			"reason": "unable to render digest",
		})
		return
	}
	if _, err := h.renderer.Save("daily-digest", title, markdown, day); err != nil {
		h.logger.Printf("save daily digest: %v", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}
