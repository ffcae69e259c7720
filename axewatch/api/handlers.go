package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AxeWatch/go-api/axewatch"
	"github.com/AxeWatch/go-api/axewatch/cache"
	"github.com/AxeWatch/go-api/axewatch/history"
	"github.com/AxeWatch/go-api/axewatch/report"
	"github.com/AxeWatch/go-api/axewatch/stats"
)

// ScanRecorder appends a scan's violations to the durable log.
type ScanRecorder interface {
	RecordScan(url string, sub axewatch.ScanSubmission, ts time.Time) error
}

// Handlers carries the collaborators the HTTP handlers need.
type Handlers struct {
	cache   *cache.Service
	log     ScanRecorder
	stats   *stats.Engine
	baseURL string
}

// NewHandlers wires the handler set.
func NewHandlers(c *cache.Service, log ScanRecorder, engine *stats.Engine, siteBaseURL string) *Handlers {
	return &Handlers{
		cache:   c,
		log:     log,
		stats:   engine,
		baseURL: siteBaseURL,
	}
}

// ScanSummary is the aggregate block returned after a successful submission.
type ScanSummary struct {
	TotalViolations    int `json:"total_violations"`
	UniquePagesScanned int `json:"unique_pages_scanned"`
	CriticalViolations int `json:"critical_violations"`
	SeriousViolations  int `json:"serious_violations"`
	ModerateViolations int `json:"moderate_violations"`
	MinorViolations    int `json:"minor_violations"`
}

// ScanSubmissionResponse is the success payload for a scan submission.
type ScanSubmissionResponse struct {
	Success bool        `json:"success"`
	Summary ScanSummary `json:"summary"`
}

// ErrorResponse is the generic failure payload.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// StatisticsResponse is the payload for the statistics endpoint.
type StatisticsResponse struct {
	Summary      stats.Summary        `json:"summary"`
	Chart        stats.Chart          `json:"chart"`
	TopIssues    []history.IssueCount `json:"top_issues"`
	ScanActivity []stats.DayPoint     `json:"scan_activity"`
}

// summaryFromStats flattens the cached aggregate into the submission
// response block.
func summaryFromStats(agg axewatch.AggregatedStats) ScanSummary {
	return ScanSummary{
		TotalViolations:    agg.Counts.Total,
		UniquePagesScanned: agg.UniqueURLs,
		CriticalViolations: agg.Counts.Critical,
		SeriousViolations:  agg.Counts.Serious,
		ModerateViolations: agg.Counts.Moderate,
		MinorViolations:    agg.Counts.Minor,
	}
}

// ReportResponse is the payload for a slug report lookup. Snapshot is the
// zeroed fallback when the slug could not be resolved.
type ReportResponse struct {
	Slug          string                `json:"slug"`
	MatchedURL    string                `json:"matched_url"`
	MatchStrategy string                `json:"match_strategy,omitempty"`
	Snapshot      axewatch.ScanSnapshot `json:"snapshot"`
}

// ScanSubmission handles POST /api/v1/scan.
func (h *Handlers) ScanSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var sub axewatch.ScanSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if sub.URL == "" {
		writeError(w, http.StatusBadRequest, "missing required field: url")
		return
	}
	if sub.Violations == nil {
		writeError(w, http.StatusBadRequest, "missing required field: violations")
		return
	}

	if _, err := h.ProcessSubmission(r.Context(), sub); err != nil {
		// Details are logged at the write boundary; clients get a
		// generic message.
		writeError(w, http.StatusInternalServerError, "internal storage error")
		return
	}

	agg, err := h.cache.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal storage error")
		return
	}

	writeJSON(w, http.StatusOK, ScanSubmissionResponse{
		Success: true,
		Summary: summaryFromStats(agg),
	})
}

// ProcessSubmission runs the shared ingestion path: cache write plus durable
// log append. Used by both the HTTP handler and the queue consumer. A
// durable-log failure is logged but does not fail the submission; the cache
// write decides success.
func (h *Handlers) ProcessSubmission(ctx context.Context, sub axewatch.ScanSubmission) (axewatch.ScanSnapshot, error) {
	snap, err := h.cache.Put(ctx, sub.URL, sub)
	if err != nil {
		return snap, err
	}

	if h.log != nil {
		if err := h.log.RecordScan(snap.URL, sub, time.Unix(snap.ScannedAt, 0)); err != nil {
			slog.Error("Failed to append scan to durable log",
				"url", snap.URL, "violations", snap.Counts.Total, "error", err)
		}
	}
	return snap, nil
}

// QueueProcessor adapts the ingestion path to the AMQP listener: one JSON
// scan submission per message. Malformed messages are logged and dropped.
func (h *Handlers) QueueProcessor(ctx context.Context) func(msg string) {
	return func(msg string) {
		var sub axewatch.ScanSubmission
		if err := json.Unmarshal([]byte(msg), &sub); err != nil {
			slog.Warn("Dropping undecodable scan message", "error", err)
			return
		}
		if sub.URL == "" || sub.Violations == nil {
			slog.Warn("Dropping incomplete scan message", "url", sub.URL)
			return
		}
		if _, err := h.ProcessSubmission(ctx, sub); err != nil {
			slog.Error("Failed to process queued scan", "url", sub.URL, "error", err)
		}
	}
}

// ScanTrigger handles POST /api/v1/trigger, recording that a page exposes a
// scan-initiation control.
func (h *Handlers) ScanTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "missing required field: url")
		return
	}

	if err := h.cache.RecordScanTrigger(r.Context(), req.URL); err != nil {
		writeError(w, http.StatusInternalServerError, "internal storage error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Statistics handles GET /api/v1/statistics.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	now := time.Now()
	tf := stats.ParseTimeframe(r.URL.Query())

	rep, err := h.stats.Report(tf, now)
	if err != nil {
		slog.Error("Failed to build statistics report", "error", err)
		writeError(w, http.StatusInternalServerError, "internal storage error")
		return
	}

	activity, err := h.stats.ScanActivity(now)
	if err != nil {
		slog.Error("Failed to build scan activity series", "error", err)
		writeError(w, http.StatusInternalServerError, "internal storage error")
		return
	}

	writeJSON(w, http.StatusOK, StatisticsResponse{
		Summary:      rep.Summary,
		Chart:        rep.Chart,
		TopIssues:    rep.TopIssues,
		ScanActivity: activity,
	})
}

// CacheGet handles GET /api/v1/cache?url=...
func (h *Handlers) CacheGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	u := r.URL.Query().Get("url")
	if u == "" {
		writeError(w, http.StatusBadRequest, "missing required parameter: url")
		return
	}

	snap, found, err := h.cache.Get(r.Context(), u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal storage error")
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"message": "no cached scan for URL",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"snapshot": snap,
	})
}

// CacheClear handles POST /api/v1/cache/clear. With a url parameter it
// clears one snapshot; without, it wipes the whole cache.
func (h *Handlers) CacheClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	u := r.URL.Query().Get("url")
	var err error
	if u == "" {
		err = h.cache.ClearAll(r.Context())
	} else {
		err = h.cache.ClearOne(r.Context(), u)
	}
	if err != nil {
		slog.Error("Failed to clear scan cache", "url", u, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"message": "failed to clear cache",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *Handlers) CacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	agg, err := h.cache.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal storage error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   agg,
	})
}

// CacheURLs handles GET /api/v1/cache/urls, listing both URL registries for
// discovery UIs.
func (h *Handlers) CacheURLs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	scanned, err := h.cache.ScannedURLs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal storage error")
		return
	}
	triggers, err := h.cache.TriggerURLs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal storage error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"scanned":     scanned,
		"has_trigger": triggers,
	})
}

// Report handles GET /api/v1/report/{slug}.
func (h *Handlers) Report(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	slug := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/report/"), "/")
	if slug == "" {
		writeError(w, http.StatusBadRequest, "missing report slug")
		return
	}

	snap, strategy, matched := report.Lookup(r.Context(), h.cache, slug, h.baseURL)

	resp := ReportResponse{
		Slug:     slug,
		Snapshot: snap,
	}
	if matched {
		resp.MatchedURL = snap.URL
		resp.MatchStrategy = string(strategy)
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: msg})
}
