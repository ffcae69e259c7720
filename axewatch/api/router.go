package api

import (
	"net/http"
)

// SetupRoutes registers all scan API routes on the given mux.
func SetupRoutes(mux *http.ServeMux, h *Handlers) {
	// Scan ingestion
	mux.HandleFunc("/api/v1/scan", h.ScanSubmission)
	mux.HandleFunc("/api/v1/trigger", h.ScanTrigger)

	// Statistics
	mux.HandleFunc("/api/v1/statistics", h.Statistics)

	// Cache management
	mux.HandleFunc("/api/v1/cache", h.CacheGet)
	mux.HandleFunc("/api/v1/cache/clear", h.CacheClear)
	mux.HandleFunc("/api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("/api/v1/cache/urls", h.CacheURLs)

	// Report lookup by slug
	mux.HandleFunc("/api/v1/report/", h.Report)
}
