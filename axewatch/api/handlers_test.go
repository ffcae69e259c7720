package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AxeWatch/go-api/axewatch"
	"github.com/AxeWatch/go-api/axewatch/cache"
	"github.com/AxeWatch/go-api/axewatch/history"
	"github.com/AxeWatch/go-api/axewatch/stats"
	"github.com/AxeWatch/go-api/axewatch/store"
)

// mockKVStore is a simple in-memory implementation of KVStore for testing.
type mockKVStore struct {
	data map[string]string
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{data: make(map[string]string)}
}

func (m *mockKVStore) SetValue(ctx context.Context, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockKVStore) GetValue(ctx context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", fmt.Errorf("key '%s': %w", key, store.ErrNotFound)
	}
	return v, nil
}

func (m *mockKVStore) ListKeys(ctx context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *mockKVStore) DeleteValue(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *mockKVStore) Close() error { return nil }

// recorderLog captures durable-log appends.
type recorderLog struct {
	recorded []string
	fail     bool
}

func (r *recorderLog) RecordScan(url string, sub axewatch.ScanSubmission, ts time.Time) error {
	if r.fail {
		return fmt.Errorf("database unavailable")
	}
	r.recorded = append(r.recorded, url)
	return nil
}

// emptySource is a stats source with no rows.
type emptySource struct{}

func (emptySource) TimestampsInRange(start, end time.Time) ([]int64, error) { return nil, nil }
func (emptySource) CountInRange(start, end time.Time) (int64, error)        { return 0, nil }
func (emptySource) HighPriorityInRange(start, end time.Time) (int64, error) { return 0, nil }
func (emptySource) DistinctURLsInRange(start, end time.Time) (int64, error) { return 0, nil }
func (emptySource) TopDescriptionsInRange(start, end time.Time, limit int) ([]history.IssueCount, error) {
	return nil, nil
}
func (emptySource) ScansPerDay(start, end time.Time) (map[string]int64, error) { return nil, nil }

func testHandlers(t *testing.T) (*Handlers, *recorderLog) {
	t.Helper()
	rec := &recorderLog{}
	h := NewHandlers(cache.New(newMockKVStore()), rec, stats.NewEngine(emptySource{}), "https://site")
	return h, rec
}

func postScan(t *testing.T, h *Handlers, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ScanSubmission(w, req)
	return w
}

func TestScanSubmissionSuccess(t *testing.T) {
	h, rec := testHandlers(t)

	body := `{"url":"https://x.test/a","violations":[{"id":"a","impact":"critical"},{"id":"b","impact":"minor"}]}`
	w := postScan(t, h, body)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp ScanSubmissionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Error("success = false")
	}
	if resp.Summary.TotalViolations != 2 || resp.Summary.CriticalViolations != 1 || resp.Summary.MinorViolations != 1 {
		t.Errorf("summary = %+v", resp.Summary)
	}
	if resp.Summary.UniquePagesScanned != 1 {
		t.Errorf("unique pages = %d, want 1", resp.Summary.UniquePagesScanned)
	}

	if len(rec.recorded) != 1 || rec.recorded[0] != "https://x.test/a" {
		t.Errorf("durable log appends = %v", rec.recorded)
	}
}

func TestScanSubmissionValidation(t *testing.T) {
	h, _ := testHandlers(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{"url": `},
		{"missing url", `{"violations":[]}`},
		{"missing violations", `{"url":"https://x.test/a"}`},
	}
	for _, c := range cases {
		w := postScan(t, h, c.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", c.name, w.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Errorf("%s: non-JSON error body: %s", c.name, w.Body.String())
			continue
		}
		if resp.Success || resp.Error == "" {
			t.Errorf("%s: error payload = %+v", c.name, resp)
		}
	}
}

func TestScanSubmissionSurvivesDurableLogFailure(t *testing.T) {
	h, rec := testHandlers(t)
	rec.fail = true

	w := postScan(t, h, `{"url":"https://x.test/a","violations":[]}`)
	if w.Code != http.StatusOK {
		t.Errorf("cache write succeeded; durable-log failure must not fail the request, got %d", w.Code)
	}
}

func TestCacheGetAndClear(t *testing.T) {
	h, _ := testHandlers(t)
	postScan(t, h, `{"url":"https://x.test/a","violations":[{"id":"a","impact":"serious"}]}`)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cache?url=https://x.test/a", nil)
	w := httptest.NewRecorder()
	h.CacheGet(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("CacheGet status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/cache/clear", nil)
	w = httptest.NewRecorder()
	h.CacheClear(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("CacheClear status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cache?url=https://x.test/a", nil)
	w = httptest.NewRecorder()
	h.CacheGet(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("after clear-all, CacheGet status = %d, want 404", w.Code)
	}
}

func TestStatisticsEmptyTimeframe(t *testing.T) {
	h, _ := testHandlers(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/statistics?timeframe=custom&view_by=week", nil)
	w := httptest.NewRecorder()
	h.Statistics(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("incomplete timeframe must not error, status = %d", w.Code)
	}

	var resp StatisticsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Summary.TotalViolations != 0 || len(resp.Chart.Data) != 0 {
		t.Errorf("expected empty payload, got %+v", resp)
	}
	if len(resp.ScanActivity) != 7 {
		t.Errorf("scan activity has %d days, want 7", len(resp.ScanActivity))
	}
}

func TestReportSlugFallback(t *testing.T) {
	h, _ := testHandlers(t)
	postScan(t, h, `{"url":"https://site/accessibility/test-violations","violations":[{"id":"a","impact":"critical"}]}`)

	// Slug that only the test-page heuristic can resolve.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/report/accessibility-test-violations-page", nil)
	w := httptest.NewRecorder()
	h.Report(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Report status = %d", w.Code)
	}

	var resp ReportResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.MatchedURL != "https://site/accessibility/test-violations" {
		t.Errorf("matched URL = %q", resp.MatchedURL)
	}
	if resp.Snapshot.Counts.Critical != 1 {
		t.Errorf("snapshot counts = %+v", resp.Snapshot.Counts)
	}

	// Unresolvable slug still renders: zeroed snapshot, 200.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/report/foo-bar", nil)
	w = httptest.NewRecorder()
	h.Report(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("fallback Report status = %d", w.Code)
	}
	resp = ReportResponse{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode fallback response: %v", err)
	}
	if resp.MatchedURL != "" || resp.Snapshot.Counts.Total != 0 {
		t.Errorf("fallback response = %+v", resp)
	}
}

func TestQueueProcessor(t *testing.T) {
	h, rec := testHandlers(t)
	process := h.QueueProcessor(context.Background())

	process(`{"url":"https://x.test/q","violations":[{"id":"a","impact":"moderate"}]}`)
	process(`not json`)
	process(`{"violations":[]}`)

	if len(rec.recorded) != 1 || rec.recorded[0] != "https://x.test/q" {
		t.Errorf("durable log appends = %v, want only the valid message", rec.recorded)
	}

	snap, found, err := h.cache.Get(context.Background(), "https://x.test/q")
	if err != nil || !found {
		t.Fatalf("queued scan not cached: found=%v err=%v", found, err)
	}
	if snap.Counts.Moderate != 1 {
		t.Errorf("queued snapshot counts = %+v", snap.Counts)
	}
}

func TestScanTrigger(t *testing.T) {
	h, _ := testHandlers(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/trigger", strings.NewReader(`{"url":"https://site/tools/"}`))
	w := httptest.NewRecorder()
	h.ScanTrigger(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("ScanTrigger status = %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/cache/urls", nil)
	w = httptest.NewRecorder()
	h.CacheURLs(w, req)

	var resp struct {
		Success    bool     `json:"success"`
		Scanned    []string `json:"scanned"`
		HasTrigger []string `json:"has_trigger"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.HasTrigger) != 1 || resp.HasTrigger[0] != "https://site/tools" {
		t.Errorf("trigger registry = %v", resp.HasTrigger)
	}
	if len(resp.Scanned) != 0 {
		t.Errorf("scanned registry = %v, want empty", resp.Scanned)
	}
}
