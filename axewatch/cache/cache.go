// Package cache implements the scan-result cache: per-URL snapshots,
// the scanned/trigger URL registries, the recomputed aggregate, and the
// rolling daily scan counter, all stored as JSON blobs in the key/value
// backend under the a11y: prefix.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AxeWatch/go-api/axewatch"
	"github.com/AxeWatch/go-api/axewatch/scan"
	"github.com/AxeWatch/go-api/axewatch/store"
)

const (
	keyPrefix         = "a11y:"
	keySnapshotPrefix = keyPrefix + "snapshot:"
	keyScannedURLs    = keyPrefix + "urls:scanned"
	keyTriggerURLs    = keyPrefix + "urls:trigger"
	keyAggregate      = keyPrefix + "stats:aggregate"
	keyDailyCounts    = keyPrefix + "stats:daily"
)

// dailyRetentionDays is the rolling window kept in the daily scan counter.
const dailyRetentionDays = 30

// Service is the scan cache. All writes (snapshot + registry + aggregate)
// run under a single writer mutex so concurrent submissions cannot observe
// a snapshot without its registry or aggregate update.
type Service struct {
	mu sync.Mutex
	kv store.KVStore
}

// New creates a cache service on top of the given key/value store.
func New(kv store.KVStore) *Service {
	return &Service{kv: kv}
}

// Put stores the scan result for a URL, replacing any previous snapshot
// wholesale, and updates the scanned registry, daily counter, and aggregate.
// Storage failures are logged with context and returned; callers map them to
// a generic failure response.
func (s *Service) Put(ctx context.Context, rawURL string, sub axewatch.ScanSubmission) (axewatch.ScanSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	u := NormalizeURL(rawURL)
	snap := scan.BuildSnapshot(u, sub, now)

	data, err := json.Marshal(snap)
	if err != nil {
		return snap, fmt.Errorf("marshal snapshot for %s: %w", u, err)
	}
	if err := s.kv.SetValue(ctx, keySnapshotPrefix+u, string(data)); err != nil {
		slog.Error("Failed to store scan snapshot", "url", u, "violations", snap.Counts.Total, "error", err)
		return snap, fmt.Errorf("store snapshot for %s: %w", u, err)
	}

	if err := s.addToSet(ctx, keyScannedURLs, u); err != nil {
		slog.Error("Failed to register scanned URL", "url", u, "error", err)
		return snap, fmt.Errorf("register scanned URL %s: %w", u, err)
	}

	// The daily counter is a best-effort mirror; the durable log is
	// authoritative for scan-activity charts.
	if err := s.recordScanEvent(ctx, now); err != nil {
		slog.Warn("Failed to record daily scan event", "url", u, "error", err)
	}

	if _, err := s.recompute(ctx); err != nil {
		slog.Error("Failed to recompute aggregate stats", "url", u, "error", err)
		return snap, fmt.Errorf("recompute aggregate after %s: %w", u, err)
	}

	return snap, nil
}

// Get returns the snapshot for a URL. The boolean reports whether a snapshot
// exists; callers supply their own defaults on a miss.
func (s *Service) Get(ctx context.Context, rawURL string) (axewatch.ScanSnapshot, bool, error) {
	u := NormalizeURL(rawURL)

	value, err := s.kv.GetValue(ctx, keySnapshotPrefix+u)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return axewatch.ScanSnapshot{}, false, nil
		}
		return axewatch.ScanSnapshot{}, false, fmt.Errorf("fetch snapshot for %s: %w", u, err)
	}

	var snap axewatch.ScanSnapshot
	if err := json.Unmarshal([]byte(value), &snap); err != nil {
		return axewatch.ScanSnapshot{}, false, fmt.Errorf("unmarshal snapshot for %s: %w", u, err)
	}
	return snap, true, nil
}

// ClearOne deletes the snapshot for a URL, removes it from the scanned
// registry, and recomputes the aggregate.
func (s *Service) ClearOne(ctx context.Context, rawURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := NormalizeURL(rawURL)
	if err := s.kv.DeleteValue(ctx, keySnapshotPrefix+u); err != nil {
		return fmt.Errorf("delete snapshot for %s: %w", u, err)
	}
	if err := s.removeFromSet(ctx, keyScannedURLs, u); err != nil {
		return fmt.Errorf("deregister scanned URL %s: %w", u, err)
	}
	if _, err := s.recompute(ctx); err != nil {
		return fmt.Errorf("recompute aggregate after clearing %s: %w", u, err)
	}
	return nil
}

// ClearAll wipes every cache entry under the a11y: prefix: snapshots,
// registries, aggregate, and daily counts. The prefix acts as an explicit
// index over everything this service owns.
func (s *Service) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.kv.ListKeys(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("list cache keys: %w", err)
	}
	for _, k := range keys {
		if err := s.kv.DeleteValue(ctx, k); err != nil {
			return fmt.Errorf("clear cache key %s: %w", k, err)
		}
	}
	return nil
}

// RecordScanTrigger marks a URL as exposing a scan-initiation control,
// independent of whether it has been scanned.
func (s *Service) RecordScanTrigger(ctx context.Context, rawURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := NormalizeURL(rawURL)
	if err := s.addToSet(ctx, keyTriggerURLs, u); err != nil {
		return fmt.Errorf("register trigger URL %s: %w", u, err)
	}
	return nil
}
