package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AxeWatch/go-api/axewatch"
	"github.com/AxeWatch/go-api/axewatch/store"
)

// Recompute rebuilds the aggregate from scratch by folding every scanned
// URL's snapshot counts, and caches the result. The aggregate is never
// patched incrementally, so it always equals the fold over current snapshots.
func (s *Service) Recompute(ctx context.Context) (axewatch.AggregatedStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recompute(ctx)
}

// Stats returns the last computed aggregate, computing it on demand when
// none is cached yet.
func (s *Service) Stats(ctx context.Context) (axewatch.AggregatedStats, error) {
	value, err := s.kv.GetValue(ctx, keyAggregate)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return s.Recompute(ctx)
		}
		return axewatch.AggregatedStats{}, fmt.Errorf("fetch aggregate stats: %w", err)
	}

	var stats axewatch.AggregatedStats
	if err := json.Unmarshal([]byte(value), &stats); err != nil {
		return axewatch.AggregatedStats{}, fmt.Errorf("unmarshal aggregate stats: %w", err)
	}
	return stats, nil
}

// recompute must be called with s.mu held.
func (s *Service) recompute(ctx context.Context) (axewatch.AggregatedStats, error) {
	urls, err := s.loadSet(ctx, keyScannedURLs)
	if err != nil {
		return axewatch.AggregatedStats{}, err
	}

	stats := axewatch.AggregatedStats{
		ByURL: make(map[string]axewatch.ViolationCounts, len(urls)),
	}
	for _, u := range urls {
		value, err := s.kv.GetValue(ctx, keySnapshotPrefix+u)
		if err != nil {
			// Registry and store can transiently disagree; a missing
			// snapshot is excluded, not a failure.
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return axewatch.AggregatedStats{}, fmt.Errorf("fetch snapshot for %s: %w", u, err)
		}

		var snap axewatch.ScanSnapshot
		if err := json.Unmarshal([]byte(value), &snap); err != nil {
			slog.Warn("Skipping undecodable snapshot during aggregation", "url", u, "error", err)
			continue
		}

		stats.UniqueURLs++
		stats.Counts.Merge(snap.Counts)
		stats.ByURL[u] = snap.Counts
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return stats, fmt.Errorf("marshal aggregate stats: %w", err)
	}
	if err := s.kv.SetValue(ctx, keyAggregate, string(data)); err != nil {
		return stats, fmt.Errorf("store aggregate stats: %w", err)
	}
	return stats, nil
}
