package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AxeWatch/go-api/axewatch/store"
)

const dayFormat = "2006-01-02"

// RecordScanEvent increments the daily scan counter for t's calendar day
// (server local time) and prunes buckets older than the retention window.
// One increment per scan submission, regardless of violation count.
func (s *Service) RecordScanEvent(ctx context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordScanEvent(ctx, t)
}

// DailyCounts returns the retained per-day scan event counters keyed by
// YYYY-MM-DD. This is a best-effort mirror; scan-activity charts read the
// durable log instead.
func (s *Service) DailyCounts(ctx context.Context) (map[string]int, error) {
	return s.loadDailyCounts(ctx)
}

// recordScanEvent must be called with s.mu held.
func (s *Service) recordScanEvent(ctx context.Context, t time.Time) error {
	counts, err := s.loadDailyCounts(ctx)
	if err != nil {
		return err
	}

	counts[t.Format(dayFormat)]++

	cutoff := t.AddDate(0, 0, -dailyRetentionDays).Format(dayFormat)
	for day := range counts {
		if day < cutoff {
			delete(counts, day)
		}
	}

	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal daily scan counts: %w", err)
	}
	return s.kv.SetValue(ctx, keyDailyCounts, string(data))
}

func (s *Service) loadDailyCounts(ctx context.Context) (map[string]int, error) {
	value, err := s.kv.GetValue(ctx, keyDailyCounts)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return map[string]int{}, nil
		}
		return nil, fmt.Errorf("fetch daily scan counts: %w", err)
	}

	counts := map[string]int{}
	if err := json.Unmarshal([]byte(value), &counts); err != nil {
		return nil, fmt.Errorf("unmarshal daily scan counts: %w", err)
	}
	return counts, nil
}
