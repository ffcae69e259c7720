// Package scan converts raw scanner payloads into their canonical stored
// shapes and folds them into per-impact counters.
package scan

import (
	"time"

	"github.com/AxeWatch/go-api/axewatch"
)

// NormalizeViolation converts a raw scanner violation into its stored form.
// The parsed impact drives counting; the raw impact string is preserved on
// the record when it did not match a known bucket.
func NormalizeViolation(raw axewatch.RawViolation) axewatch.ViolationRecord {
	impact := axewatch.ParseImpact(raw.Impact)
	rec := axewatch.ViolationRecord{
		RuleID:      raw.ID,
		Impact:      impact,
		Description: raw.Description,
		HelpText:    raw.Help,
		HelpURL:     raw.HelpURL,
		Tags:        raw.Tags,
		NodeCount:   len(raw.Nodes),
	}
	if string(impact) != raw.Impact {
		rec.RawImpact = raw.Impact
	}
	return rec
}

// BuildSnapshot folds a submission into the snapshot stored for the given
// normalized URL. The submission timestamp is honoured when present,
// otherwise now is used.
func BuildSnapshot(normalizedURL string, sub axewatch.ScanSubmission, now time.Time) axewatch.ScanSnapshot {
	ts := sub.Timestamp
	if ts == 0 {
		ts = now.Unix()
	}

	snap := axewatch.ScanSnapshot{
		URL:        normalizedURL,
		ScannedAt:  ts,
		Violations: make([]axewatch.ViolationRecord, 0, len(sub.Violations)),
	}
	for _, raw := range sub.Violations {
		rec := NormalizeViolation(raw)
		snap.Violations = append(snap.Violations, rec)
		snap.Counts.Add(rec.Impact)
	}
	return snap
}
