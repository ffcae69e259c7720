package axewatch

import "encoding/json"

// Impact classifies the severity of a single accessibility violation.
type Impact string

const (
	ImpactCritical Impact = "critical"
	ImpactSerious  Impact = "serious"
	ImpactModerate Impact = "moderate"
	ImpactMinor    Impact = "minor"
)

// ParseImpact maps a raw scanner impact string onto one of the four known
// buckets. Unrecognised or missing impacts count as minor so that
// unclassified violations stay visible in the totals rather than being
// silently dropped.
func ParseImpact(raw string) Impact {
	switch Impact(raw) {
	case ImpactCritical, ImpactSerious, ImpactModerate, ImpactMinor:
		return Impact(raw)
	default:
		return ImpactMinor
	}
}

// ViolationRecord is one detected rule failure for one scan of one URL.
// Immutable once produced; owned by the ScanSnapshot that contains it.
type ViolationRecord struct {
	RuleID      string   `json:"id"`
	Impact      Impact   `json:"impact"`
	RawImpact   string   `json:"raw_impact,omitempty"`
	Description string   `json:"description"`
	HelpText    string   `json:"help"`
	HelpURL     string   `json:"help_url"`
	Tags        []string `json:"tags,omitempty"`
	NodeCount   int      `json:"node_count"`
}

// ViolationCounts holds per-impact violation totals.
// Total always equals Critical+Serious+Moderate+Minor.
type ViolationCounts struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Serious  int `json:"serious"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`
}

// Add folds one violation of the given impact into the counts.
func (c *ViolationCounts) Add(impact Impact) {
	c.Total++
	switch impact {
	case ImpactCritical:
		c.Critical++
	case ImpactSerious:
		c.Serious++
	case ImpactModerate:
		c.Moderate++
	default:
		c.Minor++
	}
}

// Merge folds another set of counts into this one.
func (c *ViolationCounts) Merge(o ViolationCounts) {
	c.Total += o.Total
	c.Critical += o.Critical
	c.Serious += o.Serious
	c.Moderate += o.Moderate
	c.Minor += o.Minor
}

// ScanSnapshot is the cached scan state for exactly one normalized URL.
// It is replaced wholesale on every new scan of that URL.
type ScanSnapshot struct {
	URL        string            `json:"url"`
	ScannedAt  int64             `json:"scanned_at"` // epoch seconds
	Violations []ViolationRecord `json:"violations"`
	Counts     ViolationCounts   `json:"counts"`
}

// AggregatedStats is the fold over all currently cached snapshots.
// It is recomputed on every cache write and clear, never patched.
type AggregatedStats struct {
	UniqueURLs int                        `json:"unique_urls_scanned"`
	Counts     ViolationCounts            `json:"counts"`
	ByURL      map[string]ViolationCounts `json:"by_url"`
}

// RawViolation is the wire shape of one violation as reported by the
// browser-side scanner.
type RawViolation struct {
	ID          string            `json:"id"`
	Impact      string            `json:"impact"`
	Description string            `json:"description"`
	Help        string            `json:"help"`
	HelpURL     string            `json:"helpUrl"`
	Tags        []string          `json:"tags"`
	Nodes       []json.RawMessage `json:"nodes"`
}

// ScanSubmission is the wire shape of one scan result for one page visit.
type ScanSubmission struct {
	URL        string         `json:"url"`
	Violations []RawViolation `json:"violations"`
	Timestamp  int64          `json:"timestamp,omitempty"` // epoch seconds, optional
}
