package stats

import (
	"fmt"
	"time"

	"github.com/AxeWatch/go-api/axewatch/history"
)

// Source is the durable-log query surface the engine needs. In production it
// is the history repository; tests supply a fake.
type Source interface {
	TimestampsInRange(start, end time.Time) ([]int64, error)
	CountInRange(start, end time.Time) (int64, error)
	HighPriorityInRange(start, end time.Time) (int64, error)
	DistinctURLsInRange(start, end time.Time) (int64, error)
	TopDescriptionsInRange(start, end time.Time, limit int) ([]history.IssueCount, error)
	ScansPerDay(start, end time.Time) (map[string]int64, error)
}

// topIssueLimit is the length of the top-issues ranking.
const topIssueLimit = 5

// scanActivityDays is the trailing window of the scan-activity series.
const scanActivityDays = 7

// Summary holds the headline counts for a statistics window.
type Summary struct {
	TotalViolations int64 `json:"total_violations"`
	HighPriority    int64 `json:"high_priority"`
	UniqueURLs      int64 `json:"unique_urls"`
}

// Chart wraps the zero-filled series for the charting frontend.
type Chart struct {
	Data []Point `json:"data"`
}

// Report is a complete statistics payload for one timeframe.
type Report struct {
	Summary   Summary              `json:"summary"`
	Chart     Chart                `json:"chart"`
	TopIssues []history.IssueCount `json:"top_issues"`
}

// DayPoint is one day of the scan-activity series.
type DayPoint struct {
	Date  string `json:"date"`
	Scans int64  `json:"scans"`
}

// Engine assembles statistics reports from a durable-log source.
type Engine struct {
	src Source
}

// NewEngine creates a statistics engine over the given source.
func NewEngine(src Source) *Engine {
	return &Engine{src: src}
}

// emptyReport is the "no data" payload served for incomplete or invalid
// timeframe selectors. Well-formed so the UI always renders.
func emptyReport() Report {
	return Report{
		Chart:     Chart{Data: []Point{}},
		TopIssues: []history.IssueCount{},
	}
}

// Report builds the statistics payload for a timeframe: summary counts, a
// gap-free chart series, and the top-issues ranking. Invalid selectors
// produce the empty payload, not an error.
func (e *Engine) Report(tf Timeframe, now time.Time) (Report, error) {
	start, end, granularity, ok := Resolve(tf, now)
	if !ok {
		return emptyReport(), nil
	}

	timestamps, err := e.src.TimestampsInRange(start, end)
	if err != nil {
		return emptyReport(), fmt.Errorf("load chart rows: %w", err)
	}

	total, err := e.src.CountInRange(start, end)
	if err != nil {
		return emptyReport(), fmt.Errorf("count violations: %w", err)
	}
	high, err := e.src.HighPriorityInRange(start, end)
	if err != nil {
		return emptyReport(), fmt.Errorf("count high-priority violations: %w", err)
	}
	urls, err := e.src.DistinctURLsInRange(start, end)
	if err != nil {
		return emptyReport(), fmt.Errorf("count distinct URLs: %w", err)
	}

	topIssues, err := e.src.TopDescriptionsInRange(start, end, topIssueLimit)
	if err != nil {
		return emptyReport(), fmt.Errorf("rank top issues: %w", err)
	}
	if topIssues == nil {
		topIssues = []history.IssueCount{}
	}

	return Report{
		Summary: Summary{
			TotalViolations: total,
			HighPriority:    high,
			UniqueURLs:      urls,
		},
		Chart:     Chart{Data: ZeroFilledSeries(start, end, granularity, timestamps)},
		TopIssues: topIssues,
	}, nil
}

// ScanActivity returns a zero-filled scans-per-day series for the trailing
// week, read from the durable log. The cache-layer daily counter is only a
// best-effort mirror and is deliberately bypassed here.
func (e *Engine) ScanActivity(now time.Time) ([]DayPoint, error) {
	end := dayEnd(now)
	start := dayStart(now.AddDate(0, 0, -(scanActivityDays - 1)))

	perDay, err := e.src.ScansPerDay(start, end)
	if err != nil {
		return nil, fmt.Errorf("load scans per day: %w", err)
	}

	series := make([]DayPoint, 0, scanActivityDays)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		day := d.Format(calendarDay)
		series = append(series, DayPoint{Date: day, Scans: perDay[day]})
	}
	return series, nil
}
