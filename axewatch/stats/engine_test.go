package stats

import (
	"testing"
	"time"

	"github.com/AxeWatch/go-api/axewatch/history"
)

// fakeSource serves canned durable-log rows for engine tests.
type fakeSource struct {
	timestamps []int64
	urls       map[string]struct{}
	highCount  int64
	topIssues  []history.IssueCount
	scansByDay map[string]int64
}

func (f *fakeSource) inRange(start, end time.Time) []int64 {
	var out []int64
	for _, ts := range f.timestamps {
		if ts >= start.Unix() && ts <= end.Unix() {
			out = append(out, ts)
		}
	}
	return out
}

func (f *fakeSource) TimestampsInRange(start, end time.Time) ([]int64, error) {
	return f.inRange(start, end), nil
}

func (f *fakeSource) CountInRange(start, end time.Time) (int64, error) {
	return int64(len(f.inRange(start, end))), nil
}

func (f *fakeSource) HighPriorityInRange(start, end time.Time) (int64, error) {
	return f.highCount, nil
}

func (f *fakeSource) DistinctURLsInRange(start, end time.Time) (int64, error) {
	return int64(len(f.urls)), nil
}

func (f *fakeSource) TopDescriptionsInRange(start, end time.Time, limit int) ([]history.IssueCount, error) {
	if len(f.topIssues) > limit {
		return f.topIssues[:limit], nil
	}
	return f.topIssues, nil
}

func (f *fakeSource) ScansPerDay(start, end time.Time) (map[string]int64, error) {
	return f.scansByDay, nil
}

func TestReportCustomDay(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	src := &fakeSource{
		timestamps: []int64{
			day.Add(9 * time.Hour).Unix(),
			day.Add(9*time.Hour + 30*time.Minute).Unix(),
			day.Add(17 * time.Hour).Unix(),
			// Outside the requested day; must not appear.
			day.AddDate(0, 0, 1).Unix(),
		},
		urls:      map[string]struct{}{"https://x.test/a": {}, "https://x.test/b": {}},
		highCount: 2,
		topIssues: []history.IssueCount{{Description: "Images must have alternate text", IssueCount: 2}},
	}
	engine := NewEngine(src)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rep, err := engine.Report(Timeframe{Custom: true, ViewBy: "day", Date: "2024-05-01"}, now)
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if len(rep.Chart.Data) != 24 {
		t.Fatalf("chart has %d points, want 24", len(rep.Chart.Data))
	}
	var sum int64
	for _, p := range rep.Chart.Data {
		sum += p.Y
	}
	if sum != 3 {
		t.Errorf("chart sums to %d, want 3", sum)
	}
	if rep.Chart.Data[9].Y != 2 || rep.Chart.Data[17].Y != 1 {
		t.Errorf("expected 09:00 and 17:00 buckets to carry the rows, got %+v", rep.Chart.Data)
	}

	if rep.Summary.TotalViolations != 3 {
		t.Errorf("total = %d, want 3", rep.Summary.TotalViolations)
	}
	if rep.Summary.HighPriority != 2 {
		t.Errorf("high priority = %d, want 2", rep.Summary.HighPriority)
	}
	if rep.Summary.UniqueURLs != 2 {
		t.Errorf("unique URLs = %d, want 2", rep.Summary.UniqueURLs)
	}
	if len(rep.TopIssues) != 1 || rep.TopIssues[0].IssueCount != 2 {
		t.Errorf("top issues = %+v", rep.TopIssues)
	}
}

func TestReportInvalidSelectorIsEmptyNotError(t *testing.T) {
	engine := NewEngine(&fakeSource{timestamps: []int64{time.Now().Unix()}})

	rep, err := engine.Report(Timeframe{Custom: true, ViewBy: "fortnight"}, time.Now())
	if err != nil {
		t.Fatalf("invalid selector must not error: %v", err)
	}
	if rep.Summary.TotalViolations != 0 {
		t.Errorf("empty report has totals: %+v", rep.Summary)
	}
	if rep.Chart.Data == nil || len(rep.Chart.Data) != 0 {
		t.Errorf("empty report chart should be an empty, non-nil series: %#v", rep.Chart.Data)
	}
	if rep.TopIssues == nil {
		t.Error("empty report top issues should be non-nil")
	}
}

func TestScanActivityZeroFills(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	src := &fakeSource{
		scansByDay: map[string]int64{
			"2024-05-08": 2,
			"2024-05-10": 1,
		},
	}
	engine := NewEngine(src)

	series, err := engine.ScanActivity(now)
	if err != nil {
		t.Fatalf("ScanActivity failed: %v", err)
	}
	if len(series) != 7 {
		t.Fatalf("series has %d days, want 7", len(series))
	}

	if series[0].Date != "2024-05-04" || series[6].Date != "2024-05-10" {
		t.Errorf("series window = [%s, %s]", series[0].Date, series[6].Date)
	}
	var sum int64
	for _, d := range series {
		sum += d.Scans
	}
	if sum != 3 {
		t.Errorf("series sums to %d, want 3", sum)
	}
	if series[6].Scans != 1 {
		t.Errorf("today's scans = %d, want 1", series[6].Scans)
	}
}
