// Package stats resolves timeframe selectors into concrete query windows and
// assembles zero-filled chart series, summary counts, and top-issue rankings
// from the durable violation log.
package stats

import (
	"net/url"
	"strconv"
	"time"
)

// Granularity is the bucket width of a chart series.
type Granularity int

const (
	// GranularityHour buckets a single day into 24 hourly points.
	GranularityHour Granularity = iota
	// GranularityDay buckets a multi-day window into daily points.
	GranularityDay
)

// BucketStart returns the start of the bucket containing t.
func (g Granularity) BucketStart(t time.Time) time.Time {
	switch g {
	case GranularityHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// Next returns the start of the bucket after b.
func (g Granularity) Next(b time.Time) time.Time {
	if g == GranularityHour {
		return b.Add(time.Hour)
	}
	return b.AddDate(0, 0, 1)
}

// Timeframe is a parsed statistics-query selector: either a rolling
// last-N-days window or a custom day/week window.
type Timeframe struct {
	Days      int // last-N-days mode when > 0
	Custom    bool
	ViewBy    string // "day" or "week" in custom mode
	Date      string // custom day
	StartDate string // custom week
	EndDate   string // custom week
}

// ParseTimeframe reads the timeframe selector from statistics query
// parameters. It never fails; invalid selectors resolve to "no data" later.
func ParseTimeframe(q url.Values) Timeframe {
	tf := Timeframe{}
	raw := q.Get("timeframe")
	if raw == "custom" {
		tf.Custom = true
		tf.ViewBy = q.Get("view_by")
		tf.Date = q.Get("date")
		tf.StartDate = q.Get("start_date")
		tf.EndDate = q.Get("end_date")
		return tf
	}
	if days, err := strconv.Atoi(raw); err == nil && days > 0 {
		tf.Days = days
	}
	return tf
}

const calendarDay = "2006-01-02"

// maxWeekSpanDays caps custom week windows; longer spans are rejected here
// rather than trusted to the calling UI.
const maxWeekSpanDays = 7

// Resolve turns a timeframe selector into a concrete [start, end] window and
// bucket granularity. ok is false when the selector is incomplete or invalid,
// in which case the caller serves an empty report instead of an error.
func Resolve(tf Timeframe, now time.Time) (start, end time.Time, g Granularity, ok bool) {
	loc := now.Location()

	switch {
	case tf.Custom && tf.ViewBy == "day":
		day, err := time.ParseInLocation(calendarDay, tf.Date, loc)
		if err != nil {
			return start, end, g, false
		}
		return dayStart(day), dayEnd(day), GranularityHour, true

	case tf.Custom && tf.ViewBy == "week":
		first, err := time.ParseInLocation(calendarDay, tf.StartDate, loc)
		if err != nil {
			return start, end, g, false
		}
		last, err := time.ParseInLocation(calendarDay, tf.EndDate, loc)
		if err != nil {
			return start, end, g, false
		}
		if last.Before(first) || first.AddDate(0, 0, maxWeekSpanDays-1).Before(last) {
			return start, end, g, false
		}
		return dayStart(first), dayEnd(last), GranularityDay, true

	case !tf.Custom && tf.Days > 0:
		return dayStart(now.AddDate(0, 0, -tf.Days)), dayEnd(now), GranularityDay, true

	default:
		// Custom with an unrecognised view_by, or no usable selector.
		return start, end, g, false
	}
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func dayEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// Point is one chart point: bucket start in epoch milliseconds and the
// violation count in that bucket.
type Point struct {
	X int64 `json:"x"`
	Y int64 `json:"y"`
}

// ZeroFilledSeries groups timestamps (epoch seconds) into buckets and emits
// exactly one point per bucket in [start, end], zero-filling buckets the log
// has no rows for. The series cardinality depends only on the window, never
// on data presence.
func ZeroFilledSeries(start, end time.Time, g Granularity, timestamps []int64) []Point {
	counts := make(map[int64]int64, len(timestamps))
	for _, ts := range timestamps {
		b := g.BucketStart(time.Unix(ts, 0).In(start.Location()))
		counts[b.Unix()]++
	}

	points := []Point{}
	for b := g.BucketStart(start); !b.After(end); b = g.Next(b) {
		points = append(points, Point{X: b.UnixMilli(), Y: counts[b.Unix()]})
	}
	return points
}
