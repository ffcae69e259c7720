// Package history is the system of record for violation time-series queries:
// an append-only log in the relational store, one row per violation per scan.
// The snapshot cache is a read-optimized mirror of the latest scan only;
// everything historical reads from here.
package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/AxeWatch/go-api/axewatch"
	"github.com/AxeWatch/go-api/axewatch/postgres/models"
)

// IssueCount is one row of the top-issues ranking.
type IssueCount struct {
	Description string `json:"description"`
	IssueCount  int64  `json:"issue_count" gorm:"column:issue_count"`
}

// Repository wraps the violation_events table.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository on the given connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// RecordScan replaces the logged rows for a URL with the violations of a new
// scan. Delete-and-reinsert runs in one transaction so readers never see a
// half-replaced scan.
func (r *Repository) RecordScan(url string, sub axewatch.ScanSubmission, ts time.Time) error {
	scanID := uuid.NewString()

	rows := make([]models.ViolationEvent, 0, len(sub.Violations))
	for _, raw := range sub.Violations {
		nodes, err := json.Marshal(raw.Nodes)
		if err != nil {
			return fmt.Errorf("serialize node data for rule %s: %w", raw.ID, err)
		}
		rows = append(rows, models.ViolationEvent{
			ScanID:      scanID,
			ScannedURL:  url,
			RuleID:      raw.ID,
			Impact:      string(axewatch.ParseImpact(raw.Impact)),
			Description: raw.Description,
			HelpText:    raw.Help,
			HelpURL:     raw.HelpURL,
			Nodes:       string(nodes),
			NodeCount:   len(raw.Nodes),
			Timestamp:   ts.Unix(),
		})
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("scanned_url = ?", url).Delete(&models.ViolationEvent{}).Error; err != nil {
			return fmt.Errorf("delete previous rows for %s: %w", url, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert %d rows for %s: %w", len(rows), url, err)
		}
		return nil
	})
}

// TimestampsInRange returns the scan timestamp of every logged violation in
// [start, end]. Bucket grouping happens in Go so the query stays portable
// between postgres and sqlite.
func (r *Repository) TimestampsInRange(start, end time.Time) ([]int64, error) {
	var timestamps []int64
	err := r.db.Model(&models.ViolationEvent{}).
		Where("timestamp BETWEEN ? AND ?", start.Unix(), end.Unix()).
		Pluck("timestamp", &timestamps).Error
	if err != nil {
		return nil, fmt.Errorf("query violation timestamps: %w", err)
	}
	return timestamps, nil
}

// CountInRange returns the total number of logged violations in [start, end].
func (r *Repository) CountInRange(start, end time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.ViolationEvent{}).
		Where("timestamp BETWEEN ? AND ?", start.Unix(), end.Unix()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count violations in range: %w", err)
	}
	return count, nil
}

// HighPriorityInRange counts critical and serious violations in [start, end].
func (r *Repository) HighPriorityInRange(start, end time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.ViolationEvent{}).
		Where("timestamp BETWEEN ? AND ?", start.Unix(), end.Unix()).
		Where("impact IN ?", []string{string(axewatch.ImpactCritical), string(axewatch.ImpactSerious)}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count high-priority violations in range: %w", err)
	}
	return count, nil
}

// DistinctURLsInRange counts the distinct scanned URLs in [start, end].
func (r *Repository) DistinctURLsInRange(start, end time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.ViolationEvent{}).
		Where("timestamp BETWEEN ? AND ?", start.Unix(), end.Unix()).
		Distinct("scanned_url").
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count distinct URLs in range: %w", err)
	}
	return count, nil
}

// TopDescriptionsInRange groups logged violations by description and returns
// the most frequent ones, descending.
func (r *Repository) TopDescriptionsInRange(start, end time.Time, limit int) ([]IssueCount, error) {
	var results []IssueCount
	err := r.db.Model(&models.ViolationEvent{}).
		Select("description, COUNT(*) AS issue_count").
		Where("timestamp BETWEEN ? AND ?", start.Unix(), end.Unix()).
		Group("description").
		Order("issue_count DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("query top issues: %w", err)
	}
	return results, nil
}

// ScansPerDay counts distinct scan events per calendar day in [start, end],
// keyed by YYYY-MM-DD. Every row of one scan shares the scan's timestamp, so
// COUNT(DISTINCT timestamp) is the number of scan events that day.
func (r *Repository) ScansPerDay(start, end time.Time) (map[string]int64, error) {
	type dayCount struct {
		Day   string `gorm:"column:day"`
		Scans int64  `gorm:"column:scans"`
	}

	query := `
		SELECT to_char(to_timestamp(timestamp), 'YYYY-MM-DD') AS day,
		       COUNT(DISTINCT timestamp) AS scans
		FROM violation_events
		WHERE timestamp BETWEEN ? AND ? AND deleted_at IS NULL
		GROUP BY day
	`
	if r.db.Dialector.Name() == "sqlite" {
		query = `
			SELECT strftime('%Y-%m-%d', timestamp, 'unixepoch') AS day,
			       COUNT(DISTINCT timestamp) AS scans
			FROM violation_events
			WHERE timestamp BETWEEN ? AND ? AND deleted_at IS NULL
			GROUP BY day
		`
	}

	var rows []dayCount
	if err := r.db.Raw(query, start.Unix(), end.Unix()).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query scans per day: %w", err)
	}

	perDay := make(map[string]int64, len(rows))
	for _, row := range rows {
		perDay[row.Day] = row.Scans
	}
	return perDay, nil
}
