package models

import (
	"gorm.io/gorm"
)

// ViolationEvent is one row of the durable violation log: one violation of
// one rule for one scan of one URL. Rows are only inserted, and bulk
// deleted-and-reinserted when the same URL is rescanned.
type ViolationEvent struct {
	gorm.Model
	ScanID      string `gorm:"index"`
	ScannedURL  string `gorm:"index"`
	RuleID      string
	Impact      string `gorm:"index"`
	Description string
	HelpText    string
	HelpURL     string
	// Nodes holds the scanner's affected-node data, serialized as JSON.
	Nodes     string
	NodeCount int
	// Timestamp is the scan time in epoch seconds. All rows of one scan
	// share the same value, which is what makes COUNT(DISTINCT timestamp)
	// a scan-event count.
	Timestamp int64 `gorm:"index"`
}
