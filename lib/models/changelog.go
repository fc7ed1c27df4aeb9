package models

import "time"

// ChangeLogEntry records one detected change cycle for the changelog API.
type ChangeLogEntry struct {
	ID        string `gorm:"primaryKey"`
	Timestamp time.Time
	Added     int
	Removed   int
	Modified  int
	Details   string // JSON-encoded schedule.ChangeSet
}
