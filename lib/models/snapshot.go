package models

import (
	"crypto/sha1"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SnapshotSlot is the single row holding the last known schedule. There is
// exactly one baseline per deployment, not one per subscriber.
const SnapshotSlot = "current"

// ScheduleSnapshot persists the full schedule observed at the end of the most
// recent successful check, serialized as a JSON array of records.
type ScheduleSnapshot struct {
	Slot      string `gorm:"primaryKey"`
	Timestamp time.Time
	Records   string
	Digest    string
}

func (s *ScheduleSnapshot) BeforeSave(tx *gorm.DB) error {
	s.Digest = DigestContent(s.Records)
	return nil
}

func DigestContent(content string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(content)))
}
