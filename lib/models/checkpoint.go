package models

import "time"

const CheckpointLastCheck = "last_check"

// Checkpoint is a named bookkeeping timestamp. Advisory only, never on the
// correctness path.
type Checkpoint struct {
	Name      string `gorm:"primaryKey"`
	Timestamp time.Time
}
