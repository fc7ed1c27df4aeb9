// Package store persists subscriptions, the schedule baseline and check
// bookkeeping in sqlite.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"schedpush/lib/models"
	"schedpush/lib/schedule"
)

type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewStore(lc fx.Lifecycle, db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db, log}
}

// SaveSubscription upserts a registration keyed by the endpoint digest.
// Re-subscribing an existing endpoint rewrites the whole row, CreatedAt
// included.
func (s *Store) SaveSubscription(ctx context.Context, endpoint, p256dh, auth string, filters schedule.Filters) error {
	sub := models.PushSubscription{
		EndpointDigest: models.DigestEndpoint(endpoint),
		Endpoint:       endpoint,
		P256dhKey:      p256dh,
		AuthKey:        auth,
		CreatedAt:      time.Now().UTC(),
	}
	sub.SetFilters(filters)

	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&sub)
	return tx.Error
}

// RemoveSubscription deletes the registration for an endpoint. Deleting an
// unknown endpoint is not an error.
func (s *Store) RemoveSubscription(ctx context.Context, endpoint string) error {
	tx := s.db.WithContext(ctx).
		Delete(&models.PushSubscription{}, "endpoint_digest = ?", models.DigestEndpoint(endpoint))
	return tx.Error
}

func (s *Store) AllSubscriptions(ctx context.Context) (models.PushSubscriptions, error) {
	var subs models.PushSubscriptions
	tx := s.db.WithContext(ctx).Find(&subs)
	return subs, tx.Error
}

func (s *Store) MarkNotified(ctx context.Context, endpointDigest string, at time.Time) error {
	tx := s.db.WithContext(ctx).
		Model(&models.PushSubscription{}).
		Where("endpoint_digest = ?", endpointDigest).
		Update("last_notified", at)
	return tx.Error
}

// SaveSnapshot overwrites the single baseline slot with the given records.
func (s *Store) SaveSnapshot(ctx context.Context, records []schedule.Record) error {
	payload, err := json.Marshal(records)
	if err != nil {
		return err
	}

	snap := models.ScheduleSnapshot{
		Slot:      models.SnapshotSlot,
		Timestamp: time.Now().UTC(),
		Records:   string(payload),
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&snap)
	return tx.Error
}

// Snapshot returns the persisted baseline, or a nil slice when no check has
// ever completed.
func (s *Store) Snapshot(ctx context.Context) ([]schedule.Record, error) {
	var snap models.ScheduleSnapshot
	tx := s.db.WithContext(ctx).Where("slot = ?", models.SnapshotSlot).First(&snap)
	if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if tx.Error != nil {
		return nil, tx.Error
	}

	var records []schedule.Record
	if err := json.Unmarshal([]byte(snap.Records), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// TouchLastCheck records when the latest check ran. Best-effort.
func (s *Store) TouchLastCheck(ctx context.Context) {
	cp := models.Checkpoint{
		Name:      models.CheckpointLastCheck,
		Timestamp: time.Now().UTC(),
	}
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&cp)
	if tx.Error != nil {
		s.log.Sugar().Warnw("Failed to record last check", "err", tx.Error)
	}
}

func (s *Store) AppendChangeLog(ctx context.Context, changes schedule.ChangeSet) error {
	details, err := json.Marshal(changes)
	if err != nil {
		return err
	}

	entry := models.ChangeLogEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Added:     len(changes.Added),
		Removed:   len(changes.Removed),
		Modified:  len(changes.Modified),
		Details:   string(details),
	}
	tx := s.db.WithContext(ctx).Create(&entry)
	return tx.Error
}

func (s *Store) RecentChangeLog(ctx context.Context, limit int) ([]models.ChangeLogEntry, error) {
	var entries []models.ChangeLogEntry
	tx := s.db.WithContext(ctx).Order("timestamp desc").Limit(limit).Find(&entries)
	return entries, tx.Error
}
