package app

import (
	"database/sql"
	"encoding/json"
	"time"

	"schedpush/lib/models"
	"schedpush/lib/schedule"
)

// SubscriptionView exposes a registration without its credential pair.
type SubscriptionView struct {
	Endpoint     string           `json:"endpoint"`
	Filters      schedule.Filters `json:"filters"`
	CreatedAt    string           `json:"created_at"`
	LastNotified *string          `json:"last_notified"`
}

func (view SubscriptionView) From(entity models.PushSubscription) SubscriptionView {
	return SubscriptionView{
		Endpoint:     entity.Endpoint,
		Filters:      entity.Filters(),
		CreatedAt:    entity.CreatedAt.UTC().Format(time.RFC3339),
		LastNotified: isoformat(entity.LastNotified),
	}
}

type ChangeLogView struct {
	ID        string             `json:"id"`
	Timestamp string             `json:"timestamp"`
	Added     int                `json:"added"`
	Removed   int                `json:"removed"`
	Modified  int                `json:"modified"`
	Changes   schedule.ChangeSet `json:"changes"`
}

func (view ChangeLogView) From(entity models.ChangeLogEntry) ChangeLogView {
	var changes schedule.ChangeSet
	json.Unmarshal([]byte(entity.Details), &changes)

	return ChangeLogView{
		ID:        entity.ID,
		Timestamp: entity.Timestamp.UTC().Format(time.RFC3339),
		Added:     entity.Added,
		Removed:   entity.Removed,
		Modified:  entity.Modified,
		Changes:   changes,
	}
}

type Fromable[Entity any, Repr any] interface {
	From(Entity) Repr
}

func FromMany[U Fromable[T, U], T any](elems []T) []U {
	out := make([]U, len(elems))
	for i, t := range elems {
		var u U
		out[i] = u.From(t)
	}
	return out
}

func isoformat(t sql.NullTime) *string {
	if !t.Valid {
		return nil
	}
	s := t.Time.UTC().Format(time.RFC3339)
	return &s
}
