package models

import (
	"crypto/sha1"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"schedpush/lib/schedule"
)

// PushSubscription is one browser push registration. The endpoint URL is the
// natural primary key but too long to index comfortably, so rows are keyed by
// its digest; lookups always start from the full endpoint.
type PushSubscription struct {
	EndpointDigest string `gorm:"primaryKey"`
	Endpoint       string
	P256dhKey      string
	AuthKey        string
	Groups         string // JSON-encoded []string
	Teachers       string // JSON-encoded []string
	CreatedAt      time.Time
	LastNotified   sql.NullTime
}

type PushSubscriptions []PushSubscription

func DigestEndpoint(endpoint string) string {
	return fmt.Sprintf("%x", sha1.Sum([]byte(endpoint)))
}

func (s *PushSubscription) Filters() schedule.Filters {
	var f schedule.Filters
	json.Unmarshal([]byte(s.Groups), &f.Groups)
	json.Unmarshal([]byte(s.Teachers), &f.Teachers)
	return f
}

func (s *PushSubscription) SetFilters(f schedule.Filters) {
	s.Groups = marshalList(f.Groups)
	s.Teachers = marshalList(f.Teachers)
}

func marshalList(list []string) string {
	if list == nil {
		list = []string{}
	}
	b, _ := json.Marshal(list)
	return string(b)
}
