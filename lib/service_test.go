package lib

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"schedpush/config"
	"schedpush/lib/models"
	"schedpush/lib/schedule"
	"schedpush/lib/store"
)

type countingSource struct {
	records []schedule.Record
	calls   int
}

func (s *countingSource) Fetch(ctx context.Context) ([]schedule.Record, error) {
	s.calls++
	return s.records, nil
}

func newTestService(t *testing.T, src *countingSource) *Service {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.PushSubscription{},
		&models.ScheduleSnapshot{},
		&models.Checkpoint{},
		&models.ChangeLogEntry{},
	))

	st := store.NewStore(nil, db, zap.NewNop())
	return NewService(nil, &config.Config{}, zap.NewNop(), st, src, nil)
}

func TestSubscribe_RejectsMalformedInput(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &countingSource{})

	tests := []struct {
		name                   string
		endpoint, p256dh, auth string
	}{
		{"missing endpoint", "", "p", "a"},
		{"missing p256dh", "https://push.example.org/sub/x", "", "a"},
		{"missing auth", "https://push.example.org/sub/x", "p", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Subscribe(ctx, tt.endpoint, tt.p256dh, tt.auth, schedule.Filters{})
			assert.ErrorIs(t, err, ErrInvalidSubscription)
		})
	}

	subs, err := svc.Subscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs, "malformed input must never reach the store")
}

func TestSubscribeUnsubscribe(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &countingSource{})

	endpoint := "https://push.example.org/sub/x"
	require.NoError(t, svc.Subscribe(ctx, endpoint, "p", "a", schedule.Filters{Groups: []string{"G1"}}))

	subs, err := svc.Subscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	require.NoError(t, svc.Unsubscribe(ctx, endpoint))

	subs, err = svc.Subscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)

	assert.ErrorIs(t, svc.Unsubscribe(ctx, ""), ErrInvalidSubscription)
}

func TestCurrentSchedule_Cached(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{records: []schedule.Record{{ID: "1", Group: "G1", Subject: "Math"}}}
	svc := newTestService(t, src)

	first, err := svc.CurrentSchedule(ctx)
	require.NoError(t, err)

	second, err := svc.CurrentSchedule(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.calls, "second read must come from cache")
}
