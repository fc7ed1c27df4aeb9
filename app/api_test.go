package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"schedpush/config"
	"schedpush/lib"
	"schedpush/lib/checker"
	"schedpush/lib/models"
	"schedpush/lib/schedule"
	"schedpush/lib/store"
	"schedpush/senders"
)

type stubSource struct {
	records []schedule.Record
}

func (s stubSource) Fetch(ctx context.Context) ([]schedule.Record, error) {
	return s.records, nil
}

type stubSender struct{}

func (stubSender) Send(ctx context.Context, sub *models.PushSubscription, payload senders.Payload) error {
	return nil
}

func newTestHandler(t *testing.T, records []schedule.Record) (http.Handler, *store.Store) {
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

	lc := fxtest.NewLifecycle(t)
	log := zap.NewNop()
	cfg := &config.Config{}
	st := store.NewStore(lc, db, log)
	src := stubSource{records: records}
	reg := senders.Registry{"webpush": stubSender{}}

	ck := checker.NewChecker(lc, cfg, log, st, src, reg, senders.NopAlerter{}, senders.NopBroadcaster{})
	svc := lib.NewService(lc, cfg, log, st, src, ck)

	return router(cfg, log, svc), st
}

func TestHealth(t *testing.T) {
	handler, _ := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestSubscribeEndpoint(t *testing.T) {
	handler, st := newTestHandler(t, nil)

	body := `{
		"subscription": {
			"endpoint": "https://push.example.org/sub/abc",
			"keys": {"p256dh": "pkey", "auth": "akey"}
		},
		"filters": {"groups": ["G1"], "teachers": []}
	}`

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/push/subscribe", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	subs, err := st.AllSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://push.example.org/sub/abc", subs[0].Endpoint)
	assert.Equal(t, []string{"G1"}, subs[0].Filters().Groups)
}

func TestSubscribeEndpoint_Rejections(t *testing.T) {
	handler, _ := newTestHandler(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing endpoint", `{"subscription": {"keys": {"p256dh": "p", "auth": "a"}}}`},
		{"missing keys", `{"subscription": {"endpoint": "https://push.example.org/sub/abc"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/push/subscribe", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUnsubscribeEndpoint(t *testing.T) {
	handler, st := newTestHandler(t, nil)

	endpoint := "https://push.example.org/sub/abc"
	require.NoError(t, st.SaveSubscription(context.Background(), endpoint, "p", "a", schedule.Filters{}))

	body := fmt.Sprintf(`{"endpoint": %q}`, endpoint)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/push/subscribe", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	subs, err := st.AllSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestVAPIDKeyEndpoint(t *testing.T) {
	handler, _ := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/push/vapid-key", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp, "public_key")
}

func TestCheckEndpoint_Bootstrap(t *testing.T) {
	records := []schedule.Record{
		{ID: "1", Group: "G1", Date: "01.09.2025", Time: "08.30 - 10.00", Subject: "Math", Teacher: "Ivanov"},
	}
	handler, _ := newTestHandler(t, records)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/push/check", nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result checker.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, checker.StatusBootstrap, result.Status)
	assert.Equal(t, 1, result.ItemCount)
}

func TestScheduleEndpoint(t *testing.T) {
	records := []schedule.Record{
		{ID: "1", Group: "G1", Date: "01.09.2025", Time: "08.30 - 10.00", Subject: "Math", Teacher: "Ivanov"},
	}
	handler, _ := newTestHandler(t, records)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got []schedule.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, records, got)
}

func TestChangelogEndpoint(t *testing.T) {
	handler, st := newTestHandler(t, nil)

	changes := schedule.ChangeSet{
		Added: []schedule.Record{{ID: "1", Group: "G1", Subject: "Math"}},
	}
	require.NoError(t, st.AppendChangeLog(context.Background(), changes))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/changelog", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var views []ChangeLogView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, 1, views[0].Added)
	require.Len(t, views[0].Changes.Added, 1)
	assert.Equal(t, "Math", views[0].Changes.Added[0].Subject)
}

func TestSubscriptionsEndpoint_HidesKeys(t *testing.T) {
	handler, st := newTestHandler(t, nil)

	require.NoError(t, st.SaveSubscription(context.Background(),
		"https://push.example.org/sub/abc", "secret-p256dh", "secret-auth",
		schedule.Filters{Groups: []string{"G1"}}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/push/subscriptions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-p256dh")
	assert.NotContains(t, rec.Body.String(), "secret-auth")

	var views []SubscriptionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 1)
	assert.Equal(t, []string{"G1"}, views[0].Filters.Groups)
}
