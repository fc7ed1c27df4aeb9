package lib

import (
	"context"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"schedpush/config"
	"schedpush/lib/checker"
	"schedpush/lib/models"
	"schedpush/lib/schedule"
	"schedpush/lib/source"
	"schedpush/lib/store"
)

// ErrInvalidSubscription rejects subscribe/unsubscribe input that is missing
// the endpoint or the credential pair. Invalid input never reaches the store.
var ErrInvalidSubscription = errors.New("subscription must include endpoint and keys")

const (
	scheduleCacheKey = "schedule"
	scheduleCacheTTL = 5 * time.Minute
)

// Service is the facade the HTTP controller talks to.
type Service struct {
	cfg     *config.Config
	log     *zap.Logger
	store   *store.Store
	source  source.Source
	checker *checker.Checker
	cache   *gocache.Cache
}

func NewService(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, store *store.Store, src source.Source, checker *checker.Checker) *Service {
	return &Service{
		cfg, log, store, src, checker,
		gocache.New(scheduleCacheTTL, 2*scheduleCacheTTL),
	}
}

func (svc *Service) Subscribe(ctx context.Context, endpoint, p256dh, auth string, filters schedule.Filters) error {
	if endpoint == "" || p256dh == "" || auth == "" {
		return ErrInvalidSubscription
	}
	return svc.store.SaveSubscription(ctx, endpoint, p256dh, auth, filters)
}

func (svc *Service) Unsubscribe(ctx context.Context, endpoint string) error {
	if endpoint == "" {
		return ErrInvalidSubscription
	}
	return svc.store.RemoveSubscription(ctx, endpoint)
}

func (svc *Service) Subscriptions(ctx context.Context) (models.PushSubscriptions, error) {
	return svc.store.AllSubscriptions(ctx)
}

func (svc *Service) RunCheck(ctx context.Context) (checker.Result, error) {
	return svc.checker.RunCheck(ctx)
}

// CurrentSchedule serves the fetched feed behind a short cache so page loads
// don't hammer the spreadsheet export.
func (svc *Service) CurrentSchedule(ctx context.Context) ([]schedule.Record, error) {
	if cached, ok := svc.cache.Get(scheduleCacheKey); ok {
		return cached.([]schedule.Record), nil
	}

	records, err := svc.source.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	svc.cache.Set(scheduleCacheKey, records, gocache.DefaultExpiration)
	return records, nil
}

func (svc *Service) RecentChanges(ctx context.Context, limit int) ([]models.ChangeLogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return svc.store.RecentChangeLog(ctx, limit)
}

func (svc *Service) VAPIDPublicKey() string {
	return svc.cfg.VAPID.PublicKey
}
