// Package checker runs the periodic schedule check: fetch the feed, diff it
// against the persisted baseline and fan notifications out to subscribers.
package checker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"schedpush/config"
	"schedpush/lib/source"
	"schedpush/lib/store"
	"schedpush/senders"
)

const (
	runTimeout      = 60 * time.Second
	sendConcurrency = 10
)

func NewChecker(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, store *store.Store, src source.Source, reg senders.Registry, alerter senders.Alerter, broadcaster senders.Broadcaster) *Checker {
	checker := &Checker{
		cfg:         cfg,
		log:         log,
		store:       store,
		source:      src,
		senders:     reg,
		alerter:     alerter,
		broadcaster: broadcaster,
		interval:    cfg.CheckInterval,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go checker.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Sugar().Info("Trying to stop checker")
			checker.Stop()
			return nil
		},
	})

	return checker
}

type Checker struct {
	cfg         *config.Config
	log         *zap.Logger
	store       *store.Store
	source      source.Source
	senders     senders.Registry
	alerter     senders.Alerter
	broadcaster senders.Broadcaster

	mu       sync.Mutex
	cancel   context.CancelFunc
	interval time.Duration
}

func (c *Checker) tickerWithImmediateTick(interval time.Duration) *time.Ticker {
	withImmediateTick := make(chan time.Time, 1)

	ticker := time.NewTicker(interval)
	tickerC := ticker.C
	go func() {
		withImmediateTick <- time.Now()
		for t := range tickerC {
			withImmediateTick <- t
		}
	}()

	ticker.C = withImmediateTick
	return ticker
}

func (c *Checker) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	ticker := c.tickerWithImmediateTick(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Locking here to wait for an in-flight check to finish
			c.mu.Lock()

			c.log.Sugar().Info("Checker stopped")
			return

		case <-ticker.C:
			runCtx, cancelRun := context.WithTimeout(ctx, runTimeout)
			result, err := c.RunCheck(runCtx)
			cancelRun()

			if err != nil {
				c.log.Sugar().Errorw("Schedule check failed", "err", err)
				continue
			}
			c.log.Sugar().Infow("Schedule check completed",
				"status", result.Status,
				"items", result.ItemCount,
				"added", result.Added,
				"removed", result.Removed,
				"modified", result.Modified,
				"notified", result.Notified,
			)
		}
	}
}

func (c *Checker) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}
