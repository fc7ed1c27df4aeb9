package checker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"schedpush/lib/schedule"
	"schedpush/senders"
)

type Category string

const (
	CategoryAdded    Category = "added"
	CategoryRemoved  Category = "removed"
	CategoryModified Category = "modified"
)

var categoryLabels = map[Category]string{
	CategoryAdded:    "Добавлено",
	CategoryRemoved:  "Удалено",
	CategoryModified: "Изменено",
}

// Notify fans the changed records out to every subscriber whose filters match
// at least one of them, and returns the number of successful deliveries.
// Subscribers are reloaded fresh per call to pick up concurrent subscribe and
// unsubscribe traffic. Failures are isolated per subscriber: a permanently
// dead endpoint unsubscribes itself, anything else is logged and left to the
// next cycle.
func (c *Checker) Notify(ctx context.Context, records []schedule.Record, category Category, totals senders.ChangeTotals) int {
	subs, err := c.store.AllSubscriptions(ctx)
	if err != nil {
		c.log.Sugar().Errorw("Failed to load subscriptions", "err", err)
		return 0
	}

	sender, ok := c.senders["webpush"]
	if !ok {
		c.log.Sugar().Error("No webpush sender registered")
		return 0
	}

	var (
		wg   sync.WaitGroup
		sem  = make(chan struct{}, sendConcurrency)
		mu   sync.Mutex
		sent int
	)

	for i := range subs {
		sub := &subs[i]

		relevant := relevantRecords(records, sub.Filters())
		if len(relevant) == 0 {
			continue
		}

		payload := senders.Payload{
			Title: "Расписание обновлено",
			Body:  formatBody(relevant, category),
			Icon:  "/favicon.png",
			Badge: "/favicon.png",
			Tag:   "schedule-update",
			Data:  &senders.PayloadData{URL: "/", Changes: &totals},
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			err := sender.Send(ctx, sub, payload)
			switch {
			case err == nil:
				if err := c.store.MarkNotified(ctx, sub.EndpointDigest, time.Now().UTC()); err != nil {
					c.log.Sugar().Warnw("Failed to update last notified", "err", err)
				}
				mu.Lock()
				sent++
				mu.Unlock()

			case errors.Is(err, senders.ErrEndpointGone):
				c.log.Sugar().Infow("Removing expired subscription", "endpoint", sub.Endpoint)
				if err := c.store.RemoveSubscription(ctx, sub.Endpoint); err != nil {
					c.log.Sugar().Warnw("Failed to remove expired subscription", "err", err)
				}

			default:
				c.log.Sugar().Warnw("Push delivery failed", "endpoint", sub.Endpoint, "err", err)
			}
		}()
	}

	wg.Wait()
	return sent
}

func relevantRecords(records []schedule.Record, f schedule.Filters) []schedule.Record {
	var relevant []schedule.Record
	for _, r := range records {
		if schedule.Matches(r, f) {
			relevant = append(relevant, r)
		}
	}
	return relevant
}

// formatBody renders the notification text. One record is spelled out in
// full; several are summarized by distinct subject, capped at three, with the
// group appended when all records belong to the same one.
func formatBody(records []schedule.Record, category Category) string {
	label := categoryLabels[category]

	if len(records) == 1 {
		r := records[0]
		return fmt.Sprintf("%s: %s (%s, %s)", label, r.Subject, r.Date, r.Time)
	}

	var subjects []string
	seen := make(map[string]bool)
	for _, r := range records {
		if !seen[r.Subject] {
			seen[r.Subject] = true
			subjects = append(subjects, r.Subject)
		}
	}

	details := strings.Join(subjects[:min(3, len(subjects))], ", ")
	more := ""
	if len(subjects) > 3 {
		more = fmt.Sprintf(" и ещё %d", len(subjects)-3)
	}

	groups := make(map[string]bool)
	for _, r := range records {
		groups[r.Group] = true
	}
	groupSuffix := ""
	if len(groups) == 1 {
		groupSuffix = " для " + records[0].Group
	}

	return fmt.Sprintf("%s%s: %s%s", label, groupSuffix, details, more)
}
