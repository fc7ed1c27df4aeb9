package checker

import (
	"context"
	"errors"
	"fmt"

	"schedpush/lib/schedule"
	"schedpush/senders"
)

// ErrSourceUnavailable means the feed could not be fetched or came back
// empty. The baseline snapshot is left untouched in that case.
var ErrSourceUnavailable = errors.New("schedule source unavailable")

type Status string

const (
	StatusBootstrap      Status = "bootstrap"
	StatusNoChange       Status = "no_change"
	StatusChangeDetected Status = "change_detected"
	StatusFailed         Status = "failed"
)

type Result struct {
	Status      Status `json:"status"`
	ItemCount   int    `json:"itemCount"`
	Added       int    `json:"added"`
	Removed     int    `json:"removed"`
	Modified    int    `json:"modified"`
	Notified    int    `json:"notificationsSent"`
	Subscribers int    `json:"subscribersCount"`
}

// RunCheck executes one fetch-diff-notify-persist cycle. The new snapshot is
// committed only after notifications were attempted, so a crash mid-dispatch
// makes the next run recompute the same diff against the stale baseline and
// notify again: delivery is at-least-once.
func (c *Checker) RunCheck(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current, err := c.source.Fetch(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	} else if len(current) == 0 {
		err = fmt.Errorf("%w: feed returned no records", ErrSourceUnavailable)
	}
	if err != nil {
		c.alertFailure(ctx, err)
		return Result{Status: StatusFailed}, err
	}

	previous, err := c.store.Snapshot(ctx)
	if err != nil {
		return Result{Status: StatusFailed}, err
	}

	if previous == nil {
		// First ever check: store the baseline, nothing to compare against.
		if err := c.store.SaveSnapshot(ctx, current); err != nil {
			return Result{Status: StatusFailed}, err
		}
		c.store.TouchLastCheck(ctx)
		c.log.Sugar().Infof("No previous snapshot, stored %d records as baseline", len(current))
		return Result{Status: StatusBootstrap, ItemCount: len(current)}, nil
	}

	changes := schedule.Diff(previous, current)
	if changes.Empty() {
		c.store.TouchLastCheck(ctx)
		return Result{Status: StatusNoChange, ItemCount: len(current)}, nil
	}

	totals := senders.ChangeTotals{
		Added:    len(changes.Added),
		Removed:  len(changes.Removed),
		Modified: len(changes.Modified),
	}

	subs, err := c.store.AllSubscriptions(ctx)
	if err != nil {
		return Result{Status: StatusFailed}, err
	}

	notified := 0
	if len(changes.Added) > 0 {
		notified += c.Notify(ctx, changes.Added, CategoryAdded, totals)
	}
	if len(changes.Removed) > 0 {
		notified += c.Notify(ctx, changes.Removed, CategoryRemoved, totals)
	}
	if len(changes.Modified) > 0 {
		modified := make([]schedule.Record, 0, len(changes.Modified))
		for _, m := range changes.Modified {
			modified = append(modified, m.New)
		}
		notified += c.Notify(ctx, modified, CategoryModified, totals)
	}

	if err := c.store.AppendChangeLog(ctx, changes); err != nil {
		c.log.Sugar().Warnw("Failed to append changelog entry", "err", err)
	}
	c.broadcastSummary(ctx, totals)

	result := Result{
		Status:      StatusChangeDetected,
		ItemCount:   len(current),
		Added:       totals.Added,
		Removed:     totals.Removed,
		Modified:    totals.Modified,
		Notified:    notified,
		Subscribers: len(subs),
	}

	if err := c.store.SaveSnapshot(ctx, current); err != nil {
		result.Status = StatusFailed
		return result, err
	}
	c.store.TouchLastCheck(ctx)

	return result, nil
}

func (c *Checker) alertFailure(ctx context.Context, err error) {
	body := fmt.Sprintf("The schedule check could not complete:<br><pre>%v</pre>", err)
	if alertErr := c.alerter.Alert(ctx, "Schedule check failed", body); alertErr != nil {
		c.log.Sugar().Warnw("Failed to send ops alert", "err", alertErr)
	}
}

func (c *Checker) broadcastSummary(ctx context.Context, totals senders.ChangeTotals) {
	text := fmt.Sprintf("Расписание обновлено: добавлено %d, удалено %d, изменено %d",
		totals.Added, totals.Removed, totals.Modified)
	if err := c.broadcaster.Broadcast(ctx, text); err != nil {
		c.log.Sugar().Warnw("Failed to broadcast change summary", "err", err)
	}
}
