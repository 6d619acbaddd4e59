package tasks

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"

	"podmill/app/config"
	"podmill/app/database"
	"podmill/app/feed"
)

// SyncSubscriptionTask registers one subscription file as a show row,
// keyed by the normalized feed URL. Existing shows keep their catalog
// state; only the subscription-owned fields follow the file.
type SyncSubscriptionTask struct {
	Task
	Subscription *config.Subscription
	showRepo     database.ShowRepository
}

func NewSyncSubscriptionTask(sub *config.Subscription, showRepo database.ShowRepository) *SyncSubscriptionTask {
	return &SyncSubscriptionTask{
		Task:         NewTask(TaskTypeSyncSubscription, ""),
		Subscription: sub,
		showRepo:     showRepo,
	}
}

func (t *SyncSubscriptionTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	feedURL, err := feed.NormalizeFeedURL(t.Subscription.Feed.URL)
	if err != nil {
		slog.Error("Task failed", "type", "SyncSubscription", "subscription", t.Subscription.Name, "error", err)
		return fmt.Errorf("invalid subscription feed URL: %w", err)
	}

	titleHint := cmp.Or(t.Subscription.Feed.Title, t.Subscription.Name)
	showID, err := t.showRepo.UpsertShow(feedURL, titleHint, t.Subscription.Settings.PollInterval)
	if err != nil {
		slog.Error("Task failed", "type", "SyncSubscription", "subscription", t.Subscription.Name, "error", err)
		return fmt.Errorf("failed to sync subscription to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSubscription",
		"subscription", t.Subscription.Name,
		"show_id", showID,
		"duration", t.GetDuration())

	return nil
}
