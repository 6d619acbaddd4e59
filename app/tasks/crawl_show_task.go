package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"podmill/app/database"
	"podmill/app/feed"
)

const storeTimeout = 30 * time.Second

// CrawlShowTask runs one show's crawl end-to-end: fetch, parse,
// reconcile, apply. It owns the failure accounting for the attempt; the
// scheduler guarantees at most one CrawlShowTask per show is in flight.
//
// MaxRetries is zero: retrying a failed crawl is the job of the
// persisted backoff schedule, not the in-process task queue.
type CrawlShowTask struct {
	Task
	Show        database.Show
	fetcher     *feed.Fetcher
	parser      *feed.Parser
	reconciler  *feed.Reconciler
	showRepo    database.ShowRepository
	episodeRepo database.EpisodeRepository
	store       database.CatalogStore
	opts        Options
}

func NewCrawlShowTask(show database.Show, fetcher *feed.Fetcher, parser *feed.Parser,
	reconciler *feed.Reconciler, showRepo database.ShowRepository,
	episodeRepo database.EpisodeRepository, store database.CatalogStore, opts Options) *CrawlShowTask {
	task := NewTask(TaskTypeCrawlShow, show.ID)
	task.MaxRetries = 0

	return &CrawlShowTask{
		Task:        task,
		Show:        show,
		fetcher:     fetcher,
		parser:      parser,
		reconciler:  reconciler,
		showRepo:    showRepo,
		episodeRepo: episodeRepo,
		store:       store,
		opts:        opts,
	}
}

func (t *CrawlShowTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	attemptID := uuid.NewString()

	result, err := t.fetcher.Run(ctx, t.Show.FeedURL, feed.CacheTokens{
		ETag:         t.Show.ETag,
		LastModified: t.Show.LastModified,
	})
	if err != nil {
		t.recordFailure(attemptID, err)
		return err
	}

	slog.Debug("Fetch attempt completed",
		"attempt", attemptID,
		"feed", t.Show.FeedURL,
		"status", string(result.Status),
		"http_status", result.HTTPStatus,
		"bytes", len(result.Body))

	if result.Status == feed.FetchNotModified {
		// The feed is reachable and unchanged: a success for failure
		// accounting, and the stored tokens stay valid.
		if err := t.showRepo.MarkCrawlSuccess(t.Show.ID, t.nextPollTime()); err != nil {
			return fmt.Errorf("failed to record crawl success: %w", err)
		}

		slog.Info("Task completed",
			"type", "CrawlShow",
			"feed", t.Show.FeedURL,
			"duration", t.GetDuration(),
			"result", "not_modified")
		return nil
	}

	doc, err := t.parser.Run(result.Body)
	if err != nil {
		// A malformed payload counts against the show but must never
		// touch previously ingested episodes.
		t.recordFailure(attemptID, err)
		return err
	}

	counts, err := t.reconcileAndApply(ctx, doc)
	if err != nil {
		t.recordFailure(attemptID, err)
		return err
	}

	// Tokens are persisted only once the payload has been fully applied.
	// Storing them earlier would let the next conditional fetch answer 304
	// for a payload that never made it into the catalog.
	if err := t.showRepo.UpdateCacheTokens(t.Show.ID, result.Tokens); err != nil {
		t.recordFailure(attemptID, err)
		return err
	}

	if err := t.showRepo.MarkCrawlSuccess(t.Show.ID, t.nextPollTime()); err != nil {
		return fmt.Errorf("failed to record crawl success: %w", err)
	}

	slog.Info("Task completed",
		"type", "CrawlShow",
		"feed", t.Show.FeedURL,
		"duration", t.GetDuration(),
		"episodes", len(doc.Episodes),
		"inserted", counts.Inserted,
		"updated", counts.Updated,
		"show_updated", counts.ShowUpdated)

	return nil
}

// reconcileAndApply diffs the parsed document against a fresh catalog
// snapshot and applies the plan transactionally. A uniqueness conflict
// means another writer won a race on the same show; the diff is retried
// once against a re-read snapshot.
func (t *CrawlShowTask) reconcileAndApply(ctx context.Context, doc *feed.Document) (database.AppliedCounts, error) {
	for attempt := 0; ; attempt++ {
		snapshot, err := t.loadSnapshot()
		if err != nil {
			return database.AppliedCounts{}, err
		}

		plan := t.reconciler.Run(snapshot, doc)
		if plan.IsEmpty() {
			return database.AppliedCounts{}, nil
		}

		applyCtx, cancel := context.WithTimeout(ctx, storeTimeout)
		counts, err := t.store.ApplyPlan(applyCtx, t.Show.ID, plan)
		cancel()

		if errors.Is(err, database.ErrConflict) && attempt == 0 {
			slog.Warn("Plan conflicted with a concurrent write, retrying against fresh snapshot",
				"feed", t.Show.FeedURL)
			continue
		}
		return counts, err
	}
}

func (t *CrawlShowTask) loadSnapshot() (feed.Snapshot, error) {
	show, err := t.showRepo.GetShow(t.Show.ID)
	if err != nil {
		return feed.Snapshot{}, fmt.Errorf("failed to read show for snapshot: %w", err)
	}
	if show == nil {
		return feed.Snapshot{}, fmt.Errorf("show %s disappeared from catalog", t.Show.ID)
	}

	episodes, err := t.episodeRepo.GetEpisodeStates(t.Show.ID)
	if err != nil {
		return feed.Snapshot{}, fmt.Errorf("failed to read episode states: %w", err)
	}

	return feed.Snapshot{
		ShowFingerprint: show.Fingerprint,
		Episodes:        episodes,
	}, nil
}

func (t *CrawlShowTask) nextPollTime() time.Time {
	interval := time.Duration(t.Show.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = t.opts.PollInterval
	}
	return time.Now().UTC().Add(interval)
}

// recordFailure advances the persisted backoff state machine: bump the
// failure streak, push next_fetch_at out exponentially with jitter, and
// disable the show once the streak reaches the configured threshold.
func (t *CrawlShowTask) recordFailure(attemptID string, cause error) {
	kind := feed.ClassifyFailure(cause)
	failures := t.Show.ConsecutiveFailures + 1
	enabled := failures < t.opts.DisableThreshold

	delay := WithJitter(NextRetryDelay(t.opts.BackoffBase, t.opts.BackoffMax, failures))
	nextFetchAt := time.Now().UTC().Add(delay)

	if err := t.showRepo.MarkCrawlFailure(t.Show.ID, failures, nextFetchAt, enabled); err != nil {
		slog.Error("Failed to record crawl failure",
			"feed", t.Show.FeedURL, "error", err)
		return
	}

	slog.Warn("Crawl failed",
		"attempt", attemptID,
		"feed", t.Show.FeedURL,
		"kind", string(kind),
		"consecutive_failures", failures,
		"next_fetch_at", nextFetchAt.Format(time.RFC3339),
		"error", cause)

	if !enabled {
		slog.Error("Show disabled after repeated failures; manual reactivation required",
			"feed", t.Show.FeedURL,
			"consecutive_failures", failures)
	}
}
