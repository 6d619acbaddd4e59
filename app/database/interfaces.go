package database

import (
	"context"
	"time"

	"podmill/app/feed"
)

// AppliedCounts reports what a reconcile plan changed in the catalog.
type AppliedCounts struct {
	ShowUpdated bool
	Inserted    int
	Updated     int
}

// ShowRepository covers show rows: catalog metadata written through
// ApplyPlan, scheduling and backoff fields written by the crawl scheduler.
type ShowRepository interface {
	UpsertShow(feedURL, titleHint string, pollIntervalSeconds int) (string, error)
	GetShow(id string) (*Show, error)
	GetShowByURL(feedURL string) (*Show, error)
	GetShows() ([]Show, error)
	GetShowsDueForCrawl(limit int) ([]Show, error)
	GetShowCount() (int, error)
	GetEnabledShowCount() (int, error)

	UpdateCacheTokens(showID string, tokens feed.CacheTokens) error
	MarkCrawlSuccess(showID string, nextFetchAt time.Time) error
	MarkCrawlFailure(showID string, failures int, nextFetchAt time.Time, enabled bool) error
	SetShowEnabled(showID string, enabled bool) error
}

type EpisodeRepository interface {
	GetEpisodes(showID string, limit int) ([]Episode, error)
	GetEpisodeStates(showID string) (map[string]string, error)
	GetEpisodeCount(showID string) (int, error)
	GetTotalEpisodeCount() (int, error)
}

// CatalogStore applies a reconcile plan as one atomic transaction.
type CatalogStore interface {
	ApplyPlan(ctx context.Context, showID string, plan feed.Plan) (AppliedCounts, error)
}
