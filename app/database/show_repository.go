package database

import (
	"database/sql"
	"fmt"
	"time"

	"podmill/app/feed"
)

var _ ShowRepository = (*ShowRepositoryImpl)(nil)

// ShowRepositoryImpl handles database operations for shows.
type ShowRepositoryImpl struct {
	db *DB
}

func NewShowRepository(db *DB) *ShowRepositoryImpl {
	return &ShowRepositoryImpl{db: db}
}

const showColumns = `id, feed_url, COALESCE(title, ''), COALESCE(description, ''),
	       COALESCE(link_url, ''), COALESCE(image_url, ''), COALESCE(language, ''),
	       COALESCE(fingerprint, ''), COALESCE(etag, ''), COALESCE(last_modified, ''),
	       last_fetched_at, last_success_at, next_fetch_at,
	       poll_interval_seconds, consecutive_failures, enabled, created_at, updated_at`

func (r *ShowRepositoryImpl) scanShow(row interface{ Scan(...any) error }) (*Show, error) {
	var show Show
	err := row.Scan(
		&show.ID, &show.FeedURL, &show.Title, &show.Description,
		&show.LinkURL, &show.ImageURL, &show.Language,
		&show.Fingerprint, &show.ETag, &show.LastModified,
		&show.LastFetchedAt, &show.LastSuccessAt, &show.NextFetchAt,
		&show.PollIntervalSeconds, &show.ConsecutiveFailures, &show.Enabled,
		&show.CreatedAt, &show.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &show, nil
}

// UpsertShow registers a subscription as a show row, keyed by the
// normalized feed URL. Existing catalog metadata is left alone; only the
// title hint (when the show has no parsed title yet) and the poll
// interval follow the subscription file.
func (r *ShowRepositoryImpl) UpsertShow(feedURL, titleHint string, pollIntervalSeconds int) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO shows (feed_url, title, poll_interval_seconds)
		VALUES ($1, $2, $3)
		ON CONFLICT (feed_url) DO UPDATE SET
			title = CASE WHEN shows.title = '' THEN EXCLUDED.title ELSE shows.title END,
			poll_interval_seconds = EXCLUDED.poll_interval_seconds,
			updated_at = NOW()
		RETURNING id
	`, feedURL, titleHint, pollIntervalSeconds).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to upsert show: %w", err)
	}

	return id, nil
}

func (r *ShowRepositoryImpl) GetShow(id string) (*Show, error) {
	show, err := r.scanShow(r.db.QueryRow(`
		SELECT `+showColumns+`
		FROM shows
		WHERE id = $1
	`, id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get show: %w", err)
	}

	return show, nil
}

func (r *ShowRepositoryImpl) GetShowByURL(feedURL string) (*Show, error) {
	show, err := r.scanShow(r.db.QueryRow(`
		SELECT `+showColumns+`
		FROM shows
		WHERE feed_url = $1
	`, feedURL))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get show by URL: %w", err)
	}

	return show, nil
}

func (r *ShowRepositoryImpl) GetShows() ([]Show, error) {
	rows, err := r.db.Query(`
		SELECT ` + showColumns + `
		FROM shows
		ORDER BY title, feed_url
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get shows: %w", err)
	}
	defer rows.Close()

	return r.collectShows(rows)
}

// GetShowsDueForCrawl returns enabled shows whose next fetch time has
// passed (or was never set), oldest due first.
func (r *ShowRepositoryImpl) GetShowsDueForCrawl(limit int) ([]Show, error) {
	rows, err := r.db.Query(`
		SELECT `+showColumns+`
		FROM shows
		WHERE enabled = true
		  AND (next_fetch_at IS NULL OR next_fetch_at <= NOW())
		ORDER BY COALESCE(next_fetch_at, '1970-01-01'::timestamptz)
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get shows due for crawl: %w", err)
	}
	defer rows.Close()

	return r.collectShows(rows)
}

func (r *ShowRepositoryImpl) collectShows(rows *sql.Rows) ([]Show, error) {
	var shows []Show
	for rows.Next() {
		show, err := r.scanShow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan show row: %w", err)
		}
		shows = append(shows, *show)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating show rows: %w", err)
	}

	return shows, nil
}

func (r *ShowRepositoryImpl) GetShowCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM shows").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get show count: %w", err)
	}
	return count, nil
}

func (r *ShowRepositoryImpl) GetEnabledShowCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM shows WHERE enabled = true").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get enabled show count: %w", err)
	}
	return count, nil
}

// UpdateCacheTokens records the conditional-fetch tokens of the latest
// fresh response along with the fetch timestamp.
func (r *ShowRepositoryImpl) UpdateCacheTokens(showID string, tokens feed.CacheTokens) error {
	_, err := r.db.Exec(`
		UPDATE shows
		SET etag = $2, last_modified = $3, last_fetched_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`, showID, tokens.ETag, tokens.LastModified)

	if err != nil {
		return fmt.Errorf("failed to update cache tokens: %w", err)
	}

	return nil
}

// MarkCrawlSuccess resets the failure streak and schedules the next crawl
// at the show's normal polling interval.
func (r *ShowRepositoryImpl) MarkCrawlSuccess(showID string, nextFetchAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE shows
		SET consecutive_failures = 0, last_fetched_at = NOW(), last_success_at = NOW(),
		    next_fetch_at = $2, updated_at = NOW()
		WHERE id = $1
	`, showID, nextFetchAt)

	if err != nil {
		return fmt.Errorf("failed to mark crawl success: %w", err)
	}

	return nil
}

// MarkCrawlFailure persists the failure streak, the backed-off next fetch
// time, and the enabled flag so backoff state survives restarts.
func (r *ShowRepositoryImpl) MarkCrawlFailure(showID string, failures int, nextFetchAt time.Time, enabled bool) error {
	_, err := r.db.Exec(`
		UPDATE shows
		SET consecutive_failures = $2, last_fetched_at = NOW(),
		    next_fetch_at = $3, enabled = $4, updated_at = NOW()
		WHERE id = $1
	`, showID, failures, nextFetchAt, enabled)

	if err != nil {
		return fmt.Errorf("failed to mark crawl failure: %w", err)
	}

	return nil
}

// SetShowEnabled is the manual reactivation (or deactivation) path.
// Re-enabling clears the failure streak and makes the show immediately
// due.
func (r *ShowRepositoryImpl) SetShowEnabled(showID string, enabled bool) error {
	_, err := r.db.Exec(`
		UPDATE shows
		SET enabled = $2,
		    consecutive_failures = CASE WHEN $2 THEN 0 ELSE consecutive_failures END,
		    next_fetch_at = CASE WHEN $2 THEN NOW() ELSE next_fetch_at END,
		    updated_at = NOW()
		WHERE id = $1
	`, showID, enabled)

	if err != nil {
		return fmt.Errorf("failed to set show enabled status: %w", err)
	}

	return nil
}
