package database

import (
	"context"
	"fmt"

	"podmill/app/feed"
)

var _ CatalogStore = (*CatalogStoreImpl)(nil)

// CatalogStoreImpl applies reconcile plans to the catalog. A plan lands
// as a single transaction: either every insert and update commits or
// none do, so a crash mid-crawl never leaves a show half-updated.
type CatalogStoreImpl struct {
	db *DB
}

func NewCatalogStore(db *DB) *CatalogStoreImpl {
	return &CatalogStoreImpl{db: db}
}

// ApplyPlan executes the plan for one show. Inserts are plain INSERTs so
// that a concurrent crawl racing on the same (show_id, guid) surfaces as
// ErrConflict via the storage-level uniqueness constraint; the caller
// re-reads the snapshot and reconciles again.
func (s *CatalogStoreImpl) ApplyPlan(ctx context.Context, showID string, plan feed.Plan) (AppliedCounts, error) {
	var counts AppliedCounts
	if plan.IsEmpty() {
		return counts, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return counts, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if plan.ShowUpdate != nil {
		show := plan.ShowUpdate
		_, err := tx.ExecContext(ctx, `
			UPDATE shows
			SET title = $2, description = $3, link_url = $4, image_url = $5,
			    language = $6, fingerprint = $7, updated_at = NOW()
			WHERE id = $1
		`, showID, show.Title, show.Description, show.LinkURL, show.ImageURL,
			show.Language, show.Fingerprint)
		if err != nil {
			return AppliedCounts{}, fmt.Errorf("failed to update show: %w", err)
		}
		counts.ShowUpdated = true
	}

	for _, upsert := range plan.EpisodeUpserts {
		episode := upsert.Episode

		var publishedAt any
		if !episode.PublishedAt.IsZero() {
			publishedAt = episode.PublishedAt
		}

		switch upsert.Kind {
		case feed.UpsertInsert:
			_, err := tx.ExecContext(ctx, `
				INSERT INTO episodes (
					show_id, guid, title, description, link_url,
					media_url, media_type, media_length, duration_seconds,
					published_at, fingerprint
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			`, showID, episode.GUID, episode.Title, episode.Description, episode.LinkURL,
				episode.MediaURL, episode.MediaType, episode.MediaLength, episode.DurationSec,
				publishedAt, episode.Fingerprint)
			if err != nil {
				if isUniqueViolation(err) {
					return AppliedCounts{}, fmt.Errorf("insert episode %s: %w", episode.GUID, ErrConflict)
				}
				return AppliedCounts{}, fmt.Errorf("failed to insert episode: %w", err)
			}
			counts.Inserted++

		case feed.UpsertUpdate:
			// GUID and show_id are identity and never change; only the
			// mutable content fields follow the feed.
			_, err := tx.ExecContext(ctx, `
				UPDATE episodes
				SET title = $3, description = $4, link_url = $5,
				    media_url = $6, media_type = $7, media_length = $8,
				    duration_seconds = $9, published_at = COALESCE($10, published_at),
				    fingerprint = $11, updated_at = NOW()
				WHERE show_id = $1 AND guid = $2
			`, showID, episode.GUID, episode.Title, episode.Description, episode.LinkURL,
				episode.MediaURL, episode.MediaType, episode.MediaLength, episode.DurationSec,
				publishedAt, episode.Fingerprint)
			if err != nil {
				return AppliedCounts{}, fmt.Errorf("failed to update episode: %w", err)
			}
			counts.Updated++

		default:
			return AppliedCounts{}, fmt.Errorf("unknown upsert kind: %q", upsert.Kind)
		}
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return AppliedCounts{}, fmt.Errorf("commit plan: %w", ErrConflict)
		}
		return AppliedCounts{}, fmt.Errorf("failed to commit plan: %w", err)
	}

	return counts, nil
}
