package database

import (
	"fmt"
)

var _ EpisodeRepository = (*EpisodeRepositoryImpl)(nil)

// EpisodeRepositoryImpl handles read-side database operations for
// episodes. All writes go through the catalog store's ApplyPlan.
type EpisodeRepositoryImpl struct {
	db *DB
}

func NewEpisodeRepository(db *DB) *EpisodeRepositoryImpl {
	return &EpisodeRepositoryImpl{db: db}
}

// GetEpisodes returns the newest episodes for a show, most recently
// published first.
func (r *EpisodeRepositoryImpl) GetEpisodes(showID string, limit int) ([]Episode, error) {
	rows, err := r.db.Query(`
		SELECT id, show_id, guid, COALESCE(title, ''), COALESCE(description, ''),
		       COALESCE(link_url, ''), COALESCE(media_url, ''), COALESCE(media_type, ''),
		       media_length, duration_seconds, published_at, fingerprint,
		       created_at, updated_at
		FROM episodes
		WHERE show_id = $1
		ORDER BY COALESCE(published_at, created_at) DESC
		LIMIT $2
	`, showID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get episodes: %w", err)
	}
	defer rows.Close()

	var episodes []Episode
	for rows.Next() {
		var episode Episode
		err := rows.Scan(
			&episode.ID, &episode.ShowID, &episode.GUID, &episode.Title, &episode.Description,
			&episode.LinkURL, &episode.MediaURL, &episode.MediaType,
			&episode.MediaLength, &episode.DurationSec, &episode.PublishedAt, &episode.Fingerprint,
			&episode.CreatedAt, &episode.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode row: %w", err)
		}
		episodes = append(episodes, episode)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating episode rows: %w", err)
	}

	return episodes, nil
}

// GetEpisodeStates reads the reconciliation snapshot for a show: every
// stored episode's GUID mapped to its content fingerprint.
func (r *EpisodeRepositoryImpl) GetEpisodeStates(showID string) (map[string]string, error) {
	rows, err := r.db.Query(`
		SELECT guid, fingerprint
		FROM episodes
		WHERE show_id = $1
	`, showID)
	if err != nil {
		return nil, fmt.Errorf("failed to get episode states: %w", err)
	}
	defer rows.Close()

	states := make(map[string]string)
	for rows.Next() {
		var guid, fingerprint string
		if err := rows.Scan(&guid, &fingerprint); err != nil {
			return nil, fmt.Errorf("failed to scan episode state row: %w", err)
		}
		states[guid] = fingerprint
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating episode state rows: %w", err)
	}

	return states, nil
}

func (r *EpisodeRepositoryImpl) GetEpisodeCount(showID string) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM episodes WHERE show_id = $1", showID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get episode count: %w", err)
	}
	return count, nil
}

func (r *EpisodeRepositoryImpl) GetTotalEpisodeCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM episodes").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get total episode count: %w", err)
	}
	return count, nil
}
