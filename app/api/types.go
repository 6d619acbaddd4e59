package api

import (
	"time"

	"podmill/app/cache"
	"podmill/app/database"
	"podmill/app/tasks"
)

// Handler serves the read-only catalog API. All writes flow through the
// crawl pipeline; the only mutations exposed here are the management
// toggles on a show's enabled flag and the force-crawl trigger.
type Handler struct {
	showRepo    database.ShowRepository
	episodeRepo database.EpisodeRepository
	scheduler   tasks.TaskSchedulerInterface
	cache       *cache.Cache // optional, may be nil
}

// PodcastResponse is the API view of a show. Disabled shows stay visible
// with their status so operators can spot feeds that stopped working.
type PodcastResponse struct {
	ID                  string     `json:"id"`
	FeedURL             string     `json:"feed_url"`
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	LinkURL             string     `json:"link_url,omitempty"`
	ImageURL            string     `json:"image_url,omitempty"`
	Language            string     `json:"language,omitempty"`
	Status              string     `json:"status"`
	ConsecutiveFailures int        `json:"consecutive_failures,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	NextFetchAt         *time.Time `json:"next_fetch_at,omitempty"`
	EpisodeCount        *int       `json:"episode_count,omitempty"`
}

// EpisodeResponse is the API view of an episode.
type EpisodeResponse struct {
	ID          string     `json:"id"`
	GUID        string     `json:"guid"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	LinkURL     string     `json:"link_url,omitempty"`
	MediaURL    string     `json:"media_url"`
	MediaType   string     `json:"media_type,omitempty"`
	MediaLength int64      `json:"media_length,omitempty"`
	DurationSec int        `json:"duration_seconds,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

const (
	statusActive   = "active"
	statusDisabled = "disabled"
)

func podcastResponse(show database.Show) PodcastResponse {
	status := statusActive
	if !show.Enabled {
		status = statusDisabled
	}

	return PodcastResponse{
		ID:                  show.ID,
		FeedURL:             show.FeedURL,
		Title:               show.Title,
		Description:         show.Description,
		LinkURL:             show.LinkURL,
		ImageURL:            show.ImageURL,
		Language:            show.Language,
		Status:              status,
		ConsecutiveFailures: show.ConsecutiveFailures,
		LastSuccessAt:       show.LastSuccessAt,
		NextFetchAt:         show.NextFetchAt,
	}
}

func episodeResponse(episode database.Episode) EpisodeResponse {
	return EpisodeResponse{
		ID:          episode.ID,
		GUID:        episode.GUID,
		Title:       episode.Title,
		Description: episode.Description,
		LinkURL:     episode.LinkURL,
		MediaURL:    episode.MediaURL,
		MediaType:   episode.MediaType,
		MediaLength: episode.MediaLength,
		DurationSec: episode.DurationSec,
		PublishedAt: episode.PublishedAt,
	}
}
