package database

import (
	"time"
)

// Show is a podcast identified by its normalized feed URL. Shows are
// never hard-deleted; a show that keeps failing is disabled and kept.
type Show struct {
	ID          string // Database UUID
	FeedURL     string // Normalized feed URL, unique
	Title       string
	Description string
	LinkURL     string // Homepage URL from the feed's <link> element
	ImageURL    string
	Language    string
	Fingerprint string // Digest of the mutable show fields

	// Conditional-fetch tokens from the last fresh response.
	ETag         string
	LastModified string

	LastFetchedAt       *time.Time
	LastSuccessAt       *time.Time
	NextFetchAt         *time.Time
	PollIntervalSeconds int
	ConsecutiveFailures int
	Enabled             bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Episode is one item of a show's feed, identified by (show, GUID).
// GUID and show never change after creation; only content fields do.
type Episode struct {
	ID          string
	ShowID      string
	GUID        string
	Title       string
	Description string
	LinkURL     string
	MediaURL    string // Enclosure URL (where the audio lives)
	MediaType   string
	MediaLength int64
	DurationSec int
	PublishedAt *time.Time
	Fingerprint string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
