package feed

import "time"

// ShowMeta is the canonical show-level view of a parsed feed.
type ShowMeta struct {
	Title       string
	Description string
	LinkURL     string
	ImageURL    string
	Language    string

	Fingerprint string
}

// EpisodeMeta is the canonical item-level view of a parsed feed. GUID is
// either the feed-provided identifier or a derived fallback; it is the
// identity of the episode within its show and never changes once stored.
type EpisodeMeta struct {
	GUID        string
	Title       string
	Description string
	LinkURL     string
	MediaURL    string
	MediaType   string
	MediaLength int64
	DurationSec int
	PublishedAt time.Time

	Fingerprint string
}

// Document is a fully parsed feed: show metadata plus episodes in feed
// order. Feed order is preserved as-is; it is not assumed chronological.
type Document struct {
	Show     ShowMeta
	Episodes []EpisodeMeta
}

// Snapshot is the reconciler's view of the currently persisted catalog
// state for one show: the stored show fingerprint and a guid -> fingerprint
// map of all stored episodes.
type Snapshot struct {
	ShowFingerprint string
	Episodes        map[string]string
}

type UpsertKind string

const (
	UpsertInsert UpsertKind = "insert"
	UpsertUpdate UpsertKind = "update"
)

// EpisodeUpsert is one catalog mutation produced by reconciliation.
type EpisodeUpsert struct {
	Kind    UpsertKind
	Episode EpisodeMeta
}

// Plan is the pure output of reconciliation: an optional show update plus
// episode upserts in feed order. An empty plan means the feed produced
// zero writes.
type Plan struct {
	ShowUpdate     *ShowMeta
	EpisodeUpserts []EpisodeUpsert
}

func (p Plan) IsEmpty() bool {
	return p.ShowUpdate == nil && len(p.EpisodeUpserts) == 0
}

// FetchStatus distinguishes a fresh payload from a 304 response.
type FetchStatus string

const (
	FetchFresh       FetchStatus = "fresh"
	FetchNotModified FetchStatus = "not_modified"
)

// CacheTokens carries the conditional-request headers remembered between
// fetches of the same feed.
type CacheTokens struct {
	ETag         string
	LastModified string
}

// FetchResult is the outcome of a successful HTTP fetch.
type FetchResult struct {
	Status     FetchStatus
	Body       []byte
	Tokens     CacheTokens
	HTTPStatus int
}
