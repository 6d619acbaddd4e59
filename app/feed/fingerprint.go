package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// fingerprintFields digests a field set into a stable hex fingerprint.
// Keys are sorted before hashing so the result is independent of the
// order fields appear in the source feed.
func fingerprintFields(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, fields[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ShowFingerprint digests the mutable show fields. Used purely for change
// detection; show identity is the normalized feed URL.
func ShowFingerprint(s ShowMeta) string {
	return fingerprintFields(map[string]string{
		"title":       s.Title,
		"description": s.Description,
		"link_url":    s.LinkURL,
		"image_url":   s.ImageURL,
		"language":    s.Language,
	})
}

// EpisodeFingerprint digests the mutable episode fields. GUID is excluded:
// it is identity, not content.
func EpisodeFingerprint(e EpisodeMeta) string {
	var published string
	if !e.PublishedAt.IsZero() {
		published = e.PublishedAt.UTC().Format(time.RFC3339)
	}

	return fingerprintFields(map[string]string{
		"title":        e.Title,
		"description":  e.Description,
		"link_url":     e.LinkURL,
		"media_url":    e.MediaURL,
		"media_type":   e.MediaType,
		"media_length": strconv.FormatInt(e.MediaLength, 10),
		"duration":     strconv.Itoa(e.DurationSec),
		"published_at": published,
	})
}

// FallbackGUID derives a deterministic episode identifier for feeds that
// omit one, from the fields least likely to change between fetches. The
// urn prefix keeps derived identifiers from ever colliding with
// publisher-assigned GUIDs.
func FallbackGUID(mediaURL string, publishedAt time.Time, title string) string {
	var published string
	if !publishedAt.IsZero() {
		published = publishedAt.UTC().Format(time.RFC3339)
	}

	h := sha256.Sum256([]byte(mediaURL + "|" + published + "|" + title))
	return "urn:podmill:sha256:" + hex.EncodeToString(h[:])
}
