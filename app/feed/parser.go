package feed

import (
	"bytes"
	"cmp"
	"log/slog"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Parser converts raw feed bytes (RSS 2.0, Atom, or RSS with podcast
// namespace extensions) into a canonical Document. gofeed sniffs the root
// element and dispatches to the matching format parser, so all variants
// normalize through the same path.
type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses data into a Document. Only a payload that cannot be parsed
// at all fails (as *ParseError); missing optional fields fall back to
// zero values, episodes without a GUID get a derived one, and duplicate
// GUIDs within the feed keep the first occurrence.
func (p *Parser) Run(data []byte) (*Document, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	show := ShowMeta{
		Title:       strings.TrimSpace(parsed.Title),
		Description: parsed.Description,
		LinkURL:     parsed.Link,
		Language:    parsed.Language,
	}

	if parsed.Image != nil {
		show.ImageURL = parsed.Image.URL
	}
	if show.ImageURL == "" && parsed.ITunesExt != nil {
		show.ImageURL = parsed.ITunesExt.Image
	}
	show.Fingerprint = ShowFingerprint(show)

	episodes := make([]EpisodeMeta, 0, len(parsed.Items))
	seen := make(map[string]bool, len(parsed.Items))
	for _, item := range parsed.Items {
		episode := p.normalizeItem(item)

		if seen[episode.GUID] {
			slog.Warn("Duplicate GUID within feed, dropping item",
				"feed", show.Title, "guid", episode.GUID, "title", episode.Title)
			continue
		}
		seen[episode.GUID] = true

		episode.Fingerprint = EpisodeFingerprint(episode)
		episodes = append(episodes, episode)
	}

	return &Document{Show: show, Episodes: episodes}, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) EpisodeMeta {
	episode := EpisodeMeta{
		GUID:        strings.TrimSpace(item.GUID),
		Title:       strings.TrimSpace(item.Title),
		LinkURL:     item.Link,
		Description: cmp.Or(item.Description, item.Content),
	}

	if item.PublishedParsed != nil {
		episode.PublishedAt = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		episode.PublishedAt = item.UpdatedParsed.UTC()
	}

	// RSS 2.0 allows a single enclosure per item; take the first.
	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		enclosure := item.Enclosures[0]
		episode.MediaURL = enclosure.URL
		episode.MediaType = enclosure.Type
		if enclosure.Length != "" {
			if length, err := strconv.ParseInt(enclosure.Length, 10, 64); err == nil {
				episode.MediaLength = length
			}
		}
	}

	if item.ITunesExt != nil {
		episode.DurationSec = parseDuration(item.ITunesExt.Duration)
	}

	if episode.GUID == "" {
		episode.GUID = FallbackGUID(episode.MediaURL, episode.PublishedAt, episode.Title)
	}

	return episode
}

// parseDuration handles the itunes:duration formats seen in the wild:
// plain seconds, MM:SS, and HH:MM:SS. Unparseable values yield zero.
func parseDuration(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}
