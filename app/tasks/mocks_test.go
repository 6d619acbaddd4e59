package tasks

import (
	"context"
	"sync"
	"time"

	"podmill/app/database"
	"podmill/app/feed"
)

type crawlFailure struct {
	ShowID      string
	Failures    int
	NextFetchAt time.Time
	Enabled     bool
}

type mockShowRepository struct {
	mu sync.Mutex

	shows map[string]*database.Show
	due   []database.Show

	upsertedURLs  []string
	successShows  []string
	successTimes  []time.Time
	failures      []crawlFailure
	updatedTokens map[string]feed.CacheTokens

	successCh chan string
}

func newMockShowRepository() *mockShowRepository {
	return &mockShowRepository{
		shows:         make(map[string]*database.Show),
		updatedTokens: make(map[string]feed.CacheTokens),
	}
}

func (m *mockShowRepository) addShow(show database.Show) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := show
	m.shows[show.ID] = &copied
}

func (m *mockShowRepository) UpsertShow(feedURL, titleHint string, pollIntervalSeconds int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertedURLs = append(m.upsertedURLs, feedURL)
	return "show-" + feedURL, nil
}

func (m *mockShowRepository) GetShow(id string) (*database.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	show, ok := m.shows[id]
	if !ok {
		return nil, nil
	}
	copied := *show
	return &copied, nil
}

func (m *mockShowRepository) GetShowByURL(feedURL string) (*database.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, show := range m.shows {
		if show.FeedURL == feedURL {
			copied := *show
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *mockShowRepository) GetShows() ([]database.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	shows := make([]database.Show, 0, len(m.shows))
	for _, show := range m.shows {
		shows = append(shows, *show)
	}
	return shows, nil
}

func (m *mockShowRepository) GetShowsDueForCrawl(limit int) ([]database.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.due) > limit {
		return m.due[:limit], nil
	}
	return m.due, nil
}

func (m *mockShowRepository) GetShowCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shows), nil
}

func (m *mockShowRepository) GetEnabledShowCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, show := range m.shows {
		if show.Enabled {
			count++
		}
	}
	return count, nil
}

func (m *mockShowRepository) UpdateCacheTokens(showID string, tokens feed.CacheTokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updatedTokens[showID] = tokens
	return nil
}

func (m *mockShowRepository) MarkCrawlSuccess(showID string, nextFetchAt time.Time) error {
	m.mu.Lock()
	m.successShows = append(m.successShows, showID)
	m.successTimes = append(m.successTimes, nextFetchAt)
	ch := m.successCh
	m.mu.Unlock()

	if ch != nil {
		ch <- showID
	}
	return nil
}

func (m *mockShowRepository) MarkCrawlFailure(showID string, failures int, nextFetchAt time.Time, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, crawlFailure{showID, failures, nextFetchAt, enabled})
	return nil
}

func (m *mockShowRepository) SetShowEnabled(showID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if show, ok := m.shows[showID]; ok {
		show.Enabled = enabled
	}
	return nil
}

func (m *mockShowRepository) lastFailure() (crawlFailure, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.failures) == 0 {
		return crawlFailure{}, false
	}
	return m.failures[len(m.failures)-1], true
}

type mockEpisodeRepository struct {
	mu     sync.Mutex
	states map[string]map[string]string
}

func newMockEpisodeRepository() *mockEpisodeRepository {
	return &mockEpisodeRepository{states: make(map[string]map[string]string)}
}

func (m *mockEpisodeRepository) GetEpisodes(showID string, limit int) ([]database.Episode, error) {
	return nil, nil
}

func (m *mockEpisodeRepository) GetEpisodeStates(showID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	states := make(map[string]string, len(m.states[showID]))
	for guid, fp := range m.states[showID] {
		states[guid] = fp
	}
	return states, nil
}

func (m *mockEpisodeRepository) GetEpisodeCount(showID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states[showID]), nil
}

func (m *mockEpisodeRepository) GetTotalEpisodeCount() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, states := range m.states {
		total += len(states)
	}
	return total, nil
}

type mockCatalogStore struct {
	mu sync.Mutex

	applyCalls int
	lastPlan   feed.Plan
	errs       []error // consumed in order; nil past the end

	episodeRepo *mockEpisodeRepository
}

func (m *mockCatalogStore) ApplyPlan(ctx context.Context, showID string, plan feed.Plan) (database.AppliedCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.applyCalls++
	m.lastPlan = plan

	if m.applyCalls <= len(m.errs) && m.errs[m.applyCalls-1] != nil {
		return database.AppliedCounts{}, m.errs[m.applyCalls-1]
	}

	counts := database.AppliedCounts{ShowUpdated: plan.ShowUpdate != nil}
	for _, upsert := range plan.EpisodeUpserts {
		if upsert.Kind == feed.UpsertInsert {
			counts.Inserted++
		} else {
			counts.Updated++
		}
	}

	// Keep the fake catalog coherent so a retried diff sees the applied state.
	if m.episodeRepo != nil {
		m.episodeRepo.mu.Lock()
		if m.episodeRepo.states[showID] == nil {
			m.episodeRepo.states[showID] = make(map[string]string)
		}
		for _, upsert := range plan.EpisodeUpserts {
			m.episodeRepo.states[showID][upsert.Episode.GUID] = upsert.Episode.Fingerprint
		}
		m.episodeRepo.mu.Unlock()
	}

	return counts, nil
}
