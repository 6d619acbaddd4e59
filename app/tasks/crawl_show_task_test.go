package tasks

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"podmill/app/database"
	"podmill/app/feed"
)

const crawlTestFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Crawl Test Podcast</title>
    <description>Feed for crawl task tests</description>
    <item>
      <title>Episode 1</title>
      <guid>ep-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
      <enclosure url="https://example.com/ep1.mp3" length="100" type="audio/mpeg"/>
    </item>
    <item>
      <title>Episode 2</title>
      <guid>ep-2</guid>
      <pubDate>Mon, 10 Jul 2023 10:00:00 GMT</pubDate>
      <enclosure url="https://example.com/ep2.mp3" length="200" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`

func newCrawlTask(show database.Show, showRepo *mockShowRepository,
	episodeRepo *mockEpisodeRepository, store *mockCatalogStore) *CrawlShowTask {
	fetcher := feed.NewFetcher("podmill-test/1.0", 5*time.Second, 1<<20)
	return NewCrawlShowTask(show, fetcher, feed.NewParser(), feed.NewReconciler(),
		showRepo, episodeRepo, store, testOptions())
}

func TestCrawlTaskIngestsFreshFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(crawlTestFeed))
	}))
	defer server.Close()

	show := database.Show{ID: "show-1", FeedURL: server.URL, Enabled: true}
	showRepo := newMockShowRepository()
	showRepo.addShow(show)
	episodeRepo := newMockEpisodeRepository()
	store := &mockCatalogStore{episodeRepo: episodeRepo}

	task := newCrawlTask(show, showRepo, episodeRepo, store)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected crawl to succeed, got: %v", err)
	}

	if store.applyCalls != 1 {
		t.Errorf("Expected 1 plan application, got: %d", store.applyCalls)
	}
	if len(store.lastPlan.EpisodeUpserts) != 2 {
		t.Errorf("Expected 2 episode upserts, got: %d", len(store.lastPlan.EpisodeUpserts))
	}
	if store.lastPlan.ShowUpdate == nil {
		t.Error("Expected show metadata update on first crawl")
	}

	if tokens := showRepo.updatedTokens["show-1"]; tokens.ETag != `"v1"` {
		t.Errorf("Expected ETag persisted, got: %q", tokens.ETag)
	}
	if len(showRepo.successShows) != 1 {
		t.Fatalf("Expected 1 success record, got: %d", len(showRepo.successShows))
	}
	if next := showRepo.successTimes[0]; !next.After(time.Now()) {
		t.Errorf("Expected next fetch time in the future, got: %v", next)
	}
}

func TestCrawlTaskSecondRunIsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(crawlTestFeed))
	}))
	defer server.Close()

	show := database.Show{ID: "show-1", FeedURL: server.URL, Enabled: true}
	showRepo := newMockShowRepository()
	showRepo.addShow(show)
	episodeRepo := newMockEpisodeRepository()
	store := &mockCatalogStore{episodeRepo: episodeRepo}

	task := newCrawlTask(show, showRepo, episodeRepo, store)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected first crawl to succeed, got: %v", err)
	}

	// Persist the show fingerprint the way ApplyPlan would.
	showRepo.mu.Lock()
	showRepo.shows["show-1"].Fingerprint = store.lastPlan.ShowUpdate.Fingerprint
	showRepo.mu.Unlock()

	task = newCrawlTask(show, showRepo, episodeRepo, store)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected second crawl to succeed, got: %v", err)
	}

	if store.applyCalls != 1 {
		t.Errorf("Expected no second plan application for unchanged feed, got: %d calls", store.applyCalls)
	}
	if len(showRepo.successShows) != 2 {
		t.Errorf("Expected both crawls recorded as successes, got: %d", len(showRepo.successShows))
	}
}

func TestCrawlTaskNotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	show := database.Show{ID: "show-1", FeedURL: server.URL, ETag: `"v1"`, Enabled: true}
	showRepo := newMockShowRepository()
	showRepo.addShow(show)
	store := &mockCatalogStore{}

	task := newCrawlTask(show, showRepo, newMockEpisodeRepository(), store)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected 304 to count as success, got: %v", err)
	}

	if store.applyCalls != 0 {
		t.Errorf("Expected no plan application on 304, got: %d", store.applyCalls)
	}
	if len(showRepo.successShows) != 1 {
		t.Errorf("Expected success recorded on 304, got: %d records", len(showRepo.successShows))
	}
	if _, failed := showRepo.lastFailure(); failed {
		t.Error("Expected no failure record on 304")
	}
}

func TestCrawlTaskRecordsFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	show := database.Show{ID: "show-1", FeedURL: server.URL, ConsecutiveFailures: 2, Enabled: true}
	showRepo := newMockShowRepository()
	showRepo.addShow(show)

	task := newCrawlTask(show, showRepo, newMockEpisodeRepository(), &mockCatalogStore{})
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected crawl error for HTTP 500")
	}

	failure, ok := showRepo.lastFailure()
	if !ok {
		t.Fatal("Expected failure to be recorded")
	}
	if failure.Failures != 3 {
		t.Errorf("Expected failure streak bumped to 3, got: %d", failure.Failures)
	}
	if !failure.Enabled {
		t.Error("Expected show to stay enabled below the disable threshold")
	}
	if !failure.NextFetchAt.After(time.Now()) {
		t.Errorf("Expected backoff to push next fetch into the future, got: %v", failure.NextFetchAt)
	}
}

func TestCrawlTaskDisablesAtThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	opts := testOptions()
	show := database.Show{
		ID:                  "show-1",
		FeedURL:             server.URL,
		ConsecutiveFailures: opts.DisableThreshold - 1,
		Enabled:             true,
	}
	showRepo := newMockShowRepository()
	showRepo.addShow(show)

	task := newCrawlTask(show, showRepo, newMockEpisodeRepository(), &mockCatalogStore{})
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected crawl error for HTTP 404")
	}

	failure, ok := showRepo.lastFailure()
	if !ok {
		t.Fatal("Expected failure to be recorded")
	}
	if failure.Failures != opts.DisableThreshold {
		t.Errorf("Expected failure streak %d, got: %d", opts.DisableThreshold, failure.Failures)
	}
	if failure.Enabled {
		t.Error("Expected show disabled once the streak reaches the threshold")
	}
}

func TestCrawlTaskMalformedPayloadLeavesCatalogAlone(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("definitely not XML"))
	}))
	defer server.Close()

	show := database.Show{ID: "show-1", FeedURL: server.URL, Enabled: true}
	showRepo := newMockShowRepository()
	showRepo.addShow(show)
	store := &mockCatalogStore{}

	task := newCrawlTask(show, showRepo, newMockEpisodeRepository(), store)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected parse error")
	}

	if store.applyCalls != 0 {
		t.Errorf("Expected no catalog writes for malformed payload, got: %d", store.applyCalls)
	}
	if _, ok := showRepo.lastFailure(); !ok {
		t.Error("Expected parse failure to count against the show")
	}
}

func TestCrawlTaskMalformedPayloadDoesNotPersistTokens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") == `"broken-v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"broken-v1"`)
		w.Write([]byte("definitely not XML"))
	}))
	defer server.Close()

	show := database.Show{ID: "show-1", FeedURL: server.URL, Enabled: true}
	showRepo := newMockShowRepository()
	showRepo.addShow(show)
	store := &mockCatalogStore{}

	task := newCrawlTask(show, showRepo, newMockEpisodeRepository(), store)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected parse error on first crawl")
	}

	// The broken payload's ETag must not survive the failed crawl, or the
	// next conditional fetch would answer 304 and take the success path.
	if tokens, ok := showRepo.updatedTokens["show-1"]; ok {
		t.Fatalf("Expected no tokens persisted for malformed payload, got: %+v", tokens)
	}

	show.ETag = showRepo.updatedTokens["show-1"].ETag
	show.ConsecutiveFailures = 1

	task = newCrawlTask(show, showRepo, newMockEpisodeRepository(), store)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected parse error on second crawl")
	}

	if len(showRepo.successShows) != 0 {
		t.Errorf("Expected no crawl recorded as success, got: %d", len(showRepo.successShows))
	}
	failure, ok := showRepo.lastFailure()
	if !ok {
		t.Fatal("Expected failures to be recorded")
	}
	if failure.Failures != 2 {
		t.Errorf("Expected failure streak to keep growing, got: %d", failure.Failures)
	}
}

func TestCrawlTaskRetriesOnceOnConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(crawlTestFeed))
	}))
	defer server.Close()

	show := database.Show{ID: "show-1", FeedURL: server.URL, Enabled: true}
	showRepo := newMockShowRepository()
	showRepo.addShow(show)
	episodeRepo := newMockEpisodeRepository()
	store := &mockCatalogStore{
		episodeRepo: episodeRepo,
		errs:        []error{database.ErrConflict},
	}

	task := newCrawlTask(show, showRepo, episodeRepo, store)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected conflict to be retried and resolved, got: %v", err)
	}

	if store.applyCalls != 2 {
		t.Errorf("Expected exactly 2 plan applications, got: %d", store.applyCalls)
	}
	if len(showRepo.successShows) != 1 {
		t.Errorf("Expected crawl to end in success, got: %d records", len(showRepo.successShows))
	}
}

func TestCrawlTaskGivesUpOnSecondConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(crawlTestFeed))
	}))
	defer server.Close()

	show := database.Show{ID: "show-1", FeedURL: server.URL, Enabled: true}
	showRepo := newMockShowRepository()
	showRepo.addShow(show)
	store := &mockCatalogStore{
		errs: []error{database.ErrConflict, database.ErrConflict},
	}

	task := newCrawlTask(show, showRepo, newMockEpisodeRepository(), store)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected error after repeated conflicts")
	}

	if store.applyCalls != 2 {
		t.Errorf("Expected exactly 2 plan applications, got: %d", store.applyCalls)
	}
	if _, ok := showRepo.lastFailure(); !ok {
		t.Error("Expected repeated conflict to be recorded as a failure")
	}
	if tokens, ok := showRepo.updatedTokens["show-1"]; ok {
		t.Errorf("Expected no tokens persisted when the apply failed, got: %+v", tokens)
	}
}
