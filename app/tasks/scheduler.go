package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"podmill/app/config"
	"podmill/app/database"
	"podmill/app/feed"
)

const dueShowBatchSize = 50

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Options carries the scheduler and crawl tuning values.
type Options struct {
	Interval         time.Duration
	WorkerCount      int
	PollInterval     time.Duration
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	DisableThreshold int
}

// Stats is a snapshot of scheduler counters for the stats endpoint.
type Stats struct {
	TotalProcessed int64
	TotalErrors    int64
	QueueDepth     int
	InFlight       int
}

// Scheduler drives the crawl loop: a bounded worker pool consuming a
// task queue, fed every tick with the shows whose next fetch time has
// passed. The in-flight set guarantees at most one crawl per show at any
// time; overlapping crawls of the same show are the one race the rest of
// the pipeline should never have to see.
type Scheduler struct {
	showRepo      database.ShowRepository
	episodeRepo   database.EpisodeRepository
	store         database.CatalogStore
	fetcher       *feed.Fetcher
	parser        *feed.Parser
	reconciler    *feed.Reconciler
	subscriptions []*config.Subscription
	opts          Options

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface

	mu       sync.Mutex
	inflight map[string]struct{}
	stats    Stats
}

func NewScheduler(showRepo database.ShowRepository, episodeRepo database.EpisodeRepository,
	store database.CatalogStore, fetcher *feed.Fetcher, parser *feed.Parser,
	reconciler *feed.Reconciler, subscriptions []*config.Subscription, opts Options) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		showRepo:      showRepo,
		episodeRepo:   episodeRepo,
		store:         store,
		fetcher:       fetcher,
		parser:        parser,
		reconciler:    reconciler,
		subscriptions: subscriptions,
		opts:          opts,
		ctx:           ctx,
		cancel:        cancel,
		taskQueue:     make(chan TaskInterface, 300),
		inflight:      make(map[string]struct{}),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.opts.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()
		s.enqueueDueShows()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueDueShows()
			}
		}
	}()
}

// Stop cancels the scheduler context and waits for the workers and the
// tick loop. The task queue is left open: detached retry goroutines may
// still call EnqueueTask after shutdown, and closing the channel under
// them would turn that send into a panic.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// TriggerCrawl enqueues an immediate crawl for one show, bypassing its
// schedule. Used by the management API.
func (s *Scheduler) TriggerCrawl(showID string) error {
	show, err := s.showRepo.GetShow(showID)
	if err != nil {
		return fmt.Errorf("failed to load show: %w", err)
	}
	if show == nil {
		return fmt.Errorf("show not found: %s", showID)
	}

	if !s.tryAcquire(show.ID) {
		return fmt.Errorf("crawl already in flight for show %s", showID)
	}

	task := NewCrawlShowTask(*show, s.fetcher, s.parser, s.reconciler,
		s.showRepo, s.episodeRepo, s.store, s.opts)
	if err := s.EnqueueTask(task); err != nil {
		s.release(show.ID)
		return err
	}

	return nil
}

func (s *Scheduler) GetStats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.QueueDepth = len(s.taskQueue)
	stats.InFlight = len(s.inflight)
	return stats
}

// tryAcquire claims the per-show in-flight slot. The slot is held from
// enqueue until the task finishes, so a show can never have two crawls
// queued or running at once.
func (s *Scheduler) tryAcquire(showID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, held := s.inflight[showID]; held {
		return false
	}
	s.inflight[showID] = struct{}{}
	return true
}

func (s *Scheduler) release(showID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, showID)
}

func (s *Scheduler) enqueueStartupTasks() {
	if len(s.subscriptions) == 0 {
		slog.Debug("No subscriptions found")
		return
	}

	slog.Debug("Syncing subscriptions", "count", len(s.subscriptions))

	for _, sub := range s.subscriptions {
		task := NewSyncSubscriptionTask(sub, s.showRepo)
		if err := s.EnqueueTask(task); err != nil {
			slog.Warn("Failed to enqueue SyncSubscriptionTask", "subscription", sub.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueDueShows() {
	shows, err := s.showRepo.GetShowsDueForCrawl(dueShowBatchSize)
	if err != nil {
		slog.Error("Failed to get shows due for crawl", "error", err)
		s.mu.Lock()
		s.stats.TotalErrors++
		s.mu.Unlock()
		return
	}

	if len(shows) == 0 {
		slog.Debug("No shows due for crawl")
		return
	}

	slog.Debug("Enqueueing due shows", "count", len(shows))

	for _, show := range shows {
		if !s.tryAcquire(show.ID) {
			slog.Debug("Crawl already in flight, skipping", "feed", show.FeedURL)
			continue
		}

		task := NewCrawlShowTask(show, s.fetcher, s.parser, s.reconciler,
			s.showRepo, s.episodeRepo, s.store, s.opts)
		if err := s.EnqueueTask(task); err != nil {
			s.release(show.ID)
			slog.Warn("Failed to enqueue CrawlShowTask", "feed", show.FeedURL, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task, ok := <-s.taskQueue:
			if !ok {
				return
			}
			s.executeTask(id, task)
			if showID := task.GetShowID(); showID != "" {
				s.release(showID)
			}

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)

	s.mu.Lock()
	s.stats.TotalProcessed++
	if err != nil {
		s.stats.TotalErrors++
	}
	s.mu.Unlock()

	if err == nil {
		return
	}

	slog.Error("Worker task execution failed",
		"worker_id", workerID,
		"type", string(task.GetType()),
		"id", task.GetID(),
		"retry_count", task.GetRetryCount(),
		"error", err)

	if !task.CanRetry() {
		// Crawl tasks land here immediately: their retries live in the
		// persisted backoff schedule, not the in-process queue.
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled",
		"type", string(task.GetType()),
		"id", task.GetID(),
		"retry_count", task.GetRetryCount(),
		"max_retries", task.GetMaxRetries(),
		"delay", retryDelay.String())

	go func() {
		time.Sleep(retryDelay)
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		default:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry",
					"type", string(task.GetType()), "id", task.GetID(), "error", retryErr)
			}
		}
	}()
}
