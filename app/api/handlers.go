package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"podmill/app/cache"
	"podmill/app/database"
	"podmill/app/tasks"
)

const (
	defaultEpisodeLimit = 50
	maxEpisodeLimit     = 200
	episodeCacheTTL     = 60 * time.Second
)

func NewHandler(showRepo database.ShowRepository, episodeRepo database.EpisodeRepository,
	scheduler tasks.TaskSchedulerInterface, responseCache *cache.Cache) *Handler {
	return &Handler{
		showRepo:    showRepo,
		episodeRepo: episodeRepo,
		scheduler:   scheduler,
		cache:       responseCache,
	}
}

func (h *Handler) GetPodcasts(c *gin.Context) {
	shows, err := h.showRepo.GetShows()
	if err != nil {
		slog.Error("Database error", "operation", "get_shows", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	podcasts := make([]PodcastResponse, 0, len(shows))
	for _, show := range shows {
		podcasts = append(podcasts, podcastResponse(show))
	}

	c.JSON(http.StatusOK, gin.H{"podcasts": podcasts})
}

func (h *Handler) GetPodcast(c *gin.Context) {
	show := h.loadShow(c)
	if show == nil {
		return
	}

	response := podcastResponse(*show)
	if count, err := h.episodeRepo.GetEpisodeCount(show.ID); err == nil {
		response.EpisodeCount = &count
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) GetEpisodes(c *gin.Context) {
	show := h.loadShow(c)
	if show == nil {
		return
	}

	limit := defaultEpisodeLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(parsed, maxEpisodeLimit)
	}

	cacheKey := fmt.Sprintf("episodes:%s:%d", show.ID, limit)
	if h.cache != nil {
		if cached, err := h.cache.Get(c.Request.Context(), cacheKey); err == nil && cached != "" {
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			return
		}
	}

	episodes, err := h.episodeRepo.GetEpisodes(show.ID, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_episodes", "show_id", show.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	responses := make([]EpisodeResponse, 0, len(episodes))
	for _, episode := range episodes {
		responses = append(responses, episodeResponse(episode))
	}

	body := gin.H{"episodes": responses}

	if h.cache != nil {
		if encoded, err := json.Marshal(body); err == nil {
			if err := h.cache.Set(c.Request.Context(), cacheKey, string(encoded), episodeCacheTTL); err != nil {
				slog.Debug("Failed to cache episode response", "key", cacheKey, "error", err)
			}
		}
	}

	c.JSON(http.StatusOK, body)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if showCount, err := h.showRepo.GetShowCount(); err == nil {
		health["podcasts"] = showCount
	} else {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database unavailable"})
		return
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{}

	if showCount, err := h.showRepo.GetShowCount(); err == nil {
		stats["podcasts"] = showCount
	}
	if enabledCount, err := h.showRepo.GetEnabledShowCount(); err == nil {
		stats["enabled_podcasts"] = enabledCount
	}
	if episodeCount, err := h.episodeRepo.GetTotalEpisodeCount(); err == nil {
		stats["episodes"] = episodeCount
	}

	schedulerStats := h.scheduler.GetStats()
	stats["scheduler"] = gin.H{
		"total_processed": schedulerStats.TotalProcessed,
		"total_errors":    schedulerStats.TotalErrors,
		"queue_depth":     schedulerStats.QueueDepth,
		"in_flight":       schedulerStats.InFlight,
	}

	c.JSON(http.StatusOK, stats)
}

// APIEnablePodcast reactivates a disabled show: the failure streak is
// cleared and the show becomes immediately due for a crawl.
func (h *Handler) APIEnablePodcast(c *gin.Context) {
	h.setEnabled(c, true)
}

func (h *Handler) APIDisablePodcast(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *Handler) setEnabled(c *gin.Context, enabled bool) {
	show := h.loadShow(c)
	if show == nil {
		return
	}

	if err := h.showRepo.SetShowEnabled(show.ID, enabled); err != nil {
		slog.Error("Database error", "operation", "set_enabled", "show_id", show.ID, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	status := statusDisabled
	if enabled {
		status = statusActive
	}

	slog.Info("Podcast status changed", "show_id", show.ID, "feed", show.FeedURL, "status", status)
	c.JSON(http.StatusOK, gin.H{"id": show.ID, "status": status})
}

// APITriggerCrawl forces an immediate crawl of one show, respecting the
// per-show in-flight guarantee.
func (h *Handler) APITriggerCrawl(c *gin.Context) {
	show := h.loadShow(c)
	if show == nil {
		return
	}

	if err := h.scheduler.TriggerCrawl(show.ID); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": show.ID, "status": "crawl_enqueued"})
}

func (h *Handler) loadShow(c *gin.Context) *database.Show {
	id := c.Param("id")
	if id == "" {
		c.Status(http.StatusBadRequest)
		return nil
	}

	show, err := h.showRepo.GetShow(id)
	if err != nil {
		slog.Error("Database error", "operation", "get_show", "show_id", id, "error", err)
		c.Status(http.StatusInternalServerError)
		return nil
	}
	if show == nil {
		c.Status(http.StatusNotFound)
		return nil
	}

	return show
}
