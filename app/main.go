package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"podmill/app/api"
	"podmill/app/cache"
	"podmill/app/cfg"
	"podmill/app/config"
	"podmill/app/database"
	"podmill/app/feed"
	"podmill/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting podmill", "version", appCfg.Version)

	db, err := database.NewConnection(
		appCfg.DBHost, appCfg.DBPort, appCfg.DBUser,
		appCfg.DBPassword, appCfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database ready", "migration_version", version, "dirty", dirty)

	loader := config.NewLoader(appCfg.FeedsDir, appCfg.PollInterval)
	subscriptions, err := loader.LoadAll()
	if err != nil {
		log.Fatalf("Failed to load subscriptions: %v", err)
	}
	slog.Info("Loaded subscriptions", "count", len(subscriptions), "dir", appCfg.FeedsDir)

	showRepo := database.NewShowRepository(db)
	episodeRepo := database.NewEpisodeRepository(db)
	catalogStore := database.NewCatalogStore(db)

	fetcher := feed.NewFetcher(appCfg.UserAgent,
		time.Duration(appCfg.FetchTimeout)*time.Second, appCfg.MaxFetchBytes)
	parser := feed.NewParser()
	reconciler := feed.NewReconciler()

	scheduler := tasks.NewScheduler(showRepo, episodeRepo, catalogStore,
		fetcher, parser, reconciler, subscriptions, tasks.Options{
			Interval:         time.Duration(appCfg.SchedulerInterval) * time.Second,
			WorkerCount:      appCfg.WorkerCount,
			PollInterval:     time.Duration(appCfg.PollInterval) * time.Second,
			BackoffBase:      time.Duration(appCfg.BackoffBase) * time.Second,
			BackoffMax:       time.Duration(appCfg.BackoffMax) * time.Second,
			DisableThreshold: appCfg.DisableThreshold,
		})
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Crawl scheduler started", "workers", appCfg.WorkerCount, "interval_seconds", appCfg.SchedulerInterval)

	var responseCache *cache.Cache
	if appCfg.RedisAddr != "" {
		responseCache, err = cache.New(appCfg.RedisAddr)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer responseCache.Close()
		slog.Info("Response cache enabled", "addr", appCfg.RedisAddr)
	}

	handler := api.NewHandler(showRepo, episodeRepo, scheduler, responseCache)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler and cache are stopped via defer: the scheduler cancels
	// its context, aborting in-flight fetches and rolling back any open
	// store transactions.
	slog.Info("Shutdown complete")
}
