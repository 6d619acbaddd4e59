package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBHost     string `long:"db-host" env:"DB_HOST" default:"localhost" description:"Database host"`
	DBPort     string `long:"db-port" env:"DB_PORT" default:"5432" description:"Database port"`
	DBUser     string `long:"db-user" env:"DB_USER" default:"podmill" description:"Database user"`
	DBPassword string `long:"db-password" env:"DB_PASSWORD" default:"podmill" description:"Database password (required)" required:"true"`
	DBName     string `long:"db-name" env:"DB_NAME" default:"podmill" description:"Database name"`

	// Application configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing subscription files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of concurrent crawl workers"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler tick interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for management endpoints (optional)"`
	RedisAddr         string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for response caching (optional)"`

	// Crawler tuning
	PollInterval     int   `long:"poll-interval" env:"POLL_INTERVAL" default:"3600" description:"Default feed polling interval in seconds"`
	FetchTimeout     int   `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-fetch timeout in seconds"`
	MaxFetchBytes    int64 `long:"max-fetch-bytes" env:"MAX_FETCH_BYTES" default:"10485760" description:"Maximum feed payload size in bytes"`
	BackoffBase      int   `long:"backoff-base" env:"BACKOFF_BASE" default:"600" description:"Base retry delay in seconds after a failed crawl"`
	BackoffMax       int   `long:"backoff-max" env:"BACKOFF_MAX" default:"86400" description:"Maximum retry delay in seconds"`
	DisableThreshold int   `long:"disable-threshold" env:"DISABLE_THRESHOLD" default:"10" description:"Consecutive failures before a show is disabled"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"podmill/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBHost:            raw.DBHost,
		DBPort:            raw.DBPort,
		DBUser:            raw.DBUser,
		DBPassword:        raw.DBPassword,
		DBName:            raw.DBName,
		FeedsDir:          raw.FeedsDir,
		Port:              raw.Port,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		RedisAddr:         raw.RedisAddr,
		PollInterval:      raw.PollInterval,
		FetchTimeout:      raw.FetchTimeout,
		MaxFetchBytes:     raw.MaxFetchBytes,
		BackoffBase:       raw.BackoffBase,
		BackoffMax:        raw.BackoffMax,
		DisableThreshold:  raw.DisableThreshold,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
