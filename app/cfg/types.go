package cfg

type Cfg struct {
	// Database configuration
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Application configuration
	FeedsDir          string
	Port              string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	RedisAddr         string

	// Crawler tuning
	PollInterval     int
	FetchTimeout     int
	MaxFetchBytes    int64
	BackoffBase      int
	BackoffMax       int
	DisableThreshold int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
