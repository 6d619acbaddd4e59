package config

// Subscription is one feed the catalog follows, loaded from a YAML file
// in the feeds directory. The file name (without extension) becomes the
// subscription name.
type Subscription struct {
	Name     string       `yaml:"-"`
	Feed     FeedInfo     `yaml:"feed"`
	Settings FeedSettings `yaml:"settings"`
}

// FeedInfo identifies the remote feed.
type FeedInfo struct {
	URL   string `yaml:"url"`
	Title string `yaml:"title"` // optional hint until the first successful parse
}

// FeedSettings carries per-subscription overrides.
type FeedSettings struct {
	PollInterval int `yaml:"poll_interval"` // seconds; 0 means the global default
}
