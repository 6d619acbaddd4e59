package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads subscription files from the feeds directory.
type Loader struct {
	feedsDir        string
	defaultInterval int
}

func NewLoader(feedsDir string, defaultIntervalSeconds int) *Loader {
	return &Loader{feedsDir: feedsDir, defaultInterval: defaultIntervalSeconds}
}

// LoadAll loads every *.yaml / *.yml file in the feeds directory. A
// missing directory is not an error: the catalog simply starts empty.
func (l *Loader) LoadAll() ([]*Subscription, error) {
	if _, err := os.Stat(l.feedsDir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(l.feedsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(l.feedsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	files = append(files, ymlFiles...)

	subscriptions := make([]*Subscription, 0, len(files))
	for _, file := range files {
		sub, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validate(sub); err != nil {
			return nil, fmt.Errorf("invalid subscription %s: %w", file, err)
		}

		subscriptions = append(subscriptions, sub)
	}

	return subscriptions, nil
}

func (l *Loader) loadFile(path string) (*Subscription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var sub Subscription
	if err := yaml.Unmarshal(data, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Base(path)
	sub.Name = strings.TrimSuffix(base, filepath.Ext(base))

	l.setDefaults(&sub)

	return &sub, nil
}

func (l *Loader) setDefaults(sub *Subscription) {
	if sub.Settings.PollInterval == 0 {
		sub.Settings.PollInterval = l.defaultInterval
	}
}

func (l *Loader) validate(sub *Subscription) error {
	if sub.Feed.URL == "" {
		return fmt.Errorf("feed URL is required")
	}
	if sub.Settings.PollInterval < 0 {
		return fmt.Errorf("poll interval must be non-negative")
	}
	return nil
}
