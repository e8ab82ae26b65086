package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// appConfig is the optional YAML configuration. Flags override it.
type appConfig struct {
	Root             string        `yaml:"root"`
	Listen           string        `yaml:"listen"`
	JournalDB        string        `yaml:"journal_db"`
	JournalRetention time.Duration `yaml:"journal_retention"`
	Lesson           string        `yaml:"lesson"`
	LogLevel         string        `yaml:"log_level"`
	Tabs             int           `yaml:"tabs"`
	MaxFileSize      int64         `yaml:"max_file_size"`
	RateLimit        int           `yaml:"rate_limit"` // requests per client per minute, 0 disables
	Watch            watchConfig   `yaml:"watch"`
}

type watchConfig struct {
	Interval time.Duration `yaml:"interval"`
	Debounce time.Duration `yaml:"debounce"`
	Detector string        `yaml:"detector"` // mtime | hash
}

func defaultConfig() *appConfig {
	return &appConfig{
		Listen:    "127.0.0.1:8087",
		LogLevel:  "info",
		RateLimit: 600,
		Watch: watchConfig{
			Interval: 200 * time.Millisecond,
			Debounce: 150 * time.Millisecond,
			Detector: "mtime",
		},
	}
}

// loadConfig reads path over the defaults. An empty path returns the defaults.
func loadConfig(path string) (*appConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c *appConfig) validate() error {
	switch c.Watch.Detector {
	case "", "mtime", "hash":
	default:
		return fmt.Errorf("watch.detector must be mtime or hash, got %q", c.Watch.Detector)
	}
	if c.Watch.Interval < 0 || c.Watch.Debounce < 0 {
		return fmt.Errorf("watch durations must not be negative")
	}
	if c.Tabs < 0 {
		return fmt.Errorf("tabs must be >= 0")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be >= 0")
	}
	return nil
}
