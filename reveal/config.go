// CLAUDE:SUMMARY Configuration struct and defaults for the reveal pipeline.
package reveal

import (
	"log/slog"

	"github.com/hazyhaar/unveil/horosafe"
)

// Config configures the reveal pipeline.
type Config struct {
	// Root confines polled paths. Relative paths are resolved under it and
	// may not escape it. Empty means paths are used as given.
	Root string `json:"root" yaml:"root"`

	// MaxFileSize caps a single read (default: horosafe.MaxFileSize).
	// Larger files are treated like unreadable ones.
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// Tabs expands tabs in code to that many spaces when > 0.
	Tabs int `json:"tabs" yaml:"tabs"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = horosafe.MaxFileSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}
