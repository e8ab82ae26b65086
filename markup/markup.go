// CLAUDE:SUMMARY Markup source adapter: turns code or Markdown text into HTML via chroma and goldmark.
// Package markup obtains decorated HTML for a buffer from its raw text.
//
// Two renderers sit behind the Source interface:
//   - Highlight: program code, tokenised by chroma and emitted as class-tagged spans
//   - Convert: Markdown prose, rendered by goldmark and sanitised by bluemonday
//
// Usage:
//
//	r := markup.New(markup.Config{})
//	html, err := r.Highlight("fn main() {}", "rs")
//	page := r.Convert("# Title\n\nSome prose.")
package markup

import (
	"errors"
	"log/slog"
)

// ErrUnsupportedFormat is returned when no lexer matches a language hint.
var ErrUnsupportedFormat = errors.New("markup: unsupported format")

// Source produces markup for raw text. Implementations must be safe for
// concurrent use.
type Source interface {
	// Highlight renders code in the language named or implied by hint.
	Highlight(text, hint string) (string, error)
	// Convert renders Markdown prose. It never fails.
	Convert(text string) string
}

// Config configures a Renderer.
type Config struct {
	// Tabs, when > 0, expands tab characters in code to that many spaces.
	Tabs int `json:"tabs" yaml:"tabs"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Renderer is the default Source: chroma for code, goldmark for prose.
type Renderer struct {
	highlighter *Highlighter
	converter   *Converter
}

// New creates a Renderer. The goldmark engine and sanitiser policy are built
// once here and shared read-only afterwards.
func New(cfg Config) *Renderer {
	cfg.defaults()
	return &Renderer{
		highlighter: NewHighlighter(cfg.Tabs),
		converter:   NewConverter(cfg.Logger),
	}
}

// Highlight implements Source.
func (r *Renderer) Highlight(text, hint string) (string, error) {
	return r.highlighter.Highlight(text, hint)
}

// Convert implements Source.
func (r *Renderer) Convert(text string) string {
	return r.converter.Convert(text)
}
