package markup

import (
	"bytes"
	"log/slog"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Converter renders Markdown to sanitised HTML.
type Converter struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	logger *slog.Logger
}

// NewConverter builds the goldmark engine (GFM extensions) and the UGC
// sanitiser policy. Fenced code keeps its language-* class so embedded code
// blocks can be re-highlighted later.
func NewConverter(logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+#.-]+$`)).OnElements("code")
	policy.AllowAttrs("class").OnElements("pre", "span")
	return &Converter{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: policy,
		logger: logger,
	}
}

// Convert renders text. A render error keeps whatever was written so far.
func (c *Converter) Convert(text string) string {
	var buf bytes.Buffer
	if err := c.md.Convert([]byte(text), &buf); err != nil {
		c.logger.Warn("markup: markdown render incomplete", "error", err)
	}
	return c.policy.Sanitize(buf.String())
}
