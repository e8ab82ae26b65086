// CLAUDE:SUMMARY Poll entry point: read a file, render it, sequence its units and diff against the session snapshot.
// Package reveal drives one poll of a watched file through the whole
// render-and-diff chain:
//
//	read → Detect → markup.Source → tree (annotate, flatten, sequence) → snapshot.Session.Compare
//
// Usage:
//
//	pipe := reveal.New(reveal.Config{Root: "lessons/ownership"})
//	res, err := pipe.RenderAndDiff(ctx, "01_move.rs")
//	for _, op := range res.Ops { ... }
package reveal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/unveil/horosafe"
	"github.com/hazyhaar/unveil/idgen"
	"github.com/hazyhaar/unveil/journal"
	"github.com/hazyhaar/unveil/kit"
	"github.com/hazyhaar/unveil/markup"
	"github.com/hazyhaar/unveil/snapshot"
	"github.com/hazyhaar/unveil/tree"
)

// ErrMalformedPath is returned for a path without a usable extension.
var ErrMalformedPath = errors.New("reveal: path has no extension")

// Detect derives the buffer class and language hint from a file name. The
// extensions md and markdown select prose; anything else selects code with
// the extension as hint.
func Detect(path string) (snapshot.Class, string, error) {
	ext := filepath.Ext(path)
	hint := strings.TrimPrefix(ext, ".")
	if hint == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedPath, path)
	}
	switch strings.ToLower(hint) {
	case "md", "markdown":
		return snapshot.ClassProse, hint, nil
	}
	return snapshot.ClassCode, hint, nil
}

// Recorder receives one journal entry per poll.
type Recorder interface {
	LogAsync(e *journal.Entry)
}

// Result is the outcome of one poll.
type Result struct {
	ID       string         `json:"id"`
	Path     string         `json:"path"`
	Class    snapshot.Class `json:"class"`
	Hint     string         `json:"hint"`
	Ops      snapshot.Ops   `json:"ops"`
	Units    int            `json:"units"`
	Duration time.Duration  `json:"duration_ns"`
}

// Counts returns the number of insert and delete operations.
func (r *Result) Counts() (inserts, deletes int) {
	for _, op := range r.Ops {
		if op.Sign == snapshot.Delete {
			deletes++
		} else {
			inserts++
		}
	}
	return inserts, deletes
}

// Pipeline renders files and diffs them against its session.
type Pipeline struct {
	cfg         Config
	logger      *slog.Logger
	src         markup.Source
	annotator   *tree.Annotator
	session     *snapshot.Session
	recorder    Recorder
	newID       idgen.Generator
	mdConverter *converter.Converter
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSource replaces the default chroma/goldmark renderer.
func WithSource(src markup.Source) Option { return func(p *Pipeline) { p.src = src } }

// WithSession shares an existing session instead of starting empty.
func WithSession(s *snapshot.Session) Option { return func(p *Pipeline) { p.session = s } }

// WithRecorder journals every poll.
func WithRecorder(r Recorder) Option { return func(p *Pipeline) { p.recorder = r } }

// WithIDGenerator overrides the poll ID strategy. Default: "poll_" + UUIDv7.
func WithIDGenerator(gen idgen.Generator) Option { return func(p *Pipeline) { p.newID = gen } }

// New creates a Pipeline with the given configuration.
func New(cfg Config, opts ...Option) *Pipeline {
	cfg.defaults()
	p := &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
		newID:  idgen.Prefixed("poll_", idgen.Default),
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
	for _, o := range opts {
		o(p)
	}
	if p.src == nil {
		p.src = markup.New(markup.Config{Tabs: cfg.Tabs, Logger: cfg.Logger})
	}
	if p.session == nil {
		p.session = snapshot.NewSession()
	}
	p.annotator = tree.NewAnnotator(p.src, p.logger)
	return p
}

// Session returns the session the pipeline diffs against.
func (p *Pipeline) Session() *snapshot.Session { return p.session }

// Resolve maps a caller-supplied path to the file to read, confined to
// Config.Root when one is set.
func (p *Pipeline) Resolve(path string) (string, error) {
	if p.cfg.Root == "" {
		return path, nil
	}
	return horosafe.SafePath(p.cfg.Root, path)
}

// Relative is the inverse of Resolve: it turns a file path into the path to
// poll, relative to Config.Root. Files outside the root fail with
// horosafe.ErrPathTraversal. Without a root the path is returned unchanged.
func (p *Pipeline) Relative(path string) (string, error) {
	if p.cfg.Root == "" {
		return path, nil
	}
	root, err := filepath.Abs(p.cfg.Root)
	if err != nil {
		return "", fmt.Errorf("reveal: root %s: %w", p.cfg.Root, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("reveal: %s: %w", path, err)
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", horosafe.ErrPathTraversal, path, p.cfg.Root)
	}
	return rel, nil
}

// Render turns text into its ordered unit sequence. Code whose hint no lexer
// recognises fails with markup.ErrUnsupportedFormat.
func (p *Pipeline) Render(class snapshot.Class, hint, text string) ([]string, error) {
	switch class {
	case snapshot.ClassCode:
		out, err := p.src.Highlight(text, hint)
		if err != nil {
			return nil, err
		}
		return p.annotator.Units(out, tree.CodeFamily), nil
	case snapshot.ClassProse:
		return p.annotator.Units(p.src.Convert(text), tree.ProseFamily), nil
	}
	return nil, fmt.Errorf("%w: %q", snapshot.ErrUnknownClass, class)
}

// RenderAndDiff polls path once: it reads the file, renders it, and returns
// the operations that turn the previous snapshot of the file's class into
// the new one. The snapshot is replaced only when rendering succeeded.
//
// An unreadable file renders as empty text, so a vanished file reveals as
// the deletion of every unit.
func (p *Pipeline) RenderAndDiff(ctx context.Context, path string) (*Result, error) {
	return p.run(ctx, path, false)
}

// RenderAndRestart polls path like RenderAndDiff but against an emptied
// snapshot of its class, so every unit is revealed from scratch. Used when
// switching to another snippet.
func (p *Pipeline) RenderAndRestart(ctx context.Context, path string) (*Result, error) {
	return p.run(ctx, path, true)
}

func (p *Pipeline) run(ctx context.Context, path string, restart bool) (*Result, error) {
	start := time.Now()
	res := &Result{ID: p.newID(), Path: path}

	err := p.poll(ctx, res, restart)
	res.Duration = time.Since(start)
	p.record(ctx, res, err)
	if err != nil {
		return nil, err
	}

	ins, del := res.Counts()
	p.logger.Debug("reveal: poll", "path", path, "class", res.Class, "restart", restart,
		"units", res.Units, "inserts", ins, "deletes", del, "duration", res.Duration)
	return res, nil
}

// poll fills res in place.
func (p *Pipeline) poll(ctx context.Context, res *Result, restart bool) error {
	class, hint, err := Detect(res.Path)
	if err != nil {
		return err
	}
	res.Class, res.Hint = class, hint

	file, err := p.Resolve(res.Path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	units, err := p.Render(class, hint, p.read(file))
	if err != nil {
		return fmt.Errorf("reveal: render %s: %w", res.Path, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	compare := p.session.Compare
	if restart {
		compare = p.session.Restart
	}
	ops, err := compare(class, units)
	if err != nil {
		return err
	}
	res.Ops, res.Units = ops, len(units)
	return nil
}

// read returns the file's text, or "" when it cannot be read.
func (p *Pipeline) read(path string) string {
	f, err := os.Open(path)
	if err != nil {
		p.logger.Warn("reveal: read failed, rendering empty", "path", path, "error", err)
		return ""
	}
	defer f.Close()
	data, err := horosafe.LimitedReadAll(f, p.cfg.MaxFileSize)
	if err != nil {
		p.logger.Warn("reveal: read failed, rendering empty", "path", path, "error", err)
		return ""
	}
	return string(data)
}

func (p *Pipeline) record(ctx context.Context, res *Result, err error) {
	if p.recorder == nil {
		return
	}
	ins, del := res.Counts()
	e := &journal.Entry{
		EntryID:    res.ID,
		Path:       res.Path,
		Class:      string(res.Class),
		Hint:       res.Hint,
		Transport:  kit.GetTransport(ctx),
		RequestID:  kit.GetRequestID(ctx),
		Inserts:    ins,
		Deletes:    del,
		Units:      res.Units,
		DurationMs: res.Duration.Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	p.recorder.LogAsync(e)
}
