// CLAUDE:SUMMARY CLI entry point for unveil: one-shot poll, follow mode, HTTP server and MCP stdio server.
// Command unveil reveals code and Markdown files incrementally.
//
// Usage:
//
//	unveil poll main.rs notes.md            # poll each file once, print results as JSON lines
//	unveil follow main.rs                   # re-poll on every change, print results as JSON lines
//	unveil -lesson ./ownership serve        # HTTP API (+ MCP at /mcp) over a lesson folder
//	unveil mcp                              # MCP over stdio
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/unveil/dbopen"
	"github.com/hazyhaar/unveil/journal"
	"github.com/hazyhaar/unveil/kit"
	"github.com/hazyhaar/unveil/lesson"
	"github.com/hazyhaar/unveil/reveal"
	"github.com/hazyhaar/unveil/watch"
)

const version = "0.3.0"

func main() {
	configPath := flag.String("config", "", "path to unveil.yaml config file")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	root := flag.String("root", "", "confine polled paths to this directory")
	listen := flag.String("listen", "", "HTTP listen address for serve mode")
	journalDB := flag.String("journal", "", "SQLite poll journal path (empty disables)")
	lessonDir := flag.String("lesson", "", "lesson folder holding config.json or lesson.yaml")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "unveil:", err)
		os.Exit(2)
	}
	override(&cfg.LogLevel, *logLevel)
	override(&cfg.Root, *root)
	override(&cfg.Listen, *listen)
	override(&cfg.JournalDB, *journalDB)
	override(&cfg.Lesson, *lessonDir)

	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, flag.Args()); err != nil {
		logger.Error("unveil: fatal", "error", err)
		os.Exit(1)
	}
}

func override(dst *string, flagVal string) {
	if flagVal != "" {
		*dst = flagVal
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *appConfig, args []string) error {
	mode := "serve"
	if len(args) > 0 {
		mode, args = args[0], args[1:]
	}

	var cursor *lesson.Cursor
	if cfg.Lesson != "" {
		l, err := lesson.Open(cfg.Lesson)
		if err != nil {
			return err
		}
		if cursor, err = lesson.NewCursor(l); err != nil {
			return err
		}
		if cfg.Root == "" {
			cfg.Root = l.Dir
		}
		logger.Info("unveil: lesson loaded", "name", l.Manifest.Name, "snippets", l.Len())
	}

	opts := []reveal.Option{}
	var jr *journal.Journal
	if cfg.JournalDB != "" {
		db, err := dbopen.Open(cfg.JournalDB, dbopen.WithMkdirAll(), dbopen.WithSchema(journal.Schema))
		if err != nil {
			return fmt.Errorf("journal db: %w", err)
		}
		defer db.Close()
		jr = journal.New(db, journal.WithLogger(logger))
		defer jr.Close()
		if cfg.JournalRetention > 0 {
			if n, err := jr.Cleanup(ctx, cfg.JournalRetention); err != nil {
				logger.Warn("unveil: journal cleanup", "error", err)
			} else if n > 0 {
				logger.Info("unveil: journal cleanup", "deleted", n)
			}
		}
		opts = append(opts, reveal.WithRecorder(jr))
	}

	pipe := reveal.New(reveal.Config{
		Root:        cfg.Root,
		MaxFileSize: cfg.MaxFileSize,
		Tabs:        cfg.Tabs,
		Logger:      logger,
	}, opts...)

	if err := checkRoot(logger, cfg, pipe, cursor, mode); err != nil {
		return err
	}

	switch mode {
	case "poll":
		if len(args) == 0 {
			return errors.New("poll: at least one file required")
		}
		return runPoll(ctx, pipe, os.Stdout, args)
	case "follow":
		if len(args) != 1 {
			return errors.New("follow: exactly one file required")
		}
		return runFollow(ctx, logger, cfg, pipe, os.Stdout, args[0])
	case "serve":
		srv := newServer(pipe, cursor, jr, logger)
		srv.shield.RateLimit = cfg.RateLimit
		return runServe(ctx, logger, cfg, srv)
	case "mcp":
		srv := mcp.NewServer(&mcp.Implementation{Name: "unveil", Version: version}, nil)
		pipe.RegisterMCP(srv)
		return srv.Run(ctx, &mcp.StdioTransport{})
	}
	return fmt.Errorf("unknown mode %q (poll, follow, serve, mcp)", mode)
}

// checkRoot rejects a lesson folder lying outside the configured root, since
// its snippets could not be polled, and warns when a server mode runs with
// no root: any readable file on the host can then be requested.
func checkRoot(logger *slog.Logger, cfg *appConfig, pipe *reveal.Pipeline, cursor *lesson.Cursor, mode string) error {
	if cursor != nil {
		if _, err := pipe.Relative(cursor.Lesson().Dir); err != nil {
			return fmt.Errorf("lesson %s: %w", cursor.Lesson().Dir, err)
		}
	}
	if cfg.Root == "" && (mode == "serve" || mode == "mcp") {
		logger.Warn("unveil: no root configured, any readable file can be polled",
			"mode", mode, "listen", cfg.Listen)
	}
	return nil
}

func runPoll(ctx context.Context, pipe *reveal.Pipeline, out io.Writer, paths []string) error {
	enc := json.NewEncoder(out)
	ctx = kit.WithTransport(ctx, "cli")
	for _, p := range paths {
		res, err := pipe.RenderAndDiff(ctx, p)
		if err != nil {
			return err
		}
		if err := enc.Encode(res); err != nil {
			return err
		}
	}
	return nil
}

func runFollow(ctx context.Context, logger *slog.Logger, cfg *appConfig, pipe *reveal.Pipeline, out io.Writer, path string) error {
	if _, _, err := reveal.Detect(path); err != nil {
		return err
	}
	file, err := pipe.Resolve(path)
	if err != nil {
		return err
	}
	detector := watch.ModTime
	if cfg.Watch.Detector == "hash" {
		detector = watch.ContentHash
	}
	w := watch.New(file, watch.Options{
		Interval:    cfg.Watch.Interval,
		Debounce:    cfg.Watch.Debounce,
		Detector:    detector,
		FireOnStart: true,
		Logger:      logger,
	})

	enc := json.NewEncoder(out)
	ctx = kit.WithTransport(ctx, "watch")
	w.OnChange(ctx, func() error {
		res, err := pipe.RenderAndDiff(ctx, path)
		if err != nil {
			return err
		}
		return enc.Encode(res)
	})
	return nil
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *appConfig, s *server) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("unveil: listening", "addr", cfg.Listen, "root", cfg.Root)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("unveil: shutting down")
	return srv.Shutdown(shutdownCtx)
}
