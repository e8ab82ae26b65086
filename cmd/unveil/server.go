package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/unveil/horosafe"
	"github.com/hazyhaar/unveil/journal"
	"github.com/hazyhaar/unveil/kit"
	"github.com/hazyhaar/unveil/lesson"
	"github.com/hazyhaar/unveil/markup"
	"github.com/hazyhaar/unveil/reveal"
	"github.com/hazyhaar/unveil/shield"
	"github.com/hazyhaar/unveil/snapshot"
)

var errMissingParam = errors.New("missing query parameter")

type server struct {
	pipe    *reveal.Pipeline
	cursor  *lesson.Cursor   // nil without a lesson
	journal *journal.Journal // nil without a journal
	logger  *slog.Logger
	shield  shield.Options
}

func newServer(pipe *reveal.Pipeline, cursor *lesson.Cursor, jr *journal.Journal, logger *slog.Logger) *server {
	if logger == nil {
		logger = slog.Default()
	}
	return &server{pipe: pipe, cursor: cursor, journal: jr, logger: logger, shield: shield.DefaultOptions()}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	for _, mw := range shield.Stack(s.shield) {
		r.Use(mw)
	}
	r.Use(kitContext)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok", "version": version})
	})

	r.Get("/api/poll", s.handlePoll)
	r.Get("/api/transcript", s.handleTranscript)
	r.Post("/api/reset", s.handleReset)

	r.Route("/api/lesson", func(r chi.Router) {
		r.Get("/", s.handleLesson)
		r.Post("/next", s.handleStep(true))
		r.Post("/previous", s.handleStep(false))
		r.Post("/rewind", s.handleRewind)
	})

	r.Route("/api/journal", func(r chi.Router) {
		r.Get("/", s.handleJournal)
		r.Get("/stats", s.handleJournalStats)
	})

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "unveil", Version: version}, nil)
	s.pipe.RegisterMCP(mcpSrv)
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))

	return r
}

// kitContext tags each request with its transport and chi request ID.
func kitContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		ctx = kit.WithRequestID(ctx, middleware.GetReqID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) handlePoll(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, errStatus(errMissingParam), errMissingParam)
		return
	}
	res, err := s.pipe.RenderAndDiff(r.Context(), path)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, 200, res)
}

func (s *server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	class, err := snapshot.ParseClass(r.URL.Query().Get("class"))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	md, err := s.pipe.Transcript(class)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(200)
	w.Write([]byte(md))
}

func (s *server) handleReset(w http.ResponseWriter, r *http.Request) {
	class, err := snapshot.ParseClass(r.URL.Query().Get("class"))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	if err := s.pipe.Session().Reset(class); err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, 200, map[string]string{"class": string(class), "status": "reset"})
}

type lessonView struct {
	Name     string         `json:"name"`
	Count    int            `json:"count"`
	Snippet  lesson.Snippet `json:"snippet"`
	Moved    *bool          `json:"moved,omitempty"`
	Revealed *reveal.Result `json:"result,omitempty"`
}

func (s *server) handleLesson(w http.ResponseWriter, _ *http.Request) {
	if s.cursor == nil {
		writeJSON(w, 404, map[string]string{"error": "no lesson loaded"})
		return
	}
	snip, err := s.cursor.Current()
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	l := s.cursor.Lesson()
	writeJSON(w, 200, lessonView{Name: l.Manifest.Name, Count: l.Len(), Snippet: snip})
}

// handleStep moves the cursor and polls the new snippet. Unless
// ?stacked=1, the snippet reveals from scratch; stacked keeps what is on
// screen and reveals only the difference.
func (s *server) handleStep(forward bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cursor == nil {
			writeJSON(w, 404, map[string]string{"error": "no lesson loaded"})
			return
		}
		step := s.cursor.Previous
		if forward {
			step = s.cursor.Next
		}
		snip, moved, err := step()
		if err != nil {
			writeError(w, errStatus(err), err)
			return
		}
		stacked, _ := strconv.ParseBool(r.URL.Query().Get("stacked"))
		s.revealSnippet(w, r, snip, moved, moved && !stacked)
	}
}

// handleRewind returns to the first snippet and reveals it from scratch.
func (s *server) handleRewind(w http.ResponseWriter, r *http.Request) {
	if s.cursor == nil {
		writeJSON(w, 404, map[string]string{"error": "no lesson loaded"})
		return
	}
	before, err := s.cursor.Current()
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	snip, err := s.cursor.Rewind()
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	s.revealSnippet(w, r, snip, before.Index != 0, true)
}

// revealSnippet polls snip through the pipeline. The snippet's file is
// addressed relative to the pipeline root, which need not be the lesson
// folder.
func (s *server) revealSnippet(w http.ResponseWriter, r *http.Request, snip lesson.Snippet, moved, restart bool) {
	path, err := s.pipe.Relative(snip.Path)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	poll := s.pipe.RenderAndDiff
	if restart {
		poll = s.pipe.RenderAndRestart
	}
	res, err := poll(r.Context(), path)
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	l := s.cursor.Lesson()
	writeJSON(w, 200, lessonView{Name: l.Manifest.Name, Count: l.Len(), Snippet: snip, Moved: &moved, Revealed: res})
}

func (s *server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, 404, map[string]string{"error": "journal disabled"})
		return
	}
	entries, err := s.journal.Recent(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, 200, entries)
}

func (s *server) handleJournalStats(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, 404, map[string]string{"error": "journal disabled"})
		return
	}
	st, err := s.journal.Stats(r.Context())
	if err != nil {
		writeError(w, errStatus(err), err)
		return
	}
	writeJSON(w, 200, st)
}

// errStatus maps pipeline errors to HTTP status codes.
func errStatus(err error) int {
	switch {
	case errors.Is(err, markup.ErrUnsupportedFormat), errors.Is(err, reveal.ErrMalformedPath):
		return http.StatusUnprocessableEntity
	case errors.Is(err, horosafe.ErrPathTraversal),
		errors.Is(err, snapshot.ErrUnknownClass),
		errors.Is(err, errMissingParam):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
