// CLAUDE:SUMMARY SQLite poll journal: one row per render-and-diff poll, sync or batched async writes.
// Package journal records every poll of the reveal pipeline in SQLite so a
// session can be inspected after the fact: what was polled, through which
// transport, how many units changed and how long it took.
//
// Writes go through dbopen's BUSY-retry helpers. LogAsync batches entries in
// a background goroutine; Close flushes whatever is pending.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/unveil/dbopen"
	"github.com/hazyhaar/unveil/idgen"
)

// Schema creates the journal table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS poll_journal (
	entry_id      TEXT PRIMARY KEY,
	timestamp     INTEGER NOT NULL,
	path          TEXT NOT NULL,
	class         TEXT NOT NULL DEFAULT '',
	hint          TEXT NOT NULL DEFAULT '',
	transport     TEXT NOT NULL DEFAULT 'http',
	request_id    TEXT NOT NULL DEFAULT '',
	inserts       INTEGER NOT NULL DEFAULT 0,
	deletes       INTEGER NOT NULL DEFAULT 0,
	units         INTEGER NOT NULL DEFAULT 0,
	duration_ms   INTEGER NOT NULL DEFAULT 0,
	status        TEXT NOT NULL DEFAULT 'success',
	error_message TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_poll_journal_ts ON poll_journal(timestamp);
`

const (
	batchSize     = 32
	flushInterval = 50 * time.Millisecond
	queueSize     = 1024
)

// Entry is one recorded poll.
type Entry struct {
	EntryID    string `json:"entry_id"`
	Timestamp  int64  `json:"timestamp"` // unix ms
	Path       string `json:"path"`
	Class      string `json:"class"`
	Hint       string `json:"hint"`
	Transport  string `json:"transport"`
	RequestID  string `json:"request_id,omitempty"`
	Inserts    int    `json:"inserts"`
	Deletes    int    `json:"deletes"`
	Units      int    `json:"units"`
	DurationMs int64  `json:"duration_ms"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Journal writes entries to the poll_journal table.
type Journal struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan *Entry
	done   chan struct{}
	once   sync.Once
}

// Option configures a Journal.
type Option func(*Journal)

// WithIDGenerator overrides the entry ID strategy. Default: idgen.Default.
func WithIDGenerator(gen idgen.Generator) Option { return func(j *Journal) { j.newID = gen } }

// WithLogger sets the logger used for async write failures.
func WithLogger(l *slog.Logger) Option { return func(j *Journal) { j.logger = l } }

// New creates a Journal on db and starts its async writer. Call Init once
// before use unless the schema was applied with dbopen.WithSchema(Schema).
func New(db *sql.DB, opts ...Option) *Journal {
	j := &Journal{
		db:    db,
		newID: idgen.Default,
		queue: make(chan *Entry, queueSize),
		done:  make(chan struct{}),
	}
	for _, o := range opts {
		o(j)
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	go j.run()
	return j
}

// Init applies Schema.
func (j *Journal) Init() error {
	if _, err := j.db.Exec(Schema); err != nil {
		return fmt.Errorf("journal: init schema: %w", err)
	}
	return nil
}

func (j *Journal) fillDefaults(e *Entry) {
	if e.EntryID == "" {
		e.EntryID = j.newID()
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	if e.Transport == "" {
		e.Transport = "http"
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}
}

const insertSQL = `INSERT INTO poll_journal
	(entry_id, timestamp, path, class, hint, transport, request_id,
	 inserts, deletes, units, duration_ms, status, error_message)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func args(e *Entry) []any {
	return []any{
		e.EntryID, e.Timestamp, e.Path, e.Class, e.Hint, e.Transport, e.RequestID,
		e.Inserts, e.Deletes, e.Units, e.DurationMs, e.Status, e.Error,
	}
}

// Log writes e synchronously, filling ID, timestamp, transport and status
// when unset.
func (j *Journal) Log(ctx context.Context, e *Entry) error {
	j.fillDefaults(e)
	if _, err := dbopen.Exec(ctx, j.db, insertSQL, args(e)...); err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	return nil
}

// LogAsync queues e for the background writer. Entries logged after Close
// are dropped.
func (j *Journal) LogAsync(e *Entry) {
	j.fillDefaults(e)
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.logger.Debug("journal: entry dropped after close", "entry_id", e.EntryID)
		return
	}
	j.queue <- e
}

// Close stops the background writer after flushing pending entries.
func (j *Journal) Close() error {
	j.once.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.queue)
		j.mu.Unlock()
	})
	<-j.done
	return nil
}

func (j *Journal) run() {
	defer close(j.done)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]*Entry, 0, batchSize)
	for {
		select {
		case e, ok := <-j.queue:
			if !ok {
				j.flush(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= batchSize {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		}
	}
}

func (j *Journal) flush(batch []*Entry) {
	if len(batch) == 0 {
		return
	}
	err := dbopen.RunTx(context.Background(), j.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(insertSQL)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range batch {
			if _, err := stmt.Exec(args(e)...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		j.logger.Error("journal: batch flush failed", "entries", len(batch), "error", err)
	}
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `SELECT entry_id, timestamp, path, class, hint, transport,
		request_id, inserts, deletes, units, duration_ms, status, error_message
		FROM poll_journal ORDER BY timestamp DESC, entry_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.EntryID, &e.Timestamp, &e.Path, &e.Class, &e.Hint, &e.Transport,
			&e.RequestID, &e.Inserts, &e.Deletes, &e.Units, &e.DurationMs, &e.Status, &e.Error); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats aggregates the whole journal.
type Stats struct {
	Polls   int64 `json:"polls"`
	Errors  int64 `json:"errors"`
	Inserts int64 `json:"inserts"`
	Deletes int64 `json:"deletes"`
}

// Stats returns totals over every recorded poll.
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*),
		COALESCE(SUM(status = 'error'), 0),
		COALESCE(SUM(inserts), 0),
		COALESCE(SUM(deletes), 0)
		FROM poll_journal`).Scan(&s.Polls, &s.Errors, &s.Inserts, &s.Deletes)
	if err != nil {
		return Stats{}, fmt.Errorf("journal: stats: %w", err)
	}
	return s, nil
}

// Cleanup deletes entries older than maxAge and returns how many went.
func (j *Journal) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()
	var n int64
	err := dbopen.RunTx(ctx, j.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM poll_journal WHERE timestamp < ?`, cutoff)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("journal: cleanup: %w", err)
	}
	return n, nil
}
