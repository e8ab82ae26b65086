package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ErrRetriesExhausted is returned when a statement or transaction still hits
// a BUSY condition after every attempt. It wraps the last driver error.
var ErrRetriesExhausted = errors.New("dbopen: database stayed busy")

const (
	attempts = 3
	backoff  = 100 * time.Millisecond // multiplied by the attempt number
)

var busyMarkers = []string{"SQLITE_BUSY", "database is locked", "database table is locked"}

// IsBusy reports whether err is an SQLite BUSY or locked condition.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return slices.ContainsFunc(busyMarkers, func(m string) bool {
		return strings.Contains(msg, m)
	})
}

// retry runs op until it succeeds, fails with a non-busy error, or runs out
// of attempts. It sleeps attempt*backoff between tries.
func retry[T any](ctx context.Context, op func() (T, error)) (T, error) {
	var zero T
	for n := 1; ; n++ {
		v, err := op()
		if err == nil || !IsBusy(err) {
			return v, err
		}
		if n == attempts {
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
		}
		t := time.NewTimer(time.Duration(n) * backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, fmt.Errorf("dbopen: retry interrupted: %w", ctx.Err())
		case <-t.C:
		}
	}
}

// RunTx runs fn in a transaction, rolling back when fn fails and retrying the
// whole transaction while the database is busy.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	_, err := retry(ctx, func() (struct{}, error) {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return struct{}{}, fmt.Errorf("dbopen: begin: %w", err)
		}
		if err := fn(tx); err != nil {
			tx.Rollback()
			return struct{}{}, err
		}
		if err := tx.Commit(); err != nil {
			return struct{}{}, fmt.Errorf("dbopen: commit: %w", err)
		}
		return struct{}{}, nil
	})
	return err
}

// Exec runs a single statement, retrying while the database is busy.
func Exec(ctx context.Context, db *sql.DB, query string, args ...any) (sql.Result, error) {
	return retry(ctx, func() (sql.Result, error) {
		return db.ExecContext(ctx, query, args...)
	})
}
