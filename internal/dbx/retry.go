package dbx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/nostrchat/internal/common"
	"github.com/sethvargo/go-retry"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const maxWriteRetries = 5

// IsBusy reports whether err is a transient SQLite contention error
// (SQLITE_BUSY / SQLITE_LOCKED, including extended codes).
func IsBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

// RetryBusy runs fn, retrying with fibonacci backoff while it fails with a
// transient contention error. The retry budget is bounded; once exhausted
// the last error is surfaced wrapped in common.ErrorConflictExhausted.
// Non-contention errors abort immediately.
func RetryBusy(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(maxWriteRetries, retry.NewFibonacci(5*time.Millisecond))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if IsBusy(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil && IsBusy(err) {
		return fmt.Errorf("%w: %w", common.ErrorConflictExhausted, err)
	}
	return err
}
