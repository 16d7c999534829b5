package database

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const (
	maxRetries = 100
	baseDelay  = 10 * time.Millisecond
	maxDelay   = 25 * time.Millisecond
)

// isRetryableError checks if the error is a retryable SQLite error
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked")
}

// backoff sleeps before the next attempt. It returns false if ctx is done.
func backoff(ctx context.Context, attempt int) bool {
	// Exponential backoff with jitter
	delay := time.Duration(attempt+1) * baseDelay
	if delay > maxDelay {
		delay = maxDelay
	}
	// Add random jitter (up to 50% of delay)
	jitter := time.Duration(rand.Int63n(int64(delay) / 2))

	timer := time.NewTimer(delay + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// retryableExec executes a SQL statement with retry logic for lock conflicts
func (db *Database) retryableExec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		result, err = db.mainDB.ExecContext(ctx, query, args...)
		if !isRetryableError(err) {
			return result, err
		}
		db.logRetry("exec", attempt, query, err)
		if attempt < maxRetries-1 && !backoff(ctx, attempt) {
			return result, ctx.Err()
		}
	}

	return result, err
}

// retryableQueryRowScan executes a QueryRow and Scan with retry logic
func (db *Database) retryableQueryRowScan(ctx context.Context, query string, args []interface{}, dest ...interface{}) error {
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err = db.mainDB.QueryRowContext(ctx, query, args...).Scan(dest...)
		if !isRetryableError(err) {
			return err
		}
		db.logRetry("query_row", attempt, query, err)
		if attempt < maxRetries-1 && !backoff(ctx, attempt) {
			return ctx.Err()
		}
	}

	return err
}

// retryableQuery executes a query that returns multiple rows with retry logic
func (db *Database) retryableQuery(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		rows, err = db.mainDB.QueryContext(ctx, query, args...)
		if !isRetryableError(err) {
			return rows, err
		}
		db.logRetry("query", attempt, query, err)
		if attempt < maxRetries-1 && !backoff(ctx, attempt) {
			return nil, ctx.Err()
		}
	}

	return rows, err
}

// retryableTransactionExec executes a transaction with retry logic
func (db *Database) retryableTransactionExec(ctx context.Context, txFunc func(*sql.Tx) error) error {
	var err error

	for attempt := 0; attempt < maxRetries; attempt++ {
		err = runTx(ctx, db.mainDB, txFunc)
		if !isRetryableError(err) {
			return err
		}
		db.logRetry("transaction", attempt, "", err)
		if attempt < maxRetries-1 && !backoff(ctx, attempt) {
			return ctx.Err()
		}
	}

	return err
}

func runTx(ctx context.Context, db *sql.DB, txFunc func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := txFunc(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (db *Database) logRetry(op string, attempt int, query string, err error) {
	db.log.Warn("SQLite retry",
		zap.String("op", op),
		zap.Int("attempt", attempt+1),
		zap.Int("max", maxRetries),
		zap.String("query", truncateString(query, 50)),
		zap.Error(err))
}

// truncateString truncates a string to the specified length
func truncateString(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length]
}
