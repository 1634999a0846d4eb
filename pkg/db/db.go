// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cloudflare/backoff"
	"github.com/lib/pq"
)

const (
	lockNotAvailableErrorCode pq.ErrorCode = "55P03"
	maxBackoffDuration                     = 1 * time.Minute
	backoffInterval                        = 1 * time.Second
)

// Queryer is the part of the database surface shared by *sql.DB and *sql.Tx.
// Audit operations that must run inside a transaction take the transaction as
// a Queryer; operations that must not run inside one take the connection.
type Queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type DB interface {
	Queryer
	WithRetryableTransaction(ctx context.Context, f func(context.Context, *sql.Tx) error) error
	Close() error
}

// RDB wraps a *sql.DB and retries statements using an exponential backoff
// (with jitter) on lock_timeout errors.
type RDB struct {
	DB *sql.DB
}

// ExecContext wraps sql.DB.ExecContext, retrying on lock_timeout errors.
func (db *RDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)

	for {
		res, err := db.DB.ExecContext(ctx, query, args...)
		if err == nil {
			return res, nil
		}

		if err := retryAfter(ctx, b, err); err != nil {
			return nil, err
		}
	}
}

// QueryContext wraps sql.DB.QueryContext, retrying on lock_timeout errors.
func (db *RDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	b := backoff.New(maxBackoffDuration, backoffInterval)

	for {
		rows, err := db.DB.QueryContext(ctx, query, args...)
		if err == nil {
			return rows, nil
		}

		if err := retryAfter(ctx, b, err); err != nil {
			return nil, err
		}
	}
}

// QueryRowContext wraps sql.DB.QueryRowContext. Errors surface on Scan, so no
// retry is possible here.
func (db *RDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.DB.QueryRowContext(ctx, query, args...)
}

// WithRetryableTransaction runs `f` in a transaction, retrying the whole
// transaction on lock_timeout errors.
func (db *RDB) WithRetryableTransaction(ctx context.Context, f func(context.Context, *sql.Tx) error) error {
	b := backoff.New(maxBackoffDuration, backoffInterval)

	for {
		tx, err := db.DB.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		err = f(ctx, tx)
		if err == nil {
			return tx.Commit()
		}

		if errRollback := tx.Rollback(); errRollback != nil {
			return errRollback
		}

		if err := retryAfter(ctx, b, err); err != nil {
			return err
		}
	}
}

func (db *RDB) Close() error {
	return db.DB.Close()
}

// retryAfter sleeps for the next backoff interval if err is a lock_timeout
// error, and returns err itself otherwise.
func retryAfter(ctx context.Context, b *backoff.Backoff, err error) error {
	pqErr := &pq.Error{}
	if !errors.As(err, &pqErr) || pqErr.Code != lockNotAvailableErrorCode {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.Duration()):
		return nil
	}
}

// IsUniqueViolation reports whether err is a postgres unique_violation error.
func IsUniqueViolation(err error) bool {
	pqErr := &pq.Error{}
	return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
}

// ScanFirstValue scans the first value of the first row of `rows`, assuming a
// single-row, single-column result set.
func ScanFirstValue[T any](rows *sql.Rows, dest *T) error {
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(dest); err != nil {
			return err
		}
	}
	return rows.Err()
}
