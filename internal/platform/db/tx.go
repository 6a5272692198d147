package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medstock/medstock/internal/platform/errs"
)

type contextKey string

const txKey contextKey = "db_tx"

// SQLSTATE codes that indicate a retryable conflict rather than a broken
// request: lock_not_available, serialization_failure, deadlock_detected.
const (
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// TxFromContext retrieves the transaction placed in the context by
// InSerializableTx, or nil when the caller runs outside a transaction.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey).(pgx.Tx)
	return tx
}

// WithTx returns a context carrying tx so that repositories participate in
// the same transaction.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey, tx)
}

// InSerializableTx runs fn inside a serializable transaction with a bounded
// row-lock wait. Every ledger mutation goes through here: the paired stock
// update and activity append either both commit or neither does.
//
// A lock-wait timeout, serialization failure, or deadlock surfaces as a
// retryable errs.ConcurrencyError; retrying is the caller's decision.
func InSerializableTx(ctx context.Context, pool *pgxpool.Pool, lockTimeout time.Duration, fn func(ctx context.Context) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if lockTimeout > 0 {
		timeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, timeout); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
	}

	if err := fn(WithTx(ctx, tx)); err != nil {
		return mapConflict(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return mapConflict(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// TxRunner runs a unit of work atomically. Services depend on this type
// instead of a pool so tests can substitute a passthrough runner.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// NewTxRunner builds the production TxRunner backed by InSerializableTx.
func NewTxRunner(pool *pgxpool.Pool, lockTimeout time.Duration) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return InSerializableTx(ctx, pool, lockTimeout, fn)
	}
}

// mapConflict translates Postgres conflict SQLSTATEs into the retryable
// ConcurrencyError; everything else passes through unchanged.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable:
			return errs.Concurrencyf("row lock not acquired within timeout")
		case codeSerializationFailure, codeDeadlockDetected:
			return errs.Concurrencyf("transaction conflict: %s", pgErr.Code)
		}
	}
	return err
}
