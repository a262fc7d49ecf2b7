package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/safar/electronics-store/internal/logger"
	"go.uber.org/zap"
)

const initialRetryBackoff = 50 * time.Millisecond

type TxOptions struct {
	IsolationLevel sql.IsolationLevel
	ReadOnly       bool
	MaxRetries     int
}

// DefaultTxOptions suits single-row stock adjustments and cart edits.
func DefaultTxOptions() TxOptions {
	return TxOptions{IsolationLevel: sql.LevelReadCommitted, MaxRetries: 3}
}

// SerializableTxOptions is used by the checkout pipeline and the payment
// simulator, which must commit all of their writes or none.
func SerializableTxOptions() TxOptions {
	return TxOptions{IsolationLevel: sql.LevelSerializable, MaxRetries: 3}
}

// SnapshotTxOptions gives metric recording one consistent view of the
// orders it aggregates.
func SnapshotTxOptions() TxOptions {
	return TxOptions{IsolationLevel: sql.LevelRepeatableRead}
}

func WithTransaction(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: opts.IsolationLevel, ReadOnly: opts.ReadOnly})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// WithRetry re-runs fn in a fresh transaction while it fails with a
// retryable error. Exhausting the retries is reported as ErrConflict.
func WithRetry(ctx context.Context, db *sql.DB, opts TxOptions, fn func(*sql.Tx) error) error {
	log := logger.FromContext(ctx)
	backoff := initialRetryBackoff

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := WithTransaction(ctx, db, opts, fn)
		if err == nil {
			if attempt > 0 {
				log.Debug("transaction committed after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		class := ClassifyError(err)
		if class == ErrorClassPermanent {
			return err
		}

		if attempt == opts.MaxRetries {
			log.Warn("transaction retries exhausted",
				zap.Int("max_retries", opts.MaxRetries),
				zap.Stringer("class", class),
				zap.Error(err),
			)
			exhausted := ErrConflict
			if IsLockNotAvailable(err) {
				exhausted = ErrLockTimeout
			}
			return fmt.Errorf("%w: max retries (%d) exceeded: %w", exhausted, opts.MaxRetries, err)
		}

		log.Debug("retrying transaction",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Stringer("class", class),
			zap.Error(err),
		)

		if err := sleepWithJitter(ctx, backoff); err != nil {
			return err
		}
		backoff *= 2
	}
}

func sleepWithJitter(ctx context.Context, backoff time.Duration) error {
	jitter := time.Duration(rand.Int63n(int64(backoff / 4)))

	timer := time.NewTimer(backoff + jitter)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
