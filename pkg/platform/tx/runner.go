package tx

import (
	"context"
	"database/sql"
	"sync"
	"time"

	dErrors "qsync/pkg/domain-errors"
)

// defaultTxTimeout is the maximum duration for a transaction without a deadline.
const defaultTxTimeout = 5 * time.Second

// Runner provides the transactional boundary for store mutations. fn receives
// a context that stores use to join the transaction.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// SQLRunner wraps a database transaction. Nested calls join the outer one.
type SQLRunner struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLRunner(db *sql.DB) *SQLRunner {
	return &SQLRunner{db: db, timeout: defaultTxTimeout}
}

func (r *SQLRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := From(ctx); ok {
		return fn(ctx)
	}
	ctx, cancel, err := begin(ctx, r.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit transaction")
	}
	return nil
}

// LockRunner serializes in-memory mutations behind one lock so a guard check
// and the write it protects cannot interleave with another mutation.
type LockRunner struct {
	mu      sync.Mutex
	timeout time.Duration
}

func NewLockRunner() *LockRunner {
	return &LockRunner{timeout: defaultTxTimeout}
}

type lockHeldKey struct{}

func (r *LockRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if held, _ := ctx.Value(lockHeldKey{}).(*LockRunner); held == r {
		return fn(ctx)
	}
	ctx, cancel, err := begin(ctx, r.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(context.WithValue(ctx, lockHeldKey{}, r))
}

func begin(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc, error) {
	if err := ctx.Err(); err != nil {
		return ctx, func() {}, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, cancel, nil
}
