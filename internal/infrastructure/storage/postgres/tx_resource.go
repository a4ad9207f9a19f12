package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"txchain/internal/core/tx"
)

// Compile-time check that TxResource implements tx.Resource interface.
var _ tx.Resource = (*TxResource)(nil)

// TxOptions configures transactions opened by TxResource.
type TxOptions struct {
	// StatementTimeout protects against long-running queries (default 30s).
	// Zero disables it.
	StatementTimeout time.Duration
}

// DefaultTxOptions returns production-safe defaults.
func DefaultTxOptions() TxOptions {
	return TxOptions{
		StatementTimeout: 30 * time.Second,
	}
}

// Querier is the query surface shared by the pool and an open transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB is satisfied by *pgxpool.Pool.
type DB interface {
	Querier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Tx is the tx.Handle produced by TxResource.
type Tx struct {
	pgx.Tx
}

// TxResource implements tx.Resource over a pgx pool.
type TxResource struct {
	db   DB
	opts TxOptions
}

// NewTxResource creates a resource over db (usually *pgxpool.Pool).
func NewTxResource(db DB, opts TxOptions) *TxResource {
	return &TxResource{db: db, opts: opts}
}

// NewTxResourceFromPool creates a resource with default options.
func NewTxResourceFromPool(pool *Pool) *TxResource {
	return NewTxResource(pool.Pool, DefaultTxOptions())
}

// Begin opens a read-write transaction.
func (r *TxResource) Begin(ctx context.Context) (tx.Handle, error) {
	pgxTx, err := r.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadWrite})
	if err != nil {
		return nil, tx.NewResourceError(tx.OpBegin, err)
	}

	// Set statement timeout for protection against runaway queries
	if r.opts.StatementTimeout > 0 {
		_, err = pgxTx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", r.opts.StatementTimeout.Milliseconds()))
		if err != nil {
			_ = pgxTx.Rollback(context.WithoutCancel(ctx))
			return nil, tx.NewResourceError(tx.OpBegin, fmt.Errorf("set statement_timeout: %w", err))
		}
	}

	return &Tx{Tx: pgxTx}, nil
}

// Commit commits the transaction behind h.
func (r *TxResource) Commit(ctx context.Context, h tx.Handle) error {
	t, ok := h.(*Tx)
	if !ok || t == nil {
		return tx.NewResourceError(tx.OpCommit, tx.ErrInvalidHandle)
	}
	return tx.NewResourceError(tx.OpCommit, t.Commit(ctx))
}

// Rollback rolls back the transaction behind h.
// A transaction already closed by a failed commit has nothing left to undo.
func (r *TxResource) Rollback(ctx context.Context, h tx.Handle) error {
	t, ok := h.(*Tx)
	if !ok || t == nil {
		return tx.NewResourceError(tx.OpRollback, tx.ErrInvalidHandle)
	}
	if err := t.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return tx.NewResourceError(tx.OpRollback, err)
	}
	return nil
}

// GetTx returns the current transaction from context, or nil if none.
func (r *TxResource) GetTx(ctx context.Context) *Tx {
	if t, ok := tx.HandleFromContext(ctx).(*Tx); ok {
		return t
	}
	return nil
}

// GetQuerier returns the open transaction if ctx carries one, otherwise the pool.
// This allows repos to work both inside and outside transactions.
func (r *TxResource) GetQuerier(ctx context.Context) Querier {
	if t := r.GetTx(ctx); t != nil {
		return t.Tx
	}
	return r.db
}
