package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"

	"txchain/internal/core/tx"
)

// Compile-time check that TxResource implements tx.Resource interface.
var _ tx.Resource = (*TxResource)(nil)

// Tx is the tx.Handle produced by TxResource.
type Tx struct {
	db *gorm.DB
}

// committer returns the driver transaction. Errors recorded on the gorm
// session by earlier statements do not leak into commit/rollback results.
func (t *Tx) committer() (gorm.TxCommitter, error) {
	c, ok := t.db.Statement.ConnPool.(gorm.TxCommitter)
	if !ok || c == nil {
		return nil, gorm.ErrInvalidTransaction
	}
	return c, nil
}

// TxResource implements tx.Resource over gorm.
type TxResource struct {
	db *gorm.DB
}

func NewTxResource(db *gorm.DB) *TxResource {
	return &TxResource{db: db}
}

func (r *TxResource) Begin(ctx context.Context) (tx.Handle, error) {
	t := r.db.WithContext(ctx).Begin()
	if t.Error != nil {
		return nil, tx.NewResourceError(tx.OpBegin, t.Error)
	}
	return &Tx{db: t}, nil
}

func (r *TxResource) Commit(ctx context.Context, h tx.Handle) error {
	t, ok := h.(*Tx)
	if !ok || t == nil {
		return tx.NewResourceError(tx.OpCommit, tx.ErrInvalidHandle)
	}
	committer, err := t.committer()
	if err != nil {
		return tx.NewResourceError(tx.OpCommit, err)
	}
	return tx.NewResourceError(tx.OpCommit, committer.Commit())
}

func (r *TxResource) Rollback(ctx context.Context, h tx.Handle) error {
	t, ok := h.(*Tx)
	if !ok || t == nil {
		return tx.NewResourceError(tx.OpRollback, tx.ErrInvalidHandle)
	}
	committer, err := t.committer()
	if err != nil {
		return tx.NewResourceError(tx.OpRollback, err)
	}
	// sql.ErrTxDone means the transaction already ended, e.g. in a failed commit.
	if err := committer.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return tx.NewResourceError(tx.OpRollback, err)
	}
	return nil
}

// DB returns the open transaction if ctx carries one, otherwise the pool.
func (r *TxResource) DB(ctx context.Context) *gorm.DB {
	if t, ok := tx.HandleFromContext(ctx).(*Tx); ok && t != nil {
		return t.db.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}
