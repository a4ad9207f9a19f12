package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txchain/internal/core/proxy"
	"txchain/internal/core/tx"
)

// Mock objects

type mockTx struct {
	pgx.Tx // nil; only the methods below are used

	execs     []string
	execErr   error
	commits   int
	rollbacks int
	commitErr error
	closed    bool
}

func (m *mockTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.execs = append(m.execs, sql)
	return pgconn.NewCommandTag("SET"), m.execErr
}

func (m *mockTx) Commit(ctx context.Context) error {
	m.commits++
	if m.closed {
		return pgx.ErrTxClosed
	}
	m.closed = true
	return m.commitErr
}

func (m *mockTx) Rollback(ctx context.Context) error {
	m.rollbacks++
	if m.closed {
		return pgx.ErrTxClosed
	}
	m.closed = true
	return nil
}

type mockDB struct {
	tx       *mockTx
	beginErr error
	opts     []pgx.TxOptions
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockDB) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	m.opts = append(m.opts, opts)
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return m.tx, nil
}

func TestTxResource_BeginSetsStatementTimeout(t *testing.T) {
	db := &mockDB{tx: &mockTx{}}
	r := NewTxResource(db, TxOptions{StatementTimeout: 5 * time.Second})

	h, err := r.Begin(context.Background())
	require.NoError(t, err)
	require.IsType(t, &Tx{}, h)

	assert.Equal(t, []string{"SET LOCAL statement_timeout = '5000ms'"}, db.tx.execs)
	require.Len(t, db.opts, 1)
	assert.Equal(t, pgx.ReadWrite, db.opts[0].AccessMode)
}

func TestTxResource_BeginFailure(t *testing.T) {
	cause := errors.New("too many connections")
	r := NewTxResource(&mockDB{beginErr: cause}, DefaultTxOptions())

	_, err := r.Begin(context.Background())
	rErr, ok := tx.AsResourceError(err)
	require.True(t, ok)
	assert.Equal(t, tx.OpBegin, rErr.Op)
	assert.ErrorIs(t, err, cause)
}

func TestTxResource_TimeoutFailureRollsBack(t *testing.T) {
	mtx := &mockTx{execErr: errors.New("syntax error")}
	r := NewTxResource(&mockDB{tx: mtx}, DefaultTxOptions())

	_, err := r.Begin(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, mtx.rollbacks)
}

func TestTxResource_CommitAndRollback(t *testing.T) {
	mtx := &mockTx{}
	r := NewTxResource(&mockDB{tx: mtx}, TxOptions{})

	h, err := r.Begin(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mtx.execs)

	require.NoError(t, r.Commit(context.Background(), h))

	// Rollback of a closed transaction is a no-op.
	require.NoError(t, r.Rollback(context.Background(), h))
	assert.Equal(t, 1, mtx.rollbacks)
}

func TestTxResource_CommitFailureIsResourceError(t *testing.T) {
	cause := errors.New("serialization failure")
	mtx := &mockTx{commitErr: cause}
	r := NewTxResource(&mockDB{tx: mtx}, TxOptions{})

	h, err := r.Begin(context.Background())
	require.NoError(t, err)

	err = r.Commit(context.Background(), h)
	rErr, ok := tx.AsResourceError(err)
	require.True(t, ok)
	assert.Equal(t, tx.OpCommit, rErr.Op)
	assert.ErrorIs(t, err, cause)
}

func TestTxResource_RollbackAfterFailedCommitIsNoop(t *testing.T) {
	res := NewTxResource(&mockDB{tx: &mockTx{commitErr: errors.New("serialization failure")}}, TxOptions{})
	obs := &countingObserver{}
	i := tx.NewInterceptor(res, tx.WithObserver(obs))

	_, err := i.Intercept(context.Background(), proxy.Invocation{Target: "t", Transactional: true},
		proxy.ChainFunc(func(context.Context) (any, error) { return nil, nil }))
	rErr, ok := tx.AsResourceError(err)
	require.True(t, ok)
	assert.Equal(t, tx.OpCommit, rErr.Op)
	assert.Equal(t, 1, obs.rollbacks)
	assert.Zero(t, obs.rollbackFailures, "closed transaction must not count as a failed rollback")
}

func TestTxResource_RollbackErrorIsReported(t *testing.T) {
	r := NewTxResource(&mockDB{}, TxOptions{})
	h := &Tx{Tx: &failingRollbackTx{err: errors.New("conn lost")}}

	err := r.Rollback(context.Background(), h)
	rErr, ok := tx.AsResourceError(err)
	require.True(t, ok)
	assert.Equal(t, tx.OpRollback, rErr.Op)
}

type failingRollbackTx struct {
	pgx.Tx
	err error
}

func (f *failingRollbackTx) Rollback(context.Context) error { return f.err }

type countingObserver struct {
	rollbacks        int
	rollbackFailures int
}

func (o *countingObserver) OnBegin(context.Context, proxy.Invocation)              {}
func (o *countingObserver) OnBeginFailed(context.Context, proxy.Invocation, error) {}
func (o *countingObserver) OnCommit(context.Context, proxy.Invocation)             {}
func (o *countingObserver) OnRollback(context.Context, proxy.Invocation, error) {
	o.rollbacks++
}
func (o *countingObserver) OnRollbackFailed(context.Context, proxy.Invocation, error) {
	o.rollbackFailures++
}

func TestTxResource_InvalidHandle(t *testing.T) {
	r := NewTxResource(&mockDB{}, TxOptions{})

	assert.ErrorIs(t, r.Commit(context.Background(), "bogus"), tx.ErrInvalidHandle)
	assert.ErrorIs(t, r.Rollback(context.Background(), nil), tx.ErrInvalidHandle)
}

func TestTxResource_GetQuerier(t *testing.T) {
	mtx := &mockTx{}
	db := &mockDB{tx: mtx}
	r := NewTxResource(db, TxOptions{})

	ctx := context.Background()
	assert.Nil(t, r.GetTx(ctx))
	assert.Same(t, db, r.GetQuerier(ctx))

	h, err := r.Begin(ctx)
	require.NoError(t, err)
	txCtx := tx.WithHandle(ctx, h)
	assert.Same(t, h, r.GetTx(txCtx))
	assert.Same(t, mtx, r.GetQuerier(txCtx))
}

func TestNewTxResourceFromPool_DefaultOptions(t *testing.T) {
	// pgxpool connects lazily, so no server is needed.
	p, err := pgxpool.New(context.Background(), "postgres://txchain@127.0.0.1:1/txchain")
	require.NoError(t, err)
	t.Cleanup(p.Close)

	r := NewTxResourceFromPool(&Pool{Pool: p})
	assert.Equal(t, DefaultTxOptions(), r.opts)
	assert.Same(t, p, r.db)
}
