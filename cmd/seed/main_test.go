package main

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"txchain/internal/app"
	"txchain/internal/core/tx"
)

func newSeedApp(t *testing.T, name string) (*app.App, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()
	a, err := app.New(context.Background(), app.Config{
		DatabaseURL: "file:" + name + "?mode=memory&cache=shared",
		Registerer:  reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, reg
}

// transactions reads txchain_transactions_total for outcome.
func transactions(t *testing.T, reg *prometheus.Registry, outcome string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "txchain_transactions_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

// failAfter runs fn in a transaction and then fails it.
type failAfter struct {
	inner tx.Manager
	err   error
}

func (f failAfter) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f.inner.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return f.err
	})
}

func TestSeedAccounts_OneTransaction(t *testing.T) {
	a, reg := newSeedApp(t, "seed_ok")
	ctx := context.Background()

	ids, err := seedAccounts(ctx, a.Tx, a.Ledger, 3)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	assert.Equal(t, 1.0, transactions(t, reg, "committed"))
	assert.Equal(t, 0.0, transactions(t, reg, "rolled_back"))

	total, err := totalBalance(ctx, a.Ledger, ids)
	require.NoError(t, err)
	assert.Equal(t, "3000", total.String())
}

func TestSeedAccounts_FailureOpensNothing(t *testing.T) {
	a, reg := newSeedApp(t, "seed_fail")
	ctx := context.Background()

	cause := errors.New("disk full")
	ids, err := seedAccounts(ctx, failAfter{inner: a.Tx, err: cause}, a.Ledger, 3)
	require.ErrorIs(t, err, cause)
	assert.Nil(t, ids)

	assert.Equal(t, 0.0, transactions(t, reg, "committed"))
	assert.Equal(t, 1.0, transactions(t, reg, "rolled_back"))
}
