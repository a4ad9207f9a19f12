// Package tx provides transaction demarcation.
// This package defines the abstractions that decouple domain logic from
// specific database implementations: the Resource primitives implemented
// by infrastructure/storage, and the Interceptor that drives them around
// chains built by package proxy.
package tx

import (
	"context"

	"txchain/internal/core/proxy"
)

// Manager defines the contract for programmatic transaction management.
//
// Domain services depend on this interface, not concrete implementations.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction of the flow.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Compile-time check that TxManager implements Manager interface.
var _ Manager = (*TxManager)(nil)

// TxManager runs closures through the same Interceptor used by declarative
// chains, so programmatic and declarative demarcation share flow state.
type TxManager struct {
	interceptor *Interceptor
}

// NewManager creates a manager on top of interceptor.
func NewManager(interceptor *Interceptor) *TxManager {
	return &TxManager{interceptor: interceptor}
}

// RunInTransaction executes fn as a transactional invocation.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.RunNamed(ctx, "RunInTransaction", fn)
}

// RunNamed is RunInTransaction with a target name used in logs and traces.
func (m *TxManager) RunNamed(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	inv := proxy.Invocation{Target: name, Transactional: true}
	_, err := m.interceptor.Intercept(ctx, inv, proxy.ChainFunc(func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	}))
	return err
}
