package tx

import (
	"context"

	"txchain/internal/core/proxy"
)

// Observer is notified about the lifecycle of transactions opened by Interceptor.
// Calls happen synchronously on the owning flow; implementations must be fast.
type Observer interface {
	OnBegin(ctx context.Context, inv proxy.Invocation)
	OnBeginFailed(ctx context.Context, inv proxy.Invocation, err error)
	OnCommit(ctx context.Context, inv proxy.Invocation)
	// OnRollback is called for every rollback attempt with the failure that caused it.
	OnRollback(ctx context.Context, inv proxy.Invocation, cause error)
	OnRollbackFailed(ctx context.Context, inv proxy.Invocation, err error)
}

type nopObserver struct{}

func (nopObserver) OnBegin(context.Context, proxy.Invocation)                 {}
func (nopObserver) OnBeginFailed(context.Context, proxy.Invocation, error)    {}
func (nopObserver) OnCommit(context.Context, proxy.Invocation)                {}
func (nopObserver) OnRollback(context.Context, proxy.Invocation, error)       {}
func (nopObserver) OnRollbackFailed(context.Context, proxy.Invocation, error) {}
