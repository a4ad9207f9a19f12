// Package proxy composes interceptor chains around named targets.
// Chains are assembled explicitly from an ordered list of interceptors;
// no runtime code generation or reflection is involved.
package proxy

import (
	"context"
)

// Invocation identifies one call to a registered target.
type Invocation struct {
	// Target is the registered name of the called operation.
	Target string

	// Group is an optional grouping (service name) of the target.
	Group string

	// Transactional marks the target as requiring a transaction.
	// It is attached at registration time, never discovered per call.
	Transactional bool

	// Args are passed to the target unchanged.
	Args []any
}

// Target is the business operation at the end of a chain.
type Target func(ctx context.Context, args ...any) (any, error)

// Chain is what remains to execute: further interceptors or the target.
type Chain interface {
	Proceed(ctx context.Context) (any, error)
}

// ChainFunc adapts a function to Chain.
type ChainFunc func(ctx context.Context) (any, error)

// Proceed calls f(ctx).
func (f ChainFunc) Proceed(ctx context.Context) (any, error) {
	return f(ctx)
}

// Interceptor is one link of a chain. It decides whether and how to call next.
type Interceptor interface {
	Intercept(ctx context.Context, inv Invocation, next Chain) (any, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, inv Invocation, next Chain) (any, error)

// Intercept calls f(ctx, inv, next).
func (f InterceptorFunc) Intercept(ctx context.Context, inv Invocation, next Chain) (any, error) {
	return f(ctx, inv, next)
}

// NewChain composes interceptors around target. The first interceptor is outermost.
func NewChain(inv Invocation, target Target, interceptors ...Interceptor) Chain {
	return &chain{inv: inv, target: target, interceptors: interceptors}
}

type chain struct {
	inv          Invocation
	target       Target
	interceptors []Interceptor
	index        int
}

func (c *chain) Proceed(ctx context.Context) (any, error) {
	if c.index < len(c.interceptors) {
		next := &chain{
			inv:          c.inv,
			target:       c.target,
			interceptors: c.interceptors,
			index:        c.index + 1,
		}
		return c.interceptors[c.index].Intercept(ctx, c.inv, next)
	}
	return c.target(ctx, c.inv.Args...)
}
