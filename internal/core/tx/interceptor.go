package tx

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"txchain/internal/core/flow"
	"txchain/internal/core/proxy"
	"txchain/pkg/logger"
)

var tracer = otel.Tracer("txchain/tx")

// errAborted is the rollback cause when the chain exits without returning.
var errAborted = errors.New("invocation aborted")

// Compile-time check that Interceptor implements proxy.Interceptor.
var _ proxy.Interceptor = (*Interceptor)(nil)

// Interceptor demarcates transactions around transactional invocations.
//
// Only the outermost transactional invocation of a flow opens a transaction;
// nested transactional invocations on the same flow join it as plain
// pass-through calls. Any failure of the chain, including a failed commit or a
// panic, rolls the transaction back and reaches the caller unchanged.
type Interceptor struct {
	resource Resource
	observer Observer
}

// Option configures Interceptor.
type Option func(*Interceptor)

// WithObserver registers an observer of transaction lifecycle events.
func WithObserver(o Observer) Option {
	return func(i *Interceptor) {
		if o != nil {
			i.observer = o
		}
	}
}

// NewInterceptor creates a transaction interceptor over resource.
func NewInterceptor(resource Resource, opts ...Option) *Interceptor {
	i := &Interceptor{
		resource: resource,
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Intercept implements proxy.Interceptor.
func (i *Interceptor) Intercept(ctx context.Context, inv proxy.Invocation, next proxy.Chain) (any, error) {
	ctx, state := flow.Ensure(ctx)

	// Eligibility is decided before any resource is touched.
	if !inv.Transactional || state.IsActive() {
		return next.Proceed(ctx)
	}
	return i.demarcate(ctx, state, inv, next)
}

// demarcate owns the transaction of the flow for the duration of one invocation.
func (i *Interceptor) demarcate(ctx context.Context, state *flow.State, inv proxy.Invocation, next proxy.Chain) (any, error) {
	ctx, span := tracer.Start(ctx, "transaction",
		trace.WithAttributes(
			attribute.String("tx.target", inv.Target),
			attribute.String("flow.id", state.ID()),
		))
	defer span.End()

	state.SetActive()
	defer state.Clear()

	h, err := i.resource.Begin(ctx)
	if err != nil {
		i.observer.OnBeginFailed(ctx, inv, err)
		finishSpan(span, "begin_failed", err)
		return nil, err
	}
	logger.Debug(ctx, "begin transaction", "target", inv.Target)
	i.observer.OnBegin(ctx, inv)

	// The handle is released on every exit path, including panics and
	// runtime.Goexit, where recover returns nil.
	settled := false
	defer func() {
		p := recover()
		if !settled {
			cause := errAborted
			if p != nil {
				cause = fmt.Errorf("panic: %v", p)
			}
			i.rollback(ctx, inv, h, cause)
			finishSpan(span, "rolled_back", cause)
		}
		if p != nil {
			panic(p)
		}
	}()

	res, err := next.Proceed(WithHandle(ctx, h))
	if err != nil {
		settled = true
		i.rollback(ctx, inv, h, err)
		finishSpan(span, "rolled_back", err)
		return res, err
	}

	if err := i.resource.Commit(ctx, h); err != nil {
		settled = true
		i.rollback(ctx, inv, h, err)
		finishSpan(span, "rolled_back", err)
		return nil, err
	}
	settled = true

	logger.Debug(ctx, "commit transaction", "target", inv.Target)
	i.observer.OnCommit(ctx, inv)
	finishSpan(span, "committed", nil)
	return res, nil
}

// rollback never fails: its error is logged and the cause keeps propagating.
func (i *Interceptor) rollback(ctx context.Context, inv proxy.Invocation, h Handle, cause error) {
	i.observer.OnRollback(ctx, inv, cause)

	// Detach from cancellation so rollback completes after the caller gave up.
	if err := i.resource.Rollback(context.WithoutCancel(ctx), h); err != nil {
		logger.Error(ctx, "rollback failed", "target", inv.Target, "error", err, "original_error", cause)
		i.observer.OnRollbackFailed(ctx, inv, err)
		return
	}
	logger.Debug(ctx, "rollback transaction", "target", inv.Target, "cause", cause)
}

func finishSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("tx.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
