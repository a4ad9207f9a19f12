package tx

import (
	"context"
	"errors"
	"fmt"
)

// Handle is an opaque value representing one open transaction.
// Only the Resource that created it knows its concrete type.
type Handle any

// Resource exposes the begin/commit/rollback primitives of a data store.
// Implementations live in infrastructure/storage and report failures as
// *ResourceError. The transaction layer never retries them.
type Resource interface {
	// Begin opens a transaction. Fails if no connection is available.
	Begin(ctx context.Context) (Handle, error)

	// Commit fails if the handle is invalid or the store rejects the commit.
	Commit(ctx context.Context, h Handle) error

	// Rollback is best-effort; callers log its failure.
	Rollback(ctx context.Context, h Handle) error
}

// Op names a Resource primitive.
type Op string

const (
	OpBegin    Op = "begin"
	OpCommit   Op = "commit"
	OpRollback Op = "rollback"
)

// ResourceError is a failure of a Resource primitive.
type ResourceError struct {
	Op  Op
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("%s transaction: %v", e.Op, e.Err)
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// NewResourceError wraps err for op. Returns nil when err is nil.
func NewResourceError(op Op, err error) error {
	if err == nil {
		return nil
	}
	return &ResourceError{Op: op, Err: err}
}

// AsResourceError extracts ResourceError from error chain.
func AsResourceError(err error) (*ResourceError, bool) {
	var rErr *ResourceError
	if errors.As(err, &rErr) {
		return rErr, true
	}
	return nil, false
}

// ErrInvalidHandle is reported when a Resource receives a handle it did not create.
var ErrInvalidHandle = errors.New("invalid transaction handle")

type handleKey struct{}

// WithHandle stores the open transaction handle in context.
func WithHandle(ctx context.Context, h Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// HandleFromContext returns the open transaction handle, or nil if none.
func HandleFromContext(ctx context.Context) Handle {
	return ctx.Value(handleKey{})
}
