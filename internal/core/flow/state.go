// Package flow tracks per-flow-of-control state.
// A flow is one logical sequence of nested calls started by a single request
// or job. Its state travels in context.Context, never in goroutine-global
// storage, so concurrently running flows cannot observe each other.
package flow

import (
	"context"

	"txchain/internal/core/id"
)

// State is the transaction flag of a single flow.
// It is not safe for concurrent use: a flow executes its nested calls
// sequentially, and a new flow gets a new State.
type State struct {
	id     string
	active bool
}

type stateKey struct{}

// New starts a fresh flow and returns a context carrying its state.
func New(ctx context.Context) (context.Context, *State) {
	st := &State{id: id.New()}
	return context.WithValue(ctx, stateKey{}, st), st
}

// FromContext returns the flow state from context, or nil if none.
func FromContext(ctx context.Context) *State {
	if st, ok := ctx.Value(stateKey{}).(*State); ok {
		return st
	}
	return nil
}

// Ensure returns the existing flow state or starts a new flow.
func Ensure(ctx context.Context) (context.Context, *State) {
	if st := FromContext(ctx); st != nil {
		return ctx, st
	}
	return New(ctx)
}

// ID returns the flow identifier, or empty string for a nil state.
func (s *State) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// IsActive reports whether a transaction is open for this flow.
func (s *State) IsActive() bool {
	return s != nil && s.active
}

// SetActive marks the flow as having an open transaction.
func (s *State) SetActive() {
	s.active = true
}

// Clear resets the flow to "no transaction". Safe to call repeatedly.
func (s *State) Clear() {
	if s == nil {
		return
	}
	s.active = false
}

// GetID returns the flow ID from context or empty string.
func GetID(ctx context.Context) string {
	return FromContext(ctx).ID()
}
