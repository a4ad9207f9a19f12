// Package context provides request-scoped values extraction.
package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext contains request tracing information.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, t *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, t)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewTraceContext builds a TraceContext for an incoming request.
// IDs of a recording OpenTelemetry span in ctx take precedence; otherwise
// traceID is used when given and missing values are generated.
func NewTraceContext(ctx context.Context, traceID, requestID string) *TraceContext {
	t := &TraceContext{TraceID: traceID, RequestID: requestID}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		t.TraceID = sc.TraceID().String()
		t.SpanID = sc.SpanID().String()
	}
	if t.TraceID == "" {
		t.TraceID = uuid.New().String()
	}
	if t.SpanID == "" {
		t.SpanID = uuid.New().String()[:16]
	}
	if t.RequestID == "" {
		t.RequestID = uuid.New().String()
	}
	return t
}
