package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "txchain/internal/core/context"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"

	ContextKeyRequestID = "request_id"
	ContextKeyTraceID   = "trace_id"
)

// Trace middleware adds request tracing context.
// Incoming IDs are kept; missing ones are generated.
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		trace := appctx.NewTraceContext(ctx, c.GetHeader(HeaderTraceID), c.GetHeader(HeaderRequestID))

		c.Request = c.Request.WithContext(appctx.WithTrace(ctx, trace))

		c.Set(ContextKeyTraceID, trace.TraceID)
		c.Set(ContextKeyRequestID, trace.RequestID)

		c.Header(HeaderRequestID, trace.RequestID)
		c.Header(HeaderTraceID, trace.TraceID)

		c.Next()
	}
}
