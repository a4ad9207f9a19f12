package middleware

import (
	"github.com/gin-gonic/gin"

	"txchain/internal/core/flow"
)

const ContextKeyFlowID = "flow_id"

// Flow starts a fresh execution flow for every request.
// Transactions opened while serving the request belong to this flow only.
func Flow() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, state := flow.New(c.Request.Context())
		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextKeyFlowID, state.ID())
		c.Next()
	}
}
