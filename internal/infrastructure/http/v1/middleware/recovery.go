// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"txchain/internal/core/apperror"
	"txchain/internal/infrastructure/http/v1/dto"
	"txchain/pkg/logger"
)

// Recovery middleware recovers from panics and returns 500 error.
// Panics escaping a transactional call have already been rolled back
// by the time they reach this point.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)

				appErr := apperror.NewInternal(fmt.Errorf("panic: %v", err)).
					WithDetail("request_id", c.GetString(ContextKeyRequestID))
				_ = c.Error(appErr)

				// ErrorHandler sits inside this middleware and was unwound by the panic.
				if c.Writer.Written() {
					c.Abort()
					return
				}
				c.AbortWithStatusJSON(appErr.HTTPStatus, dto.FromAppError(appErr))
			}
		}()
		c.Next()
	}
}
