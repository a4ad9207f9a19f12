package proxy

import (
	"context"
	"time"

	"txchain/pkg/logger"
)

// Logging returns an interceptor that logs every invocation at debug level
// and failures at warn level.
func Logging() Interceptor {
	return InterceptorFunc(func(ctx context.Context, inv Invocation, next Chain) (any, error) {
		start := time.Now()
		res, err := next.Proceed(ctx)

		log := logger.FromContext(ctx).With(
			"target", inv.Target,
			"group", inv.Group,
			"transactional", inv.Transactional,
			"latency_ms", time.Since(start).Milliseconds(),
		)
		if err != nil {
			log.Warnw("invocation failed", "error", err)
			return res, err
		}
		log.Debugw("invocation completed")
		return res, nil
	})
}
