package middleware

import (
	"context"
	"time"
)

// Timeout returns middleware that puts a deadline on the request's Go
// context. Unlike the engine's polled execution deadline, this cancels
// downstream I/O that honors context cancellation.
func Timeout(d time.Duration) Middleware {
	return func(rc *RequestContext, next Next) error {
		ctx, cancel := context.WithTimeout(rc.Context(), d)
		defer cancel()

		prev := rc.WithContext(ctx)
		defer rc.WithContext(prev)

		return next()
	}
}
