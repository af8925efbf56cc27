package middleware

import (
	"time"

	"github.com/mcpkit/mcpkit/logging"
)

// Next invokes the remainder of the middleware chain.
type Next func() error

// Middleware processes a request before and/or after delegating to next.
// Middleware are stateless by contract; per-request state belongs in
// RequestContext.State.
type Middleware func(rc *RequestContext, next Next) error

// DefaultStack returns the recommended production middleware stack:
// panic recovery, request ID injection, and request logging. The error
// mapper is installed separately, as the outermost registered middleware.
func DefaultStack(logger logging.Logger) []Middleware {
	return []Middleware{
		Recover(),
		RequestID(),
		Logging(logger),
	}
}

// DefaultStackWithTimeout returns the default stack with a context deadline.
func DefaultStackWithTimeout(logger logging.Logger, timeout time.Duration) []Middleware {
	return []Middleware{
		Recover(),
		RequestID(),
		Timeout(timeout),
		Logging(logger),
	}
}
