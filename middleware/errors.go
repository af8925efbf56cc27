package middleware

import (
	"fmt"
	"time"
)

// ErrorKind tags engine-control errors at the throw site so downstream
// classification is a table lookup instead of scattered type checks.
type ErrorKind string

const (
	KindMiddlewareError   ErrorKind = "MIDDLEWARE_ERROR"
	KindMiddlewareTimeout ErrorKind = "MIDDLEWARE_TIMEOUT"
	KindReentrantCall     ErrorKind = "REENTRANT_CALL"
)

// Kinder is implemented by engine-control errors.
type Kinder interface {
	Kind() ErrorKind
}

// MiddlewareError wraps a failure thrown by a middleware. The engine wraps
// exactly once, at the failing index: errors already carrying a kind are
// propagated unwrapped by outer levels, so Index always names the
// originating middleware.
type MiddlewareError struct {
	Index int
	Cause error
}

func (e *MiddlewareError) Error() string {
	return fmt.Sprintf("Middleware at index %d failed: %v", e.Index, e.Cause)
}

func (e *MiddlewareError) Unwrap() error { return e.Cause }

func (e *MiddlewareError) Kind() ErrorKind { return KindMiddlewareError }

// TimeoutError reports that the execution deadline elapsed. The deadline is
// polled when next() is invoked, not enforced by cancellation: a middleware
// blocked in a single await can overrun before the check fires.
type TimeoutError struct {
	Timeout time.Duration
	Index   int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Middleware execution timed out after %dms at index %d",
		e.Timeout.Milliseconds(), e.Index)
}

func (e *TimeoutError) Kind() ErrorKind { return KindMiddlewareTimeout }

// ReentrantCallError reports an overlapping re-entry into a middleware index
// that is still in flight within the same execution.
type ReentrantCallError struct {
	ExecutionID string
	Index       int
}

func (e *ReentrantCallError) Error() string {
	return fmt.Sprintf("Reentrant call detected in execution %s at index %d",
		e.ExecutionID, e.Index)
}

func (e *ReentrantCallError) Kind() ErrorKind { return KindReentrantCall }
