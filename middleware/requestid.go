package middleware

import "github.com/google/uuid"

// StateRequestID is the RequestContext.State key carrying the request ID.
const StateRequestID = "request_id"

// RequestID returns middleware that stores a unique request ID in the
// context state. An ID already set upstream is preserved.
func RequestID() Middleware {
	return RequestIDWithGenerator(uuid.NewString)
}

// RequestIDWithGenerator returns middleware using a custom ID generator.
func RequestIDWithGenerator(generator func() string) Middleware {
	return func(rc *RequestContext, next Next) error {
		if rc.GetString(StateRequestID) == "" {
			rc.Set(StateRequestID, generator())
		}
		return next()
	}
}
