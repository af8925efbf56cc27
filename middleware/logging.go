package middleware

import (
	"time"

	"github.com/mcpkit/mcpkit/logging"
)

// Logging returns middleware that logs one entry per request: info on
// success, error when the chain failed or produced an error response.
func Logging(logger logging.Logger) Middleware {
	return func(rc *RequestContext, next Next) error {
		start := time.Now()

		err := next()

		entry := &logging.Entry{
			Timestamp: time.Now().UTC(),
			Context: &logging.RequestDetails{
				RequestID: rc.GetString(StateRequestID),
				Method:    rc.Request.Method,
				Transport: rc.Transport.Name,
				Timestamp: start,
			},
			Metadata: &logging.Metadata{
				Source: "mcpkit.request_log",
				Fields: map[string]any{"duration_ms": time.Since(start).Milliseconds()},
			},
		}
		if rc.Transport.Peer != nil {
			entry.Context.Peer = rc.Transport.Peer.Address
		}

		switch {
		case err != nil:
			entry.Error = &logging.ErrorDetails{Message: err.Error()}
			logger.Error("request failed", entry)
		case rc.Response != nil && rc.Response.Error != nil:
			entry.Error = &logging.ErrorDetails{
				Code:    rc.Response.Error.Code,
				Message: rc.Response.Error.Message,
			}
			logger.Error("request completed with error", entry)
		default:
			logger.Info("request completed", entry)
		}

		return err
	}
}
