package middleware

import (
	"fmt"

	"github.com/mcpkit/mcpkit/protocol"
)

// SizeLimit returns middleware that rejects requests whose params exceed
// maxBytes.
func SizeLimit(maxBytes int64) Middleware {
	return func(rc *RequestContext, next Next) error {
		if rc.Request.Params != nil {
			size := int64(len(rc.Request.Params))
			if size > maxBytes {
				return protocol.NewInvalidRequest(
					fmt.Sprintf("request size %d exceeds limit of %d bytes", size, maxBytes))
			}
		}
		return next()
	}
}

// Common size limit presets.
const (
	// KB is 1024 bytes.
	KB = 1024
	// MB is 1024 * 1024 bytes.
	MB = 1024 * 1024
)
