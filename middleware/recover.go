package middleware

import (
	"fmt"

	"github.com/mcpkit/mcpkit/protocol"
)

// PanicHandler converts a recovered panic value into an error.
type PanicHandler func(rc *RequestContext, panicVal any) error

// Recover returns middleware that catches panics from the inner chain and
// converts them to internal errors.
func Recover() Middleware {
	return RecoverWithHandler(defaultPanicHandler)
}

// RecoverWithHandler returns middleware that catches panics and delegates to
// the provided handler, allowing custom logging or alerting.
func RecoverWithHandler(handler PanicHandler) Middleware {
	return func(rc *RequestContext, next Next) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = handler(rc, r)
			}
		}()
		return next()
	}
}

func defaultPanicHandler(_ *RequestContext, panicVal any) error {
	return protocol.NewInternalError(fmt.Sprintf("panic: %v", panicVal))
}
