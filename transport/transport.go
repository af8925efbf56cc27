// Package transport provides stdio, HTTP, and WebSocket transports that
// feed inbound messages into a dispatch function.
package transport

import (
	"context"

	"github.com/mcpkit/mcpkit/dispatch"
)

// Transport is the byte-level communication layer. It decodes framed
// messages and hands each one to the dispatch function together with a
// one-shot respond callback.
type Transport interface {
	// Serve starts the transport, blocking until ctx is canceled or an
	// error occurs.
	Serve(ctx context.Context, d dispatch.Func) error

	// Addr returns the transport's address description.
	Addr() string
}
