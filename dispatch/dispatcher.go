// Package dispatch glues transport input, the middleware engine, the
// lifecycle gate, and the business-logic callback into one atomic
// response-producing pipeline.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mcpkit/mcpkit/lifecycle"
	"github.com/mcpkit/mcpkit/logging"
	"github.com/mcpkit/mcpkit/middleware"
	"github.com/mcpkit/mcpkit/protocol"
)

// CoreFunc is the business-logic callback. It fills rc.Response or returns
// an error.
type CoreFunc func(rc *middleware.RequestContext) error

// Meta carries optional transport-supplied request metadata.
type Meta struct {
	Peer *middleware.PeerInfo
}

// Func processes one inbound message. The respond callback fires exactly
// once whenever a response is produced, regardless of where in the pipeline
// the request fails.
type Func func(ctx context.Context, message json.RawMessage, respond RespondFunc, meta *Meta)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(l logging.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithExecOptions sets the engine guard options used for every dispatch.
func WithExecOptions(opts ...middleware.ExecOption) Option {
	return func(d *Dispatcher) {
		d.execOpts = opts
	}
}

// Dispatcher is the per-transport entry point into the pipeline.
type Dispatcher struct {
	registry *middleware.Registry
	engine   *middleware.Engine
	gate     *lifecycle.Gate
	core     CoreFunc
	logger   logging.Logger
	execOpts []middleware.ExecOption
}

// New creates a dispatcher over the given collaborators.
func New(registry *middleware.Registry, engine *middleware.Engine, gate *lifecycle.Gate, core CoreFunc, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		engine:   engine,
		gate:     gate,
		core:     core,
		logger:   logging.NopLogger{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Bind returns the dispatch function for one named transport. The returned
// function is called once per inbound message.
func (d *Dispatcher) Bind(transportName string) Func {
	return func(ctx context.Context, message json.RawMessage, respond RespondFunc, meta *Meta) {
		req, envErr := validateEnvelope(message)
		if envErr != nil {
			cell := newReplyCell(respond, d.logger, "")
			cell.Send(envErr)
			return
		}

		cell := newReplyCell(respond, d.logger, req.Method)

		transport := middleware.TransportInfo{Name: transportName}
		if meta != nil {
			transport.Peer = meta.Peer
		}
		rc := middleware.NewRequestContext(ctx, req, transport)
		rc.Send = cell.Send

		composed := d.engine.Apply(d.registry.Stack(), d.execOpts...)
		err := d.run(composed, rc)

		switch {
		case err != nil:
			// Last line of defense: an error escaped the whole chain
			// without an ErrorMapper absorbing it.
			cell.Send(protocol.NewErrorResponse(req.ID, escapedError(err)))
		case rc.Response != nil:
			cell.Send(rc.Response)
		}
	}
}

// run executes the composed chain with the core handler as its final
// continuation, converting panics into errors.
func (d *Dispatcher) run(composed middleware.Middleware, rc *middleware.RequestContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in dispatch pipeline: %v", r)
		}
	}()
	return composed(rc, func() error {
		return d.coreHandler(rc)
	})
}

// coreHandler is the innermost continuation: lifecycle gate check, then
// business dispatch. Failures from either step become error responses here;
// they do not propagate back up the chain.
func (d *Dispatcher) coreHandler(rc *middleware.RequestContext) error {
	method := rc.Request.Method

	if err := d.gate.ValidateRequest(method); err != nil {
		if gateErr := d.gate.ValidationError(method); gateErr != nil {
			rc.Response = protocol.NewErrorResponse(rc.Request.ID, gateErr)
		} else {
			rc.Response = protocol.NewErrorResponse(rc.Request.ID, protocol.NewInternalError(err.Error()))
		}
		return nil
	}

	if err := d.core(rc); err != nil {
		var rpcErr *protocol.Error
		if errors.As(err, &rpcErr) {
			rc.Response = protocol.NewErrorResponse(rc.Request.ID, rpcErr)
		} else {
			rc.Response = protocol.NewErrorResponse(rc.Request.ID, protocol.NewInternalError(err.Error()))
		}
	}
	return nil
}

// escapedError converts an error that escaped the chain into a protocol
// error, preserving protocol-native errors verbatim.
func escapedError(err error) *protocol.Error {
	var rpcErr *protocol.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return protocol.NewInternalError(err.Error())
}

// validateEnvelope checks the raw message against the JSON-RPC 2.0 envelope
// rules. On violation it returns an immediate error response built from
// whatever id can be salvaged: -32700 for non-object payloads, -32600 for
// structural violations.
func validateEnvelope(raw json.RawMessage) (*protocol.Request, *protocol.Response) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, protocol.NewErrorResponse(nil, protocol.NewParseError("message is not a JSON object"))
	}

	id := fields["id"]
	if !protocol.ValidID(id) {
		return nil, protocol.NewErrorResponse(nil,
			protocol.NewInvalidRequest("id must be a string, number, or null"))
	}

	var version string
	if err := json.Unmarshal(fields["jsonrpc"], &version); err != nil || version != protocol.JSONRPCVersion {
		return nil, protocol.NewErrorResponse(id,
			protocol.NewInvalidRequest(`jsonrpc must be the string "2.0"`))
	}

	var method string
	if err := json.Unmarshal(fields["method"], &method); err != nil || method == "" {
		return nil, protocol.NewErrorResponse(id,
			protocol.NewInvalidRequest("method must be a non-empty string"))
	}

	return &protocol.Request{
		JSONRPC: version,
		ID:      id,
		Method:  method,
		Params:  fields["params"],
	}, nil
}
