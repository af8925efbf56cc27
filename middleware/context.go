package middleware

import (
	"context"

	"github.com/mcpkit/mcpkit/protocol"
)

// PeerInfo identifies the remote party on a transport connection.
type PeerInfo struct {
	// Address is the transport-level peer address (e.g. TCP remote addr).
	Address string
	// Identity is an optional caller identity hint supplied by the transport.
	Identity string
}

// TransportInfo describes the transport a request arrived on.
type TransportInfo struct {
	Name string
	Peer *PeerInfo
}

// RequestContext carries one inbound request through the middleware chain.
// It is created by the dispatcher, owned exclusively by that request's
// execution, and never shared across concurrent requests.
type RequestContext struct {
	// Request is the validated protocol request. Immutable once built.
	Request *protocol.Request

	// Response is the outgoing response. Write-once by convention: set by
	// exactly one participant in the chain. A middleware that sets it before
	// calling next short-circuits everything downstream.
	Response *protocol.Response

	// Transport identifies where the request came from.
	Transport TransportInfo

	// State is an open scratch map middleware use to pass data forward
	// (trace ids, authenticated principals, per-request loggers).
	State map[string]any

	// Send is the transport's one-shot reply function. Most middleware never
	// touch it; the dispatcher replies after the chain unwinds.
	Send func(*protocol.Response)

	ctx context.Context
}

// NewRequestContext builds a context for one inbound request.
func NewRequestContext(ctx context.Context, req *protocol.Request, transport TransportInfo) *RequestContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return &RequestContext{
		Request:   req,
		Transport: transport,
		State:     make(map[string]any),
		ctx:       ctx,
	}
}

// Context returns the Go context for blocking operations.
func (rc *RequestContext) Context() context.Context {
	if rc.ctx == nil {
		return context.Background()
	}
	return rc.ctx
}

// WithContext replaces the Go context, returning the previous one so a
// middleware can restore it on unwind.
func (rc *RequestContext) WithContext(ctx context.Context) context.Context {
	prev := rc.Context()
	rc.ctx = ctx
	return prev
}

// Get reads a state value.
func (rc *RequestContext) Get(key string) (any, bool) {
	v, ok := rc.State[key]
	return v, ok
}

// Set stores a state value.
func (rc *RequestContext) Set(key string, value any) {
	rc.State[key] = value
}

// GetString reads a state value as a string, or "" if absent or mistyped.
func (rc *RequestContext) GetString(key string) string {
	s, _ := rc.State[key].(string)
	return s
}
