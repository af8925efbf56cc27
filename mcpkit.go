// Package mcpkit is a framework for building JSON-RPC 2.0 servers speaking
// the MCP handshake, built around an inspectable middleware pipeline:
//   - Onion-ordered middleware with timeout, depth, and re-entrancy guards
//   - A lifecycle state machine gating operational methods behind the
//     initialize handshake
//   - An error mapper that classifies failures and keeps internals out of
//     client-facing responses
//   - Pluggable transports (stdio, HTTP+SSE, WebSocket)
//
// Basic usage:
//
//	srv := mcpkit.NewServer(mcpkit.ServerInfo{
//	    Name:    "my-server",
//	    Version: "1.0.0",
//	})
//
//	srv.Tool("search").
//	    Description("Search for items").
//	    Handler(func(ctx context.Context, args json.RawMessage) (string, error) {
//	        return "result", nil
//	    })
//
//	mcpkit.ServeStdio(ctx, srv)
package mcpkit

import (
	"context"
	"time"

	"github.com/mcpkit/mcpkit/config"
	"github.com/mcpkit/mcpkit/dispatch"
	"github.com/mcpkit/mcpkit/lifecycle"
	"github.com/mcpkit/mcpkit/logging"
	"github.com/mcpkit/mcpkit/middleware"
	"github.com/mcpkit/mcpkit/server"
	"github.com/mcpkit/mcpkit/transport"
)

// Re-export core types for convenience

// ServerInfo contains server metadata exposed to clients.
type ServerInfo = server.Info

// Capabilities declares what features the server supports.
type Capabilities = server.Capabilities

// Server holds the registered tools, resources, and prompts.
type Server = server.Server

// Option configures a Server.
type Option = server.Option

// Resource types
type ResourceContent = server.ResourceContent
type ResourceInfo = server.ResourceInfo

// Prompt types
type PromptResult = server.PromptResult
type PromptMessage = server.PromptMessage
type PromptArgument = server.PromptArgument
type PromptInfo = server.PromptInfo

// Middleware types
type Middleware = middleware.Middleware
type Next = middleware.Next
type RequestContext = middleware.RequestContext
type Logger = logging.Logger
type RateLimitOption = middleware.RateLimitOption

// RateLimit re-exports for convenience.
var (
	RateLimit            = middleware.RateLimit
	RateLimitByMethod    = middleware.RateLimitByMethod
	RateLimitByPeer      = middleware.RateLimitByPeer
	WithRateLimitKeyFunc = middleware.WithRateLimitKeyFunc
	WithRateLimitLogger  = middleware.WithRateLimitLogger
)

// SizeLimit re-exports for convenience.
var SizeLimit = middleware.SizeLimit

// Size limit presets.
const (
	KB = middleware.KB
	MB = middleware.MB
)

// Lifecycle types
type LifecycleState = lifecycle.State

// Config carries process-wide settings resolved at startup.
type Config = config.Config

// Transport option types
type HTTPOption = transport.HTTPOption
type WebSocketOption = transport.WebSocketOption

// RuntimeOption configures a Runtime.
type RuntimeOption func(*runtimeOptions)

type runtimeOptions struct {
	cfg        *config.Config
	logger     logging.Logger
	middleware []Middleware
	mapperOpts []middleware.MapperOption
	execOpts   []middleware.ExecOption
	engineOpts []middleware.EngineOption
	noDefaults bool
	noErrorMap bool
}

// WithEngineOptions passes options through to the middleware engine.
func WithEngineOptions(opts ...middleware.EngineOption) RuntimeOption {
	return func(o *runtimeOptions) {
		o.engineOpts = append(o.engineOpts, opts...)
	}
}

// WithConfig overrides the environment-derived configuration.
func WithConfig(cfg Config) RuntimeOption {
	return func(o *runtimeOptions) {
		o.cfg = &cfg
	}
}

// WithLogger sets the logger used by the default middleware stack, the
// error mapper, and the dispatcher.
func WithLogger(l Logger) RuntimeOption {
	return func(o *runtimeOptions) {
		o.logger = l
	}
}

// WithMiddleware appends middleware after the default stack.
func WithMiddleware(m ...Middleware) RuntimeOption {
	return func(o *runtimeOptions) {
		o.middleware = append(o.middleware, m...)
	}
}

// WithErrorMapperOptions passes options through to the error mapper.
func WithErrorMapperOptions(opts ...middleware.MapperOption) RuntimeOption {
	return func(o *runtimeOptions) {
		o.mapperOpts = append(o.mapperOpts, opts...)
	}
}

// WithExecOptions sets the engine guard options used for every dispatch.
func WithExecOptions(opts ...middleware.ExecOption) RuntimeOption {
	return func(o *runtimeOptions) {
		o.execOpts = append(o.execOpts, opts...)
	}
}

// WithoutDefaultMiddleware skips the default recover/request-id/logging
// stack, leaving only the error mapper and explicitly added middleware.
func WithoutDefaultMiddleware() RuntimeOption {
	return func(o *runtimeOptions) {
		o.noDefaults = true
	}
}

// WithoutErrorMapper skips installing the error mapper. Errors escaping the
// chain then surface through the dispatcher's fallback conversion.
func WithoutErrorMapper() RuntimeOption {
	return func(o *runtimeOptions) {
		o.noErrorMap = true
	}
}

// Runtime assembles the full pipeline around a Server: middleware registry
// and engine, lifecycle manager and gate, business-core routing, and the
// dispatcher that transports feed messages into.
type Runtime struct {
	cfg        config.Config
	srv        *server.Server
	manager    *lifecycle.Manager
	gate       *lifecycle.Gate
	registry   *middleware.Registry
	engine     *middleware.Engine
	dispatcher *dispatch.Dispatcher
	logger     logging.Logger
}

// NewRuntime wires a pipeline for srv. The error mapper is installed as the
// outermost registered middleware, followed by the default stack, followed
// by any middleware supplied through WithMiddleware.
func NewRuntime(srv *Server, opts ...RuntimeOption) (*Runtime, error) {
	options := &runtimeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	cfg := config.FromEnv()
	if options.cfg != nil {
		cfg = *options.cfg
	}

	logger := options.logger
	if logger == nil {
		logger = logging.NewStderrLogger()
	}

	manager := lifecycle.NewManager(srv.LifecycleInfo(), srv)
	gate := lifecycle.NewGate(manager)
	engine := middleware.NewEngine(options.engineOpts...)
	registry := middleware.NewRegistry()

	if !options.noErrorMap {
		mapper, err := middleware.NewErrorMapper(cfg, options.mapperOpts...)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(mapper.Middleware()); err != nil {
			return nil, err
		}
	}
	if !options.noDefaults {
		for _, m := range middleware.DefaultStack(logger) {
			if err := registry.Register(m); err != nil {
				return nil, err
			}
		}
	}
	for _, m := range options.middleware {
		if err := registry.Register(m); err != nil {
			return nil, err
		}
	}

	dispatcher := dispatch.New(registry, engine, gate,
		server.CoreDispatcher(srv, manager),
		dispatch.WithLogger(logger),
		dispatch.WithExecOptions(options.execOpts...),
	)

	return &Runtime{
		cfg:        cfg,
		srv:        srv,
		manager:    manager,
		gate:       gate,
		registry:   registry,
		engine:     engine,
		dispatcher: dispatcher,
		logger:     logger,
	}, nil
}

// Server returns the wrapped server.
func (r *Runtime) Server() *Server { return r.srv }

// Registry returns the middleware registry for configuration-time mutation.
func (r *Runtime) Registry() *middleware.Registry { return r.registry }

// Engine returns the middleware engine, mostly useful for observability.
func (r *Runtime) Engine() *middleware.Engine { return r.engine }

// Lifecycle returns the handshake state machine.
func (r *Runtime) Lifecycle() *lifecycle.Manager { return r.manager }

// Dispatch returns the dispatch function for one named transport.
func (r *Runtime) Dispatch(transportName string) dispatch.Func {
	return r.dispatcher.Bind(transportName)
}

// ServeStdio runs the runtime over stdio transport. It blocks until the
// context is canceled or an error occurs.
func (r *Runtime) ServeStdio(ctx context.Context) error {
	t := transport.NewStdio()
	return r.serve(ctx, t)
}

// ServeHTTP runs the runtime over HTTP transport with SSE support.
func (r *Runtime) ServeHTTP(ctx context.Context, addr string, opts ...HTTPOption) error {
	t := transport.NewHTTP(addr, opts...)
	return r.serve(ctx, t)
}

// ServeWebSocket runs the runtime over WebSocket transport.
func (r *Runtime) ServeWebSocket(ctx context.Context, addr string, opts ...WebSocketOption) error {
	t := transport.NewWebSocket(addr, opts...)
	return r.serve(ctx, t)
}

func (r *Runtime) serve(ctx context.Context, t transport.Transport) error {
	err := t.Serve(ctx, r.dispatcher.Bind(t.Addr()))
	r.manager.Complete()
	return err
}

// NewServer creates a new server with the given info and options.
func NewServer(info ServerInfo, opts ...Option) *Server {
	return server.New(info, opts...)
}

// ServeStdio runs the server using stdio transport with a default runtime.
// This blocks until the context is canceled or an error occurs.
func ServeStdio(ctx context.Context, srv *Server, opts ...RuntimeOption) error {
	rt, err := NewRuntime(srv, opts...)
	if err != nil {
		return err
	}
	return rt.ServeStdio(ctx)
}

// ServeHTTP runs the server using HTTP transport with a default runtime.
// This blocks until the context is canceled or an error occurs.
func ServeHTTP(ctx context.Context, srv *Server, addr string, httpOpts []HTTPOption, opts ...RuntimeOption) error {
	rt, err := NewRuntime(srv, opts...)
	if err != nil {
		return err
	}
	return rt.ServeHTTP(ctx, addr, httpOpts...)
}

// ServeWebSocket runs the server using WebSocket transport with a default
// runtime. This blocks until the context is canceled or an error occurs.
func ServeWebSocket(ctx context.Context, srv *Server, addr string, wsOpts []WebSocketOption, opts ...RuntimeOption) error {
	rt, err := NewRuntime(srv, opts...)
	if err != nil {
		return err
	}
	return rt.ServeWebSocket(ctx, addr, wsOpts...)
}

// Middleware re-exports

// Recover returns middleware that converts panics into internal errors.
func Recover() Middleware {
	return middleware.Recover()
}

// RecoverWithHandler returns middleware that converts panics through the
// provided handler.
func RecoverWithHandler(handler middleware.PanicHandler) Middleware {
	return middleware.RecoverWithHandler(handler)
}

// Timeout returns middleware that attaches a context deadline.
func Timeout(d time.Duration) Middleware {
	return middleware.Timeout(d)
}

// RequestID returns middleware that injects a unique request ID.
func RequestID() Middleware {
	return middleware.RequestID()
}

// Logging returns middleware that logs request details.
func Logging(logger Logger) Middleware {
	return middleware.Logging(logger)
}

// DefaultMiddleware returns the recommended production middleware stack.
func DefaultMiddleware(logger Logger) []Middleware {
	return middleware.DefaultStack(logger)
}

// DefaultMiddlewareWithTimeout returns the default stack with a timeout.
func DefaultMiddlewareWithTimeout(logger Logger, timeout time.Duration) []Middleware {
	return middleware.DefaultStackWithTimeout(logger, timeout)
}
