package middleware

import (
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/mcpkit/mcpkit/config"
	"github.com/mcpkit/mcpkit/logging"
	"github.com/mcpkit/mcpkit/protocol"
)

// internalMessage is the fixed client-facing message for every non-RPC
// error, so internals never leak without debug mode.
const internalMessage = "Internal error"

// mapperSource tags log entries emitted by the error mapper.
const mapperSource = "mcpkit.error_mapper"

// CustomMapper lets applications map an error themselves before the default
// classification runs. Returning a nil *protocol.Error falls through to the
// default path; returning an error logs a warning and also falls through.
type CustomMapper func(err error, rc *RequestContext) (*protocol.Error, error)

// ErrorHook observes every mapped error. A failing hook is logged and never
// affects the response already produced.
type ErrorHook func(original error, rc *RequestContext, mapped *protocol.Error)

// MapperOption configures an ErrorMapper.
type MapperOption func(*mapperConfig)

type mapperConfig struct {
	debugMode             *bool
	includeStackTrace     bool
	includeRequestContext bool
	loggingEnabled        bool
	logLevel              logging.Level
	logFormat             logging.Format
	logger                logging.Logger
	custom                CustomMapper
	onError               ErrorHook
	version               string
	customFields          map[string]any
}

// WithDebugMode overrides the environment-derived debug setting.
func WithDebugMode(enabled bool) MapperOption {
	return func(c *mapperConfig) {
		c.debugMode = &enabled
	}
}

// WithIncludeStackTrace attaches stack traces to debug payloads.
func WithIncludeStackTrace(include bool) MapperOption {
	return func(c *mapperConfig) {
		c.includeStackTrace = include
	}
}

// WithIncludeRequestContext attaches request context to log entries.
func WithIncludeRequestContext(include bool) MapperOption {
	return func(c *mapperConfig) {
		c.includeRequestContext = include
	}
}

// WithMapperLogging enables or disables log emission.
func WithMapperLogging(enabled bool) MapperOption {
	return func(c *mapperConfig) {
		c.loggingEnabled = enabled
	}
}

// WithMapperLogLevel sets the minimum level for the mapper's own logger.
func WithMapperLogLevel(level logging.Level) MapperOption {
	return func(c *mapperConfig) {
		c.logLevel = level
	}
}

// WithMapperLogFormat sets the output format for the mapper's own logger.
func WithMapperLogFormat(format logging.Format) MapperOption {
	return func(c *mapperConfig) {
		c.logFormat = format
	}
}

// WithMapperLogger supplies a custom log sink.
func WithMapperLogger(l logging.Logger) MapperOption {
	return func(c *mapperConfig) {
		c.logger = l
	}
}

// WithCustomMapper installs an application-supplied mapping hook.
func WithCustomMapper(m CustomMapper) MapperOption {
	return func(c *mapperConfig) {
		c.custom = m
	}
}

// WithErrorHook installs an observer invoked after each mapped error.
func WithErrorHook(h ErrorHook) MapperOption {
	return func(c *mapperConfig) {
		c.onError = h
	}
}

// WithMapperVersion sets the version tag on log entry metadata.
func WithMapperVersion(v string) MapperOption {
	return func(c *mapperConfig) {
		c.version = v
	}
}

// WithMapperFields attaches custom fields to log entry metadata.
func WithMapperFields(fields map[string]any) MapperOption {
	return func(c *mapperConfig) {
		c.customFields = fields
	}
}

// ErrorMapper classifies any error escaping the inner chain, maps it to a
// protocol error, logs a structured entry, and invokes a user hook. It is
// conventionally installed as the outermost registered middleware.
type ErrorMapper struct {
	cfg    config.Config
	mapper mapperConfig
}

// NewErrorMapper builds an error mapper, validating options before any
// request is processed.
func NewErrorMapper(cfg config.Config, opts ...MapperOption) (*ErrorMapper, error) {
	mc := mapperConfig{
		loggingEnabled: true,
		logLevel:       logging.LevelError,
		logFormat:      logging.FormatJSON,
		version:        "1.0.0",
	}
	for _, opt := range opts {
		opt(&mc)
	}

	if !logging.ValidLevel(mc.logLevel) {
		return nil, fmt.Errorf("invalid log level %q: must be one of error, warn, info, debug", mc.logLevel)
	}
	if !logging.ValidFormat(mc.logFormat) {
		return nil, fmt.Errorf("invalid log format %q: must be json or text", mc.logFormat)
	}
	if mc.logger == nil {
		mc.logger = logging.NewConsoleLogger(os.Stderr, mc.logFormat, mc.logLevel)
	}

	return &ErrorMapper{cfg: cfg, mapper: mc}, nil
}

// Middleware returns the mapper as a chain layer.
func (m *ErrorMapper) Middleware() Middleware {
	return func(rc *RequestContext, next Next) error {
		err := callNext(next)
		if err == nil {
			return nil
		}
		m.handle(rc, err)
		return nil
	}
}

// callNext invokes next, converting panics to errors. Non-error panic values
// become UNKNOWN_ERROR classifications.
func callNext(next Next) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
			} else {
				err = &panicValueError{value: r}
			}
		}
	}()
	return next()
}

// handle maps err to a protocol error response on rc and emits one log entry.
func (m *ErrorMapper) handle(rc *RequestContext, err error) {
	if m.mapper.custom != nil {
		mapped, cerr := m.mapper.custom(err, rc)
		if cerr != nil {
			m.mapper.logger.Warn("custom error mapper failed", &logging.Entry{
				Timestamp: time.Now().UTC(),
				Error: &logging.ErrorDetails{
					Type:    fmt.Sprintf("%T", cerr),
					Message: cerr.Error(),
				},
			})
		} else if mapped != nil {
			m.finish(rc, err, mapped, classified{
				Class:           ClassRPCError,
				RPC:             mapped,
				OriginalType:    fmt.Sprintf("%T", err),
				OriginalMessage: errMessage(err),
			})
			return
		}
	}

	cls := classify(err)
	mapping := cls.mapping()

	var rpcErr *protocol.Error
	if cls.Class == ClassRPCError {
		// Protocol-native errors pass through verbatim.
		rpcErr = cls.RPC
	} else {
		rpcErr = &protocol.Error{Code: mapping.Code, Message: internalMessage}
		if m.debugMode() && mapping.DebugEligible {
			rpcErr = rpcErr.WithData(m.debugPayload(cls, mapping))
		}
	}

	m.finish(rc, err, rpcErr, cls)
}

// finish writes the response, logs, and fires the user hook.
func (m *ErrorMapper) finish(rc *RequestContext, original error, rpcErr *protocol.Error, cls classified) {
	var id []byte
	if rc.Request != nil {
		id = rc.Request.ID
	}
	rc.Response = protocol.NewErrorResponse(id, rpcErr)

	if m.mapper.loggingEnabled {
		m.log(rc, rpcErr, cls)
	}

	if m.mapper.onError != nil {
		m.fireHook(rc, original, rpcErr)
	}
}

func (m *ErrorMapper) fireHook(rc *RequestContext, original error, mapped *protocol.Error) {
	defer func() {
		if r := recover(); r != nil {
			m.mapper.logger.Warn("error hook panicked", &logging.Entry{
				Timestamp: time.Now().UTC(),
				Error: &logging.ErrorDetails{
					Type:    fmt.Sprintf("%T", r),
					Message: fmt.Sprintf("%v", r),
				},
			})
		}
	}()
	m.mapper.onError(original, rc, mapped)
}

// debugPayload builds the opt-in debug data object.
func (m *ErrorMapper) debugPayload(cls classified, mapping errorMapping) map[string]any {
	data := map[string]any{
		"classification":  string(cls.Class),
		"severity":        string(mapping.Severity),
		"originalType":    cls.OriginalType,
		"originalMessage": cls.OriginalMessage,
		"timestamp":       time.Now().UTC().Format(time.RFC3339Nano),
	}
	if cls.MiddlewareIndex != nil {
		data["middlewareIndex"] = *cls.MiddlewareIndex
	}
	if cls.ExecutionID != "" {
		data["executionId"] = cls.ExecutionID
	}
	if m.mapper.includeStackTrace {
		data["stack"] = cls.OriginalMessage + "\n" + string(debug.Stack())
	}
	return data
}

func (m *ErrorMapper) log(rc *RequestContext, rpcErr *protocol.Error, cls classified) {
	mapping := cls.mapping()

	entry := &logging.Entry{
		Timestamp: time.Now().UTC(),
		Error: &logging.ErrorDetails{
			Classification:  string(cls.Class),
			Severity:        string(mapping.Severity),
			Type:            cls.OriginalType,
			Code:            rpcErr.Code,
			Message:         rpcErr.Message,
			OriginalMessage: cls.OriginalMessage,
			Data:            rpcErr.Data,
		},
		Metadata: m.metadata(rc),
	}

	if m.mapper.includeRequestContext {
		entry.Context = m.requestDetails(rc, cls)
	}

	m.mapper.logger.Log(severityLevel(mapping.Severity), "request error mapped", entry)
}

func (m *ErrorMapper) metadata(rc *RequestContext) *logging.Metadata {
	meta := &logging.Metadata{
		Source:        mapperSource,
		Version:       m.mapper.version,
		Environment:   m.cfg.Environment,
		CorrelationID: uuid.NewString(),
		Fields:        m.mapper.customFields,
	}
	if sc := trace.SpanContextFromContext(rc.Context()); sc.IsValid() {
		meta.TraceID = sc.TraceID().String()
		meta.SpanID = sc.SpanID().String()
	}
	return meta
}

func (m *ErrorMapper) requestDetails(rc *RequestContext, cls classified) *logging.RequestDetails {
	details := &logging.RequestDetails{
		RequestID:       rc.GetString(StateRequestID),
		Transport:       rc.Transport.Name,
		Timestamp:       time.Now().UTC(),
		MiddlewareIndex: cls.MiddlewareIndex,
		ExecutionID:     cls.ExecutionID,
	}
	if rc.Request != nil {
		details.Method = rc.Request.Method
		if details.RequestID == "" && len(rc.Request.ID) > 0 {
			details.RequestID = string(rc.Request.ID)
		}
	}
	if rc.Transport.Peer != nil {
		details.Peer = rc.Transport.Peer.Address
	}
	return details
}

func (m *ErrorMapper) debugMode() bool {
	if m.mapper.debugMode != nil {
		return *m.mapper.debugMode
	}
	return m.cfg.DebugMode
}

// severityLevel maps severity grades to log levels.
func severityLevel(s Severity) logging.Level {
	switch s {
	case SeverityCritical, SeverityHigh:
		return logging.LevelError
	case SeverityMedium:
		return logging.LevelWarn
	default:
		return logging.LevelInfo
	}
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
