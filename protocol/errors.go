// Package protocol implements the JSON-RPC 2.0 protocol layer.
package protocol

import "fmt"

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Implementation-defined error codes in the reserved server-error band.
const (
	CodeNotReady     = -32000
	CodeUnauthorized = -32001
	CodeRateLimited  = -32002
	CodeTimeout      = -32003
	CodeNetwork      = -32004
)

// Server-error band boundaries per the JSON-RPC 2.0 convention.
const (
	ServerErrorMin = -32099
	ServerErrorMax = -32000
)

// IsServerError reports whether code falls in the reserved server-error band.
func IsServerError(code int) bool {
	return code >= ServerErrorMin && code <= ServerErrorMax
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc: %s (code: %d)", e.Message, e.Code)
}

// Is implements errors.Is comparison by error code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithData returns a copy of the error with additional data attached.
func (e *Error) WithData(data any) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Data:    data,
	}
}

// NewParseError creates a parse error (-32700).
func NewParseError(msg string) *Error {
	return &Error{Code: CodeParseError, Message: msg}
}

// NewInvalidRequest creates an invalid request error (-32600).
func NewInvalidRequest(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

// NewMethodNotFound creates a method not found error (-32601).
func NewMethodNotFound(msg string) *Error {
	return &Error{Code: CodeMethodNotFound, Message: msg}
}

// NewInvalidParams creates an invalid params error (-32602).
func NewInvalidParams(msg string) *Error {
	return &Error{Code: CodeInvalidParams, Message: msg}
}

// NewInternalError creates an internal error (-32603).
func NewInternalError(msg string) *Error {
	return &Error{Code: CodeInternalError, Message: msg}
}

// NewNotReady creates a lifecycle gating error (-32000).
func NewNotReady(msg string) *Error {
	return &Error{Code: CodeNotReady, Message: msg}
}

// NewUnauthorized creates an unauthorized error (-32001).
func NewUnauthorized(msg string) *Error {
	return &Error{Code: CodeUnauthorized, Message: msg}
}

// NewRateLimited creates a rate limit error (-32002).
func NewRateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// NewTimeout creates a timeout error (-32003).
func NewTimeout(msg string) *Error {
	return &Error{Code: CodeTimeout, Message: msg}
}

// NewNetwork creates a network error (-32004).
func NewNetwork(msg string) *Error {
	return &Error{Code: CodeNetwork, Message: msg}
}
