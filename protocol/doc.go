// Package protocol defines the JSON-RPC 2.0 wire types, error codes, and
// method constants used throughout mcpkit.
//
// The package owns the Error value type (the "RpcError" of the framework):
// any *protocol.Error escaping a handler or middleware passes through to the
// client with its code, message, and data preserved verbatim.
package protocol
