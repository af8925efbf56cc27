// Package middleware implements the middleware execution engine, the
// ordered middleware registry, the error classification/mapping middleware,
// and a set of ready-made cross-cutting middleware.
//
// # Execution model
//
// A Middleware receives the per-request context and a next continuation.
// Chains execute with onion discipline: registration order on the way in,
// exact reverse order on unwind. A middleware that sets rc.Response before
// calling next short-circuits everything downstream; ancestors that already
// ran their entry half still run their unwind half.
//
// The Engine guards every chain execution with a polled deadline, a maximum
// call depth, and re-entrancy detection, and keeps per-execution bookkeeping
// observable through ActiveExecutions and IsExecuting.
//
// # Error mapping
//
// ErrorMapper is the canonical outermost layer: it classifies any error
// escaping the inner chain, maps it to a protocol error, logs one structured
// entry, and converts the failure into a normal response.
package middleware
