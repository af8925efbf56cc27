// Package testutil provides an in-memory client that drives the full
// dispatch pipeline without a transport, plus a recording logger for
// asserting on structured log output.
//
// Example usage:
//
//	func TestMyServer(t *testing.T) {
//	    srv := mcpkit.NewServer(mcpkit.ServerInfo{Name: "test", Version: "1.0.0"})
//	    srv.Tool("greet").Handler(func(ctx context.Context, args json.RawMessage) (string, error) {
//	        return "Hello", nil
//	    })
//
//	    client := testutil.NewClient(t, srv)
//	    resp := client.Call("tools/call", map[string]any{"name": "greet"})
//	    if resp.Error != nil {
//	        t.Fatalf("unexpected error: %v", resp.Error)
//	    }
//	}
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/mcpkit/mcpkit"
	"github.com/mcpkit/mcpkit/dispatch"
	"github.com/mcpkit/mcpkit/logging"
	"github.com/mcpkit/mcpkit/protocol"
)

// TransportName is the transport label test dispatches run under.
const TransportName = "inmem"

// Client feeds messages straight into a dispatch function and captures the
// responses the pipeline produces.
type Client struct {
	t  testing.TB
	d  dispatch.Func
	mu sync.Mutex
	id int64
}

// NewClient builds a runtime around srv and performs the initialize
// handshake so operational methods are immediately callable.
func NewClient(t testing.TB, srv *mcpkit.Server, opts ...mcpkit.RuntimeOption) *Client {
	t.Helper()

	rt, err := mcpkit.NewRuntime(srv, opts...)
	if err != nil {
		t.Fatalf("failed to build runtime: %v", err)
	}
	c := NewClientWithDispatch(t, rt.Dispatch(TransportName))

	resp := c.Call(protocol.MethodInitialize, map[string]any{
		"protocolVersion": protocol.Version,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "testutil", "version": "0.0.0"},
	})
	if resp == nil || resp.Error != nil {
		t.Fatalf("initialize handshake failed: %+v", resp)
	}
	c.Notify(protocol.MethodInitialized, nil)
	return c
}

// NewClientWithDispatch wraps an existing dispatch function. Useful for
// testing a hand-assembled pipeline; no handshake is performed.
func NewClientWithDispatch(t testing.TB, d dispatch.Func) *Client {
	t.Helper()
	return &Client{t: t, d: d}
}

func (c *Client) nextID() json.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id++
	return json.RawMessage(fmt.Sprintf("%d", c.id))
}

// Call sends a request and returns the single response the pipeline
// produced, or nil if none was produced.
func (c *Client) Call(method string, params any) *protocol.Response {
	c.t.Helper()

	req := map[string]any{
		"jsonrpc": protocol.JSONRPCVersion,
		"id":      json.RawMessage(c.nextID()),
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		c.t.Fatalf("failed to marshal request: %v", err)
	}
	return c.Send(data)
}

// Notify sends a notification (no id). Notifications produce no response
// unless the pipeline rejects the envelope.
func (c *Client) Notify(method string, params any) *protocol.Response {
	c.t.Helper()

	req := map[string]any{
		"jsonrpc": protocol.JSONRPCVersion,
		"method":  method,
	}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	if err != nil {
		c.t.Fatalf("failed to marshal notification: %v", err)
	}
	return c.Send(data)
}

// Send pushes a raw message through the pipeline and returns the captured
// response, or nil if the pipeline produced none.
func (c *Client) Send(raw []byte) *protocol.Response {
	c.t.Helper()

	rec := NewRespondRecorder()
	c.d(context.Background(), raw, rec.Respond, nil)
	return rec.Last()
}

// Result unmarshals the response result into a map, failing the test on a
// nil response, an error response, or an unmarshalable result.
func (c *Client) Result(resp *protocol.Response) map[string]any {
	c.t.Helper()

	if resp == nil {
		c.t.Fatal("expected a response, got none")
	}
	if resp.Error != nil {
		c.t.Fatalf("unexpected error response: code=%d message=%q", resp.Error.Code, resp.Error.Message)
	}
	// Results are produced in-process as Go values; round-trip through JSON
	// to get the wire shape.
	data, err := json.Marshal(resp.Result)
	if err != nil {
		c.t.Fatalf("failed to marshal result: %v", err)
	}
	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		c.t.Fatalf("failed to unmarshal result: %v", err)
	}
	return result
}

// RespondRecorder captures every call to a respond callback, for asserting
// on both content and call count.
type RespondRecorder struct {
	mu        sync.Mutex
	responses []*protocol.Response
}

// NewRespondRecorder creates an empty recorder.
func NewRespondRecorder() *RespondRecorder {
	return &RespondRecorder{}
}

// Respond is the callback to hand to the pipeline.
func (r *RespondRecorder) Respond(resp *protocol.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
}

// Count returns how many times Respond was called.
func (r *RespondRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.responses)
}

// Last returns the most recent response, or nil.
func (r *RespondRecorder) Last() *protocol.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.responses) == 0 {
		return nil
	}
	return r.responses[len(r.responses)-1]
}

// RecordingLogger captures log entries in memory.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []RecordedEntry
}

// RecordedEntry is one captured log call.
type RecordedEntry struct {
	Level   logging.Level
	Message string
	Entry   *logging.Entry
}

// NewRecordingLogger creates an empty recording logger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

// Log records the entry.
func (l *RecordingLogger) Log(level logging.Level, msg string, entry *logging.Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, RecordedEntry{Level: level, Message: msg, Entry: entry})
}

func (l *RecordingLogger) Error(msg string, entry *logging.Entry) { l.Log(logging.LevelError, msg, entry) }
func (l *RecordingLogger) Warn(msg string, entry *logging.Entry)  { l.Log(logging.LevelWarn, msg, entry) }
func (l *RecordingLogger) Info(msg string, entry *logging.Entry)  { l.Log(logging.LevelInfo, msg, entry) }
func (l *RecordingLogger) Debug(msg string, entry *logging.Entry) { l.Log(logging.LevelDebug, msg, entry) }

// Entries returns a copy of all captured entries.
func (l *RecordingLogger) Entries() []RecordedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]RecordedEntry(nil), l.entries...)
}

// LastEntry returns the most recent entry, or a zero value if none.
func (l *RecordingLogger) LastEntry() RecordedEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return RecordedEntry{}
	}
	return l.entries[len(l.entries)-1]
}
