package middleware

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mcpkit/mcpkit/protocol"
)

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func TestClassify_EngineControlErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantClass Classification
		wantIndex int
	}{
		{
			name:      "middleware error",
			err:       &MiddlewareError{Index: 3, Cause: errors.New("boom")},
			wantClass: ClassMiddlewareError,
			wantIndex: 3,
		},
		{
			name:      "timeout error",
			err:       &TimeoutError{Timeout: 50 * time.Millisecond, Index: 2},
			wantClass: ClassMiddlewareTimeout,
			wantIndex: 2,
		},
		{
			name:      "reentrant call",
			err:       &ReentrantCallError{ExecutionID: "exec-1", Index: 1},
			wantClass: ClassReentrantCall,
			wantIndex: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := classify(tt.err)
			if cls.Class != tt.wantClass {
				t.Errorf("class = %s, want %s", cls.Class, tt.wantClass)
			}
			if cls.MiddlewareIndex == nil || *cls.MiddlewareIndex != tt.wantIndex {
				t.Errorf("index = %v, want %d", cls.MiddlewareIndex, tt.wantIndex)
			}
		})
	}
}

func TestClassify_RPCErrorPassesThrough(t *testing.T) {
	rpcErr := protocol.NewMethodNotFound("nope")
	cls := classify(rpcErr)

	if cls.Class != ClassRPCError {
		t.Fatalf("class = %s, want %s", cls.Class, ClassRPCError)
	}
	if cls.RPC != rpcErr {
		t.Error("RPC error should be preserved verbatim")
	}

	mapping := cls.mapping()
	if mapping.Code != protocol.CodeMethodNotFound {
		t.Errorf("code = %d, want %d", mapping.Code, protocol.CodeMethodNotFound)
	}
	if mapping.DebugEligible {
		t.Error("RPC errors must not be debug-eligible")
	}
}

func TestClassify_WrappedRPCError(t *testing.T) {
	inner := protocol.NewInvalidParams("bad")
	wrapped := fmt.Errorf("handler: %w", inner)

	cls := classify(wrapped)
	if cls.Class != ClassRPCError {
		t.Errorf("class = %s, want %s", cls.Class, ClassRPCError)
	}
	if cls.RPC.Code != protocol.CodeInvalidParams {
		t.Errorf("code = %d, want %d", cls.RPC.Code, protocol.CodeInvalidParams)
	}
}

func TestClassify_Heuristics(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Classification
	}{
		{"validation by type", &validationError{msg: "field missing"}, ClassValidation},
		{"auth by message", errors.New("unauthorized access"), ClassAuthentication},
		{"authorization", errors.New("permission denied"), ClassAuthorization},
		{"timeout", errors.New("operation timeout"), ClassTimeout},
		{"network", errors.New("connection refused"), ClassNetwork},
		{"parse", errors.New("syntax error at line 3"), ClassParse},
		{"rate limit", errors.New("too many requests"), ClassRateLimit},
		{"fallback", errors.New("something else"), ClassStandard},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := heuristicClass(tt.err); got != tt.want {
				t.Errorf("heuristicClass(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_NonErrorPanicValue(t *testing.T) {
	cls := classify(&panicValueError{value: 42})
	if cls.Class != ClassUnknown {
		t.Errorf("class = %s, want %s", cls.Class, ClassUnknown)
	}
	if cls.OriginalMessage != "panic: 42" {
		t.Errorf("message = %q, want %q", cls.OriginalMessage, "panic: 42")
	}
}

func TestClassificationTable_Codes(t *testing.T) {
	tests := []struct {
		class Classification
		code  int
	}{
		{ClassValidation, protocol.CodeInvalidParams},
		{ClassAuthentication, protocol.CodeUnauthorized},
		{ClassAuthorization, protocol.CodeUnauthorized},
		{ClassTimeout, protocol.CodeTimeout},
		{ClassNetwork, protocol.CodeNetwork},
		{ClassParse, protocol.CodeParseError},
		{ClassRateLimit, protocol.CodeRateLimited},
		{ClassMiddlewareError, protocol.CodeInternalError},
		{ClassMiddlewareTimeout, protocol.CodeInternalError},
		{ClassReentrantCall, protocol.CodeInternalError},
		{ClassStandard, protocol.CodeInternalError},
		{ClassUnknown, protocol.CodeInternalError},
	}

	for _, tt := range tests {
		if got := classificationTable[tt.class].Code; got != tt.code {
			t.Errorf("%s -> %d, want %d", tt.class, got, tt.code)
		}
	}
}

func TestRPCSeverity(t *testing.T) {
	tests := []struct {
		code int
		want Severity
	}{
		{protocol.CodeParseError, SeverityHigh},
		{protocol.CodeInternalError, SeverityHigh},
		{protocol.CodeNotReady, SeverityMedium},
		{protocol.CodeRateLimited, SeverityMedium},
		{protocol.CodeMethodNotFound, SeverityLow},
		{protocol.CodeInvalidParams, SeverityLow},
	}
	for _, tt := range tests {
		if got := rpcSeverity(tt.code); got != tt.want {
			t.Errorf("rpcSeverity(%d) = %s, want %s", tt.code, got, tt.want)
		}
	}
}
