package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mcpkit/mcpkit/logging"
	"github.com/mcpkit/mcpkit/protocol"
)

func TestRecover(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	stack := []Middleware{
		Recover(),
		func(_ *RequestContext, _ Next) error {
			panic("handler exploded")
		},
	}

	err := engine.Execute(rc, stack)
	if err == nil {
		t.Fatal("expected an error from the recovered panic")
	}

	var rpcErr *protocol.Error
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected a protocol error, got %T: %v", err, err)
	}
	if rpcErr.Code != protocol.CodeInternalError {
		t.Errorf("code = %d, want %d", rpcErr.Code, protocol.CodeInternalError)
	}
}

func TestRecoverWithHandler(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	var captured any
	stack := []Middleware{
		RecoverWithHandler(func(_ *RequestContext, panicVal any) error {
			captured = panicVal
			return errors.New("handled")
		}),
		func(_ *RequestContext, _ Next) error {
			panic("custom")
		},
	}

	err := engine.Execute(rc, stack)
	if err == nil || captured != "custom" {
		t.Errorf("expected handler to see the panic value, got captured=%v err=%v", captured, err)
	}
}

func TestRequestID(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	var observed string
	stack := []Middleware{
		RequestID(),
		func(rc *RequestContext, next Next) error {
			observed = rc.GetString(StateRequestID)
			return next()
		},
	}

	if err := engine.Execute(rc, stack); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if observed == "" {
		t.Error("expected a generated request id")
	}
}

func TestRequestID_PreservesUpstreamID(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()
	rc.Set(StateRequestID, "upstream-id")

	stack := []Middleware{RequestID()}
	if err := engine.Execute(rc, stack); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := rc.GetString(StateRequestID); got != "upstream-id" {
		t.Errorf("request id = %q, want upstream value preserved", got)
	}
}

func TestTimeout_AttachesDeadline(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	var hadDeadline bool
	stack := []Middleware{
		Timeout(time.Second),
		func(rc *RequestContext, next Next) error {
			_, hadDeadline = rc.Context().Deadline()
			return next()
		},
	}

	if err := engine.Execute(rc, stack); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !hadDeadline {
		t.Error("expected a context deadline inside the chain")
	}
	if _, still := rc.Context().Deadline(); still {
		t.Error("deadline should be removed after the chain unwinds")
	}
}

func TestSizeLimit(t *testing.T) {
	engine := NewEngine()

	t.Run("within limit", func(t *testing.T) {
		rc := newTestContext()
		rc.Request.Params = json.RawMessage(`{"a":1}`)

		if err := engine.Execute(rc, []Middleware{SizeLimit(1 * KB)}); err != nil {
			t.Errorf("small request rejected: %v", err)
		}
	})

	t.Run("over limit", func(t *testing.T) {
		rc := newTestContext()
		rc.Request.Params = json.RawMessage(bytes.Repeat([]byte("x"), 2*KB))

		err := engine.Execute(rc, []Middleware{SizeLimit(1 * KB)})
		var rpcErr *protocol.Error
		if !errors.As(err, &rpcErr) || rpcErr.Code != protocol.CodeInvalidRequest {
			t.Errorf("expected invalid request error, got %v", err)
		}
	})
}

func TestAuth(t *testing.T) {
	engine := NewEngine()

	allow := func(rc *RequestContext) (*Identity, error) {
		if protocol.GetRequestMeta(rc.Context(), "X-API-Key") == "secret" {
			return &Identity{ID: "user-1", Name: "User"}, nil
		}
		return nil, nil
	}

	t.Run("valid credentials", func(t *testing.T) {
		ctx := protocol.ContextWithRequestMeta(context.Background(), protocol.RequestMeta{"X-API-Key": "secret"})
		rc := NewRequestContext(ctx, &protocol.Request{
			JSONRPC: protocol.JSONRPCVersion, ID: []byte("1"), Method: "tools/list",
		}, TransportInfo{Name: "inmem"})

		var principal *Identity
		stack := []Middleware{
			Auth(allow),
			func(rc *RequestContext, next Next) error {
				principal = PrincipalFromContext(rc)
				return next()
			},
		}
		if err := engine.Execute(rc, stack); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if principal == nil || principal.ID != "user-1" {
			t.Errorf("principal = %+v", principal)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		rc := NewRequestContext(context.Background(), &protocol.Request{
			JSONRPC: protocol.JSONRPCVersion, ID: []byte("1"), Method: "tools/list",
		}, TransportInfo{Name: "inmem"})

		innerRan := false
		stack := []Middleware{
			Auth(allow),
			func(_ *RequestContext, next Next) error {
				innerRan = true
				return next()
			},
		}
		err := engine.Execute(rc, stack)
		var rpcErr *protocol.Error
		if !errors.As(err, &rpcErr) || rpcErr.Code != protocol.CodeUnauthorized {
			t.Errorf("expected unauthorized error, got %v", err)
		}
		if innerRan {
			t.Error("inner middleware must not run after auth failure")
		}
	})

	t.Run("handshake methods exempt", func(t *testing.T) {
		rc := NewRequestContext(context.Background(), &protocol.Request{
			JSONRPC: protocol.JSONRPCVersion, ID: []byte("1"), Method: protocol.MethodInitialize,
		}, TransportInfo{Name: "inmem"})

		if err := engine.Execute(rc, []Middleware{Auth(allow)}); err != nil {
			t.Errorf("handshake method should bypass auth: %v", err)
		}
	})
}

func TestBearerTokenAuthenticator(t *testing.T) {
	validator := StaticTokens(map[string]*Identity{
		"tok-1": {ID: "user-1"},
	})
	authn := BearerTokenAuthenticator(validator)

	t.Run("valid token", func(t *testing.T) {
		ctx := protocol.ContextWithRequestMeta(context.Background(),
			protocol.RequestMeta{"Authorization": "Bearer tok-1"})
		rc := NewRequestContext(ctx, &protocol.Request{Method: "x"}, TransportInfo{})

		id, err := authn(rc)
		if err != nil || id == nil || id.ID != "user-1" {
			t.Errorf("id = %+v, err = %v", id, err)
		}
	})

	t.Run("unknown token", func(t *testing.T) {
		ctx := protocol.ContextWithRequestMeta(context.Background(),
			protocol.RequestMeta{"Authorization": "Bearer nope"})
		rc := NewRequestContext(ctx, &protocol.Request{Method: "x"}, TransportInfo{})

		id, err := authn(rc)
		if err != nil || id != nil {
			t.Errorf("id = %+v, err = %v", id, err)
		}
	})

	t.Run("no header", func(t *testing.T) {
		rc := NewRequestContext(context.Background(), &protocol.Request{Method: "x"}, TransportInfo{})
		id, err := authn(rc)
		if err != nil || id != nil {
			t.Errorf("id = %+v, err = %v", id, err)
		}
	})
}

func TestRateLimit(t *testing.T) {
	engine := NewEngine()

	limited := RateLimit(1, 1)

	first := newTestContext()
	if err := engine.Execute(first, []Middleware{limited}); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}

	second := newTestContext()
	err := engine.Execute(second, []Middleware{limited})
	var rpcErr *protocol.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != protocol.CodeRateLimited {
		t.Errorf("expected rate limited error, got %v", err)
	}
}

func TestLogging_LevelsByOutcome(t *testing.T) {
	engine := NewEngine()

	t.Run("success logs info", func(t *testing.T) {
		logger := &captureLogger{}
		rc := newTestContext()
		stack := []Middleware{
			Logging(logger),
			func(rc *RequestContext, next Next) error {
				rc.Response = protocol.NewResponse(rc.Request.ID, "ok")
				return next()
			},
		}
		if err := engine.Execute(rc, stack); err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if logger.count() != 1 || logger.levels[0] != logging.LevelInfo {
			t.Errorf("levels = %v", logger.levels)
		}
	})

	t.Run("failure logs error", func(t *testing.T) {
		logger := &captureLogger{}
		rc := newTestContext()
		stack := []Middleware{
			Logging(logger),
			func(_ *RequestContext, _ Next) error {
				return errors.New("boom")
			},
		}
		if err := engine.Execute(rc, stack); err == nil {
			t.Fatal("expected the failure to propagate")
		}
		if logger.count() != 1 || logger.levels[0] != logging.LevelError {
			t.Errorf("levels = %v", logger.levels)
		}
	})
}

func TestDefaultStack(t *testing.T) {
	stack := DefaultStack(logging.NopLogger{})
	if len(stack) != 3 {
		t.Fatalf("expected 3 middleware, got %d", len(stack))
	}

	withTimeout := DefaultStackWithTimeout(logging.NopLogger{}, time.Second)
	if len(withTimeout) != 4 {
		t.Fatalf("expected 4 middleware, got %d", len(withTimeout))
	}
}
