package middleware

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mcpkit/mcpkit/protocol"
)

func newTestContext() *RequestContext {
	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      []byte("1"),
		Method:  "test/method",
	}
	return NewRequestContext(nil, req, TransportInfo{Name: "inmem"})
}

func TestEngine_Execute_OnionOrder(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	var order []string
	mw := func(name string) Middleware {
		return func(_ *RequestContext, next Next) error {
			order = append(order, name+":before")
			err := next()
			order = append(order, name+":after")
			return err
		}
	}

	stack := []Middleware{mw("m0"), mw("m1"), mw("m2")}
	if err := engine.Execute(rc, stack); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	want := []string{
		"m0:before", "m1:before", "m2:before",
		"m2:after", "m1:after", "m0:after",
	}
	if len(order) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(order), order)
	}
	for i, w := range want {
		if order[i] != w {
			t.Errorf("order[%d] = %q, want %q", i, order[i], w)
		}
	}
}

func TestEngine_Apply_EmptyStack(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	called := 0
	composed := engine.Apply(nil)
	err := composed(rc, func() error {
		called++
		return nil
	})
	if err != nil {
		t.Fatalf("empty stack failed: %v", err)
	}
	if called != 1 {
		t.Errorf("expected next called once, got %d", called)
	}
}

func TestEngine_Apply_CallerNextRunsInnermost(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	var order []string
	stack := []Middleware{
		func(_ *RequestContext, next Next) error {
			order = append(order, "mw:before")
			err := next()
			order = append(order, "mw:after")
			return err
		},
	}

	composed := engine.Apply(stack)
	err := composed(rc, func() error {
		order = append(order, "core")
		return nil
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	want := []string{"mw:before", "core", "mw:after"}
	for i, w := range want {
		if i >= len(order) || order[i] != w {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestEngine_Execute_ShortCircuit(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	downstreamRan := false
	stack := []Middleware{
		func(rc *RequestContext, next Next) error {
			rc.Response = protocol.NewResponse(rc.Request.ID, "early")
			return next()
		},
		func(_ *RequestContext, next Next) error {
			downstreamRan = true
			return next()
		},
	}

	if err := engine.Execute(rc, stack); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if downstreamRan {
		t.Error("downstream middleware ran despite short-circuit")
	}
	if rc.Response == nil || rc.Response.Result != "early" {
		t.Errorf("expected short-circuit response, got %+v", rc.Response)
	}
}

func TestEngine_Execute_WrapsOnceAtFailingIndex(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	cause := errors.New("boom")
	stack := []Middleware{
		func(_ *RequestContext, next Next) error { return next() },
		func(_ *RequestContext, next Next) error { return next() },
		func(_ *RequestContext, _ Next) error { return cause },
	}

	err := engine.Execute(rc, stack)
	if err == nil {
		t.Fatal("expected an error")
	}

	var mwErr *MiddlewareError
	if !errors.As(err, &mwErr) {
		t.Fatalf("expected MiddlewareError, got %T: %v", err, err)
	}
	if mwErr.Index != 2 {
		t.Errorf("expected failing index 2, got %d", mwErr.Index)
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error should unwrap to the original cause")
	}

	// The outer two levels must not have re-wrapped.
	if got := err.Error(); strings.Count(got, "Middleware at index") != 1 {
		t.Errorf("error wrapped more than once: %q", got)
	}
}

func TestEngine_Execute_Timeout(t *testing.T) {
	mock := clock.NewMock()
	engine := NewEngine(WithClock(mock))
	rc := newTestContext()

	stack := []Middleware{
		func(_ *RequestContext, next Next) error {
			mock.Add(100 * time.Millisecond)
			return next()
		},
		func(_ *RequestContext, next Next) error { return next() },
	}

	err := engine.Execute(rc, stack, WithTimeout(50*time.Millisecond))
	if err == nil {
		t.Fatal("expected a timeout error")
	}

	var toErr *TimeoutError
	if !errors.As(err, &toErr) {
		t.Fatalf("expected TimeoutError, got %T: %v", err, err)
	}
	if toErr.Index != 1 {
		t.Errorf("expected timeout detected at index 1, got %d", toErr.Index)
	}
	if !strings.Contains(err.Error(), "timed out after 50ms") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestEngine_Execute_MaxDepth(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	passthrough := func(_ *RequestContext, next Next) error { return next() }
	stack := make([]Middleware, 10)
	for i := range stack {
		stack[i] = passthrough
	}

	err := engine.Execute(rc, stack, WithMaxDepth(5))
	if err == nil {
		t.Fatal("expected a depth error")
	}
	if !strings.Contains(err.Error(), "Maximum call depth exceeded (5)") {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestEngine_Execute_ReentrantCall(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	stack := []Middleware{
		func(rc *RequestContext, next Next) error {
			// Stash the continuation so an inner middleware can re-enter it
			// while it is still in flight.
			rc.Set("reenter", next)
			return next()
		},
		func(rc *RequestContext, next Next) error {
			reenter, _ := rc.Get("reenter")
			return reenter.(Next)()
		},
	}

	err := engine.Execute(rc, stack)
	if err == nil {
		t.Fatal("expected a re-entrancy error")
	}

	var reErr *ReentrantCallError
	if !errors.As(err, &reErr) {
		t.Fatalf("expected ReentrantCallError, got %T: %v", err, err)
	}
	if reErr.Index != 1 {
		t.Errorf("expected re-entry detected at index 1, got %d", reErr.Index)
	}
	if reErr.ExecutionID == "" {
		t.Error("expected a non-empty execution id")
	}
}

func TestEngine_Execute_SequentialReinvocationAllowed(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	calls := 0
	stack := []Middleware{
		func(_ *RequestContext, next Next) error {
			if err := next(); err != nil {
				return err
			}
			// A second, non-overlapping pass through the tail is legal.
			return next()
		},
		func(_ *RequestContext, next Next) error {
			calls++
			return next()
		},
	}

	if err := engine.Execute(rc, stack); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected downstream to run twice, ran %d times", calls)
	}
}

func TestEngine_ExecutionBookkeeping(t *testing.T) {
	engine := NewEngine()
	rc := newTestContext()

	var observedID string
	stack := []Middleware{
		func(_ *RequestContext, next Next) error {
			active := engine.ActiveExecutions()
			if len(active) != 1 {
				t.Errorf("expected 1 active execution, got %d", len(active))
			}
			for id, exec := range active {
				observedID = id
				if !exec.IsExecuting {
					t.Error("active execution not marked as executing")
				}
				if exec.Total != 1 {
					t.Errorf("expected total 1, got %d", exec.Total)
				}
			}
			if !engine.IsExecuting() {
				t.Error("IsExecuting() should report true mid-execution")
			}
			return next()
		},
	}

	if err := engine.Execute(rc, stack); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if engine.IsExecuting() {
		t.Error("IsExecuting() should report false after completion")
	}
	if engine.IsExecuting(observedID) {
		t.Error("completed execution id still reported as executing")
	}
	if len(engine.ActiveExecutions()) != 0 {
		t.Error("active executions should be empty after completion")
	}
}

func TestEngine_ConcurrentExecutions(t *testing.T) {
	engine := NewEngine()

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rc := newTestContext()
			errs[i] = engine.Execute(rc, []Middleware{
				func(_ *RequestContext, next Next) error {
					time.Sleep(time.Millisecond)
					return next()
				},
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("execution %d failed: %v", i, err)
		}
	}
	if engine.IsExecuting() {
		t.Error("no execution should remain active")
	}
}
