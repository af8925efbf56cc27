package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Execution guard defaults.
const (
	DefaultExecuteTimeout = 30 * time.Second
	DefaultMaxDepth       = 100
)

// Execution records one in-flight Execute call. Exposed for observability
// and testing only; it plays no part in control flow.
type Execution struct {
	ID           string
	IsExecuting  bool
	CurrentIndex int
	Total        int
	StartedAt    time.Time
}

// ExecOption configures a single Execute call.
type ExecOption func(*execOptions)

type execOptions struct {
	timeout  time.Duration
	maxDepth int
}

// WithTimeout overrides the execution deadline.
func WithTimeout(d time.Duration) ExecOption {
	return func(o *execOptions) {
		o.timeout = d
	}
}

// WithMaxDepth overrides the maximum call depth.
func WithMaxDepth(n int) ExecOption {
	return func(o *execOptions) {
		o.maxDepth = n
	}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock injects the clock used for deadline polling. Tests pass a mock.
func WithClock(c clock.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// Engine executes middleware chains with onion ordering, deadline polling,
// call-depth limiting, and re-entrancy detection. The active-executions map
// is the only state shared across concurrent executions; each execution owns
// a distinct random key, so no further coordination is needed between them.
type Engine struct {
	mu     sync.RWMutex
	active map[string]*Execution
	clock  clock.Clock
}

// NewEngine creates an engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		active: make(map[string]*Execution),
		clock:  clock.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply composes a middleware stack into a single middleware. An empty stack
// composes to a middleware that simply invokes next once. Otherwise the
// returned middleware appends a synthetic final layer wrapping the caller's
// next and delegates to Execute.
func (e *Engine) Apply(stack []Middleware, opts ...ExecOption) Middleware {
	snapshot := append([]Middleware(nil), stack...)

	return func(rc *RequestContext, next Next) error {
		if len(snapshot) == 0 {
			return next()
		}
		final := Middleware(func(_ *RequestContext, chainNext Next) error {
			if err := next(); err != nil {
				return err
			}
			return chainNext()
		})
		full := make([]Middleware, 0, len(snapshot)+1)
		full = append(full, snapshot...)
		full = append(full, final)
		return e.Execute(rc, full, opts...)
	}
}

// Execute runs a middleware chain against rc under the engine's guards.
// Guard failures (timeout, depth, re-entrancy) reject the whole execution;
// nothing is retried. An ordinary middleware failure is wrapped exactly once,
// at the failing index.
func (e *Engine) Execute(rc *RequestContext, stack []Middleware, opts ...ExecOption) error {
	options := &execOptions{
		timeout:  DefaultExecuteTimeout,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(options)
	}

	exec := &Execution{
		ID:          uuid.NewString(),
		IsExecuting: true,
		Total:       len(stack),
		StartedAt:   e.clock.Now(),
	}

	e.mu.Lock()
	e.active[exec.ID] = exec
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.active, exec.ID)
		e.mu.Unlock()
	}()

	f := &frame{
		engine:   e,
		exec:     exec,
		rc:       rc,
		stack:    stack,
		start:    exec.StartedAt,
		timeout:  options.timeout,
		maxDepth: options.maxDepth,
		inFlight: make(map[int]struct{}),
	}
	return f.call(0)
}

// ActiveExecutions returns a defensive copy of the in-flight execution map.
func (e *Engine) ActiveExecutions() map[string]Execution {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]Execution, len(e.active))
	for id, exec := range e.active {
		out[id] = *exec
	}
	return out
}

// IsExecuting reports whether the given execution (or, with no argument,
// any execution) is in flight.
func (e *Engine) IsExecuting(ids ...string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if len(ids) == 0 {
		return len(e.active) > 0
	}
	for _, id := range ids {
		if _, ok := e.active[id]; ok {
			return true
		}
	}
	return false
}

func (e *Engine) setCurrentIndex(id string, index int) {
	e.mu.Lock()
	if exec, ok := e.active[id]; ok {
		exec.CurrentIndex = index
	}
	e.mu.Unlock()
}

// frame is the shared per-execution state threaded through every next()
// continuation: stack reference, deadline, depth counter, and the set of
// indices currently in flight. Holding it in one struct keeps the guard
// checks unit-testable and bounds closure nesting.
type frame struct {
	engine   *Engine
	exec     *Execution
	rc       *RequestContext
	stack    []Middleware
	start    time.Time
	timeout  time.Duration
	maxDepth int

	mu       sync.Mutex
	depth    int
	inFlight map[int]struct{}
}

// next returns the continuation that enters the chain at index.
func (f *frame) next(index int) Next {
	return func() error {
		return f.call(index)
	}
}

func (f *frame) call(index int) error {
	// Deadline is polled here, not enforced by cancellation.
	if f.engine.clock.Now().Sub(f.start) > f.timeout {
		return &TimeoutError{Timeout: f.timeout, Index: index}
	}

	f.mu.Lock()
	f.depth++
	depth := f.depth
	f.mu.Unlock()

	if depth > f.maxDepth {
		return fmt.Errorf("Maximum call depth exceeded (%d) at middleware index %d", f.maxDepth, index)
	}

	// Terminal call: the whole chain ran.
	if index >= len(f.stack) {
		f.mu.Lock()
		f.depth--
		f.mu.Unlock()
		return nil
	}

	f.mu.Lock()
	if _, busy := f.inFlight[index]; busy {
		f.mu.Unlock()
		return &ReentrantCallError{ExecutionID: f.exec.ID, Index: index}
	}
	f.inFlight[index] = struct{}{}
	f.mu.Unlock()

	f.engine.setCurrentIndex(f.exec.ID, index)

	// An upstream middleware short-circuited: skip this index and everything
	// downstream. Ancestors still run their unwind halves.
	if f.rc.Response != nil {
		f.release(index)
		return nil
	}

	err := f.stack[index](f.rc, f.next(index+1))
	f.release(index)
	if err != nil {
		// Engine-control errors (and errors already wrapped at their
		// originating index) propagate untouched.
		if _, tagged := err.(Kinder); tagged {
			return err
		}
		return &MiddlewareError{Index: index, Cause: err}
	}
	return nil
}

func (f *frame) release(index int) {
	f.mu.Lock()
	delete(f.inFlight, index)
	f.depth--
	f.mu.Unlock()
}
