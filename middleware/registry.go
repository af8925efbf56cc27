package middleware

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrNilMiddleware is returned when registering a nil middleware.
var ErrNilMiddleware = errors.New("middleware must be a non-nil function")

// Registry is an ordered, mutable collection of middleware. Mutation is a
// configuration-time operation: it carries no synchronization against
// in-flight dispatches, so configure the stack before serving traffic.
type Registry struct {
	stack []Middleware
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a middleware to the stack.
func (r *Registry) Register(m Middleware) error {
	if m == nil {
		return ErrNilMiddleware
	}
	r.stack = append(r.stack, m)
	return nil
}

// Stack returns a defensive copy of the stack, preserving order.
func (r *Registry) Stack() []Middleware {
	return append([]Middleware(nil), r.stack...)
}

// InsertAt inserts a middleware at the given position.
func (r *Registry) InsertAt(index int, m Middleware) error {
	if m == nil {
		return ErrNilMiddleware
	}
	if index < 0 || index > len(r.stack) {
		return fmt.Errorf("insert index %d out of range [0, %d]", index, len(r.stack))
	}
	r.stack = append(r.stack, nil)
	copy(r.stack[index+1:], r.stack[index:])
	r.stack[index] = m
	return nil
}

// Remove removes the first occurrence of a middleware, comparing by function
// identity. Returns true if a middleware was removed.
func (r *Registry) Remove(m Middleware) bool {
	target := reflect.ValueOf(m).Pointer()
	for i, existing := range r.stack {
		if reflect.ValueOf(existing).Pointer() == target {
			r.stack = append(r.stack[:i], r.stack[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAt removes the middleware at the given position.
func (r *Registry) RemoveAt(index int) error {
	if index < 0 || index >= len(r.stack) {
		return fmt.Errorf("remove index %d out of range [0, %d)", index, len(r.stack))
	}
	r.stack = append(r.stack[:index], r.stack[index+1:]...)
	return nil
}

// Replace swaps the middleware at the given position.
func (r *Registry) Replace(index int, m Middleware) error {
	if m == nil {
		return ErrNilMiddleware
	}
	if index < 0 || index >= len(r.stack) {
		return fmt.Errorf("replace index %d out of range [0, %d)", index, len(r.stack))
	}
	r.stack[index] = m
	return nil
}

// Clear removes all middleware.
func (r *Registry) Clear() {
	r.stack = nil
}

// Size returns the number of registered middleware.
func (r *Registry) Size() int {
	return len(r.stack)
}

// IsEmpty reports whether the registry holds no middleware.
func (r *Registry) IsEmpty() bool {
	return len(r.stack) == 0
}
