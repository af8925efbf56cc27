package lifecycle

import (
	"fmt"
	"sync"

	"github.com/mcpkit/mcpkit/protocol"
)

// Gate decides whether an arbitrary method is legal given handshake
// progress. Handshake methods are always exempt; everything else is
// operational and requires the Ready state.
type Gate struct {
	manager *Manager

	mu      sync.Mutex
	lastErr map[string]*protocol.Error
}

// NewGate creates a gate over the given manager.
func NewGate(manager *Manager) *Gate {
	return &Gate{
		manager: manager,
		lastErr: make(map[string]*protocol.Error),
	}
}

// ValidateRequest returns nil if method may execute now. Otherwise it
// records and returns a structured gating error.
func (g *Gate) ValidateRequest(method string) error {
	if protocol.IsHandshakeMethod(method) {
		return nil
	}

	state := g.manager.CurrentState()
	if state == StateReady {
		return nil
	}

	gateErr := &protocol.Error{
		Code:    protocol.CodeNotReady,
		Message: fmt.Sprintf("Operational request '%s' requires server to be in ready state", method),
		Data: map[string]any{
			"currentState": state.String(),
			"operation":    method,
		},
	}

	g.mu.Lock()
	g.lastErr[method] = gateErr
	g.mu.Unlock()

	return gateErr
}

// ValidationError returns the last gating error recorded for method, for the
// dispatcher to surface verbatim. Returns nil if the method never failed
// validation.
func (g *Gate) ValidationError(method string) *protocol.Error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastErr[method]
}
