// Package lifecycle implements the handshake state machine and the request
// gate that decides which methods are legal given handshake progress.
package lifecycle

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mcpkit/mcpkit/protocol"
)

// State is a handshake lifecycle state.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateReady
	StateShuttingDown
	StateShutdown
)

// String returns the state's wire representation.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	case StateShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientCapabilities declares what the client supports. The shape is open:
// capability negotiation is delegated to the CapabilityNegotiator.
type ClientCapabilities map[string]json.RawMessage

// InitializeParams is the expected shape of the initialize request params.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ClientInfo         `json:"clientInfo"`
}

// InitializeResult is returned to the client on a successful handshake.
type InitializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	Capabilities    any        `json:"capabilities"`
	ServerInfo      ServerInfo `json:"serverInfo"`
}

// ServerInfo identifies this server in the handshake result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// CapabilityNegotiator applies the client's requested capabilities and
// returns the server capabilities to advertise. The capability registry
// collaborator implements this.
type CapabilityNegotiator interface {
	Negotiate(client ClientCapabilities) (any, error)
}

// Manager tracks handshake progress. Transitions happen only through
// Initialize and Shutdown. Shutdown is terminal: a shut-down manager cannot
// be re-initialized, a new Manager is required for a fresh session.
type Manager struct {
	mu          sync.RWMutex
	state       State
	info        ServerInfo
	negotiator  CapabilityNegotiator
	clientInfo  *ClientInfo
	initialized bool

	shutdownReason string
}

// NewManager creates a manager in the Idle state.
func NewManager(info ServerInfo, negotiator CapabilityNegotiator) *Manager {
	return &Manager{
		state:      StateIdle,
		info:       info,
		negotiator: negotiator,
	}
}

// CurrentState returns the current lifecycle state.
func (m *Manager) CurrentState() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// ClientInfo returns the client identity captured during initialization,
// or nil before the handshake.
func (m *Manager) ClientInfo() *ClientInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clientInfo
}

// Initialize validates the handshake request, negotiates capabilities, and
// moves the state machine from Idle through Initializing to Ready.
func (m *Manager) Initialize(req *protocol.Request) (*InitializeResult, error) {
	m.mu.Lock()
	if m.state != StateIdle {
		state := m.state
		m.mu.Unlock()
		return nil, protocol.NewInvalidRequest(
			fmt.Sprintf("initialize is only valid in idle state, current state is %s", state))
	}
	m.state = StateInitializing
	m.mu.Unlock()

	params, err := parseInitializeParams(req)
	if err != nil {
		m.reset()
		return nil, err
	}

	caps, err := m.negotiator.Negotiate(params.Capabilities)
	if err != nil {
		m.reset()
		return nil, protocol.NewInvalidParams(fmt.Sprintf("capability negotiation failed: %v", err))
	}

	m.mu.Lock()
	m.clientInfo = &params.ClientInfo
	m.state = StateReady
	m.mu.Unlock()

	return &InitializeResult{
		ProtocolVersion: protocol.Version,
		Capabilities:    caps,
		ServerInfo:      m.info,
	}, nil
}

// Initialized records the client's initialized notification. It is accepted
// in any non-terminal state and does not transition the machine.
func (m *Manager) Initialized() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateReady {
		m.initialized = true
	}
}

// Shutdown moves the machine to ShuttingDown. Operational methods are gated
// from this point on; Complete finishes the transition once in-flight work
// has drained. Idempotent.
func (m *Manager) Shutdown(reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateShutdown, StateShuttingDown:
		return nil
	default:
		m.shutdownReason = reason
		m.state = StateShuttingDown
		return nil
	}
}

// Complete finishes a shutdown in progress. Shutdown is terminal: the
// manager cannot be re-initialized afterwards.
func (m *Manager) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateShuttingDown {
		m.state = StateShutdown
	}
}

// ShutdownReason returns the reason recorded by Shutdown.
func (m *Manager) ShutdownReason() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shutdownReason
}

// reset returns a failed initialization to Idle so the client can retry.
func (m *Manager) reset() {
	m.mu.Lock()
	if m.state == StateInitializing {
		m.state = StateIdle
	}
	m.mu.Unlock()
}

func parseInitializeParams(req *protocol.Request) (*InitializeParams, error) {
	if len(req.Params) == 0 {
		return nil, protocol.NewInvalidParams("initialize requires params")
	}
	var params InitializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return nil, protocol.NewInvalidParams(fmt.Sprintf("malformed initialize params: %v", err))
	}
	if params.ProtocolVersion == "" {
		return nil, protocol.NewInvalidParams("initialize params missing protocolVersion")
	}
	if params.ClientInfo.Name == "" || params.ClientInfo.Version == "" {
		return nil, protocol.NewInvalidParams("initialize params missing clientInfo name/version")
	}
	return &params, nil
}
