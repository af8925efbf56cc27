// Package server provides the capability/primitive registries and the
// business-logic dispatcher that backs the request pipeline.
package server

import (
	"sync"

	"github.com/mcpkit/mcpkit/lifecycle"
)

// Info contains server metadata exposed to clients.
type Info struct {
	Name    string
	Version string
}

// Capabilities declares what features the server supports.
type Capabilities struct {
	Tools     bool `json:"tools,omitempty"`
	Resources bool `json:"resources,omitempty"`
	Prompts   bool `json:"prompts,omitempty"`
}

// Option configures a Server.
type Option func(*Server)

// Server holds the registered tools, resources, and prompts.
type Server struct {
	mu sync.RWMutex

	info      Info
	tools     map[string]*Tool
	resources map[string]*Resource
	prompts   map[string]*Prompt
}

// New creates a server with the given info and options.
func New(info Info, opts ...Option) *Server {
	s := &Server{
		info:      info,
		tools:     make(map[string]*Tool),
		resources: make(map[string]*Resource),
		prompts:   make(map[string]*Prompt),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Info returns the server info.
func (s *Server) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// LifecycleInfo returns the server identity in handshake form.
func (s *Server) LifecycleInfo() lifecycle.ServerInfo {
	info := s.Info()
	return lifecycle.ServerInfo{Name: info.Name, Version: info.Version}
}

// Capabilities derives the advertised capabilities from what is registered.
func (s *Server) Capabilities() Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Capabilities{
		Tools:     len(s.tools) > 0,
		Resources: len(s.resources) > 0,
		Prompts:   len(s.prompts) > 0,
	}
}

// Negotiate implements lifecycle.CapabilityNegotiator: it applies the
// client's requested capabilities and returns the server capability set to
// advertise in the handshake result. Unknown client capabilities are
// tolerated; negotiation only advertises what is actually registered.
func (s *Server) Negotiate(_ lifecycle.ClientCapabilities) (any, error) {
	caps := s.Capabilities()

	advertised := make(map[string]any)
	if caps.Tools {
		advertised["tools"] = map[string]any{}
	}
	if caps.Resources {
		advertised["resources"] = map[string]any{}
	}
	if caps.Prompts {
		advertised["prompts"] = map[string]any{}
	}
	return advertised, nil
}

// Tool starts building a new tool with the given name.
func (s *Server) Tool(name string) *ToolBuilder {
	return &ToolBuilder{
		tool:   &Tool{name: name},
		server: s,
	}
}

// Tools returns info about all registered tools.
func (s *Server) Tools() []ToolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ToolInfo, 0, len(s.tools))
	for _, t := range s.tools {
		result = append(result, ToolInfo{
			Name:        t.name,
			Description: t.description,
			InputSchema: t.inputSchema,
		})
	}
	return result
}

// GetTool retrieves a tool by name.
func (s *Server) GetTool(name string) (*Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tools[name]
	return t, ok
}

func (s *Server) registerTool(t *Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[t.name] = t
}

// Resource starts building a new resource with the given URI template.
func (s *Server) Resource(uriTemplate string) *ResourceBuilder {
	return &ResourceBuilder{
		resource: &Resource{uriTemplate: uriTemplate},
		server:   s,
	}
}

// Resources returns info about all registered resources.
func (s *Server) Resources() []ResourceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ResourceInfo, 0, len(s.resources))
	for _, r := range s.resources {
		result = append(result, ResourceInfo{
			URITemplate: r.uriTemplate,
			Name:        r.name,
			Description: r.description,
			MimeType:    r.mimeType,
		})
	}
	return result
}

// FindResourceForURI finds a registered resource whose template matches uri.
func (s *Server) FindResourceForURI(uri string) (*Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.resources {
		if matchURI(r.uriTemplate, uri) {
			return r, true
		}
	}
	return nil, false
}

func (s *Server) registerResource(r *Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[r.uriTemplate] = r
}

// Prompt starts building a new prompt with the given name.
func (s *Server) Prompt(name string) *PromptBuilder {
	return &PromptBuilder{
		prompt: &Prompt{name: name},
		server: s,
	}
}

// Prompts returns info about all registered prompts.
func (s *Server) Prompts() []PromptInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]PromptInfo, 0, len(s.prompts))
	for _, p := range s.prompts {
		result = append(result, PromptInfo{
			Name:        p.name,
			Description: p.description,
			Arguments:   p.arguments,
		})
	}
	return result
}

// GetPrompt retrieves a prompt by name.
func (s *Server) GetPrompt(name string) (*Prompt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prompts[name]
	return p, ok
}

func (s *Server) registerPrompt(p *Prompt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[p.name] = p
}
