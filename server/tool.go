package server

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolHandler executes a tool call with raw JSON arguments.
type ToolHandler func(ctx context.Context, args json.RawMessage) (string, error)

// Tool is a registered, callable tool.
type Tool struct {
	name        string
	description string
	inputSchema any
	handler     ToolHandler
}

// ToolInfo is metadata about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
	InputSchema any
}

// Name returns the tool's name.
func (t *Tool) Name() string { return t.name }

// Execute runs the tool handler.
func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	if t.handler == nil {
		return "", fmt.Errorf("tool %q has no handler", t.name)
	}
	return t.handler(ctx, args)
}

// ToolBuilder builds and registers a tool.
type ToolBuilder struct {
	tool   *Tool
	server *Server
}

// Description sets the tool's description.
func (b *ToolBuilder) Description(desc string) *ToolBuilder {
	b.tool.description = desc
	return b
}

// InputSchema sets the JSON schema describing the tool's arguments.
func (b *ToolBuilder) InputSchema(schema any) *ToolBuilder {
	b.tool.inputSchema = schema
	return b
}

// Handler sets the execution function and registers the tool.
func (b *ToolBuilder) Handler(handler ToolHandler) *Tool {
	b.tool.handler = handler
	b.server.registerTool(b.tool)
	return b.tool
}
