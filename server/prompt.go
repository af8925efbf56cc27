package server

import (
	"context"
	"fmt"
)

// PromptArgument describes one argument a prompt accepts.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// PromptMessage is one message in a rendered prompt.
type PromptMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// PromptResult is a rendered prompt.
type PromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// PromptGetter renders a prompt with the given arguments.
type PromptGetter func(ctx context.Context, args map[string]string) (PromptResult, error)

// Prompt is a registered prompt template.
type Prompt struct {
	name        string
	description string
	arguments   []PromptArgument
	getter      PromptGetter
}

// PromptInfo is metadata about a registered prompt.
type PromptInfo struct {
	Name        string
	Description string
	Arguments   []PromptArgument
}

// Get renders the prompt.
func (p *Prompt) Get(ctx context.Context, args map[string]string) (PromptResult, error) {
	if p.getter == nil {
		return PromptResult{}, fmt.Errorf("prompt %q has no getter", p.name)
	}
	for _, arg := range p.arguments {
		if arg.Required {
			if _, ok := args[arg.Name]; !ok {
				return PromptResult{}, fmt.Errorf("missing required argument %q", arg.Name)
			}
		}
	}
	return p.getter(ctx, args)
}

// PromptBuilder builds and registers a prompt.
type PromptBuilder struct {
	prompt *Prompt
	server *Server
}

// Description sets the prompt's description.
func (b *PromptBuilder) Description(desc string) *PromptBuilder {
	b.prompt.description = desc
	return b
}

// Argument declares an argument the prompt accepts.
func (b *PromptBuilder) Argument(name, description string, required bool) *PromptBuilder {
	b.prompt.arguments = append(b.prompt.arguments, PromptArgument{
		Name:        name,
		Description: description,
		Required:    required,
	})
	return b
}

// Getter sets the render function and registers the prompt.
func (b *PromptBuilder) Getter(getter PromptGetter) *Prompt {
	b.prompt.getter = getter
	b.server.registerPrompt(b.prompt)
	return b.prompt
}
