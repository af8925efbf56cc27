package server

import (
	"encoding/json"

	"github.com/mcpkit/mcpkit/lifecycle"
	"github.com/mcpkit/mcpkit/middleware"
	"github.com/mcpkit/mcpkit/protocol"
)

// CoreDispatcher returns the business-logic callback the dispatcher invokes
// once the middleware chain and the lifecycle gate have let a request
// through. It routes by method and fills rc.Response.
func CoreDispatcher(srv *Server, manager *lifecycle.Manager) func(rc *middleware.RequestContext) error {
	return func(rc *middleware.RequestContext) error {
		req := rc.Request

		switch req.Method {
		case protocol.MethodInitialize:
			result, err := manager.Initialize(req)
			if err != nil {
				return err
			}
			rc.Response = protocol.NewResponse(req.ID, result)
			return nil

		case protocol.MethodInitialized:
			manager.Initialized()
			return nil

		case protocol.MethodShutdown:
			return handleShutdown(manager, rc)

		case protocol.MethodPing:
			rc.Response = protocol.NewResponse(req.ID, map[string]any{})
			return nil

		case protocol.MethodToolsList:
			return handleToolsList(srv, rc)

		case protocol.MethodToolsCall:
			return handleToolsCall(srv, rc)

		case protocol.MethodResourcesList:
			return handleResourcesList(srv, rc)

		case protocol.MethodResourcesRead:
			return handleResourcesRead(srv, rc)

		case protocol.MethodPromptsList:
			return handlePromptsList(srv, rc)

		case protocol.MethodPromptsGet:
			return handlePromptsGet(srv, rc)

		default:
			return protocol.NewMethodNotFound(req.Method)
		}
	}
}

func handleShutdown(manager *lifecycle.Manager, rc *middleware.RequestContext) error {
	var params struct {
		Reason string `json:"reason"`
	}
	if len(rc.Request.Params) > 0 {
		_ = json.Unmarshal(rc.Request.Params, &params)
	}
	if err := manager.Shutdown(params.Reason); err != nil {
		return err
	}
	if !rc.Request.IsNotification() {
		rc.Response = protocol.NewResponse(rc.Request.ID, map[string]any{})
	}
	return nil
}

func handleToolsList(srv *Server, rc *middleware.RequestContext) error {
	tools := srv.Tools()

	toolList := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		item := map[string]any{"name": t.Name}
		if t.Description != "" {
			item["description"] = t.Description
		}
		if t.InputSchema != nil {
			item["inputSchema"] = t.InputSchema
		}
		toolList = append(toolList, item)
	}

	rc.Response = protocol.NewResponse(rc.Request.ID, map[string]any{"tools": toolList})
	return nil
}

func handleToolsCall(srv *Server, rc *middleware.RequestContext) error {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(rc.Request.Params, &params); err != nil {
		return protocol.NewInvalidParams(err.Error())
	}

	tool, ok := srv.GetTool(params.Name)
	if !ok {
		return protocol.NewMethodNotFound("tool not found: " + params.Name)
	}

	result, err := tool.Execute(rc.Context(), params.Arguments)
	if err != nil {
		return err
	}

	rc.Response = protocol.NewResponse(rc.Request.ID, map[string]any{
		"content": []map[string]any{
			{"type": "text", "text": result},
		},
	})
	return nil
}

func handleResourcesList(srv *Server, rc *middleware.RequestContext) error {
	resources := srv.Resources()

	resourceList := make([]map[string]any, 0, len(resources))
	for _, r := range resources {
		item := map[string]any{
			"uri":  r.URITemplate,
			"name": r.Name,
		}
		if r.Description != "" {
			item["description"] = r.Description
		}
		if r.MimeType != "" {
			item["mimeType"] = r.MimeType
		}
		resourceList = append(resourceList, item)
	}

	rc.Response = protocol.NewResponse(rc.Request.ID, map[string]any{"resources": resourceList})
	return nil
}

func handleResourcesRead(srv *Server, rc *middleware.RequestContext) error {
	var params struct {
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(rc.Request.Params, &params); err != nil {
		return protocol.NewInvalidParams(err.Error())
	}

	resource, ok := srv.FindResourceForURI(params.URI)
	if !ok {
		return protocol.NewMethodNotFound("resource not found: " + params.URI)
	}

	content, err := resource.Read(rc.Context(), params.URI)
	if err != nil {
		return err
	}

	item := map[string]any{
		"uri":      content.URI,
		"mimeType": content.MimeType,
		"text":     content.Text,
	}
	if content.Blob != "" {
		item["blob"] = content.Blob
	}

	rc.Response = protocol.NewResponse(rc.Request.ID, map[string]any{
		"contents": []map[string]any{item},
	})
	return nil
}

func handlePromptsList(srv *Server, rc *middleware.RequestContext) error {
	prompts := srv.Prompts()

	promptList := make([]map[string]any, 0, len(prompts))
	for _, p := range prompts {
		item := map[string]any{"name": p.Name}
		if p.Description != "" {
			item["description"] = p.Description
		}
		if len(p.Arguments) > 0 {
			item["arguments"] = p.Arguments
		}
		promptList = append(promptList, item)
	}

	rc.Response = protocol.NewResponse(rc.Request.ID, map[string]any{"prompts": promptList})
	return nil
}

func handlePromptsGet(srv *Server, rc *middleware.RequestContext) error {
	var params struct {
		Name      string            `json:"name"`
		Arguments map[string]string `json:"arguments"`
	}
	if err := json.Unmarshal(rc.Request.Params, &params); err != nil {
		return protocol.NewInvalidParams(err.Error())
	}

	prompt, ok := srv.GetPrompt(params.Name)
	if !ok {
		return protocol.NewMethodNotFound("prompt not found: " + params.Name)
	}

	result, err := prompt.Get(rc.Context(), params.Arguments)
	if err != nil {
		return protocol.NewInvalidParams(err.Error())
	}

	response := map[string]any{"messages": result.Messages}
	if result.Description != "" {
		response["description"] = result.Description
	}

	rc.Response = protocol.NewResponse(rc.Request.ID, response)
	return nil
}
