package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mcpkit/mcpkit/lifecycle"
	"github.com/mcpkit/mcpkit/middleware"
	"github.com/mcpkit/mcpkit/protocol"
)

func newTestServer() *Server {
	srv := New(Info{Name: "test", Version: "1.0.0"})

	srv.Tool("greet").
		Description("Greet someone").
		Handler(func(_ context.Context, args json.RawMessage) (string, error) {
			var input struct {
				Name string `json:"name"`
			}
			if err := json.Unmarshal(args, &input); err != nil {
				return "", protocol.NewInvalidParams(err.Error())
			}
			return "Hello, " + input.Name + "!", nil
		})

	srv.Resource("config://app/{section}").
		Name("App config").
		MimeType("application/json").
		Reader(func(_ context.Context, uri string) (ResourceContent, error) {
			return ResourceContent{URI: uri, MimeType: "application/json", Text: "{}"}, nil
		})

	srv.Prompt("review").
		Description("Code review prompt").
		Argument("language", "Programming language", true).
		Getter(func(_ context.Context, args map[string]string) (PromptResult, error) {
			return PromptResult{
				Messages: []PromptMessage{{Role: "user", Content: "Review this " + args["language"]}},
			}, nil
		})

	return srv
}

func newContext(method string, params any) *middleware.RequestContext {
	var raw json.RawMessage
	if params != nil {
		raw, _ = json.Marshal(params)
	}
	req := &protocol.Request{
		JSONRPC: protocol.JSONRPCVersion,
		ID:      []byte("1"),
		Method:  method,
		Params:  raw,
	}
	return middleware.NewRequestContext(context.Background(), req, middleware.TransportInfo{Name: "inmem"})
}

func TestServer_Registries(t *testing.T) {
	srv := newTestServer()

	if len(srv.Tools()) != 1 {
		t.Errorf("tools = %d, want 1", len(srv.Tools()))
	}
	if _, ok := srv.GetTool("greet"); !ok {
		t.Error("greet tool not found")
	}
	if _, ok := srv.GetTool("missing"); ok {
		t.Error("unexpected tool")
	}
	if len(srv.Resources()) != 1 {
		t.Errorf("resources = %d, want 1", len(srv.Resources()))
	}
	if _, ok := srv.GetPrompt("review"); !ok {
		t.Error("review prompt not found")
	}

	caps := srv.Capabilities()
	if !caps.Tools || !caps.Resources || !caps.Prompts {
		t.Errorf("capabilities = %+v", caps)
	}
}

func TestServer_Negotiate(t *testing.T) {
	srv := newTestServer()

	advertised, err := srv.Negotiate(nil)
	if err != nil {
		t.Fatalf("Negotiate failed: %v", err)
	}
	caps, ok := advertised.(map[string]any)
	if !ok {
		t.Fatalf("advertised type = %T", advertised)
	}
	for _, key := range []string{"tools", "resources", "prompts"} {
		if _, ok := caps[key]; !ok {
			t.Errorf("missing advertised capability %q", key)
		}
	}

	empty := New(Info{Name: "bare", Version: "0.0.1"})
	advertised, _ = empty.Negotiate(nil)
	if len(advertised.(map[string]any)) != 0 {
		t.Errorf("bare server should advertise nothing, got %v", advertised)
	}
}

func TestMatchURI(t *testing.T) {
	tests := []struct {
		template string
		uri      string
		want     bool
	}{
		{"config://app", "config://app", true},
		{"config://app/{section}", "config://app/db", true},
		{"config://app/{section}", "config://app", false},
		{"config://app/{section}", "config://app/db/extra", false},
		{"config://app/{section}", "config://other/db", false},
		{"file://{path}/readme", "file://docs/readme", true},
	}

	for _, tt := range tests {
		if got := matchURI(tt.template, tt.uri); got != tt.want {
			t.Errorf("matchURI(%q, %q) = %v, want %v", tt.template, tt.uri, got, tt.want)
		}
	}
}

func TestCoreDispatcher_ToolsFlow(t *testing.T) {
	srv := newTestServer()
	manager := lifecycle.NewManager(srv.LifecycleInfo(), srv)
	core := CoreDispatcher(srv, manager)

	t.Run("tools/list", func(t *testing.T) {
		rc := newContext(protocol.MethodToolsList, nil)
		if err := core(rc); err != nil {
			t.Fatalf("core failed: %v", err)
		}
		result := rc.Response.Result.(map[string]any)
		tools := result["tools"].([]map[string]any)
		if len(tools) != 1 || tools[0]["name"] != "greet" {
			t.Errorf("tools = %v", tools)
		}
	})

	t.Run("tools/call", func(t *testing.T) {
		rc := newContext(protocol.MethodToolsCall, map[string]any{
			"name":      "greet",
			"arguments": map[string]any{"name": "World"},
		})
		if err := core(rc); err != nil {
			t.Fatalf("core failed: %v", err)
		}
		result := rc.Response.Result.(map[string]any)
		content := result["content"].([]map[string]any)
		if content[0]["text"] != "Hello, World!" {
			t.Errorf("content = %v", content)
		}
	})

	t.Run("tools/call unknown tool", func(t *testing.T) {
		rc := newContext(protocol.MethodToolsCall, map[string]any{"name": "nope"})
		err := core(rc)
		var rpcErr *protocol.Error
		if !errors.As(err, &rpcErr) || rpcErr.Code != protocol.CodeMethodNotFound {
			t.Errorf("err = %v", err)
		}
	})
}

func TestCoreDispatcher_ResourcesFlow(t *testing.T) {
	srv := newTestServer()
	manager := lifecycle.NewManager(srv.LifecycleInfo(), srv)
	core := CoreDispatcher(srv, manager)

	t.Run("resources/read", func(t *testing.T) {
		rc := newContext(protocol.MethodResourcesRead, map[string]any{"uri": "config://app/db"})
		if err := core(rc); err != nil {
			t.Fatalf("core failed: %v", err)
		}
		result := rc.Response.Result.(map[string]any)
		contents := result["contents"].([]map[string]any)
		if contents[0]["uri"] != "config://app/db" {
			t.Errorf("contents = %v", contents)
		}
	})

	t.Run("resources/read unknown uri", func(t *testing.T) {
		rc := newContext(protocol.MethodResourcesRead, map[string]any{"uri": "nope://x"})
		err := core(rc)
		var rpcErr *protocol.Error
		if !errors.As(err, &rpcErr) || rpcErr.Code != protocol.CodeMethodNotFound {
			t.Errorf("err = %v", err)
		}
	})
}

func TestCoreDispatcher_PromptsFlow(t *testing.T) {
	srv := newTestServer()
	manager := lifecycle.NewManager(srv.LifecycleInfo(), srv)
	core := CoreDispatcher(srv, manager)

	t.Run("prompts/get", func(t *testing.T) {
		rc := newContext(protocol.MethodPromptsGet, map[string]any{
			"name":      "review",
			"arguments": map[string]string{"language": "Go"},
		})
		if err := core(rc); err != nil {
			t.Fatalf("core failed: %v", err)
		}
		result := rc.Response.Result.(map[string]any)
		messages := result["messages"].([]PromptMessage)
		if len(messages) != 1 || messages[0].Content != "Review this Go" {
			t.Errorf("messages = %v", messages)
		}
	})

	t.Run("prompts/get missing required argument", func(t *testing.T) {
		rc := newContext(protocol.MethodPromptsGet, map[string]any{"name": "review"})
		err := core(rc)
		var rpcErr *protocol.Error
		if !errors.As(err, &rpcErr) || rpcErr.Code != protocol.CodeInvalidParams {
			t.Errorf("err = %v", err)
		}
	})
}

func TestCoreDispatcher_Lifecycle(t *testing.T) {
	srv := newTestServer()
	manager := lifecycle.NewManager(srv.LifecycleInfo(), srv)
	core := CoreDispatcher(srv, manager)

	rc := newContext(protocol.MethodInitialize, map[string]any{
		"protocolVersion": protocol.Version,
		"capabilities":    map[string]any{},
		"clientInfo":      map[string]any{"name": "c", "version": "1"},
	})
	if err := core(rc); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	result, ok := rc.Response.Result.(*lifecycle.InitializeResult)
	if !ok {
		t.Fatalf("result type = %T", rc.Response.Result)
	}
	if result.ServerInfo.Name != "test" {
		t.Errorf("serverInfo = %+v", result.ServerInfo)
	}
	if manager.CurrentState() != lifecycle.StateReady {
		t.Errorf("state = %s", manager.CurrentState())
	}

	rc = newContext(protocol.MethodPing, nil)
	if err := core(rc); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if rc.Response == nil {
		t.Fatal("ping should produce a response")
	}

	rc = newContext(protocol.MethodShutdown, map[string]any{"reason": "done"})
	if err := core(rc); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if manager.CurrentState() != lifecycle.StateShuttingDown {
		t.Errorf("state = %s, want shutting_down", manager.CurrentState())
	}
	if manager.ShutdownReason() != "done" {
		t.Errorf("reason = %q", manager.ShutdownReason())
	}
}

func TestCoreDispatcher_UnknownMethod(t *testing.T) {
	srv := newTestServer()
	manager := lifecycle.NewManager(srv.LifecycleInfo(), srv)
	core := CoreDispatcher(srv, manager)

	rc := newContext("no/such/method", nil)
	err := core(rc)
	var rpcErr *protocol.Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != protocol.CodeMethodNotFound {
		t.Errorf("err = %v", err)
	}
}
