package tooling

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

// =============================================================================
// stubSchemaTool is a minimal SchemaTool for registry tests
// =============================================================================

type stubSchemaTool struct {
	name   string
	desc   string
	def    string
	calls  int
	result string
	err    error
}

func (s *stubSchemaTool) Name() string        { return s.name }
func (s *stubSchemaTool) Description() string { return s.desc }
func (s *stubSchemaTool) Definition() string  { return s.def }
func (s *stubSchemaTool) Call(ctx context.Context, args json.RawMessage) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if s.result != "" {
		return s.result, nil
	}
	return "stub-ok", nil
}

func newStub(name, desc string) *stubSchemaTool {
	return &stubSchemaTool{
		name: name,
		desc: desc,
		def:  `{"type":"object","properties":{"x":{"type":"number"}},"required":["x"]}`,
	}
}

// =============================================================================
// ToolRegistry Tests
// =============================================================================

func TestNewToolRegistry_ShouldReturnEmptyRegistry(t *testing.T) {
	reg := NewToolRegistry()
	if reg == nil {
		t.Fatal("Expected non-nil registry")
	}
	if tools := reg.List(); len(tools) != 0 {
		t.Errorf("Expected empty tool list, got %d", len(tools))
	}
}

func TestToolRegistry_Register_ShouldAddTool(t *testing.T) {
	reg := NewToolRegistry()
	if err := reg.Register(newStub("echo", "Echo tool")); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if tools := reg.List(); len(tools) != 1 {
		t.Fatalf("Expected 1 tool, got %d", len(tools))
	}
}

func TestToolRegistry_Register_ShouldRejectDuplicateName(t *testing.T) {
	reg := NewToolRegistry()
	if err := reg.Register(newStub("echo", "Echo v1")); err != nil {
		t.Fatalf("First register should succeed: %v", err)
	}
	if err := reg.Register(newStub("echo", "Echo v2")); err == nil {
		t.Error("Expected error when registering duplicate tool name")
	}
}

func TestToolRegistry_Register_ShouldRejectNilTool(t *testing.T) {
	if err := NewToolRegistry().Register(nil); err == nil {
		t.Error("Expected error when registering nil tool")
	}
}

func TestToolRegistry_Register_WhenSchemaDoesNotCompile_ShouldReturnError(t *testing.T) {
	stub := newStub("broken", "Broken")
	stub.def = `{"type":"invalid"}`
	if err := NewToolRegistry().Register(stub); err == nil {
		t.Error("Expected error for a tool with an invalid schema")
	}
}

func TestToolRegistry_Get_ShouldReturnRegisteredTool(t *testing.T) {
	reg := NewToolRegistry()
	_ = reg.Register(newStub("echo", "Echo tool"))

	tool, err := reg.Get("echo")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if tool.Name() != "echo" {
		t.Errorf("Expected tool name 'echo', got '%s'", tool.Name())
	}
}

func TestToolRegistry_Get_ShouldReturnErrUnknownTool(t *testing.T) {
	_, err := NewToolRegistry().Get("nonexistent")
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("Expected ErrUnknownTool, got %v", err)
	}
}

func TestToolRegistry_List_ShouldReturnToolsSortedByName(t *testing.T) {
	reg := NewToolRegistry()
	_ = reg.Register(newStub("tool_c", "Tool C"))
	_ = reg.Register(newStub("tool_a", "Tool A"))
	_ = reg.Register(newStub("tool_b", "Tool B"))

	tools := reg.List()
	if len(tools) != 3 {
		t.Fatalf("Expected 3 tools, got %d", len(tools))
	}
	for i, want := range []string{"tool_a", "tool_b", "tool_c"} {
		if tools[i].Name() != want {
			t.Errorf("position %d: want %s, got %s", i, want, tools[i].Name())
		}
	}
}

func TestToolRegistry_Definitions_ShouldReturnLLMCompatibleSchemas(t *testing.T) {
	reg := NewToolRegistry()
	_ = reg.Register(newStub("echo", "Echo tool"))

	defs := reg.Definitions()
	if len(defs) != 1 {
		t.Fatalf("Expected 1 definition, got %d", len(defs))
	}
	def := defs[0]
	if def.Name != "echo" || def.Description != "Echo tool" {
		t.Errorf("unexpected definition %+v", def)
	}
	var parsed map[string]interface{}
	if err := json.Unmarshal(def.InputSchema, &parsed); err != nil {
		t.Errorf("InputSchema should be valid JSON: %v", err)
	}
}

func TestToolRegistry_Validate_WhenArgumentsViolateSchema_ShouldReturnInvalidToolArguments(t *testing.T) {
	reg := NewToolRegistry()
	_ = reg.Register(newStub("echo", "Echo tool"))

	for _, args := range []string{`{}`, `{"x":"nope"}`, `[1]`, `{bad`} {
		if err := reg.Validate("echo", json.RawMessage(args)); !errors.Is(err, ErrInvalidToolArguments) {
			t.Errorf("args %s: want ErrInvalidToolArguments, got %v", args, err)
		}
	}
}

func TestToolRegistry_Validate_WhenToolUnknown_ShouldReturnErrUnknownTool(t *testing.T) {
	if err := NewToolRegistry().Validate("ghost", json.RawMessage(`{}`)); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("want ErrUnknownTool, got %v", err)
	}
}

func TestToolRegistry_Execute_WhenValidationFails_ShouldNotCallTool(t *testing.T) {
	reg := NewToolRegistry()
	stub := newStub("echo", "Echo tool")
	_ = reg.Register(stub)

	_, err := reg.Execute(context.Background(), "echo", json.RawMessage(`{"y":1}`))
	if !errors.Is(err, ErrInvalidToolArguments) {
		t.Fatalf("want ErrInvalidToolArguments, got %v", err)
	}
	if stub.calls != 0 {
		t.Errorf("tool must not be invoked on invalid args, got %d calls", stub.calls)
	}
}

func TestToolRegistry_Execute_WhenValid_ShouldReturnToolOutput(t *testing.T) {
	reg := NewToolRegistry()
	stub := newStub("echo", "Echo tool")
	stub.result = "pong"
	_ = reg.Register(stub)

	got, err := reg.Execute(context.Background(), "echo", json.RawMessage(`{"x":1}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got != "pong" || stub.calls != 1 {
		t.Errorf("want pong after one call, got %q after %d", got, stub.calls)
	}
}

func TestNewShoppingRegistry_ShouldRegisterBothTools(t *testing.T) {
	reg, err := NewShoppingRegistry(&fakeStore{})
	if err != nil {
		t.Fatalf("NewShoppingRegistry: %v", err)
	}
	defs := reg.Definitions()
	if len(defs) != 2 {
		t.Fatalf("want 2 tools, got %d", len(defs))
	}
	if defs[0].Name != "price_calculator" || defs[1].Name != "product_search" {
		t.Errorf("unexpected tool order: %s, %s", defs[0].Name, defs[1].Name)
	}
}
