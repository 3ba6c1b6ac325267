package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"shopassist/internal/domain"
	"shopassist/internal/tooling"
)

// =============================================================================
// fakeSchemaTool is a test double for dispatcher tests
// =============================================================================

type fakeSchemaTool struct {
	name    string
	schema  string
	result  string
	err     error
	delay   time.Duration
	panics  bool
	calls   int32
	running int32
	peak    int32
}

func (f *fakeSchemaTool) Name() string        { return f.name }
func (f *fakeSchemaTool) Description() string { return f.name + " description" }
func (f *fakeSchemaTool) Definition() string  { return f.schema }

func (f *fakeSchemaTool) Call(ctx context.Context, _ json.RawMessage) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	n := atomic.AddInt32(&f.running, 1)
	defer atomic.AddInt32(&f.running, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	if f.panics {
		panic("kaboom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.result, f.err
}

func newFake(name string) *fakeSchemaTool {
	return &fakeSchemaTool{
		name:   name,
		schema: `{"type":"object","properties":{"x":{"type":"number"}},"required":["x"]}`,
		result: name + "-result",
	}
}

func dispatcherWith(t *testing.T, opts []DispatcherOption, tools ...*fakeSchemaTool) *ToolDispatcher {
	t.Helper()
	reg := tooling.NewToolRegistry()
	for _, tool := range tools {
		if err := reg.Register(tool); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	opts = append(opts, WithDispatcherLogger(quietLogger()))
	return NewToolDispatcher(reg, opts...)
}

// =============================================================================
// NewToolDispatcher / FormatToolsForLLM
// =============================================================================

func TestNewToolDispatcher_ShouldPanicWhenRegistryIsNil(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when registry is nil")
		}
	}()
	NewToolDispatcher(nil)
}

func TestNewToolDispatcher_ShouldApplyDefaults(t *testing.T) {
	d := NewToolDispatcher(tooling.NewToolRegistry(), WithMaxParallelTools(0))
	if d.toolTimeout != DefaultToolTimeout || d.maxParallel != DefaultMaxParallelTools {
		t.Errorf("unexpected defaults timeout=%v parallel=%d", d.toolTimeout, d.maxParallel)
	}
}

func TestToolDispatcher_FormatToolsForLLM_ShouldReturnSortedDefinitions(t *testing.T) {
	d := dispatcherWith(t, nil, newFake("zeta"), newFake("alpha"))

	defs := d.FormatToolsForLLM()
	if len(defs) != 2 || defs[0].Name != "alpha" || defs[1].Name != "zeta" {
		t.Fatalf("unexpected definitions %+v", defs)
	}
	if !json.Valid(defs[0].InputSchema) {
		t.Error("InputSchema should be valid JSON")
	}
}

// =============================================================================
// HandleToolCall
// =============================================================================

func TestToolDispatcher_HandleToolCall_WhenValid_ShouldReturnToolOutput(t *testing.T) {
	echo := newFake("echo")
	d := dispatcherWith(t, nil, echo)

	res := d.HandleToolCall(context.Background(), call("1", "echo", `{"x":1}`))
	if res.IsError || res.Content != "echo-result" || res.CallID != "1" || res.Name != "echo" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestToolDispatcher_HandleToolCall_WhenUnknownTool_ShouldReturnErrorResult(t *testing.T) {
	d := dispatcherWith(t, nil, newFake("echo"))

	res := d.HandleToolCall(context.Background(), call("1", "nope", `{}`))
	if !res.IsError || !strings.Contains(res.Content, "unknown tool") {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestToolDispatcher_HandleToolCall_WhenArgumentsViolateSchema_ShouldNotCallTool(t *testing.T) {
	echo := newFake("echo")
	d := dispatcherWith(t, nil, echo)

	res := d.HandleToolCall(context.Background(), call("1", "echo", `{"x":"not a number"}`))
	if !res.IsError || !strings.Contains(res.Content, "invalid tool arguments") {
		t.Errorf("unexpected result %+v", res)
	}
	if atomic.LoadInt32(&echo.calls) != 0 {
		t.Error("tool must not be called with invalid arguments")
	}
}

func TestToolDispatcher_HandleToolCall_WhenToolFails_ShouldUseExecutionErrorText(t *testing.T) {
	broken := newFake("search")
	broken.err = &tooling.ToolExecutionError{Tool: "search", Message: "Error searching products", Err: errors.New("db down")}
	d := dispatcherWith(t, nil, broken)

	res := d.HandleToolCall(context.Background(), call("1", "search", `{"x":1}`))
	if !res.IsError || res.Content != "Error searching products: db down" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestToolDispatcher_HandleToolCall_WhenToolPanics_ShouldReturnErrorResult(t *testing.T) {
	bad := newFake("bad")
	bad.panics = true
	d := dispatcherWith(t, nil, bad)

	res := d.HandleToolCall(context.Background(), call("1", "bad", `{"x":1}`))
	if !res.IsError || !strings.Contains(res.Content, "panicked") {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestToolDispatcher_HandleToolCall_WhenToolTimesOut_ShouldReturnTimeoutResult(t *testing.T) {
	slow := newFake("slow")
	slow.delay = time.Second
	var logs bytes.Buffer
	reg := tooling.NewToolRegistry()
	_ = reg.Register(slow)
	d := NewToolDispatcher(reg, WithToolTimeout(20*time.Millisecond), WithDispatcherLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	start := time.Now()
	res := d.HandleToolCall(context.Background(), call("1", "slow", `{"x":1}`))
	if time.Since(start) > 500*time.Millisecond {
		t.Error("timeout should cut the call short")
	}
	if !res.IsError || !strings.Contains(res.Content, "timed out") {
		t.Errorf("unexpected result %+v", res)
	}
	if !strings.Contains(logs.String(), "tool call failed") {
		t.Error("failure should be logged")
	}
}

// =============================================================================
// Dispatch
// =============================================================================

func TestToolDispatcher_Dispatch_WhenNoCalls_ShouldReturnNil(t *testing.T) {
	d := dispatcherWith(t, nil, newFake("echo"))
	res, err := d.Dispatch(context.Background(), nil)
	if err != nil || res != nil {
		t.Errorf("want nil, nil; got %v, %v", res, err)
	}
}

func TestToolDispatcher_Dispatch_ShouldReturnResultsInRequestOrder(t *testing.T) {
	slow, fast := newFake("slow"), newFake("fast")
	slow.delay = 30 * time.Millisecond
	d := dispatcherWith(t, nil, slow, fast)

	res, err := d.Dispatch(context.Background(), []domain.ToolCall{
		call("a", "slow", `{"x":1}`),
		call("b", "fast", `{"x":1}`),
		call("c", "missing", `{}`),
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(res) != 3 || res[0].CallID != "a" || res[1].CallID != "b" || res[2].CallID != "c" {
		t.Fatalf("results out of order: %+v", res)
	}
	if res[0].Content != "slow-result" || !res[2].IsError {
		t.Errorf("unexpected results %+v", res)
	}
}

func TestToolDispatcher_Dispatch_ShouldRunCallsConcurrentlyWithinLimit(t *testing.T) {
	tool := newFake("work")
	tool.delay = 40 * time.Millisecond
	d := dispatcherWith(t, []DispatcherOption{WithMaxParallelTools(2)}, tool)

	calls := make([]domain.ToolCall, 6)
	for i := range calls {
		calls[i] = call(string(rune('a'+i)), "work", `{"x":1}`)
	}
	if _, err := d.Dispatch(context.Background(), calls); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if peak := atomic.LoadInt32(&tool.peak); peak != 2 {
		t.Errorf("want peak concurrency 2, got %d", peak)
	}
}

func TestToolDispatcher_Dispatch_WhenContextCanceled_ShouldReturnPromptly(t *testing.T) {
	slow := newFake("slow")
	slow.delay = 5 * time.Second
	d := dispatcherWith(t, []DispatcherOption{WithToolTimeout(0)}, slow)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := d.Dispatch(ctx, []domain.ToolCall{call("1", "slow", `{"x":1}`)})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Dispatch should not wait for abandoned calls")
	}
}
