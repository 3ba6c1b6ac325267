package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"shopassist/internal/domain"
	"shopassist/internal/tooling"
)

const (
	// DefaultToolTimeout bounds a single tool call.
	DefaultToolTimeout = 10 * time.Second
	// DefaultMaxParallelTools bounds the tool calls running at once in a turn.
	DefaultMaxParallelTools = 4
)

// DispatcherOption configures a ToolDispatcher.
type DispatcherOption func(*ToolDispatcher)

// WithToolTimeout sets the per-call timeout. Non-positive values disable it.
func WithToolTimeout(d time.Duration) DispatcherOption {
	return func(td *ToolDispatcher) { td.toolTimeout = d }
}

// WithMaxParallelTools bounds concurrent calls within one turn. Values below
// one are ignored.
func WithMaxParallelTools(n int) DispatcherOption {
	return func(td *ToolDispatcher) {
		if n > 0 {
			td.maxParallel = n
		}
	}
}

// WithDispatcherLogger sets the dispatcher's logger. Nil is ignored.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(td *ToolDispatcher) {
		if l != nil {
			td.logger = l
		}
	}
}

// ToolDispatcher connects the agent to the tool registry. It formats tool
// definitions for the model and turns tool call requests into results. Every
// failure (unknown tool, schema violation, tool error, timeout) becomes an
// error-flagged result so the model can react to it.
type ToolDispatcher struct {
	registry    *tooling.ToolRegistry
	toolTimeout time.Duration
	maxParallel int
	logger      *slog.Logger
}

// NewToolDispatcher creates a dispatcher backed by the given registry.
// Panics if registry is nil.
func NewToolDispatcher(registry *tooling.ToolRegistry, opts ...DispatcherOption) *ToolDispatcher {
	if registry == nil {
		panic("tool_dispatcher: registry must not be nil")
	}
	d := &ToolDispatcher{
		registry:    registry,
		toolTimeout: DefaultToolTimeout,
		maxParallel: DefaultMaxParallelTools,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FormatToolsForLLM returns the tool definitions to offer the model.
func (d *ToolDispatcher) FormatToolsForLLM() []domain.ToolDefinition {
	return d.registry.Definitions()
}

type callOutcome struct {
	content string
	err     error
}

// HandleToolCall validates and runs one call under the per-tool timeout. A
// call still running when the timeout fires is abandoned; its result is
// discarded when it eventually finishes.
func (d *ToolDispatcher) HandleToolCall(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	result := domain.ToolResult{CallID: call.ID, Name: call.Name}

	callCtx := ctx
	if d.toolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.toolTimeout)
		defer cancel()
	}

	done := make(chan callOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- callOutcome{err: fmt.Errorf("tool %q panicked: %v", call.Name, r)}
			}
		}()
		content, err := d.registry.Execute(callCtx, call.Name, call.Arguments)
		done <- callOutcome{content: content, err: err}
	}()

	var out callOutcome
	select {
	case out = <-done:
	case <-callCtx.Done():
		out.err = callCtx.Err()
		if errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
			out.err = fmt.Errorf("tool %q timed out after %s", call.Name, d.toolTimeout)
		}
	}

	if out.err != nil {
		d.logger.Warn("tool call failed", "tool", call.Name, "call_id", call.ID, "error", out.err)
		result.Content = tooling.ResultText(out.err)
		result.IsError = true
		return result
	}
	result.Content = out.content
	return result
}

// Dispatch runs all calls concurrently, bounded by the parallelism limit, and
// returns one result per call in request order. If ctx is done before every
// call has finished, Dispatch returns ctx.Err() and abandons the stragglers.
func (d *ToolDispatcher) Dispatch(ctx context.Context, calls []domain.ToolCall) ([]domain.ToolResult, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	results := make([]domain.ToolResult, len(calls))
	done := make(chan struct{})

	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(d.maxParallel)
		for i, call := range calls {
			g.Go(func() error {
				results[i] = d.HandleToolCall(ctx, call)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return results, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
