package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"shopassist/internal/domain"
)

const (
	// DefaultMaxIterations is the number of model turns allowed per run.
	DefaultMaxIterations = 8
	// DefaultModelTimeout bounds a single model call.
	DefaultModelTimeout = 60 * time.Second
)

// FallbackAnswer is returned when a run hits the iteration ceiling.
const FallbackAnswer = "I'm sorry, I was unable to produce an answer for this query."

// ErrModelUnavailable is returned when the model (and every fallback) failed.
var ErrModelUnavailable = errors.New("model unavailable")

// State is the reasoning loop's current phase.
type State string

const (
	StateAwaitingModel   State = "AWAITING_MODEL"
	StateDispatchingTool State = "DISPATCHING_TOOL"
	StateDone            State = "DONE"
	StateFailed          State = "FAILED"
)

// Outcome summarises one Run.
type Outcome struct {
	Answer         string
	Exhausted      bool // the iteration ceiling was hit and Answer is FallbackAnswer
	Iterations     int  // model turns taken
	ToolDispatches int  // tool calls executed
	State          State
}

// Option is a functional option for configuring Agent.
type Option func(*Agent)

// WithMaxIterations sets the iteration ceiling. Values below one are ignored.
func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxIterations = n
		}
	}
}

// WithModelTimeout sets the per-call model timeout. Non-positive disables it.
func WithModelTimeout(d time.Duration) Option {
	return func(a *Agent) { a.modelTimeout = d }
}

// WithLogger sets a structured logger for the Agent. If l is nil it is ignored
// and the default slog logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithFallbacks adds models that are tried in order when the primary model
// fails a turn. Nil entries are silently skipped.
func WithFallbacks(models ...domain.ChatModel) Option {
	return func(a *Agent) {
		for _, m := range models {
			if m != nil {
				a.fallbacks = append(a.fallbacks, m)
			}
		}
	}
}

// Agent runs the tool-augmented reasoning loop: ask the model, run the tools
// it requests, feed the results back, until it answers or the ceiling is hit.
// An Agent holds no per-run state and is safe for concurrent use.
type Agent struct {
	model         domain.ChatModel
	fallbacks     []domain.ChatModel
	dispatcher    *ToolDispatcher
	maxIterations int
	modelTimeout  time.Duration
	logger        *slog.Logger
}

// NewAgent returns an Agent over model and dispatcher. Panics if either is nil.
func NewAgent(model domain.ChatModel, dispatcher *ToolDispatcher, opts ...Option) *Agent {
	if model == nil {
		panic("agent: model must not be nil")
	}
	if dispatcher == nil {
		panic("agent: dispatcher must not be nil")
	}
	a := &Agent{
		model:         model,
		dispatcher:    dispatcher,
		maxIterations: DefaultMaxIterations,
		modelTimeout:  DefaultModelTimeout,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ModelName is the primary model's name.
func (a *Agent) ModelName() string { return a.model.Name() }

// Run drives one conversation to an answer. messages is the initial
// conversation (system prompt, history, user message); it is copied and the
// copy only ever grows. Tool failures are fed back to the model and never end
// the run. A model failure returns an error wrapping ErrModelUnavailable; a
// done ctx returns ctx.Err().
func (a *Agent) Run(ctx context.Context, messages []domain.Message) (Outcome, error) {
	log := a.logger.With("run_id", uuid.NewString())
	conv := domain.CloneMessages(messages)
	tools := a.dispatcher.FormatToolsForLLM()
	out := Outcome{State: StateAwaitingModel}

	for out.Iterations < a.maxIterations {
		if err := ctx.Err(); err != nil {
			out.State = StateFailed
			return out, err
		}
		out.Iterations++

		resp, err := a.invoke(ctx, log, conv, tools)
		if err != nil {
			out.State = StateFailed
			log.Error("model turn failed", "iteration", out.Iterations, "error", err)
			return out, err
		}
		if resp.Kind == domain.ResponseToolCalls && len(resp.ToolCalls) == 0 {
			log.Warn("model requested tools without any calls; treating as final answer",
				"iteration", out.Iterations, "model", a.model.Name(), "text_len", len(resp.Text))
		}
		if resp.Kind != domain.ResponseToolCalls || len(resp.ToolCalls) == 0 {
			out.Answer = resp.Text
			out.State = StateDone
			log.Debug("run finished", "iterations", out.Iterations, "tool_dispatches", out.ToolDispatches)
			return out, nil
		}

		out.State = StateDispatchingTool
		conv = append(conv, domain.AssistantToolCalls(resp.Text, resp.ToolCalls))
		log.Debug("dispatching tools", "iteration", out.Iterations, "calls", len(resp.ToolCalls))
		results, err := a.dispatcher.Dispatch(ctx, resp.ToolCalls)
		if err != nil {
			out.State = StateFailed
			return out, err
		}
		out.ToolDispatches += len(results)
		for _, r := range results {
			conv = append(conv, domain.ToolResultMessage(r))
		}
		out.State = StateAwaitingModel
	}

	log.Warn("iteration ceiling reached", "max_iterations", a.maxIterations, "tool_dispatches", out.ToolDispatches)
	out.Answer = FallbackAnswer
	out.Exhausted = true
	out.State = StateDone
	return out, nil
}

// invoke tries the primary model, then each fallback in order. Returns the
// first successful response, or an error wrapping ErrModelUnavailable.
func (a *Agent) invoke(ctx context.Context, log *slog.Logger, conv []domain.Message, tools []domain.ToolDefinition) (domain.ModelResponse, error) {
	models := append([]domain.ChatModel{a.model}, a.fallbacks...)
	var errs []error
	for i, m := range models {
		if i > 0 {
			log.Warn("model failed, trying fallback", "fallback_index", i-1, "model", m.Name(), "error", errs[len(errs)-1])
		}
		resp, err := a.invokeOne(ctx, m, conv, tools)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.ModelResponse{}, ctxErr
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.Name(), err))
	}
	if len(errs) == 1 {
		return domain.ModelResponse{}, fmt.Errorf("%w: %w", ErrModelUnavailable, errs[0])
	}
	return domain.ModelResponse{}, fmt.Errorf("%w: all %d models failed: %w", ErrModelUnavailable, len(errs), errors.Join(errs...))
}

func (a *Agent) invokeOne(ctx context.Context, m domain.ChatModel, conv []domain.Message, tools []domain.ToolDefinition) (domain.ModelResponse, error) {
	if a.modelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.modelTimeout)
		defer cancel()
	}
	// Capped so an implementation that appends cannot write into conv.
	return m.Invoke(ctx, conv[:len(conv):len(conv)], tools)
}
