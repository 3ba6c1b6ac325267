package brain

import (
	"context"
	"fmt"

	"shopassist/internal/domain"
)

// SubAgent runs a single tool-free model turn with its own system prompt. It
// shares the model but no conversation state with the caller.
type SubAgent struct {
	model        domain.ChatModel
	systemPrompt string
}

// NewSubAgent creates a SubAgent with the given model and system prompt.
// The model must not be nil; the system prompt may be empty.
func NewSubAgent(model domain.ChatModel, systemPrompt string) *SubAgent {
	if model == nil {
		panic("subagent: model must not be nil")
	}
	return &SubAgent{model: model, systemPrompt: systemPrompt}
}

// SystemPrompt returns the system prompt this sub-agent uses.
func (sa *SubAgent) SystemPrompt() string {
	return sa.systemPrompt
}

// Run sends the system prompt and task and returns the model's text. A model
// that asks for tools anyway gets its accompanying text returned.
func (sa *SubAgent) Run(ctx context.Context, task string) (string, error) {
	msgs := make([]domain.Message, 0, 2)
	if sa.systemPrompt != "" {
		msgs = append(msgs, domain.SystemMessage(sa.systemPrompt))
	}
	msgs = append(msgs, domain.UserMessage(task))

	resp, err := sa.model.Invoke(ctx, msgs, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("subagent: %w: %w", ErrModelUnavailable, err)
	}
	return resp.Text, nil
}
