package context

import (
	"fmt"

	"shopassist/internal/domain"
)

// Manager fits chat history into a token budget, keeping the newest turns.
type Manager struct {
	tokens domain.Tokenizer
	budget int
}

// NewManager panics on a nil tokenizer or a non-positive budget.
func NewManager(tokenizer domain.Tokenizer, maxTokens int) *Manager {
	if tokenizer == nil {
		panic("context: tokenizer must not be nil")
	}
	if maxTokens <= 0 {
		panic("context: maxTokens must be > 0")
	}
	return &Manager{tokens: tokenizer, budget: maxTokens}
}

// FitToWindow returns the longest suffix of history that fits next to
// reserved (system prompt, extra context and the new question). The suffix
// always opens on a user turn so the model never sees an orphaned answer or
// tool result. It fails when reserved alone is over budget.
func (m *Manager) FitToWindow(history []domain.Message, reserved string) ([]domain.Message, error) {
	if len(history) == 0 {
		return []domain.Message{}, nil
	}

	left := m.budget
	if reserved != "" {
		n, err := m.tokens.CountTokens(reserved)
		if err != nil {
			return nil, fmt.Errorf("context: count reserved tokens: %w", err)
		}
		if n > left {
			return nil, fmt.Errorf("context: reserved text needs %d tokens, budget is %d", n, m.budget)
		}
		left -= n
	}

	costs := make([]int, len(history))
	for i, msg := range history {
		n, err := m.tokens.CountTokens(MessageText(msg))
		if err != nil {
			return nil, fmt.Errorf("context: count tokens of turn %d: %w", i, err)
		}
		costs[i] = n
	}

	start := len(history)
	for start > 0 && costs[start-1] <= left {
		start--
		left -= costs[start]
	}
	for start < len(history) && history[start].Role != domain.RoleUser {
		start++
	}
	return history[start:], nil
}

var _ domain.ContextManager = (*Manager)(nil)
