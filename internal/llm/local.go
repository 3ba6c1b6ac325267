package llm

import (
	"context"
	"strings"

	"shopassist/internal/domain"
)

// LocalModel is a deterministic offline model for demos, health checks and
// tests without API keys. It never requests tools: it answers with the latest
// tool results when there are any, otherwise it echoes the user's message.
type LocalModel struct {
	Prefix string
}

// NewLocalModel returns a local model whose answers start with prefix.
func NewLocalModel(prefix string) *LocalModel {
	return &LocalModel{Prefix: prefix}
}

func (m *LocalModel) Name() string { return "local" }

// Invoke implements domain.ChatModel.
func (m *LocalModel) Invoke(ctx context.Context, messages []domain.Message, _ []domain.ToolDefinition) (domain.ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.ModelResponse{}, err
	}

	var results []string
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role == domain.RoleTool {
			results = append([]string{msg.Content}, results...)
			continue
		}
		if len(results) > 0 {
			return domain.FinalAnswer(m.Prefix + strings.Join(results, "\n")), nil
		}
		if msg.Role == domain.RoleUser {
			return domain.FinalAnswer(m.Prefix + msg.Content), nil
		}
	}
	if len(results) > 0 {
		return domain.FinalAnswer(m.Prefix + strings.Join(results, "\n")), nil
	}
	return domain.FinalAnswer(m.Prefix), nil
}

var _ domain.ChatModel = (*LocalModel)(nil)
