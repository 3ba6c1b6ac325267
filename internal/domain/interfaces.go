package domain

import "context"

// ChatModel is the provider-agnostic interface for one model turn.
// Implementations may be OpenAI, Azure OpenAI, Anthropic, local models, or mocks.
type ChatModel interface {
	// Name identifies the model (deployment or model id) in responses and logs.
	Name() string

	// Invoke sends the conversation and the tools the model may call. The
	// response is either a final answer or a set of tool call requests.
	Invoke(ctx context.Context, messages []Message, tools []ToolDefinition) (ModelResponse, error)
}

// CatalogStore is the read-only product catalog.
type CatalogStore interface {
	// FindByNameSubstring returns up to limit products whose name contains
	// term, case-insensitively, in the store's natural order.
	FindByNameSubstring(ctx context.Context, term string, limit int) ([]Product, error)

	// List returns up to limit products in the store's natural order.
	List(ctx context.Context, limit int) ([]Product, error)

	// Ping is a lightweight liveness probe.
	Ping(ctx context.Context) error
}

// Tokenizer counts tokens in a string for LLM context window management.
type Tokenizer interface {
	// CountTokens returns the number of tokens in the given text.
	CountTokens(text string) (int, error)
}

// ContextManager fits messages into a model's context window.
type ContextManager interface {
	// FitToWindow takes messages and a system prompt, and returns messages
	// that fit within the configured token limit. The system prompt tokens
	// are always reserved. Older messages are dropped first (sliding window).
	FitToWindow(messages []Message, systemPrompt string) ([]Message, error)
}
