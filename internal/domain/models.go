package domain

import (
	"encoding/json"
)

// =============================================================================
// Core Configuration
// =============================================================================

type Config struct {
	Gateway   GatewayConfig  `json:"gateway"`
	Model     ModelConfig    `json:"model"`
	Fallbacks []ModelConfig  `json:"fallbacks,omitempty"` // optional failover models, tried in order
	Agent     AgentConfig    `json:"agent"`
	Catalog   CatalogConfig  `json:"catalog"`
	Retry     RetryConfig    `json:"retry"`
	Infra     InfraConfig    `json:"infra"`
	Telegram  TelegramConfig `json:"telegram"`
}

type GatewayConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	AuthToken      string `json:"authToken,omitempty"` // When set, gateway requires Authorization: Bearer <authToken>
	RequestTimeout int    `json:"requestTimeout"`      // Seconds allowed for one chat request end to end
}

// ModelConfig selects and parameterises the language model.
type ModelConfig struct {
	Provider    string  `json:"provider"`             // "azure" | "openai" | "anthropic" | "local"
	Model       string  `json:"model"`                // model name, or deployment name on Azure
	Endpoint    string  `json:"endpoint,omitempty"`   // Azure resource endpoint or custom base URL
	APIKey      string  `json:"apiKey,omitempty"`     // usually supplied through the environment
	APIVersion  string  `json:"apiVersion,omitempty"` // Azure only
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
	Timeout     int     `json:"timeout"` // Seconds per model call
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxIterations    int    `json:"maxIterations"`    // model turns before the fallback answer
	ToolTimeout      int    `json:"toolTimeout"`      // Seconds per tool call
	MaxParallelTools int    `json:"maxParallelTools"` // concurrent tool calls within one turn
	ContextTokens    int    `json:"contextTokens"`    // token budget for prompt + caller history (0 = unlimited)
	Encoding         string `json:"encoding"`         // tiktoken encoding used for history fitting
}

// CatalogConfig selects the product catalog backend.
type CatalogConfig struct {
	Driver     string `json:"driver"` // "mongo" | "sql" | "memory"
	URI        string `json:"uri,omitempty"`
	Database   string `json:"database,omitempty"`
	Collection string `json:"collection,omitempty"`
	SeedFile   string `json:"seedFile,omitempty"` // YAML product list for the memory driver
	Watch      bool   `json:"watch"`              // reload SeedFile on change
	Timeout    int    `json:"timeout"`            // Seconds per catalog query
}

// RetryConfig controls retry behaviour for external API calls (LLM).
type RetryConfig struct {
	MaxRetries     int `json:"maxRetries"`     // Maximum retry attempts (0 = no retries)
	InitialBackoff int `json:"initialBackoff"` // Initial backoff in milliseconds
	MaxBackoff     int `json:"maxBackoff"`     // Maximum backoff in milliseconds
	Multiplier     int `json:"multiplier"`     // Backoff multiplier (e.g. 2 for exponential doubling)
}

type InfraConfig struct {
	LogFormat string `json:"logFormat"` // "json" | "text"
	LogLevel  string `json:"logLevel"`
}

// TelegramConfig configures the chat relay bot.
type TelegramConfig struct {
	BotToken     string `json:"botToken,omitempty"`
	APIURL       string `json:"apiUrl"`       // chat endpoint the bot relays to
	HistoryTurns int    `json:"historyTurns"` // per-chat turns resent as chat_history
	Timeout      int    `json:"timeout"`      // Seconds per relayed request
}

// =============================================================================
// Catalog
// =============================================================================

// Product is a catalog entry. The core never mutates products.
type Product struct {
	Name      string  `json:"name" yaml:"name"`
	UnitPrice float64 `json:"unit_price" yaml:"unit_price"`
	Stock     int     `json:"stock" yaml:"stock"`
}

// =============================================================================
// Messaging Protocol
// =============================================================================

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleTool      MessageRole = "tool"
)

// Message is one conversation turn. Assistant turns may carry ToolCalls instead
// of (or alongside) Content; tool turns carry the ToolCallID they answer.
type Message struct {
	Role       MessageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	Name       string      `json:"name,omitempty"`
	IsError    bool        `json:"is_error,omitempty"` // tool turns only
}

func SystemMessage(text string) Message    { return Message{Role: RoleSystem, Content: text} }
func UserMessage(text string) Message      { return Message{Role: RoleUser, Content: text} }
func AssistantMessage(text string) Message { return Message{Role: RoleAssistant, Content: text} }

// AssistantToolCalls records a tool-call turn produced by the model.
func AssistantToolCalls(text string, calls []ToolCall) Message {
	cp := make([]ToolCall, len(calls))
	copy(cp, calls)
	return Message{Role: RoleAssistant, Content: text, ToolCalls: cp}
}

// ToolResultMessage wraps a ToolResult as a tool turn.
func ToolResultMessage(r ToolResult) Message {
	return Message{Role: RoleTool, Content: r.Content, ToolCallID: r.CallID, Name: r.Name, IsError: r.IsError}
}

// CloneMessages returns a copy of msgs whose ToolCalls slices are not shared.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.ToolCalls != nil {
			out[i].ToolCalls = make([]ToolCall, len(m.ToolCalls))
			copy(out[i].ToolCalls, m.ToolCalls)
		}
	}
	return out
}

// =============================================================================
// Model Responses
// =============================================================================

// ResponseKind tags the variant held by a ModelResponse.
type ResponseKind int

const (
	ResponseFinalAnswer ResponseKind = iota + 1
	ResponseToolCalls
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseFinalAnswer:
		return "final_answer"
	case ResponseToolCalls:
		return "tool_calls"
	default:
		return "unknown"
	}
}

// ModelResponse is what one model turn produced: either a final answer (Text)
// or one or more tool call requests. Text may accompany tool calls as the
// model's interim reasoning; it is not an answer in that case.
type ModelResponse struct {
	Kind      ResponseKind
	Text      string
	ToolCalls []ToolCall
}

// FinalAnswer builds the final-answer variant.
func FinalAnswer(text string) ModelResponse {
	return ModelResponse{Kind: ResponseFinalAnswer, Text: text}
}

// ToolCallRequest builds the tool-call variant.
func ToolCallRequest(calls ...ToolCall) ModelResponse {
	return ModelResponse{Kind: ResponseToolCalls, ToolCalls: calls}
}

// =============================================================================
// Tooling
// =============================================================================

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolCall is a model's request to run a tool with JSON arguments.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the textual outcome of one tool call. Errors are results too:
// IsError marks content that describes a failure for the model to reason about.
type ToolResult struct {
	CallID  string `json:"call_id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}
