package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"shopassist/internal/domain"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicModel calls the Anthropic Messages API with tool use.
type AnthropicModel struct {
	client      anthropic.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewAnthropicModel returns an Anthropic-backed model. baseURL overrides the
// API host when set. SDK-level retries are disabled; retry.RetryableModel
// owns retries.
func NewAnthropicModel(apiKey, baseURL string, cfg domain.ModelConfig) *AnthropicModel {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicModel{
		client:      anthropic.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

func (m *AnthropicModel) Name() string { return m.model }

// Invoke implements domain.ChatModel.
func (m *AnthropicModel) Invoke(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (domain.ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.ModelResponse{}, err
	}
	system, turns := toAnthropicMessages(messages)
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.model),
		MaxTokens:   int64(m.maxTokens),
		Messages:    turns,
		Temperature: anthropic.Float(float64(m.temperature)),
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(tools) > 0 {
		converted, err := toAnthropicTools(tools)
		if err != nil {
			return domain.ModelResponse{}, err
		}
		params.Tools = converted
	}

	msg, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return domain.ModelResponse{}, fmt.Errorf("anthropic api: %w", err)
	}

	var text strings.Builder
	var calls []domain.ToolCall
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			calls = append(calls, domain.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: json.RawMessage(argumentsOrEmpty(b.Input)),
			})
		}
	}
	if len(calls) == 0 {
		return domain.FinalAnswer(text.String()), nil
	}
	resp := domain.ToolCallRequest(calls...)
	resp.Text = text.String()
	return resp, nil
}

// toAnthropicMessages lifts system turns into the system prompt and groups
// consecutive tool results into one user turn, as the Messages API requires.
func toAnthropicMessages(messages []domain.Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	var out []anthropic.MessageParam
	var pendingResults []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pendingResults) > 0 {
			out = append(out, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case domain.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(m.ToolCallID, m.Content, m.IsError))
		case domain.RoleAssistant:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, json.RawMessage(argumentsOrEmpty(tc.Arguments)), tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		default:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	flush()
	return system, out
}

// toAnthropicTools splits each JSON schema into the properties and required
// list the SDK's input schema expects.
func toAnthropicTools(defs []domain.ToolDefinition) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		var schema struct {
			Properties map[string]any `json:"properties"`
			Required   []string       `json:"required"`
		}
		if err := json.Unmarshal(def.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("anthropic: tool %q schema: %w", def.Name, err)
		}
		tool := anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema.Properties,
				Required:   schema.Required,
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tool})
	}
	return out, nil
}

var _ domain.ChatModel = (*AnthropicModel)(nil)
