package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"shopassist/internal/domain"
)

// DefaultAzureAPIVersion is the Azure OpenAI API version used when none is configured.
const DefaultAzureAPIVersion = "2025-01-01-preview"

// OpenAIModel calls the Chat Completions API with function calling. The same
// type serves OpenAI proper and Azure OpenAI deployments.
type OpenAIModel struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// NewOpenAIModel returns a model backed by api.openai.com, or by baseURL when
// it is set (any OpenAI-compatible endpoint).
func NewOpenAIModel(apiKey, baseURL string, cfg domain.ModelConfig) *OpenAIModel {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return newOpenAIModel(clientCfg, cfg)
}

// NewAzureOpenAIModel returns a model bound to an Azure OpenAI deployment.
// cfg.Model is the deployment name and is used verbatim in the URL.
func NewAzureOpenAIModel(apiKey, endpoint string, cfg domain.ModelConfig) *OpenAIModel {
	clientCfg := openai.DefaultAzureConfig(apiKey, strings.TrimRight(endpoint, "/"))
	clientCfg.APIVersion = cfg.APIVersion
	if clientCfg.APIVersion == "" {
		clientCfg.APIVersion = DefaultAzureAPIVersion
	}
	// The default mapper strips dots, which breaks deployments like "gpt-4.1".
	clientCfg.AzureModelMapperFunc = func(model string) string { return model }
	return newOpenAIModel(clientCfg, cfg)
}

func newOpenAIModel(clientCfg openai.ClientConfig, cfg domain.ModelConfig) *OpenAIModel {
	return &OpenAIModel{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (m *OpenAIModel) Name() string { return m.model }

// Invoke implements domain.ChatModel.
func (m *OpenAIModel) Invoke(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (domain.ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.ModelResponse{}, err
	}
	req := openai.ChatCompletionRequest{
		Model:       m.model,
		Messages:    toOpenAIMessages(messages),
		Temperature: m.temperature,
		MaxTokens:   m.maxTokens,
	}
	if len(tools) > 0 {
		req.Tools = toOpenAITools(tools)
		req.ToolChoice = "auto"
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return domain.ModelResponse{}, fmt.Errorf("openai api: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ModelResponse{}, fmt.Errorf("openai: no choices in response")
	}
	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

func toOpenAIMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msg := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		switch m.Role {
		case domain.RoleAssistant:
			for _, tc := range m.ToolCalls {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: argumentsOrEmpty(tc.Arguments),
					},
				})
			}
		case domain.RoleTool:
			msg.ToolCallID = m.ToolCallID
			msg.Name = m.Name
		}
		out = append(out, msg)
	}
	return out
}

func toOpenAITools(defs []domain.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, len(defs))
	for i, def := range defs {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.InputSchema,
			},
		}
	}
	return out
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) domain.ModelResponse {
	if len(msg.ToolCalls) == 0 {
		return domain.FinalAnswer(msg.Content)
	}
	calls := make([]domain.ToolCall, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		calls[i] = domain.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(argumentsOrEmpty(json.RawMessage(tc.Function.Arguments))),
		}
	}
	resp := domain.ToolCallRequest(calls...)
	resp.Text = msg.Content
	return resp
}

// argumentsOrEmpty substitutes "{}" for missing arguments.
func argumentsOrEmpty(args json.RawMessage) string {
	if len(strings.TrimSpace(string(args))) == 0 {
		return "{}"
	}
	return string(args)
}

var _ domain.ChatModel = (*OpenAIModel)(nil)
