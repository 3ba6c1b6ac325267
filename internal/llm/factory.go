package llm

import (
	"fmt"
	"log/slog"
	"strings"

	"shopassist/internal/domain"
	"shopassist/internal/retry"
)

// Supported model.provider values.
const (
	ProviderAzure     = "azure"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderLocal     = "local"
)

// LocalPrefix starts every answer of the offline model.
const LocalPrefix = "Local: "

// NewModel returns the ChatModel described by cfg, wrapped with retry logic
// when retryCfg.MaxRetries > 0. An empty provider selects the local model.
// An API key holding several comma-separated keys yields a KeyPoolModel.
func NewModel(cfg domain.ModelConfig, retryCfg domain.RetryConfig) (domain.ChatModel, error) {
	base, err := newBaseModel(cfg)
	if err != nil {
		return nil, err
	}
	return wrapWithRetry(base, retryCfg), nil
}

func newBaseModel(cfg domain.ModelConfig) (domain.ChatModel, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderLocal
	}
	switch provider {
	case ProviderLocal:
		return NewLocalModel(LocalPrefix), nil
	case ProviderAzure:
		if strings.TrimSpace(cfg.Endpoint) == "" {
			return nil, fmt.Errorf("azure provider: endpoint not set (AZURE_OPENAI_ENDPOINT)")
		}
		return resolveKeyedModel(ProviderAzure, "AZURE_OPENAI_KEY", cfg.APIKey, func(key string) domain.ChatModel {
			return NewAzureOpenAIModel(key, cfg.Endpoint, cfg)
		})
	case ProviderOpenAI:
		return resolveKeyedModel(ProviderOpenAI, "OPENAI_API_KEY", cfg.APIKey, func(key string) domain.ChatModel {
			return NewOpenAIModel(key, cfg.Endpoint, cfg)
		})
	case ProviderAnthropic:
		return resolveKeyedModel(ProviderAnthropic, "ANTHROPIC_API_KEY", cfg.APIKey, func(key string) domain.ChatModel {
			return NewAnthropicModel(key, cfg.Endpoint, cfg)
		})
	default:
		return nil, fmt.Errorf("unknown model provider %q (use: azure, openai, anthropic, local)", cfg.Provider)
	}
}

// resolveKeyedModel builds one model per key; several keys are pooled.
func resolveKeyedModel(provider, envName, rawKey string, makeModel func(key string) domain.ChatModel) (domain.ChatModel, error) {
	keys := splitKeys(rawKey)
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s provider: API key not set (%s)", provider, envName)
	}
	if len(keys) == 1 {
		return makeModel(keys[0]), nil
	}
	models := make([]domain.ChatModel, len(keys))
	for i, k := range keys {
		models[i] = makeModel(k)
	}
	pooled, err := NewKeyPoolModel(models, defaultKeyCooldown)
	if err != nil {
		return nil, fmt.Errorf("%s key pool: %w", provider, err)
	}
	return pooled, nil
}

// NewFallbackModels builds a model for each fallback entry. Entries that
// fail to build are skipped with a warning.
func NewFallbackModels(fallbacks []domain.ModelConfig, retryCfg domain.RetryConfig, logger *slog.Logger) []domain.ChatModel {
	if logger == nil {
		logger = slog.Default()
	}
	var models []domain.ChatModel
	for i, fb := range fallbacks {
		m, err := NewModel(fb, retryCfg)
		if err != nil {
			logger.Warn("skipping fallback model", "index", i, "provider", fb.Provider, "error", err)
			continue
		}
		models = append(models, m)
	}
	return models
}

func wrapWithRetry(model domain.ChatModel, rc domain.RetryConfig) domain.ChatModel {
	if rc.MaxRetries <= 0 {
		return model
	}
	return retry.NewRetryableModel(model, retry.FromSettings(rc))
}
