package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"shopassist/internal/domain"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is fine.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config dotenv %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg from environment variables. Provider-specific keys
// (AZURE_OPENAI_*, OPENAI_API_KEY, ANTHROPIC_API_KEY) only apply to the
// provider in effect after MODEL_PROVIDER; MONGO_URI only to the mongo driver.
func ApplyEnv(cfg *domain.Config, lookup LookupFunc) error {
	if cfg == nil {
		return fmt.Errorf("config env: nil config")
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}

	str("MODEL_PROVIDER", &cfg.Model.Provider)
	cfg.Model.Provider = strings.ToLower(cfg.Model.Provider)
	str("MODEL_NAME", &cfg.Model.Model)
	switch cfg.Model.Provider {
	case "azure":
		str("AZURE_OPENAI_ENDPOINT", &cfg.Model.Endpoint)
		str("AZURE_OPENAI_KEY", &cfg.Model.APIKey)
		str("AZURE_OPENAI_DEPLOYMENT", &cfg.Model.Model)
		str("AZURE_OPENAI_VERSION", &cfg.Model.APIVersion)
	case "openai":
		str("OPENAI_API_KEY", &cfg.Model.APIKey)
		str("OPENAI_BASE_URL", &cfg.Model.Endpoint)
	case "anthropic":
		str("ANTHROPIC_API_KEY", &cfg.Model.APIKey)
	}
	if v, ok := lookup("LLM_TEMPERATURE"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
		if err != nil {
			errs = append(errs, fmt.Errorf("LLM_TEMPERATURE: %w", err))
		} else {
			cfg.Model.Temperature = float32(f)
		}
	}
	num("LLM_MAX_TOKENS", &cfg.Model.MaxTokens)

	str("CATALOG_DRIVER", &cfg.Catalog.Driver)
	cfg.Catalog.Driver = strings.ToLower(cfg.Catalog.Driver)
	str("CATALOG_URI", &cfg.Catalog.URI)
	if cfg.Catalog.Driver == "mongo" {
		str("MONGO_URI", &cfg.Catalog.URI)
	}
	str("CATALOG_SEED_FILE", &cfg.Catalog.SeedFile)

	str("API_HOST", &cfg.Gateway.Host)
	num("API_PORT", &cfg.Gateway.Port)
	str("GATEWAY_AUTH_TOKEN", &cfg.Gateway.AuthToken)

	str("LOG_LEVEL", &cfg.Infra.LogLevel)
	cfg.Infra.LogLevel = strings.ToLower(cfg.Infra.LogLevel)
	str("LOG_FORMAT", &cfg.Infra.LogFormat)
	cfg.Infra.LogFormat = strings.ToLower(cfg.Infra.LogFormat)

	num("AGENT_MAX_ITERATIONS", &cfg.Agent.MaxIterations)

	str("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)
	str("LLM_API_URL", &cfg.Telegram.APIURL)

	if len(errs) > 0 {
		return fmt.Errorf("config env: %w", errors.Join(errs...))
	}
	CleanPaths(cfg)
	return nil
}
