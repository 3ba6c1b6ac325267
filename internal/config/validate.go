package config

import (
	"errors"
	"fmt"

	"shopassist/internal/domain"
)

var (
	validProviders  = map[string]bool{"azure": true, "openai": true, "anthropic": true, "local": true}
	validDrivers    = map[string]bool{"mongo": true, "sql": true, "memory": true}
	validLogFormats = map[string]bool{"text": true, "json": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
)

// Validate reports every out-of-range value in cfg at once.
func Validate(cfg *domain.Config) error {
	if cfg == nil {
		return fmt.Errorf("config validate: nil config")
	}
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	// Port 0 asks the listener for a free port.
	check(cfg.Gateway.Port >= 0 && cfg.Gateway.Port <= 65535, "gateway.port %d out of range 0..65535", cfg.Gateway.Port)
	check(cfg.Gateway.RequestTimeout >= 0, "gateway.requestTimeout must not be negative")

	checkModel := func(prefix string, m domain.ModelConfig) {
		check(validProviders[m.Provider], "%s.provider %q is not one of azure, openai, anthropic, local", prefix, m.Provider)
		check(m.Temperature >= 0 && m.Temperature <= 2, "%s.temperature %v out of range 0..2", prefix, m.Temperature)
		check(m.MaxTokens > 0, "%s.maxTokens must be positive", prefix)
		check(m.Timeout >= 0, "%s.timeout must not be negative", prefix)
	}
	checkModel("model", cfg.Model)
	for i, fb := range cfg.Fallbacks {
		checkModel(fmt.Sprintf("fallbacks[%d]", i), fb)
	}

	check(cfg.Agent.MaxIterations >= 1, "agent.maxIterations must be at least 1")
	check(cfg.Agent.ToolTimeout >= 0, "agent.toolTimeout must not be negative")
	check(cfg.Agent.MaxParallelTools >= 1, "agent.maxParallelTools must be at least 1")
	check(cfg.Agent.ContextTokens >= 0, "agent.contextTokens must not be negative")

	check(validDrivers[cfg.Catalog.Driver], "catalog.driver %q is not one of mongo, sql, memory", cfg.Catalog.Driver)
	check(cfg.Catalog.Driver != "sql" || cfg.Catalog.URI != "", "catalog.uri is required for the sql driver")
	check(cfg.Catalog.Timeout >= 0, "catalog.timeout must not be negative")

	check(cfg.Retry.MaxRetries >= 0, "retry.maxRetries must not be negative")
	if cfg.Retry.MaxRetries > 0 {
		check(cfg.Retry.InitialBackoff > 0, "retry.initialBackoff must be positive")
		check(cfg.Retry.MaxBackoff >= cfg.Retry.InitialBackoff, "retry.maxBackoff must be >= initialBackoff")
		check(cfg.Retry.Multiplier >= 1, "retry.multiplier must be at least 1")
	}

	check(validLogFormats[cfg.Infra.LogFormat], "infra.logFormat %q is not text or json", cfg.Infra.LogFormat)
	check(validLogLevels[cfg.Infra.LogLevel], "infra.logLevel %q is not debug, info, warn or error", cfg.Infra.LogLevel)

	check(cfg.Telegram.HistoryTurns >= 0, "telegram.historyTurns must not be negative")
	check(cfg.Telegram.Timeout >= 0, "telegram.timeout must not be negative")

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
