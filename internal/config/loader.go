package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"shopassist/internal/domain"
)

// DefaultPath is used when SHOPASSIST_CONFIG is unset.
const DefaultPath = "shopassist.json"

// marshalIndent and writeFile are used by WriteDefault and Save; tests may replace to force errors.
var (
	marshalIndent = json.MarshalIndent
	writeFile     = os.WriteFile
)

// Default returns the built-in configuration. The model and catalog defaults
// point at an Azure OpenAI deployment and a local MongoDB "store" database.
func Default() *domain.Config {
	return &domain.Config{
		Gateway: domain.GatewayConfig{
			Host:           "0.0.0.0",
			Port:           8000,
			RequestTimeout: 120,
		},
		Model: domain.ModelConfig{
			Provider:    "azure",
			Model:       "gpt-4.1",
			APIVersion:  "2025-01-01-preview",
			Temperature: 0.7,
			MaxTokens:   1000,
			Timeout:     60,
		},
		Agent: domain.AgentConfig{
			MaxIterations:    8,
			ToolTimeout:      10,
			MaxParallelTools: 4,
			ContextTokens:    8000,
			Encoding:         "cl100k_base",
		},
		Catalog: domain.CatalogConfig{
			Driver:     "mongo",
			URI:        "mongodb://localhost:27025/store",
			Database:   "store",
			Collection: "products",
			Timeout:    5,
		},
		Retry: domain.RetryConfig{
			MaxRetries:     3,
			InitialBackoff: 500,
			MaxBackoff:     30000,
			Multiplier:     2,
		},
		Infra: domain.InfraConfig{LogFormat: "text", LogLevel: "info"},
		Telegram: domain.TelegramConfig{
			APIURL:       "http://llm:8000/chat",
			HistoryTurns: 10,
			Timeout:      60,
		},
	}
}

// WriteDefault writes the default Config to path (e.g. shopassist.json). Paths are not created.
func WriteDefault(path string) error {
	data, err := marshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, data, 0644)
}

// Load reads path and overlays it on Default, so a partial file only changes
// the fields it names. Returns error if the file is missing or invalid JSON.
func Load(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	c := Default()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	CleanPaths(c)
	return c, nil
}

// CleanPaths applies filepath.Clean to all path fields in cfg to prevent path traversal.
func CleanPaths(cfg *domain.Config) {
	if cfg == nil {
		return
	}
	if cfg.Catalog.SeedFile != "" {
		cfg.Catalog.SeedFile = filepath.Clean(cfg.Catalog.SeedFile)
	}
}

// Save writes cfg to path as JSON. Secrets are written too; keep them in the
// environment instead when the file is shared.
func Save(path string, cfg *domain.Config) error {
	if cfg == nil {
		return fmt.Errorf("config save: nil config")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config save mkdir: %w", err)
	}
	data, err := marshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config save marshal: %w", err)
	}
	if err := writeFile(path, data, 0644); err != nil {
		return fmt.Errorf("config save write: %w", err)
	}
	return nil
}

// Resolve builds the effective configuration: the JSON file at path (or the
// defaults when it does not exist), then .env, then the process environment,
// then Validate.
func Resolve(path, dotenvPath string) (*domain.Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := LoadDotEnv(dotenvPath); err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// PathFromEnv returns SHOPASSIST_CONFIG or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv("SHOPASSIST_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}
