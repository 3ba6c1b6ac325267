package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"shopassist/internal/config"
	"shopassist/internal/domain"
)

const checkCmd = "check"

// checkTimeout bounds the catalog probe.
var checkTimeout = 10 * time.Second

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Fix bool // if true, write default config when missing
}

// RunCheck runs the check subcommand: config, gateway, catalog and model.
// Writes the default config with --fix. Returns exit code.
func RunCheck(args []string, stdout, stderr io.Writer) int {
	opts := parseCheckOptions(args)
	cfgPath := config.PathFromEnv()

	note := func(section, message string) {
		fmt.Fprintf(stdout, "  [%s] %s\n", section, message)
	}

	// 1. Config
	if _, err := osReadFile(cfgPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			note("Config", err.Error())
			return 1
		}
		note("Config", fmt.Sprintf("No config at %s.", cfgPath))
		if opts.Fix {
			if writeErr := writeDefaultConfig(cfgPath); writeErr != nil {
				fmt.Fprintf(stderr, "  failed to write default config: %v\n", writeErr)
				return 1
			}
			note("Config", fmt.Sprintf("Wrote default config to %s.", cfgPath))
		} else {
			note("Config", "Run with --fix to create a default shopassist.json. Using defaults.")
		}
	} else {
		note("Config", fmt.Sprintf("Loaded %s.", cfgPath))
	}
	cfg, err := configResolve(cfgPath, ".env")
	if err != nil {
		note("Config", err.Error())
		return 1
	}

	// 2. Gateway
	note("Gateway", fmt.Sprintf("host=%s port=%d timeout=%ds", cfg.Gateway.Host, cfg.Gateway.Port, cfg.Gateway.RequestTimeout))
	if cfg.Gateway.AuthToken == "" {
		note("Gateway", "Auth is disabled. Set gateway.authToken (GATEWAY_AUTH_TOKEN) for production.")
	}

	ok := true
	// 3. Catalog
	if err := checkCatalog(cfg.Catalog); err != nil {
		note("Catalog", err.Error())
		ok = false
	} else {
		note("Catalog", fmt.Sprintf("driver=%s reachable.", cfg.Catalog.Driver))
	}

	// 4. Model
	model, err := newModel(cfg.Model, cfg.Retry)
	if err != nil {
		note("Model", err.Error())
		ok = false
	} else {
		note("Model", fmt.Sprintf("provider=%s model=%s ready.", cfg.Model.Provider, model.Name()))
	}
	if n := len(cfg.Fallbacks); n > 0 {
		built := len(newFallbackModels(cfg.Fallbacks, cfg.Retry, nil))
		note("Model", fmt.Sprintf("%d of %d fallback models usable.", built, n))
	}

	fmt.Fprintln(stdout, "  Check complete.")
	if !ok {
		return 1
	}
	return 0
}

func checkCatalog(cfg domain.CatalogConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()
	store, err := catalogOpen(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer store.Close(context.WithoutCancel(ctx))
	return store.Ping(ctx)
}

func parseCheckOptions(args []string) CheckOptions {
	var opts CheckOptions
	for _, a := range args {
		if a == "--fix" || a == "-fix" {
			opts.Fix = true
			break
		}
	}
	return opts
}

func writeDefaultConfig(path string) error {
	return configWriteDefault(path)
}
