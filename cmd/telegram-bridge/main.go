package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"shopassist/internal/chatclient"
	"shopassist/internal/config"
	"shopassist/internal/logging"
	"shopassist/internal/router"
	"shopassist/internal/signals"
	"shopassist/internal/telegram"
)

// exitFunc is the function used by main to exit; tests replace it to cover main().
var exitFunc = os.Exit

func main() {
	if err := run(); err != nil {
		slog.Error("telegram bridge failed", "error", err)
		exitFunc(1)
	}
}

// newBotAPIFn creates a real Telegram BotAPI; tests replace it.
var newBotAPIFn = func(token string) (telegram.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

// startAdapterFn starts the adapter loop; tests replace it to avoid blocking.
var startAdapterFn = func(adapter *telegram.Adapter, ctx context.Context) {
	adapter.Start(ctx)
}

// signalContextFn creates a context that cancels on OS signals; tests replace it.
var signalContextFn = func() (context.Context, context.CancelFunc) {
	return signals.NotifyContext(context.Background())
}

// configResolve loads shopassist.json, .env and the environment; tests replace it.
var configResolve = config.Resolve

// errNoToken is returned when TELEGRAM_BOT_TOKEN and telegram.botToken are both empty.
var errNoToken = errors.New("TELEGRAM_BOT_TOKEN is not set")

func run() error {
	// 1. Config: bot token, chat API URL and history size.
	cfg, err := configResolve(config.PathFromEnv(), ".env")
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := logging.Setup(cfg.Infra, os.Stderr)
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram token: %w\n\nSet TELEGRAM_BOT_TOKEN in the environment or .env", errNoToken)
	}

	// 2. Create the Telegram bot API.
	bot, err := newBotAPIFn(cfg.Telegram.BotToken)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}

	// 3. Chat API client; the gateway token doubles as its bearer token.
	client := chatclient.New(cfg.Telegram.APIURL,
		chatclient.WithTimeout(time.Duration(cfg.Telegram.Timeout)*time.Second),
		chatclient.WithAuthToken(cfg.Gateway.AuthToken),
	)

	// 4. Router keeps each chat's history and serializes its messages.
	rt := router.NewRouter(client, router.WithHistoryTurns(cfg.Telegram.HistoryTurns))
	defer rt.Close()

	// 5. Create and start the Telegram adapter.
	adapter := telegram.NewAdapter(bot, rt, telegram.WithLogger(logger))

	ctx, cancel := signalContextFn()
	defer cancel()

	logger.Info("telegram bridge started", "api_url", client.URL(), "history_turns", cfg.Telegram.HistoryTurns)
	startAdapterFn(adapter, ctx)
	logger.Info("telegram bridge stopped")
	return nil
}
