package telegram

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Replies the bot sends on its own.
const (
	GreetingText = "Hi! I'm connected to your LLM 🤖. Write me something and I'll pass it to the agent."
	ResetText    = "Done, I've forgotten our conversation."
	ApologyText  = "I'm having trouble talking to the AI service 😅. Try again later."
)

// pollTimeout is the long-polling timeout in seconds.
const pollTimeout = 60

// BotAPI abstracts the Telegram Bot API for testing.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// MessageRouter relays a chat's messages with its history
// (implemented by router.Router).
type MessageRouter interface {
	Route(ctx context.Context, conversationID, message string) (string, error)
	Reset(conversationID string) bool
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// Adapter relays Telegram messages to the chat API and sends the replies
// back. Chats are handled concurrently; messages within one chat keep their
// order through the router.
type Adapter struct {
	bot    BotAPI
	router MessageRouter
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewAdapter creates a Telegram adapter. Both bot and router must be non-nil.
func NewAdapter(bot BotAPI, router MessageRouter, opts ...Option) *Adapter {
	if bot == nil {
		panic("telegram: bot must not be nil")
	}
	if router == nil {
		panic("telegram: router must not be nil")
	}
	a := &Adapter{bot: bot, router: router, logger: slog.Default()}
	for _, o := range opts {
		o(a)
	}
	return a
}

// ConversationID maps a Telegram chat to a router conversation.
func ConversationID(chatID int64) string {
	return "telegram-" + strconv.FormatInt(chatID, 10)
}

// HandleUpdate processes one update. /start greets, /reset clears history,
// any other text is relayed. Updates without text are ignored. Relay
// failures are logged and answered with ApologyText.
func (a *Adapter) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}
	chatID := msg.Chat.ID
	conversation := ConversationID(chatID)

	switch msg.Command() {
	case "start":
		a.reply(msg, GreetingText)
		return
	case "reset":
		a.router.Reset(conversation)
		a.reply(msg, ResetText)
		return
	}

	if _, err := a.bot.Send(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		a.logger.Debug("typing action failed", "chat_id", chatID, "error", err)
	}
	answer, err := a.router.Route(ctx, conversation, msg.Text)
	if err != nil {
		a.logger.Error("relay failed", "chat_id", chatID, "error", err)
		answer = ApologyText
	}
	a.reply(msg, answer)
}

func (a *Adapter) reply(to *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(to.Chat.ID, text)
	out.ReplyToMessageID = to.MessageID
	if _, err := a.bot.Send(out); err != nil {
		a.logger.Warn("send failed", "chat_id", to.Chat.ID, "error", err)
	}
}

// Start polls for updates and handles each on its own goroutine. Blocks until
// ctx is cancelled, Stop is called or the updates channel closes, then waits
// for in-flight updates.
func (a *Adapter) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	defer cancel()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := a.bot.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.HandleUpdate(ctx, update)
			}()
		}
	}
}

// Stop gracefully shuts down the adapter.
func (a *Adapter) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
