package router

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"shopassist/internal/chat"
	"shopassist/internal/queue"
)

// DefaultHistoryTurns is how many prior turns are resent with each message.
const DefaultHistoryTurns = 10

// Chatter answers one chat request. chat.Service answers in-process;
// chatclient.Client relays over HTTP.
type Chatter interface {
	Chat(ctx context.Context, req chat.Request) (chat.Response, error)
}

// Conversation is the history kept for one chat (websocket channel or
// Telegram chat).
type Conversation struct {
	ID        string
	Turns     []chat.Turn
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrEmptyConversationID is returned when Route is called with an empty id.
var ErrEmptyConversationID = errors.New("router: conversation ID must not be empty")

// Option configures a Router.
type Option func(*Router)

// WithHistoryTurns sets how many turns are kept per conversation. Zero
// disables history.
func WithHistoryTurns(n int) Option {
	return func(r *Router) {
		if n >= 0 {
			r.maxTurns = n
		}
	}
}

// Router keeps per-conversation history and forwards each message with it.
// Route calls for the same conversation run one at a time in FIFO order;
// different conversations run concurrently.
type Router struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	chatter       Chatter
	maxTurns      int
	lanes         *queue.LaneQueue

	// afterReadMiss is a test hook run between the read-lock miss and the
	// write lock in conversation(). Nil in production.
	afterReadMiss func()
}

// NewRouter panics if chatter is nil.
func NewRouter(chatter Chatter, opts ...Option) *Router {
	if chatter == nil {
		panic("router: chatter must not be nil")
	}
	r := &Router{
		conversations: make(map[string]*Conversation),
		chatter:       chatter,
		maxTurns:      DefaultHistoryTurns,
		lanes:         queue.NewLaneQueue(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Route sends message with the conversation's history and records both
// sides of the exchange on success. A failed exchange leaves history as it
// was.
func (r *Router) Route(ctx context.Context, conversationID, message string) (string, error) {
	if conversationID == "" {
		return "", ErrEmptyConversationID
	}

	var reply string
	err := r.lanes.Do(ctx, conversationID, func() error {
		conv := r.conversation(conversationID)
		resp, err := r.chatter.Chat(ctx, chat.Request{
			Message:     message,
			ChatHistory: r.snapshot(conv),
		})
		if err != nil {
			return err
		}
		r.record(conv, message, resp.Response)
		reply = resp.Response
		return nil
	})
	return reply, err
}

// Reset forgets a conversation's history. Reports whether it existed.
func (r *Router) Reset(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conversations[conversationID]
	delete(r.conversations, conversationID)
	return ok
}

// Close stops the per-conversation workers. Route returns queue.ErrClosed
// afterwards.
func (r *Router) Close() { r.lanes.Close() }

// ActiveConversations returns the sorted ids of known conversations.
func (r *Router) ActiveConversations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conversations))
	for id := range r.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetConversation returns a copy of the conversation, or false if unknown.
func (r *Router) GetConversation(conversationID string) (Conversation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conversations[conversationID]
	if !ok {
		return Conversation{}, false
	}
	out := *c
	out.Turns = append([]chat.Turn(nil), c.Turns...)
	return out, true
}

// ConversationCount returns the number of known conversations.
func (r *Router) ConversationCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conversations)
}

func (r *Router) conversation(id string) *Conversation {
	r.mu.RLock()
	c, ok := r.conversations[id]
	r.mu.RUnlock()
	if ok {
		return c
	}

	if r.afterReadMiss != nil {
		r.afterReadMiss()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok = r.conversations[id]; ok {
		return c
	}
	now := time.Now()
	c = &Conversation{ID: id, CreatedAt: now, UpdatedAt: now}
	r.conversations[id] = c
	return c
}

func (r *Router) snapshot(c *Conversation) []chat.Turn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(c.Turns) == 0 {
		return nil
	}
	return append([]chat.Turn(nil), c.Turns...)
}

// record appends the exchange and keeps the newest maxTurns turns. A kept
// window never opens with an assistant turn.
func (r *Router) record(c *Conversation, message, reply string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.UpdatedAt = time.Now()
	if r.maxTurns == 0 {
		return
	}
	turns := append(c.Turns,
		chat.Turn{Role: "user", Content: message},
		chat.Turn{Role: "assistant", Content: reply},
	)
	if len(turns) > r.maxTurns {
		turns = turns[len(turns)-r.maxTurns:]
	}
	for len(turns) > 0 && turns[0].Role != "user" {
		turns = turns[1:]
	}
	c.Turns = append([]chat.Turn(nil), turns...)
}
