// Package chat is the request/response boundary in front of the reasoning
// loop. It turns a caller's message, optional context and history into a
// conversation and returns the agent's answer.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"shopassist/internal/brain"
	"shopassist/internal/domain"
	"shopassist/internal/injection"
	"shopassist/internal/prompts"
)

const (
	// DefaultProductLimit is used by Products when the caller gives none.
	DefaultProductLimit = 10
	// MaxProductLimit caps Products.
	MaxProductLimit = 100
	// DefaultRecommendations is used when ProductQuery.MaxProducts is zero.
	DefaultRecommendations = 5
	// MaxRecommendations is the largest accepted ProductQuery.MaxProducts.
	MaxRecommendations = 20
	// recommendPool is how many products the recommender gets to choose from.
	recommendPool = 20
)

var (
	// ErrInvalidRequest is the parent of every caller input error.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrEmptyMessage is returned when Request.Message is blank.
	ErrEmptyMessage = fmt.Errorf("%w: message must not be empty", ErrInvalidRequest)
	// ErrInvalidRole is returned for a history turn with an unknown role.
	ErrInvalidRole = fmt.Errorf("%w: unknown chat_history role", ErrInvalidRequest)
	// ErrInvalidQuery is returned for a blank query or out-of-range max_products.
	ErrInvalidQuery = fmt.Errorf("%w: invalid product query", ErrInvalidRequest)
)

// Turn is one prior exchange in chat_history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the inbound chat payload.
type Request struct {
	Message     string `json:"message"`
	Context     string `json:"context,omitempty"`
	ChatHistory []Turn `json:"chat_history,omitempty"`
}

// Response is the chat reply.
type Response struct {
	Response string `json:"response"`
	Model    string `json:"model"`
}

// ProductQuery asks for recommendations.
type ProductQuery struct {
	Query       string `json:"query"`
	MaxProducts int    `json:"max_products,omitempty"`
}

// Recommendation is the answer to a ProductQuery.
type Recommendation struct {
	Products       []domain.Product `json:"products"`
	Recommendation string           `json:"recommendation"`
}

// ProductList is a page of the catalog.
type ProductList struct {
	Products []domain.Product `json:"products"`
	Count    int              `json:"count"`
}

// Runner is the part of brain.Agent the service needs.
type Runner interface {
	Run(ctx context.Context, messages []domain.Message) (brain.Outcome, error)
	ModelName() string
}

// Option configures a Service.
type Option func(*Service)

// WithContextManager fits caller history into the token window.
func WithContextManager(m domain.ContextManager) Option {
	return func(s *Service) { s.window = m }
}

// WithRecommender sets the model used by Recommend. Without it Recommend
// returns brain.ErrModelUnavailable.
func WithRecommender(m domain.ChatModel) Option {
	return func(s *Service) {
		if m != nil {
			s.recommender = m
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service answers chat, product listing and recommendation requests.
type Service struct {
	agent       Runner
	store       domain.CatalogStore
	window      domain.ContextManager
	recommender domain.ChatModel
	logger      *slog.Logger
}

// NewService panics if agent or store is nil.
func NewService(agent Runner, store domain.CatalogStore, opts ...Option) *Service {
	if agent == nil {
		panic("chat: agent must not be nil")
	}
	if store == nil {
		panic("chat: store must not be nil")
	}
	s := &Service{agent: agent, store: store, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ModelName is the primary model's name.
func (s *Service) ModelName() string { return s.agent.ModelName() }

// Chat runs the agent over the caller's message and history.
func (s *Service) Chat(ctx context.Context, req Request) (Response, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Response{}, ErrEmptyMessage
	}
	history, err := convertHistory(req.ChatHistory)
	if err != nil {
		return Response{}, err
	}
	injection.LogIfDetected(s.logger, "chat", message)
	if req.Context != "" {
		injection.LogIfDetected(s.logger, "chat.context", req.Context)
	}
	if r := injection.ScanMessages(history); r.Detected {
		s.logger.Warn("possible prompt injection", "source", "chat.history", "patterns", r.Patterns)
	}

	conv := []domain.Message{domain.SystemMessage(prompts.ChatSystem)}
	reserved := prompts.ChatSystem
	if c := strings.TrimSpace(req.Context); c != "" {
		extra := prompts.AdditionalContext(c)
		conv = append(conv, domain.SystemMessage(extra))
		reserved += "\n" + extra
	}
	conv = append(conv, s.fitHistory(history, reserved+"\n"+message)...)
	conv = append(conv, domain.UserMessage(message))

	out, err := s.agent.Run(ctx, conv)
	if err != nil {
		return Response{}, err
	}
	if out.Exhausted {
		s.logger.Warn("chat answered with fallback", "iterations", out.Iterations)
	}
	return Response{Response: out.Answer, Model: s.agent.ModelName()}, nil
}

// fitHistory trims history to the token window. When even the prompt and
// message do not fit, history is dropped and the request still runs.
func (s *Service) fitHistory(history []domain.Message, reserved string) []domain.Message {
	if s.window == nil || len(history) == 0 {
		return history
	}
	fitted, err := s.window.FitToWindow(history, reserved)
	if err != nil {
		s.logger.Warn("dropping chat history", "turns", len(history), "error", err)
		return nil
	}
	if dropped := len(history) - len(fitted); dropped > 0 {
		s.logger.Debug("trimmed chat history", "dropped", dropped, "kept", len(fitted))
	}
	return fitted
}

// convertHistory maps caller turns to messages. Blank turns are skipped.
func convertHistory(turns []Turn) ([]domain.Message, error) {
	out := make([]domain.Message, 0, len(turns))
	for i, t := range turns {
		role, ok := normalizeRole(t.Role)
		if !ok {
			return nil, fmt.Errorf("%w: turn %d has role %q", ErrInvalidRole, i, t.Role)
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		out = append(out, domain.Message{Role: role, Content: t.Content})
	}
	return out, nil
}

func normalizeRole(role string) (domain.MessageRole, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user", "human":
		return domain.RoleUser, true
	case "assistant", "ai", "bot":
		return domain.RoleAssistant, true
	default:
		return "", false
	}
}

// Products lists up to limit catalog entries. limit <= 0 means
// DefaultProductLimit.
func (s *Service) Products(ctx context.Context, limit int) (ProductList, error) {
	switch {
	case limit <= 0:
		limit = DefaultProductLimit
	case limit > MaxProductLimit:
		limit = MaxProductLimit
	}
	products, err := s.store.List(ctx, limit)
	if err != nil {
		return ProductList{}, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return ProductList{Products: products, Count: len(products)}, nil
}

// Recommend asks the recommender to pick from the first products in the
// catalog. The returned products are the first MaxProducts of that pool.
func (s *Service) Recommend(ctx context.Context, q ProductQuery) (Recommendation, error) {
	query := strings.TrimSpace(q.Query)
	if query == "" {
		return Recommendation{}, fmt.Errorf("%w: query must not be empty", ErrInvalidQuery)
	}
	want := q.MaxProducts
	if want == 0 {
		want = DefaultRecommendations
	}
	if want < 1 || want > MaxRecommendations {
		return Recommendation{}, fmt.Errorf("%w: max_products must be between 1 and %d", ErrInvalidQuery, MaxRecommendations)
	}
	if s.recommender == nil {
		return Recommendation{}, fmt.Errorf("%w: no recommender configured", brain.ErrModelUnavailable)
	}
	injection.LogIfDetected(s.logger, "recommend", query)

	pool, err := s.store.List(ctx, recommendPool)
	if err != nil {
		return Recommendation{}, err
	}
	sub := brain.NewSubAgent(s.recommender, prompts.RecommendSystem(pool))
	text, err := sub.Run(ctx, prompts.RecommendTask(query, want))
	if err != nil {
		return Recommendation{}, err
	}
	if len(pool) > want {
		pool = pool[:want]
	}
	if pool == nil {
		pool = []domain.Product{}
	}
	return Recommendation{Products: pool, Recommendation: text}, nil
}
