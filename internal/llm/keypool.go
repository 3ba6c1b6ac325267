package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"shopassist/internal/domain"
)

// defaultKeyCooldown is how long a rate-limited key sits out.
const defaultKeyCooldown = 60 * time.Second

// KeyPool rotates API keys round-robin and benches keys that hit a rate
// limit until their cooldown expires. Safe for concurrent use.
type KeyPool struct {
	mu          sync.Mutex
	size        int
	next        int
	benchedTill []time.Time
	cooldown    time.Duration
	now         func() time.Time
}

// NewKeyPool returns a pool over size keys.
func NewKeyPool(size int, cooldown time.Duration) (*KeyPool, error) {
	if size <= 0 {
		return nil, errors.New("keypool: at least one key is required")
	}
	return &KeyPool{
		size:        size,
		benchedTill: make([]time.Time, size),
		cooldown:    cooldown,
		now:         time.Now,
	}, nil
}

// Next returns the index of the next key not in cooldown.
func (p *KeyPool) Next() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	for i := 0; i < p.size; i++ {
		idx := (p.next + i) % p.size
		if !now.Before(p.benchedTill[idx]) {
			p.next = (idx + 1) % p.size
			return idx, nil
		}
	}
	return -1, fmt.Errorf("keypool: all %d keys are in cooldown", p.size)
}

// Bench puts key idx into cooldown. Out-of-range indices are ignored.
func (p *KeyPool) Bench(idx int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx < 0 || idx >= p.size {
		return
	}
	p.benchedTill[idx] = p.now().Add(p.cooldown)
}

// Available counts keys not in cooldown.
func (p *KeyPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	n := 0
	for _, till := range p.benchedTill {
		if !now.Before(till) {
			n++
		}
	}
	return n
}

// isRateLimited reports a 429 from either SDK, or a message that says so.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) && oaiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) && antErr.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "rate limit")
}

// KeyPoolModel spreads calls over one model per API key. A rate-limited key
// is benched and the call is retried once on the next available key.
type KeyPoolModel struct {
	pool   *KeyPool
	models []domain.ChatModel
}

// NewKeyPoolModel pairs models[i] with key i of a fresh pool.
func NewKeyPoolModel(models []domain.ChatModel, cooldown time.Duration) (*KeyPoolModel, error) {
	if len(models) == 0 {
		return nil, errors.New("keypool model: at least one model is required")
	}
	pool, err := NewKeyPool(len(models), cooldown)
	if err != nil {
		return nil, err
	}
	return &KeyPoolModel{pool: pool, models: models}, nil
}

func (k *KeyPoolModel) Name() string { return k.models[0].Name() }

// Invoke implements domain.ChatModel.
func (k *KeyPoolModel) Invoke(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (domain.ModelResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.ModelResponse{}, err
	}
	idx, err := k.pool.Next()
	if err != nil {
		return domain.ModelResponse{}, err
	}
	resp, callErr := k.models[idx].Invoke(ctx, messages, tools)
	if callErr == nil || !isRateLimited(callErr) {
		return resp, callErr
	}

	k.pool.Bench(idx)
	idx, err = k.pool.Next()
	if err != nil {
		return domain.ModelResponse{}, fmt.Errorf("all keys in cooldown after rate limit: %w", callErr)
	}
	return k.models[idx].Invoke(ctx, messages, tools)
}

// splitKeys splits a comma-separated key list, dropping blanks.
func splitKeys(raw string) []string {
	parts := strings.Split(raw, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			keys = append(keys, trimmed)
		}
	}
	return keys
}

var _ domain.ChatModel = (*KeyPoolModel)(nil)
