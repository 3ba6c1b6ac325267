package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"shopassist/internal/domain"
)

// =============================================================================
// KeyPool
// =============================================================================

func TestNewKeyPool_WhenSizeNotPositive_ShouldReturnError(t *testing.T) {
	if _, err := NewKeyPool(0, time.Minute); err == nil {
		t.Error("expected error for empty pool")
	}
}

func TestKeyPool_Next_ShouldRotateRoundRobin(t *testing.T) {
	pool, _ := NewKeyPool(3, time.Minute)

	var got []int
	for i := 0; i < 4; i++ {
		idx, err := pool.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = append(got, idx)
	}
	want := []int{0, 1, 2, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}

func TestKeyPool_Bench_ShouldSkipBenchedKeyUntilCooldownExpires(t *testing.T) {
	now := time.Now()
	pool, _ := NewKeyPool(2, time.Minute)
	pool.now = func() time.Time { return now }

	pool.Bench(0)
	if pool.Available() != 1 {
		t.Errorf("want 1 available, got %d", pool.Available())
	}
	for i := 0; i < 3; i++ {
		if idx, _ := pool.Next(); idx != 1 {
			t.Fatalf("benched key must be skipped, got %d", idx)
		}
	}

	now = now.Add(time.Minute)
	if pool.Available() != 2 {
		t.Errorf("key should recover after cooldown, available %d", pool.Available())
	}
}

func TestKeyPool_Next_WhenAllKeysBenched_ShouldReturnError(t *testing.T) {
	pool, _ := NewKeyPool(2, time.Minute)
	pool.Bench(0)
	pool.Bench(1)

	if _, err := pool.Next(); err == nil {
		t.Error("expected error when all keys are in cooldown")
	}
}

func TestKeyPool_Bench_WhenIndexOutOfRange_ShouldNotPanic(t *testing.T) {
	pool, _ := NewKeyPool(1, time.Minute)
	pool.Bench(-1)
	pool.Bench(5)
	if pool.Available() != 1 {
		t.Error("out-of-range bench must be ignored")
	}
}

func TestKeyPool_ShouldBeThreadSafe(t *testing.T) {
	pool, _ := NewKeyPool(3, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			pool.Bench(idx % 3)
		}(i)
		go func() {
			defer wg.Done()
			_, _ = pool.Next()
			pool.Available()
		}()
	}
	wg.Wait()
}

// =============================================================================
// isRateLimited
// =============================================================================

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"429 text", errors.New("openai api: 429 Too Many Requests"), true},
		{"rate limit mixed case", errors.New("Rate Limit exceeded"), true},
		{"typed openai", fmt.Errorf("wrap: %w", &openai.APIError{HTTPStatusCode: 429}), true},
		{"typed openai request error", &openai.RequestError{HTTPStatusCode: 429, Err: errors.New("x")}, true},
		{"auth", errors.New("401 Unauthorized"), false},
		{"plain", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRateLimited(tt.err); got != tt.want {
				t.Errorf("want %v, got %v", tt.want, got)
			}
		})
	}
}

// =============================================================================
// KeyPoolModel
// =============================================================================

// scriptedModel answers with its name or fails with err.
type scriptedModel struct {
	name  string
	err   error
	calls int
	mu    sync.Mutex
}

func (s *scriptedModel) Name() string { return s.name }

func (s *scriptedModel) Invoke(ctx context.Context, _ []domain.Message, _ []domain.ToolDefinition) (domain.ModelResponse, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return domain.ModelResponse{}, s.err
	}
	return domain.FinalAnswer(s.name), nil
}

func TestNewKeyPoolModel_WhenNoModels_ShouldReturnError(t *testing.T) {
	if _, err := NewKeyPoolModel(nil, time.Minute); err == nil {
		t.Error("expected error")
	}
}

func TestKeyPoolModel_Invoke_ShouldRotateModels(t *testing.T) {
	a, b := &scriptedModel{name: "a"}, &scriptedModel{name: "b"}
	pm, _ := NewKeyPoolModel([]domain.ChatModel{a, b}, time.Minute)

	first, _ := pm.Invoke(context.Background(), nil, nil)
	second, _ := pm.Invoke(context.Background(), nil, nil)
	if first.Text != "a" || second.Text != "b" {
		t.Errorf("want a then b, got %q then %q", first.Text, second.Text)
	}
	if pm.Name() != "a" {
		t.Errorf("name should come from the first model, got %q", pm.Name())
	}
}

func TestKeyPoolModel_Invoke_WhenRateLimited_ShouldBenchAndRetryNextKey(t *testing.T) {
	limited := &scriptedModel{name: "a", err: errors.New("429 Too Many Requests")}
	healthy := &scriptedModel{name: "b"}
	pm, _ := NewKeyPoolModel([]domain.ChatModel{limited, healthy}, time.Minute)

	got, err := pm.Invoke(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "b" {
		t.Errorf("want retry on b, got %q", got.Text)
	}
	if pm.pool.Available() != 1 {
		t.Errorf("rate-limited key should be benched, available %d", pm.pool.Available())
	}
}

func TestKeyPoolModel_Invoke_WhenAllKeysRateLimited_ShouldReturnError(t *testing.T) {
	limited := &scriptedModel{name: "a", err: errors.New("429")}
	pm, _ := NewKeyPoolModel([]domain.ChatModel{limited}, time.Minute)

	_, err := pm.Invoke(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, limited.err) {
		t.Errorf("rate-limit error should be wrapped, got %v", err)
	}
}

func TestKeyPoolModel_Invoke_WhenNon429Error_ShouldNotBench(t *testing.T) {
	broken := &scriptedModel{name: "a", err: errors.New("500 boom")}
	other := &scriptedModel{name: "b"}
	pm, _ := NewKeyPoolModel([]domain.ChatModel{broken, other}, time.Minute)

	if _, err := pm.Invoke(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error")
	}
	if pm.pool.Available() != 2 || other.calls != 0 {
		t.Error("non rate-limit errors must not bench or retry")
	}
}

func TestKeyPoolModel_Invoke_WhenContextCanceled_ShouldReturnContextError(t *testing.T) {
	pm, _ := NewKeyPoolModel([]domain.ChatModel{&scriptedModel{name: "a"}}, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := pm.Invoke(ctx, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

// =============================================================================
// splitKeys
// =============================================================================

func TestSplitKeys_ShouldTrimAndDropBlanks(t *testing.T) {
	got := splitKeys(" k1 , ,k2,, ")
	if len(got) != 2 || got[0] != "k1" || got[1] != "k2" {
		t.Errorf("want [k1 k2], got %v", got)
	}
	if len(splitKeys("  ")) != 0 {
		t.Error("blank input should yield no keys")
	}
}
