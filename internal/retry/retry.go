// Package retry retries model calls that fail transiently.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"

	"shopassist/internal/domain"
)

// =============================================================================
// Config
// =============================================================================

// Config controls retry behaviour for model calls.
type Config struct {
	MaxRetries     int           // Maximum number of retry attempts (0 = no retries)
	InitialBackoff time.Duration // Delay before first retry
	MaxBackoff     time.Duration // Upper bound on backoff duration
	Multiplier     float64       // Backoff multiplier (e.g. 2.0 for exponential)
}

// DefaultConfig returns sensible retry defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
	}
}

// FromSettings converts the millisecond-based config section, filling unset
// backoff fields from DefaultConfig.
func FromSettings(rc domain.RetryConfig) Config {
	cfg := DefaultConfig()
	cfg.MaxRetries = rc.MaxRetries
	if rc.InitialBackoff > 0 {
		cfg.InitialBackoff = time.Duration(rc.InitialBackoff) * time.Millisecond
	}
	if rc.MaxBackoff > 0 {
		cfg.MaxBackoff = time.Duration(rc.MaxBackoff) * time.Millisecond
	}
	if rc.Multiplier > 0 {
		cfg.Multiplier = float64(rc.Multiplier)
	}
	return cfg
}

// Validate checks that all Config fields are within acceptable ranges.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("retry: MaxRetries must be >= 0")
	}
	if c.InitialBackoff <= 0 {
		return errors.New("retry: InitialBackoff must be > 0")
	}
	if c.MaxBackoff <= 0 {
		return errors.New("retry: MaxBackoff must be > 0")
	}
	if c.Multiplier < 1.0 {
		return errors.New("retry: Multiplier must be >= 1.0")
	}
	return nil
}

// =============================================================================
// Error Classification
// =============================================================================

// retryableStatusCodes are HTTP status codes that indicate a transient failure.
var retryableStatusCodes = []int{429, 500, 502, 503, 504, 529}

func retryableStatus(code int) bool {
	for _, c := range retryableStatusCodes {
		if code == c {
			return true
		}
	}
	return false
}

// IsRetryable returns true when err represents a transient failure that may
// succeed on retry (5xx, 429, timeout, connection refused, EOF).
// Context errors (Canceled, DeadlineExceeded) are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	// SDK errors carry the status code; trust it over the message text.
	var oaiErr *openai.APIError
	if errors.As(err, &oaiErr) && oaiErr.HTTPStatusCode != 0 {
		return retryableStatus(oaiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) && antErr.StatusCode != 0 {
		return retryableStatus(antErr.StatusCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	for _, code := range retryableStatusCodes {
		if strings.Contains(msg, fmt.Sprintf("%d", code)) {
			return true
		}
	}
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "EOF")
}

// =============================================================================
// RetryableModel (Decorator)
// =============================================================================

// RetryableModel wraps a ChatModel with retry-on-transient-error logic.
type RetryableModel struct {
	inner     domain.ChatModel
	config    Config
	sleepFunc func(context.Context, time.Duration) error // injectable for testing
}

// NewRetryableModel returns a decorator that retries Invoke on transient
// errors. inner must not be nil.
func NewRetryableModel(inner domain.ChatModel, cfg Config) *RetryableModel {
	if inner == nil {
		panic("retry: inner model must not be nil")
	}
	return &RetryableModel{
		inner:     inner,
		config:    cfg,
		sleepFunc: sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *RetryableModel) Name() string { return p.inner.Name() }

// Invoke calls the inner model and retries on transient errors with
// exponential backoff. Returns the first success, or the last error once
// retries are exhausted.
func (p *RetryableModel) Invoke(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (domain.ModelResponse, error) {
	var lastErr error
	backoff := p.config.InitialBackoff

	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		resp, err := p.inner.Invoke(ctx, messages, tools)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsRetryable(err) {
			return domain.ModelResponse{}, err
		}
		if attempt == p.config.MaxRetries {
			break
		}

		if err := p.sleepFunc(ctx, backoff); err != nil {
			return domain.ModelResponse{}, err
		}

		next := time.Duration(float64(backoff) * p.config.Multiplier)
		if next > p.config.MaxBackoff {
			next = p.config.MaxBackoff
		}
		backoff = next
	}

	return domain.ModelResponse{}, fmt.Errorf("retries exhausted after %d attempts: %w", p.config.MaxRetries+1, lastErr)
}

var _ domain.ChatModel = (*RetryableModel)(nil)
