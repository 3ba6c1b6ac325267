package health

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"shopassist/internal/domain"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	// DefaultProbeTimeout bounds each probe.
	DefaultProbeTimeout = 10 * time.Second
)

// probeMessage is the one-word conversation sent to the model.
const probeMessage = "Hello"

// Report is the health payload.
type Report struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Healthy reports whether every service passed.
func (r Report) Healthy() bool { return r.Status == StatusHealthy }

// Option configures a Checker.
type Option func(*Checker)

// WithProbeTimeout bounds each probe. Non-positive values are ignored.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the checker logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l
		}
	}
}

// Checker probes the catalog and the model.
type Checker struct {
	store   domain.CatalogStore
	model   domain.ChatModel
	timeout time.Duration
	logger  *slog.Logger
}

// NewChecker panics if store or model is nil.
func NewChecker(store domain.CatalogStore, model domain.ChatModel, opts ...Option) *Checker {
	if store == nil {
		panic("health: store must not be nil")
	}
	if model == nil {
		panic("health: model must not be nil")
	}
	c := &Checker{store: store, model: model, timeout: DefaultProbeTimeout, logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Check runs both probes concurrently. The report is healthy only if both
// pass; failures are logged, never returned.
func (c *Checker) Check(ctx context.Context) Report {
	var catalogStatus, modelStatus string
	var g errgroup.Group
	g.Go(func() error {
		catalogStatus = c.probe(ctx, "catalog", c.store.Ping)
		return nil
	})
	g.Go(func() error {
		modelStatus = c.probe(ctx, "model", func(ctx context.Context) error {
			_, err := c.model.Invoke(ctx, []domain.Message{domain.UserMessage(probeMessage)}, nil)
			return err
		})
		return nil
	})
	_ = g.Wait()

	status := StatusHealthy
	if catalogStatus != StatusHealthy || modelStatus != StatusHealthy {
		status = StatusUnhealthy
	}
	return Report{
		Status:   status,
		Services: map[string]string{"catalog": catalogStatus, "model": modelStatus},
	}
}

func (c *Checker) probe(ctx context.Context, service string, fn func(context.Context) error) string {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		c.logger.Error("health check failed", "service", service, "error", err)
		return StatusUnhealthy
	}
	return StatusHealthy
}
