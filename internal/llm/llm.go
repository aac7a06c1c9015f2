// Package llm adapts the Anthropic client to the stage Generator, adding
// rate limiting and retries.
package llm

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/labsync/internal/resilience"
	"github.com/sells-group/labsync/pkg/anthropic"
)

// Config selects the model and how hard to call it.
type Config struct {
	Model     string
	MaxTokens int64
	Retry     resilience.RetryConfig
}

// NewLimiter allows requestsPerMinute calls, one at a time. A value <= 0
// disables limiting.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
}

// Generator sends a single-turn prompt and returns the reply text. Generators
// for different phases may share one limiter.
type Generator struct {
	client  anthropic.Client
	limiter *rate.Limiter
	cfg     Config
	phase   string
}

// NewGenerator creates a Generator that logs cost under phase.
func NewGenerator(client anthropic.Client, limiter *rate.Limiter, cfg Config, phase string) *Generator {
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger("anthropic", phase)
	}
	return &Generator{client: client, limiter: limiter, cfg: cfg, phase: phase}
}

// Generate implements stage.Generator.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	req := anthropic.MessageRequest{
		Model:     g.cfg.Model,
		MaxTokens: g.cfg.MaxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	}

	resp, err := resilience.DoVal(ctx, g.cfg.Retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "llm: rate limit wait")
		}
		resp, err := g.client.CreateMessage(ctx, req)
		if err != nil {
			return nil, classify(err)
		}
		return resp, nil
	})
	if err != nil {
		return "", eris.Wrapf(err, "llm: %s", g.phase)
	}

	resp.Usage.LogCost(g.cfg.Model, g.phase)
	return resp.Text(), nil
}

// classify marks retryable HTTP statuses as transient. Errors without a
// status are left to resilience.IsTransient.
func classify(err error) error {
	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
		return resilience.NewTransientError(err, apiErr.StatusCode)
	}
	return err
}
