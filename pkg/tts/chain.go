package tts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Chain tries multiple providers in order until one succeeds.
// Useful for falling back to a secondary provider when the primary
// is rate limited or down.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain creates a provider chain. Providers are tried in the order
// given.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(slog.Default(), providers...)
}

// NewChainWithLogger creates a provider chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "tts.chain"),
	}, nil
}

// Synthesize tries each provider until one succeeds.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var errs []error

	for i, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := p.Synthesize(ctx, text)
		if err == nil {
			if i > 0 {
				c.logger.Info("fell back to secondary provider", "index", i)
			}
			return result, nil
		}

		c.logger.Warn("provider failed, trying next",
			"index", i,
			"error", err,
		)
		errs = append(errs, err)
	}

	return nil, &ChainError{Errors: errs}
}

// Health returns nil if at least one provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var errs []error

	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			errs = append(errs, err)
			continue
		}
		return nil
	}

	return &ChainError{Errors: errs}
}

// Close closes all providers, returning the first error encountered.
func (c *Chain) Close() error {
	var first error
	for _, p := range c.providers {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ChainError aggregates the errors from every provider in a chain.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "tts: chain failed"
	}
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = fmt.Sprintf("provider %d: %v", i, err)
	}
	return "tts: all providers failed: " + strings.Join(parts, "; ")
}

// Unwrap returns the underlying errors for errors.Is/As matching.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)
