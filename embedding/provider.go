package embedding

import (
	"context"
	"fmt"
	"time"
)

// Provider produces embedding vectors for text. It is an injected
// capability: asynchronous, fallible and rate-limited. All vectors from one
// provider share a fixed dimensionality.
type Provider interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedMany returns one vector per input text, in input order.
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderError wraps a failure of the embedding provider.
//
// RateLimited and Timeout mark the retryable subtypes; callers may retry
// after backing off when Retryable reports true.
type ProviderError struct {
	Op          string
	RateLimited bool
	Timeout     bool
	RetryAfter  time.Duration
	cause       error
}

func (e *ProviderError) Error() string {
	switch {
	case e.RateLimited:
		return fmt.Sprintf("provider %s: rate limited: %v", e.Op, e.cause)
	case e.Timeout:
		return fmt.Sprintf("provider %s: timeout: %v", e.Op, e.cause)
	default:
		return fmt.Sprintf("provider %s: %v", e.Op, e.cause)
	}
}

func (e *ProviderError) Unwrap() error { return e.cause }

// Retryable reports whether the failure is transient.
func (e *ProviderError) Retryable() bool { return e.RateLimited || e.Timeout }

// NewProviderError wraps cause as a non-retryable provider failure.
func NewProviderError(op string, cause error) *ProviderError {
	return &ProviderError{Op: op, cause: cause}
}

// NewRateLimitError wraps cause as a rate-limit provider failure.
// retryAfter may be zero when the provider gave no hint.
func NewRateLimitError(op string, retryAfter time.Duration, cause error) *ProviderError {
	return &ProviderError{Op: op, RateLimited: true, RetryAfter: retryAfter, cause: cause}
}

// NewTimeoutError wraps cause as a timeout provider failure.
func NewTimeoutError(op string, cause error) *ProviderError {
	return &ProviderError{Op: op, Timeout: true, cause: cause}
}
