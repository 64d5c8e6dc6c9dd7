package embedding

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 30 * time.Second
	defaultMaxRetries  = 3
)

// Throttled wraps a Provider with a rate limiter, a per-call timeout and
// exponential backoff after rate-limit responses.
//
// Backoff state is per wrapped provider, so two Throttled instances pointing
// at different upstream sources back off independently. The delay doubles on
// every rate-limit response up to a ceiling and resets on the next success.
type Throttled struct {
	inner   Provider
	limiter *rate.Limiter
	timeout time.Duration

	baseBackoff time.Duration
	maxBackoff  time.Duration
	maxRetries  int

	mu    sync.Mutex
	delay time.Duration
}

// ThrottleOption configures a Throttled provider.
type ThrottleOption func(*Throttled)

// WithTimeout sets the per-call timeout. On expiry the call fails with a
// retryable timeout error.
func WithTimeout(d time.Duration) ThrottleOption {
	return func(t *Throttled) { t.timeout = d }
}

// WithBackoff sets the initial and maximum backoff delays.
func WithBackoff(base, max time.Duration) ThrottleOption {
	return func(t *Throttled) {
		t.baseBackoff = base
		t.maxBackoff = max
	}
}

// WithMaxRetries sets how often a retryable failure is retried internally
// before being returned to the caller.
func WithMaxRetries(n int) ThrottleOption {
	return func(t *Throttled) { t.maxRetries = n }
}

// NewThrottled wraps inner, allowing requestsPerSecond sustained calls with
// the given burst.
func NewThrottled(inner Provider, requestsPerSecond float64, burst int, opts ...ThrottleOption) *Throttled {
	if burst <= 0 {
		burst = 1
	}
	t := &Throttled{
		inner:       inner,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		timeout:     defaultTimeout,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
		maxRetries:  defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Embed implements Provider.
func (t *Throttled) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := t.do(ctx, func(callCtx context.Context) error {
		var err error
		out, err = t.inner.Embed(callCtx, text)
		return err
	})
	return out, err
}

// EmbedMany implements Provider.
func (t *Throttled) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := t.do(ctx, func(callCtx context.Context) error {
		var err error
		out, err = t.inner.EmbedMany(callCtx, texts)
		return err
	})
	return out, err
}

func (t *Throttled) do(ctx context.Context, call func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if err := t.waitBackoff(ctx); err != nil {
			return err
		}
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}

		callCtx, cancel := context.WithTimeout(ctx, t.timeout)
		err := call(callCtx)
		cancel()

		if err == nil {
			t.recordSuccess()
			return nil
		}

		err = t.classify(err)
		lastErr = err

		var pe *ProviderError
		if !errors.As(err, &pe) || !pe.Retryable() {
			return err
		}
		if pe.RateLimited {
			t.recordRateLimit(pe.RetryAfter)
		}
	}

	return lastErr
}

// classify maps context deadline expiry to a retryable timeout error and
// leaves already-typed provider errors untouched.
func (t *Throttled) classify(err error) error {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError("embed", err)
	}
	return NewProviderError("embed", err)
}

// waitBackoff sleeps out any pending backoff delay.
func (t *Throttled) waitBackoff(ctx context.Context) error {
	t.mu.Lock()
	delay := t.delay
	t.mu.Unlock()

	if delay == 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *Throttled) recordSuccess() {
	t.mu.Lock()
	t.delay = 0
	t.mu.Unlock()
}

func (t *Throttled) recordRateLimit(retryAfter time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case retryAfter > 0:
		t.delay = retryAfter
	case t.delay == 0:
		t.delay = t.baseBackoff
	default:
		t.delay *= 2
	}
	if t.delay > t.maxBackoff {
		t.delay = t.maxBackoff
	}
}

// Delay returns the backoff delay currently in effect. Exposed for tests
// and operational introspection.
func (t *Throttled) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}
