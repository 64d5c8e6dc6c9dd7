package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evidgo/evidgo/testutil"
)

func TestThrottled_RetriesRateLimit(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(4)
	provider.FailTimes(1, NewRateLimitError("embed", 0, errors.New("429")))

	throttled := NewThrottled(provider, 1000, 10,
		WithBackoff(time.Millisecond, 8*time.Millisecond))

	vec, err := throttled.Embed(ctx, "text")
	require.NoError(t, err)
	assert.Len(t, vec, 4)
	assert.Equal(t, 2, provider.Calls())

	// Success resets the backoff.
	assert.Equal(t, time.Duration(0), throttled.Delay())
}

func TestThrottled_BackoffDoublesUpToCeiling(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(4)
	provider.FailWith(NewRateLimitError("embed", 0, errors.New("429")))

	throttled := NewThrottled(provider, 1000, 10,
		WithBackoff(time.Millisecond, 4*time.Millisecond),
		WithMaxRetries(0))

	_, err := throttled.Embed(ctx, "a")
	require.Error(t, err)
	assert.Equal(t, time.Millisecond, throttled.Delay())

	_, err = throttled.Embed(ctx, "b")
	require.Error(t, err)
	assert.Equal(t, 2*time.Millisecond, throttled.Delay())

	_, err = throttled.Embed(ctx, "c")
	require.Error(t, err)
	assert.Equal(t, 4*time.Millisecond, throttled.Delay())

	// Bounded at the ceiling.
	_, err = throttled.Embed(ctx, "d")
	require.Error(t, err)
	assert.Equal(t, 4*time.Millisecond, throttled.Delay())
}

func TestThrottled_NonRetryableFailsImmediately(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(4)
	provider.FailWith(NewProviderError("embed", errors.New("bad request")))

	throttled := NewThrottled(provider, 1000, 10)

	_, err := throttled.Embed(ctx, "text")
	require.Error(t, err)
	assert.Equal(t, 1, provider.Calls())

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.False(t, pe.Retryable())
}

func TestThrottled_TimeoutIsRetryable(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(4)
	provider.FailTimes(1, context.DeadlineExceeded)

	throttled := NewThrottled(provider, 1000, 10)

	_, err := throttled.EmbedMany(ctx, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, 2, provider.Calls())
}

func TestThrottled_HonorsRetryAfterHint(t *testing.T) {
	ctx := context.Background()
	provider := testutil.NewProvider(4)
	provider.FailWith(NewRateLimitError("embed", 3*time.Millisecond, errors.New("429")))

	throttled := NewThrottled(provider, 1000, 10, WithMaxRetries(0))

	_, err := throttled.Embed(ctx, "text")
	require.Error(t, err)
	assert.Equal(t, 3*time.Millisecond, throttled.Delay())
}

func TestThrottled_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	provider := testutil.NewProvider(4)
	throttled := NewThrottled(provider, 1000, 10)

	_, err := throttled.Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, provider.Calls())
}
