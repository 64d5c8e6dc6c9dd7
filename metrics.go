package evidgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordEmbed is called after each single embedding request.
	// hit reports whether the vector was served from cache.
	RecordEmbed(hit bool, duration time.Duration, err error)

	// RecordProviderCall is called after each call to the embedding provider.
	// count is the number of texts in the call.
	RecordProviderCall(count int, duration time.Duration, err error)

	// RecordQuery is called after each index query.
	RecordQuery(limit int, duration time.Duration, err error)

	// RecordUpsert is called after each index upsert.
	// skipped reports whether the origin was unchanged.
	RecordUpsert(count int, skipped bool, duration time.Duration, err error)

	// RecordStrength is called after each strength computation.
	RecordStrength(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordEmbed(bool, time.Duration, error)       {}
func (NoopMetricsCollector) RecordProviderCall(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordQuery(int, time.Duration, error)        {}
func (NoopMetricsCollector) RecordUpsert(int, bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordStrength(time.Duration, error)          {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	EmbedCount         atomic.Int64
	EmbedHits          atomic.Int64
	EmbedErrors        atomic.Int64
	EmbedTotalNanos    atomic.Int64
	ProviderCalls      atomic.Int64
	ProviderItems      atomic.Int64
	ProviderErrors     atomic.Int64
	ProviderTotalNanos atomic.Int64
	QueryCount         atomic.Int64
	QueryErrors        atomic.Int64
	QueryTotalNanos    atomic.Int64
	UpsertCount        atomic.Int64
	UpsertSkipped      atomic.Int64
	UpsertErrors       atomic.Int64
	StrengthCount      atomic.Int64
	StrengthErrors     atomic.Int64
}

// RecordEmbed implements MetricsCollector.
func (b *BasicMetricsCollector) RecordEmbed(hit bool, duration time.Duration, err error) {
	b.EmbedCount.Add(1)
	b.EmbedTotalNanos.Add(duration.Nanoseconds())
	if hit {
		b.EmbedHits.Add(1)
	}
	if err != nil {
		b.EmbedErrors.Add(1)
	}
}

// RecordProviderCall implements MetricsCollector.
func (b *BasicMetricsCollector) RecordProviderCall(count int, duration time.Duration, err error) {
	b.ProviderCalls.Add(1)
	b.ProviderItems.Add(int64(count))
	b.ProviderTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ProviderErrors.Add(1)
	}
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(limit int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordUpsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpsert(count int, skipped bool, duration time.Duration, err error) {
	b.UpsertCount.Add(1)
	if skipped {
		b.UpsertSkipped.Add(1)
	}
	if err != nil {
		b.UpsertErrors.Add(1)
	}
}

// RecordStrength implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStrength(duration time.Duration, err error) {
	b.StrengthCount.Add(1)
	if err != nil {
		b.StrengthErrors.Add(1)
	}
}

// HitRate returns the embed cache hit rate in [0,1], or 0 when no requests
// have been recorded.
func (b *BasicMetricsCollector) HitRate() float64 {
	total := b.EmbedCount.Load()
	if total == 0 {
		return 0
	}
	return float64(b.EmbedHits.Load()) / float64(total)
}
