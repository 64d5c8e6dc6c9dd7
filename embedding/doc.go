// Package embedding turns text into comparable numeric vectors while
// minimizing calls to the external embedding provider.
//
// The Cache is two-tiered: a bounded in-memory LRU in front of a durable
// key-value store. Provider access goes through an optional Throttled
// wrapper that enforces a rate limit, a per-call timeout and exponential
// backoff after rate-limit responses.
package embedding
