// Package evidgo verifies that written claims are backed by quotable
// evidence.
//
// The Engine composes four parts: a two-tier embedding cache that makes
// repeated embedding of the same text free and deterministic, a durable
// vector index over source-document snippets with quantized similarity
// search, a scorer that grades each claim by independent corroboration
// across sources, and a citation validator that flags author-year mentions
// with no quote evidence behind them.
//
// Vectors are embedded through a pluggable Provider (an OpenAI-backed one
// ships in embedding/openai) and persisted through a pluggable key-value
// store (local disk, SQLite, S3, MinIO and DynamoDB backends ship in
// kvstore).
package evidgo
