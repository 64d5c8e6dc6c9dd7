// Package index provides a durable nearest-neighbor index over an evolving
// document corpus.
//
// Snippets are grouped by origin file. Re-indexing an origin whose content
// hash is unchanged is a no-op; otherwise the origin's snippet set is
// replaced atomically with respect to readers. Vectors are persisted
// losslessly and held in memory in quantized form, so queries run on the
// compressed fast path without reconstructing float vectors.
package index
