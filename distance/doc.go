// Package distance provides the vector similarity kernels used by the
// embedding cache, the vector index and the similarity scorer.
//
// All accumulation is done in float64 to keep cosine results stable for
// high-dimensional embedding vectors.
package distance
