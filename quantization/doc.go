// Package quantization provides lossy 8-bit compression of embedding vectors
// with bounded reconstruction error.
//
// Each float32 vector is mapped to int8 codes plus a {min, max} range,
// cutting storage to a quarter. Similarity against quantized vectors is
// computed with an inline-dequantizing fast path that never materializes the
// reconstructed float vector.
package quantization
