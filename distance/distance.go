package distance

import (
	"fmt"
	"math"
)

// ErrLengthMismatch indicates two vectors of different dimensionality.
type ErrLengthMismatch struct {
	A int
	B int
}

func (e *ErrLengthMismatch) Error() string {
	return fmt.Sprintf("vector length mismatch: %d vs %d", e.A, e.B)
}

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Norm calculates the L2 norm of a vector.
func Norm(a []float32) float64 {
	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Cosine calculates the cosine similarity of two vectors in [-1, 1].
//
// A length mismatch is an error. A zero vector on either side yields 0
// rather than dividing by zero.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &ErrLengthMismatch{A: len(a), B: len(b)}
	}

	var dot, na, nb float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}

	if na == 0 || nb == 0 {
		return 0, nil
	}

	return clamp(dot / (math.Sqrt(na) * math.Sqrt(nb))), nil
}

// clamp bounds a cosine result to [-1, 1] against floating-point drift.
func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
