package quantization

import (
	"encoding/binary"
	"errors"
	"math"
)

// Quantized is an 8-bit representation of a float32 vector together with the
// range needed to reconstruct it.
type Quantized struct {
	Codes []int8
	Min   float32
	Max   float32
}

// Quantize compresses v to 8-bit codes.
//
// Each element is normalized to [0,1] over the vector's own [min, max] and
// rescaled to the signed range [-128, 127]. A degenerate vector (max == min)
// yields all-zero codes; Dequantize reconstructs the constant vector from the
// stored range.
func Quantize(v []float32) Quantized {
	q := Quantized{Codes: make([]int8, len(v))}
	if len(v) == 0 {
		return q
	}

	q.Min, q.Max = v[0], v[0]
	for _, x := range v[1:] {
		if x < q.Min {
			q.Min = x
		}
		if x > q.Max {
			q.Max = x
		}
	}

	if q.Max == q.Min {
		return q
	}

	scale := 255.0 / float64(q.Max-q.Min)
	for i, x := range v {
		normalized := float64(x-q.Min) * scale
		q.Codes[i] = int8(math.Round(normalized - 128))
	}

	return q
}

// Dequantize reconstructs a float32 vector from its quantized form.
// The reconstruction error is bounded by one quantization step.
func Dequantize(q Quantized) []float32 {
	out := make([]float32, len(q.Codes))
	scale := float64(q.Max-q.Min) / 255.0

	for i, c := range q.Codes {
		out[i] = float32((float64(c)+128)*scale) + q.Min
	}

	return out
}

// Similarity computes the cosine similarity between a float query and a
// quantized document without materializing the dequantized vector.
//
// A length mismatch or a zero-range document yields 0 rather than an error;
// callers comparing heterogeneous corpora treat such documents as unrelated.
func Similarity(query []float32, doc Quantized) float64 {
	return similarity(query, doc, queryNorm(query))
}

// BatchSimilarity computes Similarity for many documents, computing the
// query's norm exactly once and reusing it for every comparison.
func BatchSimilarity(query []float32, docs []Quantized) []float64 {
	out := make([]float64, len(docs))
	qn := queryNorm(query)
	for i, doc := range docs {
		out[i] = similarity(query, doc, qn)
	}
	return out
}

func queryNorm(query []float32) float64 {
	var sum float64
	for _, x := range query {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func similarity(query []float32, doc Quantized, qn float64) float64 {
	if len(query) != len(doc.Codes) || doc.Max == doc.Min || qn == 0 {
		return 0
	}

	// Inline dequantization: d[i] = codes[i]*scale + offset.
	scale := float64(doc.Max-doc.Min) / 255.0
	offset := 128*scale + float64(doc.Min)

	var dot, dn float64
	for i, c := range doc.Codes {
		d := float64(c)*scale + offset
		dot += float64(query[i]) * d
		dn += d * d
	}

	if dn == 0 {
		return 0
	}

	sim := dot / (qn * math.Sqrt(dn))
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// MarshalBinary implements encoding.BinaryMarshaler.
// Format (little-endian): [min:float32][max:float32][n:uint32][codes:n bytes]
func (q Quantized) MarshalBinary() ([]byte, error) {
	b := make([]byte, 12+len(q.Codes))
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(q.Min))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(q.Max))
	binary.LittleEndian.PutUint32(b[8:12], uint32(len(q.Codes)))
	for i, c := range q.Codes {
		b[12+i] = byte(c)
	}
	return b, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (q *Quantized) UnmarshalBinary(data []byte) error {
	if len(data) < 12 {
		return errors.New("quantized vector: short binary data")
	}
	q.Min = math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
	q.Max = math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	n := binary.LittleEndian.Uint32(data[8:12])
	if uint32(len(data)-12) != n {
		return errors.New("quantized vector: code length mismatch")
	}
	q.Codes = make([]int8, n)
	for i := range q.Codes {
		q.Codes[i] = int8(data[12+i])
	}
	return nil
}

// CompressionRatio returns the memory compression ratio (always 4.0 for
// 8-bit quantization of float32 vectors).
func CompressionRatio() float64 {
	return 4.0
}
