package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestText_Deterministic(t *testing.T) {
	a := Text("The mitochondria is the powerhouse of the cell.")
	b := Text("The mitochondria is the powerhouse of the cell.")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestText_NormalizesWhitespaceAndCase(t *testing.T) {
	a := Text("Batch  effects\tdistort expression ")
	b := Text("batch effects distort expression")
	assert.Equal(t, a, b)
}

func TestText_DistinctTexts(t *testing.T) {
	a := Text("X improves Y")
	b := Text("X does not improve Y")
	assert.NotEqual(t, a, b)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "trim", in: "  hello  ", want: "hello"},
		{name: "collapse", in: "a \n\t b", want: "a b"},
		{name: "lower", in: "Johnson 2007", want: "johnson 2007"},
		{name: "empty", in: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}
