package codec

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("evidence "), 512)
	small := []byte{0x01, 0xFF, 0x42}

	for _, c := range []Compression{None, LZ4, Zstd} {
		for _, data := range [][]byte{compressible, small, nil} {
			frame, err := Encode(data, c)
			require.NoError(t, err)

			got, err := Decode(frame)
			require.NoError(t, err)
			assert.Equal(t, len(data), len(got))
			assert.True(t, bytes.Equal(data, got))
		}
	}
}

func TestEncode_CompressesRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte("quantized vector payload "), 1024)

	for _, c := range []Compression{LZ4, Zstd} {
		frame, err := Encode(data, c)
		require.NoError(t, err)
		assert.Less(t, len(frame), len(data), "compression %d should shrink payload", c)
	}
}

func TestEncode_IncompressibleFallsBackToNone(t *testing.T) {
	// High-entropy payload that no block compressor can shrink.
	data := make([]byte, 256)
	seed := uint32(2463534242)
	for i := range data {
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		data[i] = byte(seed)
	}

	frame, err := Encode(data, LZ4)
	require.NoError(t, err)
	assert.Equal(t, byte(None), frame[1])

	got, err := Decode(frame)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestDecode_DetectsCorruption(t *testing.T) {
	frame, err := Encode([]byte("a claim with quotable evidence"), Zstd)
	require.NoError(t, err)

	frame[len(frame)-1] ^= 0xFF
	_, err = Decode(frame)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestDecode_RejectsGarbage(t *testing.T) {
	_, err := Decode([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorrupted)

	_, err = Decode([]byte{99, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	assert.ErrorIs(t, err, ErrCorrupted)
}
