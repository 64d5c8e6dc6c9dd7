// Package codec frames persisted cache and index entries with compression
// and a corruption-detecting checksum.
//
// Frame format (little-endian):
//
//	[version:1][compression:1][crc32:4][uncompressedSize:4][payload]
//
// The checksum covers the payload only. CRC32 detects accidental corruption;
// it is not a tamper-proofing mechanism.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects the algorithm used for the frame payload.
type Compression uint8

const (
	// None stores the payload uncompressed.
	None Compression = 0
	// LZ4 uses LZ4 block compression (fast, good for hot entries).
	LZ4 Compression = 1
	// Zstd uses zstd compression (better ratio, good for cold entries).
	Zstd Compression = 2
)

const (
	frameVersion    = 1
	frameHeaderSize = 10
)

// ErrCorrupted is returned when a frame fails checksum or structural checks.
var ErrCorrupted = errors.New("codec: corrupted frame")

// zstd coders are pooled; both are safe for reuse but not cheap to build.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Encode frames data with the requested compression.
//
// If compression does not shrink the payload below 90% of its original size,
// the frame falls back to storing it uncompressed.
func Encode(data []byte, c Compression) ([]byte, error) {
	payload := data
	used := None

	switch c {
	case None:
	case LZ4:
		compressed, err := encodeLZ4(data)
		if err != nil {
			return nil, err
		}
		if compressed != nil && float64(len(compressed)) <= float64(len(data))*0.9 {
			payload = compressed
			used = LZ4
		}
	case Zstd:
		enc := getZstdEncoder()
		compressed := enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
		if float64(len(compressed)) <= float64(len(data))*0.9 {
			payload = compressed
			used = Zstd
		}
	default:
		return nil, fmt.Errorf("codec: unknown compression %d", c)
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0] = frameVersion
	frame[1] = byte(used)
	binary.LittleEndian.PutUint32(frame[2:6], crc32.ChecksumIEEE(payload))
	binary.LittleEndian.PutUint32(frame[6:10], uint32(len(data)))
	copy(frame[frameHeaderSize:], payload)
	return frame, nil
}

// Decode verifies and unpacks a frame produced by Encode.
func Decode(frame []byte) ([]byte, error) {
	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("%w: short frame", ErrCorrupted)
	}
	if frame[0] != frameVersion {
		return nil, fmt.Errorf("%w: unknown version %d", ErrCorrupted, frame[0])
	}

	used := Compression(frame[1])
	sum := binary.LittleEndian.Uint32(frame[2:6])
	uncompressedSize := binary.LittleEndian.Uint32(frame[6:10])
	payload := frame[frameHeaderSize:]

	if crc32.ChecksumIEEE(payload) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupted)
	}

	switch used {
	case None:
		if uint32(len(payload)) != uncompressedSize {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupted)
		}
		out := make([]byte, len(payload))
		copy(out, payload)
		return out, nil

	case LZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		if uint32(n) != uncompressedSize {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupted)
		}
		return out, nil

	case Zstd:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, make([]byte, 0, uncompressedSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
		}
		if uint32(len(out)) != uncompressedSize {
			return nil, fmt.Errorf("%w: size mismatch", ErrCorrupted)
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unknown compression %d", ErrCorrupted, used)
	}
}

func encodeLZ4(data []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(data))
	compressed := make([]byte, bound)

	n, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil // incompressible
	}
	return compressed[:n], nil
}
