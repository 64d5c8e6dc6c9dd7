package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/evidgo/evidgo/codec"
	"github.com/evidgo/evidgo/model"
	"github.com/evidgo/evidgo/quantization"
)

const recordVersion = 1

var errTruncatedRecord = errors.New("truncated record")

// encodeRecord serializes a snippet together with its full-precision
// vector. The float vector is stored bit-exact; the in-memory quantized
// form is rebuilt deterministically on load.
func encodeRecord(s model.Snippet, vec []float32) []byte {
	size := 1 + 8 + 8 + 4 + 4 +
		4 + len(s.Origin) +
		4 + len(s.Text) +
		4 + 4*len(vec)
	buf := make([]byte, 0, size)

	buf = append(buf, recordVersion)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.ID))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(s.InsertedAt.UnixNano()))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.Lines.Start))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(s.Lines.End))
	buf = appendString(buf, s.Origin)
	buf = appendString(buf, s.Text)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(vec)))
	for _, v := range vec {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

// decodeRecord parses a codec frame produced by encodeRecord.
func decodeRecord(frame []byte) (*record, error) {
	data, err := codec.Decode(frame)
	if err != nil {
		return nil, err
	}
	if len(data) < 1 {
		return nil, errTruncatedRecord
	}
	if data[0] != recordVersion {
		return nil, fmt.Errorf("unsupported record version %d", data[0])
	}
	data = data[1:]

	if len(data) < 24 {
		return nil, errTruncatedRecord
	}
	id := binary.LittleEndian.Uint64(data)
	insertedAt := int64(binary.LittleEndian.Uint64(data[8:]))
	lineStart := binary.LittleEndian.Uint32(data[16:])
	lineEnd := binary.LittleEndian.Uint32(data[20:])
	data = data[24:]

	origin, data, err := readString(data)
	if err != nil {
		return nil, err
	}
	text, data, err := readString(data)
	if err != nil {
		return nil, err
	}

	if len(data) < 4 {
		return nil, errTruncatedRecord
	}
	n := int(binary.LittleEndian.Uint32(data))
	data = data[4:]
	if len(data) < 4*n {
		return nil, errTruncatedRecord
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}

	return &record{
		snippet: model.Snippet{
			ID:         model.SnippetID(id),
			Origin:     origin,
			Text:       text,
			Lines:      model.LineRange{Start: int(lineStart), End: int(lineEnd)},
			InsertedAt: time.Unix(0, insertedAt),
		},
		vec: quantization.Quantize(vec),
	}, nil
}

// encodeOriginMeta serializes an origin's content hash together with the
// IDs of the records that make up its current snippet set. The member list
// is what lets load distinguish live records from leftovers of a failed
// delete.
func encodeOriginMeta(origin, hash string, ids []model.SnippetID) []byte {
	buf := make([]byte, 0, 1+4+len(origin)+4+len(hash)+4+4*len(ids))
	buf = append(buf, recordVersion)
	buf = appendString(buf, origin)
	buf = appendString(buf, hash)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ids)))
	for _, id := range ids {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
	}
	return buf
}

func decodeOriginMeta(frame []byte) (origin, hash string, ids []model.SnippetID, err error) {
	data, err := codec.Decode(frame)
	if err != nil {
		return "", "", nil, err
	}
	if len(data) < 1 || data[0] != recordVersion {
		return "", "", nil, errTruncatedRecord
	}
	data = data[1:]

	origin, data, err = readString(data)
	if err != nil {
		return "", "", nil, err
	}
	hash, data, err = readString(data)
	if err != nil {
		return "", "", nil, err
	}

	if len(data) < 4 {
		return "", "", nil, errTruncatedRecord
	}
	n := int(binary.LittleEndian.Uint32(data))
	data = data[4:]
	if len(data) < 4*n {
		return "", "", nil, errTruncatedRecord
	}
	ids = make([]model.SnippetID, n)
	for i := range ids {
		ids[i] = model.SnippetID(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return origin, hash, ids, nil
}

func appendString(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func readString(data []byte) (string, []byte, error) {
	if len(data) < 4 {
		return "", nil, errTruncatedRecord
	}
	n := int(binary.LittleEndian.Uint32(data))
	data = data[4:]
	if len(data) < n {
		return "", nil, errTruncatedRecord
	}
	return string(data[:n]), data[n:], nil
}
