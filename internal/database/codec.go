package database

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Embedding blob layout:
//
//	magic "FEMB" | version byte | uint16 tag length | tag | uint32 dim | dim x float32
//
// All integers and floats are little-endian.
const (
	embeddingMagic   = "FEMB"
	embeddingVersion = 1
	maxModelTagLen   = 255
	maxEmbeddingDim  = 1 << 16
)

var (
	// ErrEmbeddingDeserialize is returned for stored blobs that cannot be decoded.
	ErrEmbeddingDeserialize = errors.New("embedding deserialize failure")
	// ErrModelMismatch is returned when a blob was produced by a different model configuration.
	ErrModelMismatch = fmt.Errorf("%w: model mismatch", ErrEmbeddingDeserialize)
	// ErrNonFiniteEmbedding is returned for vectors holding NaN or infinite components.
	ErrNonFiniteEmbedding = errors.New("embedding has non-finite components")
)

// CheckFinite rejects vectors with NaN or infinite components. Their distance
// to anything is NaN, so they would pass every threshold check.
func CheckFinite(vec []float32) error {
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d is %v", ErrNonFiniteEmbedding, i, v)
		}
	}
	return nil
}

// EncodeEmbedding serializes a vector together with the model tag it was produced by.
func EncodeEmbedding(vec []float32, modelTag string) ([]byte, error) {
	if len(vec) == 0 {
		return nil, errors.New("encode embedding: empty vector")
	}
	if len(vec) > maxEmbeddingDim {
		return nil, fmt.Errorf("encode embedding: dimension %d exceeds %d", len(vec), maxEmbeddingDim)
	}
	if modelTag == "" || len(modelTag) > maxModelTagLen {
		return nil, fmt.Errorf("encode embedding: invalid model tag %q", modelTag)
	}
	if err := CheckFinite(vec); err != nil {
		return nil, fmt.Errorf("encode embedding: %w", err)
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(embeddingMagic)+1+2+len(modelTag)+4+4*len(vec)))
	buf.WriteString(embeddingMagic)
	buf.WriteByte(embeddingVersion)
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(modelTag)))
	buf.WriteString(modelTag)
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(vec)))
	for _, v := range vec {
		_ = binary.Write(buf, binary.LittleEndian, math.Float32bits(v))
	}
	return buf.Bytes(), nil
}

// DecodeEmbedding parses a blob written by EncodeEmbedding and returns the vector and its model tag.
func DecodeEmbedding(blob []byte) ([]float32, string, error) {
	r := bytes.NewReader(blob)

	magic := make([]byte, len(embeddingMagic))
	if _, err := r.Read(magic); err != nil || string(magic) != embeddingMagic {
		return nil, "", fmt.Errorf("%w: bad magic", ErrEmbeddingDeserialize)
	}
	version, err := r.ReadByte()
	if err != nil || version != embeddingVersion {
		return nil, "", fmt.Errorf("%w: unsupported version", ErrEmbeddingDeserialize)
	}

	var tagLen uint16
	if err := binary.Read(r, binary.LittleEndian, &tagLen); err != nil {
		return nil, "", fmt.Errorf("%w: truncated header", ErrEmbeddingDeserialize)
	}
	tag := make([]byte, tagLen)
	if n, _ := r.Read(tag); n != int(tagLen) {
		return nil, "", fmt.Errorf("%w: truncated model tag", ErrEmbeddingDeserialize)
	}

	var dim uint32
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return nil, "", fmt.Errorf("%w: truncated header", ErrEmbeddingDeserialize)
	}
	if dim == 0 || dim > maxEmbeddingDim {
		return nil, "", fmt.Errorf("%w: invalid dimension %d", ErrEmbeddingDeserialize, dim)
	}
	if r.Len() != int(dim)*4 {
		return nil, "", fmt.Errorf("%w: expected %d bytes of vector data, got %d", ErrEmbeddingDeserialize, dim*4, r.Len())
	}

	vec := make([]float32, dim)
	var bits uint32
	for i := range vec {
		_ = binary.Read(r, binary.LittleEndian, &bits)
		vec[i] = math.Float32frombits(bits)
	}
	if err := CheckFinite(vec); err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrEmbeddingDeserialize, err)
	}
	return vec, string(tag), nil
}

// DecodeEmbeddingFor decodes a blob and rejects it when it was produced by another model tag.
func DecodeEmbeddingFor(blob []byte, modelTag string) ([]float32, error) {
	vec, tag, err := DecodeEmbedding(blob)
	if err != nil {
		return nil, err
	}
	if tag != modelTag {
		return nil, fmt.Errorf("%w: stored %q, expected %q", ErrModelMismatch, tag, modelTag)
	}
	return vec, nil
}
