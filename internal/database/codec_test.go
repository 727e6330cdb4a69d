package database

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestEncodeDecodeEmbedding(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.0, 0}
	blob, err := EncodeEmbedding(vec, "VGG-Face+opencv")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, tag, err := DecodeEmbedding(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tag != "VGG-Face+opencv" {
		t.Errorf("expected tag 'VGG-Face+opencv', got '%s'", tag)
	}
	if len(got) != len(vec) {
		t.Fatalf("expected %d values, got %d", len(vec), len(got))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("value %d: expected %v, got %v", i, vec[i], got[i])
		}
	}
}

func TestEncodeEmbedding_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vec  []float32
		tag  string
	}{
		{"empty vector", nil, "VGG-Face+opencv"},
		{"empty tag", []float32{1}, ""},
		{"oversized tag", []float32{1}, string(make([]byte, 300))},
		{"NaN component", []float32{1, float32(math.NaN()), 0}, "VGG-Face+opencv"},
		{"infinite component", []float32{float32(math.Inf(1)), 0}, "VGG-Face+opencv"},
		{"negative infinite component", []float32{0, float32(math.Inf(-1))}, "VGG-Face+opencv"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := EncodeEmbedding(tc.vec, tc.tag); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestEncodeEmbedding_NonFinite(t *testing.T) {
	_, err := EncodeEmbedding([]float32{0.5, float32(math.NaN())}, "m+d")
	if !errors.Is(err, ErrNonFiniteEmbedding) {
		t.Errorf("expected ErrNonFiniteEmbedding, got %v", err)
	}
}

func TestDecodeEmbedding_Corrupt(t *testing.T) {
	valid, _ := EncodeEmbedding([]float32{1, 2, 3}, "m+d")

	zeroDim := append([]byte{}, valid[:len("FEMB")+1+2+3]...)
	zeroDim = append(zeroDim, 0, 0, 0, 0)

	tests := []struct {
		name string
		blob []byte
	}{
		{"nil", nil},
		{"bad magic", append([]byte("XXXX"), valid[4:]...)},
		{"unknown version", append(append([]byte("FEMB"), 9), valid[5:]...)},
		{"truncated header", valid[:6]},
		{"truncated vector", valid[:len(valid)-2]},
		{"trailing bytes", append(append([]byte{}, valid...), 1, 2, 3, 4)},
		{"zero dimension", zeroDim},
		{"raw floats without header", []byte{0, 0, 128, 63, 0, 0, 0, 64}},
		{"NaN component", nanTail(valid)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeEmbedding(tc.blob)
			if !errors.Is(err, ErrEmbeddingDeserialize) {
				t.Errorf("expected ErrEmbeddingDeserialize, got %v", err)
			}
		})
	}
}

func TestDecodeEmbeddingFor_ModelMismatch(t *testing.T) {
	blob, _ := EncodeEmbedding([]float32{1, 2}, "ArcFace+retinaface")

	_, err := DecodeEmbeddingFor(blob, "VGG-Face+opencv")
	if !errors.Is(err, ErrModelMismatch) {
		t.Errorf("expected ErrModelMismatch, got %v", err)
	}
	if !errors.Is(err, ErrEmbeddingDeserialize) {
		t.Error("expected model mismatch to also match ErrEmbeddingDeserialize")
	}

	vec, err := DecodeEmbeddingFor(blob, "ArcFace+retinaface")
	if err != nil || len(vec) != 2 {
		t.Errorf("expected matching tag to decode, got %v (%v)", vec, err)
	}
}

// nanTail replaces the last vector component of a valid blob with a NaN.
func nanTail(blob []byte) []byte {
	out := append([]byte{}, blob...)
	binary.LittleEndian.PutUint32(out[len(out)-4:], math.Float32bits(float32(math.NaN())))
	return out
}
