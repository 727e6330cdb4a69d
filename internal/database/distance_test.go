package database

import (
	"math"
	"testing"
)

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"scaled", []float32{1, 2, 3}, []float32{2, 4, 6}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
		{"both zero", []float32{0, 0}, []float32{0, 0}, 1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 2},
		{"empty", nil, nil, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := CosineDistance(tc.a, tc.b)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("CosineDistance() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCosineDistance_Bounds(t *testing.T) {
	vectors := [][]float32{
		{0.1, 0.9, -0.3},
		{-5, 2, 8},
		{1e-7, 1e-7, 1e-7},
		{1e6, -1e6, 3},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			d := CosineDistance(a, b)
			if d < 0 || d > 2 {
				t.Errorf("distance %v out of [0, 2] for %v, %v", d, a, b)
			}
			if d != CosineDistance(b, a) {
				t.Errorf("distance is not symmetric for %v, %v", a, b)
			}
		}
	}
}

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 0},
		{"3-4-5", []float32{0, 0}, []float32{3, 4}, 5},
		{"length mismatch", []float32{1}, []float32{1, 2}, math.Inf(1)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := EuclideanDistance(tc.a, tc.b); got != tc.want {
				t.Errorf("EuclideanDistance() = %v, want %v", got, tc.want)
			}
		})
	}
}
