package facematch

import (
	"math"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// vecAtDistance returns a unit vector whose cosine distance to (1, 0) is d.
func vecAtDistance(d float64) []float32 {
	cos := 1 - d
	return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))}
}

func TestMatcher_Identify_Threshold(t *testing.T) {
	m := NewMatcher(0.7, 0.40)
	faces := []database.EnrolledFace{{IdentityID: 1, Name: "Alice", Code: "R001", Embedding: []float32{1, 0}}}

	tests := []struct {
		name     string
		live     []float32
		accepted bool
	}{
		{"identical", []float32{1, 0}, true},
		{"just under threshold", vecAtDistance(0.39), true},
		{"well above threshold", vecAtDistance(0.55), false},
		{"zero vector", []float32{0, 0}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := m.Identify(tc.live, faces)
			if got.Accepted != tc.accepted {
				t.Errorf("expected accepted=%v at distance %.4f", tc.accepted, got.Distance)
			}
			if got.Face == nil || got.Face.Code != "R001" {
				t.Errorf("expected nearest face R001, got %+v", got.Face)
			}
		})
	}
}

func TestMatcher_Identify_ExactBoundaryIsUnknown(t *testing.T) {
	// The threshold is set to the computed distance so the comparison is exactly at the boundary.
	face := database.EnrolledFace{IdentityID: 1, Code: "R001", Embedding: []float32{1, 0}}
	live := vecAtDistance(0.40)
	d := database.CosineDistance(live, face.Embedding)

	m := NewMatcher(0.7, d)
	if got := m.Identify(live, []database.EnrolledFace{face}); got.Accepted {
		t.Errorf("expected distance equal to threshold to be unknown, got accepted at %v", got.Distance)
	}
}

func TestMatcher_Identify_FirstMinimumWins(t *testing.T) {
	m := NewMatcher(0.7, 0.40)
	faces := []database.EnrolledFace{
		{IdentityID: 5, Code: "R005", Embedding: []float32{0, 1}},
		{IdentityID: 7, Code: "R007", Embedding: []float32{2, 0}},
		{IdentityID: 9, Code: "R009", Embedding: []float32{3, 0}},
	}

	got := m.Identify([]float32{1, 0}, faces)
	if got.Face == nil || got.Face.Code != "R007" {
		t.Fatalf("expected first of the tied faces (R007), got %+v", got.Face)
	}
	if !got.Accepted || got.Distance != 0 {
		t.Errorf("expected accepted at distance 0, got %+v", got)
	}
}

func TestMatcher_Identify_Empty(t *testing.T) {
	got := NewMatcher(0.7, 0.40).Identify([]float32{1, 0}, nil)
	if got.Face != nil || got.Accepted {
		t.Errorf("expected no match, got %+v", got)
	}
}

func TestMatcher_IsDuplicate(t *testing.T) {
	m := NewMatcher(0.7, 0.40)
	tests := []struct {
		name string
		a, b []float32
		want bool
	}{
		{"same vector", []float32{1, 2, 3}, []float32{1, 2, 3}, true},
		{"close", []float32{0, 0}, []float32{0.3, 0.4}, true},
		{"at threshold", []float32{0, 0}, []float32{0.7, 0}, false},
		{"far", []float32{0, 0}, []float32{3, 4}, false},
		{"dimension mismatch", []float32{0}, []float32{0, 0}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := m.IsDuplicate(tc.a, tc.b); got != tc.want {
				t.Errorf("IsDuplicate() = %v, want %v", got, tc.want)
			}
		})
	}
}
