package facematch

import (
	"math"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Match is the outcome of ranking a live embedding against the enrolled faces.
type Match struct {
	Face     *database.EnrolledFace // nearest face, nil when nothing is enrolled
	Distance float64                // cosine distance to Face
	Accepted bool                   // Distance < recognition threshold
}

// Matcher applies the two distance policies: Euclidean for duplicate checks at
// enrollment and cosine for recognition.
type Matcher struct {
	duplicateThreshold   float64
	recognitionThreshold float64
}

// NewMatcher creates a matcher. Both comparisons are strict (distance < threshold).
func NewMatcher(duplicateThreshold, recognitionThreshold float64) *Matcher {
	return &Matcher{
		duplicateThreshold:   duplicateThreshold,
		recognitionThreshold: recognitionThreshold,
	}
}

// RecognitionThreshold returns the cosine acceptance threshold.
func (m *Matcher) RecognitionThreshold() float64 {
	return m.recognitionThreshold
}

// Identify returns the nearest enrolled face by cosine distance. On equal
// distances the first face in load order wins.
func (m *Matcher) Identify(live []float32, faces []database.EnrolledFace) Match {
	best := Match{Distance: math.Inf(1)}
	for i := range faces {
		d := database.CosineDistance(live, faces[i].Embedding)
		if d < best.Distance {
			best.Face = &faces[i]
			best.Distance = d
		}
	}
	best.Accepted = best.Face != nil && best.Distance < m.recognitionThreshold
	return best
}

// IsDuplicate reports whether two raw embeddings are close enough to be the same face.
func (m *Matcher) IsDuplicate(a, b []float32) bool {
	return database.EuclideanDistance(a, b) < m.duplicateThreshold
}
