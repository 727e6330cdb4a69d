// Package vision defines the face detection and embedding contracts used by
// enrollment and the capture loop, plus the geometry helpers shared by backends.
package vision

import (
	"context"
	"errors"
	"image"
)

// ErrNoFaceDetected is returned when a frame or photo contains no usable face.
var ErrNoFaceDetected = errors.New("no face detected")

// Face is one detected face in a frame.
type Face struct {
	Box   image.Rectangle // pixel box in frame coordinates
	Score float64         // detector confidence in [0, 1]
	Crop  image.Image     // face region, nil when the backend embeds server-side

	// Embedding is set by backends that detect and embed in a single call.
	Embedding []float32
}

// Detector finds faces in a frame.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]Face, error)
}

// Embedder turns a face crop into an embedding vector.
type Embedder interface {
	Embed(ctx context.Context, face Face) ([]float32, error)
}

// Analyzer is a detector and embedder pair producing vectors of one model configuration.
type Analyzer interface {
	Detector
	Embedder
	// ModelTag identifies the model configuration, stored alongside every embedding.
	ModelTag() string
}

// EmbedFace returns the embedding precomputed by the detector, or asks the embedder for one.
func EmbedFace(ctx context.Context, e Embedder, face Face) ([]float32, error) {
	if len(face.Embedding) > 0 {
		return face.Embedding, nil
	}
	return e.Embed(ctx, face)
}

// LargestFace returns the face with the biggest box, used for single-person enrollment.
func LargestFace(faces []Face) (Face, error) {
	if len(faces) == 0 {
		return Face{}, ErrNoFaceDetected
	}
	best := faces[0]
	for _, f := range faces[1:] {
		if Area(f.Box) > Area(best.Box) {
			best = f
		}
	}
	return best, nil
}

// CropMargin widens face boxes by this fraction of their size before embedding.
const CropMargin = 0.1

// EmbedLargest detects faces in img and embeds the largest one.
func EmbedLargest(ctx context.Context, a Analyzer, img image.Image) ([]float32, error) {
	faces, err := a.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	face, err := LargestFace(faces)
	if err != nil {
		return nil, err
	}
	if face.Crop == nil && len(face.Embedding) == 0 {
		face.Crop = CropFace(img, face.Box, CropMargin)
	}
	return EmbedFace(ctx, a, face)
}
