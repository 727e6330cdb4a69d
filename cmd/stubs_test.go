package cmd

import (
	"context"
	"image"

	"github.com/kozaktomas/face-attendance/internal/vision"
)

type stubAnalyzer struct{}

func (stubAnalyzer) Detect(ctx context.Context, frame image.Image) ([]vision.Face, error) {
	return nil, vision.ErrNoFaceDetected
}

func (stubAnalyzer) Embed(ctx context.Context, face vision.Face) ([]float32, error) {
	return nil, vision.ErrNoFaceDetected
}

func (stubAnalyzer) ModelTag() string { return "stub" }

type pingingAnalyzer struct {
	stubAnalyzer
	err error
}

func (p pingingAnalyzer) Ping(ctx context.Context) error { return p.err }
