package capture

import (
	"context"
	"image"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/vision"
)

type fakeSource struct {
	frames int
	served int
	closed bool
}

func (s *fakeSource) Next(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.served >= s.frames {
		return nil, ErrEndOfStream
	}
	s.served++
	return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeDisplay struct {
	keys   map[int]Key // 1-based frame number to key
	shown  [][]Overlay
	closed bool
}

func (d *fakeDisplay) Show(frame image.Image, overlays []Overlay) (Key, error) {
	d.shown = append(d.shown, overlays)
	return d.keys[len(d.shown)], nil
}

func (d *fakeDisplay) Close() error {
	d.closed = true
	return nil
}

type fakeAnalyzer struct {
	mu        sync.Mutex
	embedding []float32
	faceless  map[int]bool // 1-based Detect calls returning no face
	panicking bool
	calls     int
}

func (a *fakeAnalyzer) Detect(ctx context.Context, frame image.Image) ([]vision.Face, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.panicking {
		panic("detector crashed")
	}
	if a.faceless[a.calls] {
		return nil, vision.ErrNoFaceDetected
	}
	return []vision.Face{{Box: image.Rect(10, 10, 40, 40), Score: 0.98}}, nil
}

func (a *fakeAnalyzer) Embed(ctx context.Context, face vision.Face) ([]float32, error) {
	if face.Crop == nil {
		return nil, vision.ErrNoFaceDetected
	}
	return a.embedding, nil
}

func (a *fakeAnalyzer) ModelTag() string {
	return testModel
}
