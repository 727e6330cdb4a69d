package capture

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kozaktomas/face-attendance/internal/vision"
)

// EnrollPrompt is shown over the preview while waiting for the operator.
const EnrollPrompt = "Press 'c' to capture face"

// CaptureEnrollment previews frames until the operator presses 'c' on a frame with
// a detectable face, and returns that face's embedding. 'q' aborts with ErrCaptureAborted.
// A capture without a face is reported and the preview continues.
func CaptureEnrollment(ctx context.Context, src FrameSource, display Display, analyzer vision.Analyzer) ([]float32, error) {
	prompt := []Overlay{promptOverlay(EnrollPrompt)}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := src.Next(ctx)
		if errors.Is(err, ErrEndOfStream) {
			return nil, ErrCaptureAborted
		}
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}

		key, err := display.Show(frame, prompt)
		if err != nil {
			return nil, fmt.Errorf("show frame: %w", err)
		}

		switch key {
		case KeyQuit:
			return nil, ErrCaptureAborted
		case KeyCapture:
			embedding, err := vision.EmbedLargest(ctx, analyzer, frame)
			if errors.Is(err, vision.ErrNoFaceDetected) {
				fmt.Println("No face detected. Try again!")
				continue
			}
			if err != nil {
				log.Printf("capture: enrollment embedding failed: %v", err)
				continue
			}
			return embedding, nil
		}
	}
}
