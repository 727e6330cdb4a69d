// Package capture runs the camera-driven attendance session and the enrollment capture.
package capture

import (
	"context"
	"errors"
	"image"
	"image/color"
)

var (
	// ErrDeviceUnavailable is returned when the frame source cannot be opened.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrEndOfStream is returned by FrameSource.Next when no more frames will come.
	ErrEndOfStream = errors.New("end of stream")
	// ErrCaptureAborted is returned when the operator quits enrollment without capturing.
	ErrCaptureAborted = errors.New("capture aborted")
)

// Key is an operator key press reported by a Display.
type Key int

const (
	KeyNone Key = iota
	KeyQuit
	KeyCapture
)

// KeyFromRune maps raw key codes to operator keys.
func KeyFromRune(r int) Key {
	switch r {
	case 'q', 'Q':
		return KeyQuit
	case 'c', 'C':
		return KeyCapture
	default:
		return KeyNone
	}
}

// FrameSource yields frames. Next blocks until a frame is available.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// Display shows a frame with overlays and returns the key pressed meanwhile.
type Display interface {
	Show(frame image.Image, overlays []Overlay) (Key, error)
	Close() error
}

// Overlay is a label, optionally with a box, drawn over a frame.
type Overlay struct {
	Box    image.Rectangle // empty for text-only overlays
	Origin image.Point     // text baseline origin
	Label  string
	Color  color.RGBA
}

// Overlay colours per outcome.
var (
	ColorPresent   = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	ColorLate      = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	ColorExit      = color.RGBA{R: 0, G: 100, B: 255, A: 255}
	ColorCompleted = color.RGBA{R: 150, G: 150, B: 150, A: 255}
	ColorUnknown   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)
