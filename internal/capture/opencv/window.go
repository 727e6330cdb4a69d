package opencv

import (
	"fmt"
	"image"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"gocv.io/x/gocv"
)

// Window is the operator preview.
type Window struct {
	win *gocv.Window
	mat gocv.Mat
}

// OpenWindow creates a named preview window.
func OpenWindow(title string) (*Window, error) {
	win := gocv.NewWindow(title)
	if win == nil {
		return nil, fmt.Errorf("create window %q", title)
	}
	return &Window{win: win, mat: gocv.NewMat()}, nil
}

// Show draws overlays on a copy of frame and polls the keyboard for one millisecond.
func (w *Window) Show(frame image.Image, overlays []capture.Overlay) (capture.Key, error) {
	mat, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return capture.KeyNone, fmt.Errorf("convert frame: %w", err)
	}
	w.mat.Close()
	w.mat = mat

	drawOverlays(&w.mat, overlays)

	w.win.IMShow(w.mat)
	return capture.KeyFromRune(w.win.WaitKey(1)), nil
}

// drawOverlays paints boxes and labels onto a BGR mat. gocv converts
// color.RGBA to BGR itself, so overlay colours pass through unchanged.
func drawOverlays(mat *gocv.Mat, overlays []capture.Overlay) {
	for _, o := range overlays {
		if !o.Box.Empty() {
			gocv.Rectangle(mat, o.Box, o.Color, 2)
		}
		if o.Label != "" {
			gocv.PutText(mat, o.Label, o.Origin, gocv.FontHersheySimplex, 0.7, o.Color, 2)
		}
	}
}

// Close destroys the window.
func (w *Window) Close() error {
	w.mat.Close()
	return w.win.Close()
}
