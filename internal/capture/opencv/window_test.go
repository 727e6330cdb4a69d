package opencv

import (
	"image"
	"image/color"
	"testing"

	"github.com/kozaktomas/face-attendance/internal/capture"
	"gocv.io/x/gocv"
)

func TestDrawOverlays_KeepsOverlayColours(t *testing.T) {
	tests := []struct {
		name  string
		color color.RGBA
	}{
		{"present", capture.ColorPresent},
		{"late", capture.ColorLate},
		{"exit", capture.ColorExit},
		{"unknown", capture.ColorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := image.NewRGBA(image.Rect(0, 0, 64, 64))
			mat, err := gocv.ImageToMatRGB(frame)
			if err != nil {
				t.Fatalf("convert frame: %v", err)
			}
			defer mat.Close()

			drawOverlays(&mat, []capture.Overlay{{Box: image.Rect(10, 10, 50, 50), Color: tt.color}})

			img, err := mat.ToImage()
			if err != nil {
				t.Fatalf("convert mat: %v", err)
			}
			r, g, b, _ := img.At(10, 30).RGBA()
			got := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 255}
			if got != tt.color {
				t.Errorf("expected box pixel %v, got %v", tt.color, got)
			}
		})
	}
}
