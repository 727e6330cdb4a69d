package vision

import (
	"image"

	"github.com/disintegration/imaging"
)

// CropFace cuts box out of frame, widened by margin (fraction of the box size) on every side.
func CropFace(frame image.Image, box image.Rectangle, margin float64) image.Image {
	if margin > 0 {
		dx := int(float64(box.Dx()) * margin)
		dy := int(float64(box.Dy()) * margin)
		box = image.Rect(box.Min.X-dx, box.Min.Y-dy, box.Max.X+dx, box.Max.Y+dy)
	}
	box = box.Intersect(frame.Bounds())
	if box.Empty() {
		return nil
	}
	return imaging.Crop(frame, box)
}

// AttachCrops fills Crop on every face that has none.
func AttachCrops(frame image.Image, faces []Face, margin float64) {
	for i := range faces {
		if faces[i].Crop == nil {
			faces[i].Crop = CropFace(frame, faces[i].Box, margin)
		}
	}
}
