package vision

import (
	"image"
	"sort"
)

// Area returns the pixel area of r, 0 for empty rectangles.
func Area(r image.Rectangle) int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// ComputeIoU calculates Intersection over Union between two boxes.
func ComputeIoU(a, b image.Rectangle) float64 {
	intersection := Area(a.Intersect(b))
	if intersection == 0 {
		return 0
	}

	union := Area(a) + Area(b) - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// BoxFromCorners converts corner coordinates (pixels, possibly outside the frame)
// into a rectangle clamped to bounds.
func BoxFromCorners(x1, y1, x2, y2 float64, bounds image.Rectangle) image.Rectangle {
	r := image.Rect(int(x1), int(y1), int(x2), int(y2))
	return r.Intersect(bounds)
}

// BoxFromRelative converts [0,1] corner coordinates into a pixel box inside bounds.
func BoxFromRelative(x1, y1, x2, y2 float64, bounds image.Rectangle) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	return BoxFromCorners(
		float64(bounds.Min.X)+x1*w, float64(bounds.Min.Y)+y1*h,
		float64(bounds.Min.X)+x2*w, float64(bounds.Min.Y)+y2*h,
		bounds,
	)
}

// SuppressOverlaps keeps the highest scoring face among boxes overlapping by more
// than iouThreshold. Output is ordered by descending score.
func SuppressOverlaps(faces []Face, iouThreshold float64) []Face {
	sorted := make([]Face, len(faces))
	copy(sorted, faces)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	kept := make([]Face, 0, len(sorted))
	for _, f := range sorted {
		if Area(f.Box) == 0 {
			continue
		}
		overlapping := false
		for _, k := range kept {
			if ComputeIoU(f.Box, k.Box) > iouThreshold {
				overlapping = true
				break
			}
		}
		if !overlapping {
			kept = append(kept, f)
		}
	}
	return kept
}
