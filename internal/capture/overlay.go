package capture

import (
	"fmt"
	"image"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
)

func labelOrigin(box image.Rectangle) image.Point {
	return image.Pt(box.Min.X, max(box.Min.Y-10, 15))
}

// outcomeOverlay renders a committed transition for the face at box.
func outcomeOverlay(box image.Rectangle, name string, res *attendance.Result) Overlay {
	name = facematch.ASCIIName(name)
	o := Overlay{Box: box, Origin: labelOrigin(box)}

	switch res.Outcome {
	case attendance.OutcomeCheckedIn:
		if res.Record.Status == database.StatusLate {
			o.Label, o.Color = "Late IN: "+name, ColorLate
		} else {
			o.Label, o.Color = "Present IN: "+name, ColorPresent
		}
	case attendance.OutcomeCheckedOut:
		o.Label, o.Color = "EXIT: "+name, ColorExit
	default:
		o.Label, o.Color = name+" (Completed)", ColorCompleted
	}
	return o
}

// unknownOverlay renders a face whose nearest distance did not pass the threshold.
func unknownOverlay(box image.Rectangle, distance float64) Overlay {
	return Overlay{
		Box:    box,
		Origin: labelOrigin(box),
		Label:  fmt.Sprintf("Unknown (Dist: %.2f)", distance),
		Color:  ColorUnknown,
	}
}

// promptOverlay is the text-only instruction shown during enrollment.
func promptOverlay(text string) Overlay {
	return Overlay{Origin: image.Pt(10, 40), Label: text, Color: ColorPresent}
}
