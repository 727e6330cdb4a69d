// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face detection constants
const (
	// OverlapIoUThreshold is the Intersection over Union above which two detections
	// are considered the same face and the less confident one is dropped
	OverlapIoUThreshold = 0.4

	// MaxFrameSide is the default maximum dimension (width or height) of frames
	// uploaded to the embedding server
	MaxFrameSide = 1280
)

// Capture constants
const (
	// MaxCameraReadFailures is the number of consecutive empty camera reads that end a stream
	MaxCameraReadFailures = 30
)
