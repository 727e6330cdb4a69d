package constants

// Handler constants
const (
	// MaxPhotoUploadSize bounds enrollment photo uploads (10MB)
	MaxPhotoUploadSize = 10 << 20

	// DefaultNeighbourLimit is the default number of neighbours listed by `face nearest`
	DefaultNeighbourLimit = 5
)
