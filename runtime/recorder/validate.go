package recorder

import (
	"fmt"
	"slices"

	"github.com/AltairaLabs/InterviewKit/runtime/interview"
)

// Default minimum capture resolution.
const (
	DefaultMinWidth  = 1200
	DefaultMinHeight = 700
)

// Requirements is the validation gate applied to a display stream before
// recording begins.
type Requirements struct {
	AllowedSurfaces []string
	MinWidth        int
	MinHeight       int
}

// DefaultRequirements demands a full-screen capture of at least 1200x700.
func DefaultRequirements() Requirements {
	return Requirements{
		AllowedSurfaces: []string{SurfaceMonitor, SurfaceScreen},
		MinWidth:        DefaultMinWidth,
		MinHeight:       DefaultMinHeight,
	}
}

// ValidationError reports which track setting failed the gate.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

// Unwrap ties every validation failure to the interview taxonomy.
func (e *ValidationError) Unwrap() error {
	return interview.ErrRecordingValidation
}

// Check validates settings against the requirements.
func (r Requirements) Check(s TrackSettings) error {
	if !slices.Contains(r.AllowedSurfaces, s.DisplaySurface) {
		return &ValidationError{
			Field: "displaySurface",
			Message: fmt.Sprintf("share your entire screen, not a %s (got %q)",
				surfaceNoun(s.DisplaySurface), s.DisplaySurface),
		}
	}
	if s.Width < r.MinWidth || s.Height < r.MinHeight {
		return &ValidationError{
			Field: "resolution",
			Message: fmt.Sprintf("screen resolution %dx%d is below the required %dx%d",
				s.Width, s.Height, r.MinWidth, r.MinHeight),
		}
	}
	return nil
}

func surfaceNoun(surface string) string {
	switch surface {
	case SurfaceWindow:
		return "window"
	case SurfaceBrowser:
		return "browser tab"
	default:
		return "partial capture"
	}
}
