package generator

import "errors"

// Content is the model output after parsing: a two-part post and an image prompt.
type Content struct {
	PartOne     string
	PartTwo     string
	ImagePrompt string
	// Moved counts characters relocated from PartOne to PartTwo by budget enforcement.
	Moved int
}

var (
	// ErrModel wraps any failure to invoke the text model.
	ErrModel = errors.New("text model request failed")
	// ErrFormat means the reply did not follow the three-marker layout.
	ErrFormat = errors.New("AI formatting error")
)

const (
	// FallbackImagePrompt replaces a missing or unusable image prompt.
	FallbackImagePrompt = "A simple conceptual image for a science article."
	formatErrorText     = "AI formatting error: the model reply did not follow the expected layout."
	modelErrorText      = "An error occurred while contacting the text model."
)

// Markers delimiting the structured reply, in required order.
const (
	MarkerPartOne     = "[PART 1]"
	MarkerPartTwo     = "[PART 2]"
	MarkerImagePrompt = "[IMAGE PROMPT]"
)
