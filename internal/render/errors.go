package render

import "fmt"

// Kind classifies render failures.
type Kind string

const (
	// KindFontUnavailable means neither the configured font file nor the
	// embedded fallback could be loaded.
	KindFontUnavailable Kind = "FONT_UNAVAILABLE"
	// KindLayoutOverflow means the text does not fit the canvas even at the
	// minimum font size.
	KindLayoutOverflow Kind = "LAYOUT_OVERFLOW"
)

// Error describes a failed card render.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("render: %s: %s", e.Kind, e.Message)
}
