package render

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// wrapText breaks text into drawable lines no wider than maxWidth. Explicit
// newlines are kept, blank lines survive as vertical space, and leading
// spaces carry over to continuation lines so indented blocks stay aligned.
func wrapText(face font.Face, text string, maxWidth fixed.Int26_6) []string {
	var lines []string
	for _, raw := range strings.Split(text, "\n") {
		lines = append(lines, wrapLine(face, raw, maxWidth)...)
	}
	return lines
}

func wrapLine(face font.Face, line string, maxWidth fixed.Int26_6) []string {
	trimmed := strings.TrimLeft(line, " ")
	indent := line[:len(line)-len(trimmed)]
	words := strings.Fields(trimmed)
	if len(words) == 0 {
		return []string{""}
	}

	var out []string
	current := ""
	for _, word := range words {
		candidate := current + " " + word
		if current == "" {
			candidate = indent + word
		}
		if font.MeasureString(face, candidate) <= maxWidth {
			current = candidate
			continue
		}
		if current != "" {
			out = append(out, current)
		}
		// The word alone may still be too wide; split it at glyph boundaries.
		pieces := splitWord(face, indent, word, maxWidth)
		out = append(out, pieces[:len(pieces)-1]...)
		current = pieces[len(pieces)-1]
	}
	if current != "" {
		out = append(out, current)
	}
	return out
}

// splitWord cuts a single word into pieces that fit maxWidth, each prefixed
// with the line indent. Every piece keeps at least one rune so the split
// always makes progress.
func splitWord(face font.Face, indent, word string, maxWidth fixed.Int26_6) []string {
	var pieces []string
	current := indent
	for _, r := range word {
		candidate := current + string(r)
		if current != indent && font.MeasureString(face, candidate) > maxWidth {
			pieces = append(pieces, current)
			current = indent + string(r)
			continue
		}
		current = candidate
	}
	return append(pieces, current)
}
