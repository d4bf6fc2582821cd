package markup

import "strings"

// Split breaks text into chunks of at most limit runes. Cuts prefer the last
// newline in the second half of the window, then the last space, then fall
// back to a hard cut at the limit. Chunks are trimmed and never empty; a
// non-positive limit returns the whole text as one chunk.
func Split(text string, limit int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if limit <= 0 {
		return []string{trimmed}
	}
	runes := []rune(trimmed)
	var chunks []string
	for len(runes) > limit {
		cut := boundary(runes, limit)
		if chunk := strings.TrimSpace(string(runes[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = runes[cut:]
		for len(runes) > 0 && isCutSpace(runes[0]) {
			runes = runes[1:]
		}
	}
	if rest := strings.TrimSpace(string(runes)); rest != "" {
		chunks = append(chunks, rest)
	}
	return chunks
}

// boundary picks the cut index for the next chunk. Only the second half of
// the window is searched so a boundary-rich tail cannot produce tiny chunks.
func boundary(runes []rune, limit int) int {
	floor := limit / 2
	for i := limit; i > floor; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	for i := limit; i > floor; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return limit
}

func isCutSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}
