package markup

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// PlainText converts markdown to plain text suitable for card rendering.
// Supported: at-line-start headers (#–######), code blocks, inline code,
// links, images, bold (**), italic (*), strikethrough (~~), unordered
// lists, tables. Underscore emphasis is left alone so snake_case survives.
// Link text is kept and URLs are dropped; images are dropped entirely.
// Code block bodies are kept verbatim, indented by four spaces, and are
// never touched by the other passes.
func PlainText(text string) string {
	if text == "" {
		return text
	}
	result := normalize(text)

	// Pull fenced code out first so the remaining passes cannot mangle it.
	result, fences := extractCodeFences(result)

	// At-line-start headers: marker stripped, title kept.
	headerRegex := regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	result = headerRegex.ReplaceAllString(result, "$1")

	// Tables: | col1 | col2 | rows become cell text (before lists, since a
	// separator row also starts with |).
	result = flattenTables(result)

	// Unordered list markers become bullets, indentation preserved.
	// Ordered markers (1., 2.) are already readable and stay as-is.
	listRegex := regexp.MustCompile(`(?m)^(\s*)[-*+]\s+`)
	result = listRegex.ReplaceAllString(result, "$1• ")

	inlineCodeRegex := regexp.MustCompile("`([^`\n]+)`")
	result = inlineCodeRegex.ReplaceAllString(result, "$1")

	imageRegex := regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	result = imageRegex.ReplaceAllString(result, "")

	linkRegex := regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	result = linkRegex.ReplaceAllString(result, "$1")

	boldRegex := regexp.MustCompile(`\*\*([^*]+)\*\*`)
	result = boldRegex.ReplaceAllString(result, "$1")

	// Italic: single *, only when the span holds a letter or digit so stray
	// markers in expressions survive.
	italicRegex := regexp.MustCompile(`\*([^*\n]+?)\*`)
	result = italicRegex.ReplaceAllStringFunc(result, func(match string) string {
		content := italicRegex.FindStringSubmatch(match)[1]
		if strings.TrimSpace(content) == "" || !hasLetterOrDigit(content) {
			return match
		}
		return content
	})

	strikethroughRegex := regexp.MustCompile(`~~([^~]+)~~`)
	result = strikethroughRegex.ReplaceAllString(result, "$1")

	result = collapseBlankLines(result)

	// Restore fences last so their bodies stay byte-exact.
	return restoreCodeFences(result, fences)
}

// Clean normalizes whitespace without touching markup: CRLF and CR become LF,
// tabs become four spaces, runs of three or more newlines collapse to two,
// and outer whitespace is trimmed.
func Clean(text string) string {
	if text == "" {
		return text
	}
	return collapseBlankLines(normalize(text))
}

func normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ReplaceAll(text, "\t", "    ")
}

func collapseBlankLines(text string) string {
	blankRunRegex := regexp.MustCompile(`\n{3,}`)
	return strings.TrimSpace(blankRunRegex.ReplaceAllString(text, "\n\n"))
}

// extractCodeFences replaces each ```-fenced block with a NUL-delimited
// placeholder and collects the bodies. The language tag after the opening
// fence is dropped.
func extractCodeFences(text string) (string, []string) {
	fenceRegex := regexp.MustCompile("(?s)```[^\n`]*\n?(.*?)```")
	var bodies []string
	out := fenceRegex.ReplaceAllStringFunc(text, func(match string) string {
		body := fenceRegex.FindStringSubmatch(match)[1]
		bodies = append(bodies, strings.Trim(body, "\n"))
		return "\x00" + strconv.Itoa(len(bodies)-1) + "\x00"
	})
	return out, bodies
}

func restoreCodeFences(text string, bodies []string) string {
	for i, body := range bodies {
		placeholder := "\x00" + strconv.Itoa(i) + "\x00"
		text = strings.Replace(text, placeholder, indentLines(body, "    "), 1)
	}
	return text
}

func indentLines(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// flattenTables rewrites | col1 | col2 | rows as cell text joined by two
// spaces. Separator rows (|---|---|) are dropped.
func flattenTables(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") {
			out = append(out, line)
			continue
		}
		if isSeparatorRow(trimmed) {
			continue
		}
		out = append(out, strings.Join(parseTableRow(trimmed), "  "))
	}
	return strings.Join(out, "\n")
}

func parseTableRow(line string) []string {
	parts := strings.Split(line, "|")
	var cells []string
	for i, p := range parts {
		trimmed := strings.TrimSpace(p)
		// Leading and trailing | produce empty edge parts; skip them.
		if trimmed == "" && (i == 0 || i == len(parts)-1) {
			continue
		}
		cells = append(cells, trimmed)
	}
	return cells
}

func isSeparatorRow(line string) bool {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '|', '-', ':', ' ':
			return -1
		}
		return r
	}, line)
	return cleaned == ""
}

func hasLetterOrDigit(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
