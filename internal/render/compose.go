// Package render rasterizes plain text onto PNG cards with a fixed canvas,
// stepping the font size down until the text fits.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Style controls card geometry and typography.
type Style struct {
	Header      string
	Width       int
	Height      int
	FontSize    float64
	MinFontSize float64
	LineSpacing float64
	Margin      int
	MaxLines    int
}

var (
	cardBackground = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	cardText       = color.RGBA{0x20, 0x20, 0x24, 0xFF}
	cardRule       = color.RGBA{0xC8, 0xC8, 0xCC, 0xFF}
)

// Renderer draws text cards using fonts from a Registry.
type Renderer struct {
	fonts    *Registry
	defaults Style
}

// New returns a Renderer with the given default style.
func New(fonts *Registry, defaults Style) *Renderer {
	return &Renderer{fonts: fonts, defaults: defaults}
}

// Style returns the renderer's default style for callers to adjust.
func (r *Renderer) Style() Style { return r.defaults }

// Compose renders text as a PNG card. Zero style fields fall back to the
// renderer defaults. The font size steps down two points at a time until the
// text fits the canvas and the line cap; if it still does not fit at the
// minimum size, the render fails with LAYOUT_OVERFLOW. Output is
// deterministic: the same text and style always produce identical bytes.
func (r *Renderer) Compose(text string, style Style) ([]byte, error) {
	st := r.merged(style)

	contentWidth := fixed.I(st.Width - 2*st.Margin)
	maxHeight := fixed.I(st.Height - 2*st.Margin)

	var lastLineCount int
	for _, size := range sizeLadder(st.FontSize, st.MinFontSize) {
		face, err := r.fonts.Face(FamilySans, size)
		if err != nil {
			return nil, err
		}
		lines := wrapText(face, text, contentWidth)
		lastLineCount = len(lines)

		advance := lineAdvance(face, st.LineSpacing)
		headerFace, headerBlock, err := r.headerBlock(st, size)
		if err != nil {
			return nil, err
		}

		needed := headerBlock + advance.Mul(fixed.I(len(lines)))
		if (st.MaxLines > 0 && len(lines) > st.MaxLines) || needed > maxHeight {
			continue
		}
		return r.draw(st, face, headerFace, lines, advance)
	}
	return nil, &Error{
		Kind:    KindLayoutOverflow,
		Message: fmt.Sprintf("%d lines do not fit %dx%d at minimum size %.0fpt", lastLineCount, st.Width, st.Height, st.MinFontSize),
	}
}

func (r *Renderer) merged(style Style) Style {
	st := style
	if st.Width <= 0 {
		st.Width = r.defaults.Width
	}
	if st.Height <= 0 {
		st.Height = r.defaults.Height
	}
	if st.FontSize <= 0 {
		st.FontSize = r.defaults.FontSize
	}
	if st.MinFontSize <= 0 {
		st.MinFontSize = r.defaults.MinFontSize
	}
	if st.LineSpacing <= 0 {
		st.LineSpacing = r.defaults.LineSpacing
	}
	if st.Margin <= 0 {
		st.Margin = r.defaults.Margin
	}
	if st.MaxLines <= 0 {
		st.MaxLines = r.defaults.MaxLines
	}
	return st
}

// headerBlock returns the bold face for the header and the vertical space
// the header occupies, zero when there is no header.
func (r *Renderer) headerBlock(st Style, size float64) (font.Face, fixed.Int26_6, error) {
	if st.Header == "" {
		return nil, 0, nil
	}
	face, err := r.fonts.Face(FamilySansBold, size+6)
	if err != nil {
		return nil, 0, err
	}
	// Header line, the rule under it, and a gap before the body.
	block := face.Metrics().Height + fixed.I(ruleGap*2+1)
	return face, block, nil
}

const ruleGap = 8

func (r *Renderer) draw(st Style, face, headerFace font.Face, lines []string, advance fixed.Int26_6) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, st.Width, st.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(cardBackground), image.Point{}, draw.Src)

	y := fixed.I(st.Margin)

	if headerFace != nil {
		d := &font.Drawer{Dst: img, Src: image.NewUniform(cardText), Face: headerFace}
		d.Dot = fixed.Point26_6{X: fixed.I(st.Margin), Y: y + headerFace.Metrics().Ascent}
		d.DrawString(st.Header)
		y += headerFace.Metrics().Height + fixed.I(ruleGap)

		ruleY := y.Floor()
		for x := st.Margin; x < st.Width-st.Margin; x++ {
			img.SetRGBA(x, ruleY, cardRule)
		}
		y += fixed.I(ruleGap + 1)
	}

	d := &font.Drawer{Dst: img, Src: image.NewUniform(cardText), Face: face}
	baseline := y + face.Metrics().Ascent
	for _, line := range lines {
		if line != "" {
			d.Dot = fixed.Point26_6{X: fixed.I(st.Margin), Y: baseline}
			d.DrawString(line)
		}
		baseline += advance
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("render: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func lineAdvance(face font.Face, spacing float64) fixed.Int26_6 {
	return fixed.Int26_6(float64(face.Metrics().Height) * spacing)
}

// sizeLadder lists candidate font sizes from the starting size down to the
// minimum in two point steps, always ending exactly at the minimum.
func sizeLadder(start, min float64) []float64 {
	if min > start {
		min = start
	}
	var sizes []float64
	for s := start; s > min; s -= 2 {
		sizes = append(sizes, s)
	}
	return append(sizes, min)
}
