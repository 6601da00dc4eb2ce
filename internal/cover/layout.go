package cover

import (
	"image"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// referenceText is measured to derive the line height.
const referenceText = "Mg"

// Layout is a caption wrapped into lines, top to bottom.
type Layout struct {
	Lines      []string
	LineHeight float64
}

// Height is the total height of the stacked lines.
func (l Layout) Height() float64 {
	return float64(len(l.Lines)) * l.LineHeight
}

// NewLayout wraps text to maxWidth and computes the line height.
func NewLayout(face font.Face, text string, maxWidth int, spacing float64) Layout {
	return Layout{
		Lines:      Wrap(face, text, maxWidth),
		LineHeight: LineHeight(face, spacing),
	}
}

// Measure returns the size of the inked bounding box of s.
func Measure(face font.Face, s string) (w, h int) {
	bounds, _ := font.BoundString(face, s)
	return (bounds.Max.X - bounds.Min.X).Ceil(), (bounds.Max.Y - bounds.Min.Y).Ceil()
}

// LineHeight is the height of the reference string times spacing.
func LineHeight(face font.Face, spacing float64) float64 {
	_, h := Measure(face, referenceText)
	return float64(h) * spacing
}

// Wrap greedily packs the words of text into lines no wider than maxWidth.
// A word wider than maxWidth on its own gets a line of its own and is never
// split. Text without words comes back as a single unmodified line.
func Wrap(face font.Face, text string, maxWidth int) []string {
	var lines []string
	var current []string

	for _, word := range strings.Fields(text) {
		candidate := strings.Join(append(current, word), " ")
		if w, _ := Measure(face, candidate); w <= maxWidth {
			current = append(current, word)
			continue
		}
		if len(current) > 0 {
			lines = append(lines, strings.Join(current, " "))
			current = []string{word}
		} else {
			lines = append(lines, word)
		}
	}
	if len(current) > 0 {
		lines = append(lines, strings.Join(current, " "))
	}

	if len(lines) == 0 {
		return []string{text}
	}
	return lines
}

// Block is the placement of a layout on the image. X and Y are the top left
// corner of the first line.
type Block struct {
	X, Y   float64
	Height float64
}

// PlaceBlock anchors the layout to the bottom left corner of bounds.
func PlaceBlock(l Layout, bounds image.Rectangle, paddingX, paddingY int, style Style) Block {
	height := l.Height()
	return Block{
		X:      float64(bounds.Min.X + paddingX),
		Y:      float64(bounds.Max.Y) - height - float64(paddingY) - style.DescenderAllowance,
		Height: height,
	}
}

// drawLines draws every line of l with its top edge at the block origin
// shifted by (dx, dy). Line tops advance by LineHeight.
func drawLines(dst draw.Image, src image.Image, face font.Face, l Layout, b Block, dx, dy int) {
	ascent := face.Metrics().Ascent
	d := &font.Drawer{Dst: dst, Src: src, Face: face}

	top := b.Y
	for _, line := range l.Lines {
		d.Dot = fixed.Point26_6{
			X: fixed.Int26_6((b.X + float64(dx)) * 64),
			Y: fixed.Int26_6((top+float64(dy))*64) + ascent,
		}
		d.DrawString(line)
		top += l.LineHeight
	}
}
