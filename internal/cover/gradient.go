package cover

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
)

// Gradient is a vertical two-color ramp over rows [Start, End).
type Gradient struct {
	Top, Bottom color.NRGBA
	Start, End  float64
}

// GradientFor spans the block plus the style's buffer below it.
func GradientFor(b Block, style Style) Gradient {
	return Gradient{
		Top:    style.GradientTop,
		Bottom: style.GradientBottom,
		Start:  b.Y,
		End:    b.Y + b.Height + style.GradientBuffer,
	}
}

// At returns the color of row y. The interpolation ratio is clamped to [0, 1].
func (g Gradient) At(y float64) color.NRGBA {
	ratio := 0.0
	if g.End > g.Start {
		ratio = (y - g.Start) / (g.End - g.Start)
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	lerp := func(a, b uint8) uint8 {
		return uint8(float64(a) + (float64(b)-float64(a))*ratio)
	}
	return color.NRGBA{
		R: lerp(g.Top.R, g.Bottom.R),
		G: lerp(g.Top.G, g.Bottom.G),
		B: lerp(g.Top.B, g.Bottom.B),
		A: lerp(g.Top.A, g.Bottom.A),
	}
}

// Field paints the gradient across the full width of bounds. Rows outside
// the span stay transparent.
func (g Gradient) Field(bounds image.Rectangle) *image.NRGBA {
	field := image.NewNRGBA(bounds)
	from, to := int(g.Start), int(g.End)
	if from < bounds.Min.Y {
		from = bounds.Min.Y
	}
	if to > bounds.Max.Y {
		to = bounds.Max.Y
	}
	for y := from; y < to; y++ {
		row := image.Rect(bounds.Min.X, y, bounds.Max.X, y+1)
		draw.Draw(field, row, image.NewUniform(g.At(float64(y))), image.Point{}, draw.Src)
	}
	return field
}

// GlyphMask returns an alpha image whose nonzero pixels are exactly the
// coverage of the layout's glyphs.
func GlyphMask(bounds image.Rectangle, face font.Face, l Layout, b Block) *image.Alpha {
	mask := image.NewAlpha(bounds)
	drawLines(mask, image.Opaque, face, l, b, 0, 0)
	return mask
}

// DrawGradientText fills the layout's glyphs on dst with the style gradient.
// Pixels outside the glyph mask are left untouched.
func DrawGradientText(dst *image.RGBA, face font.Face, l Layout, b Block, style Style) {
	bounds := dst.Bounds()
	mask := GlyphMask(bounds, face, l, b)
	field := GradientFor(b, style).Field(bounds)
	draw.DrawMask(dst, bounds, field, bounds.Min, mask, bounds.Min, draw.Over)
}
