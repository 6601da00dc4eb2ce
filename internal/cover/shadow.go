package cover

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
)

// DrawShadow composites a blurred, outlined silhouette of the layout onto dst.
// It has to run before DrawGradientText so the glyphs end up on top.
func DrawShadow(dst *image.RGBA, face font.Face, l Layout, b Block, style Style) {
	bounds := dst.Bounds()

	// Stamping the glyphs inside a disc emulates a stroke of that radius.
	coverage := image.NewAlpha(bounds)
	n := style.ShadowStroke
	for dy := -n; dy <= n; dy++ {
		for dx := -n; dx <= n; dx++ {
			if dx*dx+dy*dy > n*n {
				continue
			}
			drawLines(coverage, image.Opaque, face, l, b, dx, dy)
		}
	}

	layer := image.NewNRGBA(bounds)
	draw.DrawMask(layer, bounds, image.NewUniform(style.ShadowColor), image.Point{}, coverage, bounds.Min, draw.Src)

	var shadow image.Image = layer
	if style.ShadowBlur > 0 {
		shadow = imaging.Blur(layer, style.ShadowBlur)
	}
	draw.Draw(dst, bounds, shadow, shadow.Bounds().Min, draw.Over)
}
