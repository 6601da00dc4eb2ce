package cover

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Geometry is the requested output size. The zero value keeps the source size.
type Geometry struct {
	Width  int
	Height int
}

// IsZero reports whether no target size was requested.
func (g Geometry) IsZero() bool {
	return g.Width <= 0 || g.Height <= 0
}

// Validate rejects negative sizes and a width or height given on its own.
func (g Geometry) Validate() error {
	if g.Width < 0 || g.Height < 0 {
		return fmt.Errorf("invalid geometry %dx%d", g.Width, g.Height)
	}
	if (g.Width == 0) != (g.Height == 0) {
		return fmt.Errorf("geometry needs both width and height, got %dx%d", g.Width, g.Height)
	}
	return nil
}

// Fit scales img so that it covers g and crops the overflow around the
// center. The result is exactly g.Width x g.Height; it is never letterboxed.
func Fit(img image.Image, g Geometry) *image.NRGBA {
	if g.IsZero() {
		return imaging.Clone(img)
	}

	b := img.Bounds()
	srcAspect := float64(b.Dx()) / float64(b.Dy())
	dstAspect := float64(g.Width) / float64(g.Height)

	var w, h int
	if srcAspect > dstAspect {
		h = g.Height
		w = int(float64(h) * srcAspect)
	} else {
		w = g.Width
		h = int(float64(w) / srcAspect)
	}
	// Truncation may undershoot by one pixel.
	if w < g.Width {
		w = g.Width
	}
	if h < g.Height {
		h = g.Height
	}

	scaled := imaging.Resize(img, w, h, imaging.Lanczos)

	left := (w - g.Width) / 2
	top := (h - g.Height) / 2
	return imaging.Crop(scaled, image.Rect(left, top, left+g.Width, top+g.Height))
}
