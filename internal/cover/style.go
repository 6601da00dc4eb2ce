package cover

import "image/color"

// Style holds the visual tunables of a cover. Several styles may coexist;
// nothing in this package reads global state.
type Style struct {
	// LineSpacing multiplies the height of the "Mg" reference string.
	LineSpacing float64
	// DescenderAllowance lifts the text block above PaddingY.
	DescenderAllowance float64

	ShadowColor  color.NRGBA
	ShadowBlur   float64 // gaussian sigma
	ShadowStroke int     // outline radius drawn before blurring

	GradientTop    color.NRGBA
	GradientBottom color.NRGBA
	// GradientBuffer extends the gradient below the text block.
	GradientBuffer float64
}

// DefaultStyle returns the light "expanded shadow, white to grey" look.
func DefaultStyle() Style {
	return Style{
		LineSpacing:        1.2,
		DescenderAllowance: 10,
		ShadowColor:        color.NRGBA{A: 80},
		ShadowBlur:         8,
		ShadowStroke:       6,
		GradientTop:        color.NRGBA{R: 255, G: 255, B: 255, A: 255},
		GradientBottom:     color.NRGBA{R: 200, G: 200, B: 200, A: 255},
		GradientBuffer:     30,
	}
}

// orDefault returns DefaultStyle for the zero Style and guards LineSpacing,
// the one field whose zero value would collapse the layout.
func (s Style) orDefault() Style {
	if s == (Style{}) {
		return DefaultStyle()
	}
	if s.LineSpacing <= 0 {
		s.LineSpacing = DefaultStyle().LineSpacing
	}
	return s
}
