package cover

import (
	"image"
	"image/color"
	"image/draw"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"golang.org/x/image/font"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

func testFace(t *testing.T, size float64) font.Face {
	t.Helper()
	face, err := BuiltinFont().Face(size)
	if err != nil {
		t.Fatalf("BuiltinFont().Face(%v) error = %v", size, err)
	}
	t.Cleanup(func() { _ = face.Close() })
	return face
}

func testRenderer() *Renderer {
	logger := quietLogger()
	return &Renderer{
		Fonts:  &FontResolver{Sources: []FontSource{BuiltinFont()}, Logger: logger},
		Style:  DefaultStyle(),
		Logger: logger,
	}
}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

func brightness(c color.Color) uint32 {
	r, g, b, _ := c.RGBA()
	return r + g + b
}
