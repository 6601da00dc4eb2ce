// Package cover renders genre cover tiles: a background photo fitted to the
// tile size with a bottom-left caption that has a soft shadow and a vertical
// gradient fill.
package cover

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
)

// DefaultOutputDir is used when a request names neither a file nor a directory.
const DefaultOutputDir = "output_def"

// JPEGQuality is used for every JPEG the package writes.
const JPEGQuality = 95

// Options describe the caption drawn on an already decoded image.
type Options struct {
	Caption  string
	Font     FontSpec
	Geometry Geometry
	PaddingX int
	PaddingY int
}

// Request is a file to file render. OutputPath wins over OutputDir; with
// neither set the file lands in DefaultOutputDir.
type Request struct {
	Options
	InputPath  string
	OutputPath string
	OutputDir  string
}

// Renderer runs the cover pipeline. It holds no per-call state and may be
// shared between goroutines.
type Renderer struct {
	Fonts  *FontResolver
	Style  Style
	Logger *log.Logger
}

// NewRenderer returns a renderer with the default font chain.
func NewRenderer(style Style, logger *log.Logger) *Renderer {
	return &Renderer{
		Fonts:  NewFontResolver(logger),
		Style:  style,
		Logger: logger,
	}
}

// Render decodes req.InputPath, draws the caption and writes the result.
// It returns the path of the written file. Nothing is left at the output
// path when it fails.
func (r *Renderer) Render(req Request) (string, error) {
	logger := r.logger()
	start := time.Now()

	path := OutputPath(req)
	format, err := FormatFor(path)
	if err != nil {
		return "", err
	}

	src, err := imaging.Open(req.InputPath, imaging.AutoOrientation(true))
	if err != nil {
		return "", &ImageLoadError{Path: req.InputPath, Err: err}
	}

	out, err := r.RenderImage(src, req.Options)
	if err != nil {
		return "", err
	}

	if err := ensureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	if err := writeFile(path, out, format); err != nil {
		return "", err
	}

	logger.Info("saved cover", "caption", req.Caption, "path", path,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return path, nil
}

// RenderImage runs the pipeline in memory. src is not modified.
func (r *Renderer) RenderImage(src image.Image, opts Options) (*image.RGBA, error) {
	if err := opts.Geometry.Validate(); err != nil {
		return nil, err
	}
	style := r.Style.orDefault()

	fitted := Fit(src, opts.Geometry)
	img := image.NewRGBA(fitted.Bounds())
	draw.Draw(img, img.Bounds(), fitted, fitted.Bounds().Min, draw.Src)

	face, err := r.fonts().Resolve(opts.Font)
	if err != nil {
		return nil, err
	}
	defer face.Close()

	bounds := img.Bounds()
	layout := NewLayout(face, opts.Caption, bounds.Dx()-2*opts.PaddingX, style.LineSpacing)
	block := PlaceBlock(layout, bounds, opts.PaddingX, opts.PaddingY, style)

	r.logger().Debug("laid out caption", "caption", opts.Caption,
		"lines", len(layout.Lines), "lineHeight", layout.LineHeight, "y", block.Y)

	DrawShadow(img, face, layout, block, style)
	DrawGradientText(img, face, layout, block, style)
	return img, nil
}

func (r *Renderer) fonts() *FontResolver {
	if r.Fonts == nil {
		return NewFontResolver(r.Logger)
	}
	return r.Fonts
}

func (r *Renderer) logger() *log.Logger {
	if r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

// SanitizeToFilename keeps letters, numbers, spaces, hyphens and underscores,
// trims the result and turns spaces into underscores.
func SanitizeToFilename(text string) string {
	var b strings.Builder
	for _, c := range text {
		if unicode.IsLetter(c) || unicode.IsNumber(c) || c == ' ' || c == '-' || c == '_' {
			b.WriteRune(c)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(b.String()), " ", "_")
}

// OutputPath resolves where req will be written.
func OutputPath(req Request) string {
	if req.OutputPath != "" {
		return req.OutputPath
	}
	dir := req.OutputDir
	if dir == "" {
		dir = DefaultOutputDir
	}
	return filepath.Join(dir, SanitizeToFilename(req.Caption)+".png")
}

// ErrUnsupportedFormat is returned for output paths that are neither PNG
// nor JPEG.
var ErrUnsupportedFormat = errors.New("unsupported output extension")

// FormatFor picks the encoding from the file extension.
func FormatFor(path string) (imaging.Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		return imaging.PNG, nil
	case ".jpg", ".jpeg":
		return imaging.JPEG, nil
	default:
		return 0, fmt.Errorf("%w %q in %s", ErrUnsupportedFormat, ext, path)
	}
}

// Encode writes img in format. JPEG output is flattened onto opaque black
// first; PNG keeps the alpha channel.
func Encode(w io.Writer, img image.Image, format imaging.Format) error {
	switch format {
	case imaging.JPEG:
		return imaging.Encode(w, Flatten(img), imaging.JPEG, imaging.JPEGQuality(JPEGQuality))
	case imaging.PNG:
		return imaging.Encode(w, img, imaging.PNG)
	default:
		return fmt.Errorf("unsupported output format %v", format)
	}
}

// Flatten drops the alpha channel by compositing img over opaque black.
// Translucent pixels therefore darken instead of keeping their straight
// color values; opaque photos come out the same either way.
func Flatten(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	draw.Draw(out, b, image.Black, image.Point{}, draw.Src)
	draw.Draw(out, b, img, b.Min, draw.Over)
	return out
}

func ensureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &DirectoryCreateError{Path: dir, Err: err}
	}
	return nil
}

// writeFile encodes into a temporary file next to path and renames it into
// place, so path only ever holds a complete image.
func writeFile(path string, img image.Image, format imaging.Format) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cover-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = Encode(tmp, img, format); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
