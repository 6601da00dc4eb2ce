package cover

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/flopp/go-findfont"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
)

// FontSpec names a font file and its pixel size. An empty Path selects the
// default chain.
type FontSpec struct {
	Path string
	Size float64
}

// FontSource is one step of the font fallback chain.
type FontSource interface {
	Face(size float64) (font.Face, error)
	String() string
}

var builtin *truetype.Font

func init() {
	var err error
	builtin, err = truetype.Parse(gobold.TTF)
	if err != nil {
		panic(fmt.Sprintf("parsing built-in font: %v", err))
	}
}

// FileFont loads a TrueType or OpenType file from disk.
type FileFont string

func (p FileFont) String() string { return string(p) }

func (p FileFont) Face(size float64) (font.Face, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return nil, err
	}
	return parseFace(data, size)
}

// NamedFont looks a font file up by name in the platform font directories.
type NamedFont string

func (n NamedFont) String() string { return string(n) }

func (n NamedFont) Face(size float64) (font.Face, error) {
	path, err := findfont.Find(string(n))
	if err != nil {
		return nil, err
	}
	return FileFont(path).Face(size)
}

type builtinFont struct{}

// BuiltinFont returns the embedded Go Bold font. It never fails.
func BuiltinFont() FontSource { return builtinFont{} }

func (builtinFont) String() string { return "built-in Go Bold" }

func (builtinFont) Face(size float64) (font.Face, error) {
	return newTrueTypeFace(builtin, size), nil
}

// DefaultFontSources is the chain tried when no font is requested.
func DefaultFontSources() []FontSource {
	return []FontSource{
		NamedFont("Arial.ttf"),
		FileFont("/Library/Fonts/Arial.ttf"),
		FileFont("/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf"),
		NamedFont("DejaVuSans-Bold.ttf"),
		BuiltinFont(),
	}
}

// FontResolver turns a FontSpec into a face.
type FontResolver struct {
	Sources []FontSource
	Logger  *log.Logger
}

// NewFontResolver returns a resolver using DefaultFontSources.
func NewFontResolver(logger *log.Logger) *FontResolver {
	return &FontResolver{Sources: DefaultFontSources(), Logger: logger}
}

// Resolve loads spec.Path when set and fails with *FontLoadError if it cannot.
// Otherwise each source is tried in order; the built-in font ends the chain
// even when Sources does not include it.
func (r *FontResolver) Resolve(spec FontSpec) (font.Face, error) {
	logger := r.logger()
	if spec.Size <= 0 {
		return nil, fmt.Errorf("font size must be positive, got %v", spec.Size)
	}

	if spec.Path != "" {
		face, err := FileFont(spec.Path).Face(spec.Size)
		if err != nil {
			return nil, &FontLoadError{Path: spec.Path, Err: err}
		}
		logger.Debug("loaded font", "path", spec.Path, "size", spec.Size)
		return face, nil
	}

	for _, src := range r.Sources {
		face, err := src.Face(spec.Size)
		if err != nil {
			logger.Debug("font unavailable", "font", src, "err", err)
			continue
		}
		logger.Debug("loaded font", "font", src, "size", spec.Size)
		return face, nil
	}

	logger.Warn("no default font found, using built-in font")
	return newTrueTypeFace(builtin, spec.Size), nil
}

func (r *FontResolver) logger() *log.Logger {
	if r == nil || r.Logger == nil {
		return log.Default()
	}
	return r.Logger
}

var errNoFontData = errors.New("empty font file")

// parseFace accepts TrueType outlines through freetype and falls back to the
// sfnt parser for CFF-flavoured OpenType files.
func parseFace(data []byte, size float64) (font.Face, error) {
	if len(data) == 0 {
		return nil, errNoFontData
	}

	ttf, err := truetype.Parse(data)
	if err == nil {
		return newTrueTypeFace(ttf, size), nil
	}

	otf, otErr := opentype.Parse(data)
	if otErr != nil {
		return nil, fmt.Errorf("parse font: %v; %w", err, otErr)
	}
	return opentype.NewFace(otf, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}

func newTrueTypeFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
