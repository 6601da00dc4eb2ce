package cover

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func decodeFile(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return img
}

func TestRenderSingleWordKeepsSize(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bg.png")
	writePNG(t, input, 320, 200)

	path, err := testRenderer().Render(Request{
		Options:   Options{Caption: "Action", Font: FontSpec{Size: 40}, PaddingX: 40, PaddingY: 40},
		InputPath: input,
		OutputDir: filepath.Join(dir, "out"),
	})

	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if want := filepath.Join(dir, "out", "Action.png"); path != want {
		t.Errorf("Render() path = %q, want %q", path, want)
	}
	if size := decodeFile(t, path).Bounds().Size(); size != image.Pt(320, 200) {
		t.Errorf("output size = %v, want 320x200", size)
	}
}

func TestRenderTargetGeometry(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "square.png")
	writePNG(t, input, 1000, 1000)
	output := filepath.Join(dir, "nested", "deeper", "wide.png")

	_, err := testRenderer().Render(Request{
		Options: Options{
			Caption:  "Science Fiction & Fantasy",
			Font:     FontSpec{Size: 60},
			Geometry: Geometry{Width: 1920, Height: 1080},
			PaddingX: 80,
			PaddingY: 80,
		},
		InputPath:  input,
		OutputPath: output,
	})

	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if size := decodeFile(t, output).Bounds().Size(); size != image.Pt(1920, 1080) {
		t.Errorf("output size = %v, want 1920x1080", size)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bg.png")
	writePNG(t, input, 240, 180)
	r := testRenderer()

	var outputs [][]byte
	for _, name := range []string{"a.png", "b.png"} {
		out := filepath.Join(dir, name)
		_, err := r.Render(Request{
			Options:    Options{Caption: "War & Politics", Font: FontSpec{Size: 30}, PaddingX: 20, PaddingY: 30},
			InputPath:  input,
			OutputPath: out,
		})
		if err != nil {
			t.Fatalf("Render() error = %v", err)
		}
		data, err := os.ReadFile(out)
		if err != nil {
			t.Fatal(err)
		}
		outputs = append(outputs, data)
	}

	if !bytes.Equal(outputs[0], outputs[1]) {
		t.Error("rendering the same request twice produced different bytes")
	}
}

func TestRenderJPEGOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bg.png")
	writePNG(t, input, 200, 150)
	output := filepath.Join(dir, "cover.JPG")

	_, err := testRenderer().Render(Request{
		Options:    Options{Caption: "Music", Font: FontSpec{Size: 30}, PaddingX: 20, PaddingY: 20},
		InputPath:  input,
		OutputPath: output,
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	f, err := os.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := jpeg.Decode(f); err != nil {
		t.Errorf("output is not a JPEG: %v", err)
	}
}

func TestRenderMissingFontWritesNothing(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bg.png")
	writePNG(t, input, 100, 100)
	outDir := filepath.Join(dir, "out")

	_, err := testRenderer().Render(Request{
		Options:   Options{Caption: "Thriller", Font: FontSpec{Path: filepath.Join(dir, "nope.otf"), Size: 40}},
		InputPath: input,
		OutputDir: outDir,
	})

	var fontErr *FontLoadError
	if !errors.As(err, &fontErr) {
		t.Fatalf("Render() error = %v, want *FontLoadError", err)
	}
	if _, err := os.Stat(filepath.Join(outDir, "Thriller.png")); !os.IsNotExist(err) {
		t.Errorf("output file exists after font failure (stat err = %v)", err)
	}
}

func TestRenderBadInput(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, input := range []string{filepath.Join(dir, "missing.png"), garbage} {
		_, err := testRenderer().Render(Request{
			Options:   Options{Caption: "Western", Font: FontSpec{Size: 40}},
			InputPath: input,
			OutputDir: filepath.Join(dir, "out"),
		})

		var imgErr *ImageLoadError
		if !errors.As(err, &imgErr) {
			t.Errorf("Render(%s) error = %v, want *ImageLoadError", input, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "out")); !os.IsNotExist(err) {
		t.Error("output directory created for a failed decode")
	}
}

func TestRenderDirectoryCreateError(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bg.png")
	writePNG(t, input, 100, 100)
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := testRenderer().Render(Request{
		Options:   Options{Caption: "Family", Font: FontSpec{Size: 20}},
		InputPath: input,
		OutputDir: filepath.Join(blocker, "sub"),
	})

	var dirErr *DirectoryCreateError
	if !errors.As(err, &dirErr) {
		t.Fatalf("Render() error = %v, want *DirectoryCreateError", err)
	}
}

func TestRenderLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bg.png")
	writePNG(t, input, 100, 80)
	outDir := filepath.Join(dir, "out")

	if _, err := testRenderer().Render(Request{
		Options:   Options{Caption: "TV Movie", Font: FontSpec{Size: 20}, PaddingX: 10, PaddingY: 10},
		InputPath: input,
		OutputDir: outDir,
	}); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "TV_Movie.png" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("output dir = %v, want only TV_Movie.png", names)
	}
}

func TestSanitizeToFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Action", "Action"},
		{"Science Fiction & Fantasy", "Science_Fiction__Fantasy"},
		{"Sci-Fi & Fantasy", "Sci-Fi__Fantasy"},
		{"  War & Politics  ", "War__Politics"},
		{"Azione/Avventura", "AzioneAvventura"},
		{"Fantascienza: né_più", "Fantascienza_né_più"},
		{"!!!", ""},
		{"Rocky Ⅱ ½", "Rocky_Ⅱ_½"},
		{"Top 10²", "Top_10²"},
	}
	for _, tt := range tests {
		if got := SanitizeToFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeToFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"explicit path", Request{OutputPath: "x/y.jpg", OutputDir: "ignored"}, "x/y.jpg"},
		{"output dir", Request{Options: Options{Caption: "Kids"}, OutputDir: "covers"}, filepath.Join("covers", "Kids.png")},
		{"default dir", Request{Options: Options{Caption: "Soap Opera"}}, filepath.Join(DefaultOutputDir, "Soap_Opera.png")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OutputPath(tt.req); got != tt.want {
				t.Errorf("OutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatFor(t *testing.T) {
	tests := map[string]imaging.Format{
		"a.png":  imaging.PNG,
		"a.PNG":  imaging.PNG,
		"a.jpg":  imaging.JPEG,
		"a.JPEG": imaging.JPEG,
	}
	for path, want := range tests {
		got, err := FormatFor(path)
		if err != nil || got != want {
			t.Errorf("FormatFor(%q) = %v, %v; want %v", path, got, err, want)
		}
	}

	for _, path := range []string{"a.bmp", "a.webp", "noext"} {
		if _, err := FormatFor(path); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("FormatFor(%q) error = %v, want ErrUnsupportedFormat", path, err)
		}
	}
}

func TestRenderUnsupportedExtensionWritesNothing(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "bg.png")
	writePNG(t, input, 100, 100)
	output := filepath.Join(dir, "out", "cover.bmp")

	_, err := testRenderer().Render(Request{
		Options:    Options{Caption: "Music", Font: FontSpec{Size: 20}},
		InputPath:  input,
		OutputPath: output,
	})

	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Render() error = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Errorf("cover.bmp exists after an unsupported extension (stat err = %v)", err)
	}
}

func TestRenderImageRejectsHalfGeometry(t *testing.T) {
	src := solid(100, 100, color.White)

	for _, g := range []Geometry{{Width: 50}, {Height: 50}, {Width: -1, Height: 10}} {
		if _, err := testRenderer().RenderImage(src, Options{Caption: "Kids", Font: FontSpec{Size: 20}, Geometry: g}); err == nil {
			t.Errorf("RenderImage() with geometry %+v error = nil", g)
		}
	}
}

func TestFlatten(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{R: 255, A: 0})

	got := Flatten(src)

	if px := got.RGBAAt(0, 0); px != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("opaque pixel = %v", px)
	}
	if px := got.RGBAAt(1, 0); px != (color.RGBA{A: 255}) {
		t.Errorf("transparent pixel = %v, want opaque black", px)
	}
}
