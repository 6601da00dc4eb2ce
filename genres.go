package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/meownoid/genre-covers/internal/cover"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".bmp":  true,
	".tiff": true,
}

// Tile is one entry of the media library tile manifest.
type Tile struct {
	DataSource         DataSource `json:"dataSource"`
	HideTitle          bool       `json:"hideTitle"`
	Layout             string     `json:"layout"`
	Name               string     `json:"name"`
	BackgroundImageURL string     `json:"backgroundImageURL"`
}

type DataSource struct {
	Kind    string         `json:"kind"`
	Payload DiscoverFilter `json:"payload"`
}

type DiscoverFilter struct {
	IncludeGenres []int  `json:"includeGenres"`
	SortBy        string `json:"sortBy"`
	Type          string `json:"type"`
}

func newTile(g Genre, media, url string) Tile {
	return Tile{
		DataSource: DataSource{
			Kind: "tmdbDiscover",
			Payload: DiscoverFilter{
				IncludeGenres: []int{g.ID},
				SortBy:        "popularity.desc",
				Type:          media,
			},
		},
		Layout:             "Wide",
		Name:               g.Name,
		BackgroundImageURL: url,
	}
}

type batch struct {
	cfg      *Config
	renderer *cover.Renderer
	logger   *log.Logger
	rand     *rand.Rand
}

// run renders every configured genre. A genre that fails is logged and
// left out of the manifest; the others are still rendered.
func (b *batch) run(ctx context.Context) error {
	gc := b.cfg.Genres

	images, err := listImages(gc.InputDir)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("no images found in %q", gc.InputDir)
	}
	if gc.Shuffle {
		r := b.rand
		if r == nil {
			r = newRand()
		}
		r.Shuffle(len(images), func(i, j int) { images[i], images[j] = images[j], images[i] })
	}
	b.logger.Info("found base images", "count", len(images), "dir", gc.InputDir)

	media := make([]string, 0, len(gc.Media))
	for m := range gc.Media {
		media = append(media, m)
	}
	sort.Strings(media)

	failed := 0
	for _, m := range media {
		genres := gc.Media[m]
		if len(genres) == 0 {
			b.logger.Warn("no genres configured, skipping", "media", m)
			continue
		}
		n, err := b.renderMedia(ctx, m, genres, images)
		if err != nil {
			return err
		}
		failed += n
	}

	if failed > 0 {
		return fmt.Errorf("%d genre covers failed", failed)
	}
	b.logger.Info("all done")
	return nil
}

func (b *batch) renderMedia(ctx context.Context, media string, genres []Genre, images []string) (int, error) {
	gc := b.cfg.Genres
	outDir := filepath.Join(gc.OutputDir, gc.Language, media)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, &cover.DirectoryCreateError{Path: outDir, Err: err}
	}

	logger := b.logger.With("media", media)
	logger.Info("processing genres", "count", len(genres))

	tiles := make([]Tile, 0, len(genres))
	failed := 0
	for i, g := range genres {
		if err := ctx.Err(); err != nil {
			return failed, err
		}

		// Round-robin over the backgrounds.
		bg := images[i%len(images)]
		logger.Info("processing genre", "name", g.Name, "id", g.ID, "background", filepath.Base(bg))

		path, err := b.renderer.Render(cover.Request{
			Options:   b.cfg.Cover.Options(g.Name),
			InputPath: bg,
			OutputDir: outDir,
		})
		if err != nil {
			var fontErr *cover.FontLoadError
			if errors.As(err, &fontErr) {
				return failed, err
			}
			logger.Error("cover failed", "name", g.Name, "err", err)
			failed++
			continue
		}

		tiles = append(tiles, newTile(g, media, tileURL(gc.BaseURL, gc.Language, media, filepath.Base(path))))
	}

	manifest := filepath.Join(outDir, media+".json")
	if err := writeManifest(manifest, tiles); err != nil {
		return failed, err
	}
	logger.Info("saved manifest", "path", manifest, "tiles", len(tiles))
	return failed, nil
}

func tileURL(baseURL, language, media, filename string) string {
	return strings.TrimRight(baseURL, "/") + "/" + language + "/" + media + "/" + filename
}

// listImages returns the images of dir in name order.
func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

func writeManifest(path string, tiles []Tile) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(tiles); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
