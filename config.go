package main

import (
	"fmt"
	"image/color"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/meownoid/genre-covers/internal/cover"
)

type Config struct {
	Debug bool `yaml:"debug"`

	Cover CoverConfig `yaml:"cover"`
	Style StyleConfig `yaml:"style"`

	Genres GenresConfig `yaml:"genres"`
	Bot    BotConfig    `yaml:"bot"`
	Server ServerConfig `yaml:"server"`
}

type CoverConfig struct {
	Font     string  `yaml:"font"`
	FontSize float64 `yaml:"font_size"`
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	PaddingX int     `yaml:"padding_x"`
	PaddingY int     `yaml:"padding_y"`
}

type StyleConfig struct {
	LineSpacing        float64 `yaml:"line_spacing"`
	DescenderAllowance float64 `yaml:"descender_allowance"`
	ShadowColor        string  `yaml:"shadow_color"`
	ShadowBlur         float64 `yaml:"shadow_blur"`
	ShadowStroke       int     `yaml:"shadow_stroke"`
	GradientTop        string  `yaml:"gradient_top"`
	GradientBottom     string  `yaml:"gradient_bottom"`
	GradientBuffer     float64 `yaml:"gradient_buffer"`
}

type Genre struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

type GenresConfig struct {
	Language  string             `yaml:"language"`
	InputDir  string             `yaml:"input_dir"`
	OutputDir string             `yaml:"output_dir"`
	BaseURL   string             `yaml:"base_url"`
	Shuffle   bool               `yaml:"shuffle"`
	Media     map[string][]Genre `yaml:"media"`
}

type BotConfig struct {
	Token     string   `yaml:"token"`
	Workers   int      `yaml:"workers"`
	Whitelist []int64  `yaml:"whitelist"`
	Blacklist []int64  `yaml:"blacklist"`
	Phrases   []string `yaml:"phrases"`
	Group     struct {
		Enabled               bool    `yaml:"enabled"`
		ActivationPhrase      string  `yaml:"activation_phrase"`
		ActivationProbability float64 `yaml:"activation_probability"`
	} `yaml:"group"`
}

type ServerConfig struct {
	Addr         string `yaml:"addr"`
	MaxUploadMiB int64  `yaml:"max_upload_mib"`
	// MaxDimension caps the requested geometry and the decoded upload size.
	MaxDimension int `yaml:"max_dimension"`
	MaxFontSize  int `yaml:"max_font_size"`
}

// DefaultConfig mirrors the defaults of the genre generator.
func DefaultConfig() Config {
	style := cover.DefaultStyle()
	return Config{
		Cover: CoverConfig{
			FontSize: 60,
			PaddingX: 80,
			PaddingY: 80,
		},
		Style: StyleConfig{
			LineSpacing:        style.LineSpacing,
			DescenderAllowance: style.DescenderAllowance,
			ShadowColor:        formatHexColor(style.ShadowColor),
			ShadowBlur:         style.ShadowBlur,
			ShadowStroke:       style.ShadowStroke,
			GradientTop:        formatHexColor(style.GradientTop),
			GradientBottom:     formatHexColor(style.GradientBottom),
			GradientBuffer:     style.GradientBuffer,
		},
		Genres: GenresConfig{
			Language:  "en",
			InputDir:  "bg_images",
			OutputDir: "output",
			BaseURL:   "http://localhost:8080",
		},
		Bot: BotConfig{
			Workers: 1,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			MaxUploadMiB: 20,
			MaxDimension: 8192,
			MaxFontSize:  1000,
		},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	err = yaml.UnmarshalStrict(data, &config)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	if _, err := config.Style.Style(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	if err := config.Cover.Options("").Geometry.Validate(); err != nil {
		return nil, fmt.Errorf("parse %s: cover: %w", configPath, err)
	}

	if config.Server.MaxUploadMiB <= 0 || config.Server.MaxDimension <= 0 || config.Server.MaxFontSize <= 0 {
		return nil, fmt.Errorf("parse %s: server limits must be positive", configPath)
	}

	return &config, nil
}

// Options builds render options for caption from the cover section.
func (c CoverConfig) Options(caption string) cover.Options {
	return cover.Options{
		Caption:  caption,
		Font:     cover.FontSpec{Path: c.Font, Size: c.FontSize},
		Geometry: cover.Geometry{Width: c.Width, Height: c.Height},
		PaddingX: c.PaddingX,
		PaddingY: c.PaddingY,
	}
}

func (s StyleConfig) Style() (cover.Style, error) {
	shadow, err := parseHexColor(s.ShadowColor)
	if err != nil {
		return cover.Style{}, fmt.Errorf("shadow_color: %w", err)
	}
	top, err := parseHexColor(s.GradientTop)
	if err != nil {
		return cover.Style{}, fmt.Errorf("gradient_top: %w", err)
	}
	bottom, err := parseHexColor(s.GradientBottom)
	if err != nil {
		return cover.Style{}, fmt.Errorf("gradient_bottom: %w", err)
	}

	return cover.Style{
		LineSpacing:        s.LineSpacing,
		DescenderAllowance: s.DescenderAllowance,
		ShadowColor:        shadow,
		ShadowBlur:         s.ShadowBlur,
		ShadowStroke:       s.ShadowStroke,
		GradientTop:        top,
		GradientBottom:     bottom,
		GradientBuffer:     s.GradientBuffer,
	}, nil
}

// parseHexColor accepts #rrggbb and #rrggbbaa.
func parseHexColor(hex string) (color.NRGBA, error) {
	s := strings.TrimPrefix(hex, "#")
	if len(s) != 6 && len(s) != 8 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", hex)
	}
	if len(s) == 6 {
		s += "ff"
	}

	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", hex)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func formatHexColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
