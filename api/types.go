package api

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Color is an opaque RGB text color.
type Color struct {
	R, G, B uint8
}

// ParseColor parses #RRGGBB or #RGB, with or without the leading '#'.
func ParseColor(hex string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Color{}, fmt.Errorf("invalid color %q: expected #RRGGBB", hex)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

func MustParseColor(hex string) Color {
	c, err := ParseColor(hex)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}

func (c Color) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

func (c Color) MarshalText() ([]byte, error) {
	return []byte(c.Hex()), nil
}

func (c *Color) UnmarshalText(b []byte) error {
	v, err := ParseColor(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Position is a top-left draw position in template units (pixels for
// raster output, points for vector output).
type Position struct {
	X, Y float64
}

// Int truncates to integer coordinates. Callers truncate only at the final
// drawing step.
func (p Position) Int() image.Point {
	return image.Pt(int(p.X), int(p.Y))
}

// Metrics describes a measured string. Height is ascent plus descent of the
// face; Ascent is the baseline offset from the top edge.
type Metrics struct {
	Width  float64
	Height float64
	Ascent float64
}

// Adjustment is a per-name override. A zero FontSize means "use the
// global size".
type Adjustment struct {
	DX       int `json:"dx" yaml:"dx"`
	DY       int `json:"dy" yaml:"dy"`
	FontSize int `json:"font_size,omitempty" yaml:"font_size,omitempty"`
}

// GlobalStyle is the placement shared by every name.
type GlobalStyle struct {
	AnchorX      float64   `json:"anchor_x" yaml:"anchor_x"`
	AnchorY      float64   `json:"anchor_y" yaml:"anchor_y"`
	GlobalDX     float64   `json:"global_dx" yaml:"global_dx"`
	GlobalDY     float64   `json:"global_dy" yaml:"global_dy"`
	BaseFontSize int       `json:"font_size" yaml:"font_size"`
	FontScale    float64   `json:"font_scale" yaml:"font_scale"`
	Color        Color     `json:"color" yaml:"color"`
	Alignment    Alignment `json:"alignment" yaml:"alignment"`
}

func DefaultGlobalStyle() GlobalStyle {
	return GlobalStyle{
		AnchorX:      1000,
		AnchorY:      600,
		BaseFontSize: DefaultFontSize,
		FontScale:    1,
		Color:        MustParseColor(DefaultColor),
		Alignment:    AlignCenter,
	}
}

// FontSize is the scaled global size, never below 1.
func (s GlobalStyle) FontSize() int {
	scale := s.FontScale
	if scale <= 0 {
		scale = 1
	}
	size := int(math.Round(float64(s.BaseFontSize) * scale))
	if size < 1 {
		return 1
	}
	return size
}

// ExportSpec is resolved once per export and applied to every name.
type ExportSpec struct {
	Format          Format `json:"format" yaml:"format"`
	FilenamePattern string `json:"filename_pattern" yaml:"filename_pattern"`
	Tier            Tier   `json:"tier,omitempty" yaml:"tier,omitempty"`
	RasterWidth     int    `json:"raster_width,omitempty" yaml:"raster_width,omitempty"`
	DPI             int    `json:"dpi,omitempty" yaml:"dpi,omitempty"`
	JPEGQuality     int    `json:"jpeg_quality,omitempty" yaml:"jpeg_quality,omitempty"`
	Concurrency     int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
}

func DefaultExportSpec() ExportSpec {
	return ExportSpec{
		Format:          FormatPNG,
		FilenamePattern: DefaultPattern,
		Tier:            TierStandard,
		Concurrency:     1,
	}
}

// Resolve fills unset raster values from the tier and validates the rest.
func (e ExportSpec) Resolve() (ExportSpec, error) {
	if e.Format == "" {
		e.Format = FormatPNG
	}
	if _, err := ParseFormat(string(e.Format)); err != nil {
		return e, err
	}
	if strings.TrimSpace(e.FilenamePattern) == "" {
		e.FilenamePattern = DefaultPattern
	}
	t, err := e.Tier.Settings()
	if err != nil {
		return e, err
	}
	if e.RasterWidth == 0 {
		e.RasterWidth = t.RasterWidth
	}
	if e.DPI == 0 {
		e.DPI = t.DPI
	}
	if e.JPEGQuality == 0 {
		e.JPEGQuality = t.JPEGQuality
	}
	if e.RasterWidth < 0 || e.DPI < 0 {
		return e, fmt.Errorf("raster width and dpi must not be negative")
	}
	if e.DPI > MaxDPI {
		return e, fmt.Errorf("dpi %d out of range 1-%d", e.DPI, MaxDPI)
	}
	if e.JPEGQuality < 1 || e.JPEGQuality > 100 {
		return e, fmt.Errorf("jpeg quality %d out of range 1-100", e.JPEGQuality)
	}
	if e.Concurrency < 1 {
		e.Concurrency = 1
	}
	return e, nil
}

// OutputFile is one archive member.
type OutputFile struct {
	Name string
	Data []byte
}
