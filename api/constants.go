package api

import (
	"fmt"
	"strings"
)

// Format is an output file format.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpeg"
	FormatPDF  Format = "pdf"
	FormatSVG  Format = "svg"
	FormatEPS  Format = "eps"
)

// Formats lists every supported output format in flag order.
func Formats() []Format {
	return []Format{FormatPNG, FormatJPEG, FormatPDF, FormatSVG, FormatEPS}
}

// ParseFormat accepts the canonical names, "jpg", and labels with a
// parenthesized note such as "PDF (vetor)".
func ParseFormat(s string) (Format, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if i := strings.Index(v, "("); i > 0 {
		v = strings.TrimSpace(v[:i])
	}
	switch v {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "pdf":
		return FormatPDF, nil
	case "svg":
		return FormatSVG, nil
	case "eps":
		return FormatEPS, nil
	}
	return "", fmt.Errorf("unsupported output format %q (expected one of png, jpeg, pdf, svg, eps)", s)
}

// Extension returns the file extension without the leading dot.
func (f Format) Extension() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

func (f Format) IsVector() bool {
	return f == FormatPDF || f == FormatSVG || f == FormatEPS
}

func (f Format) MarshalText() ([]byte, error) {
	return []byte(f), nil
}

func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Alignment controls which point of the text sits on the anchor.
type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// ParseAlignment also accepts two-letter anchor codes (mm, la, ma, ra).
func ParseAlignment(s string) (Alignment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "center", "centre", "middle", "mm", "ma":
		return AlignCenter, nil
	case "left", "la":
		return AlignLeft, nil
	case "right", "ra":
		return AlignRight, nil
	}
	return "", fmt.Errorf("unsupported alignment %q (expected left, center or right)", s)
}

func (a Alignment) MarshalText() ([]byte, error) {
	return []byte(a), nil
}

func (a *Alignment) UnmarshalText(b []byte) error {
	v, err := ParseAlignment(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Side identifies the certificate face a file belongs to.
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// Tier is a named raster quality preset (resolution x DPI x JPEG quality).
type Tier string

const (
	TierDraft    Tier = "draft"
	TierStandard Tier = "standard"
	TierPrint    Tier = "print"
)

// TierSettings holds the raster values a tier expands to. A zero
// RasterWidth keeps the template width.
type TierSettings struct {
	RasterWidth int
	DPI         int
	JPEGQuality int
}

var tiers = map[Tier]TierSettings{
	TierDraft:    {RasterWidth: 1280, DPI: 96, JPEGQuality: 75},
	TierStandard: {RasterWidth: 0, DPI: 150, JPEGQuality: 90},
	TierPrint:    {RasterWidth: 3508, DPI: 300, JPEGQuality: 95},
}

func (t Tier) Settings() (TierSettings, error) {
	if t == "" {
		return tiers[TierStandard], nil
	}
	s, ok := tiers[Tier(strings.ToLower(string(t)))]
	if !ok {
		return TierSettings{}, fmt.Errorf("unknown quality tier %q (expected draft, standard or print)", t)
	}
	return s, nil
}

const (
	// DefaultCanvasWidth and DefaultCanvasHeight size the blank page used
	// when no template image is available.
	DefaultCanvasWidth  = 1280
	DefaultCanvasHeight = 720

	DefaultPattern  = "{name}"
	DefaultFontSize = 48
	DefaultColor    = "#FFB000"

	// MaxDPI is the largest density a JFIF header can record.
	MaxDPI = 65535
)
