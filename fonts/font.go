// Package fonts resolves the font used for names and measures text with it.
//
// Resolution never fails: an uploaded font that cannot be read falls back to
// the bundled default, then to the Go Regular face compiled into the binary,
// and finally to a 7x13 bitmap face.
package fonts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flanksource/certgen/api"
	"github.com/flanksource/commons/logger"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/math/fixed"
)

// Source records which step of the fallback chain produced a font.
type Source string

const (
	SourceUploaded Source = "uploaded"
	SourceBundled  Source = "bundled"
	SourceBuiltin  Source = "builtin"
	SourceBitmap   Source = "bitmap"
)

// DefaultBundledPath is where the bundled default font is looked up,
// relative to the working directory.
const DefaultBundledPath = "fonts/default.ttf"

// Font is an immutable, parsed font program. It is safe for concurrent use;
// every Face call returns a new face.
type Font struct {
	// Family is a display name taken from the font's name table.
	Family string
	// PostScriptName is used by backends that reference fonts by name.
	PostScriptName string
	Source         Source
	Path           string
	// Data holds the raw TrueType program; nil for the bitmap face.
	Data []byte

	ttf *truetype.Font
}

// Parse loads a TrueType program from memory.
func Parse(name string, data []byte, src Source) (*Font, error) {
	ttf, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", name, err)
	}
	f := &Font{
		Family:         ttf.Name(truetype.NameIDFontFamily),
		PostScriptName: ttf.Name(truetype.NameIDPostscriptName),
		Source:         src,
		Path:           name,
		Data:           data,
		ttf:            ttf,
	}
	if f.Family == "" {
		f.Family = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}
	return f, nil
}

func LoadFile(path string, src Source) (*Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font: %w", err)
	}
	return Parse(path, data, src)
}

// Builtin returns the Go Regular face shipped with golang.org/x/image.
func Builtin() *Font {
	f, err := Parse("Go-Regular.ttf", goregular.TTF, SourceBuiltin)
	if err != nil {
		logger.Errorf("built-in font unusable, using bitmap face: %v", err)
		return Bitmap()
	}
	return f
}

// Bitmap is the last-resort fixed 7x13 face. It cannot be scaled.
func Bitmap() *Font {
	return &Font{Family: "basic", Source: SourceBitmap}
}

// Resolve walks the chain uploaded -> bundled -> builtin. Empty paths skip a
// step without a warning; unreadable files are reported to warn.
func Resolve(uploaded, bundled string, warn *api.Warnings) *Font {
	if uploaded != "" {
		f, err := LoadFile(uploaded, SourceUploaded)
		if err == nil {
			return f
		}
		warn.Addf("font %s could not be loaded, falling back: %v", filepath.Base(uploaded), err)
	}
	if bundled != "" {
		if _, err := os.Stat(bundled); err == nil {
			f, err := LoadFile(bundled, SourceBundled)
			if err == nil {
				return f
			}
			warn.Addf("bundled font %s could not be loaded, using built-in font: %v", bundled, err)
		} else {
			logger.Debugf("bundled font %s not found, using built-in font", bundled)
		}
	}
	return Builtin()
}

// IsOutline reports whether the font has scalable outlines that vector
// backends can embed.
func (f *Font) IsOutline() bool {
	return f != nil && f.ttf != nil
}

// Face returns a face at size points (1pt = 1px at 72 DPI). Hinting is off
// so advances match the unhinted widths used by the PDF backend.
func (f *Font) Face(size float64) font.Face {
	if !f.IsOutline() {
		return basicfont.Face7x13
	}
	return truetype.NewFace(f.ttf, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Measure returns the advance width and line metrics of text at size.
func (f *Font) Measure(text string, size float64) api.Metrics {
	return MeasureFace(f.Face(size), text)
}

func MeasureFace(face font.Face, text string) api.Metrics {
	m := face.Metrics()
	return api.Metrics{
		Width:  toFloat(font.MeasureString(face, text)),
		Height: toFloat(m.Ascent + m.Descent),
		Ascent: toFloat(m.Ascent),
	}
}

// VerticalMetrics returns ascent and descent as fractions of the em size.
func (f *Font) VerticalMetrics() (ascent, descent float64) {
	if !f.IsOutline() {
		return 11.0 / 13.0, 2.0 / 13.0
	}
	m := f.Face(1000).Metrics()
	return toFloat(m.Ascent) / 1000, toFloat(m.Descent) / 1000
}

// GlyphIndex returns the glyph for r, 0 (.notdef) when the font lacks it.
func (f *Font) GlyphIndex(r rune) int {
	if !f.IsOutline() {
		return 0
	}
	return int(f.ttf.Index(r))
}

// BBox returns the font bounding box as fractions of the em size.
func (f *Font) BBox() (xmin, ymin, xmax, ymax float64) {
	if !f.IsOutline() {
		return 0, -2.0 / 13.0, 7.0 / 13.0, 11.0 / 13.0
	}
	b := f.ttf.Bounds(fixed.I(1000))
	return toFloat(b.Min.X) / 1000, toFloat(b.Min.Y) / 1000, toFloat(b.Max.X) / 1000, toFloat(b.Max.Y) / 1000
}

func (f *Font) String() string {
	if f == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s (%s)", f.Family, f.Source)
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
