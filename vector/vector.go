// Package vector exports certificates as PDF, SVG or EPS. The template is
// embedded as a background and the name is written as real text, never as
// rasterized glyphs.
package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/flanksource/certgen/api"
	"github.com/flanksource/certgen/fonts"
	"github.com/flanksource/certgen/render"
	"github.com/flanksource/certgen/templates"
	"github.com/jung-kurt/gofpdf"
	"golang.org/x/text/encoding/charmap"
)

// Exporter writes one document from one or more pages.
type Exporter interface {
	Format() api.Format

	// MultiPage reports whether all sides of a certificate go into one
	// document. Single-page exporters are called once per side.
	MultiPage() bool

	Export(ctx context.Context, pages []render.Page, f *fonts.Font, warn *api.Warnings) ([]byte, error)
}

// For returns the exporter for a vector format.
func For(format api.Format) (Exporter, error) {
	switch format {
	case api.FormatPDF:
		return NewPDF(), nil
	case api.FormatSVG:
		return NewSVG(), nil
	case api.FormatEPS:
		return NewEPS(), nil
	}
	return nil, fmt.Errorf("%s is not a vector format", format)
}

func singlePage(format api.Format, pages []render.Page) (render.Page, error) {
	if len(pages) != 1 {
		return render.Page{}, fmt.Errorf("%s holds exactly one page, got %d", format, len(pages))
	}
	return pages[0], nil
}

// background flattens the page background to a PNG at page size. It
// returns nil when the template has no bitmap.
func background(p render.Page) ([]byte, error) {
	if p.Background == nil || p.Background.Image == nil {
		return nil, nil
	}
	w, h := p.Size()
	return render.Encode(templates.Canvas(p.Background, w, h), api.FormatPNG, api.ExportSpec{})
}

// helveticaMetrics measures text set in the core Helvetica font, for
// outputs that fall back to it.
func helveticaMetrics(text string, size float64) api.Metrics {
	doc := gofpdf.New("P", "pt", "A4", "")
	doc.SetFont("Helvetica", "", size)
	tr := doc.UnicodeTranslatorFromDescriptor("")
	return api.Metrics{
		Width:  doc.GetStringWidth(tr(latin1(text))),
		Height: (helveticaAscent + helveticaDescent) * size,
		Ascent: helveticaAscent * size,
	}
}

// latin1 replaces every character outside ISO-8859-1, and the C1 control
// range, with '?'.
func latin1(s string) string {
	return strings.Map(func(r rune) rune {
		if _, ok := charmap.ISO8859_1.EncodeRune(r); !ok || (r >= 0x80 && r < 0xA0) {
			return '?'
		}
		return r
	}, s)
}
