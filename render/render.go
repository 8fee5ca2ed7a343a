// Package render draws names onto bitmap copies of a template and encodes
// the result as PNG or JPEG.
package render

import (
	"image"

	"github.com/flanksource/certgen/api"
	"github.com/flanksource/certgen/fonts"
	"github.com/flanksource/certgen/layout"
	"github.com/flanksource/certgen/templates"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

// Page is one side of one certificate: a background and the name on it.
type Page struct {
	Background *templates.Template
	// Width and Height override the background size, used to fit a back
	// template to the front page.
	Width  int
	Height int
	Text   layout.Text
}

// Size returns the page size in pixels (raster) or points (vector).
func (p Page) Size() (int, int) {
	if p.Width > 0 && p.Height > 0 {
		return p.Width, p.Height
	}
	return p.Background.Size()
}

// Layout measures the name with f and returns its metrics and top-left
// position.
func (p Page) Layout(f *fonts.Font) (api.Metrics, api.Position) {
	m := f.Measure(p.Text.Value, p.Text.Size)
	return m, p.Text.Place(m)
}

// Render draws the page into a new RGBA image. The template is never
// modified.
func Render(p Page, f *fonts.Font) *image.RGBA {
	w, h := p.Size()
	canvas := templates.Canvas(p.Background, w, h)
	if p.Text.Value == "" {
		return canvas
	}
	face := f.Face(p.Text.Size)
	m := fonts.MeasureFace(face, p.Text.Value)
	pos := p.Text.Place(m)
	Draw(canvas, p.Text.Value, pos, m, face, p.Text.Color)
	return canvas
}

// Draw writes text onto dst with its box's top-left corner at pos.
func Draw(dst *image.RGBA, text string, pos api.Position, m api.Metrics, face font.Face, c api.Color) {
	dc := gg.NewContextForRGBA(dst)
	dc.SetFontFace(face)
	dc.SetColor(c.RGBA())
	dc.DrawString(text, pos.X, layout.Baseline(pos, m))
}
