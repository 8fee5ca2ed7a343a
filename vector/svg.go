package vector

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	svg "github.com/ajstarks/svgo/float"
	"github.com/flanksource/certgen/api"
	"github.com/flanksource/certgen/fonts"
	"github.com/flanksource/certgen/layout"
	"github.com/flanksource/certgen/render"
	"github.com/flanksource/certgen/templates"
)

const svgFontFamily = "CertificateName"

// SVG writes a single page with svgo. Outline fonts are embedded as an
// @font-face data URI so the text renders with the measured font. Bitmap
// faces are replaced by Helvetica and placed with Helvetica metrics.
type SVG struct{}

func NewSVG() *SVG {
	return &SVG{}
}

func (s *SVG) Format() api.Format { return api.FormatSVG }

func (s *SVG) MultiPage() bool { return false }

func (s *SVG) Export(ctx context.Context, pages []render.Page, f *fonts.Font, warn *api.Warnings) ([]byte, error) {
	page, err := singlePage(api.FormatSVG, pages)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, h := page.Size()

	var buf bytes.Buffer
	doc := svg.New(&buf)
	doc.Start(float64(w), float64(h), fmt.Sprintf(`viewBox="0 0 %d %d"`, w, h))

	family := "Helvetica, Arial, sans-serif"
	if f.IsOutline() {
		doc.Def()
		doc.Style("text/css", fmt.Sprintf(
			"@font-face { font-family: '%s'; src: url(data:font/ttf;base64,%s) format('truetype'); }",
			svgFontFamily, base64.StdEncoding.EncodeToString(f.Data)))
		doc.DefEnd()
		family = fmt.Sprintf("'%s', sans-serif", svgFontFamily)
	} else {
		warn.Addf("font %s has no outlines, using Helvetica in SVG", f.Family)
	}

	href, err := svgBackground(page)
	if err != nil {
		return nil, err
	}
	if href != "" {
		doc.Image(0, 0, w, h, href, `preserveAspectRatio="none"`)
	}

	if page.Text.Value != "" {
		m, pos := page.Layout(f)
		if !f.IsOutline() {
			m = helveticaMetrics(page.Text.Value, page.Text.Size)
			pos = page.Text.Place(m)
		}
		doc.Text(pos.X, layout.Baseline(pos, m), page.Text.Value,
			`xml:space="preserve"`,
			fmt.Sprintf("font-family:%s;font-size:%gpx;fill:%s;text-anchor:start",
				family, page.Text.Size, page.Text.Color.Hex()))
	}
	doc.End()
	return buf.Bytes(), nil
}

// svgBackground returns a data URI for the page background. SVG templates
// that could not be rasterized are embedded as they are.
func svgBackground(p render.Page) (string, error) {
	png, err := background(p)
	if err != nil {
		return "", err
	}
	if png != nil {
		return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
	}
	if p.Background != nil && p.Background.Kind == templates.KindSVG {
		return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString(p.Background.Raw), nil
	}
	return "", nil
}
