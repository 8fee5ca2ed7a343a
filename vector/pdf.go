package vector

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/flanksource/certgen/api"
	"github.com/flanksource/certgen/fonts"
	"github.com/flanksource/certgen/layout"
	"github.com/flanksource/certgen/render"
	"github.com/flanksource/certgen/templates"
	"github.com/flanksource/commons/logger"
	"github.com/jung-kurt/gofpdf"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func init() {
	pdfapi.DisableConfigDir()
}

const (
	pdfFontFamily = "certfont"

	// Helvetica ascender and descender from the standard AFM, per em.
	helveticaAscent  = 0.718
	helveticaDescent = 0.207
)

// Epoch is the creation date written into every PDF so that identical
// inputs give identical bytes.
var Epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// PDF writes one page per side with gofpdf. PDF templates are not
// flattened: the text page is laid over the template with pdfcpu.
type PDF struct {
	CreationDate time.Time
}

func NewPDF() *PDF {
	return &PDF{CreationDate: Epoch}
}

func (p *PDF) Format() api.Format { return api.FormatPDF }

func (p *PDF) MultiPage() bool { return true }

func (p *PDF) Export(ctx context.Context, pages []render.Page, f *fonts.Font, warn *api.Warnings) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdf needs at least one page")
	}
	w, h := pages[0].Size()
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: float64(w), Ht: float64(h)},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetCreationDate(p.CreationDate)
	doc.SetModificationDate(p.CreationDate)
	doc.SetCatalogSort(true)
	doc.SetCreator("certgen", true)

	family, asc, desc, tr := registerFont(doc, f, warn)

	var underlays []int
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc.AddPage()
		pw, ph := page.Size()

		if page.Background != nil && page.Background.Kind == templates.KindPDF {
			underlays = append(underlays, i)
		} else {
			png, err := background(page)
			if err != nil {
				return nil, err
			}
			if png != nil {
				name := fmt.Sprintf("background-%d", i)
				opts := gofpdf.ImageOptions{ImageType: "PNG"}
				doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(png))
				doc.ImageOptions(name, 0, 0, float64(pw), float64(ph), false, opts, 0, "")
			}
		}

		if page.Text.Value == "" {
			continue
		}
		text := tr(page.Text.Value)
		size := page.Text.Size
		doc.SetFont(family, "", size)
		c := page.Text.Color
		doc.SetTextColor(int(c.R), int(c.G), int(c.B))
		m := api.Metrics{
			Width:  doc.GetStringWidth(text),
			Height: (asc + desc) * size,
			Ascent: asc * size,
		}
		pos := page.Text.Place(m)
		doc.Text(pos.X, layout.Baseline(pos, m), text)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}

	out := buf.Bytes()
	for _, i := range underlays {
		stamped, err := underlay(out, pages[i].Background.Raw, i+1)
		if err != nil {
			return nil, fmt.Errorf("failed to apply PDF template %s: %w", pages[i].Background.Name, err)
		}
		out = stamped
	}
	if len(underlays) > 0 {
		out = pinStamp(out, p.CreationDate)
	}
	return out, nil
}

// registerFont adds f to doc as a UTF-8 font. When that is not possible the
// core Helvetica font is used instead, with a cp1252 translator for text.
func registerFont(doc *gofpdf.Fpdf, f *fonts.Font, warn *api.Warnings) (family string, asc, desc float64, tr func(string) string) {
	if f.IsOutline() {
		doc.AddUTF8FontFromBytes(pdfFontFamily, "", f.Data)
		if doc.Ok() {
			asc, desc = f.VerticalMetrics()
			return pdfFontFamily, asc, desc, func(s string) string { return s }
		}
		warn.Addf("font %s could not be embedded in PDF, using Helvetica: %v", f.Family, doc.Error())
		doc.ClearError()
	} else {
		warn.Addf("font %s has no outlines, using Helvetica in PDF", f.Family)
	}
	return "Helvetica", helveticaAscent, helveticaDescent, doc.UnicodeTranslatorFromDescriptor("")
}

// underlay draws the first page of tpl beneath the content of page.
func underlay(doc, tpl []byte, page int) ([]byte, error) {
	dir, err := os.MkdirTemp("", "certgen-pdf-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "template.pdf")
	if err := os.WriteFile(path, firstPage(tpl), 0o600); err != nil {
		return nil, err
	}

	wm, err := pdfapi.PDFWatermark(path, "scalefactor:1 abs, pos:c, rot:0", false, false, types.POINTS)
	if err != nil {
		return nil, err
	}
	// Plain objects and a plain trailer keep the dates and file ID
	// reachable for pinStamp.
	conf := model.NewDefaultConfiguration()
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	var out bytes.Buffer
	if err := pdfapi.AddWatermarks(bytes.NewReader(doc), &out, []string{fmt.Sprint(page)}, wm, conf); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

var (
	modDatePattern = regexp.MustCompile(`/ModDate\s*\(D:([^)]*)\)`)
	fileIDPattern  = regexp.MustCompile(`/ID\s*\[\s*<([0-9A-Fa-f]*)>\s*<([0-9A-Fa-f]*)>\s*\]`)
)

// pinStamp replaces the modification date and file ID pdfcpu writes from
// the clock with values derived from date and the document itself. Every
// replacement keeps its length, so the xref offsets stay valid.
func pinStamp(doc []byte, date time.Time) []byte {
	out := bytes.Clone(doc)
	stamp := date.UTC().Format("20060102150405")
	for _, m := range modDatePattern.FindAllSubmatchIndex(out, -1) {
		v := out[m[2]:m[3]]
		for i := range v {
			switch {
			case i < len(stamp):
				v[i] = stamp[i]
			case v[i] >= '0' && v[i] <= '9':
				v[i] = '0'
			}
		}
	}

	ids := fileIDPattern.FindAllSubmatchIndex(out, -1)
	for _, m := range ids {
		for _, g := range [][2]int{{m[2], m[3]}, {m[4], m[5]}} {
			for i := g[0]; i < g[1]; i++ {
				out[i] = '0'
			}
		}
	}
	digest := md5.Sum(out)
	sum := hex.EncodeToString(digest[:])
	for _, m := range ids {
		for _, g := range [][2]int{{m[2], m[3]}, {m[4], m[5]}} {
			for i := g[0]; i < g[1]; i++ {
				out[i] = sum[(i-g[0])%len(sum)]
			}
		}
	}
	return out
}

// firstPage trims multi-page templates so only page 1 is stamped.
func firstPage(tpl []byte) []byte {
	n, err := pdfapi.PageCount(bytes.NewReader(tpl), nil)
	if err != nil || n <= 1 {
		return tpl
	}
	var out bytes.Buffer
	if err := pdfapi.Trim(bytes.NewReader(tpl), &out, []string{"1"}, nil); err != nil {
		logger.Debugf("could not trim PDF template, stamping as is: %v", err)
		return tpl
	}
	return out.Bytes()
}
