package vector

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"context"
	"encoding/ascii85"
	"fmt"
	"image"
	"io"
	"strings"

	"github.com/flanksource/certgen/api"
	"github.com/flanksource/certgen/fonts"
	"github.com/flanksource/certgen/layout"
	"github.com/flanksource/certgen/render"
	"github.com/flanksource/certgen/templates"
	"golang.org/x/text/encoding/charmap"
)

const epsProlog = `/reencodeISO {
  findfont dup length dict begin
  { 1 index /FID ne { def } { pop pop } ifelse } forall
  /Encoding ISOLatin1Encoding def
  currentdict end definefont pop
} bind def
/BeginEPSF {
  /b4_Inc_state save def
  /dict_count countdictstack def
  /op_count count 1 sub def
  userdict begin
  /showpage { } def
  0 setgray 0 setlinecap 1 setlinewidth 0 setlinejoin
  10 setmiterlimit [ ] 0 setdash newpath
} bind def
/EndEPSF {
  count op_count sub { pop } repeat
  countdictstack dict_count sub { end } repeat
  b4_Inc_state restore
} bind def
`

const epsFontName = "CertificateName"

// EPS writes a single-page Encapsulated PostScript file. Outline fonts are
// embedded as Type 42 so the text is drawn with the font it was measured
// with; bitmap faces fall back to Helvetica and are measured as Helvetica.
type EPS struct{}

func NewEPS() *EPS {
	return &EPS{}
}

func (e *EPS) Format() api.Format { return api.FormatEPS }

func (e *EPS) MultiPage() bool { return false }

func (e *EPS) Export(ctx context.Context, pages []render.Page, f *fonts.Font, warn *api.Warnings) ([]byte, error) {
	page, err := singlePage(api.FormatEPS, pages)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, h := page.Size()

	var buf bytes.Buffer
	out := bufio.NewWriter(&buf)
	fmt.Fprintf(out, "%%!PS-Adobe-3.0 EPSF-3.0\n")
	fmt.Fprintf(out, "%%%%BoundingBox: 0 0 %d %d\n", w, h)
	fmt.Fprintf(out, "%%%%HiResBoundingBox: 0 0 %d %d\n", w, h)
	fmt.Fprintf(out, "%%%%Creator: certgen\n")
	fmt.Fprintf(out, "%%%%Title: %s\n", dscText(page.Text.Value))
	fmt.Fprintf(out, "%%%%LanguageLevel: 3\n")
	fontDef, m := epsFont(page, f, warn)
	if fontDef != nil {
		fmt.Fprintf(out, "%%%%DocumentSuppliedResources: font %s\n", epsFontName)
	}
	fmt.Fprintf(out, "%%%%EndComments\n")
	fmt.Fprintf(out, "%%%%BeginProlog\n%s%%%%EndProlog\n", epsProlog)

	if fontDef != nil {
		fmt.Fprintf(out, "%%%%BeginSetup\n")
		out.Write(fontDef)
		fmt.Fprintf(out, "%%%%EndSetup\n")
	}
	if err := epsBackground(out, page, w, h); err != nil {
		return nil, err
	}

	if page.Text.Value != "" {
		pos := page.Text.Place(m)
		c := page.Text.Color
		if fontDef == nil {
			fmt.Fprintf(out, "/%s /Helvetica reencodeISO\n", epsFontName)
		}
		fmt.Fprintf(out, "/%s findfont %s scalefont setfont\n", epsFontName, num(page.Text.Size))
		fmt.Fprintf(out, "%s %s %s setrgbcolor\n", num(float64(c.R)/255), num(float64(c.G)/255), num(float64(c.B)/255))
		fmt.Fprintf(out, "%s %s moveto\n", num(pos.X), num(float64(h)-layout.Baseline(pos, m)))
		fmt.Fprintf(out, "(%s) show\n", psString(latin1(page.Text.Value)))
	}

	fmt.Fprintf(out, "showpage\n%%%%Trailer\n%%%%EOF\n")
	if err := out.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// epsFont returns the Type 42 definition of f and the name metrics. The
// definition is nil when the text has to be set in Helvetica instead.
func epsFont(page render.Page, f *fonts.Font, warn *api.Warnings) ([]byte, api.Metrics) {
	text := latin1(page.Text.Value)
	if text == "" {
		return nil, api.Metrics{}
	}
	if f.IsOutline() {
		var def bytes.Buffer
		err := writeType42(&def, epsFontName, f)
		if err == nil {
			return def.Bytes(), f.Measure(text, page.Text.Size)
		}
		warn.Addf("font %s could not be embedded in EPS, using Helvetica: %v", f.Family, err)
	} else {
		warn.Addf("font %s has no outlines, using Helvetica in EPS", f.Family)
	}
	return nil, helveticaMetrics(text, page.Text.Size)
}

// epsBackground nests EPS templates as documents and draws every other
// background as a Flate-compressed RGB image.
func epsBackground(out io.Writer, page render.Page, w, h int) error {
	tpl := page.Background
	if tpl != nil && tpl.Kind == templates.KindEPS && bytes.HasPrefix(tpl.Raw, []byte("%!")) {
		llx, lly := templates.BoundingBox(tpl.Raw)
		fmt.Fprintf(out, "BeginEPSF\n")
		fmt.Fprintf(out, "%s %s scale\n", num(float64(w)/float64(tpl.Width)), num(float64(h)/float64(tpl.Height)))
		fmt.Fprintf(out, "%s %s translate\n", num(-llx), num(-lly))
		fmt.Fprintf(out, "%%%%BeginDocument: %s\n", dscText(tpl.Name))
		out.Write(tpl.Raw)
		if !bytes.HasSuffix(tpl.Raw, []byte("\n")) {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%%%%EndDocument\nEndEPSF\n")
		return nil
	}
	if tpl == nil || tpl.Image == nil {
		return nil
	}

	img := templates.Canvas(tpl, w, h)
	fmt.Fprintf(out, "gsave\n%d %d scale\n/DeviceRGB setcolorspace\n", w, h)
	fmt.Fprintf(out, "<< /ImageType 1 /Width %d /Height %d /BitsPerComponent 8\n", w, h)
	fmt.Fprintf(out, "   /Decode [0 1 0 1 0 1] /ImageMatrix [%d 0 0 -%d 0 %d]\n", w, h, h)
	fmt.Fprintf(out, "   /DataSource currentfile /ASCII85Decode filter /FlateDecode filter\n>> image\n")
	if err := writeRGB(out, img); err != nil {
		return err
	}
	fmt.Fprintf(out, "grestore\n")
	return nil
}

// writeRGB streams the pixels as zlib-compressed, ASCII85-encoded RGB,
// wrapped at 64 columns and terminated with ~>.
func writeRGB(out io.Writer, img *image.RGBA) error {
	lines := &lineWrapper{w: out, width: 64}
	a85 := ascii85.NewEncoder(lines)
	z := zlib.NewWriter(a85)

	b := img.Bounds()
	row := make([]byte, 0, b.Dx()*3)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row = row[:0]
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			row = append(row, c.R, c.G, c.B)
		}
		if _, err := z.Write(row); err != nil {
			return err
		}
	}
	if err := z.Close(); err != nil {
		return err
	}
	if err := a85.Close(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n~>\n")
	return err
}

type lineWrapper struct {
	w     io.Writer
	width int
	col   int
}

func (l *lineWrapper) Write(p []byte) (int, error) {
	for i, c := range p {
		if l.col == l.width {
			if _, err := l.w.Write([]byte{'\n'}); err != nil {
				return i, err
			}
			l.col = 0
		}
		if _, err := l.w.Write([]byte{c}); err != nil {
			return i, err
		}
		l.col++
	}
	return len(p), nil
}

// psString encodes s as ISO-8859-1 and escapes it for a PostScript string
// literal. Characters outside Latin-1 become '?'.
func psString(s string) string {
	var b strings.Builder
	for _, r := range s {
		c, ok := charmap.ISO8859_1.EncodeRune(r)
		if !ok {
			c = '?'
		}
		switch {
		case c == '(' || c == ')' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 0x20 || c >= 0x7F:
			fmt.Fprintf(&b, "\\%03o", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// dscText keeps DSC comments 7-bit and single-line.
func dscText(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r >= 0x7F {
			return '?'
		}
		return r
	}, s)
}

func num(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}
