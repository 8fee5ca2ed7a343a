// Package templates loads certificate backgrounds. Raster images are decoded
// directly; SVG, PDF and EPS sources keep their raw bytes for vector export
// and are flattened through a Rasterizer for previews and bitmap output.
package templates

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/flanksource/certgen/api"
	"github.com/flanksource/commons/logger"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/srwiley/oksvg"
	xdraw "golang.org/x/image/draw"
)

func init() {
	pdfapi.DisableConfigDir()
}

// ErrUnsupported is returned for template files with an unknown extension.
var ErrUnsupported = errors.New("unsupported template format")

type Kind string

const (
	KindRaster Kind = "raster"
	KindSVG    Kind = "svg"
	KindPDF    Kind = "pdf"
	KindEPS    Kind = "eps"
)

func (k Kind) IsVector() bool {
	return k == KindSVG || k == KindPDF || k == KindEPS
}

// KindFromFilename maps a template file extension to its Kind.
func KindFromFilename(name string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return KindRaster, nil
	case ".svg":
		return KindSVG, nil
	case ".pdf":
		return KindPDF, nil
	case ".eps", ".ps":
		return KindEPS, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(name))
}

// Template is a loaded background. It is never modified after Load.
type Template struct {
	Name string
	Kind Kind
	// Raw holds the source bytes, used by vector backends that can embed
	// the template without flattening it.
	Raw []byte
	// Image is the decoded or rasterized bitmap; nil when a vector source
	// could not be rasterized.
	Image  image.Image
	Width  int
	Height int
}

// Size returns the template dimensions, falling back to the default canvas.
func (t *Template) Size() (int, int) {
	if t == nil || t.Width <= 0 || t.Height <= 0 {
		return api.DefaultCanvasWidth, api.DefaultCanvasHeight
	}
	return t.Width, t.Height
}

func (t *Template) String() string {
	if t == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s (%s %dx%d)", t.Name, t.Kind, t.Width, t.Height)
}

// LoadFile reads and loads a template from disk.
func LoadFile(ctx context.Context, path string, r Rasterizer, warn *api.Warnings) (*Template, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return Load(ctx, filepath.Base(path), raw, r, warn)
}

// Load detects the template kind from name and decodes raw. Vector sources
// that no rasterizer can flatten still load, without an Image, and a
// warning is recorded.
func Load(ctx context.Context, name string, raw []byte, r Rasterizer, warn *api.Warnings) (*Template, error) {
	kind, err := KindFromFilename(name)
	if err != nil {
		return nil, err
	}
	t := &Template{Name: name, Kind: kind, Raw: raw}

	if kind == KindRaster {
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to decode template %s: %w", name, err)
		}
		t.Image = img
		t.Width, t.Height = img.Bounds().Dx(), img.Bounds().Dy()
		return t, nil
	}

	switch kind {
	case KindSVG:
		t.Width, t.Height, err = svgSize(raw)
	case KindPDF:
		t.Width, t.Height, err = pdfSize(raw)
	case KindEPS:
		t.Width, t.Height, err = epsSize(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}
	if t.Width <= 0 || t.Height <= 0 {
		warn.Addf("template %s has no size, using %dx%d", name, api.DefaultCanvasWidth, api.DefaultCanvasHeight)
		t.Width, t.Height = api.DefaultCanvasWidth, api.DefaultCanvasHeight
	}

	if r == nil || !r.Accepts(kind) {
		warn.Addf("template %s: %v for %s, background will be blank in bitmap output", name, ErrRasterizerUnavailable, kind)
		return t, nil
	}
	img, err := r.Rasterize(ctx, raw, kind, RasterOptions{Width: t.Width, Height: t.Height})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		warn.Addf("template %s could not be rasterized, background will be blank in bitmap output: %v", name, err)
		return t, nil
	}
	t.Image = img
	logger.Debugf("loaded template %s", t)
	return t, nil
}

// Canvas returns a fresh w x h RGBA image with a white background and the
// template bitmap scaled to fill it. A nil template or one without a
// bitmap yields a blank canvas.
func Canvas(t *Template, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if t == nil || t.Image == nil {
		return dst
	}
	src := t.Image
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
		return dst
	}
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}

type svgRoot struct {
	Width  string `xml:"width,attr"`
	Height string `xml:"height,attr"`
}

func svgSize(raw []byte) (int, int, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(raw), oksvg.IgnoreErrorMode)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid SVG: %w", err)
	}
	if icon.ViewBox.W > 0 && icon.ViewBox.H > 0 {
		return int(math.Round(icon.ViewBox.W)), int(math.Round(icon.ViewBox.H)), nil
	}
	var root svgRoot
	if err := xml.Unmarshal(raw, &root); err != nil {
		return 0, 0, nil
	}
	return parseLength(root.Width), parseLength(root.Height), nil
}

func parseLength(s string) int {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "px"))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(math.Round(v))
}

func pdfSize(raw []byte) (int, int, error) {
	dims, err := pdfapi.PageDims(bytes.NewReader(raw), nil)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid PDF: %w", err)
	}
	if len(dims) == 0 {
		return 0, 0, fmt.Errorf("PDF has no pages")
	}
	return int(math.Round(dims[0].Width)), int(math.Round(dims[0].Height)), nil
}

// epsSize reads the %%BoundingBox comment, which is mandatory for EPS.
func epsSize(raw []byte) (int, int, error) {
	box, err := boundingBox(raw)
	if err != nil {
		return 0, 0, err
	}
	return int(box[2] - box[0]), int(box[3] - box[1]), nil
}

// BoundingBox returns the EPS lower-left origin, needed to translate a
// nested document onto the page.
func BoundingBox(raw []byte) (llx, lly float64) {
	box, err := boundingBox(raw)
	if err != nil {
		return 0, 0
	}
	return box[0], box[1]
}

func boundingBox(raw []byte) ([4]float64, error) {
	var box [4]float64
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "%%BoundingBox:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "%%BoundingBox:"))
		if len(fields) != 4 {
			continue // (atend)
		}
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return box, fmt.Errorf("bad bounding box %q", line)
			}
			box[i] = v
		}
		return box, nil
	}
	if err := sc.Err(); err != nil {
		return box, err
	}
	return box, errors.New("EPS has no %%BoundingBox")
}
