package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/flanksource/certgen/api"
	"github.com/flanksource/certgen/fonts"
	"github.com/flanksource/certgen/layout"
	"github.com/flanksource/certgen/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whiteTemplate(t *testing.T, w, h int) *templates.Template {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xFF
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	tpl, err := templates.Load(context.Background(), "front.png", buf.Bytes(), nil, nil)
	require.NoError(t, err)
	return tpl
}

// inkBounds returns the bounding box of non-white pixels.
func inkBounds(img *image.RGBA) image.Rectangle {
	var r image.Rectangle
	first := true
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y) == (color.RGBA{255, 255, 255, 255}) {
				continue
			}
			p := image.Rect(x, y, x+1, y+1)
			if first {
				r, first = p, false
			} else {
				r = r.Union(p)
			}
		}
	}
	return r
}

func textAt(x, y float64, align api.Alignment) layout.Text {
	return layout.Text{
		Value:  "Ana Maria",
		Anchor: layout.Anchor{X: x, Y: y},
		Align:  align,
		Size:   48,
		Color:  api.MustParseColor("#000000"),
	}
}

func TestRenderAlignment(t *testing.T) {
	tpl := whiteTemplate(t, 2000, 1200)
	f := fonts.Builtin()

	for _, align := range []api.Alignment{api.AlignLeft, api.AlignCenter, api.AlignRight} {
		t.Run(string(align), func(t *testing.T) {
			page := Page{Background: tpl, Text: textAt(1000, 600, align)}
			img := Render(page, f)
			ink := inkBounds(img)
			require.False(t, ink.Empty())

			switch align {
			case api.AlignLeft:
				assert.InDelta(t, 1000, ink.Min.X, 6)
			case api.AlignRight:
				assert.InDelta(t, 1000, ink.Max.X, 6)
			default:
				assert.InDelta(t, 1000, (ink.Min.X+ink.Max.X)/2, 6)
			}
			assert.InDelta(t, 600, (ink.Min.Y+ink.Max.Y)/2, 12)
		})
	}
}

func TestRenderDoesNotMutateTemplate(t *testing.T) {
	tpl := whiteTemplate(t, 400, 200)
	page := Page{Background: tpl, Text: textAt(200, 100, api.AlignCenter)}
	_ = Render(page, fonts.Builtin())

	src := tpl.Image.(*image.RGBA)
	assert.True(t, inkBounds(src).Empty())
}

func TestRenderWithoutTemplate(t *testing.T) {
	img := Render(Page{Text: textAt(640, 360, api.AlignCenter)}, fonts.Builtin())
	assert.Equal(t, image.Rect(0, 0, api.DefaultCanvasWidth, api.DefaultCanvasHeight), img.Bounds())
	assert.False(t, inkBounds(img).Empty())
}

func TestRenderBitmapFallback(t *testing.T) {
	img := Render(Page{Width: 200, Height: 100, Text: textAt(100, 50, api.AlignCenter)}, fonts.Bitmap())
	ink := inkBounds(img)
	require.False(t, ink.Empty())
	assert.InDelta(t, 100, (ink.Min.X+ink.Max.X)/2, 4)
}

func TestPageSizeOverride(t *testing.T) {
	tpl := whiteTemplate(t, 300, 100)
	w, h := Page{Background: tpl}.Size()
	assert.Equal(t, 300, w)
	assert.Equal(t, 100, h)

	img := Render(Page{Background: tpl, Width: 600, Height: 200}, fonts.Builtin())
	assert.Equal(t, image.Rect(0, 0, 600, 200), img.Bounds())
}

func TestEncodePNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	data, err := Encode(img, api.FormatPNG, api.ExportSpec{DPI: 300})
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err, "pHYs chunk keeps the file valid")
	assert.Equal(t, image.Rect(0, 0, 320, 200), decoded.Bounds())
	assert.Equal(t, 300, DPI(data))
}

func TestEncodeJPEG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))
	data, err := Encode(img, api.FormatJPEG, api.ExportSpec{DPI: 150, JPEGQuality: 80})
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 200, cfg.Height)
	assert.Equal(t, 150, DPI(data))
}

func TestEncodeJPEGClampsDPI(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 32, 20))
	data, err := Encode(img, api.FormatJPEG, api.ExportSpec{DPI: 70000, JPEGQuality: 80})
	require.NoError(t, err)
	assert.Equal(t, api.MaxDPI, DPI(data))
}

func TestEncodeResizeKeepsAspect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1600, 1000))
	data, err := Encode(img, api.FormatPNG, api.ExportSpec{RasterWidth: 800})
	require.NoError(t, err)

	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Width)
	assert.Equal(t, 500, cfg.Height)
	assert.Equal(t, 0, DPI(data))
}

func TestEncodeRejectsVector(t *testing.T) {
	_, err := Encode(image.NewRGBA(image.Rect(0, 0, 1, 1)), api.FormatPDF, api.ExportSpec{})
	assert.Error(t, err)
}

func TestEncodeIsDeterministic(t *testing.T) {
	tpl := whiteTemplate(t, 400, 200)
	page := Page{Background: tpl, Text: textAt(200, 100, api.AlignCenter)}
	spec := api.ExportSpec{DPI: 150}

	a, err := Encode(Render(page, fonts.Builtin()), api.FormatPNG, spec)
	require.NoError(t, err)
	b, err := Encode(Render(page, fonts.Builtin()), api.FormatPNG, spec)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
