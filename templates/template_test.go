package templates

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/flanksource/certgen/api"
	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const circleSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 400 200" width="400" height="200">
<rect x="0" y="0" width="400" height="200" fill="#0000ff"/>
<circle cx="200" cy="100" r="50" fill="#ff0000"/>
</svg>`

const sampleEPS = `%!PS-Adobe-3.0 EPSF-3.0
%%BoundingBox: 10 20 610 420
%%EndComments
newpath 10 20 moveto 610 420 lineto stroke
%%EOF
`

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestKindFromFilename(t *testing.T) {
	tests := map[string]Kind{
		"front.PNG":  KindRaster,
		"front.jpeg": KindRaster,
		"front.jpg":  KindRaster,
		"art.svg":    KindSVG,
		"doc.pdf":    KindPDF,
		"art.eps":    KindEPS,
	}
	for name, want := range tests {
		got, err := KindFromFilename(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := KindFromFilename("front.tiff")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestLoadRaster(t *testing.T) {
	var warn api.Warnings
	tpl, err := Load(context.Background(), "front.png", pngBytes(t, 160, 100, color.White), nil, &warn)
	require.NoError(t, err)
	assert.Equal(t, KindRaster, tpl.Kind)
	assert.Equal(t, 160, tpl.Width)
	assert.Equal(t, 100, tpl.Height)
	assert.NotNil(t, tpl.Image)
	assert.Empty(t, warn.List())
}

func TestLoadCorruptRaster(t *testing.T) {
	_, err := Load(context.Background(), "front.png", []byte("garbage"), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "front.png")
}

func TestLoadSVG(t *testing.T) {
	var warn api.Warnings
	tpl, err := Load(context.Background(), "art.svg", []byte(circleSVG), NewNativeRasterizer(), &warn)
	require.NoError(t, err)
	assert.Equal(t, 400, tpl.Width)
	assert.Equal(t, 200, tpl.Height)
	require.NotNil(t, tpl.Image)
	assert.Equal(t, image.Rect(0, 0, 400, 200), tpl.Image.Bounds())

	r, g, b, _ := tpl.Image.At(200, 100).RGBA()
	assert.Greater(t, r, g, "circle center is red")
	assert.Greater(t, r, b)
	assert.Empty(t, warn.List())
}

func TestLoadSVGWithoutRasterizer(t *testing.T) {
	var warn api.Warnings
	tpl, err := Load(context.Background(), "art.svg", []byte(circleSVG), NewChain(), &warn)
	require.NoError(t, err, "missing rasterizer degrades instead of failing")
	assert.Nil(t, tpl.Image)
	assert.Equal(t, 400, tpl.Width)
	assert.Len(t, warn.List(), 1)

	canvas := Canvas(tpl, tpl.Width, tpl.Height)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, canvas.RGBAAt(10, 10))
}

func TestLoadEPS(t *testing.T) {
	var warn api.Warnings
	tpl, err := Load(context.Background(), "art.eps", []byte(sampleEPS), nil, &warn)
	require.NoError(t, err)
	assert.Equal(t, 600, tpl.Width)
	assert.Equal(t, 400, tpl.Height)

	llx, lly := BoundingBox(tpl.Raw)
	assert.Equal(t, 10.0, llx)
	assert.Equal(t, 20.0, lly)

	_, err = Load(context.Background(), "art.eps", []byte("%!PS\nshowpage\n"), nil, &warn)
	assert.Error(t, err)
}

func TestLoadPDF(t *testing.T) {
	doc := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: 600, Ht: 400},
	})
	doc.AddPage()
	doc.Rect(10, 10, 100, 100, "F")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))

	var warn api.Warnings
	tpl, err := Load(context.Background(), "doc.pdf", buf.Bytes(), NewChain(), &warn)
	require.NoError(t, err)
	assert.Equal(t, 600, tpl.Width)
	assert.Equal(t, 400, tpl.Height)
}

func TestCanvasScales(t *testing.T) {
	tpl, err := Load(context.Background(), "front.png", pngBytes(t, 40, 20, color.RGBA{0, 0, 255, 255}), nil, nil)
	require.NoError(t, err)

	same := Canvas(tpl, 40, 20)
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, same.RGBAAt(5, 5))

	scaled := Canvas(tpl, 80, 40)
	assert.Equal(t, image.Rect(0, 0, 80, 40), scaled.Bounds())
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, scaled.RGBAAt(40, 20))

	same.Set(0, 0, color.Black)
	fresh := Canvas(tpl, 40, 20)
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, fresh.RGBAAt(0, 0), "canvas never aliases the template")

	blank := Canvas(nil, 10, 10)
	assert.Equal(t, color.RGBA{255, 255, 255, 255}, blank.RGBAAt(0, 0))
}

func TestNilTemplateSize(t *testing.T) {
	var tpl *Template
	w, h := tpl.Size()
	assert.Equal(t, api.DefaultCanvasWidth, w)
	assert.Equal(t, api.DefaultCanvasHeight, h)
}

type failingRasterizer struct{ name string }

func (f failingRasterizer) Name() string           { return f.name }
func (f failingRasterizer) IsAvailable() bool      { return true }
func (f failingRasterizer) Accepts(kind Kind) bool { return kind == KindSVG }
func (f failingRasterizer) Rasterize(context.Context, []byte, Kind, RasterOptions) (image.Image, error) {
	return nil, errors.New("boom")
}

func TestChainFallsBack(t *testing.T) {
	chain := NewChain(failingRasterizer{name: "broken"}, NewNativeRasterizer())
	assert.Equal(t, []string{"broken", "oksvg"}, chain.Names())

	img, err := chain.Rasterize(context.Background(), []byte(circleSVG), KindSVG, RasterOptions{Width: 100, Height: 50})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 50), img.Bounds())
}

func TestChainErrors(t *testing.T) {
	chain := NewChain(failingRasterizer{name: "broken"})

	_, err := chain.Rasterize(context.Background(), []byte(circleSVG), KindSVG, RasterOptions{})
	var rerr *RasterizeError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "broken", rerr.Rasterizer)

	_, err = chain.Rasterize(context.Background(), nil, KindPDF, RasterOptions{})
	assert.ErrorIs(t, err, ErrRasterizerUnavailable)
	assert.False(t, chain.Accepts(KindEPS))
}
