package templates

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// NativeRasterizer renders SVG in-process with oksvg.
type NativeRasterizer struct{}

func NewNativeRasterizer() *NativeRasterizer {
	return &NativeRasterizer{}
}

func (r *NativeRasterizer) Name() string {
	return "oksvg"
}

func (r *NativeRasterizer) IsAvailable() bool {
	return true
}

func (r *NativeRasterizer) Accepts(kind Kind) bool {
	return kind == KindSVG
}

// Rasterize draws the SVG onto a white canvas of the requested size.
func (r *NativeRasterizer) Rasterize(ctx context.Context, src []byte, kind Kind, opts RasterOptions) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(src), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SVG: %w", err)
	}

	w, h := opts.Width, opts.Height
	if w <= 0 || h <= 0 {
		w, h = int(icon.ViewBox.W), int(icon.ViewBox.H)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("SVG has no usable size")
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	raster := rasterx.NewDasher(w, h, scanner)
	icon.Draw(raster, 1.0)
	return rgba, nil
}
