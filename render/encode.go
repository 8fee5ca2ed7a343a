package render

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/jpeg"
	"image/png"
	"math"

	"github.com/flanksource/certgen/api"
	"golang.org/x/image/draw"
)

// Encode writes img as PNG or JPEG. When spec.RasterWidth is set the image
// is resized to that width keeping its aspect ratio; when spec.DPI is set
// the density is recorded in the file (pHYs for PNG, JFIF for JPEG).
func Encode(img image.Image, format api.Format, spec api.ExportSpec) ([]byte, error) {
	img = Resize(img, spec.RasterWidth)

	var buf bytes.Buffer
	switch format {
	case api.FormatPNG:
		enc := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("failed to encode PNG: %w", err)
		}
		if spec.DPI > 0 {
			return withPNGDensity(buf.Bytes(), spec.DPI), nil
		}
	case api.FormatJPEG:
		quality := spec.JPEGQuality
		if quality <= 0 {
			quality = jpeg.DefaultQuality
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
		return withJFIF(buf.Bytes(), spec.DPI), nil
	default:
		return nil, fmt.Errorf("%s is not a raster format", format)
	}
	return buf.Bytes(), nil
}

// Resize scales img to width pixels wide. A zero width or one equal to the
// current width returns img unchanged.
func Resize(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || width == b.Dx() || b.Dx() == 0 {
		return img
	}
	height := int(math.Round(float64(b.Dy()) * float64(width) / float64(b.Dx())))
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// pngHeaderLen covers the signature and the IHDR chunk, after which
// ancillary chunks such as pHYs may appear.
const pngHeaderLen = 8 + 4 + 4 + 13 + 4

func withPNGDensity(data []byte, dpi int) []byte {
	if len(data) < pngHeaderLen {
		return data
	}
	ppm := uint32(math.Round(float64(dpi) / 0.0254))

	chunk := make([]byte, 4+4+9+4)
	binary.BigEndian.PutUint32(chunk[0:], 9)
	copy(chunk[4:], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:], ppm)
	binary.BigEndian.PutUint32(chunk[12:], ppm)
	chunk[16] = 1 // meters
	binary.BigEndian.PutUint32(chunk[17:], crc32.ChecksumIEEE(chunk[4:17]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:pngHeaderLen]...)
	out = append(out, chunk...)
	return append(out, data[pngHeaderLen:]...)
}

// withJFIF inserts a JFIF APP0 segment after SOI. image/jpeg writes none,
// so readers otherwise assume 72 DPI.
func withJFIF(data []byte, dpi int) []byte {
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return data
	}
	units := byte(1) // dots per inch
	if dpi <= 0 {
		units, dpi = 0, 1 // aspect ratio only
	}
	dpi = min(dpi, api.MaxDPI)
	seg := []byte{
		0xFF, 0xE0, 0x00, 0x10,
		'J', 'F', 'I', 'F', 0x00,
		0x01, 0x01,
		units,
		byte(dpi >> 8), byte(dpi), byte(dpi >> 8), byte(dpi),
		0x00, 0x00,
	}
	out := make([]byte, 0, len(data)+len(seg))
	out = append(out, data[:2]...)
	out = append(out, seg...)
	return append(out, data[2:]...)
}

// DPI reads the density recorded by Encode. It returns 0 when none is set.
func DPI(data []byte) int {
	switch {
	case len(data) > pngHeaderLen+17 && string(data[pngHeaderLen+4:pngHeaderLen+8]) == "pHYs":
		ppm := binary.BigEndian.Uint32(data[pngHeaderLen+8:])
		return int(math.Round(float64(ppm) * 0.0254))
	case len(data) > 18 && data[2] == 0xFF && data[3] == 0xE0 && string(data[6:10]) == "JFIF" && data[13] == 1:
		return int(binary.BigEndian.Uint16(data[14:]))
	}
	return 0
}
