package templates

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// RSVGRasterizer shells out to rsvg-convert, streaming through stdin/stdout.
type RSVGRasterizer struct {
	Binary string
}

func NewRSVGRasterizer() *RSVGRasterizer {
	return &RSVGRasterizer{Binary: "rsvg-convert"}
}

func (r *RSVGRasterizer) Name() string {
	return "rsvg-convert"
}

func (r *RSVGRasterizer) IsAvailable() bool {
	_, err := exec.LookPath(r.Binary)
	return err == nil
}

func (r *RSVGRasterizer) Accepts(kind Kind) bool {
	return kind == KindSVG
}

func (r *RSVGRasterizer) Rasterize(ctx context.Context, src []byte, kind Kind, opts RasterOptions) (image.Image, error) {
	args := []string{"--format=png", "--background-color=white"}
	if opts.Width > 0 {
		args = append(args, "--width="+strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		args = append(args, "--height="+strconv.Itoa(opts.Height))
	}
	if opts.DPI > 0 {
		args = append(args, "--dpi-x="+strconv.Itoa(opts.DPI), "--dpi-y="+strconv.Itoa(opts.DPI))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stdin = bytes.NewReader(src)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("command failed: %w, output: %s", err, stderr.String())
	}
	return png.Decode(&stdout)
}

// InkscapeRasterizer shells out to Inkscape, which also reads PDF and EPS.
// Inkscape needs real files, so the source is staged in a temp directory.
type InkscapeRasterizer struct {
	Binary string
}

func NewInkscapeRasterizer() *InkscapeRasterizer {
	return &InkscapeRasterizer{Binary: "inkscape"}
}

func (r *InkscapeRasterizer) Name() string {
	return "inkscape"
}

func (r *InkscapeRasterizer) IsAvailable() bool {
	_, err := exec.LookPath(r.Binary)
	return err == nil
}

func (r *InkscapeRasterizer) Accepts(kind Kind) bool {
	return kind == KindSVG || kind == KindPDF || kind == KindEPS
}

func (r *InkscapeRasterizer) Rasterize(ctx context.Context, src []byte, kind Kind, opts RasterOptions) (image.Image, error) {
	dir, err := os.MkdirTemp("", "certgen-inkscape-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "template."+string(kind))
	out := filepath.Join(dir, "template.png")
	if err := os.WriteFile(in, src, 0o600); err != nil {
		return nil, err
	}

	args := []string{in, "--export-type=png", "--export-filename=" + out, "--export-background=white", "--export-background-opacity=1"}
	if kind == KindPDF {
		args = append(args, "--pdf-page=1")
	}
	if opts.Width > 0 {
		args = append(args, "--export-width="+strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		args = append(args, "--export-height="+strconv.Itoa(opts.Height))
	}
	if opts.DPI > 0 {
		args = append(args, "--export-dpi="+strconv.Itoa(opts.DPI))
	}

	cmd := exec.CommandContext(ctx, r.Binary, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("command failed: %w, output: %s", err, string(output))
	}

	f, err := os.Open(out)
	if err != nil {
		return nil, fmt.Errorf("inkscape produced no output: %w", err)
	}
	defer f.Close()
	return png.Decode(f)
}
