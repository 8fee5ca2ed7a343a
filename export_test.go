package certgen

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/flanksource/certgen/api"
	"github.com/flanksource/certgen/templates"
	"github.com/jung-kurt/gofpdf"
	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nativeOnly = Options{Rasterizer: templates.NewChain(templates.NewNativeRasterizer())}

func writePNG(t *testing.T, dir, name string, w, h int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func testJob(t *testing.T, names ...string) Job {
	t.Helper()
	dir := t.TempDir()
	job := DefaultJob()
	job.Front = writePNG(t, dir, "front.png", 400, 300, color.RGBA{250, 245, 230, 255})
	job.Names = names
	job.Style.AnchorX = 200
	job.Style.AnchorY = 150
	job.Style.BaseFontSize = 24
	return job
}

func members(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := map[string][]byte{}
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = b
	}
	return out
}

func memberNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var out []string
	for _, f := range zr.File {
		out = append(out, f.Name)
	}
	return out
}

func TestExportPNG(t *testing.T) {
	job := testJob(t, "Ana Souza", "José Silva")
	res, err := ExportWith(context.Background(), job, nativeOnly)
	require.NoError(t, err)

	assert.Equal(t, []string{"Ana_Souza.png", "Jose_Silva.png"}, memberNames(t, res.Archive))
	assert.Equal(t, 2, res.Report.Names)
	assert.Equal(t, 2, res.Report.Entries)
	assert.Equal(t, api.FormatPNG, res.Report.Format)
	assert.Empty(t, res.Report.Back)

	for name, data := range members(t, res.Archive) {
		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err, name)
		assert.Equal(t, 400, img.Bounds().Dx(), name)
		assert.Equal(t, 300, img.Bounds().Dy(), name)
	}
}

func TestExportWithBack(t *testing.T) {
	job := testJob(t, "Ana", "Bia", "Caio")
	job.Back = writePNG(t, t.TempDir(), "back.png", 400, 300, color.RGBA{20, 40, 60, 255})

	t.Run("raster formats write a back file per name", func(t *testing.T) {
		res, err := ExportWith(context.Background(), job, nativeOnly)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"Ana.png", "Ana_verso.png",
			"Bia.png", "Bia_verso.png",
			"Caio.png", "Caio_verso.png",
		}, memberNames(t, res.Archive))
		assert.NotEmpty(t, res.Report.Back)

		m := members(t, res.Archive)
		assert.Equal(t, m["Ana_verso.png"], m["Caio_verso.png"], "back side carries no name")
		assert.NotEqual(t, m["Ana.png"], m["Bia.png"])
	})

	t.Run("pdf keeps both sides in one document", func(t *testing.T) {
		j := job
		j.Export.Format = api.FormatPDF
		res, err := ExportWith(context.Background(), j, nativeOnly)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ana.pdf", "Bia.pdf", "Caio.pdf"}, memberNames(t, res.Archive))
		for name, data := range members(t, res.Archive) {
			n, err := pdfapi.PageCount(bytes.NewReader(data), nil)
			require.NoError(t, err, name)
			assert.Equal(t, 2, n, name)
		}
	})

	t.Run("svg writes a back file per name", func(t *testing.T) {
		j := job
		j.Export.Format = api.FormatSVG
		res, err := ExportWith(context.Background(), j, nativeOnly)
		require.NoError(t, err)
		assert.Len(t, res.Files, 6)
		assert.Equal(t, "Ana_verso.svg", res.Files[1].Name)
	})
}

func TestExportIsDeterministic(t *testing.T) {
	for _, format := range api.Formats() {
		t.Run(string(format), func(t *testing.T) {
			job := testJob(t, "Ana", "Bia")
			job.Export.Format = format
			first, err := ExportWith(context.Background(), job, nativeOnly)
			require.NoError(t, err)
			second, err := ExportWith(context.Background(), job, nativeOnly)
			require.NoError(t, err)
			assert.Equal(t, first.Archive, second.Archive)
		})
	}
}

func writePDF(t *testing.T, dir, name string, w, h float64) string {
	t.Helper()
	doc := gofpdf.NewCustom(&gofpdf.InitType{OrientationStr: "P", UnitStr: "pt", Size: gofpdf.SizeType{Wd: w, Ht: h}})
	doc.AddPage()
	doc.SetFillColor(0, 60, 120)
	doc.Rect(0, 0, w, h/10, "F")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestExportPDFOverPDFTemplate(t *testing.T) {
	job := DefaultJob()
	job.Front = writePDF(t, t.TempDir(), "front.pdf", 400, 300)
	job.Names = []string{"Ana", "José"}
	job.Style.AnchorX, job.Style.AnchorY = 200, 150
	job.Export.Format = api.FormatPDF

	first, err := ExportWith(context.Background(), job, nativeOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana.pdf", "Jose.pdf"}, memberNames(t, first.Archive))
	for name, data := range members(t, first.Archive) {
		n, err := pdfapi.PageCount(bytes.NewReader(data), nil)
		require.NoError(t, err, name)
		assert.Equal(t, 1, n, name)
	}

	time.Sleep(time.Until(time.Now().Truncate(time.Second).Add(time.Second + 10*time.Millisecond)))
	second, err := ExportWith(context.Background(), job, nativeOnly)
	require.NoError(t, err)
	assert.Equal(t, first.Archive, second.Archive)
}

func TestExportConcurrencyKeepsOrder(t *testing.T) {
	job := testJob(t, "Ana", "Bia", "Caio", "Duda", "Enzo", "Fabi")
	serial, err := ExportWith(context.Background(), job, nativeOnly)
	require.NoError(t, err)

	job.Export.Concurrency = 4
	parallel, err := ExportWith(context.Background(), job, nativeOnly)
	require.NoError(t, err)
	assert.Equal(t, serial.Archive, parallel.Archive)
}

func TestExportDuplicateNames(t *testing.T) {
	dir := t.TempDir()
	job := DefaultJob()
	job.Front = writePNG(t, dir, "front.png", 1600, 1000, color.RGBA{255, 255, 255, 255})
	job.Style.AnchorX = 800
	job.Style.AnchorY = 500
	job.Style.Alignment = api.AlignCenter
	job.Names = []string{"Ana", "Ana"}
	job.Export.FilenamePattern = "{name}"

	res, err := ExportWith(context.Background(), job, nativeOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana.png", "Ana.png"}, memberNames(t, res.Archive))
	assert.Equal(t, []string{"Ana.png"}, res.Report.Duplicates)
	assert.Condition(t, func() bool {
		for _, w := range res.Report.Warnings {
			if strings.Contains(w, "Ana.png") {
				return true
			}
		}
		return false
	}, "expected a duplicate warning, got %v", res.Report.Warnings)
}

func TestExportEmptyNames(t *testing.T) {
	job := testJob(t)
	res, err := ExportWith(context.Background(), job, nativeOnly)
	require.NoError(t, err)
	assert.Empty(t, memberNames(t, res.Archive))
	assert.NotEmpty(t, res.Report.Warnings)
}

func TestExportWithoutFront(t *testing.T) {
	job := DefaultJob()
	job.Names = []string{"Ana"}
	res, err := ExportWith(context.Background(), job, nativeOnly)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(res.Files[0].Data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(api.DefaultCanvasWidth, api.DefaultCanvasHeight), img.Bounds().Size())
	assert.NotEmpty(t, res.Report.Warnings)
}

func TestExportNameListFile(t *testing.T) {
	job := testJob(t)
	list := filepath.Join(t.TempDir(), "nomes.csv")
	require.NoError(t, os.WriteFile(list, []byte("nome;turma\nAna;A\nBia;B\n"), 0o644))
	job.NameList = list

	res, err := ExportWith(context.Background(), job, nativeOnly)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ana.png", "Bia.png"}, memberNames(t, res.Archive))
}

func TestExportFailures(t *testing.T) {
	t.Run("corrupt front template", func(t *testing.T) {
		job := testJob(t, "Ana")
		require.NoError(t, os.WriteFile(job.Front, []byte("not a png"), 0o644))
		res, err := ExportWith(context.Background(), job, nativeOnly)
		require.Error(t, err)
		assert.Nil(t, res)
		assert.Contains(t, err.Error(), "front template")
	})

	t.Run("missing name list", func(t *testing.T) {
		job := testJob(t)
		job.NameList = filepath.Join(t.TempDir(), "missing.txt")
		res, err := ExportWith(context.Background(), job, nativeOnly)
		require.Error(t, err)
		assert.Nil(t, res)
	})

	t.Run("invalid quality", func(t *testing.T) {
		job := testJob(t, "Ana")
		job.Export.Format = api.FormatJPEG
		job.Export.JPEGQuality = 101
		_, err := ExportWith(context.Background(), job, nativeOnly)
		assert.Error(t, err)
	})

	t.Run("cancelled context returns no archive", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res, err := ExportWith(ctx, testJob(t, "Ana", "Bia"), nativeOnly)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Nil(t, res)
	})
}

func TestRenderError(t *testing.T) {
	cause := errors.New("boom")
	err := error(&RenderError{Name: "Ana", Index: 2, Format: api.FormatPDF, Err: cause})
	assert.Equal(t, `failed to render "Ana" (#3) as pdf: boom`, err.Error())
	assert.ErrorIs(t, err, cause)

	var re *RenderError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "Ana", re.Name)
}

func TestPreview(t *testing.T) {
	job := testJob(t, "Ana")
	data, warnings, err := PreviewWith(context.Background(), job, "Zé Fulano", nativeOnly)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(400, 300), img.Bounds().Size())

	blank, _, err := PreviewWith(context.Background(), job, "", nativeOnly)
	require.NoError(t, err)
	assert.NotEqual(t, blank, data)
}

func TestPreviewAppliesIndexAdjustment(t *testing.T) {
	job := testJob(t, "Ana", "Bia")
	plain, _, err := PreviewWith(context.Background(), job, "Bia", nativeOnly)
	require.NoError(t, err)

	job.IndexAdjustments = []api.Adjustment{{}, {DY: 40}}
	moved, _, err := PreviewWith(context.Background(), job, "Bia", nativeOnly)
	require.NoError(t, err)
	assert.NotEqual(t, plain, moved)

	other, _, err := PreviewWith(context.Background(), job, "Caio", nativeOnly)
	require.NoError(t, err)
	job.IndexAdjustments = nil
	otherPlain, _, err := PreviewWith(context.Background(), job, "Caio", nativeOnly)
	require.NoError(t, err)
	assert.Equal(t, otherPlain, other, "names outside the list get no index adjustment")
}

func TestPreviewReadsNameListForIndexAdjustment(t *testing.T) {
	job := testJob(t)
	job.Names = nil
	job.NameList = filepath.Join(t.TempDir(), "alunos.txt")
	require.NoError(t, os.WriteFile(job.NameList, []byte("Ana\nBia\n"), 0o644))

	plain, _, err := PreviewWith(context.Background(), job, "Bia", nativeOnly)
	require.NoError(t, err)
	job.IndexAdjustments = []api.Adjustment{{}, {DY: 40}}
	moved, warnings, err := PreviewWith(context.Background(), job, "Bia", nativeOnly)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NotEqual(t, plain, moved)

	job.NameList = filepath.Join(t.TempDir(), "missing.txt")
	data, warnings, err := PreviewWith(context.Background(), job, "Bia", nativeOnly)
	require.NoError(t, err, "an unreadable list only skips index adjustments")
	assert.Equal(t, plain, data)
	assert.Len(t, warnings, 1)
}

func TestReportRender(t *testing.T) {
	r := Report{
		Format:   api.FormatPNG,
		Names:    2,
		Entries:  4,
		Font:     "Go Regular (builtin)",
		Front:    "front.png",
		Back:     "back.png",
		Warnings: []string{"font missing"},
	}
	out := r.Render(io.Discard, true)
	assert.Contains(t, out, "4 files for 2 names (png)")
	assert.Contains(t, out, "back.png")
	assert.Contains(t, out, "! font missing")
	assert.NotContains(t, out, "\x1b[")
}
