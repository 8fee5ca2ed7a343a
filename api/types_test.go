package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{"#FFB000", Color{0xFF, 0xB0, 0x00}, false},
		{"ffb000", Color{0xFF, 0xB0, 0x00}, false},
		{"#FB0", Color{0xFF, 0xBB, 0x00}, false},
		{"#12345", Color{}, true},
		{"#GGGGGG", Color{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "#FFB000", MustParseColor("#ffb000").Hex())
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"PNG":         FormatPNG,
		"jpg":         FormatJPEG,
		"JPEG":        FormatJPEG,
		"PDF (vetor)": FormatPDF,
		"SVG (vetor)": FormatSVG,
		"eps":         FormatEPS,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("tiff")
	assert.Error(t, err)
	assert.Equal(t, "jpg", FormatJPEG.Extension())
	assert.True(t, FormatEPS.IsVector())
	assert.False(t, FormatPNG.IsVector())
}

func TestParseAlignment(t *testing.T) {
	a, err := ParseAlignment("mm")
	require.NoError(t, err)
	assert.Equal(t, AlignCenter, a)
	a, err = ParseAlignment("RA")
	require.NoError(t, err)
	assert.Equal(t, AlignRight, a)
	_, err = ParseAlignment("justify")
	assert.Error(t, err)
}

func TestExportSpecResolve(t *testing.T) {
	spec, err := ExportSpec{Format: FormatJPEG, Tier: TierPrint}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 3508, spec.RasterWidth)
	assert.Equal(t, 300, spec.DPI)
	assert.Equal(t, 95, spec.JPEGQuality)
	assert.Equal(t, DefaultPattern, spec.FilenamePattern)
	assert.Equal(t, 1, spec.Concurrency)

	spec, err = ExportSpec{Format: FormatPNG, Tier: TierDraft, DPI: 72}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 72, spec.DPI, "explicit values win over the tier")
	assert.Equal(t, 1280, spec.RasterWidth)

	_, err = ExportSpec{Tier: "ultra"}.Resolve()
	assert.Error(t, err)
	_, err = ExportSpec{JPEGQuality: 101}.Resolve()
	assert.Error(t, err)

	spec, err = ExportSpec{DPI: MaxDPI}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, MaxDPI, spec.DPI)
	_, err = ExportSpec{DPI: MaxDPI + 1}.Resolve()
	assert.ErrorContains(t, err, "dpi 65536 out of range")
}

func TestGlobalStyleFontSize(t *testing.T) {
	s := DefaultGlobalStyle()
	assert.Equal(t, 48, s.FontSize())
	s.FontScale = 1.5
	assert.Equal(t, 72, s.FontSize())
	s.FontScale = 0
	assert.Equal(t, 48, s.FontSize())
	s.BaseFontSize = 0
	assert.Equal(t, 1, s.FontSize())
}

func TestWarningsDedupe(t *testing.T) {
	var w Warnings
	w.Addf("font %s missing", "x")
	w.Addf("font %s missing", "x")
	w.Addf("other")
	assert.Equal(t, []string{"font x missing", "other"}, w.List())

	var nilWarnings *Warnings
	nilWarnings.Addf("only logged")
	assert.Nil(t, nilWarnings.List())
}
