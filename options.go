package certgen

import (
	"fmt"

	"github.com/flanksource/certgen/api"
	"github.com/spf13/pflag"
)

// ExportOptions are the command line inputs of export and preview. Values
// only override the job when their flag was set explicitly.
type ExportOptions struct {
	JobFile     string
	Front       string
	Back        string
	NameList    string
	Font        string
	BundledFont string
	Output      string

	X, Y   float64
	DX, DY float64
	Size   int
	Scale  float64
	Color  string
	Align  string

	Format      string
	Tier        string
	Width       int
	DPI         int
	Quality     int
	Pattern     string
	Concurrency int

	// Format-specific boolean flags (mutually exclusive)
	PNG  bool
	JPEG bool
	PDF  bool
	SVG  bool
	EPS  bool
}

// BindPFlags adds export flags to the provided pflag set (for cobra)
func BindPFlags(flags *pflag.FlagSet, options *ExportOptions) {
	def := DefaultJob()

	flags.StringVar(&options.JobFile, "job", "", "YAML job file; flags override its values")
	flags.StringVar(&options.Front, "front", "", "Front template (png, jpg, svg, pdf, eps)")
	flags.StringVar(&options.Back, "back", "", "Optional back template")
	flags.StringVar(&options.NameList, "names", "", "Name list (.txt one name per line, or .csv first column)")
	flags.StringVar(&options.Font, "font", "", "TrueType font for the names")
	flags.StringVar(&options.BundledFont, "bundled-font", def.BundledFont, "Fallback font used when --font is missing or unreadable")
	flags.StringVarP(&options.Output, "output", "o", def.Output, "Output file")

	flags.Float64Var(&options.X, "x", def.Style.AnchorX, "Anchor X in template pixels")
	flags.Float64Var(&options.Y, "y", def.Style.AnchorY, "Anchor Y in template pixels")
	flags.Float64Var(&options.DX, "dx", 0, "Global horizontal offset")
	flags.Float64Var(&options.DY, "dy", 0, "Global vertical offset")
	flags.IntVar(&options.Size, "size", def.Style.BaseFontSize, "Base font size")
	flags.Float64Var(&options.Scale, "scale", def.Style.FontScale, "Font scale applied to the base size")
	flags.StringVar(&options.Color, "color", def.Style.Color.Hex(), "Text color (#RRGGBB)")
	flags.StringVar(&options.Align, "align", string(def.Style.Alignment), "Alignment: left, center, right")

	flags.StringVar(&options.Format, "format", string(def.Export.Format), "Output format: png, jpeg, pdf, svg, eps")
	flags.StringVar(&options.Tier, "tier", string(def.Export.Tier), "Raster quality tier: draft, standard, print")
	flags.IntVar(&options.Width, "width", 0, "Raster output width in pixels (0 = tier default)")
	flags.IntVar(&options.DPI, "dpi", 0, "Raster DPI metadata (0 = tier default)")
	flags.IntVar(&options.Quality, "quality", 0, "JPEG quality 1-100 (0 = tier default)")
	flags.StringVar(&options.Pattern, "pattern", def.Export.FilenamePattern, "File name pattern; {name} is replaced with the name")
	flags.IntVar(&options.Concurrency, "concurrency", def.Export.Concurrency, "Number of certificates rendered in parallel")

	flags.BoolVar(&options.PNG, "png", false, "Output PNG images")
	flags.BoolVar(&options.JPEG, "jpeg", false, "Output JPEG images")
	flags.BoolVar(&options.PDF, "pdf", false, "Output vector PDF")
	flags.BoolVar(&options.SVG, "svg", false, "Output vector SVG")
	flags.BoolVar(&options.EPS, "eps", false, "Output vector EPS")
}

// ResolveFormat resolves the output format from format-specific flags
func (options *ExportOptions) ResolveFormat() error {
	selected := map[api.Format]bool{
		api.FormatPNG:  options.PNG,
		api.FormatJPEG: options.JPEG,
		api.FormatPDF:  options.PDF,
		api.FormatSVG:  options.SVG,
		api.FormatEPS:  options.EPS,
	}
	count := 0
	for _, f := range api.Formats() {
		if selected[f] {
			count++
			options.Format = string(f)
		}
	}
	if count > 1 {
		return fmt.Errorf("multiple format flags specified; please use only one format flag")
	}
	return nil
}

// Job builds the job: the --job file (or defaults) with every explicitly
// set flag applied on top.
func (options *ExportOptions) Job(flags *pflag.FlagSet) (Job, error) {
	if err := options.ResolveFormat(); err != nil {
		return Job{}, err
	}
	job := DefaultJob()
	if options.JobFile != "" {
		var err error
		if job, err = LoadJob(options.JobFile); err != nil {
			return job, err
		}
	}

	changed := func(names ...string) bool {
		for _, n := range names {
			if f := flags.Lookup(n); f != nil && f.Changed {
				return true
			}
		}
		return false
	}

	strs := []struct {
		flag string
		dst  *string
		val  string
	}{
		{"front", &job.Front, options.Front},
		{"back", &job.Back, options.Back},
		{"font", &job.Font, options.Font},
		{"bundled-font", &job.BundledFont, options.BundledFont},
		{"output", &job.Output, options.Output},
		{"pattern", &job.Export.FilenamePattern, options.Pattern},
	}
	for _, s := range strs {
		if changed(s.flag) {
			*s.dst = s.val
		}
	}
	if changed("names") {
		job.NameList = options.NameList
		job.Names = nil
	}

	if changed("x") {
		job.Style.AnchorX = options.X
	}
	if changed("y") {
		job.Style.AnchorY = options.Y
	}
	if changed("dx") {
		job.Style.GlobalDX = options.DX
	}
	if changed("dy") {
		job.Style.GlobalDY = options.DY
	}
	if changed("size") {
		job.Style.BaseFontSize = options.Size
	}
	if changed("scale") {
		job.Style.FontScale = options.Scale
	}
	if changed("color") {
		c, err := api.ParseColor(options.Color)
		if err != nil {
			return job, err
		}
		job.Style.Color = c
	}
	if changed("align") {
		a, err := api.ParseAlignment(options.Align)
		if err != nil {
			return job, err
		}
		job.Style.Alignment = a
	}

	if changed("format", "png", "jpeg", "pdf", "svg", "eps") {
		f, err := api.ParseFormat(options.Format)
		if err != nil {
			return job, err
		}
		job.Export.Format = f
	}
	if changed("tier") {
		job.Export.Tier = api.Tier(options.Tier)
	}
	if changed("width") {
		job.Export.RasterWidth = options.Width
	}
	if changed("dpi") {
		job.Export.DPI = options.DPI
	}
	if changed("quality") {
		job.Export.JPEGQuality = options.Quality
	}
	if changed("concurrency") {
		job.Export.Concurrency = options.Concurrency
	}
	return job, nil
}
