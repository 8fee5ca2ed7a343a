package certgen

import (
	"context"
	"fmt"
	"sync"

	"github.com/flanksource/certgen/api"
	"github.com/flanksource/certgen/archive"
	"github.com/flanksource/certgen/fonts"
	"github.com/flanksource/certgen/layout"
	"github.com/flanksource/certgen/names"
	"github.com/flanksource/certgen/naming"
	"github.com/flanksource/certgen/render"
	"github.com/flanksource/certgen/templates"
	"github.com/flanksource/certgen/vector"
	"github.com/flanksource/commons/logger"
	"golang.org/x/sync/errgroup"
)

// Result is a finished export.
type Result struct {
	Archive []byte
	Files   []api.OutputFile
	Report  Report
}

// session holds everything shared read-only by the per-name renders.
type session struct {
	front, back *templates.Template
	font        *fonts.Font
	names       []string
	style       api.GlobalStyle
	adjust      layout.Adjustments
	spec        api.ExportSpec
	pattern     naming.Pattern
	warn        *api.Warnings
}

// Options tune how a Job is turned into a session.
type Options struct {
	// Rasterizer flattens vector templates; nil uses templates.DefaultChain.
	Rasterizer templates.Rasterizer
}

func prepare(ctx context.Context, job Job, opts Options, needNames bool) (*session, error) {
	spec, err := job.Export.Resolve()
	if err != nil {
		return nil, err
	}
	s := &session{
		style:   job.Style,
		adjust:  job.Adjust(),
		spec:    spec,
		pattern: naming.Pattern(spec.FilenamePattern),
		warn:    &api.Warnings{},
	}

	r := opts.Rasterizer
	if r == nil {
		r = templates.DefaultChain()
	}
	if job.Front != "" {
		if s.front, err = templates.LoadFile(ctx, job.Front, r, s.warn); err != nil {
			return nil, fmt.Errorf("front template: %w", err)
		}
	} else {
		s.warn.Addf("no front template, using a blank %dx%d page", api.DefaultCanvasWidth, api.DefaultCanvasHeight)
	}
	if job.Back != "" {
		if s.back, err = templates.LoadFile(ctx, job.Back, r, s.warn); err != nil {
			return nil, fmt.Errorf("back template: %w", err)
		}
	}

	s.font = fonts.Resolve(job.Font, job.BundledFont, s.warn)
	logger.Debugf("using font %s", s.font)

	if !needNames {
		return s, nil
	}
	s.names = job.Names
	if len(s.names) == 0 && job.NameList != "" {
		if s.names, err = names.ReadFile(job.NameList); err != nil {
			return nil, err
		}
	}
	if len(s.names) == 0 {
		s.warn.Addf("name list is empty, the archive will have no entries")
	}
	return s, nil
}

// text resolves the placement of the name at index.
func (s *session) text(name string, index int) layout.Text {
	adj := s.adjust.Resolve(s.style, name, index)
	return layout.Text{
		Value:  name,
		Anchor: layout.NewAnchor(s.style, adj),
		Align:  s.style.Alignment,
		Size:   float64(adj.FontSize),
		Color:  s.style.Color,
	}
}

// pages returns the front page with the name and, when a back template is
// set, a blank back page sized to the front.
func (s *session) pages(name string, index int) []render.Page {
	front := render.Page{Background: s.front, Text: s.text(name, index)}
	if s.back == nil {
		return []render.Page{front}
	}
	w, h := front.Size()
	return []render.Page{front, {Background: s.back, Width: w, Height: h}}
}

func (s *session) filename(name string, side api.Side) string {
	return s.pattern.Expand(name, side, s.spec.Format.Extension())
}

// writer produces the archive members for one name.
type writer interface {
	write(ctx context.Context, s *session, name string, index int) ([]api.OutputFile, error)
}

func writerFor(format api.Format) (writer, error) {
	switch format {
	case api.FormatPNG, api.FormatJPEG:
		return &rasterWriter{}, nil
	case api.FormatPDF, api.FormatSVG, api.FormatEPS:
		e, err := vector.For(format)
		if err != nil {
			return nil, err
		}
		return &vectorWriter{exporter: e}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrNoFormat, format)
}

// sideCache renders the back side once; it carries no name so it is the
// same for every certificate.
type sideCache struct {
	once sync.Once
	data []byte
	err  error
}

func (c *sideCache) get(fn func() ([]byte, error)) ([]byte, error) {
	c.once.Do(func() { c.data, c.err = fn() })
	return c.data, c.err
}

type rasterWriter struct {
	back sideCache
}

func (w *rasterWriter) write(ctx context.Context, s *session, name string, index int) ([]api.OutputFile, error) {
	pages := s.pages(name, index)
	data, err := render.Encode(render.Render(pages[0], s.font), s.spec.Format, s.spec)
	if err != nil {
		return nil, err
	}
	out := []api.OutputFile{{Name: s.filename(name, api.SideFront), Data: data}}
	if len(pages) > 1 {
		back, err := w.back.get(func() ([]byte, error) {
			return render.Encode(render.Render(pages[1], s.font), s.spec.Format, s.spec)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, api.OutputFile{Name: s.filename(name, api.SideBack), Data: back})
	}
	return out, nil
}

type vectorWriter struct {
	exporter vector.Exporter
	back     sideCache
}

func (w *vectorWriter) write(ctx context.Context, s *session, name string, index int) ([]api.OutputFile, error) {
	pages := s.pages(name, index)
	if w.exporter.MultiPage() {
		data, err := w.exporter.Export(ctx, pages, s.font, s.warn)
		if err != nil {
			return nil, err
		}
		return []api.OutputFile{{Name: s.filename(name, api.SideFront), Data: data}}, nil
	}

	data, err := w.exporter.Export(ctx, pages[:1], s.font, s.warn)
	if err != nil {
		return nil, err
	}
	out := []api.OutputFile{{Name: s.filename(name, api.SideFront), Data: data}}
	if len(pages) > 1 {
		back, err := w.back.get(func() ([]byte, error) {
			return w.exporter.Export(ctx, pages[1:], s.font, s.warn)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, api.OutputFile{Name: s.filename(name, api.SideBack), Data: back})
	}
	return out, nil
}

// Export renders every name in job and packs the files into a ZIP archive.
// It is all-or-nothing: the first failing name aborts the run and no
// archive is returned.
func Export(ctx context.Context, job Job) (*Result, error) {
	return ExportWith(ctx, job, Options{})
}

func ExportWith(ctx context.Context, job Job, opts Options) (*Result, error) {
	s, err := prepare(ctx, job, opts, true)
	if err != nil {
		return nil, err
	}
	w, err := writerFor(s.spec.Format)
	if err != nil {
		return nil, err
	}

	logger.Infof("exporting %d certificates as %s", len(s.names), s.spec.Format)
	perName := make([][]api.OutputFile, len(s.names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.spec.Concurrency)
	for i, name := range s.names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			files, err := w.write(gctx, s, name, i)
			if err != nil {
				return &RenderError{Name: name, Index: i, Format: s.spec.Format, Err: err}
			}
			perName[i] = files
			logger.Debugf("rendered %s", name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var files []api.OutputFile
	for _, f := range perName {
		files = append(files, f...)
	}
	dups := archive.Duplicates(files)
	for _, d := range dups {
		s.warn.Addf("file name %s is used more than once; extractors keep only the last copy, add {name} or another distinguishing part to the pattern", d)
	}

	data, err := archive.Build(files)
	if err != nil {
		return nil, err
	}
	back := ""
	if s.back != nil {
		back = s.back.String()
	}
	return &Result{
		Archive: data,
		Files:   files,
		Report: Report{
			Format:     s.spec.Format,
			Names:      len(s.names),
			Entries:    len(files),
			Font:       s.font.String(),
			Front:      s.front.String(),
			Back:       back,
			Warnings:   s.warn.List(),
			Duplicates: dups,
		},
	}, nil
}
