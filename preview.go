package certgen

import (
	"context"

	"github.com/flanksource/certgen/api"
	"github.com/flanksource/certgen/names"
	"github.com/flanksource/certgen/render"
	"github.com/samber/lo"
)

// Preview renders the front side for a single name as PNG. The name does
// not need to be in the job's list; when it is, its index adjustments
// apply.
func Preview(ctx context.Context, job Job, name string) ([]byte, []string, error) {
	return PreviewWith(ctx, job, name, Options{})
}

func PreviewWith(ctx context.Context, job Job, name string, opts Options) ([]byte, []string, error) {
	s, err := prepare(ctx, job, opts, false)
	if err != nil {
		return nil, nil, err
	}
	list := job.Names
	if len(list) == 0 && job.NameList != "" {
		if list, err = names.ReadFile(job.NameList); err != nil {
			s.warn.Addf("name list not read, index adjustments are skipped: %v", err)
		}
	}
	index := lo.IndexOf(list, name)
	img := render.Render(s.pages(name, index)[0], s.font)
	data, err := render.Encode(img, api.FormatPNG, s.spec)
	if err != nil {
		return nil, nil, err
	}
	return data, s.warn.List(), nil
}
