// Package certgen generates one certificate per name from a background
// template and packs them into a ZIP archive.
package certgen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/flanksource/certgen/api"
	"github.com/flanksource/certgen/fonts"
	"github.com/flanksource/certgen/layout"
	"gopkg.in/yaml.v3"
)

// DefaultOutput is the archive path used when none is configured.
const DefaultOutput = "certificados.zip"

// Job bundles every input of one export. It round-trips through YAML so a
// tuned layout can be saved and replayed.
type Job struct {
	// Front and Back are template paths. Back is optional.
	Front string `json:"front,omitempty" yaml:"front,omitempty"`
	Back  string `json:"back,omitempty" yaml:"back,omitempty"`

	// Names are used as is; NameList is read only when Names is empty.
	Names    []string `json:"names,omitempty" yaml:"names,omitempty"`
	NameList string   `json:"name_list,omitempty" yaml:"name_list,omitempty"`

	Font        string `json:"font,omitempty" yaml:"font,omitempty"`
	BundledFont string `json:"bundled_font,omitempty" yaml:"bundled_font,omitempty"`
	Output      string `json:"output,omitempty" yaml:"output,omitempty"`

	Style            api.GlobalStyle           `json:"style" yaml:"style"`
	Adjustments      map[string]api.Adjustment `json:"adjustments,omitempty" yaml:"adjustments,omitempty"`
	IndexAdjustments []api.Adjustment          `json:"index_adjustments,omitempty" yaml:"index_adjustments,omitempty"`
	Export           api.ExportSpec            `json:"export" yaml:"export"`
}

func DefaultJob() Job {
	return Job{
		BundledFont: fonts.DefaultBundledPath,
		Output:      DefaultOutput,
		Style:       api.DefaultGlobalStyle(),
		Export:      api.DefaultExportSpec(),
	}
}

// LoadJob reads a YAML job file over DefaultJob. Relative paths set in the
// file are resolved against the file's directory; defaults stay relative
// to the working directory.
func LoadJob(path string) (Job, error) {
	job := DefaultJob()
	data, err := os.ReadFile(path)
	if err != nil {
		return job, fmt.Errorf("failed to read job file: %w", err)
	}
	if err := yaml.Unmarshal(data, &job); err != nil {
		return job, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	job.resolvePaths(filepath.Dir(path))
	return job, nil
}

func (j *Job) resolvePaths(dir string) {
	def := DefaultJob()
	for _, p := range []*string{&j.Front, &j.Back, &j.NameList, &j.Font, &j.BundledFont, &j.Output} {
		if *p == def.BundledFont || *p == def.Output {
			continue
		}
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// Adjust returns the per-name overrides in lookup form.
func (j Job) Adjust() layout.Adjustments {
	return layout.Adjustments{ByName: j.Adjustments, ByIndex: j.IndexAdjustments}
}

func (j Job) YAML() (string, error) {
	data, err := yaml.Marshal(j)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ExampleJob is a commented starting point for a job file.
func ExampleJob() Job {
	job := DefaultJob()
	job.Front = "frente.png"
	job.Back = "verso.png"
	job.NameList = "nomes.csv"
	job.Font = "fonte.ttf"
	job.Adjustments = map[string]api.Adjustment{
		"Maria da Silva": {DX: 0, DY: -10, FontSize: 42},
	}
	job.Export.FilenamePattern = "Certificado_{name}"
	return job
}
