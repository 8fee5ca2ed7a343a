package certgen

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/flanksource/certgen/api"
	"github.com/muesli/termenv"
)

// Report summarizes an export for the caller.
type Report struct {
	Format     api.Format `json:"format" yaml:"format"`
	Names      int        `json:"names" yaml:"names"`
	Entries    int        `json:"entries" yaml:"entries"`
	Font       string     `json:"font" yaml:"font"`
	Front      string     `json:"front" yaml:"front"`
	Back       string     `json:"back,omitempty" yaml:"back,omitempty"`
	Warnings   []string   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Duplicates []string   `json:"duplicates,omitempty" yaml:"duplicates,omitempty"`
}

// Render returns a styled summary for w. Colors are dropped when w is not
// a terminal or noColor is set.
func (r Report) Render(w io.Writer, noColor bool) string {
	renderer := lipgloss.NewRenderer(w)
	if noColor {
		renderer.SetColorProfile(termenv.Ascii)
	}
	title := renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	label := renderer.NewStyle().Foreground(lipgloss.Color("8")).Width(10)
	warning := renderer.NewStyle().Foreground(lipgloss.Color("11"))

	var b strings.Builder
	b.WriteString(title.Render(fmt.Sprintf("%d files for %d names (%s)", r.Entries, r.Names, r.Format)))
	b.WriteString("\n")
	row := func(k, v string) {
		b.WriteString(label.Render(k) + v + "\n")
	}
	row("front", r.Front)
	if r.Back != "" {
		row("back", r.Back)
	}
	row("font", r.Font)
	for _, msg := range r.Warnings {
		b.WriteString(warning.Render("! "+msg) + "\n")
	}
	return b.String()
}
