package layout

import (
	"github.com/flanksource/certgen/api"
)

// Adjustments holds per-name overrides. ByName wins over ByIndex; a name
// found in neither gets the global default.
type Adjustments struct {
	ByName  map[string]api.Adjustment
	ByIndex []api.Adjustment
}

// Resolve returns the adjustment for the name at position index in the
// list, filling a zero FontSize with the style's size.
func (a Adjustments) Resolve(style api.GlobalStyle, name string, index int) api.Adjustment {
	adj, ok := a.ByName[name]
	if !ok && index >= 0 && index < len(a.ByIndex) {
		adj, ok = a.ByIndex[index], true
	}
	if !ok {
		return Default(style)
	}
	if adj.FontSize <= 0 {
		adj.FontSize = style.FontSize()
	}
	return adj
}

// Default is {0, 0, global size}.
func Default(style api.GlobalStyle) api.Adjustment {
	return api.Adjustment{FontSize: style.FontSize()}
}
