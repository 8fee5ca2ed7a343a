// Package layout computes where a name is drawn on the certificate.
//
// Every output format goes through Place, so raster and vector files built
// from the same inputs put the text at the same coordinates.
package layout

import (
	"github.com/flanksource/certgen/api"
)

// Anchor is the global anchor plus the global and per-name offsets.
type Anchor struct {
	X, Y               float64
	GlobalDX, GlobalDY float64
	DX, DY             float64
}

func NewAnchor(style api.GlobalStyle, adj api.Adjustment) Anchor {
	return Anchor{
		X:        style.AnchorX,
		Y:        style.AnchorY,
		GlobalDX: style.GlobalDX,
		GlobalDY: style.GlobalDY,
		DX:       float64(adj.DX),
		DY:       float64(adj.DY),
	}
}

// Center returns the composed reference point.
func (a Anchor) Center() (cx, cy float64) {
	return a.X + a.GlobalDX + a.DX, a.Y + a.GlobalDY + a.DY
}

// Place returns the top-left corner of the text box. The text is always
// vertically centered on the anchor; alignment only moves it horizontally.
func Place(a Anchor, m api.Metrics, align api.Alignment) api.Position {
	cx, cy := a.Center()
	y := cy - m.Height/2
	switch align {
	case api.AlignLeft:
		return api.Position{X: cx, Y: y}
	case api.AlignRight:
		return api.Position{X: cx - m.Width, Y: y}
	default:
		return api.Position{X: cx - m.Width/2, Y: y}
	}
}

// Baseline is the y coordinate backends that draw at the baseline use.
func Baseline(p api.Position, m api.Metrics) float64 {
	return p.Y + m.Ascent
}

// Text is a fully resolved name placement, independent of output format.
type Text struct {
	Value  string
	Anchor Anchor
	Align  api.Alignment
	Size   float64
	Color  api.Color
}

// Place measures nothing; callers pass metrics from their own backend.
func (t Text) Place(m api.Metrics) api.Position {
	return Place(t.Anchor, m, t.Align)
}
