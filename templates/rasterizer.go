package templates

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/flanksource/commons/logger"
)

// ErrRasterizerUnavailable means no registered rasterizer accepts a source.
var ErrRasterizerUnavailable = errors.New("no rasterizer available")

// Rasterizer turns a vector template (SVG, PDF, EPS) into a bitmap.
type Rasterizer interface {
	// Name returns the name of the rasterizer
	Name() string

	// IsAvailable checks if the rasterizer can run on this system
	IsAvailable() bool

	// Accepts reports whether the rasterizer reads this kind of source
	Accepts(kind Kind) bool

	Rasterize(ctx context.Context, src []byte, kind Kind, opts RasterOptions) (image.Image, error)
}

// RasterOptions sizes the output bitmap. Zero values keep the source size.
type RasterOptions struct {
	Width  int
	Height int
	DPI    int
}

// RasterizeError wraps a failure of one rasterizer.
type RasterizeError struct {
	Rasterizer string
	Kind       Kind
	Err        error
}

func (e *RasterizeError) Error() string {
	return fmt.Sprintf("%s rasterizer failed on %s: %v", e.Rasterizer, e.Kind, e.Err)
}

func (e *RasterizeError) Unwrap() error {
	return e.Err
}

// Chain tries rasterizers in order until one succeeds.
type Chain struct {
	mu          sync.RWMutex
	rasterizers []Rasterizer
}

// NewChain keeps only the rasterizers available on this system.
func NewChain(rasterizers ...Rasterizer) *Chain {
	c := &Chain{}
	for _, r := range rasterizers {
		if r.IsAvailable() {
			c.rasterizers = append(c.rasterizers, r)
		}
	}
	return c
}

// DefaultChain prefers the in-process SVG rasterizer, then rsvg-convert,
// then Inkscape, which is also the only one that reads PDF and EPS.
func DefaultChain() *Chain {
	return NewChain(NewNativeRasterizer(), NewRSVGRasterizer(), NewInkscapeRasterizer())
}

func (c *Chain) Name() string {
	return "chain"
}

func (c *Chain) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rasterizers) > 0
}

func (c *Chain) Accepts(kind Kind) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rasterizers {
		if r.Accepts(kind) {
			return true
		}
	}
	return false
}

// Names lists the registered rasterizers in priority order.
func (c *Chain) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.rasterizers))
	for i, r := range c.rasterizers {
		names[i] = r.Name()
	}
	return names
}

func (c *Chain) Rasterize(ctx context.Context, src []byte, kind Kind, opts RasterOptions) (image.Image, error) {
	c.mu.RLock()
	rasterizers := append([]Rasterizer(nil), c.rasterizers...)
	c.mu.RUnlock()

	var errs []error
	for _, r := range rasterizers {
		if !r.Accepts(kind) {
			continue
		}
		img, err := r.Rasterize(ctx, src, kind, opts)
		if err == nil {
			logger.Debugf("rasterized %s template with %s", kind, r.Name())
			return img, nil
		}
		errs = append(errs, &RasterizeError{Rasterizer: r.Name(), Kind: kind, Err: err})
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrRasterizerUnavailable, kind)
	}
	return nil, fmt.Errorf("all rasterizers failed: %w", errors.Join(errs...))
}
