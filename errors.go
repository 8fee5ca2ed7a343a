package certgen

import (
	"errors"
	"fmt"

	"github.com/flanksource/certgen/api"
)

// ErrNoFormat is returned when an export format cannot be dispatched.
var ErrNoFormat = errors.New("no writer for format")

// RenderError reports the name whose certificate could not be produced.
// Any RenderError aborts the whole export.
type RenderError struct {
	Name   string
	Index  int
	Format api.Format
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("failed to render %q (#%d) as %s: %v", e.Name, e.Index+1, e.Format, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
