// Package archive packs certificate files into a ZIP archive.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/flanksource/certgen/api"
	"github.com/samber/lo"
)

// ModTime is stamped on every member so identical inputs give identical
// archives. It is the earliest time the ZIP format can represent.
var ModTime = time.Date(1980, 1, 1, 0, 0, 0, 0, time.UTC)

// Builder streams members into a ZIP archive. Members are written in Add
// order; repeated names are written again, not merged.
type Builder struct {
	zw    *zip.Writer
	count int
}

func NewBuilder(w io.Writer) *Builder {
	return &Builder{zw: zip.NewWriter(w)}
}

// Add writes one deflate-compressed member.
func (b *Builder) Add(f api.OutputFile) error {
	hdr := &zip.FileHeader{
		Name:     f.Name,
		Method:   zip.Deflate,
		Modified: ModTime,
	}
	w, err := b.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", f.Name, err)
	}
	if _, err := w.Write(f.Data); err != nil {
		return fmt.Errorf("failed to write %s to archive: %w", f.Name, err)
	}
	b.count++
	return nil
}

// Len is the number of members added so far.
func (b *Builder) Len() int {
	return b.count
}

// Close writes the central directory. The underlying writer is not closed.
func (b *Builder) Close() error {
	return b.zw.Close()
}

// Build packs entries in order into an in-memory archive.
func Build(entries []api.OutputFile) ([]byte, error) {
	var buf bytes.Buffer
	b := NewBuilder(&buf)
	for _, e := range entries {
		if err := b.Add(e); err != nil {
			return nil, err
		}
	}
	if err := b.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Duplicates lists member names that occur more than once, in first
// occurrence order. Extractors keep only the last of each.
func Duplicates(entries []api.OutputFile) []string {
	return lo.FindDuplicates(lo.Map(entries, func(e api.OutputFile, _ int) string {
		return e.Name
	}))
}
