// Package names reads the list of people to print certificates for.
package names

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/flanksource/commons/logger"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Kind is the shape of a name list file.
type Kind string

const (
	KindText Kind = "text"
	KindCSV  Kind = "csv"
)

var (
	ErrUndecodable     = errors.New("name list could not be decoded with any supported encoding")
	ErrUnsupportedKind = errors.New("unsupported name list type")
	ErrMissingHeader   = errors.New("csv name list has no header row")
)

// KindFromFilename maps .txt to text and .csv to csv.
func KindFromFilename(name string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".text", ".lst":
		return KindText, nil
	case ".csv", ".tsv":
		return KindCSV, nil
	}
	return "", fmt.Errorf("%w: %s (expected .txt or .csv)", ErrUnsupportedKind, name)
}

// Encoding is one attempt in the decode chain. Decode reports false when
// the input is not valid in this encoding.
type Encoding struct {
	Name   string
	Decode func([]byte) (string, bool)
}

var (
	UTF8 = Encoding{Name: "utf-8", Decode: func(b []byte) (string, bool) {
		b = bytes.TrimPrefix(b, []byte("\xef\xbb\xbf"))
		if !utf8.Valid(b) {
			return "", false
		}
		return string(b), true
	}}
	UTF16 = Encoding{Name: "utf-16", Decode: func(b []byte) (string, bool) {
		if !bytes.HasPrefix(b, []byte{0xff, 0xfe}) && !bytes.HasPrefix(b, []byte{0xfe, 0xff}) {
			return "", false
		}
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), b)
	}}
	Windows1252 = Encoding{Name: "cp1252", Decode: func(b []byte) (string, bool) {
		return decodeWith(charmap.Windows1252, b)
	}}
	Latin1 = Encoding{Name: "latin-1", Decode: func(b []byte) (string, bool) {
		return decodeWith(charmap.ISO8859_1, b)
	}}
)

// DefaultEncodings is tried in order. Latin-1 accepts every byte sequence
// so it is last.
var DefaultEncodings = []Encoding{UTF16, UTF8, Windows1252, Latin1}

func decodeWith(e encoding.Encoding, b []byte) (string, bool) {
	out, err := e.NewDecoder().Bytes(b)
	if err != nil || bytes.ContainsRune(out, utf8.RuneError) {
		return "", false
	}
	return string(out), true
}

// Reader parses name lists. The zero value uses DefaultEncodings.
type Reader struct {
	Encodings []Encoding
}

// Read is a shortcut for Reader{}.Read.
func Read(r io.Reader, kind Kind) ([]string, error) {
	return Reader{}.Read(r, kind)
}

// ReadFile picks the kind from the file extension.
func ReadFile(path string) ([]string, error) {
	kind, err := KindFromFilename(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open name list: %w", err)
	}
	defer f.Close()
	list, err := Read(f, kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return list, nil
}

// Read returns names in input order; duplicates are kept.
func (r Reader) Read(in io.Reader, kind Kind) ([]string, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read name list: %w", err)
	}
	text, err := r.decode(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindText:
		return parseLines(text), nil
	case KindCSV:
		return parseCSV(text)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
}

func (r Reader) decode(raw []byte) (string, error) {
	encodings := r.Encodings
	if len(encodings) == 0 {
		encodings = DefaultEncodings
	}
	tried := make([]string, 0, len(encodings))
	for _, enc := range encodings {
		if text, ok := enc.Decode(raw); ok {
			logger.Debugf("decoded name list as %s", enc.Name)
			return text, nil
		}
		tried = append(tried, enc.Name)
	}
	return "", fmt.Errorf("%w (tried %s)", ErrUndecodable, strings.Join(tried, ", "))
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// parseLines splits on LF, CRLF and bare CR line endings.
func parseLines(text string) []string {
	var out []string
	for _, line := range strings.Split(lineBreaks.Replace(text), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func parseCSV(text string) ([]string, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = sniffDelimiter(text)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if err == io.EOF {
			return nil, ErrMissingHeader
		}
		return nil, fmt.Errorf("invalid csv header: %w", err)
	}
	var out []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if len(rec) == 0 {
			continue
		}
		if v := strings.TrimSpace(rec[0]); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// sniffDelimiter picks the most frequent of , ; and tab on the header line.
func sniffDelimiter(text string) rune {
	header, _, _ := strings.Cut(text, "\n")
	best, count := ',', strings.Count(header, ",")
	for _, d := range []rune{';', '\t'} {
		if n := strings.Count(header, string(d)); n > count {
			best, count = d, n
		}
	}
	return best
}
