// Package naming turns names into archive member file names.
package naming

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/flanksource/certgen/api"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fallback is used when nothing of a name survives sanitization.
const Fallback = "certificado"

// BackSuffix marks the back side of a certificate.
const BackSuffix = "_verso"

var (
	disallowed = regexp.MustCompile(`[^A-Za-z0-9_\-. ]+`)
	whitespace = regexp.MustCompile(`\s+`)
)

// ascii decomposes accented letters and drops the marks and anything else
// outside ASCII.
func ascii(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.Predicate(func(r rune) bool {
		return r > unicode.MaxASCII
	})))
	out, _, err := transform.String(t, s)
	if err != nil {
		return ""
	}
	return out
}

func clean(s string) string {
	s = disallowed.ReplaceAllString(ascii(s), "")
	return whitespace.ReplaceAllString(strings.TrimSpace(s), "_")
}

// Sanitize reduces name to [A-Za-z0-9_.-], replacing runs of whitespace
// with a single underscore. "José O'Brien #1" becomes "Jose_OBrien_1".
func Sanitize(name string) string {
	if s := clean(name); s != "" {
		return s
	}
	return Fallback
}

// Pattern is a file name template; {name} is replaced with the sanitized
// name.
type Pattern string

// Expand builds the member name for one side of one certificate. Path
// separators and other unsafe characters in the pattern are removed, so
// every member lands at the archive root.
func (p Pattern) Expand(name string, side api.Side, ext string) string {
	pattern := string(p)
	if strings.TrimSpace(pattern) == "" {
		pattern = api.DefaultPattern
	}
	base := clean(strings.ReplaceAll(pattern, "{name}", Sanitize(name)))
	if base == "" {
		base = Fallback
	}
	if side == api.SideBack {
		base += BackSuffix
	}
	return base + "." + strings.TrimPrefix(ext, ".")
}
