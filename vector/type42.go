package vector

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/flanksource/certgen/fonts"
)

// maxSFNTString is the longest string a PostScript interpreter must accept,
// rounded down to an even length.
const maxSFNTString = 65534

var errSFNTLayout = errors.New("font has a table or glyph too large to split into PostScript strings")

// writeType42 defines font as a Type 42 font named name, with every
// ISO-8859-1 code mapped to the glyph of the same code point. Text shown
// with it must be encoded by latin1.
func writeType42(out io.Writer, name string, font *fonts.Font) error {
	chunks, err := sfntChunks(font.Data)
	if err != nil {
		return err
	}
	xmin, ymin, xmax, ymax := font.BBox()

	fmt.Fprintf(out, "%%%%BeginResource: font %s\n", name)
	fmt.Fprintf(out, "11 dict begin\n/FontName /%s def\n/FontType 42 def\n/PaintType 0 def\n", name)
	fmt.Fprintf(out, "/FontMatrix [1 0 0 1 0 0] def\n")
	fmt.Fprintf(out, "/FontBBox [%s %s %s %s] def\n",
		num(math.Min(xmin, xmax)), num(math.Min(ymin, ymax)), num(math.Max(xmin, xmax)), num(math.Max(ymin, ymax)))

	fmt.Fprintf(out, "/Encoding 256 array\n0 1 255 { 1 index exch /.notdef put } for\n")
	var glyphs []int
	for c := 0x20; c <= 0xFF; c++ {
		if c >= 0x7F && c < 0xA0 {
			continue
		}
		gid := font.GlyphIndex(rune(c))
		if gid == 0 {
			continue
		}
		fmt.Fprintf(out, "dup %d /c%02X put\n", c, c)
		glyphs = append(glyphs, c, gid)
	}
	fmt.Fprintf(out, "readonly def\n")

	fmt.Fprintf(out, "/CharStrings %d dict dup begin\n/.notdef 0 def\n", len(glyphs)/2+1)
	for i := 0; i < len(glyphs); i += 2 {
		fmt.Fprintf(out, "/c%02X %d def\n", glyphs[i], glyphs[i+1])
	}
	fmt.Fprintf(out, "end readonly def\n")

	fmt.Fprintf(out, "/sfnts [\n")
	for _, c := range chunks {
		fmt.Fprintf(out, "<")
		w := &lineWrapper{w: out, width: 64}
		if _, err := w.Write([]byte(hex.EncodeToString(c))); err != nil {
			return err
		}
		fmt.Fprintf(out, ">\n")
	}
	fmt.Fprintf(out, "] def\nFontName currentdict end definefont pop\n%%%%EndResource\n")
	return nil
}

// sfntChunks splits a TrueType program into strings no longer than
// maxSFNTString, breaking only between tables or between glyphs of the
// glyf table. Every chunk has an even length; an odd total is padded with
// one zero byte.
func sfntChunks(data []byte) ([][]byte, error) {
	if len(data) < 12 {
		return nil, errors.New("truncated font header")
	}
	numTables := int(binary.BigEndian.Uint16(data[4:]))
	if len(data) < 12+16*numTables {
		return nil, errors.New("truncated table directory")
	}

	type table struct{ offset, length int }
	tables := map[string]table{}
	breaks := []int{0, len(data)}
	for i := 0; i < numTables; i++ {
		rec := data[12+16*i:]
		t := table{int(binary.BigEndian.Uint32(rec[8:])), int(binary.BigEndian.Uint32(rec[12:]))}
		if t.offset+t.length > len(data) {
			return nil, fmt.Errorf("table %q out of range", rec[:4])
		}
		tables[string(rec[:4])] = t
		breaks = append(breaks, t.offset)
	}

	glyf, hasGlyf := tables["glyf"]
	head, hasHead := tables["head"]
	loca, hasLoca := tables["loca"]
	maxp, hasMaxp := tables["maxp"]
	if hasGlyf && hasHead && hasLoca && hasMaxp && head.length >= 54 && maxp.length >= 6 {
		long := binary.BigEndian.Uint16(data[head.offset+50:]) == 1
		n := int(binary.BigEndian.Uint16(data[maxp.offset+4:])) + 1
		for i := 0; i < n; i++ {
			var off int
			if long {
				if 4*i+4 > loca.length {
					break
				}
				off = int(binary.BigEndian.Uint32(data[loca.offset+4*i:]))
			} else {
				if 2*i+2 > loca.length {
					break
				}
				off = 2 * int(binary.BigEndian.Uint16(data[loca.offset+2*i:]))
			}
			if off <= glyf.length {
				breaks = append(breaks, glyf.offset+off)
			}
		}
	}

	sort.Ints(breaks)
	var even []int
	for _, b := range breaks {
		if (b%2 == 0 || b == len(data)) && (len(even) == 0 || even[len(even)-1] != b) {
			even = append(even, b)
		}
	}

	var chunks [][]byte
	start := 0
	for start < len(data) {
		end := start
		for _, b := range even {
			if b > start && b-start <= maxSFNTString {
				end = b
			}
		}
		if end == start {
			return nil, errSFNTLayout
		}
		c := data[start:end]
		if len(c)%2 == 1 {
			c = append(append([]byte(nil), c...), 0)
		}
		chunks = append(chunks, c)
		start = end
	}
	return chunks, nil
}
