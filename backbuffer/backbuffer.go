// Package backbuffer holds one frame of styled terminal cells per client and
// the primitives extension modules paint with.
package backbuffer

import (
	"github.com/rivo/uniseg"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/geom"
)

// Style is an optional text attribute. StyleNone leaves a cell unchanged
// when applied as a partial update.
type Style uint8

const (
	StyleNone Style = iota
	Underlined
	Highlighted
	Bold
)

// Color is an optional 24-bit colour.
type Color struct {
	R, G, B uint8
	Valid   bool
}

// RGB returns a set colour.
func RGB(r, g, b uint8) Color {
	return Color{R: r, G: g, B: b, Valid: true}
}

// Common colours used by the bundled modules.
var (
	Red    = RGB(0xe0, 0x6c, 0x75)
	Green  = RGB(0x98, 0xc3, 0x79)
	Blue   = RGB(0x61, 0xaf, 0xef)
	Yellow = RGB(0xe5, 0xc0, 0x7b)
	Gray   = RGB(0x5c, 0x63, 0x70)
)

// Cell is one terminal character slot. The zero Cell is blank and unstyled.
// Filler marks the right half of a double-width glyph in the cell before it.
type Cell struct {
	Glyph  string
	FG     Color
	BG     Color
	Style  Style
	Filler bool
}

// BackBuffer is a row-major grid of Dim.W*Dim.H cells. Cursor is where the
// terminal cursor should rest after the frame is drawn; nil hides it.
type BackBuffer struct {
	Dim    geom.Rect
	Cells  []Cell
	Cursor *geom.Point
}

var log logrus.FieldLogger = logrus.StandardLogger()

// SetLogger routes the package's bound warnings to l.
func SetLogger(l logrus.FieldLogger) {
	log = l
}

// New allocates a blank buffer of the given size.
func New(size geom.Rect) *BackBuffer {
	return &BackBuffer{Dim: size, Cells: make([]Cell, size.Area())}
}

// Index returns the flattened row*width+col offset of p.
func (bb *BackBuffer) Index(p geom.Point) int {
	return p.Y*bb.Dim.W + p.X
}

// At returns the cell at p and whether p is inside the buffer.
func (bb *BackBuffer) At(p geom.Point) (Cell, bool) {
	if !bb.Dim.Contains(p) {
		return Cell{}, false
	}
	return bb.Cells[bb.Index(p)], true
}

// Clear resets every cell to blank and hides the cursor.
func (bb *BackBuffer) Clear() {
	clear(bb.Cells)
	bb.Cursor = nil
}

// SetCursor places the terminal cursor at p if p is inside the buffer.
func (bb *BackBuffer) SetCursor(p geom.Point) {
	if !bb.Dim.Contains(p) {
		return
	}
	bb.Cursor = &p
}

func apply(c *Cell, style Style, fg, bg Color) {
	if style != StyleNone {
		c.Style = style
	}
	if fg.Valid {
		c.FG = fg
	}
	if bg.Valid {
		c.BG = bg
	}
}

// WriteText paints text starting at origin. It walks grapheme clusters,
// advancing by display width; a line break continues at column 0 of the next
// row. Anything past the last row or the last column is dropped, so no
// input can index outside the grid.
func WriteText(bb *BackBuffer, origin geom.Point, text string, style Style, fg, bg Color) {
	if origin.X < 0 || origin.Y < 0 {
		return
	}
	p := origin
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		if p.Y >= bb.Dim.H {
			return
		}
		cluster := g.Str()
		if cluster == "\n" || cluster == "\r\n" {
			p.X = 0
			p.Y++
			continue
		}
		width := g.Width()
		if cluster == "\t" {
			cluster, width = " ", 1
		}
		if width <= 0 {
			continue
		}
		if p.X+width > bb.Dim.W {
			// Clip the rest of this row; a wide glyph that does not fit
			// leaves a blank in the last column.
			if p.X < bb.Dim.W {
				claim(bb, p, 1)
				c := &bb.Cells[bb.Index(p)]
				c.Glyph = " "
				c.Filler = false
				apply(c, style, fg, bg)
			}
			p.X = bb.Dim.W
			continue
		}
		claim(bb, p, width)
		c := &bb.Cells[bb.Index(p)]
		c.Glyph = cluster
		c.Filler = false
		apply(c, style, fg, bg)
		if width == 2 {
			f := &bb.Cells[bb.Index(geom.Point{X: p.X + 1, Y: p.Y})]
			f.Glyph = ""
			f.Filler = true
			apply(f, style, fg, bg)
		}
		p.X += width
	}
}

// claim readies the width cells at p for a new glyph. A wide glyph whose
// right half gets overwritten is blanked, and a filler that would be left
// without its wide glyph is cleared.
func claim(bb *BackBuffer, p geom.Point, width int) {
	i := bb.Index(p)
	if bb.Cells[i].Filler && p.X > 0 {
		bb.Cells[i-1].Glyph = " "
	}
	if p.X+width < bb.Dim.W {
		if next := &bb.Cells[i+width]; next.Filler {
			next.Filler = false
			next.Glyph = " "
		}
	}
}

// StyleRange applies a partial update to length consecutive cells starting
// at origin's flattened offset, running across row ends. Only set fields
// overwrite. An offset outside the grid is logged and the remaining cells
// are skipped.
func StyleRange(bb *BackBuffer, origin geom.Point, length int, style Style, fg, bg Color) {
	StyleRangeTo(log, bb, origin, length, style, fg, bg)
}

// StyleRangeTo is StyleRange reporting overflow to l.
func StyleRangeTo(l logrus.FieldLogger, bb *BackBuffer, origin geom.Point, length int, style Style, fg, bg Color) {
	start := bb.Index(origin)
	for off := 0; off < length; off++ {
		i := start + off
		if i < 0 || i >= len(bb.Cells) {
			l.WithFields(logrus.Fields{
				"offset": i,
				"cells":  len(bb.Cells),
			}).Warn("style range overflow")
			return
		}
		apply(&bb.Cells[i], style, fg, bg)
	}
}

// StyleSpan applies StyleRange once per line of a multi-line span. The
// first line starts at origin; each following line starts one row lower at
// column margin, which skips a fixed-width gutter.
func StyleSpan(bb *BackBuffer, span string, origin geom.Point, margin int, style Style, fg, bg Color) {
	StyleSpanTo(log, bb, span, origin, margin, style, fg, bg)
}

// StyleSpanTo is StyleSpan reporting overflow to l.
func StyleSpanTo(l logrus.FieldLogger, bb *BackBuffer, span string, origin geom.Point, margin int, style Style, fg, bg Color) {
	p := origin
	start := 0
	for i := 0; i <= len(span); i++ {
		if i < len(span) && span[i] != '\n' {
			continue
		}
		if n := uniseg.StringWidth(span[start:i]); n > 0 {
			StyleRangeTo(l, bb, p, n, style, fg, bg)
		}
		start = i + 1
		p.X = margin
		p.Y++
	}
}
