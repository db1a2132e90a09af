package editor

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/odvcencio/myedit/geom"
)

// Screen layout shared by the bundled modules: a line-number gutter on the
// left, buffer text to its right and a status row at the bottom.
const (
	GutterWidth = 4
	TabWidth    = 4
)

// TextRows returns how many buffer lines fit on a screen of size.
func TextRows(size geom.Rect) int {
	return max(size.H-1, 0)
}

// DisplayLine expands tabs in line to the next tab stop.
func DisplayLine(line string) string {
	if !strings.ContainsRune(line, '\t') {
		return line
	}
	var sb strings.Builder
	col := 0
	for _, r := range line {
		if r == '\t' {
			n := TabWidth - col%TabWidth
			sb.WriteString(strings.Repeat(" ", n))
			col += n
			continue
		}
		sb.WriteRune(r)
		col += runewidth.RuneWidth(r)
	}
	return sb.String()
}

// ScreenColumn returns the display column of p within its line.
func (b *Buffer) ScreenColumn(p geom.Point) int {
	runes := []rune(b.Line(p.Y))
	x := max(0, min(p.X, len(runes)))
	return runewidth.StringWidth(DisplayLine(string(runes[:x])))
}

// ScreenPoint maps a buffer position to a cell on screen, given the
// buffer's current scroll offset. It reports false for positions scrolled
// out of view.
func (b *Buffer) ScreenPoint(p geom.Point, size geom.Rect) (geom.Point, bool) {
	y := p.Y - b.StartLine
	if y < 0 || y >= TextRows(size) {
		return geom.Point{}, false
	}
	x := GutterWidth + b.ScreenColumn(p)
	if x >= size.W {
		return geom.Point{}, false
	}
	return geom.Point{X: x, Y: y}, true
}

// ScrollTo adjusts StartLine so that line y is visible in rows lines.
func (b *Buffer) ScrollTo(y, rows int) {
	if rows <= 0 {
		return
	}
	switch {
	case y < b.StartLine:
		b.StartLine = y
	case y >= b.StartLine+rows:
		b.StartLine = y - rows + 1
	}
	b.StartLine = max(0, min(b.StartLine, b.LineCount()-1))
}

// Scroll moves StartLine by delta lines, staying within the buffer.
func (b *Buffer) Scroll(delta int) {
	b.StartLine = max(0, min(b.StartLine+delta, b.LineCount()-1))
}
