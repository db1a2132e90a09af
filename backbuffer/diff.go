package backbuffer

import (
	"bufio"
	"io"

	"github.com/charmbracelet/x/ansi"
	"github.com/rivo/uniseg"

	"github.com/odvcencio/myedit/geom"
)

// walk visits, in row-major order, every index where cur differs from prev.
// The column and row are counted alongside the index instead of being
// derived from it. A prev of different dimensions is compared as if blank.
func walk(prev, cur *BackBuffer, fn func(i, x, y int)) {
	sameDim := prev != nil && prev.Dim == cur.Dim && len(prev.Cells) == len(cur.Cells)
	x, y := 0, 0
	var blank Cell
	for i := range cur.Cells {
		old := blank
		if sameDim {
			old = prev.Cells[i]
		}
		if old != cur.Cells[i] {
			fn(i, x, y)
		}
		x++
		if x >= cur.Dim.W {
			x = 0
			y++
		}
	}
}

// Diff returns the flattened indexes where cur differs from prev, in
// row-major order.
func Diff(prev, cur *BackBuffer) []int {
	var changed []int
	walk(prev, cur, func(i, _, _ int) {
		changed = append(changed, i)
	})
	return changed
}

// DiffAndFlush writes to w the escape sequences that turn prev into cur on
// the terminal and returns the number of changed cells. Nothing at all is
// written when the frames are equal.
func DiffAndFlush(prev, cur *BackBuffer, w io.Writer) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	walk(prev, cur, func(i, x, y int) {
		if n == 0 {
			bw.WriteString(ansi.SaveCursor)
		}
		n++
		c := cur.Cells[i]
		if c.Filler && coveredByLeft(cur, i, x) {
			return
		}
		bw.WriteString(ansi.CursorPosition(x+1, y+1))
		bw.WriteString(ansi.ResetStyle)
		if sgr := sgrFor(c); sgr != "" {
			bw.WriteString(sgr)
		}
		if c.Glyph == "" {
			bw.WriteByte(' ')
		} else {
			bw.WriteString(c.Glyph)
		}
	})
	if n == 0 {
		return 0, nil
	}
	bw.WriteString(ansi.ResetStyle)
	bw.WriteString(ansi.RestoreCursor)
	return n, bw.Flush()
}

// coveredByLeft reports whether the cell at i is drawn by a double-width
// glyph in the cell before it. An orphaned filler is not, and is flushed as
// a blank.
func coveredByLeft(bb *BackBuffer, i, x int) bool {
	if x == 0 {
		return false
	}
	left := bb.Cells[i-1]
	return !left.Filler && uniseg.StringWidth(left.Glyph) == 2
}

// FlushCursor moves or hides the terminal cursor when cur wants it somewhere
// other than prev did. It is meant to run after DiffAndFlush, which leaves
// the cursor where it found it.
func FlushCursor(prev, cur *BackBuffer, w io.Writer) error {
	var was *geom.Point
	if prev != nil {
		was = prev.Cursor
	}
	switch {
	case cur.Cursor == nil && was == nil:
		return nil
	case cur.Cursor == nil:
		_, err := io.WriteString(w, ansi.HideCursor)
		return err
	case was != nil && *was == *cur.Cursor:
		return nil
	}
	p := *cur.Cursor
	_, err := io.WriteString(w, ansi.CursorPosition(p.X+1, p.Y+1)+ansi.ShowCursor)
	return err
}

func sgrFor(c Cell) string {
	var s ansi.Style
	switch c.Style {
	case Bold:
		s = s.Bold()
	case Underlined:
		s = s.Underline()
	case Highlighted:
		s = s.Reverse()
	}
	if c.FG.Valid {
		s = s.ForegroundColor(trueColor(c.FG))
	}
	if c.BG.Valid {
		s = s.BackgroundColor(trueColor(c.BG))
	}
	if len(s) == 0 {
		return ""
	}
	return s.String()
}

func trueColor(c Color) ansi.TrueColor {
	return ansi.TrueColor(uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B))
}
