package editor

import "github.com/odvcencio/myedit/geom"

// DeleteLine removes line y, newline included, and returns its text. The
// last remaining line is emptied instead. Out of range lines are ignored.
func (b *Buffer) DeleteLine(y int) (string, bool) {
	if y < 0 || y >= len(b.lines) {
		return "", false
	}
	text := b.lines[y]
	switch {
	case len(b.lines) == 1:
		b.Remove(geom.Point{}, geom.Point{X: b.LineLen(0)})
	case y == len(b.lines)-1:
		b.Remove(geom.Point{X: b.LineLen(y - 1), Y: y - 1}, geom.Point{X: b.LineLen(y), Y: y})
	default:
		b.Remove(geom.Point{Y: y}, geom.Point{Y: y + 1})
	}
	return text, true
}

// DuplicateLine inserts a copy of line y immediately after it.
func (b *Buffer) DuplicateLine(y int) bool {
	if y < 0 || y >= len(b.lines) {
		return false
	}
	b.Insert(geom.Point{X: b.LineLen(y), Y: y}, "\n"+b.lines[y])
	return true
}

// MoveLine swaps line y with the line delta away (+1 = down, -1 = up).
// Returns false if the target line is out of bounds.
func (b *Buffer) MoveLine(y, delta int) bool {
	target := y + delta
	if y < 0 || y >= len(b.lines) || target < 0 || target >= len(b.lines) || delta == 0 {
		return false
	}
	lo, hi := min(y, target), max(y, target)
	text := b.lines[hi] + "\n" + b.lines[lo]
	if hi-lo > 1 {
		// Lines in between stay put.
		mid := b.Slice(geom.Point{Y: lo + 1}, geom.Point{X: b.LineLen(hi - 1), Y: hi - 1})
		text = b.lines[hi] + "\n" + mid + "\n" + b.lines[lo]
	}
	b.ApplyEdit(geom.Point{Y: lo}, geom.Point{X: b.LineLen(hi), Y: hi}, text)
	return true
}
