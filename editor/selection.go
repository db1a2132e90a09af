package editor

import "github.com/odvcencio/myedit/geom"

// Selection is a span between two buffer positions. Anchor is where the
// selection started, Cursor is where it currently extends to.
type Selection struct {
	Anchor, Cursor geom.Point
}

// Active reports whether the selection covers a non-empty range.
func (s Selection) Active() bool {
	return s.Anchor != s.Cursor
}

// Ordered returns the selection bounds in document order.
func (s Selection) Ordered() (start, end geom.Point) {
	if Before(s.Cursor, s.Anchor) {
		return s.Cursor, s.Anchor
	}
	return s.Anchor, s.Cursor
}

// Text extracts the selected text from b.
func (s Selection) Text(b *Buffer) string {
	start, end := s.Ordered()
	return b.Slice(start, end)
}

// Clear collapses the selection onto its cursor.
func (s *Selection) Clear() {
	s.Anchor = s.Cursor
}

// Before reports whether a comes before b in document order.
func Before(a, b geom.Point) bool {
	return a.Y < b.Y || (a.Y == b.Y && a.X < b.X)
}
