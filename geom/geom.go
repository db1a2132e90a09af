// Package geom holds the terminal coordinate types shared by the wire
// protocol and the renderer.
package geom

// Point is a zero-based cell position: X is the column, Y the row.
type Point struct {
	X int `msgpack:"x"`
	Y int `msgpack:"y"`
}

// Rect is a terminal size in cells.
type Rect struct {
	W int `msgpack:"w"`
	H int `msgpack:"h"`
}

// Area returns the number of cells covered by r, or 0 for degenerate sizes.
func (r Rect) Area() int {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

// Contains reports whether p lies inside r.
func (r Rect) Contains(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < r.W && p.Y < r.H
}
