package editor

import "github.com/odvcencio/myedit/geom"

// bracketPairs maps each bracket character to its matching partner.
var bracketPairs = map[rune]rune{
	'(': ')',
	')': '(',
	'{': '}',
	'}': '{',
	'[': ']',
	']': '[',
}

func isOpenBracket(r rune) bool {
	return r == '(' || r == '{' || r == '['
}

// runeAt returns the rune at p, or 0 past the end of a line.
func (b *Buffer) runeAt(p geom.Point) rune {
	line := []rune(b.Line(p.Y))
	if p.X < 0 || p.X >= len(line) {
		return 0
	}
	return line[p.X]
}

// MatchingBracket finds the partner of the bracket under p, scanning forward
// from an opening bracket and backward from a closing one across lines.
// Supports: () {} []
func (b *Buffer) MatchingBracket(p geom.Point) (geom.Point, bool) {
	ch := b.runeAt(p)
	partner, isBracket := bracketPairs[ch]
	if !isBracket {
		return geom.Point{}, false
	}

	step := -1
	if isOpenBracket(ch) {
		step = 1
	}

	depth := 1
	y := p.Y
	line := []rune(b.Line(y))
	x := p.X + step
	for {
		for x >= 0 && x < len(line) {
			switch line[x] {
			case ch:
				depth++
			case partner:
				depth--
				if depth == 0 {
					return geom.Point{X: x, Y: y}, true
				}
			}
			x += step
		}
		y += step
		if y < 0 || y >= b.LineCount() {
			return geom.Point{}, false
		}
		line = []rune(b.Line(y))
		x = 0
		if step < 0 {
			x = len(line) - 1
		}
	}
}
