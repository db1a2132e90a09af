package editor

import "strings"

// IndentUnit guesses whether the buffer indents with tabs or spaces and
// returns one level of indentation ("\t" or a run of spaces). Defaults to
// "\t" if no indented line is found.
func (b *Buffer) IndentUnit() string {
	tabCount := 0
	spaceCount := 0
	minSpaceWidth := 0

	for _, line := range b.lines {
		if len(line) == 0 {
			continue
		}
		switch line[0] {
		case '\t':
			tabCount++
		case ' ':
			spaceCount++
			w := len(line) - len(strings.TrimLeft(line, " "))
			if w == len(line) {
				// Blank lines of spaces say nothing about the unit.
				continue
			}
			if minSpaceWidth == 0 || w < minSpaceWidth {
				minSpaceWidth = w
			}
		}
	}

	if spaceCount > tabCount && minSpaceWidth > 0 {
		return strings.Repeat(" ", minSpaceWidth)
	}
	return "\t"
}

// ComputeIndent returns the indentation for a new line following line. The
// existing indent is copied and grows by unit when the line opens a block:
// it ends with {, ( or [ or, as in Python, a colon.
func ComputeIndent(line, unit string) string {
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]

	trimmed := strings.TrimRight(line, " \t")
	if trimmed == "" {
		return indent
	}
	switch trimmed[len(trimmed)-1] {
	case '{', '(', '[', ':':
		indent += unit
	}
	return indent
}
