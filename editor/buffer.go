package editor

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/odvcencio/myedit/geom"
)

// Range is a half-open span [Start, End) of buffer positions.
type Range struct {
	Start, End geom.Point
}

// editOp records a single edit for undo/redo support.
type editOp struct {
	at       geom.Point
	removed  string
	inserted string
}

// Buffer holds the text of one open file as a slice of lines. Positions are
// geom.Points: Y is the line, X the rune column within it.
type Buffer struct {
	source    string   // absolute path, or "" if untitled
	lines     []string // never empty; lines carry no trailing newline
	savedText string   // text at last save/open (for dirty comparison)
	undoStack []editOp
	redoStack []editOp
	revision  uint64

	// StartLine is the first line shown when the buffer is rendered.
	StartLine int
}

// NewBuffer creates a new empty, untitled buffer.
func NewBuffer() *Buffer {
	return &Buffer{lines: []string{""}}
}

// Open reads the file at path into the buffer, replacing any existing
// content. The stored source path is converted to an absolute path.
func (b *Buffer) Open(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return err
	}

	b.source = absPath
	b.setText(string(data))
	b.savedText = string(data)
	b.undoStack, b.redoStack = nil, nil
	b.StartLine = 0
	return nil
}

// Save writes the current text to the source path.
// Returns an error if the buffer has no path (untitled).
func (b *Buffer) Save() error {
	if b.source == "" {
		return errors.New("buffer has no path; use SaveAs")
	}
	text := b.Text()
	if err := os.WriteFile(b.source, []byte(text), 0644); err != nil {
		return err
	}
	b.savedText = text
	return nil
}

// SaveAs writes the current text to the given path, updates the source path,
// and marks the buffer as clean.
func (b *Buffer) SaveAs(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	text := b.Text()
	if err := os.WriteFile(absPath, []byte(text), 0644); err != nil {
		return err
	}

	b.source = absPath
	b.savedText = text
	return nil
}

// Source returns the absolute file path, or "" if the buffer is untitled.
func (b *Buffer) Source() string {
	return b.source
}

// Text returns the full text content of the buffer.
func (b *Buffer) Text() string {
	return strings.Join(b.lines, "\n")
}

// SetText replaces the whole content. Undo history is dropped.
func (b *Buffer) SetText(text string) {
	b.setText(text)
	b.undoStack, b.redoStack = nil, nil
}

func (b *Buffer) setText(text string) {
	b.lines = strings.Split(text, "\n")
	b.revision++
}

// Revision counts changes to the text. Caches derived from the text compare
// it to tell whether they are stale.
func (b *Buffer) Revision() uint64 {
	return b.revision
}

// Dirty reports whether the buffer's text differs from the last saved/opened text.
func (b *Buffer) Dirty() bool {
	return b.Text() != b.savedText
}

// Untitled reports whether the buffer has no associated file path.
func (b *Buffer) Untitled() bool {
	return b.source == ""
}

// Title returns the base filename, or "untitled" if the buffer has no path.
func (b *Buffer) Title() string {
	if b.source == "" {
		return "untitled"
	}
	return filepath.Base(b.source)
}

// LineCount returns the number of lines. An empty buffer has one line.
func (b *Buffer) LineCount() int {
	return len(b.lines)
}

// Line returns line y without its newline, or "" when y is out of range.
func (b *Buffer) Line(y int) string {
	if y < 0 || y >= len(b.lines) {
		return ""
	}
	return b.lines[y]
}

// LineLen returns the rune length of line y.
func (b *Buffer) LineLen(y int) int {
	return utf8.RuneCountInString(b.Line(y))
}

// Lines returns up to n lines starting at line start.
func (b *Buffer) Lines(start, n int) []string {
	if start < 0 {
		start = 0
	}
	if start >= len(b.lines) || n <= 0 {
		return nil
	}
	end := min(start+n, len(b.lines))
	return b.lines[start:end]
}

// Clamp moves p to the nearest valid position in the buffer. A column one
// past the last rune of a line is valid (end of line).
func (b *Buffer) Clamp(p geom.Point) geom.Point {
	p.Y = max(0, min(p.Y, len(b.lines)-1))
	p.X = max(0, min(p.X, b.LineLen(p.Y)))
	return p
}

// PointToChar converts a position to a rune offset from the buffer start.
func (b *Buffer) PointToChar(p geom.Point) int {
	p = b.Clamp(p)
	off := 0
	for y := 0; y < p.Y; y++ {
		off += utf8.RuneCountInString(b.lines[y]) + 1
	}
	return off + p.X
}

// CharToPoint converts a rune offset to a position, clamping to the buffer.
func (b *Buffer) CharToPoint(off int) geom.Point {
	if off < 0 {
		return geom.Point{}
	}
	for y, line := range b.lines {
		n := utf8.RuneCountInString(line)
		if off <= n {
			return geom.Point{X: off, Y: y}
		}
		off -= n + 1
	}
	last := len(b.lines) - 1
	return geom.Point{X: b.LineLen(last), Y: last}
}

// Slice returns the text in [start, end).
func (b *Buffer) Slice(start, end geom.Point) string {
	start, end = b.ordered(start, end)
	if start.Y == end.Y {
		return string([]rune(b.lines[start.Y])[start.X:end.X])
	}
	var sb strings.Builder
	sb.WriteString(string([]rune(b.lines[start.Y])[start.X:]))
	for y := start.Y + 1; y < end.Y; y++ {
		sb.WriteByte('\n')
		sb.WriteString(b.lines[y])
	}
	sb.WriteByte('\n')
	sb.WriteString(string([]rune(b.lines[end.Y])[:end.X]))
	return sb.String()
}

// Insert adds text at p, recording the edit for undo, and returns the
// position just after the inserted text.
func (b *Buffer) Insert(p geom.Point, text string) geom.Point {
	p = b.Clamp(p)
	b.ApplyEdit(p, p, text)
	return endOf(p, text)
}

// Remove deletes the text in [start, end), recording the edit for undo, and
// returns the removed text.
func (b *Buffer) Remove(start, end geom.Point) string {
	start, end = b.ordered(start, end)
	removed := b.Slice(start, end)
	b.ApplyEdit(start, end, "")
	return removed
}

// ApplyEdit records the edit on the undo stack, clears the redo stack, and
// replaces the text in [start, end) with text.
func (b *Buffer) ApplyEdit(start, end geom.Point, text string) {
	start, end = b.ordered(start, end)
	b.undoStack = append(b.undoStack, editOp{
		at:       start,
		removed:  b.Slice(start, end),
		inserted: text,
	})
	b.redoStack = nil
	b.replace(start, end, text)
}

// Undo reverses the last edit. Returns the position the edit happened at
// and true, or false if the undo stack is empty.
func (b *Buffer) Undo() (geom.Point, bool) {
	if len(b.undoStack) == 0 {
		return geom.Point{}, false
	}
	op := b.undoStack[len(b.undoStack)-1]
	b.undoStack = b.undoStack[:len(b.undoStack)-1]
	// Reverse the edit: replace inserted back with removed.
	b.replace(op.at, endOf(op.at, op.inserted), op.removed)
	b.redoStack = append(b.redoStack, op)
	return op.at, true
}

// Redo reapplies the last undone edit. Returns the position after the
// reapplied text and true, or false if the redo stack is empty.
func (b *Buffer) Redo() (geom.Point, bool) {
	if len(b.redoStack) == 0 {
		return geom.Point{}, false
	}
	op := b.redoStack[len(b.redoStack)-1]
	b.redoStack = b.redoStack[:len(b.redoStack)-1]
	// Reapply the edit.
	b.replace(op.at, endOf(op.at, op.removed), op.inserted)
	b.undoStack = append(b.undoStack, op)
	return endOf(op.at, op.inserted), true
}

// Find returns every occurrence of query, searching line by line. Returns
// nil if query is empty or not found. Queries spanning lines never match.
func (b *Buffer) Find(query string) []Range {
	if query == "" || strings.Contains(query, "\n") {
		return nil
	}
	qlen := utf8.RuneCountInString(query)
	var results []Range
	for y, line := range b.lines {
		start := 0
		for {
			idx := strings.Index(line[start:], query)
			if idx < 0 {
				break
			}
			abs := start + idx
			x := utf8.RuneCountInString(line[:abs])
			results = append(results, Range{
				Start: geom.Point{X: x, Y: y},
				End:   geom.Point{X: x + qlen, Y: y},
			})
			start = abs + len(query)
		}
	}
	return results
}

// replace swaps [start, end) for text without touching history.
func (b *Buffer) replace(start, end geom.Point, text string) {
	start, end = b.ordered(start, end)
	head := string([]rune(b.lines[start.Y])[:start.X])
	tail := string([]rune(b.lines[end.Y])[end.X:])
	parts := strings.Split(head+text+tail, "\n")

	lines := make([]string, 0, len(b.lines)-(end.Y-start.Y)+len(parts)-1)
	lines = append(lines, b.lines[:start.Y]...)
	lines = append(lines, parts...)
	lines = append(lines, b.lines[end.Y+1:]...)
	b.lines = lines
	b.revision++
}

func (b *Buffer) ordered(start, end geom.Point) (geom.Point, geom.Point) {
	start, end = b.Clamp(start), b.Clamp(end)
	if end.Y < start.Y || (end.Y == start.Y && end.X < start.X) {
		return end, start
	}
	return start, end
}

// endOf returns the position just after text when it is inserted at p.
func endOf(p geom.Point, text string) geom.Point {
	nl := strings.LastIndexByte(text, '\n')
	if nl < 0 {
		return geom.Point{X: p.X + utf8.RuneCountInString(text), Y: p.Y}
	}
	return geom.Point{
		X: utf8.RuneCountInString(text[nl+1:]),
		Y: p.Y + strings.Count(text, "\n"),
	}
}
