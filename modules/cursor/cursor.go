// Package cursor keeps a cursor per client, turns mode-independent editing
// commands into point-based edits and draws the cursor and selection.
package cursor

import (
	"unicode"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

const Name = "cursor"

// SelectionBG is the background of selected text.
var SelectionBG = backbuffer.RGB(0, 50, 200)

// Cursor is one client's position in the buffer it views.
type Cursor struct {
	Pos geom.Point
	// StoredX is the column vertical moves try to return to.
	StoredX int
	// Anchor is set while a selection is being extended.
	Anchor *geom.Point

	buffer editor.BufferIndex
}

// Selection returns the selected span, inclusive of the character under
// the cursor, as a half-open range.
func (c *Cursor) Selection(b *editor.Buffer) (start, end geom.Point, ok bool) {
	if c.Anchor == nil {
		return geom.Point{}, geom.Point{}, false
	}
	start, end = editor.Selection{Anchor: *c.Anchor, Cursor: c.Pos}.Ordered()
	return start, right(b, end), true
}

// State maps clients to their cursors.
type State struct {
	cursors map[protocol.ClientIndex]*Cursor
}

// Module returns the cursor module for static linking.
func Module() ext.Module {
	return ext.Module{Name: Name, Init: Init, Update: Update, Render: Render, Cleanup: Cleanup}
}

func Init(*editor.GlobalData) editor.State {
	return &State{cursors: map[protocol.ClientIndex]*Cursor{}}
}

func Cleanup(editor.State) {}

// Get returns client's cursor, resetting it when the client switched
// buffers since it was last used.
func (s *State) Get(gd *editor.GlobalData, client protocol.ClientIndex) (*Cursor, *editor.Buffer, bool) {
	c, ok := gd.Client(client)
	if !ok {
		return nil, nil, false
	}
	b, ok := gd.Buffers.Get(c.Buffer)
	if !ok {
		return nil, nil, false
	}
	cur, ok := s.cursors[client]
	if !ok || cur.buffer != c.Buffer {
		cur = &Cursor{buffer: c.Buffer}
		s.cursors[client] = cur
	}
	cur.Pos = b.Clamp(cur.Pos)
	return cur, b, true
}

func (s *State) prune(gd *editor.GlobalData) {
	for idx := range s.cursors {
		if !gd.Clients.Contains(idx) {
			delete(s.cursors, idx)
		}
	}
}

func Update(gd *editor.GlobalData, msg editor.Msg, u *editor.Utils, emit editor.Emit, st editor.State) {
	s := st.(*State)
	m, ok := msg.(editor.CmdMsg)
	if !ok {
		if _, ok := msg.(editor.NewClient); ok {
			s.prune(gd)
		}
		return
	}
	client, _ := gd.Client(m.Client)
	cur, b, ok := s.Get(gd, m.Client)
	if !ok {
		return
	}
	rows := 0
	if client.Size != nil {
		rows = editor.TextRows(*client.Size)
	}
	send := func(cmd protocol.Cmd) { emit(m.Client, cmd) }
	editing := client.Mode == protocol.ModeNormal || client.Mode == protocol.ModeInsert

	switch cmd := m.Cmd.(type) {
	case protocol.MoveCursor:
		if !editing {
			return
		}
		if cmd.Select {
			if cur.Anchor == nil {
				a := cur.Pos
				cur.Anchor = &a
			}
		} else {
			cur.Anchor = nil
		}
		moveCursor(cur, b, cmd.Dir)

	case protocol.ChangeMode:
		cur.Anchor = nil

	case protocol.InsertChar:
		if client.Mode != protocol.ModeInsert {
			return
		}
		if start, end, ok := cur.Selection(b); ok {
			send(protocol.DeleteCharRange{Start: start, End: end})
			cur.Pos, cur.Anchor = start, nil
		}
		send(protocol.InsertCharAtPoint{Char: cmd.Char, At: cur.Pos})

	case protocol.DeleteChar:
		if !editing {
			return
		}
		if start, end, ok := cur.Selection(b); ok {
			send(protocol.DeleteCharRange{Start: start, End: end})
			cur.Pos, cur.Anchor = start, nil
			break
		}
		switch cmd.Dir {
		case protocol.After:
			if next := right(b, cur.Pos); next != cur.Pos {
				send(protocol.DeleteCharRange{Start: cur.Pos, End: next})
			}
		case protocol.Before:
			if prev := left(b, cur.Pos); prev != cur.Pos {
				send(protocol.DeleteCharRange{Start: prev, End: cur.Pos})
			}
		}

	case protocol.Jump:
		jump(cur, b, cmd)

	case protocol.Scroll:
		b.Scroll(cmd.Lines)
		if rows > 0 {
			cur.Pos.Y = max(b.StartLine, min(cur.Pos.Y, b.StartLine+rows-1))
			cur.Pos = b.Clamp(geom.Point{X: cur.StoredX, Y: cur.Pos.Y})
		}
		return

	case protocol.Yank:
		if start, end, ok := cur.Selection(b); ok {
			send(protocol.YankValue{Text: b.Slice(start, end)})
			cur.Anchor = nil
		} else {
			send(protocol.YankValue{Text: b.Line(cur.Pos.Y) + "\n"})
		}

	case protocol.Paste:
		send(protocol.PasteAtPoint{At: cur.Pos})

	case protocol.DeleteLine:
		if text, ok := b.DeleteLine(cur.Pos.Y); ok {
			send(protocol.YankValue{Text: text + "\n"})
			send(protocol.BufferModified{})
			cur.Pos = b.Clamp(geom.Point{X: cur.StoredX, Y: cur.Pos.Y})
		}

	case protocol.DuplicateLine:
		if b.DuplicateLine(cur.Pos.Y) {
			send(protocol.BufferModified{})
			cur.Pos.Y++
		}

	case protocol.MoveLine:
		if b.MoveLine(cur.Pos.Y, cmd.Delta) {
			send(protocol.BufferModified{})
			cur.Pos.Y += cmd.Delta
		}

	default:
		return
	}
	b.ScrollTo(cur.Pos.Y, rows)
}

func moveCursor(cur *Cursor, b *editor.Buffer, dir protocol.Direction) {
	switch dir {
	case protocol.Left:
		cur.Pos = left(b, cur.Pos)
		cur.StoredX = cur.Pos.X
	case protocol.Right:
		cur.Pos = right(b, cur.Pos)
		cur.StoredX = cur.Pos.X
	case protocol.Up:
		if cur.Pos.Y > 0 {
			cur.Pos = b.Clamp(geom.Point{X: cur.StoredX, Y: cur.Pos.Y - 1})
		}
	case protocol.Down:
		if cur.Pos.Y < b.LineCount()-1 {
			cur.Pos = b.Clamp(geom.Point{X: cur.StoredX, Y: cur.Pos.Y + 1})
		}
	}
}

// left returns the position before p, wrapping to the end of the previous
// line. The buffer start has nothing before it.
func left(b *editor.Buffer, p geom.Point) geom.Point {
	switch {
	case p.X > 0:
		p.X--
	case p.Y > 0:
		p.Y--
		p.X = b.LineLen(p.Y)
	}
	return p
}

// right returns the position after p, wrapping to the start of the next
// line.
func right(b *editor.Buffer, p geom.Point) geom.Point {
	switch {
	case p.X < b.LineLen(p.Y):
		p.X++
	case p.Y < b.LineCount()-1:
		p.Y++
		p.X = 0
	}
	return p
}

func jump(cur *Cursor, b *editor.Buffer, j protocol.Jump) {
	switch j.To {
	case protocol.EndOfLine:
		cur.Pos.X = b.LineLen(cur.Pos.Y)
	case protocol.StartOfLine:
		cur.Pos.X = 0
	case protocol.BeginningOfBuffer:
		cur.Pos = geom.Point{}
	case protocol.EndOfBuffer:
		y := b.LineCount() - 1
		cur.Pos = geom.Point{X: b.LineLen(y), Y: y}
	case protocol.StartOfWord:
		cur.Pos = wordStart(b, cur.Pos)
	case protocol.EndOfWord:
		cur.Pos = wordEnd(b, cur.Pos)
	case protocol.MatchingBrace:
		if p, ok := b.MatchingBracket(cur.Pos); ok {
			cur.Pos = p
		}
	case protocol.ToPoint:
		cur.Pos = b.Clamp(j.Point)
	}
	cur.StoredX = cur.Pos.X
}

func isWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// wordStart moves back to the first rune of the word at or before p.
func wordStart(b *editor.Buffer, p geom.Point) geom.Point {
	line := []rune(b.Line(p.Y))
	x := min(p.X, len(line))
	for x > 0 && !isWord(line[x-1]) {
		x--
	}
	if x == 0 && p.X == 0 && p.Y > 0 {
		return wordStart(b, geom.Point{X: b.LineLen(p.Y - 1), Y: p.Y - 1})
	}
	for x > 0 && isWord(line[x-1]) {
		x--
	}
	return geom.Point{X: x, Y: p.Y}
}

// wordEnd moves forward past the end of the word at or after p.
func wordEnd(b *editor.Buffer, p geom.Point) geom.Point {
	line := []rune(b.Line(p.Y))
	x := p.X
	for x < len(line) && !isWord(line[x]) {
		x++
	}
	if x == len(line) && p.X == len(line) && p.Y < b.LineCount()-1 {
		return wordEnd(b, geom.Point{Y: p.Y + 1})
	}
	for x < len(line) && isWord(line[x]) {
		x++
	}
	return geom.Point{X: x, Y: p.Y}
}

// Render places the terminal cursor and shades the selection. The command
// and search lines place their own cursor.
func Render(gd *editor.GlobalData, client protocol.ClientIndex, bb *backbuffer.BackBuffer, u *editor.Utils, st editor.State) {
	s := st.(*State)
	c, ok := gd.Client(client)
	if !ok || c.Size == nil {
		return
	}
	cur, b, ok := s.Get(gd, client)
	if !ok {
		return
	}
	if start, end, ok := cur.Selection(b); ok {
		shade(bb, b, start, end, *c.Size, u)
	}
	if c.Mode != protocol.ModeNormal && c.Mode != protocol.ModeInsert {
		return
	}
	if p, ok := b.ScreenPoint(cur.Pos, *c.Size); ok {
		bb.SetCursor(p)
	}
}

// shade paints the selection background line by line, clipped to the
// visible text area.
func shade(bb *backbuffer.BackBuffer, b *editor.Buffer, start, end geom.Point, size geom.Rect, u *editor.Utils) {
	for y := start.Y; y <= end.Y; y++ {
		from := geom.Point{Y: y}
		if y == start.Y {
			from.X = start.X
		}
		to := geom.Point{X: b.LineLen(y), Y: y}
		if y == end.Y {
			to.X = end.X
		}
		origin, ok := b.ScreenPoint(from, size)
		if !ok {
			continue
		}
		width := b.ScreenColumn(to) - b.ScreenColumn(from)
		if y != end.Y {
			width++ // the newline
		}
		width = min(width, size.W-origin.X)
		if width > 0 {
			u.StyleRange(bb, origin, width, backbuffer.StyleNone, backbuffer.Color{}, SelectionBG)
		}
	}
}
