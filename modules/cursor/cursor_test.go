package cursor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/modules/internal/modtest"
	"github.com/odvcencio/myedit/protocol"
)

func setup(t *testing.T, text string) (*modtest.Env, *State) {
	t.Helper()
	env := modtest.New(t, Module())
	env.Buffer().SetText(text)
	return env, env.State().(*State)
}

func pos(t *testing.T, env *modtest.Env, s *State) geom.Point {
	t.Helper()
	cur, _, ok := s.Get(env.GD, env.Client)
	require.True(t, ok)
	return cur.Pos
}

func TestMoveWrapsAndRemembersColumn(t *testing.T) {
	env, s := setup(t, "abcdef\nxy\nlonger line")

	env.Send(protocol.Jump{To: protocol.EndOfLine})
	require.Equal(t, geom.Point{X: 6}, pos(t, env, s))

	env.Send(protocol.MoveCursor{Dir: protocol.Down})
	require.Equal(t, geom.Point{X: 2, Y: 1}, pos(t, env, s), "clamped to the short line")
	env.Send(protocol.MoveCursor{Dir: protocol.Down})
	require.Equal(t, geom.Point{X: 6, Y: 2}, pos(t, env, s), "column restored")

	env.Send(protocol.Jump{To: protocol.StartOfLine}, protocol.MoveCursor{Dir: protocol.Left})
	require.Equal(t, geom.Point{X: 2, Y: 1}, pos(t, env, s), "left wraps to previous line end")
	env.Send(protocol.MoveCursor{Dir: protocol.Right})
	require.Equal(t, geom.Point{Y: 2}, pos(t, env, s), "right wraps to next line start")
}

func TestMovesIgnoredOnPrompt(t *testing.T) {
	env, s := setup(t, "abc")
	env.Mode(protocol.ModeCommand)
	env.Send(protocol.MoveCursor{Dir: protocol.Right})
	require.Equal(t, geom.Point{}, pos(t, env, s))
}

func TestInsertCharBecomesPointEdit(t *testing.T) {
	env, _ := setup(t, "abc")
	env.Send(protocol.MoveCursor{Dir: protocol.Right})

	env.Send(protocol.InsertChar{Char: 'x'})
	require.Empty(t, env.Emitted(), "normal mode does not insert")

	env.Mode(protocol.ModeInsert)
	env.Send(protocol.InsertChar{Char: 'x'})
	require.Equal(t, []protocol.Cmd{protocol.InsertCharAtPoint{Char: 'x', At: geom.Point{X: 1}}}, env.Emitted())
}

func TestDeleteChar(t *testing.T) {
	env, _ := setup(t, "ab\ncd")

	env.Send(protocol.DeleteChar{Dir: protocol.Before})
	require.Empty(t, env.Emitted(), "nothing before the buffer start")

	env.Send(protocol.Jump{To: protocol.EndOfLine}, protocol.DeleteChar{Dir: protocol.After})
	require.Equal(t, []protocol.Cmd{
		protocol.DeleteCharRange{Start: geom.Point{X: 2}, End: geom.Point{Y: 1}},
	}, env.Emitted(), "delete at end of line joins lines")

	env.Send(protocol.DeleteChar{Dir: protocol.Before})
	require.Equal(t, []protocol.Cmd{
		protocol.DeleteCharRange{Start: geom.Point{X: 1}, End: geom.Point{X: 2}},
	}, env.Emitted())
}

func TestSelectionYankAndDelete(t *testing.T) {
	env, s := setup(t, "hello world")
	env.Send(
		protocol.MoveCursor{Dir: protocol.Right, Select: true},
		protocol.MoveCursor{Dir: protocol.Right, Select: true},
		protocol.Yank{},
	)
	require.Equal(t, []protocol.Cmd{protocol.YankValue{Text: "hel"}}, env.Emitted())

	// Yank cleared the selection; without one the whole line is yanked.
	env.Send(protocol.Yank{})
	require.Equal(t, []protocol.Cmd{protocol.YankValue{Text: "hello world\n"}}, env.Emitted())

	env.Send(
		protocol.MoveCursor{Dir: protocol.Right, Select: true},
		protocol.DeleteChar{Dir: protocol.After},
	)
	require.Equal(t, []protocol.Cmd{
		protocol.DeleteCharRange{Start: geom.Point{X: 2}, End: geom.Point{X: 4}},
	}, env.Emitted())
	require.Equal(t, geom.Point{X: 2}, pos(t, env, s))
}

func TestPasteAtCursor(t *testing.T) {
	env, _ := setup(t, "abc")
	env.Send(protocol.Jump{To: protocol.EndOfLine}, protocol.Paste{})
	require.Equal(t, []protocol.Cmd{protocol.PasteAtPoint{At: geom.Point{X: 3}}}, env.Emitted())
}

func TestJumps(t *testing.T) {
	env, s := setup(t, "foo(bar, baz)\nqux")
	tests := []struct {
		jump protocol.Jump
		want geom.Point
	}{
		{protocol.Jump{To: protocol.EndOfWord}, geom.Point{X: 3}},
		{protocol.Jump{To: protocol.MatchingBrace}, geom.Point{X: 12}},
		{protocol.Jump{To: protocol.StartOfWord}, geom.Point{X: 9}},
		{protocol.Jump{To: protocol.EndOfBuffer}, geom.Point{X: 3, Y: 1}},
		{protocol.Jump{To: protocol.BeginningOfBuffer}, geom.Point{}},
		{protocol.Jump{To: protocol.ToPoint, Point: geom.Point{X: 99, Y: 1}}, geom.Point{X: 3, Y: 1}},
	}
	for _, tt := range tests {
		env.Send(tt.jump)
		require.Equal(t, tt.want, pos(t, env, s), "%+v", tt.jump)
	}
}

func TestLineOps(t *testing.T) {
	env, s := setup(t, "one\ntwo\nthree")
	env.Send(protocol.MoveCursor{Dir: protocol.Down}, protocol.DeleteLine{})
	require.Equal(t, []protocol.Cmd{protocol.YankValue{Text: "two\n"}, protocol.BufferModified{}}, env.Emitted())
	require.Equal(t, "one\nthree", env.Buffer().Text())

	env.Send(protocol.MoveLine{Delta: -1})
	require.Equal(t, "three\none", env.Buffer().Text())
	require.Equal(t, 0, pos(t, env, s).Y)

	env.Send(protocol.DuplicateLine{})
	require.Equal(t, "three\nthree\none", env.Buffer().Text())
	require.Equal(t, 1, pos(t, env, s).Y)
}

func TestScrollKeepsCursorVisible(t *testing.T) {
	env, s := setup(t, "0\n1\n2\n3\n4\n5\n6\n7\n8\n9\n10\n11\n12\n13\n14")
	env.Send(protocol.Scroll{Lines: 10})
	require.Equal(t, 10, env.Buffer().StartLine)
	require.Equal(t, 10, pos(t, env, s).Y)

	// Moving past the bottom row scrolls back into view (9 text rows).
	env.Send(protocol.Jump{To: protocol.BeginningOfBuffer})
	require.Equal(t, 0, env.Buffer().StartLine)
	env.Send(protocol.Jump{To: protocol.EndOfBuffer})
	require.Equal(t, 6, env.Buffer().StartLine)
}

func TestCursorResetsOnBufferSwitch(t *testing.T) {
	env, s := setup(t, "abc")
	env.Send(protocol.Jump{To: protocol.EndOfLine})

	other := editor.NewBuffer()
	other.SetText("zz")
	idx := env.GD.Buffers.Insert(other)
	c, _ := env.GD.Client(env.Client)
	c.Buffer = idx
	require.Equal(t, geom.Point{}, pos(t, env, s))
}

func TestRenderPlacesCursorAndSelection(t *testing.T) {
	env, _ := setup(t, "a\tb")
	env.Send(protocol.Jump{To: protocol.EndOfLine})
	bb := env.Render(env.Client)
	require.NotNil(t, bb.Cursor)
	require.Equal(t, geom.Point{X: editor.GutterWidth + 5}, *bb.Cursor)

	env.Send(protocol.Jump{To: protocol.StartOfLine}, protocol.MoveCursor{Dir: protocol.Right, Select: true})
	bb = env.Render(env.Client)
	for x := 0; x < 8; x++ {
		cell, _ := bb.At(geom.Point{X: x})
		want := x >= editor.GutterWidth && x < editor.GutterWidth+4
		require.Equal(t, want, cell.BG == SelectionBG, "column %d", x)
	}

	env.Mode(protocol.ModeCommand)
	require.Nil(t, env.Render(env.Client).Cursor)
}

func TestCursorsArePerClient(t *testing.T) {
	env, s := setup(t, "abc\ndef")
	other := env.AddClient(geom.Rect{W: 40, H: 10})
	env.SendTo(other, protocol.MoveCursor{Dir: protocol.Down})
	require.Equal(t, geom.Point{}, pos(t, env, s))
	cur, _, _ := s.Get(env.GD, other)
	require.Equal(t, geom.Point{Y: 1}, cur.Pos)

	env.GD.Clients.Remove(other)
	env.Update(editor.NewClient{})
	require.NotContains(t, s.cursors, other)
}
