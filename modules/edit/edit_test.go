package edit

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/modules/internal/modtest"
	"github.com/odvcencio/myedit/protocol"
)

func moved(p geom.Point) []protocol.Cmd {
	return []protocol.Cmd{protocol.BufferModified{}, protocol.Jump{To: protocol.ToPoint, Point: p}}
}

func TestInsertChar(t *testing.T) {
	env := modtest.New(t, Module())
	env.Buffer().SetText("abc")

	env.Send(protocol.InsertCharAtPoint{Char: 'x', At: geom.Point{X: 1}})
	require.Equal(t, "axbc", env.Buffer().Text())
	require.Equal(t, moved(geom.Point{X: 2}), env.Emitted())
	require.True(t, env.Buffer().Dirty())
}

func TestNewlineKeepsIndent(t *testing.T) {
	tests := []struct {
		name string
		text string
		at   geom.Point
		want string
		to   geom.Point
	}{
		{"plain", "\tfoo", geom.Point{X: 4}, "\tfoo\n\t", geom.Point{X: 1, Y: 1}},
		{"block opener", "\tfoo {", geom.Point{X: 6}, "\tfoo {\n\t\t", geom.Point{X: 2, Y: 1}},
		{"spaces", "if x:\n  y", geom.Point{X: 5}, "if x:\n  \n  y", geom.Point{X: 2, Y: 1}},
		{"split line", "ab", geom.Point{X: 1}, "a\nb", geom.Point{Y: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := modtest.New(t, Module())
			env.Buffer().SetText(tt.text)
			env.Send(protocol.InsertCharAtPoint{Char: '\n', At: tt.at})
			require.Equal(t, tt.want, env.Buffer().Text())
			require.Equal(t, moved(tt.to), env.Emitted())
		})
	}
}

func TestInsertString(t *testing.T) {
	env := modtest.New(t, Module())
	env.Buffer().SetText("ab")

	env.Send(protocol.InsertStringAtPoint{Text: "x\ny", At: geom.Point{X: 1}})
	require.Equal(t, "ax\nyb", env.Buffer().Text())
	require.Equal(t, moved(geom.Point{X: 1, Y: 1}), env.Emitted())

	env.Send(protocol.InsertStringAtPoint{At: geom.Point{}})
	require.Empty(t, env.Emitted())
}

func TestDeleteRange(t *testing.T) {
	env := modtest.New(t, Module())
	env.Buffer().SetText("abc\ndef")

	env.Send(protocol.DeleteCharRange{Start: geom.Point{X: 3}, End: geom.Point{Y: 1}})
	require.Equal(t, "abcdef", env.Buffer().Text())
	require.Equal(t, moved(geom.Point{X: 3}), env.Emitted())

	// Reversed ends are accepted.
	env.Send(protocol.DeleteCharRange{Start: geom.Point{X: 2}, End: geom.Point{}})
	require.Equal(t, "cdef", env.Buffer().Text())
	require.Equal(t, moved(geom.Point{}), env.Emitted())

	env.Send(protocol.DeleteCharRange{Start: geom.Point{X: 1}, End: geom.Point{X: 1}})
	require.Empty(t, env.Emitted())
}

func TestUndoRedo(t *testing.T) {
	env := modtest.New(t, Module())
	env.Buffer().SetText("abc")

	env.Send(protocol.Undo{})
	require.Empty(t, env.Emitted())
	require.Equal(t, logrus.DebugLevel, env.Hook.LastEntry().Level)

	env.Send(protocol.InsertCharAtPoint{Char: 'x', At: geom.Point{}})
	env.Emitted()

	env.Send(protocol.Undo{})
	require.Equal(t, "abc", env.Buffer().Text())
	require.Equal(t, moved(geom.Point{}), env.Emitted())

	env.Send(protocol.Redo{})
	require.Equal(t, "xabc", env.Buffer().Text())
	require.Equal(t, moved(geom.Point{X: 1}), env.Emitted())

	env.Send(protocol.Redo{})
	require.Empty(t, env.Emitted())
}

func TestIgnoresUnknownClient(t *testing.T) {
	env := modtest.New(t, Module())
	env.GD.Clients.Remove(env.Client)
	env.Send(protocol.InsertCharAtPoint{Char: 'x'})
	require.Empty(t, env.Sent)
}
