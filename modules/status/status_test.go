package status

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/modules/internal/modtest"
	"github.com/odvcencio/myedit/protocol"
)

func resize(env *modtest.Env, w, h int) {
	c, _ := env.GD.Client(env.Client)
	c.Size = &geom.Rect{W: w, H: h}
}

func TestStatusLine(t *testing.T) {
	env := modtest.New(t, Module())
	resize(env, 60, 5)
	env.Buffer().SetText("abc")

	bb := env.Render(env.Client)
	want := " NORMAL  untitled [+]" + strings.Repeat(" ", 18) + "1 lines  #4294967296"
	require.Equal(t, want, modtest.Row(bb, 4))
	require.Equal(t, "", modtest.Row(bb, 3))

	cell, _ := bb.At(geom.Point{X: 1, Y: 4})
	require.Equal(t, backbuffer.Blue, cell.BG)
	require.Equal(t, backbuffer.Bold, cell.Style)
	cell, _ = bb.At(geom.Point{X: 30, Y: 4})
	require.Equal(t, barBG, cell.BG, "bar spans the row")
}

func TestStatusTruncatesFileName(t *testing.T) {
	env := modtest.New(t, Module())
	resize(env, 40, 3)
	env.Buffer().SetText("abc")

	require.Equal(t, " NORMAL  untitled… 1 lines  #4294967296", modtest.Row(env.Render(env.Client), 2))
}

func TestStatusFollowsMode(t *testing.T) {
	env := modtest.New(t, Module())
	env.Mode(protocol.ModeInsert)
	bb := env.Render(env.Client)
	require.True(t, strings.HasPrefix(modtest.Row(bb, 9), " INSERT "))
	cell, _ := bb.At(geom.Point{X: 1, Y: 9})
	require.Equal(t, backbuffer.Green, cell.BG)

	env.Mode(protocol.ModeCommand)
	require.Equal(t, "", modtest.Row(env.Render(env.Client), 9), "prompt owns the row")
}

func TestLine(t *testing.T) {
	env := modtest.New(t, Module())
	c, _ := env.GD.Client(env.Client)
	mode, file, info := Line(c, env.Buffer(), env.Client)
	require.Equal(t, " NORMAL ", mode)
	require.Equal(t, " untitled", file)
	require.Equal(t, "1 lines  #4294967296 ", info)
}
