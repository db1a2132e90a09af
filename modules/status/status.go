// Package status draws the mode, file name and dirty flag on the last row.
package status

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

const Name = "status"

var (
	barBG   = backbuffer.RGB(0x2c, 0x31, 0x3a)
	modeFG  = backbuffer.RGB(0x28, 0x2c, 0x34)
	modeBGs = map[protocol.Mode]backbuffer.Color{
		protocol.ModeNormal: backbuffer.Blue,
		protocol.ModeInsert: backbuffer.Green,
	}
)

// Module returns the status line for static linking.
func Module() ext.Module {
	return ext.Module{Name: Name, Init: Init, Update: Update, Render: Render, Cleanup: Cleanup}
}

func Init(*editor.GlobalData) editor.State { return nil }

func Update(*editor.GlobalData, editor.Msg, *editor.Utils, editor.Emit, editor.State) {}

func Cleanup(editor.State) {}

// Line returns the left and right parts of the status line.
func Line(c *editor.Client, b *editor.Buffer, client protocol.ClientIndex) (mode, file, info string) {
	mode = " " + c.Mode.String() + " "
	file = " " + b.Title()
	if b.Dirty() {
		file += " [+]"
	}
	info = fmt.Sprintf("%d lines  #%d ", b.LineCount(), client.Uint64())
	return mode, file, info
}

// Render fills the last row. The prompt modes own that row, so nothing is
// drawn while the client types a command or a search.
func Render(gd *editor.GlobalData, client protocol.ClientIndex, bb *backbuffer.BackBuffer, u *editor.Utils, _ editor.State) {
	c, ok := gd.Client(client)
	if !ok || c.Size == nil || c.Size.H < 2 {
		return
	}
	if c.Mode == protocol.ModeCommand || c.Mode == protocol.ModeSearch {
		return
	}
	b, ok := gd.Buffers.Get(c.Buffer)
	if !ok {
		return
	}
	w, y := c.Size.W, c.Size.H-1
	mode, file, info := Line(c, b, client)

	u.WriteText(bb, geom.Point{Y: y}, strings.Repeat(" ", w), backbuffer.StyleNone, backbuffer.Color{}, barBG)

	modeBG, ok := modeBGs[c.Mode]
	if !ok {
		modeBG = backbuffer.Gray
	}
	u.WriteText(bb, geom.Point{Y: y}, mode, backbuffer.Bold, modeFG, modeBG)
	x := runewidth.StringWidth(mode)

	infoW := runewidth.StringWidth(info)
	if room := w - x - infoW - 1; room > 0 {
		u.WriteText(bb, geom.Point{X: x, Y: y}, runewidth.Truncate(file, room, "…"),
			backbuffer.StyleNone, backbuffer.Color{}, barBG)
	}
	if w-infoW > x {
		u.WriteText(bb, geom.Point{X: w - infoW, Y: y}, info, backbuffer.StyleNone, backbuffer.Gray, barBG)
	}
}
