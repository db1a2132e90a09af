// Package view paints the visible lines of a client's buffer behind a
// line-number gutter.
package view

import (
	"fmt"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

const Name = "view"

// Module returns the text view for static linking.
func Module() ext.Module {
	return ext.Module{Name: Name, Init: Init, Update: Update, Render: Render, Cleanup: Cleanup}
}

func Init(*editor.GlobalData) editor.State { return nil }

func Update(*editor.GlobalData, editor.Msg, *editor.Utils, editor.Emit, editor.State) {}

// Render writes glyphs only, leaving the colours other modules set on the
// same cells in place. Rows past the end of the buffer show a tilde.
func Render(gd *editor.GlobalData, client protocol.ClientIndex, bb *backbuffer.BackBuffer, u *editor.Utils, _ editor.State) {
	c, ok := gd.Client(client)
	if !ok || c.Size == nil {
		return
	}
	b, ok := gd.Buffers.Get(c.Buffer)
	if !ok {
		return
	}
	for y := range editor.TextRows(*c.Size) {
		n := b.StartLine + y
		if n >= b.LineCount() {
			u.WriteText(bb, geom.Point{Y: y}, "~", backbuffer.StyleNone, backbuffer.Gray, backbuffer.Color{})
			continue
		}
		gutter := fmt.Sprintf("%*d ", editor.GutterWidth-1, n+1)
		u.WriteText(bb, geom.Point{Y: y}, gutter, backbuffer.StyleNone, backbuffer.Gray, backbuffer.Color{})
		u.WriteText(bb, geom.Point{X: editor.GutterWidth, Y: y}, editor.DisplayLine(b.Line(n)),
			backbuffer.StyleNone, backbuffer.Color{}, backbuffer.Color{})
	}
}

func Cleanup(editor.State) {}
