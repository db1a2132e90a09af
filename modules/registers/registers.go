// Package registers holds the yank register shared by all clients.
package registers

import (
	"strings"
	"unicode/utf8"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

const Name = "registers"

// State is the register content.
type State struct {
	Text string
}

// Module returns the register for static linking.
func Module() ext.Module {
	return ext.Module{Name: Name, Init: Init, Update: Update, Render: Render, Cleanup: Cleanup}
}

func Init(*editor.GlobalData) editor.State { return &State{} }

// Update stores yanked text and turns a paste into an insert. Text ending
// in a newline was yanked as whole lines and goes below the target line.
func Update(gd *editor.GlobalData, msg editor.Msg, u *editor.Utils, emit editor.Emit, st editor.State) {
	s := st.(*State)
	m, ok := msg.(editor.CmdMsg)
	if !ok {
		return
	}
	switch cmd := m.Cmd.(type) {
	case protocol.YankValue:
		s.Text = cmd.Text
		u.Debugf("yanked %d chars", utf8.RuneCountInString(cmd.Text))

	case protocol.PasteAtPoint:
		if s.Text == "" {
			return
		}
		b, ok := gd.ClientBuffer(m.Client)
		if !ok {
			return
		}
		at, text := b.Clamp(cmd.At), s.Text
		if strings.HasSuffix(text, "\n") {
			if at.Y+1 < b.LineCount() {
				at = geom.Point{Y: at.Y + 1}
			} else {
				at = geom.Point{X: b.LineLen(at.Y), Y: at.Y}
				text = "\n" + strings.TrimSuffix(text, "\n")
			}
		}
		emit(m.Client, protocol.InsertStringAtPoint{Text: text, At: at})
	}
}

func Render(*editor.GlobalData, protocol.ClientIndex, *backbuffer.BackBuffer, *editor.Utils, editor.State) {
}

func Cleanup(editor.State) {}
