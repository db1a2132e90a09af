// Package edit applies point-based edits and undo history to the buffer a
// client views. After every change it tells the client where its cursor
// belongs with a Jump.
package edit

import (
	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

const Name = "edit"

// Module returns the editing module for static linking.
func Module() ext.Module {
	return ext.Module{Name: Name, Init: Init, Update: Update, Render: Render, Cleanup: Cleanup}
}

func Init(*editor.GlobalData) editor.State { return nil }

func Update(gd *editor.GlobalData, msg editor.Msg, u *editor.Utils, emit editor.Emit, _ editor.State) {
	m, ok := msg.(editor.CmdMsg)
	if !ok {
		return
	}
	b, ok := gd.ClientBuffer(m.Client)
	if !ok {
		return
	}

	var cursor geom.Point
	switch cmd := m.Cmd.(type) {
	case protocol.InsertCharAtPoint:
		at := b.Clamp(cmd.At)
		text := string(cmd.Char)
		if cmd.Char == '\n' {
			head := string([]rune(b.Line(at.Y))[:at.X])
			text += editor.ComputeIndent(head, b.IndentUnit())
		}
		cursor = b.Insert(at, text)

	case protocol.InsertStringAtPoint:
		if cmd.Text == "" {
			return
		}
		cursor = b.Insert(cmd.At, cmd.Text)

	case protocol.DeleteCharRange:
		start, end := b.Clamp(cmd.Start), b.Clamp(cmd.End)
		if editor.Before(end, start) {
			start, end = end, start
		}
		if start == end {
			return
		}
		removed := b.Remove(start, end)
		u.Debugf("removed %d bytes at %v", len(removed), start)
		cursor = start

	case protocol.Undo:
		if cursor, ok = b.Undo(); !ok {
			u.Debug("nothing to undo")
			return
		}

	case protocol.Redo:
		if cursor, ok = b.Redo(); !ok {
			u.Debug("nothing to redo")
			return
		}

	default:
		return
	}
	emit(m.Client, protocol.BufferModified{})
	emit(m.Client, protocol.Jump{To: protocol.ToPoint, Point: cursor})
}

func Render(*editor.GlobalData, protocol.ClientIndex, *backbuffer.BackBuffer, *editor.Utils, editor.State) {
}

func Cleanup(editor.State) {}
