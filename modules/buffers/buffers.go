// Package buffers loads files into buffers and writes them back.
package buffers

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/protocol"
)

const Name = "buffers"

var errPathOpen = errors.New("path is open in another buffer")

// Module returns the buffer manager for static linking.
func Module() ext.Module {
	return ext.Module{Name: Name, Init: Init, Update: Update, Render: Render, Cleanup: Cleanup}
}

func Init(*editor.GlobalData) editor.State { return nil }

// Update handles LoadFile and WriteBuffer. A path that is already open is
// shown again instead of being read twice; a path that does not exist yet
// opens as an empty buffer that will be created on write.
func Update(gd *editor.GlobalData, msg editor.Msg, u *editor.Utils, emit editor.Emit, _ editor.State) {
	m, ok := msg.(editor.CmdMsg)
	if !ok {
		return
	}
	switch cmd := m.Cmd.(type) {
	case protocol.LoadFile:
		c, ok := gd.Client(m.Client)
		if !ok {
			return
		}
		idx, reused, err := gd.OpenBuffer(cmd.Path)
		log := u.Log().WithFields(logrus.Fields{"client": m.Client, "path": cmd.Path})
		if err != nil {
			log.WithError(err).Warn("load file")
			return
		}
		c.Buffer = idx
		log.WithField("reused", reused).Info("buffer loaded")
		emit(m.Client, protocol.BufferLoaded{})

	case protocol.WriteBuffer:
		c, ok := gd.Client(m.Client)
		if !ok {
			return
		}
		b, ok := gd.ClientBuffer(m.Client)
		if !ok {
			return
		}
		var err error
		switch {
		case cmd.Path == "":
			err = b.Save()
		default:
			// Each source belongs to at most one buffer.
			if owner, open := gd.FindBuffer(cmd.Path); open && owner != c.Buffer {
				u.Log().WithFields(logrus.Fields{"client": m.Client, "path": cmd.Path}).
					WithError(errPathOpen).Warn("write buffer")
				return
			}
			err = b.SaveAs(cmd.Path)
		}
		log := u.Log().WithFields(logrus.Fields{"client": m.Client, "path": b.Source()})
		if err != nil {
			log.WithError(err).Warn("write buffer")
			return
		}
		log.Info("buffer written")
	}
}

func Render(*editor.GlobalData, protocol.ClientIndex, *backbuffer.BackBuffer, *editor.Utils, editor.State) {
}

func Cleanup(editor.State) {}
