package editor

import (
	"io"

	"github.com/fsnotify/fsnotify"

	"github.com/odvcencio/myedit/protocol"
)

// Msg is one item on the host's message bus.
type Msg interface {
	isMsg()
}

// LibraryEvent reports a change to an extension artifact on disk.
type LibraryEvent struct {
	Path string
	Op   fsnotify.Op
}

// InputEvent is a decoded key press from a client's terminal.
type InputEvent struct {
	Client protocol.ClientIndex
	Event  protocol.Event
}

// CmdMsg carries a command addressed to a client.
type CmdMsg struct {
	Client protocol.ClientIndex
	Cmd    protocol.Cmd
}

// NewClient announces a freshly accepted session stream.
type NewClient struct {
	Stream io.ReadWriteCloser
}

func (LibraryEvent) isMsg() {}
func (InputEvent) isMsg()   {}
func (CmdMsg) isMsg()       {}
func (NewClient) isMsg()    {}

// ClientOf returns the client a message is addressed to, if any.
func ClientOf(msg Msg) (protocol.ClientIndex, bool) {
	switch m := msg.(type) {
	case InputEvent:
		return m.Client, true
	case CmdMsg:
		return m.Client, true
	}
	return protocol.ClientIndex{}, false
}
