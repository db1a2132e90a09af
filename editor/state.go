package editor

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/odvcencio/myedit/arena"
	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

// BufferIndex identifies an open buffer.
type BufferIndex = arena.Index

// Client is one attached terminal session.
type Client struct {
	// Stream carries raw input bytes in and rendered escape sequences out.
	Stream io.ReadWriteCloser
	// Session is a random id used to tell clients apart in logs.
	Session string

	Buffer BufferIndex
	Mode   protocol.Mode
	// Size is nil until the client reports its terminal size.
	Size *geom.Rect
	// BackBuffer is the last frame written to Stream.
	BackBuffer *backbuffer.BackBuffer
}

// GlobalData is the state shared by the host and every extension module.
// Only the event loop goroutine may touch it.
type GlobalData struct {
	Buffers arena.Arena[*Buffer]
	Clients arena.Arena[*Client]
}

// NewGlobalData returns state holding a single empty buffer, which new
// clients show until they load a file.
func NewGlobalData() *GlobalData {
	gd := &GlobalData{}
	gd.Buffers.Insert(NewBuffer())
	return gd
}

// Client returns the live client for idx.
func (gd *GlobalData) Client(idx protocol.ClientIndex) (*Client, bool) {
	return gd.Clients.Get(idx)
}

// ClientBuffer returns the buffer the client is viewing.
func (gd *GlobalData) ClientBuffer(idx protocol.ClientIndex) (*Buffer, bool) {
	c, ok := gd.Clients.Get(idx)
	if !ok {
		return nil, false
	}
	return gd.Buffers.Get(c.Buffer)
}

// FindBuffer returns the buffer whose source is path, after making path
// absolute.
func (gd *GlobalData) FindBuffer(path string) (BufferIndex, bool) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return BufferIndex{}, false
	}
	var found BufferIndex
	ok := false
	gd.Buffers.Each(func(idx BufferIndex, b *Buffer) bool {
		if b.Source() == absPath {
			found, ok = idx, true
			return false
		}
		return true
	})
	return found, ok
}

// OpenBuffer returns the buffer for path. If a buffer with the same absolute
// path is already open it is reused instead of loading a duplicate. A path
// that does not exist yet gets an empty buffer which is created on save.
func (gd *GlobalData) OpenBuffer(path string) (idx BufferIndex, reused bool, err error) {
	if idx, ok := gd.FindBuffer(path); ok {
		return idx, true, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return BufferIndex{}, false, err
	}

	buf := NewBuffer()
	if err := buf.Open(absPath); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return BufferIndex{}, false, err
		}
		buf.source = absPath
	}
	return gd.Buffers.Insert(buf), false, nil
}
