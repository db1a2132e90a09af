// Package modtest drives a single module the way the host does, without
// sockets or a loop.
package modtest

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

// Sent is one command a module emitted.
type Sent struct {
	Client protocol.ClientIndex
	Cmd    protocol.Cmd
}

// Env holds shared state with one client and a module initialised on it.
type Env struct {
	t      *testing.T
	GD     *editor.GlobalData
	Client protocol.ClientIndex
	Utils  *editor.Utils
	Hook   *logtest.Hook
	Sent   []Sent

	mod   ext.Module
	state editor.State
	mu    sync.Mutex
}

// New initialises m against state holding one client of size 40x10 that
// views the default buffer.
func New(t *testing.T, m ext.Module) *Env {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	e := &Env{
		t:     t,
		GD:    editor.NewGlobalData(),
		Utils: editor.NewUtils(logger.WithField("module", m.Name)),
		Hook:  hook,
		mod:   m,
	}
	e.Client = e.AddClient(geom.Rect{W: 40, H: 10})
	e.state = m.Init(e.GD)
	t.Cleanup(func() { m.Cleanup(e.state) })
	return e
}

// AddClient attaches another client viewing the default buffer.
func (e *Env) AddClient(size geom.Rect) protocol.ClientIndex {
	first, _, _ := e.GD.Buffers.First()
	return e.GD.Clients.Insert(&editor.Client{
		Session: "test",
		Buffer:  first,
		Size:    &size,
	})
}

// State returns the module's state.
func (e *Env) State() editor.State { return e.state }

// emit may be called from goroutines a module starts.
func (e *Env) emit(client protocol.ClientIndex, cmd protocol.Cmd) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Sent = append(e.Sent, Sent{Client: client, Cmd: cmd})
}

// Update hands msg to the module.
func (e *Env) Update(msg editor.Msg) {
	e.mod.Update(e.GD, msg, e.Utils, e.emit, e.state)
}

// Send delivers cmd for the default client.
func (e *Env) Send(cmds ...protocol.Cmd) {
	for _, cmd := range cmds {
		e.Update(editor.CmdMsg{Client: e.Client, Cmd: cmd})
	}
}

// SendTo delivers cmd for client.
func (e *Env) SendTo(client protocol.ClientIndex, cmd protocol.Cmd) {
	e.Update(editor.CmdMsg{Client: client, Cmd: cmd})
}

// Keys delivers key presses from the default client.
func (e *Env) Keys(events ...protocol.Event) {
	for _, ev := range events {
		e.Update(editor.InputEvent{Client: e.Client, Event: ev})
	}
}

// Emitted returns the commands emitted since the last call and forgets
// them.
func (e *Env) Emitted() []protocol.Cmd {
	e.mu.Lock()
	defer e.mu.Unlock()
	var cmds []protocol.Cmd
	for _, s := range e.Sent {
		cmds = append(cmds, s.Cmd)
	}
	e.Sent = nil
	return cmds
}

// Pump feeds emitted commands back to the module, as the host loop does,
// until one of them satisfies done. The test fails after five seconds.
func (e *Env) Pump(done func(protocol.Cmd) bool) {
	e.t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		sent := e.Sent
		e.Sent = nil
		e.mu.Unlock()
		for _, s := range sent {
			e.Update(editor.CmdMsg{Client: s.Client, Cmd: s.Cmd})
			if done(s.Cmd) {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	e.t.Fatal("pump: condition not met")
}

// Render paints a fresh frame for client.
func (e *Env) Render(client protocol.ClientIndex) *backbuffer.BackBuffer {
	c, ok := e.GD.Client(client)
	require.True(e.t, ok)
	bb := backbuffer.New(*c.Size)
	e.mod.Render(e.GD, client, bb, e.Utils, e.state)
	return bb
}

// Buffer returns the buffer the default client views.
func (e *Env) Buffer() *editor.Buffer {
	b, ok := e.GD.ClientBuffer(e.Client)
	require.True(e.t, ok)
	return b
}

// Mode sets the default client's mode.
func (e *Env) Mode(m protocol.Mode) {
	c, _ := e.GD.Client(e.Client)
	c.Mode = m
}

// Row returns row y of bb as text, trailing blanks trimmed.
func Row(bb *backbuffer.BackBuffer, y int) string {
	var sb strings.Builder
	for x := 0; x < bb.Dim.W; x++ {
		c := bb.Cells[bb.Index(geom.Point{X: x, Y: y})]
		switch {
		case c.Filler:
		case c.Glyph == "":
			sb.WriteByte(' ')
		default:
			sb.WriteString(c.Glyph)
		}
	}
	return strings.TrimRight(sb.String(), " ")
}
