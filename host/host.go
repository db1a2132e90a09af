// Package host runs the editor core: the single-threaded event loop that
// owns the shared state, the socket listeners feeding it, the extension
// watcher and the renderer.
package host

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/x/ansi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

// ErrKilled is returned by Run after a client asked the whole host to stop.
var ErrKilled = errors.New("host: killed")

// Config configures a Host.
type Config struct {
	// SessionSocket and CommandSocket are removed when the host is killed.
	SessionSocket string
	CommandSocket string
	// StartFile is loaded into every new client, if set.
	StartFile string
}

// Host is the event loop. All fields are owned by the goroutine calling
// Run or Step; other goroutines talk to it through Queue.
type Host struct {
	cfg     Config
	gd      *editor.GlobalData
	queue   *Queue
	modules *ext.Table
	log     logrus.FieldLogger
}

// New returns a host dispatching to modules.
func New(cfg Config, gd *editor.GlobalData, modules *ext.Table, log logrus.FieldLogger) *Host {
	return &Host{
		cfg:     cfg,
		gd:      gd,
		queue:   NewQueue(),
		modules: modules,
		log:     log,
	}
}

// Queue returns the host's message bus.
func (h *Host) Queue() *Queue { return h.queue }

// GlobalData returns the shared state. Only the loop goroutine may use it.
func (h *Host) GlobalData() *editor.GlobalData { return h.gd }

// Emit queues cmd for client. It is handed to modules and is safe to call
// from any goroutine.
func (h *Host) Emit(client protocol.ClientIndex, cmd protocol.Cmd) {
	h.queue.Push(editor.CmdMsg{Client: client, Cmd: cmd})
}

// Run processes messages until ctx is cancelled or a client sends Kill.
// Modules are cleaned up and every client stream is closed on the way out.
func (h *Host) Run(ctx context.Context) error {
	defer h.shutdown()
	for {
		if err := h.Step(ctx); err != nil {
			return err
		}
	}
}

// Step waits for one message, handles it and, if nothing else is queued,
// renders every client.
func (h *Host) Step(ctx context.Context) error {
	msg, err := h.queue.Pop(ctx)
	if err != nil {
		return err
	}
	if err := h.handle(msg); err != nil {
		return err
	}
	if h.queue.Len() == 0 {
		h.render()
	}
	return nil
}

func (h *Host) handle(msg editor.Msg) error {
	if client, ok := editor.ClientOf(msg); ok && !h.gd.Clients.Contains(client) {
		h.log.WithField("client", client).Debug("dropping message for stale client")
		return nil
	}

	switch m := msg.(type) {
	case editor.NewClient:
		h.addClient(m.Stream)

	case editor.LibraryEvent:
		if err := h.modules.Load(h.gd, m.Path); err != nil {
			h.log.WithError(err).WithField("path", m.Path).Error("reload failed, keeping previous module")
		}

	case editor.CmdMsg:
		switch cmd := m.Cmd.(type) {
		case protocol.Quit:
			h.removeClient(m.Client)
			return nil
		case protocol.Kill:
			h.log.WithField("client", m.Client).Info("kill requested")
			h.removeSockets()
			return ErrKilled
		case protocol.CleanRender:
			h.cleanRender(m.Client)
		case protocol.ResizeClient:
			c, _ := h.gd.Client(m.Client)
			size := cmd.Size
			c.Size = &size
			h.Emit(m.Client, protocol.CleanRender{})
		}
	}

	h.modules.Update(h.gd, msg, h.Emit)
	return nil
}

func (h *Host) addClient(stream io.ReadWriteCloser) {
	bufIdx, _, _ := h.gd.Buffers.First()
	c := &editor.Client{
		Stream:     stream,
		Session:    uuid.NewString(),
		Buffer:     bufIdx,
		Mode:       protocol.ModeNormal,
		BackBuffer: backbuffer.New(geom.Rect{}),
	}
	idx := h.gd.Clients.Insert(c)
	log := h.log.WithFields(logrus.Fields{"client": idx, "session": c.Session})

	if err := protocol.WriteInitializeClient(stream, protocol.InitializeClient{Client: idx}); err != nil {
		log.WithError(err).Warn("handshake failed")
		h.gd.Clients.Remove(idx)
		stream.Close()
		return
	}
	log.Info("client connected")

	go readInput(h.queue, idx, stream, log)

	if h.cfg.StartFile != "" {
		h.Emit(idx, protocol.LoadFile{Path: h.cfg.StartFile})
	}
}

// readInput turns a client's raw terminal bytes into InputEvents until the
// stream ends.
func readInput(q *Queue, idx protocol.ClientIndex, r io.Reader, log logrus.FieldLogger) {
	dec := protocol.NewInputDecoder(r)
	for {
		ev, err := dec.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("input stream closed")
			}
			return
		}
		q.Push(editor.InputEvent{Client: idx, Event: ev})
	}
}

func (h *Host) removeClient(idx protocol.ClientIndex) {
	c, ok := h.gd.Clients.Remove(idx)
	if !ok {
		return
	}
	c.Stream.Close()
	h.log.WithFields(logrus.Fields{"client": idx, "session": c.Session}).Info("client quit")
}

func (h *Host) cleanRender(idx protocol.ClientIndex) {
	c, _ := h.gd.Client(idx)
	var size geom.Rect
	if c.Size != nil {
		size = *c.Size
	}
	if _, err := io.WriteString(c.Stream, ansi.EraseEntireScreen); err != nil {
		h.log.WithError(err).WithField("client", idx).Warn("clean render write failed")
	}
	c.BackBuffer = backbuffer.New(size)
}

// render paints a fresh frame for every client that has reported its size
// and writes only the cells that changed since its previous frame.
func (h *Host) render() {
	h.gd.Clients.Each(func(idx protocol.ClientIndex, c *editor.Client) bool {
		if c.Size == nil {
			return true
		}
		bb := backbuffer.New(*c.Size)
		h.modules.Render(h.gd, idx, bb)

		if _, err := backbuffer.DiffAndFlush(c.BackBuffer, bb, c.Stream); err != nil {
			h.log.WithError(err).WithField("client", idx).Warn("render write failed")
		} else if err := backbuffer.FlushCursor(c.BackBuffer, bb, c.Stream); err != nil {
			h.log.WithError(err).WithField("client", idx).Warn("cursor write failed")
		}
		c.BackBuffer = bb
		return true
	})
}

func (h *Host) removeSockets() {
	for _, path := range []string{h.cfg.SessionSocket, h.cfg.CommandSocket} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.log.WithError(err).WithField("path", path).Warn("remove socket")
		}
	}
}

func (h *Host) shutdown() {
	h.modules.Close()
	h.gd.Clients.Each(func(_ protocol.ClientIndex, c *editor.Client) bool {
		c.Stream.Close()
		return true
	})
}
