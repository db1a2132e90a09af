package host

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

//go:embed static/*
var staticFS embed.FS

// WebBridge attaches browser terminals as session clients. Binary websocket
// messages carry raw key bytes, just like a terminal session socket; text
// messages are JSON control frames such as {"type":"resize","cols":80,"rows":24}.
// Frames from the host are sent to the browser as binary messages.
type WebBridge struct {
	queue    *Queue
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

// NewWebBridge returns a bridge feeding q.
func NewWebBridge(q *Queue, log logrus.FieldLogger) *WebBridge {
	return &WebBridge{
		queue: q,
		log:   log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (b *WebBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/ws" {
		b.handleWebSocket(w, r)
		return
	}
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		http.Error(w, "static files unavailable", http.StatusInternalServerError)
		return
	}
	http.FileServer(http.FS(sub)).ServeHTTP(w, r)
}

func (b *WebBridge) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.WithError(err).Warn("websocket upgrade")
		return
	}
	s := newWSStream(conn, b.queue, b.log.WithField("remote", r.RemoteAddr))
	b.queue.Push(editor.NewClient{Stream: s})
}

type controlFrame struct {
	Type string `json:"type"`
	Cols int    `json:"cols"`
	Rows int    `json:"rows"`
}

// wsStream adapts a websocket to the byte stream a session client expects.
// The first write is the host's handshake; the stream keeps the client index
// from it, to address resize commands, instead of forwarding it.
type wsStream struct {
	conn  *websocket.Conn
	queue *Queue
	log   logrus.FieldLogger

	writeMu sync.Mutex
	pr      *io.PipeReader
	pw      *io.PipeWriter

	mu      sync.Mutex
	client  *protocol.ClientIndex
	pending *geom.Rect
}

func newWSStream(conn *websocket.Conn, q *Queue, log logrus.FieldLogger) *wsStream {
	pr, pw := io.Pipe()
	s := &wsStream{conn: conn, queue: q, log: log, pr: pr, pw: pw}
	go s.readLoop()
	return s
}

func (s *wsStream) readLoop() {
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			s.pw.CloseWithError(io.EOF)
			return
		}
		switch kind {
		case websocket.BinaryMessage:
			if _, err := s.pw.Write(data); err != nil {
				return
			}
		case websocket.TextMessage:
			var f controlFrame
			if err := json.Unmarshal(data, &f); err != nil {
				s.log.WithError(err).Debug("bad control frame")
				continue
			}
			if f.Type == "resize" && f.Cols > 0 && f.Rows > 0 {
				s.resize(geom.Rect{W: f.Cols, H: f.Rows})
			}
		}
	}
}

func (s *wsStream) resize(size geom.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		s.pending = &size
		return
	}
	s.queue.Push(editor.CmdMsg{Client: *s.client, Cmd: protocol.ResizeClient{Size: size}})
}

func (s *wsStream) Read(p []byte) (int, error) {
	return s.pr.Read(p)
}

func (s *wsStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	if s.client == nil {
		ic, err := protocol.ReadInitializeClient(bytes.NewReader(p))
		if err != nil {
			s.mu.Unlock()
			return 0, err
		}
		s.client = &ic.Client
		if s.pending != nil {
			s.queue.Push(editor.CmdMsg{Client: ic.Client, Cmd: protocol.ResizeClient{Size: *s.pending}})
			s.pending = nil
		}
		s.mu.Unlock()
		return len(p), nil
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	s.pw.CloseWithError(io.EOF)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	err := s.conn.Close()
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	return err
}
