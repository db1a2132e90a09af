// Package lsptest runs a scripted language server over an in-memory pipe.
package lsptest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/lsp"
)

// Message is a request or notification the server received.
type Message struct {
	Method string
	Params json.RawMessage
}

// Server answers initialize and shutdown and records everything else.
type Server struct {
	conn io.ReadWriteCloser
	wmu  sync.Mutex

	// Notifications receives every notification in arrival order.
	Notifications chan Message
	// OnNotify, if set, runs on the server goroutine for each notification.
	OnNotify func(s *Server, m Message)
}

// Serve starts answering on conn.
func Serve(conn io.ReadWriteCloser, onNotify func(*Server, Message)) *Server {
	s := &Server{conn: conn, Notifications: make(chan Message, 100), OnNotify: onNotify}
	go s.loop()
	return s
}

// Pipe connects a client to a new server. Both ends close when the test
// finishes.
func Pipe(t testing.TB, log logrus.FieldLogger, onNotify func(*Server, Message)) (*lsp.Client, *Server) {
	t.Helper()
	a, b := net.Pipe()
	s := Serve(b, onNotify)
	c := lsp.NewClientConn(a, log)
	t.Cleanup(func() {
		_ = c.Close()
		_ = b.Close()
	})
	return c, s
}

type envelope struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  any              `json:"result,omitempty"`
}

func (s *Server) loop() {
	defer close(s.Notifications)
	r := bufio.NewReader(s.conn)
	for {
		var msg envelope
		if err := read(r, &msg); err != nil {
			return
		}
		if msg.ID != nil {
			var result any = map[string]any{}
			if msg.Method == "shutdown" {
				result = nil
			}
			_ = s.send(envelope{JSONRPC: "2.0", ID: msg.ID, Result: result})
			continue
		}
		m := Message{Method: msg.Method, Params: msg.Params}
		if s.OnNotify != nil {
			s.OnNotify(s, m)
		}
		s.Notifications <- m
	}
}

// Publish sends diagnostics for a document.
func (s *Server) Publish(p lsp.PublishDiagnosticsParams) error {
	params, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.send(envelope{JSONRPC: "2.0", Method: "textDocument/publishDiagnostics", Params: params})
}

func (s *Server) send(msg envelope) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := fmt.Fprintf(s.conn, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	_, err = s.conn.Write(data)
	return err
}

func read(r *bufio.Reader, v any) error {
	n := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if k, val, ok := strings.Cut(line, ":"); ok && strings.EqualFold(k, "content-length") {
			n, _ = strconv.Atoi(strings.TrimSpace(val))
		}
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}
