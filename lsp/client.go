package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// ErrClosed is returned for calls on a client whose connection is gone.
var ErrClosed = errors.New("lsp: client is closed")

// Client speaks JSON-RPC to one language server, either a child process or
// an in-process connection.
type Client struct {
	w       io.WriteCloser
	r       *bufio.Reader
	wait    func() error
	log     logrus.FieldLogger
	mu      sync.Mutex
	nextID  atomic.Int64
	pending map[int64]chan rpcResult
	notify  func(method string, params json.RawMessage)
	closed  atomic.Bool
}

type rpcResult struct {
	result json.RawMessage
	err    error
}

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonrpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpcError   `json:"error,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonrpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewClient starts the server process described by cfg. The process is
// killed when ctx is cancelled.
func NewClient(ctx context.Context, cfg ServerConfig, log logrus.FieldLogger) (*Client, error) {
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}
	c := newClient(stdin, stdout, log.WithField("server", cfg.Command))
	c.wait = cmd.Wait
	go c.readLoop()
	return c, nil
}

// NewClientConn talks to a server over an existing connection.
func NewClientConn(conn io.ReadWriteCloser, log logrus.FieldLogger) *Client {
	c := newClient(conn, conn, log)
	go c.readLoop()
	return c
}

func newClient(w io.WriteCloser, r io.Reader, log logrus.FieldLogger) *Client {
	return &Client{
		w:       w,
		r:       bufio.NewReader(r),
		log:     log,
		pending: make(map[int64]chan rpcResult),
	}
}

// SetNotifyHandler registers a callback for server notifications. It runs
// on the client's read goroutine.
func (c *Client) SetNotifyHandler(fn func(method string, params json.RawMessage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = fn
}

func (c *Client) readLoop() {
	defer c.cleanupPending()
	for {
		msg, err := readMessage(c.r)
		if err != nil {
			if !c.closed.Load() {
				c.log.WithError(err).Debug("lsp read loop ended")
			}
			return
		}

		if msg.ID != nil {
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			if ok {
				delete(c.pending, *msg.ID)
			}
			c.mu.Unlock()
			if ok {
				if msg.Error != nil {
					ch <- rpcResult{err: fmt.Errorf("rpc error %d: %s", msg.Error.Code, msg.Error.Message)}
				} else {
					ch <- rpcResult{result: msg.Result}
				}
				close(ch)
			}
			continue
		}

		if msg.Method != "" {
			c.mu.Lock()
			fn := c.notify
			c.mu.Unlock()
			if fn != nil {
				fn(msg.Method, msg.Params)
			}
		}
	}
}

func (c *Client) cleanupPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = map[int64]chan rpcResult{}
}

func readMessage(r *bufio.Reader) (jsonrpcResponse, error) {
	var contentLength int
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return jsonrpcResponse{}, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			val := strings.TrimSpace(strings.TrimPrefix(strings.ToLower(line), "content-length:"))
			if n, err := strconv.Atoi(val); err == nil {
				contentLength = n
			}
		}
	}
	if contentLength <= 0 {
		return jsonrpcResponse{}, fmt.Errorf("invalid content-length: %d", contentLength)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return jsonrpcResponse{}, err
	}

	var resp jsonrpcResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return jsonrpcResponse{}, err
	}
	return resp, nil
}

func writeMessage(w io.Writer, msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(data)); err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func (c *Client) sendMessage(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	return writeMessage(c.w, msg)
}

// Call sends a request and waits for the response.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan rpcResult, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	req := jsonrpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
	if err := c.sendMessage(req); err != nil {
		return nil, err
	}

	select {
	case result, ok := <-ch:
		if !ok {
			return nil, ErrClosed
		}
		if result.err != nil {
			return nil, result.err
		}
		return result.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Notify sends a notification (no response expected).
func (c *Client) Notify(method string, params any) error {
	return c.sendMessage(jsonrpcNotification{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
	})
}

// DidOpen notifies the server that a document is now open in the editor.
func (c *Client) DidOpen(uri, languageID string, version int, text string) error {
	return c.Notify("textDocument/didOpen", map[string]any{
		"textDocument": TextDocumentItem{
			URI:        uri,
			LanguageID: languageID,
			Version:    version,
			Text:       text,
		},
	})
}

// DidChange sends the whole new text of a document.
func (c *Client) DidChange(uri string, version int, text string) error {
	return c.Notify("textDocument/didChange", map[string]any{
		"textDocument": map[string]any{
			"uri":     uri,
			"version": version,
		},
		"contentChanges": []map[string]any{
			{"text": text},
		},
	})
}

// DidSave notifies the server that a document was saved.
func (c *Client) DidSave(uri string) error {
	return c.Notify("textDocument/didSave", map[string]any{
		"textDocument": TextDocumentIdentifier{URI: uri},
	})
}

// DidClose notifies the server that a document is closed.
func (c *Client) DidClose(uri string) error {
	return c.Notify("textDocument/didClose", map[string]any{
		"textDocument": TextDocumentIdentifier{URI: uri},
	})
}

// Initialize sends initialize and initialized notifications to the LSP server.
func (c *Client) Initialize(ctx context.Context, rootURI string) error {
	params := map[string]any{
		"processId": os.Getpid(),
		"rootUri":   rootURI,
		"capabilities": map[string]any{
			"textDocument": map[string]any{
				"synchronization":    map[string]any{"didSave": true},
				"publishDiagnostics": map[string]any{},
			},
		},
	}
	if _, err := c.Call(ctx, "initialize", params); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return c.Notify("initialized", map[string]any{})
}

// Shutdown asks the server to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	if _, err := c.Call(ctx, "shutdown", nil); err != nil {
		return err
	}
	return c.Notify("exit", nil)
}

// Close drops the connection and waits for a server process to exit.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	_ = c.w.Close()
	c.mu.Unlock()

	if c.wait != nil {
		return c.wait()
	}
	return nil
}

// IsTransportError reports whether err means the server connection broke,
// as opposed to the server rejecting a request.
func IsTransportError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"broken pipe",
		"connection reset",
		"read/write on closed pipe",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
