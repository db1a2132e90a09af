// Package diagnostics keeps language servers in sync with open buffers and
// marks the problems they report.
//
// Servers start in the background. Their replies arrive on the servers' own
// goroutines and reach the loop as commands on the bus, so module state is
// only touched from Update and Render.
package diagnostics

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/arena"
	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/lsp"
	"github.com/odvcencio/myedit/protocol"
)

const (
	Name = "diagnostics"

	startTimeout    = 10 * time.Second
	shutdownTimeout = time.Second
)

// Diagnostic is one reported problem in buffer coordinates.
type Diagnostic struct {
	Start    geom.Point `msgpack:"start"`
	End      geom.Point `msgpack:"end"`
	Severity int        `msgpack:"sev"`
	Message  string     `msgpack:"msg"`
	Source   string     `msgpack:"src,omitempty"`
}

// Published carries a server's current diagnostics for one file.
type Published struct {
	Path        string       `msgpack:"path"`
	Diagnostics []Diagnostic `msgpack:"diags"`
}

func (Published) Kind() string { return "diagnostics_published" }

// started wakes the loop after a server start finished. It never crosses a
// process boundary.
type started struct {
	lang string
}

func (started) Kind() string { return "diagnostics_server_started" }

func init() {
	protocol.Register(Published{})
}

// Starter launches the server for one language.
type Starter func(ctx context.Context, cfg lsp.ServerConfig, log logrus.FieldLogger) (*lsp.Client, error)

// Options configures the module. Zero fields take defaults: servers from
// lsp.LoadServers, lsp.NewClient as Starter and the working directory as
// root.
type Options struct {
	Servers map[string]lsp.ServerConfig
	Start   Starter
	Root    string
}

// Severity colours.
var (
	ErrorColor   = backbuffer.Red
	WarningColor = backbuffer.Yellow
	InfoColor    = backbuffer.Blue
)

type server struct {
	lang string

	mu     sync.Mutex
	done   bool
	client *lsp.Client
	err    error

	// Loop side.
	checked bool
	conn    *lsp.Client
}

type document struct {
	lang    string
	version int
}

// State tracks servers, synced documents and the latest diagnostics.
type State struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	// recent is the last client seen, used to address commands sent from
	// server goroutines.
	recent atomic.Uint64

	servers map[string]*server
	docs    map[string]*document
	diags   map[string][]Diagnostic
}

// New returns the diagnostics module.
func New(opts Options) ext.Module {
	return ext.Module{
		Name:    Name,
		Init:    func(*editor.GlobalData) editor.State { return newState(opts) },
		Update:  Update,
		Render:  Render,
		Cleanup: Cleanup,
	}
}

// Module returns the module with default options.
func Module() ext.Module {
	return New(Options{})
}

func Init(*editor.GlobalData) editor.State {
	return newState(Options{})
}

func newState(opts Options) *State {
	if opts.Servers == nil {
		// A broken override file leaves the defaults in place.
		opts.Servers, _ = lsp.LoadServers(lsp.ConfigPaths()...)
	}
	if opts.Start == nil {
		opts.Start = lsp.NewClient
	}
	if opts.Root == "" {
		opts.Root, _ = os.Getwd()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &State{
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		servers: map[string]*server{},
		docs:    map[string]*document{},
		diags:   map[string][]Diagnostic{},
	}
}

// Diagnostics returns what the server last reported for path.
func (s *State) Diagnostics(path string) []Diagnostic {
	return s.diags[path]
}

func Update(gd *editor.GlobalData, msg editor.Msg, u *editor.Utils, emit editor.Emit, st editor.State) {
	s := st.(*State)
	m, ok := msg.(editor.CmdMsg)
	if !ok {
		return
	}
	s.recent.Store(m.Client.Uint64())

	switch cmd := m.Cmd.(type) {
	case Published:
		if len(cmd.Diagnostics) == 0 {
			delete(s.diags, cmd.Path)
		} else {
			s.diags[cmd.Path] = cmd.Diagnostics
		}

	case started:
		if srv, ok := s.servers[cmd.lang]; ok {
			s.connected(gd, srv, "", u)
		}

	case protocol.BufferLoaded, protocol.BufferModified:
		if b, ok := gd.ClientBuffer(m.Client); ok && !b.Untitled() {
			s.sync(gd, b.Source(), b.Text(), u, emit)
		}

	case protocol.WriteBuffer:
		b, ok := gd.ClientBuffer(m.Client)
		if !ok || b.Untitled() {
			return
		}
		doc, ok := s.docs[b.Source()]
		if !ok || doc.version == 0 {
			// Saved under a new name.
			s.sync(gd, b.Source(), b.Text(), u, emit)
			return
		}
		srv := s.servers[doc.lang]
		if srv == nil || srv.conn == nil {
			return
		}
		if err := srv.conn.DidSave(lsp.FileURI(b.Source())); err != nil {
			s.failed(srv, err, u)
		}
	}
}

func (s *State) target() protocol.ClientIndex {
	return arena.FromUint64(s.recent.Load())
}

// sync sends path's text to its language server, starting the server
// first if needed. Documents wait while their server starts.
func (s *State) sync(gd *editor.GlobalData, path, text string, u *editor.Utils, emit editor.Emit) {
	lang := lsp.LanguageID(path)
	cfg, ok := s.opts.Servers[lang]
	if lang == "" || !ok {
		return
	}
	doc, ok := s.docs[path]
	if !ok {
		doc = &document{lang: lang}
		s.docs[path] = doc
	}
	srv, ok := s.servers[lang]
	if !ok {
		srv = &server{lang: lang}
		s.servers[lang] = srv
		go s.start(srv, cfg, u.Log().WithField("lang", lang), emit)
		return
	}
	if s.connected(gd, srv, path, u) == nil {
		return
	}
	s.send(srv, path, doc, text, u)
}

func (s *State) start(srv *server, cfg lsp.ServerConfig, log logrus.FieldLogger, emit editor.Emit) {
	c, err := s.opts.Start(s.ctx, cfg, log)
	if err == nil {
		c.SetNotifyHandler(func(method string, params json.RawMessage) {
			s.publish(method, params, log, emit)
		})
		ctx, cancel := context.WithTimeout(s.ctx, startTimeout)
		err = c.Initialize(ctx, lsp.FileURI(s.opts.Root))
		cancel()
		if err != nil {
			_ = c.Close()
			c = nil
		}
	}
	if c != nil && s.ctx.Err() != nil {
		// Cleanup already ran.
		_ = c.Close()
		return
	}
	srv.mu.Lock()
	srv.done, srv.client, srv.err = true, c, err
	srv.mu.Unlock()
	emit(s.target(), started{lang: srv.lang})
}

// connected returns srv's client once its start finished, first opening the
// documents that arrived meanwhile. skip names a document the caller sends
// itself.
func (s *State) connected(gd *editor.GlobalData, srv *server, skip string, u *editor.Utils) *lsp.Client {
	if srv.checked {
		return srv.conn
	}
	srv.mu.Lock()
	done, c, err := srv.done, srv.client, srv.err
	srv.mu.Unlock()
	if !done {
		return nil
	}
	srv.checked = true
	if err != nil {
		u.Log().WithError(err).WithField("lang", srv.lang).Warn("language server failed to start")
		return nil
	}
	srv.conn = c
	u.Log().WithField("lang", srv.lang).Info("language server ready")
	for path, doc := range s.docs {
		if path == skip || doc.lang != srv.lang || doc.version != 0 {
			continue
		}
		idx, ok := gd.FindBuffer(path)
		if !ok {
			continue
		}
		if b, ok := gd.Buffers.Get(idx); ok {
			s.send(srv, path, doc, b.Text(), u)
		}
	}
	return srv.conn
}

func (s *State) send(srv *server, path string, doc *document, text string, u *editor.Utils) {
	if srv.conn == nil {
		return
	}
	uri := lsp.FileURI(path)
	var err error
	if doc.version == 0 {
		doc.version = 1
		err = srv.conn.DidOpen(uri, doc.lang, doc.version, text)
	} else {
		doc.version++
		err = srv.conn.DidChange(uri, doc.version, text)
	}
	if err != nil {
		s.failed(srv, err, u)
	}
}

// failed logs err. A broken connection drops the server so the next sync
// starts a fresh one and reopens its documents.
func (s *State) failed(srv *server, err error, u *editor.Utils) {
	log := u.Log().WithError(err).WithField("lang", srv.lang)
	if !lsp.IsTransportError(err) {
		log.Warn("language server request failed")
		return
	}
	log.Warn("language server connection lost")
	delete(s.servers, srv.lang)
	for path, doc := range s.docs {
		if doc.lang == srv.lang {
			doc.version = 0
			delete(s.diags, path)
		}
	}
	if srv.conn != nil {
		go srv.conn.Close()
	}
}

// publish runs on a server's read goroutine.
func (s *State) publish(method string, params json.RawMessage, log logrus.FieldLogger, emit editor.Emit) {
	if method != "textDocument/publishDiagnostics" {
		return
	}
	var p lsp.PublishDiagnosticsParams
	if err := json.Unmarshal(params, &p); err != nil {
		log.WithError(err).Warn("bad diagnostics payload")
		return
	}
	out := Published{Path: lsp.PathFromURI(p.URI)}
	for _, d := range p.Diagnostics {
		out.Diagnostics = append(out.Diagnostics, Diagnostic{
			Start:    geom.Point{X: d.Range.Start.Character, Y: d.Range.Start.Line},
			End:      geom.Point{X: d.Range.End.Character, Y: d.Range.End.Line},
			Severity: d.Severity,
			Message:  d.Message,
			Source:   d.Source,
		})
	}
	emit(s.target(), out)
}

func severity(sev int) int {
	if sev < lsp.SeverityError || sev > lsp.SeverityHint {
		return lsp.SeverityError
	}
	return sev
}

func colorOf(sev int) backbuffer.Color {
	switch severity(sev) {
	case lsp.SeverityError:
		return ErrorColor
	case lsp.SeverityWarning:
		return WarningColor
	}
	return InfoColor
}

// Render marks the gutter of lines with problems, underlines the reported
// ranges and shows the most severe message after the line's text.
func Render(gd *editor.GlobalData, client protocol.ClientIndex, bb *backbuffer.BackBuffer, u *editor.Utils, st editor.State) {
	s := st.(*State)
	c, ok := gd.Client(client)
	if !ok || c.Size == nil {
		return
	}
	b, ok := gd.Buffers.Get(c.Buffer)
	if !ok || b.Untitled() {
		return
	}
	diags := s.diags[b.Source()]
	if len(diags) == 0 {
		return
	}

	worst := map[int]Diagnostic{}
	for _, d := range diags {
		y := d.Start.Y
		if y < 0 || y >= b.LineCount() {
			continue
		}
		if w, ok := worst[y]; !ok || severity(d.Severity) < severity(w.Severity) {
			worst[y] = d
		}

		origin, ok := b.ScreenPoint(d.Start, *c.Size)
		if !ok {
			continue
		}
		end := d.End
		if end.Y != y || end.X < d.Start.X {
			end = geom.Point{X: b.LineLen(y), Y: y}
		}
		width := max(b.ScreenColumn(end)-b.ScreenColumn(d.Start), 1)
		width = min(width, c.Size.W-origin.X)
		u.StyleRange(bb, origin, width, backbuffer.Underlined, backbuffer.Color{}, backbuffer.Color{})
	}

	rows := editor.TextRows(*c.Size)
	for y, d := range worst {
		row := y - b.StartLine
		if row < 0 || row >= rows {
			continue
		}
		color := colorOf(d.Severity)
		u.StyleRange(bb, geom.Point{Y: row}, min(editor.GutterWidth-1, c.Size.W), backbuffer.StyleNone, backbuffer.Color{}, color)
		x := editor.GutterWidth + runewidth.StringWidth(editor.DisplayLine(b.Line(y))) + 2
		if x < c.Size.W {
			u.WriteText(bb, geom.Point{X: x, Y: row}, "● "+d.Message, backbuffer.StyleNone, color, backbuffer.Color{})
		}
	}
}

// Cleanup shuts down every server.
func Cleanup(st editor.State) {
	s, ok := st.(*State)
	if !ok {
		return
	}
	for _, srv := range s.servers {
		srv.mu.Lock()
		c := srv.client
		srv.mu.Unlock()
		if c == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		_ = c.Shutdown(ctx)
		cancel()
		_ = c.Close()
	}
	s.cancel()
}
