// Package highlight colours the visible text with chroma. Tokens are cached
// per buffer and recomputed when the buffer changes.
package highlight

import (
	"os"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

const (
	Name = "highlight"

	// DefaultStyle is used when no style is configured or the configured
	// one is unknown.
	DefaultStyle = "monokai"

	// EnvStyle names the environment variable the plugin build reads its
	// style from. The host exports it from configuration.
	EnvStyle = "MYEDIT_HIGHLIGHT_STYLE"
)

// span colours columns [start, end) of one line.
type span struct {
	start, end int
	fg         backbuffer.Color
	style      backbuffer.Style
}

type tokens struct {
	revision uint64
	source   string
	lines    [][]span
}

// State holds the chroma style and the token cache.
type State struct {
	style *chroma.Style
	cache map[editor.BufferIndex]*tokens
}

// New returns the highlighter using the named chroma style.
func New(styleName string) ext.Module {
	return ext.Module{
		Name: Name,
		Init: func(*editor.GlobalData) editor.State {
			return newState(styleName)
		},
		Update:  Update,
		Render:  Render,
		Cleanup: Cleanup,
	}
}

// Module returns the highlighter with the style from EnvStyle.
func Module() ext.Module {
	return New(os.Getenv(EnvStyle))
}

func Init(*editor.GlobalData) editor.State {
	return newState(os.Getenv(EnvStyle))
}

func newState(name string) *State {
	if name == "" {
		name = DefaultStyle
	}
	style := styles.Get(name)
	if style == nil {
		style = styles.Fallback
	}
	return &State{style: style, cache: map[editor.BufferIndex]*tokens{}}
}

// Update drops cached tokens for buffers that were edited or replaced.
func Update(gd *editor.GlobalData, msg editor.Msg, _ *editor.Utils, _ editor.Emit, st editor.State) {
	s := st.(*State)
	m, ok := msg.(editor.CmdMsg)
	if !ok {
		return
	}
	switch m.Cmd.(type) {
	case protocol.BufferModified, protocol.BufferLoaded:
		if c, ok := gd.Client(m.Client); ok {
			delete(s.cache, c.Buffer)
		}
	}
	for idx := range s.cache {
		if !gd.Buffers.Contains(idx) {
			delete(s.cache, idx)
		}
	}
}

func (s *State) tokens(idx editor.BufferIndex, b *editor.Buffer, u *editor.Utils) *tokens {
	if t, ok := s.cache[idx]; ok && t.revision == b.Revision() && t.source == b.Source() {
		return t
	}
	t := &tokens{revision: b.Revision(), source: b.Source()}
	s.cache[idx] = t

	text := b.Text()
	lexer := lexers.Match(b.Title())
	if lexer == nil {
		lexer = lexers.Analyse(text)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)
	it, err := lexer.Tokenise(nil, text)
	if err != nil {
		u.Log().WithError(err).WithField("lexer", lexer.Config().Name).Warn("tokenise")
		return t
	}
	for _, line := range chroma.SplitTokensIntoLines(it.Tokens()) {
		var spans []span
		x := 0
		for _, tok := range line {
			n := utf8.RuneCountInString(tok.Value)
			entry := s.style.Get(tok.Type)
			if entry.Colour.IsSet() && n > 0 {
				sp := span{
					start: x,
					end:   x + n,
					fg:    backbuffer.RGB(entry.Colour.Red(), entry.Colour.Green(), entry.Colour.Blue()),
				}
				if entry.Bold == chroma.Yes {
					sp.style = backbuffer.Bold
				}
				spans = append(spans, sp)
			}
			x += n
		}
		t.lines = append(t.lines, spans)
	}
	return t
}

// Render sets foreground colours over the visible text. Glyphs are left to
// the view.
func Render(gd *editor.GlobalData, client protocol.ClientIndex, bb *backbuffer.BackBuffer, u *editor.Utils, st editor.State) {
	s := st.(*State)
	c, ok := gd.Client(client)
	if !ok || c.Size == nil {
		return
	}
	b, ok := gd.Buffers.Get(c.Buffer)
	if !ok {
		return
	}
	t := s.tokens(c.Buffer, b, u)
	rows := editor.TextRows(*c.Size)
	for y := b.StartLine; y < b.StartLine+rows && y < len(t.lines) && y < b.LineCount(); y++ {
		for _, sp := range t.lines[y] {
			origin, ok := b.ScreenPoint(geom.Point{X: sp.start, Y: y}, *c.Size)
			if !ok {
				break
			}
			width := b.ScreenColumn(geom.Point{X: sp.end, Y: y}) - b.ScreenColumn(geom.Point{X: sp.start, Y: y})
			width = min(width, c.Size.W-origin.X)
			if width > 0 {
				u.StyleRange(bb, origin, width, sp.style, sp.fg, backbuffer.Color{})
			}
		}
	}
}

func Cleanup(st editor.State) {
	if s, ok := st.(*State); ok {
		clear(s.cache)
	}
}
