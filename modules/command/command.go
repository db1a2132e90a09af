// Package command runs the ':' command line and the '/' search prompt.
package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/mattn/go-runewidth"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

const Name = "command"

// Replace swaps every occurrence of Old in the client's buffer for New.
type Replace struct {
	Old string `msgpack:"old"`
	New string `msgpack:"new"`
}

func (Replace) Kind() string { return "replace_all" }

func init() {
	protocol.Register(Replace{})
}

type prompt struct {
	text []rune
	at   int
}

func (p *prompt) insert(r rune) {
	p.text = append(p.text[:p.at], append([]rune{r}, p.text[p.at:]...)...)
	p.at++
}

func (p *prompt) remove(i int) {
	if i < 0 || i >= len(p.text) {
		return
	}
	p.text = append(p.text[:i], p.text[i+1:]...)
	if p.at > i {
		p.at--
	}
}

// State holds the prompt each client is typing into.
type State struct {
	prompts map[protocol.ClientIndex]*prompt
}

// Module returns the command line for static linking.
func Module() ext.Module {
	return ext.Module{Name: Name, Init: Init, Update: Update, Render: Render, Cleanup: Cleanup}
}

func Init(*editor.GlobalData) editor.State {
	return &State{prompts: map[protocol.ClientIndex]*prompt{}}
}

func Cleanup(editor.State) {}

func prompting(m protocol.Mode) bool {
	return m == protocol.ModeCommand || m == protocol.ModeSearch
}

func Update(gd *editor.GlobalData, msg editor.Msg, u *editor.Utils, emit editor.Emit, st editor.State) {
	s := st.(*State)
	if _, ok := msg.(editor.NewClient); ok {
		for idx := range s.prompts {
			if !gd.Clients.Contains(idx) {
				delete(s.prompts, idx)
			}
		}
		return
	}
	m, ok := msg.(editor.CmdMsg)
	if !ok {
		return
	}
	c, ok := gd.Client(m.Client)
	if !ok {
		return
	}
	if cmd, ok := m.Cmd.(Replace); ok {
		replaceAll(gd, m.Client, cmd, u, emit)
		return
	}
	if cmd, ok := m.Cmd.(FindFile); ok {
		findFile(m.Client, cmd, u, emit)
		return
	}
	if cm, ok := m.Cmd.(protocol.ChangeMode); ok {
		if prompting(cm.Mode) {
			s.prompts[m.Client] = &prompt{}
		} else {
			delete(s.prompts, m.Client)
		}
		return
	}
	if !prompting(c.Mode) {
		return
	}
	p, ok := s.prompts[m.Client]
	if !ok {
		p = &prompt{}
		s.prompts[m.Client] = p
	}

	switch cmd := m.Cmd.(type) {
	case protocol.InsertChar:
		if cmd.Char != '\n' && cmd.Char != '\t' {
			p.insert(cmd.Char)
		}
	case protocol.DeleteChar:
		switch {
		case len(p.text) == 0:
			emit(m.Client, protocol.ChangeMode{Mode: protocol.ModeNormal})
		case cmd.Dir == protocol.Before:
			p.remove(p.at - 1)
		default:
			p.remove(p.at)
		}
	case protocol.MoveCursor:
		switch cmd.Dir {
		case protocol.Left:
			p.at = max(p.at-1, 0)
		case protocol.Right:
			p.at = min(p.at+1, len(p.text))
		}
	case protocol.Jump:
		switch cmd.To {
		case protocol.StartOfLine:
			p.at = 0
		case protocol.EndOfLine:
			p.at = len(p.text)
		}
	case protocol.RunCommand:
		line := string(p.text)
		delete(s.prompts, m.Client)
		emit(m.Client, protocol.ChangeMode{Mode: protocol.ModeNormal})
		if c.Mode == protocol.ModeSearch {
			emit(m.Client, protocol.Search{Query: line})
			return
		}
		cmds, err := Parse(line)
		if err != nil {
			log := u.Log().WithFields(logrus.Fields{"client": m.Client, "line": line})
			if verb, ok := suggest(line); ok {
				log = log.WithField("suggest", verb)
			}
			log.WithError(err).Warn("command")
			return
		}
		for _, cmd := range cmds {
			emit(m.Client, cmd)
		}
	}
}

// Parse turns a command line into the commands it stands for. It accepts
// everything protocol.ParseCommand does plus "wq", "find", a bare line
// number and "s/old/new/".
func Parse(line string) ([]protocol.Cmd, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return nil, nil
	case line == "wq" || strings.HasPrefix(line, "wq "):
		return []protocol.Cmd{
			protocol.WriteBuffer{Path: strings.TrimSpace(strings.TrimPrefix(line, "wq"))},
			protocol.Quit{},
		}, nil
	case strings.HasPrefix(line, "s/"):
		return parseReplace(line)
	case line == "find" || strings.HasPrefix(line, "find "):
		pattern := strings.TrimSpace(strings.TrimPrefix(line, "find"))
		if pattern == "" {
			return nil, fmt.Errorf("need a pattern with find: eg %q", "find main.go")
		}
		return []protocol.Cmd{FindFile{Pattern: pattern}}, nil
	}
	if n, err := strconv.Atoi(line); err == nil {
		if n < 1 {
			return nil, fmt.Errorf("no line %d", n)
		}
		return []protocol.Cmd{protocol.Jump{To: protocol.ToPoint, Point: geom.Point{Y: n - 1}}}, nil
	}
	cmd, err := protocol.ParseCommand(line)
	if err != nil {
		return nil, err
	}
	return []protocol.Cmd{cmd}, nil
}

var verbs = []string{"edit", "write", "quit", "kill", "clean", "search", "find"}

// suggest returns the known verb closest to the one line starts with. Short
// or distant verbs get no suggestion.
func suggest(line string) (string, bool) {
	verb, _, _ := strings.Cut(strings.TrimSpace(line), " ")
	if len(verb) < 3 {
		return "", false
	}
	best, bestDist := "", 3
	for _, v := range verbs {
		if d := levenshtein.ComputeDistance(verb, v); d < bestDist {
			best, bestDist = v, d
		}
	}
	return best, best != "" && best != verb
}

// parseReplace reads s/old/new with an optional trailing slash. A slash
// inside either part is written as \/.
func parseReplace(line string) ([]protocol.Cmd, error) {
	var parts []string
	var cur strings.Builder
	body := line[len("s/"):]
	for i := 0; i < len(body); i++ {
		switch {
		case body[i] == '\\' && i+1 < len(body) && body[i+1] == '/':
			cur.WriteByte('/')
			i++
		case body[i] == '/':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(body[i])
		}
	}
	if cur.Len() > 0 || len(parts) < 2 {
		parts = append(parts, cur.String())
	}
	if len(parts) != 2 || parts[0] == "" {
		return nil, fmt.Errorf("want s/old/new/, got %q", line)
	}
	return []protocol.Cmd{Replace{Old: parts[0], New: parts[1]}}, nil
}

func replaceAll(gd *editor.GlobalData, client protocol.ClientIndex, cmd Replace, u *editor.Utils, emit editor.Emit) {
	b, ok := gd.ClientBuffer(client)
	if !ok {
		return
	}
	matches := b.Find(cmd.Old)
	// Back to front so earlier positions stay valid.
	for i := len(matches) - 1; i >= 0; i-- {
		b.ApplyEdit(matches[i].Start, matches[i].End, cmd.New)
	}
	u.Log().WithFields(logrus.Fields{"client": client, "old": cmd.Old, "count": len(matches)}).Info("replaced")
	if len(matches) > 0 {
		emit(client, protocol.BufferModified{})
	}
}

// Render draws the prompt on the last row. When the text is wider than the
// row, the part left of the cursor scrolls off.
func Render(gd *editor.GlobalData, client protocol.ClientIndex, bb *backbuffer.BackBuffer, u *editor.Utils, st editor.State) {
	s := st.(*State)
	c, ok := gd.Client(client)
	if !ok || c.Size == nil || c.Size.H == 0 || !prompting(c.Mode) {
		return
	}
	p, ok := s.prompts[client]
	if !ok {
		p = &prompt{}
	}
	prefix := ":"
	if c.Mode == protocol.ModeSearch {
		prefix = "/"
	}
	room := c.Size.W - len(prefix) - 1
	start := 0
	for start < p.at && runewidth.StringWidth(string(p.text[start:p.at])) > room {
		start++
	}
	row := geom.Point{Y: c.Size.H - 1}
	u.WriteText(bb, row, prefix+string(p.text[start:]), backbuffer.StyleNone, backbuffer.Color{}, backbuffer.Color{})
	bb.SetCursor(geom.Point{
		X: len(prefix) + runewidth.StringWidth(string(p.text[start:p.at])),
		Y: row.Y,
	})
}
