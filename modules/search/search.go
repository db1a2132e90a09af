// Package search moves a client to the next occurrence of its query and
// marks every visible occurrence.
package search

import (
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

const Name = "search"

var (
	MatchFG = backbuffer.RGB(0, 0, 0)
	MatchBG = backbuffer.Yellow
)

type query struct {
	text   string
	buffer editor.BufferIndex
	// last is where the previous match started; nil before the first.
	last *geom.Point
	// shown is cleared when the client starts inserting.
	shown bool
}

// State keeps one query per client.
type State struct {
	queries map[protocol.ClientIndex]*query
}

// Module returns the search module for static linking.
func Module() ext.Module {
	return ext.Module{Name: Name, Init: Init, Update: Update, Render: Render, Cleanup: Cleanup}
}

func Init(*editor.GlobalData) editor.State {
	return &State{queries: map[protocol.ClientIndex]*query{}}
}

func Cleanup(editor.State) {}

// Update handles Search. An empty query repeats the client's previous one,
// continuing after the match it found last and wrapping at the end.
func Update(gd *editor.GlobalData, msg editor.Msg, u *editor.Utils, emit editor.Emit, st editor.State) {
	s := st.(*State)
	if _, ok := msg.(editor.NewClient); ok {
		for idx := range s.queries {
			if !gd.Clients.Contains(idx) {
				delete(s.queries, idx)
			}
		}
		return
	}
	m, ok := msg.(editor.CmdMsg)
	if !ok {
		return
	}
	switch cmd := m.Cmd.(type) {
	case protocol.ChangeMode:
		if q, ok := s.queries[m.Client]; ok && cmd.Mode == protocol.ModeInsert {
			q.shown = false
		}

	case protocol.Search:
		c, ok := gd.Client(m.Client)
		if !ok {
			return
		}
		b, ok := gd.Buffers.Get(c.Buffer)
		if !ok {
			return
		}
		q := s.queries[m.Client]
		switch {
		case cmd.Query != "":
			q = &query{text: cmd.Query, buffer: c.Buffer}
			s.queries[m.Client] = q
		case q == nil:
			u.Debug("no previous search")
			return
		case q.buffer != c.Buffer:
			q.buffer, q.last = c.Buffer, nil
		}
		q.shown = true

		from := geom.Point{Y: b.StartLine}
		if q.last != nil {
			from = *q.last
		}
		match, ok := next(b.Find(q.text), from, q.last != nil)
		log := u.Log().WithFields(logrus.Fields{"client": m.Client, "query": q.text})
		if !ok {
			log.Info("no match")
			return
		}
		q.last = &match.Start
		log.WithField("at", match.Start).Debug("match")
		emit(m.Client, protocol.Jump{To: protocol.ToPoint, Point: match.Start})
	}
}

// next picks the first match at from, or strictly after it when after is
// set, wrapping to the first match in the buffer.
func next(matches []editor.Range, from geom.Point, after bool) (editor.Range, bool) {
	if len(matches) == 0 {
		return editor.Range{}, false
	}
	for _, r := range matches {
		if editor.Before(from, r.Start) || (!after && r.Start == from) {
			return r, true
		}
	}
	return matches[0], true
}

// Render marks occurrences of the client's query on visible lines.
func Render(gd *editor.GlobalData, client protocol.ClientIndex, bb *backbuffer.BackBuffer, u *editor.Utils, st editor.State) {
	s := st.(*State)
	q, ok := s.queries[client]
	if !ok || !q.shown {
		return
	}
	c, ok := gd.Client(client)
	if !ok || c.Size == nil || c.Buffer != q.buffer {
		return
	}
	b, ok := gd.Buffers.Get(c.Buffer)
	if !ok {
		return
	}
	for _, r := range b.Find(q.text) {
		origin, ok := b.ScreenPoint(r.Start, *c.Size)
		if !ok {
			continue
		}
		width := min(b.ScreenColumn(r.End)-b.ScreenColumn(r.Start), c.Size.W-origin.X)
		u.StyleRange(bb, origin, width, backbuffer.StyleNone, MatchFG, MatchBG)
	}
}
