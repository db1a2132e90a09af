// Package protocol defines the commands exchanged on the message bus and the
// envelopes that carry them across process boundaries.
package protocol

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/odvcencio/myedit/arena"
	"github.com/odvcencio/myedit/geom"
)

// ClientIndex identifies a connected client.
type ClientIndex = arena.Index

// Cmd is a domain command. The set is open: modules may register their own
// kinds with Register. The host only interprets Quit, Kill, ResizeClient and
// CleanRender; everything else is forwarded to every module untouched.
type Cmd interface {
	Kind() string
}

var (
	registryMu sync.RWMutex
	registry   = map[string]reflect.Type{}
)

// Register makes a command kind decodable from the wire. The prototype must
// be a non-pointer value; decoding produces values of the same type.
//
// A reloaded module registers its kinds again from a fresh copy of its
// package, so a type with the same name replaces the earlier one and later
// decodes produce the new type. Claiming a kind with a differently named
// type panics.
func Register(proto Cmd) {
	t := reflect.TypeOf(proto)
	if t.Kind() == reflect.Pointer {
		panic(fmt.Sprintf("protocol: Register(%s) needs a value, not a pointer", t))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if prev, ok := registry[proto.Kind()]; ok && prev != t && prev.Name() != t.Name() {
		panic(fmt.Sprintf("protocol: kind %q already registered as %s", proto.Kind(), prev))
	}
	registry[proto.Kind()] = t
}

func lookup(kind string) (reflect.Type, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[kind]
	return t, ok
}

// Kinds lists the registered command kinds, sorted.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Mode is a client's editing mode.
type Mode uint8

const (
	ModeNormal Mode = iota
	ModeInsert
	ModeCommand
	ModeSearch
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "NORMAL"
	case ModeInsert:
		return "INSERT"
	case ModeCommand:
		return "COMMAND"
	case ModeSearch:
		return "SEARCH"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Direction is a cursor motion direction.
type Direction uint8

const (
	Left Direction = iota
	Right
	Up
	Down
)

// DeleteDirection says which side of the cursor a delete removes.
type DeleteDirection uint8

const (
	Before DeleteDirection = iota
	After
)

// JumpType names a cursor jump target.
type JumpType uint8

const (
	EndOfLine JumpType = iota
	StartOfLine
	BeginningOfBuffer
	EndOfBuffer
	StartOfWord
	EndOfWord
	MatchingBrace
	ToPoint
)

// Host-interpreted commands.
type (
	Quit         struct{}
	Kill         struct{}
	CleanRender  struct{}
	ResizeClient struct {
		Size geom.Rect `msgpack:"size"`
	}
)

// Editing commands, opaque to the host.
type (
	ChangeMode struct {
		Mode Mode `msgpack:"mode"`
	}
	MoveCursor struct {
		Dir    Direction `msgpack:"dir"`
		Select bool      `msgpack:"sel"`
	}
	InsertChar struct {
		Char rune `msgpack:"ch"`
	}
	InsertCharAtPoint struct {
		Char rune       `msgpack:"ch"`
		At   geom.Point `msgpack:"at"`
	}
	InsertStringAtPoint struct {
		Text string     `msgpack:"text"`
		At   geom.Point `msgpack:"at"`
	}
	DeleteChar struct {
		Dir DeleteDirection `msgpack:"dir"`
	}
	DeleteCharRange struct {
		Start geom.Point `msgpack:"start"`
		End   geom.Point `msgpack:"end"`
	}
	Jump struct {
		To    JumpType   `msgpack:"to"`
		Point geom.Point `msgpack:"pt,omitempty"`
	}
	Scroll struct {
		Lines int `msgpack:"lines"`
	}
	RunCommand  struct{}
	WriteBuffer struct {
		Path string `msgpack:"path"`
	}
	LoadFile struct {
		Path string `msgpack:"path"`
	}
	BufferLoaded   struct{}
	BufferModified struct{}
	Search         struct {
		Query string `msgpack:"q"`
	}
	YankValue struct {
		Text string `msgpack:"text"`
	}
	Yank         struct{}
	PasteAtPoint struct {
		At geom.Point `msgpack:"at"`
	}
	Paste      struct{}
	Undo       struct{}
	Redo       struct{}
	DeleteLine struct{}
	// DuplicateLine copies the cursor line below itself.
	DuplicateLine struct{}
	MoveLine      struct {
		Delta int `msgpack:"delta"`
	}
)

func (Quit) Kind() string                { return "quit" }
func (Kill) Kind() string                { return "kill" }
func (CleanRender) Kind() string         { return "clean_render" }
func (ResizeClient) Kind() string        { return "resize_client" }
func (ChangeMode) Kind() string          { return "change_mode" }
func (MoveCursor) Kind() string          { return "move_cursor" }
func (InsertChar) Kind() string          { return "insert_char" }
func (InsertCharAtPoint) Kind() string   { return "insert_char_at_point" }
func (InsertStringAtPoint) Kind() string { return "insert_string_at_point" }
func (DeleteChar) Kind() string          { return "delete_char" }
func (DeleteCharRange) Kind() string     { return "delete_char_range" }
func (Jump) Kind() string                { return "jump" }
func (Scroll) Kind() string              { return "scroll" }
func (RunCommand) Kind() string          { return "run_command" }
func (WriteBuffer) Kind() string         { return "write_buffer" }
func (LoadFile) Kind() string            { return "load_file" }
func (BufferLoaded) Kind() string        { return "buffer_loaded" }
func (BufferModified) Kind() string      { return "buffer_modified" }
func (Search) Kind() string              { return "search" }
func (YankValue) Kind() string           { return "yank_value" }
func (Yank) Kind() string                { return "yank" }
func (PasteAtPoint) Kind() string        { return "paste_at_point" }
func (Paste) Kind() string               { return "paste" }
func (Undo) Kind() string                { return "undo" }
func (Redo) Kind() string                { return "redo" }
func (DeleteLine) Kind() string          { return "delete_line" }
func (DuplicateLine) Kind() string       { return "duplicate_line" }
func (MoveLine) Kind() string            { return "move_line" }

func init() {
	for _, c := range []Cmd{
		Quit{}, Kill{}, CleanRender{}, ResizeClient{},
		ChangeMode{}, MoveCursor{}, InsertChar{}, InsertCharAtPoint{},
		InsertStringAtPoint{}, DeleteChar{}, DeleteCharRange{}, Jump{},
		Scroll{}, RunCommand{}, WriteBuffer{}, LoadFile{}, BufferLoaded{},
		BufferModified{}, Search{}, YankValue{}, Yank{}, PasteAtPoint{},
		Paste{}, Undo{}, Redo{}, DeleteLine{}, DuplicateLine{}, MoveLine{},
	} {
		Register(c)
	}
}
