// Package input maps key presses to editor commands according to the
// client's mode, and owns mode switching.
package input

import (
	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/protocol"
)

const Name = "input"

// Module returns the key mapper for static linking.
func Module() ext.Module {
	return ext.Module{Name: Name, Init: Init, Update: Update, Render: Render, Cleanup: Cleanup}
}

func Init(*editor.GlobalData) editor.State { return nil }

func Update(gd *editor.GlobalData, msg editor.Msg, u *editor.Utils, emit editor.Emit, _ editor.State) {
	switch m := msg.(type) {
	case editor.InputEvent:
		c, ok := gd.Client(m.Client)
		if !ok {
			return
		}
		cmds := Map(c.Mode, m.Event)
		if len(cmds) == 0 {
			u.Debugf("unmapped key %+v in %s", m.Event, c.Mode)
			return
		}
		for _, cmd := range cmds {
			emit(m.Client, cmd)
		}

	case editor.CmdMsg:
		if cm, ok := m.Cmd.(protocol.ChangeMode); ok {
			if c, ok := gd.Client(m.Client); ok {
				c.Mode = cm.Mode
			}
		}
	}
}

func Render(*editor.GlobalData, protocol.ClientIndex, *backbuffer.BackBuffer, *editor.Utils, editor.State) {
}

func Cleanup(editor.State) {}

func mode(m protocol.Mode) protocol.Cmd { return protocol.ChangeMode{Mode: m} }

func move(d protocol.Direction) protocol.Cmd { return protocol.MoveCursor{Dir: d} }

func sel(d protocol.Direction) protocol.Cmd { return protocol.MoveCursor{Dir: d, Select: true} }

func jump(j protocol.JumpType) protocol.Cmd { return protocol.Jump{To: j} }

// Map returns the commands a key press stands for in mode m.
func Map(m protocol.Mode, ev protocol.Event) []protocol.Cmd {
	// Keys that mean the same everywhere.
	switch ev.Key {
	case protocol.KeyCtrl:
		switch ev.Rune {
		case 'q':
			return []protocol.Cmd{protocol.Quit{}}
		case 'c':
			// Stops the host and every session, not just this client.
			return []protocol.Cmd{protocol.Kill{}}
		case 'l':
			return []protocol.Cmd{protocol.CleanRender{}}
		}
	case protocol.KeyLeft:
		return []protocol.Cmd{move(protocol.Left)}
	case protocol.KeyRight:
		return []protocol.Cmd{move(protocol.Right)}
	case protocol.KeyUp:
		return []protocol.Cmd{move(protocol.Up)}
	case protocol.KeyDown:
		return []protocol.Cmd{move(protocol.Down)}
	}

	switch m {
	case protocol.ModeNormal:
		return normal(ev)
	case protocol.ModeInsert:
		return insert(ev)
	case protocol.ModeCommand, protocol.ModeSearch:
		return prompt(ev)
	}
	return nil
}

func normal(ev protocol.Event) []protocol.Cmd {
	switch ev.Key {
	case protocol.KeyCtrl:
		switch ev.Rune {
		case 'r':
			return []protocol.Cmd{protocol.Redo{}}
		case 'd':
			return []protocol.Cmd{protocol.Scroll{Lines: 10}}
		case 'u':
			return []protocol.Cmd{protocol.Scroll{Lines: -10}}
		}
		return nil
	case protocol.KeyPageDown:
		return []protocol.Cmd{protocol.Scroll{Lines: 20}}
	case protocol.KeyPageUp:
		return []protocol.Cmd{protocol.Scroll{Lines: -20}}
	case protocol.KeyHome:
		return []protocol.Cmd{jump(protocol.StartOfLine)}
	case protocol.KeyEnd:
		return []protocol.Cmd{jump(protocol.EndOfLine)}
	case protocol.KeyDelete:
		return []protocol.Cmd{protocol.DeleteChar{Dir: protocol.After}}
	case protocol.KeyRune:
	default:
		return nil
	}

	switch ev.Rune {
	case 'i':
		return []protocol.Cmd{mode(protocol.ModeInsert)}
	case 'a':
		return []protocol.Cmd{move(protocol.Right), mode(protocol.ModeInsert)}
	case 'A':
		return []protocol.Cmd{jump(protocol.EndOfLine), mode(protocol.ModeInsert)}
	case 'I':
		return []protocol.Cmd{jump(protocol.StartOfLine), mode(protocol.ModeInsert)}
	case 'o':
		return []protocol.Cmd{jump(protocol.EndOfLine), mode(protocol.ModeInsert), protocol.InsertChar{Char: '\n'}}
	case ':':
		return []protocol.Cmd{mode(protocol.ModeCommand)}
	case '/':
		return []protocol.Cmd{mode(protocol.ModeSearch)}
	case 'n':
		return []protocol.Cmd{protocol.Search{}}
	case 'h':
		return []protocol.Cmd{move(protocol.Left)}
	case 'j':
		return []protocol.Cmd{move(protocol.Down)}
	case 'k':
		return []protocol.Cmd{move(protocol.Up)}
	case 'l':
		return []protocol.Cmd{move(protocol.Right)}
	case 'H':
		return []protocol.Cmd{sel(protocol.Left)}
	case 'J':
		return []protocol.Cmd{sel(protocol.Down)}
	case 'K':
		return []protocol.Cmd{sel(protocol.Up)}
	case 'L':
		return []protocol.Cmd{sel(protocol.Right)}
	case '0':
		return []protocol.Cmd{jump(protocol.StartOfLine)}
	case '$':
		return []protocol.Cmd{jump(protocol.EndOfLine)}
	case 'g':
		return []protocol.Cmd{jump(protocol.BeginningOfBuffer)}
	case 'G':
		return []protocol.Cmd{jump(protocol.EndOfBuffer)}
	case 'w':
		return []protocol.Cmd{jump(protocol.EndOfWord)}
	case 'b':
		return []protocol.Cmd{jump(protocol.StartOfWord)}
	case '%':
		return []protocol.Cmd{jump(protocol.MatchingBrace)}
	case 'x', 'd':
		return []protocol.Cmd{protocol.DeleteChar{Dir: protocol.After}}
	case 'D':
		return []protocol.Cmd{protocol.DeleteLine{}}
	case 'Y':
		return []protocol.Cmd{protocol.DuplicateLine{}}
	case '-':
		return []protocol.Cmd{protocol.MoveLine{Delta: -1}}
	case '+':
		return []protocol.Cmd{protocol.MoveLine{Delta: 1}}
	case 'y':
		return []protocol.Cmd{protocol.Yank{}}
	case 'p':
		return []protocol.Cmd{protocol.Paste{}}
	case 'u':
		return []protocol.Cmd{protocol.Undo{}}
	}
	return nil
}

func insert(ev protocol.Event) []protocol.Cmd {
	switch ev.Key {
	case protocol.KeyEsc:
		return []protocol.Cmd{mode(protocol.ModeNormal)}
	case protocol.KeyBackspace:
		return []protocol.Cmd{protocol.DeleteChar{Dir: protocol.Before}}
	case protocol.KeyDelete:
		return []protocol.Cmd{protocol.DeleteChar{Dir: protocol.After}}
	case protocol.KeyEnter:
		return []protocol.Cmd{protocol.InsertChar{Char: '\n'}}
	case protocol.KeyTab:
		return []protocol.Cmd{protocol.InsertChar{Char: '\t'}}
	case protocol.KeyHome:
		return []protocol.Cmd{jump(protocol.StartOfLine)}
	case protocol.KeyEnd:
		return []protocol.Cmd{jump(protocol.EndOfLine)}
	case protocol.KeyRune:
		return []protocol.Cmd{protocol.InsertChar{Char: ev.Rune}}
	}
	return nil
}

// prompt covers the command line and the search line.
func prompt(ev protocol.Event) []protocol.Cmd {
	switch ev.Key {
	case protocol.KeyEsc:
		return []protocol.Cmd{mode(protocol.ModeNormal)}
	case protocol.KeyEnter:
		return []protocol.Cmd{protocol.RunCommand{}}
	case protocol.KeyBackspace:
		return []protocol.Cmd{protocol.DeleteChar{Dir: protocol.Before}}
	case protocol.KeyRune:
		return []protocol.Cmd{protocol.InsertChar{Char: ev.Rune}}
	}
	return nil
}
