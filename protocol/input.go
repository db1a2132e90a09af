package protocol

import (
	"bufio"
	"io"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

// Key identifies a decoded key press.
type Key uint8

const (
	KeyUnknown Key = iota
	KeyRune
	KeyCtrl
	KeyEnter
	KeyTab
	KeyBackspace
	KeyEsc
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
	KeyDelete
)

// Event is one structured input event decoded from a client's raw byte
// stream. Rune is set for KeyRune and, lowercased, for KeyCtrl.
type Event struct {
	Key  Key
	Rune rune
}

// Char returns a printable-rune event.
func Char(r rune) Event { return Event{Key: KeyRune, Rune: r} }

// Ctrl returns a control-chord event for the given letter.
func Ctrl(r rune) Event { return Event{Key: KeyCtrl, Rune: r} }

// InputDecoder turns raw terminal bytes into Events. Escape sequences are
// framed by the ansi sequence decoder; CSI parameters come from its parser.
type InputDecoder struct {
	r       *bufio.Reader
	pending []byte
	p       *ansi.Parser
}

// NewInputDecoder wraps r.
func NewInputDecoder(r io.Reader) *InputDecoder {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &InputDecoder{r: br, p: ansi.NewParser()}
}

// Next blocks until one event is decoded. It returns the reader's error
// (io.EOF on disconnect) when the stream ends; a partial sequence still
// pending at that point is dropped.
func (d *InputDecoder) Next() (Event, error) {
	for {
		if len(d.pending) == 0 {
			if err := d.fill(); err != nil {
				return Event{}, err
			}
		}
		if d.pending[0] >= utf8.RuneSelf && !utf8.FullRune(d.pending) {
			if err := d.fill(); err != nil {
				return Event{}, err
			}
			continue
		}

		seq, _, n, state := ansi.DecodeSequence(d.pending, ansi.NormalState, d.p)
		if state != ansi.NormalState {
			// A lone ESC, one with nothing else already buffered, is the
			// Escape key. Any other unfinished sequence waits for more input.
			if len(d.pending) == 1 && d.pending[0] == ansi.ESC && d.r.Buffered() == 0 {
				d.consume(1)
				return Event{Key: KeyEsc}, nil
			}
			if err := d.fill(); err != nil {
				return Event{}, err
			}
			continue
		}
		if n == 0 {
			d.consume(1)
			continue
		}

		switch {
		case seq[0] == ansi.ESC:
			if len(seq) == 2 && seq[1] == 'O' {
				// SS3: the final byte follows the introducer.
				if len(d.pending) < 3 {
					if err := d.fill(); err != nil {
						return Event{}, err
					}
					continue
				}
				final := d.pending[2]
				d.consume(3)
				if ev, ok := finalKey(final); ok {
					return ev, nil
				}
				continue
			}
			if len(seq) == 1 || (len(seq) == 2 && seq[1] >= ' ' && seq[1] != '[') {
				// ESC followed by a plain key (alt chord): report Escape and
				// leave the key for the next call.
				d.consume(1)
				return Event{Key: KeyEsc}, nil
			}
			isCSI := len(seq) > 2 && seq[1] == '['
			d.consume(n)
			if isCSI {
				if ev, ok := d.csi(); ok {
					return ev, nil
				}
			}
			// Unrecognised sequence: dropped.
		case len(seq) == 1 && (seq[0] < 0x20 || seq[0] == 0x7f):
			b := seq[0]
			d.consume(1)
			if ev, ok := controlKey(b); ok {
				return ev, nil
			}
		case seq[0] < utf8.RuneSelf:
			b := seq[0]
			d.consume(1)
			return Char(rune(b)), nil
		default:
			r, size := utf8.DecodeRune(d.pending)
			if r == utf8.RuneError && size <= 1 {
				d.consume(1)
				continue
			}
			// One event per rune, so combining marks still reach the buffer.
			d.consume(size)
			return Char(r), nil
		}
	}
}

// fill blocks for at least one byte, then takes whatever else the reader
// already holds.
func (d *InputDecoder) fill() error {
	b, err := d.r.ReadByte()
	if err != nil {
		d.pending = d.pending[:0]
		return err
	}
	d.pending = append(d.pending, b)
	if n := d.r.Buffered(); n > 0 {
		more, _ := d.r.Peek(n)
		d.pending = append(d.pending, more...)
		_, _ = d.r.Discard(n)
	}
	return nil
}

func (d *InputDecoder) consume(n int) {
	d.pending = d.pending[:copy(d.pending, d.pending[n:])]
}

func (d *InputDecoder) csi() (Event, bool) {
	cmd := ansi.Cmd(d.p.Command())
	if cmd.Prefix() != 0 || cmd.Intermediate() != 0 {
		return Event{}, false
	}
	if cmd.Final() == '~' {
		param, _ := d.p.Param(0, 0)
		return tildeKey(param)
	}
	return finalKey(cmd.Final())
}

func controlKey(b byte) (Event, bool) {
	switch {
	case b == '\r' || b == '\n':
		return Event{Key: KeyEnter}, true
	case b == '\t':
		return Event{Key: KeyTab}, true
	case b == 0x7f || b == 0x08:
		return Event{Key: KeyBackspace}, true
	case b >= 0x01 && b <= 0x1a:
		return Ctrl(rune('a' + b - 1)), true
	}
	// Remaining C0 controls carry no key meaning.
	return Event{}, false
}

func finalKey(b byte) (Event, bool) {
	switch b {
	case 'A':
		return Event{Key: KeyUp}, true
	case 'B':
		return Event{Key: KeyDown}, true
	case 'C':
		return Event{Key: KeyRight}, true
	case 'D':
		return Event{Key: KeyLeft}, true
	case 'H':
		return Event{Key: KeyHome}, true
	case 'F':
		return Event{Key: KeyEnd}, true
	}
	return Event{}, false
}

func tildeKey(param int) (Event, bool) {
	switch param {
	case 1, 7:
		return Event{Key: KeyHome}, true
	case 4, 8:
		return Event{Key: KeyEnd}, true
	case 3:
		return Event{Key: KeyDelete}, true
	case 5:
		return Event{Key: KeyPageUp}, true
	case 6:
		return Event{Key: KeyPageDown}, true
	}
	return Event{}, false
}
