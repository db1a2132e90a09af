package editor

import (
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

// State is a module's private state. The host stores it between calls and
// hands it back unchanged; only the module that created it knows its type.
type State = any

// Emit queues cmd on the host's message bus, addressed to client. It is safe
// to call from any goroutine.
type Emit func(client protocol.ClientIndex, cmd protocol.Cmd)

// Utils is the toolbox the host passes to module callbacks. Painting goes
// through the backbuffer primitives and logging through the host's logger,
// tagged with the module's name.
type Utils struct {
	log logrus.FieldLogger
}

// NewUtils returns a Utils logging to log.
func NewUtils(log logrus.FieldLogger) *Utils {
	return &Utils{log: log}
}

// WriteText paints text at origin. See backbuffer.WriteText.
func (u *Utils) WriteText(bb *backbuffer.BackBuffer, origin geom.Point, text string, style backbuffer.Style, fg, bg backbuffer.Color) {
	backbuffer.WriteText(bb, origin, text, style, fg, bg)
}

// StyleRange restyles length cells from origin. See backbuffer.StyleRange.
func (u *Utils) StyleRange(bb *backbuffer.BackBuffer, origin geom.Point, length int, style backbuffer.Style, fg, bg backbuffer.Color) {
	backbuffer.StyleRangeTo(u.log, bb, origin, length, style, fg, bg)
}

// StyleSpan restyles a multi-line span. See backbuffer.StyleSpan.
func (u *Utils) StyleSpan(bb *backbuffer.BackBuffer, span string, origin geom.Point, margin int, style backbuffer.Style, fg, bg backbuffer.Color) {
	backbuffer.StyleSpanTo(u.log, bb, span, origin, margin, style, fg, bg)
}

// Log returns the module's logger for structured fields.
func (u *Utils) Log() logrus.FieldLogger {
	return u.log
}

func (u *Utils) Info(args ...any)  { u.log.Info(args...) }
func (u *Utils) Warn(args ...any)  { u.log.Warn(args...) }
func (u *Utils) Debug(args ...any) { u.log.Debug(args...) }

func (u *Utils) Infof(format string, args ...any)  { u.log.Infof(format, args...) }
func (u *Utils) Warnf(format string, args ...any)  { u.log.Warnf(format, args...) }
func (u *Utils) Debugf(format string, args ...any) { u.log.Debugf(format, args...) }
