package host

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

type stubLibrary map[string]any

func (l stubLibrary) Lookup(name string) (any, error) {
	sym, ok := l[name]
	if !ok {
		return nil, fmt.Errorf("plugin: symbol %s not found", name)
	}
	return sym, nil
}

// contentOpener picks a library by the artifact's contents, standing in for
// the plugin runtime.
type contentOpener map[string]ext.Library

func (o contentOpener) Open(path string) (ext.Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lib, ok := o[string(data)]
	if !ok {
		return nil, errors.New("plugin: not a plugin")
	}
	return lib, nil
}

type reloadLog struct {
	calls []string
}

// reloadState is what a reloadLibrary module keeps between calls.
type reloadState struct {
	tag     string
	clients int
}

// reloadLibrary builds a module that counts clients at Init and paints
// "<tag>:<count>".
func reloadLibrary(log *reloadLog, tag string) ext.Library {
	version := ext.ABIVersion
	return stubLibrary{
		ext.SymABIVersion: &version,
		ext.SymInit: ext.InitFunc(func(gd *editor.GlobalData) editor.State {
			log.calls = append(log.calls, "init "+tag)
			return &reloadState{tag: tag, clients: gd.Clients.Len()}
		}),
		ext.SymUpdate: ext.UpdateFunc(func(_ *editor.GlobalData, msg editor.Msg, _ *editor.Utils, _ editor.Emit, st editor.State) {
			if _, ok := msg.(editor.NewClient); ok {
				st.(*reloadState).clients++
			}
		}),
		ext.SymRender: ext.RenderFunc(func(_ *editor.GlobalData, _ protocol.ClientIndex, bb *backbuffer.BackBuffer, u *editor.Utils, st editor.State) {
			s := st.(*reloadState)
			u.WriteText(bb, geom.Point{}, fmt.Sprintf("%s:%d", s.tag, s.clients), backbuffer.StyleNone, backbuffer.Color{}, backbuffer.Color{})
		}),
		ext.SymCleanup: ext.CleanupFunc(func(st editor.State) {
			log.calls = append(log.calls, "cleanup "+st.(*reloadState).tag)
		}),
	}
}

func newReloadHost(t *testing.T, libs contentOpener) (*Host, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	loader := &ext.Loader{CopyDir: t.TempDir(), Opener: libs, Log: logger}
	return New(Config{}, editor.NewGlobalData(), ext.NewTable(loader, logger), logger), hook
}

func TestReloadRendersWithCurrentState(t *testing.T) {
	log := &reloadLog{}
	h, _ := newReloadHost(t, contentOpener{
		"v1": reloadLibrary(log, "v1"),
		"v2": reloadLibrary(log, "v2"),
	})
	dir := t.TempDir()
	path := filepath.Join(dir, "status.so")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	require.NoError(t, h.LoadDir(dir))

	a, s := connect(t, h)
	connect(t, h)
	h.Emit(a, protocol.ResizeClient{Size: geom.Rect{W: 6, H: 1}})
	drain(t, h)
	require.Equal(t, "v1:2", ansi.Strip(string(s.output())))

	require.NoError(t, os.WriteFile(path, []byte("v2"), 0o644))
	h.Queue().Push(editor.LibraryEvent{Path: path})
	drain(t, h)

	require.Equal(t, []string{"init v1", "cleanup v1", "init v2"}, log.calls)
	// The new module initialised against the live clients and painted over
	// the old frame.
	require.Equal(t, "2", ansi.Strip(string(s.output())), "only the changed cell is rewritten")
	c, _ := h.GlobalData().Client(a)
	require.Equal(t, "v2:2", strings.TrimRight(cellText(c.BackBuffer), " "))
}

func TestFailedReloadKeepsServing(t *testing.T) {
	log := &reloadLog{}
	h, hook := newReloadHost(t, contentOpener{"v1": reloadLibrary(log, "v1")})
	dir := t.TempDir()
	path := filepath.Join(dir, "status.so")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	require.NoError(t, h.LoadDir(dir))

	a, s := connect(t, h)
	h.Emit(a, protocol.ResizeClient{Size: geom.Rect{W: 6, H: 1}})
	drain(t, h)
	s.output()

	require.NoError(t, os.WriteFile(path, []byte("truncated"), 0o644))
	h.Queue().Push(editor.LibraryEvent{Path: path})
	drain(t, h)

	require.Equal(t, []string{"init v1"}, log.calls)
	require.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	c, _ := h.GlobalData().Client(a)
	require.Equal(t, "v1:1", strings.TrimRight(cellText(c.BackBuffer), " "))
}

func TestLoadDirFailsOnBadArtifact(t *testing.T) {
	h, _ := newReloadHost(t, contentOpener{})
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.so"), []byte("junk"), 0o644))
	require.Error(t, h.LoadDir(dir))
}

// cellText returns the first row of bb as plain text.
func cellText(bb *backbuffer.BackBuffer) string {
	var sb strings.Builder
	for x := 0; x < bb.Dim.W; x++ {
		sb.WriteString(bb.Cells[x].Glyph)
	}
	return sb.String()
}
