package host

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/gorilla/websocket"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

// shortTempDir keeps socket paths under the unix path length limit.
func shortTempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "myedit")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func sendCommand(t *testing.T, path string, rc protocol.RemoteCommand) {
	t.Helper()
	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, protocol.WriteRemoteCommand(conn, rc))
}

func TestSessionAndCommandSockets(t *testing.T) {
	dir := shortTempDir(t)
	cfg := Config{
		SessionSocket: filepath.Join(dir, "stdin"),
		CommandSocket: filepath.Join(dir, "core"),
	}
	// A stale socket file from a crashed host must not block startup.
	require.NoError(t, os.WriteFile(cfg.SessionSocket, nil, 0o600))

	rec := &recorder{paint: "ok"}
	h, _ := newTestHost(t, cfg, rec.module("rec"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.ListenSessions(ctx, cfg.SessionSocket))
	require.NoError(t, h.ListenCommands(ctx, cfg.CommandSocket))

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	conn, err := net.Dial("unix", cfg.SessionSocket)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	br := bufio.NewReader(conn)
	ic, err := protocol.ReadInitializeClient(br)
	require.NoError(t, err)

	// Malformed commands only cost their own connection.
	bad, err := net.Dial("unix", cfg.CommandSocket)
	require.NoError(t, err)
	bad.Write([]byte("garbage"))
	bad.Close()

	sendCommand(t, cfg.CommandSocket, protocol.RemoteCommand{
		Client: ic.Client,
		Cmd:    protocol.ResizeClient{Size: geom.Rect{W: 4, H: 1}},
	})

	var frame strings.Builder
	buf := make([]byte, 256)
	for !strings.Contains(ansi.Strip(frame.String()), "ok") {
		n, err := br.Read(buf)
		require.NoError(t, err)
		frame.Write(buf[:n])
	}
	require.True(t, strings.HasPrefix(frame.String(), ansi.EraseEntireScreen))

	sendCommand(t, cfg.CommandSocket, protocol.RemoteCommand{Client: ic.Client, Cmd: protocol.Kill{}})
	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrKilled)
	case <-time.After(5 * time.Second):
		t.Fatal("host did not stop")
	}

	// Kill closes every session stream.
	_, err = io.ReadAll(br)
	require.NoError(t, err)
}

func TestListenFailsOnBadPath(t *testing.T) {
	h, _ := newTestHost(t, Config{})
	err := h.ListenSessions(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "sock"))
	require.Error(t, err)
}

func TestWebBridge(t *testing.T) {
	rec := &recorder{paint: "web"}
	h, _ := newTestHost(t, Config{}, rec.module("rec"))
	logger, _ := logtest.NewNullLogger()
	srv := httptest.NewServer(NewWebBridge(h.Queue(), logger))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"resize","cols":5,"rows":1}`)))

	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.BinaryMessage, kind)
	require.Equal(t, ansi.EraseEntireScreen, string(data), "the handshake is not forwarded")

	_, data, err = ws.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "web", ansi.Strip(string(data)))

	// Key bytes arrive as input events.
	require.NoError(t, ws.WriteMessage(websocket.BinaryMessage, []byte("i")))
	require.Eventually(t, func() bool {
		return h.Queue().Len() == 0 && hasInput(rec)
	}, 5*time.Second, 10*time.Millisecond)
}

func hasInput(rec *recorder) bool {
	for _, msg := range rec.messages() {
		if ev, ok := msg.(editor.InputEvent); ok && ev.Event == protocol.Char('i') {
			return true
		}
	}
	return false
}

func TestWebBridgeServesPage(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	srv := httptest.NewServer(NewWebBridge(NewQueue(), logger))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "/ws")
}

func TestWatchLibrariesDebounces(t *testing.T) {
	dir := t.TempDir()
	h, _ := newTestHost(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, h.WatchLibraries(ctx, dir, 50*time.Millisecond))

	path := filepath.Join(dir, "cursor.so")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(path, []byte("two"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	popCtx, popCancel := context.WithTimeout(ctx, 5*time.Second)
	defer popCancel()
	msg, err := h.Queue().Pop(popCtx)
	require.NoError(t, err)
	ev, ok := msg.(editor.LibraryEvent)
	require.True(t, ok)
	require.Equal(t, path, ev.Path)

	time.Sleep(200 * time.Millisecond)
	require.Zero(t, h.Queue().Len(), "bursts for one artifact coalesce into one event")
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.so", "a.so", "readme.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("mod"), 0o644))
	}

	logger, _ := logtest.NewNullLogger()
	loader := &ext.Loader{CopyDir: t.TempDir(), Opener: contentOpener{"mod": reloadLibrary(&reloadLog{}, "mod")}, Log: logger}
	table := ext.NewTable(loader, logger)
	h := New(Config{}, editor.NewGlobalData(), table, logger)

	require.NoError(t, h.LoadDir(dir))
	require.Equal(t, []string{"a", "b"}, table.Names())

	require.NoError(t, h.LoadDir(filepath.Join(dir, "absent")))
}
