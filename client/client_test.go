package client

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/x/ansi"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/myedit/arena"
	"github.com/odvcencio/myedit/protocol"
)

func socketDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "myedit")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// fakeHost accepts one session, sends the handshake and frame, then records
// whatever the client types until it has seen want bytes.
func fakeHost(t *testing.T, ln net.Listener, client protocol.ClientIndex, frame string, want int) <-chan string {
	t.Helper()
	typed := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			typed <- ""
			return
		}
		defer conn.Close()
		protocol.WriteInitializeClient(conn, protocol.InitializeClient{Client: client})
		io.WriteString(conn, frame)
		buf := make([]byte, want)
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, _ := io.ReadFull(conn, buf)
		typed <- string(buf[:n])
	}()
	return typed
}

func TestAttach(t *testing.T) {
	dir := socketDir(t)
	path := filepath.Join(dir, "stdin")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	typed := fakeHost(t, ln, arena.Index{Slot: 3, Gen: 1}, "hello", 2)
	logger, _ := logtest.NewNullLogger()

	var out bytes.Buffer
	err = Attach(context.Background(), Options{SessionSocket: path, Log: logger}, strings.NewReader("ix"), &out)
	require.NoError(t, err)
	require.Equal(t, ansi.EraseEntireScreen+"hello", out.String())
	require.Equal(t, "ix", <-typed)
}

func TestAttachWithoutHost(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	path := filepath.Join(socketDir(t), "stdin")
	err := Attach(context.Background(), Options{SessionSocket: path, Log: logger}, strings.NewReader(""), io.Discard)
	require.ErrorContains(t, err, "no host")
}

func TestAttachLaunchesHost(t *testing.T) {
	path := filepath.Join(socketDir(t), "stdin")
	logger, _ := logtest.NewNullLogger()

	var typed <-chan string
	launches := 0
	opts := Options{
		SessionSocket: path,
		Log:           logger,
		Launch: func() error {
			launches++
			ln, err := net.Listen("unix", path)
			if err != nil {
				return err
			}
			t.Cleanup(func() { ln.Close() })
			typed = fakeHost(t, ln, arena.Index{}, "up", 1)
			return nil
		},
	}

	var out bytes.Buffer
	require.NoError(t, Attach(context.Background(), opts, strings.NewReader("q"), &out))
	require.Equal(t, 1, launches)
	require.Equal(t, ansi.EraseEntireScreen+"up", out.String())
	require.Equal(t, "q", <-typed)
}

func TestAttachLaunchTimesOut(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	opts := Options{
		SessionSocket: filepath.Join(socketDir(t), "stdin"),
		Log:           logger,
		Launch:        func() error { return nil },
		LaunchWait:    50 * time.Millisecond,
	}
	err := Attach(context.Background(), opts, strings.NewReader(""), io.Discard)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDialRejectsBadHandshake(t *testing.T) {
	path := filepath.Join(socketDir(t), "stdin")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Write([]byte{0xc1})
			conn.Close()
		}
	}()

	_, err = Dial(path)
	require.ErrorContains(t, err, "handshake")
}

func TestSendCommand(t *testing.T) {
	path := filepath.Join(socketDir(t), "core")
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan protocol.RemoteCommand, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		rc, err := protocol.ReadRemoteCommand(conn)
		if err == nil {
			got <- rc
		}
	}()

	target := arena.Index{Slot: 2, Gen: 5}
	require.NoError(t, SendCommand(path, target.Uint64(), "edit main.go"))
	select {
	case rc := <-got:
		require.Equal(t, target, rc.Client)
		require.Equal(t, protocol.LoadFile{Path: "main.go"}, rc.Cmd)
	case <-time.After(5 * time.Second):
		t.Fatal("command not received")
	}
}

func TestSendCommandErrors(t *testing.T) {
	path := filepath.Join(socketDir(t), "core")
	require.Error(t, SendCommand(path, 0, "edit"), "edit needs a path")
	require.ErrorContains(t, SendCommand(path, 0, "quit"), "dial command socket")
}
