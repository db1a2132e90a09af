package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/protocol"
)

// listenUnix binds a unix socket at path, removing a stale socket file left
// behind by a previous host.
func listenUnix(path string) (net.Listener, error) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	return ln, nil
}

// ListenSessions binds the session socket and, until ctx is done, turns
// every accepted connection into a NewClient message.
func (h *Host) ListenSessions(ctx context.Context, path string) error {
	ln, err := listenUnix(path)
	if err != nil {
		return err
	}
	log := h.log.WithField("socket", path)
	log.Info("listening for sessions")
	go serve(ctx, ln, log, func(conn net.Conn) {
		h.queue.Push(editor.NewClient{Stream: conn})
	})
	return nil
}

// ListenCommands binds the command socket. Each connection carries exactly
// one RemoteCommand, read to EOF; a malformed one only closes that
// connection.
func (h *Host) ListenCommands(ctx context.Context, path string) error {
	ln, err := listenUnix(path)
	if err != nil {
		return err
	}
	log := h.log.WithField("socket", path)
	log.Info("listening for commands")
	go serve(ctx, ln, log, func(conn net.Conn) {
		go func() {
			defer conn.Close()
			rc, err := protocol.ReadRemoteCommand(conn)
			if err != nil {
				log.WithError(err).Warn("bad remote command")
				return
			}
			log.WithFields(logrus.Fields{"client": rc.Client, "kind": rc.Cmd.Kind()}).Debug("remote command")
			h.queue.Push(editor.CmdMsg{Client: rc.Client, Cmd: rc.Cmd})
		}()
	})
	return nil
}

func serve(ctx context.Context, ln net.Listener, log logrus.FieldLogger, handle func(net.Conn)) {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				log.WithError(err).Error("accept failed")
			}
			return
		}
		handle(conn)
	}
}
