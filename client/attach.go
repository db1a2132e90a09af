// Package client attaches a terminal to a running host and sends remote
// commands to it.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/protocol"
)

// Options configures Attach.
type Options struct {
	SessionSocket string
	CommandSocket string
	// Launch starts a host when the session socket does not exist yet.
	// Nil means a missing host is an error.
	Launch func() error
	// LaunchWait bounds how long Attach waits for a launched host to
	// open its socket.
	LaunchWait time.Duration
	Log        logrus.FieldLogger
}

// Session is an attached session connection.
type Session struct {
	Client protocol.ClientIndex
	conn   net.Conn
	r      *bufio.Reader
}

// Dial connects to the session socket at path and reads the handshake.
func Dial(path string) (*Session, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial session socket: %w", err)
	}
	r := bufio.NewReader(conn)
	ic, err := protocol.ReadInitializeClient(r)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}
	return &Session{Client: ic.Client, conn: conn, r: r}, nil
}

// Read returns frame bytes from the host, including any buffered after the
// handshake.
func (s *Session) Read(p []byte) (int, error) { return s.r.Read(p) }

// Write sends raw key bytes to the host.
func (s *Session) Write(p []byte) (int, error) { return s.conn.Write(p) }

func (s *Session) Close() error { return s.conn.Close() }

// Attach connects in and out to a host session and returns when the host
// closes the session or ctx is done. When in is a terminal it is put in
// raw mode for the duration and its size is reported to the host on start
// and on every SIGWINCH.
func Attach(ctx context.Context, opts Options, in io.Reader, out io.Writer) error {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if err := ensureHost(ctx, opts); err != nil {
		return err
	}
	s, err := Dial(opts.SessionSocket)
	if err != nil {
		return err
	}
	defer s.Close()
	log := opts.Log.WithField("client", s.Client)
	log.Debug("attached")

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer term.Restore(fd, old)

		sendSize(opts.CommandSocket, s.Client, fd, log)
		stop := watchResize(opts.CommandSocket, s.Client, fd, log)
		defer stop()
	}

	if _, err := io.WriteString(out, ansi.EraseEntireScreen); err != nil {
		return err
	}

	go func() {
		// Stdin reads cannot be interrupted; the goroutine ends with the
		// process or on the next key after the session closes.
		if _, err := io.Copy(s, in); err != nil {
			log.WithError(err).Debug("input copy stopped")
		}
	}()

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(out, s)
		done <- err
	}()

	select {
	case err := <-done:
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return nil
	}
}

// ensureHost launches a host if nothing listens on the session socket yet
// and waits for its socket to appear.
func ensureHost(ctx context.Context, opts Options) error {
	if _, err := os.Stat(opts.SessionSocket); err == nil {
		return nil
	}
	if opts.Launch == nil {
		return fmt.Errorf("no host at %s", opts.SessionSocket)
	}
	opts.Log.WithField("path", opts.SessionSocket).Info("launching host")
	if err := opts.Launch(); err != nil {
		return fmt.Errorf("launch host: %w", err)
	}

	wait := opts.LaunchWait
	if wait == 0 {
		wait = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		if _, err := os.Stat(opts.SessionSocket); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("host did not start: %w", ctx.Err())
		case <-tick.C:
		}
	}
}

func sendSize(path string, client protocol.ClientIndex, fd int, log logrus.FieldLogger) {
	w, h, err := term.GetSize(fd)
	if err != nil {
		log.WithError(err).Warn("terminal size")
		return
	}
	if err := Send(path, client, protocol.ResizeClient{Size: geom.Rect{W: w, H: h}}); err != nil {
		log.WithError(err).Warn("send size")
	}
}

func watchResize(path string, client protocol.ClientIndex, fd int, log logrus.FieldLogger) (stop func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGWINCH)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-sig:
				sendSize(path, client, fd, log)
			case <-quit:
				return
			}
		}
	}()
	return func() {
		signal.Stop(sig)
		close(quit)
	}
}
