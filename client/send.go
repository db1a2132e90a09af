package client

import (
	"fmt"
	"net"

	"github.com/odvcencio/myedit/arena"
	"github.com/odvcencio/myedit/protocol"
)

// Send delivers cmd for client over the command socket at path. Every
// command uses its own connection.
func Send(path string, client protocol.ClientIndex, cmd protocol.Cmd) error {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return fmt.Errorf("dial command socket: %w", err)
	}
	defer conn.Close()
	if err := protocol.WriteRemoteCommand(conn, protocol.RemoteCommand{Client: client, Cmd: cmd}); err != nil {
		return fmt.Errorf("send %s: %w", cmd.Kind(), err)
	}
	return nil
}

// SendCommand parses a command line such as "edit main.go" and sends it to
// the client identified by target, the numeric form of its index.
func SendCommand(path string, target uint64, line string) error {
	cmd, err := protocol.ParseCommand(line)
	if err != nil {
		return err
	}
	return Send(path, arena.FromUint64(target), cmd)
}
