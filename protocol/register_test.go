package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/myedit/protocol"
)

// reloadable has the same name as the type in export_test.go but lives in
// another package, like a command type from a rebuilt module.
type reloadable struct {
	V     int
	Extra string
}

func (reloadable) Kind() string { return "reloadable" }

func TestRegisterReplacesReloadedType(t *testing.T) {
	protocol.Register(protocol.ReloadableV1)
	require.NotPanics(t, func() { protocol.Register(reloadable{}) })

	data, err := protocol.EncodeRemoteCommand(protocol.RemoteCommand{Cmd: reloadable{V: 7, Extra: "x"}})
	require.NoError(t, err)
	rc, err := protocol.DecodeRemoteCommand(data)
	require.NoError(t, err)
	require.Equal(t, reloadable{V: 7, Extra: "x"}, rc.Cmd)
}
