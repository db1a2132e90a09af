package registers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odvcencio/myedit/geom"
	"github.com/odvcencio/myedit/modules/internal/modtest"
	"github.com/odvcencio/myedit/protocol"
)

func TestPasteEmptyRegister(t *testing.T) {
	env := modtest.New(t, Module())
	env.Send(protocol.PasteAtPoint{})
	require.Empty(t, env.Emitted())
}

func TestPasteText(t *testing.T) {
	env := modtest.New(t, Module())
	env.Buffer().SetText("abc")
	env.Send(protocol.YankValue{Text: "xy"}, protocol.PasteAtPoint{At: geom.Point{X: 2}})
	require.Equal(t, []protocol.Cmd{protocol.InsertStringAtPoint{Text: "xy", At: geom.Point{X: 2}}}, env.Emitted())
	require.Equal(t, "xy", env.State().(*State).Text)
}

func TestPasteLines(t *testing.T) {
	env := modtest.New(t, Module())
	env.Buffer().SetText("one\ntwo")
	env.Send(protocol.YankValue{Text: "line\n"})

	env.Send(protocol.PasteAtPoint{At: geom.Point{X: 2}})
	require.Equal(t, []protocol.Cmd{protocol.InsertStringAtPoint{Text: "line\n", At: geom.Point{Y: 1}}}, env.Emitted())

	env.Send(protocol.PasteAtPoint{At: geom.Point{Y: 1}})
	require.Equal(t, []protocol.Cmd{protocol.InsertStringAtPoint{Text: "\nline", At: geom.Point{X: 3, Y: 1}}}, env.Emitted(),
		"below the last line")
}

func TestRegisterIsShared(t *testing.T) {
	env := modtest.New(t, Module())
	other := env.AddClient(geom.Rect{W: 10, H: 5})
	env.SendTo(other, protocol.YankValue{Text: "shared"})
	env.Send(protocol.PasteAtPoint{})
	require.Equal(t, []protocol.Cmd{protocol.InsertStringAtPoint{Text: "shared"}}, env.Emitted())
}
