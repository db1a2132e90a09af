// Package ext loads editor extension modules and fans bus messages out to
// them.
//
// A module is a Go plugin (built with -buildmode=plugin) exporting five
// symbols:
//
//	var ABIVersion = ext.ABIVersion
//	func Init(*editor.GlobalData) editor.State
//	func Update(*editor.GlobalData, editor.Msg, *editor.Utils, editor.Emit, editor.State)
//	func Render(*editor.GlobalData, protocol.ClientIndex, *backbuffer.BackBuffer, *editor.Utils, editor.State)
//	func Cleanup(editor.State)
//
// Package pluginbuild produces such artifacts from a plain module package.
// Modules can also be linked into the host binary and registered with
// AddStatic, in which case they are never reloaded.
package ext

import (
	"fmt"

	"github.com/odvcencio/myedit/backbuffer"
	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/protocol"
)

// ABIVersion is bumped whenever the shape of the exported symbols or of the
// types they take changes. Artifacts built against another version are
// rejected at load time.
const ABIVersion = 1

// Symbol names every module must export.
const (
	SymABIVersion = "ABIVersion"
	SymInit       = "Init"
	SymUpdate     = "Update"
	SymRender     = "Render"
	SymCleanup    = "Cleanup"
)

type (
	InitFunc    = func(*editor.GlobalData) editor.State
	UpdateFunc  = func(*editor.GlobalData, editor.Msg, *editor.Utils, editor.Emit, editor.State)
	RenderFunc  = func(*editor.GlobalData, protocol.ClientIndex, *backbuffer.BackBuffer, *editor.Utils, editor.State)
	CleanupFunc = func(editor.State)
)

// Module is a resolved set of module entry points.
type Module struct {
	Name    string
	Init    InitFunc
	Update  UpdateFunc
	Render  RenderFunc
	Cleanup CleanupFunc
}

func (m Module) validate() error {
	switch {
	case m.Name == "":
		return fmt.Errorf("ext: module without a name")
	case m.Init == nil:
		return &LoadError{Path: m.Name, Symbol: SymInit, Err: errMissing}
	case m.Update == nil:
		return &LoadError{Path: m.Name, Symbol: SymUpdate, Err: errMissing}
	case m.Render == nil:
		return &LoadError{Path: m.Name, Symbol: SymRender, Err: errMissing}
	case m.Cleanup == nil:
		return &LoadError{Path: m.Name, Symbol: SymCleanup, Err: errMissing}
	}
	return nil
}
