// Package builtin bundles the editor's modules for hosts that link them in
// instead of loading plugin artifacts.
package builtin

import (
	"github.com/odvcencio/myedit/ext"
	"github.com/odvcencio/myedit/modules/buffers"
	"github.com/odvcencio/myedit/modules/command"
	"github.com/odvcencio/myedit/modules/cursor"
	"github.com/odvcencio/myedit/modules/diagnostics"
	"github.com/odvcencio/myedit/modules/edit"
	"github.com/odvcencio/myedit/modules/highlight"
	"github.com/odvcencio/myedit/modules/input"
	"github.com/odvcencio/myedit/modules/registers"
	"github.com/odvcencio/myedit/modules/search"
	"github.com/odvcencio/myedit/modules/status"
	"github.com/odvcencio/myedit/modules/view"
)

// Options selects and configures the bundled modules.
type Options struct {
	// HighlightStyle names a chroma style; empty picks the default.
	HighlightStyle string
	// LSP adds the diagnostics module, which runs language servers.
	LSP bool
}

// Modules returns the bundled modules.
func Modules(opts Options) []ext.Module {
	mods := []ext.Module{
		buffers.Module(),
		command.Module(),
		cursor.Module(),
		edit.Module(),
		highlight.New(opts.HighlightStyle),
		input.Module(),
		registers.Module(),
		search.Module(),
		status.Module(),
		view.Module(),
	}
	if opts.LSP {
		mods = append(mods, diagnostics.Module())
	}
	return mods
}
